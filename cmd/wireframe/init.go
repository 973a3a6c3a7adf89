package wireframe

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/enjoys-in/airsend-calc/config"
	"github.com/enjoys-in/airsend-calc/internal/core/api/handlers"
	"github.com/enjoys-in/airsend-calc/internal/core/api/services"
	"github.com/enjoys-in/airsend-calc/internal/core/browser"
	"github.com/enjoys-in/airsend-calc/internal/core/connector"
	"github.com/enjoys-in/airsend-calc/internal/core/persist"
	"github.com/enjoys-in/airsend-calc/internal/core/session"
	"github.com/enjoys-in/airsend-calc/internal/interfaces"
	"github.com/enjoys-in/airsend-calc/internal/metrics"
	plugins "github.com/enjoys-in/airsend-calc/internal/plugins/postgres"
	"github.com/enjoys-in/airsend-calc/internal/plugins/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type AppWireframe struct {
	Config   config.Config
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	Sessions    *session.Registry
	Conns       *connector.Registry
	Broadcaster *connector.Broadcaster
	Store       *persist.Store
	Browser     *browser.Handler

	Service *interfaces.Services
	Handler *handlers.Handlers

	closers []func() error
}

// InitWireframe builds every component from cfg: the metrics registry, the
// session and connection registries, the configured store (restoring the
// persisted sessions into the registry), the connection handler and the
// admin API layers.
func InitWireframe(ctx context.Context, cfg config.Config) (*AppWireframe, error) {
	app := &AppWireframe{Config: cfg}

	app.Registry = prometheus.NewRegistry()
	app.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.Metrics = metrics.New(metrics.WithRegistry(app.Registry))

	app.Sessions = session.NewRegistry(
		session.WithCapacity(cfg.Calc.MaxSessions),
		session.WithIDRange(cfg.Calc.SessionIDRange),
	)
	app.Conns = connector.NewRegistry(cfg.Calc.MaxConnections)
	app.Broadcaster = connector.NewBroadcaster(app.Conns, app.Metrics)
	app.Metrics.TrackGauges(app.Sessions.Len, app.Conns.Count)

	backend, err := app.openBackend(ctx)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.Store = persist.NewStore(backend, app.Metrics)
	app.closers = append(app.closers, app.Store.Close)

	report, err := app.Store.LoadAll(ctx, app.Sessions)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	log.Printf("✅ Restored %d sessions (%d skipped, %d failed)", report.Loaded, report.Skipped, report.Failed)

	app.Browser = browser.NewHandler(browser.Deps{
		Sessions:    app.Sessions,
		Conns:       app.Conns,
		Broadcaster: app.Broadcaster,
		Store:       app.Store,
		Metrics:     app.Metrics,
	},
		browser.WithQueueSize(cfg.Calc.SendQueue),
		browser.WithCommandRate(cfg.Calc.CommandRate, cfg.Calc.CommandBurst),
	)

	app.Service = services.NewServices(app.Sessions, app.Conns, app.Store)
	app.Handler = handlers.NewHandlers(app.Service)
	return app, nil
}

func (app *AppWireframe) openBackend(ctx context.Context) (persist.Backend, error) {
	cfg := app.Config
	switch cfg.Store.Driver {
	case "memory":
		log.Println("⚠️  Using in-memory session store, nothing survives a restart")
		return persist.NewMemoryBackend(), nil

	case "sqlite":
		db, err := sqlite.Open(ctx, cfg.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, db.Close)
		backend := persist.NewSQLBackend(db.Conn, persist.DialectSQLite)
		if err := backend.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		log.Printf("✅ SQLite session store at %s", cfg.Store.SQLitePath)
		return backend, nil

	case "postgres":
		db, err := plugins.CreateDBConnection(ctx, plugins.Options{
			Host:     cfg.DB.DBHost,
			Port:     cfg.DB.DBPort,
			User:     cfg.DB.DBUser,
			Password: cfg.DB.DBPassword,
			DBName:   cfg.DB.DBName,
			SSLMode:  cfg.DB.DBSSLMode,
		})
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, db.Close)
		backend := persist.NewSQLBackend(db.Conn, persist.DialectPostgres)
		if err := backend.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		log.Println("✅ PostgreSQL session store connected")
		return backend, nil

	case "file", "":
		backend, err := persist.NewFileBackend(cfg.Store.DataDir)
		if err != nil {
			return nil, err
		}
		log.Printf("✅ File session store at %s", cfg.Store.DataDir)
		return backend, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

// Close drops every live connection and releases the store and database,
// in reverse order of opening.
func (app *AppWireframe) Close() error {
	if app.Conns != nil {
		app.Conns.CloseAll()
	}
	var errs []error
	for i := len(app.closers) - 1; i >= 0; i-- {
		errs = append(errs, app.closers[i]())
	}
	app.closers = nil
	return errors.Join(errs...)
}
