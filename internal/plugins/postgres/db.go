package plugins

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

const (
	ConnectMaxRetries      = 5
	ConnectInitialInterval = 500 * time.Millisecond
	ConnectMaxInterval     = 10 * time.Second
)

var logPostgres = logrus.WithField("pkg", "plugins/postgres")

type DB struct {
	Conn *sql.DB
}

// Options are the connection parameters for a PostgreSQL server.
type Options struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func (o Options) DSN() string {
	sslmode := o.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		o.Host, o.Port, o.User, o.Password, o.DBName, sslmode,
	)
}

func newConnectBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = ConnectInitialInterval
	b.MaxInterval = ConnectMaxInterval
	b.RandomizationFactor = 0.5
	b.Multiplier = 2.0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, ConnectMaxRetries), ctx)
}

// CreateDBConnection opens a PostgreSQL pool and pings it, retrying with
// exponential backoff while the server is unreachable.
func CreateDBConnection(ctx context.Context, opts Options) (*DB, error) {
	db, err := sql.Open("postgres", opts.DSN())
	if err != nil {
		return nil, err
	}

	attempt := 0
	ping := func() error {
		attempt++
		return db.PingContext(ctx)
	}
	notify := func(err error, wait time.Duration) {
		logPostgres.WithError(err).WithFields(logrus.Fields{
			"attempt": attempt,
			"retry":   wait,
		}).Warn("Database not reachable yet")
	}
	if err := backoff.RetryNotify(ping, newConnectBackoff(ctx), notify); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect to postgres at %s:%s: %w", opts.Host, opts.Port, err)
	}

	logPostgres.WithField("host", opts.Host).Info("Connected to database")
	return &DB{Conn: db}, nil
}

func (d *DB) Close() error {
	logPostgres.Info("Database Connection has been Closed")
	return d.Conn.Close()
}
