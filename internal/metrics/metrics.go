// Package metrics exposes the server's Prometheus collectors.
//
// All recording methods are safe to call on a nil *Metrics, which is how
// tests and tools run the core without a registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Config struct {
	Namespace   string
	ConstLabels prometheus.Labels
	Buckets     []float64
	Registry    prometheus.Registerer
}

type Option func(*Config)

func WithNamespace(namespace string) Option {
	return func(c *Config) { c.Namespace = namespace }
}

func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) { c.ConstLabels = labels }
}

func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) { c.Registry = registry }
}

func defaultConfig() Config {
	return Config{
		Namespace: "calc",
		Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		Registry:  prometheus.DefaultRegisterer,
	}
}

type Metrics struct {
	factory promauto.Factory
	cfg     Config

	connections       prometheus.Counter
	connectionsDenied *prometheus.CounterVec
	commands          *prometheus.CounterVec
	commandDuration   prometheus.Histogram
	broadcasts        prometheus.Counter
	broadcastFailures prometheus.Counter
	persistErrors     *prometheus.CounterVec
	sessionsLoaded    prometheus.Counter
}

// New registers the collectors with the configured registry.
func New(opts ...Option) *Metrics {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	factory := promauto.With(cfg.Registry)

	return &Metrics{
		factory: factory,
		cfg:     cfg,

		connections: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "connections_total",
			Help:        "Total number of accepted client connections",
			ConstLabels: cfg.ConstLabels,
		}),
		connectionsDenied: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "connections_denied_total",
			Help:        "Connections refused by reason",
			ConstLabels: cfg.ConstLabels,
		}, []string{"reason"}),
		commands: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "commands_total",
			Help:        "Commands processed by result",
			ConstLabels: cfg.ConstLabels,
		}, []string{"result"}),
		commandDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   cfg.Namespace,
			Name:        "command_duration_seconds",
			Help:        "Time from receiving a command to finishing its broadcast and save",
			ConstLabels: cfg.ConstLabels,
			Buckets:     cfg.Buckets,
		}),
		broadcasts: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "broadcast_messages_total",
			Help:        "Messages handed to client outboxes",
			ConstLabels: cfg.ConstLabels,
		}),
		broadcastFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "broadcast_failures_total",
			Help:        "Messages that could not be handed to a client",
			ConstLabels: cfg.ConstLabels,
		}),
		persistErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "persist_errors_total",
			Help:        "Session store failures by operation",
			ConstLabels: cfg.ConstLabels,
		}, []string{"op"}),
		sessionsLoaded: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "sessions_loaded_total",
			Help:        "Sessions restored from the store at startup",
			ConstLabels: cfg.ConstLabels,
		}),
	}
}

// TrackGauges exposes live counts read from the registries at scrape time.
func (m *Metrics) TrackGauges(sessions, connections func() int) {
	if m == nil {
		return
	}
	m.factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   m.cfg.Namespace,
		Name:        "active_sessions",
		Help:        "Sessions currently held in memory",
		ConstLabels: m.cfg.ConstLabels,
	}, func() float64 { return float64(sessions()) })
	m.factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   m.cfg.Namespace,
		Name:        "active_connections",
		Help:        "Client connections currently holding a slot",
		ConstLabels: m.cfg.ConstLabels,
	}, func() float64 { return float64(connections()) })
}

func (m *Metrics) ConnectionAccepted() {
	if m == nil {
		return
	}
	m.connections.Inc()
}

func (m *Metrics) ConnectionDenied(reason string) {
	if m == nil {
		return
	}
	m.connectionsDenied.WithLabelValues(reason).Inc()
}

// Command records one processed command. result is "accepted", "rejected"
// or "limited".
func (m *Metrics) Command(result string, started time.Time) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(result).Inc()
	m.commandDuration.Observe(time.Since(started).Seconds())
}

func (m *Metrics) Broadcast(sent, failed int) {
	if m == nil {
		return
	}
	m.broadcasts.Add(float64(sent))
	m.broadcastFailures.Add(float64(failed))
}

func (m *Metrics) PersistError(op string) {
	if m == nil {
		return
	}
	m.persistErrors.WithLabelValues(op).Inc()
}

func (m *Metrics) SessionsLoaded(n int) {
	if m == nil {
		return
	}
	m.sessionsLoaded.Add(float64(n))
}
