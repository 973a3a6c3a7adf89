package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(WithRegistry(reg))

	m.ConnectionAccepted()
	m.ConnectionAccepted()
	m.ConnectionDenied("capacity")
	m.Command("accepted", time.Now())
	m.Command("rejected", time.Now())
	m.Command("rejected", time.Now())
	m.Broadcast(3, 1)
	m.PersistError("save")
	m.SessionsLoaded(4)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.connections))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.connectionsDenied.WithLabelValues("capacity")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commands.WithLabelValues("accepted")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.commands.WithLabelValues("rejected")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.broadcasts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.broadcastFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.persistErrors.WithLabelValues("save")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.sessionsLoaded))
	assert.Equal(t, 1, testutil.CollectAndCount(m.commandDuration))
}

func TestMetrics_TrackGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(WithRegistry(reg), WithNamespace("test"))

	sessions := 2
	m.TrackGauges(func() int { return sessions }, func() int { return 5 })
	sessions = 3

	expected := `
# HELP test_active_sessions Sessions currently held in memory
# TYPE test_active_sessions gauge
test_active_sessions 3
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "test_active_sessions"))
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ConnectionAccepted()
		m.ConnectionDenied("capacity")
		m.Command("accepted", time.Now())
		m.Broadcast(1, 1)
		m.PersistError("load")
		m.SessionsLoaded(1)
		m.TrackGauges(func() int { return 0 }, func() int { return 0 })
	})
}
