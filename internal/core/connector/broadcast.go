package connector

import (
	"github.com/enjoys-in/airsend-calc/internal/metrics"
	"github.com/sirupsen/logrus"
)

var logBroadcast = logrus.WithField("pkg", "core/connector")

// Delivery summarizes one broadcast.
type Delivery struct {
	Sent   int
	Failed int
}

// Broadcaster pushes session updates to every connection joined to the
// session.
type Broadcaster struct {
	conns   *Registry
	metrics *metrics.Metrics
}

func NewBroadcaster(conns *Registry, m *metrics.Metrics) *Broadcaster {
	return &Broadcaster{conns: conns, metrics: m}
}

// Broadcast sends msg verbatim to every connection attached to sessionID.
// Recipients are collected under the registry read lock and sent to after
// it is released; a failing recipient is logged and skipped.
func (b *Broadcaster) Broadcast(sessionID int, msg string) Delivery {
	var d Delivery
	for _, c := range b.conns.Attached(sessionID) {
		if err := c.Send(msg); err != nil {
			d.Failed++
			logBroadcast.WithError(err).WithFields(logrus.Fields{
				"session": sessionID,
				"conn":    c.ID(),
			}).Warn("Failed to deliver update")
			continue
		}
		d.Sent++
	}
	b.metrics.Broadcast(d.Sent, d.Failed)
	return d
}
