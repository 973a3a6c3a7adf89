package calc

import (
	"context"
	"fmt"
	"log"

	"github.com/enjoys-in/airsend-calc/cmd/wireframe"
	"github.com/enjoys-in/airsend-calc/internal/transport"
	"github.com/sirupsen/logrus"
)

var logCalc = logrus.WithField("pkg", "server/calc")

// RunCalc binds the calculator listener and serves clients until ctx is
// cancelled. Bind failures are returned before any client is accepted.
func RunCalc(ctx context.Context, app *wireframe.AppWireframe) error {
	log.Println("🧩 Starting calculator server...")

	cfg := app.Config
	framing, err := transport.ParseFraming(cfg.Calc.Framing)
	if err != nil {
		return err
	}
	tlsConfig, err := cfg.LoadTLS()
	if err != nil {
		return fmt.Errorf("failed to load TLS certs: %w", err)
	}

	opts := []transport.ListenerOption{
		transport.WithAcceptRate(cfg.Calc.AcceptRate, transport.DefaultAcceptBurst),
	}
	if tlsConfig != nil {
		opts = append(opts, transport.WithTLS(tlsConfig))
	}

	listener := transport.NewListener(cfg.ListenAddr(), framing, func(ctx context.Context, c *transport.Conn) {
		if err := app.Browser.Serve(ctx, c); err != nil {
			logCalc.WithError(err).WithFields(logrus.Fields{
				"conn":   c.ID(),
				"remote": c.RemoteAddr(),
			}).Debug("Client ended")
		}
	}, opts...)

	addr, err := listener.Listen()
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.ListenAddr(), err)
	}

	logCalc.WithFields(logrus.Fields{
		"addr":    addr.String(),
		"framing": framing,
		"tls":     tlsConfig != nil,
	}).Info("Server is listening")
	if tlsConfig != nil {
		log.Printf("🔒 Calculator (TLS) listening on %s", addr)
	} else {
		log.Printf("🧮 Calculator listening on %s", addr)
	}

	return listener.Serve(ctx)
}
