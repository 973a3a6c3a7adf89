package routes

import (
	"context"
	"net/http"

	"github.com/enjoys-in/airsend-calc/cmd/wireframe"
	"github.com/enjoys-in/airsend-calc/internal/core/api/handlers"
	"github.com/enjoys-in/airsend-calc/internal/transport"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var logRoutes = logrus.WithField("pkg", "server/routes")

// InitRoutes builds the admin router. ctx bounds the WebSocket client
// connections it accepts.
func InitRoutes(ctx context.Context, app *wireframe.AppWireframe) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Handle("/metrics", promhttp.HandlerFor(app.Registry, promhttp.HandlerOpts{}))

	// Calculator clients over WebSocket
	r.Get("/ws", transport.WebSocketHandler(ctx, func(ctx context.Context, c *transport.WSConn) {
		if err := app.Browser.Serve(ctx, c); err != nil {
			logRoutes.WithError(err).WithField("conn", c.ID()).Debug("WebSocket client ended")
		}
	}))

	sessions := app.Handler.SessionHandler
	r.Route("/api", func(r chi.Router) {
		r.Use(handlers.RateLimitMiddleware(handlers.NewAPILimiter()))
		r.Use(handlers.AuthMiddleware(app.Config.Admin.APIKey))

		r.Get("/stats", sessions.Stats)
		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", sessions.ListSessions)
			r.Get("/{id}", sessions.GetSession)
			r.Delete("/{id}", sessions.DeleteSession)
		})
	})

	return r
}
