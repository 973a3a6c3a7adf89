package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/enjoys-in/airsend-calc/cmd/server/routes"
	"github.com/enjoys-in/airsend-calc/cmd/wireframe"
)

const shutdownTimeout = 5 * time.Second

// RunHttpApi serves the admin API (health, metrics, session admin and the
// WebSocket transport) on Config.Admin.Addr until ctx is cancelled. An
// empty address disables it.
func RunHttpApi(ctx context.Context, app *wireframe.AppWireframe) error {
	addr := app.Config.Admin.Addr
	if addr == "" {
		log.Println("ℹ️  Admin HTTP API disabled")
		return nil
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.InitRoutes(ctx, app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("❌ HTTP shutdown: %v", err)
		}
	}()

	log.Println("🚀 HTTP API running on", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
