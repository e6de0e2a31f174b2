package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/core/config"
	"github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/core/health"
	middleware "github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/core/middleware"
	"github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/core/router"
)

// Handler builds the root router: probes, metrics and the API.
func Handler(logger *slog.Logger, api *router.API, metrics http.Handler, ready map[string]health.Check) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS())

	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(ready, 2*time.Second))
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}
	api.Register(r)
	return r
}

// sets up http and starts serving
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, h http.Handler) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
