package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sanarberkebayram/monetizeit/internal/billing"
	"github.com/sanarberkebayram/monetizeit/internal/clock"
	"github.com/sanarberkebayram/monetizeit/internal/config"
	"github.com/sanarberkebayram/monetizeit/internal/migration"
	"github.com/sanarberkebayram/monetizeit/internal/observability"
	"github.com/sanarberkebayram/monetizeit/internal/payment/stripe"
	"github.com/sanarberkebayram/monetizeit/internal/scheduler"
	"github.com/sanarberkebayram/monetizeit/internal/usage"
	"github.com/sanarberkebayram/monetizeit/pkg/db"
	"github.com/sanarberkebayram/monetizeit/pkg/id"
	"github.com/sanarberkebayram/monetizeit/pkg/kv"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func main() {
	fx.New(
		config.Module,
		config.BillingModule,
		observability.Module,
		clock.Module,
		id.Module,
		db.Module,
		migration.Module,
		kv.Module,
		usage.ConsumerModule,
		stripe.Module,
		billing.Module,
		scheduler.Module,
		fx.Invoke(serveMetrics),
	).Run()
}

// serveMetrics exposes /metrics and /health for the worker. The gateway
// serves these through gin; the worker has no other HTTP surface.
func serveMetrics(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			_ = ctx
			go func() {
				log.Info("worker metrics listening", zap.String("addr", cfg.HTTPAddr))
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("worker metrics server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	})
}
