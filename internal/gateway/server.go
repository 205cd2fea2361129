package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sanarberkebayram/monetizeit/internal/apikey/service"
	"github.com/sanarberkebayram/monetizeit/internal/clock"
	"github.com/sanarberkebayram/monetizeit/internal/config"
	"github.com/sanarberkebayram/monetizeit/internal/observability"
	"github.com/sanarberkebayram/monetizeit/internal/observability/logger"
	"github.com/sanarberkebayram/monetizeit/internal/observability/metrics"
	"github.com/sanarberkebayram/monetizeit/internal/observability/tracing"
	"github.com/sanarberkebayram/monetizeit/internal/quota"
	"github.com/sanarberkebayram/monetizeit/internal/ratelimit"
	"github.com/sanarberkebayram/monetizeit/internal/usage/stream"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("gateway",
	fx.Provide(NewAdmissionFromConfig),
	fx.Provide(NewEngine),
	fx.Invoke(Run),
)

func NewAdmissionFromConfig(
	cfg config.Config,
	resolver *service.Resolver,
	limiter *ratelimit.Limiter,
	checker *quota.Checker,
	emitter *stream.Emitter,
	clk clock.Clock,
	m *metrics.Metrics,
) (*Admission, error) {
	upstream, err := url.Parse(cfg.UpstreamURL)
	if err != nil {
		return nil, err
	}
	if upstream.Scheme == "" || upstream.Host == "" {
		return nil, errors.New("upstream url must be absolute")
	}
	return NewAdmission(resolver, limiter, checker, emitter, upstream, clk, int64(cfg.DefaultRateLimit), m), nil
}

// NewEngine assembles the gin engine. Every route the gateway does not
// serve itself falls through to admission and the reverse proxy.
func NewEngine(obsCfg observability.Config, admission *Admission, httpMetrics *metrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(
		gin.Recovery(),
		logger.GinMiddleware(logger.MiddlewareConfig{
			Debug: obsCfg.Debug(),
			ErrorClassifier: func(err error) (string, string) {
				_, errType := ClassifyError(err)
				return "admission", errType
			},
		}),
		tracing.GinMiddleware(),
		metrics.GinMiddleware(httpMetrics),
		ErrorHandlingMiddleware(),
	)

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	engine.NoRoute(admission.Handle)
	return engine
}

// Run ties the HTTP server to the fx lifecycle.
func Run(lc fx.Lifecycle, engine *gin.Engine, cfg config.Config, log *zap.Logger) {
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			_ = ctx
			go func() {
				log.Info("gateway listening", zap.String("addr", cfg.HTTPAddr))
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("gateway server failed", zap.Error(err))
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
