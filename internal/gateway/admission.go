package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	apikeydomain "github.com/sanarberkebayram/monetizeit/internal/apikey/domain"
	"github.com/sanarberkebayram/monetizeit/internal/clock"
	obscontext "github.com/sanarberkebayram/monetizeit/internal/observability/context"
	"github.com/sanarberkebayram/monetizeit/internal/observability/logger"
	"github.com/sanarberkebayram/monetizeit/internal/observability/metrics"
	"github.com/sanarberkebayram/monetizeit/internal/ratelimit"
	usagedomain "github.com/sanarberkebayram/monetizeit/internal/usage/domain"
	"go.uber.org/zap"
)

const apiKeyHeader = "X-API-Key"

// KeyResolver validates raw API keys.
type KeyResolver interface {
	Resolve(ctx context.Context, rawKey string) (*apikeydomain.Credential, error)
}

// RateLimiter admits requests against a per-key window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64) (ratelimit.Result, error)
}

// QuotaSource reports month-to-date request totals.
type QuotaSource interface {
	Used(ctx context.Context, apiID, clientID string) (int64, error)
}

// UsageEmitter durably records one admitted request.
type UsageEmitter interface {
	Emit(ctx context.Context, record usagedomain.Record) (string, error)
}

// Admission gates every proxied request: key validation, rate limit,
// quota, then durable usage emission before the upstream sees it.
type Admission struct {
	resolver     KeyResolver
	limiter      RateLimiter
	quota        QuotaSource
	emitter      UsageEmitter
	proxy        *httputil.ReverseProxy
	clock        clock.Clock
	defaultLimit int64
	metrics      *metrics.Metrics
}

func NewAdmission(
	resolver KeyResolver,
	limiter RateLimiter,
	checker QuotaSource,
	emitter UsageEmitter,
	upstream *url.URL,
	clk clock.Clock,
	defaultLimit int64,
	m *metrics.Metrics,
) *Admission {
	proxy := httputil.NewSingleHostReverseProxy(upstream)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.FromContext(r.Context()).Warn("upstream proxy error", zap.Error(err))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":{"type":"upstream_unavailable","message":"upstream service is unavailable"}}`))
	}

	return &Admission{
		resolver:     resolver,
		limiter:      limiter,
		quota:        checker,
		emitter:      emitter,
		proxy:        proxy,
		clock:        clk,
		defaultLimit: defaultLimit,
		metrics:      m,
	}
}

// Handle is the NoRoute handler: every path not served by the gateway
// itself goes through admission and on to the upstream.
func (a *Admission) Handle(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.FromContext(ctx)

	rawKey := c.GetHeader(apiKeyHeader)
	if rawKey == "" {
		a.metrics.RecordAdmissionDenied(ctx, "missing_api_key")
		AbortWithError(c, ErrMissingAPIKey)
		return
	}

	cred, err := a.resolver.Resolve(ctx, rawKey)
	if err != nil {
		_, reason := ClassifyError(err)
		a.metrics.RecordAdmissionDenied(ctx, reason)
		AbortWithError(c, err)
		return
	}

	ctx = obscontext.WithCredential(ctx, cred.APIID, cred.ClientID)
	c.Request = c.Request.WithContext(ctx)
	log = logger.FromContext(ctx)

	limit := a.defaultLimit
	if cred.Plan != nil && cred.Plan.RateLimit > 0 {
		limit = cred.Plan.RateLimit
	}

	result, limiterErr := a.limiter.Allow(ctx, "rl:"+apikeydomain.HashAPIKey(rawKey), limit)
	if limiterErr != nil {
		a.metrics.RecordLimiterFailOpen(ctx)
	}
	setRateLimitHeaders(c, result)
	if !result.Allowed {
		retryAfter := int64(result.ResetAfter / time.Second)
		if retryAfter < 1 {
			retryAfter = 1
		}
		c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
		a.metrics.RecordAdmissionDenied(ctx, "rate_limit_exceeded")
		AbortWithError(c, ErrRateLimited)
		return
	}

	if cred.Plan != nil && cred.Plan.QuotaLimit > 0 {
		used, err := a.quota.Used(ctx, cred.APIID, cred.ClientID)
		if err != nil {
			// Usage source down. The request proceeds unmetered rather
			// than failing everyone on a reporting dependency.
			log.Warn("quota check unavailable, skipping", zap.Error(err))
		} else {
			c.Header("X-Quota-Limit", strconv.FormatInt(cred.Plan.QuotaLimit, 10))
			c.Header("X-Quota-Used", strconv.FormatInt(used, 10))
			if used >= cred.Plan.QuotaLimit {
				a.metrics.RecordAdmissionDenied(ctx, "quota_exceeded")
				AbortWithError(c, ErrQuotaExceeded)
				return
			}
		}
	}

	record := usagedomain.Record{
		APIID:     cred.APIID,
		ClientID:  cred.ClientID,
		Units:     1,
		Bytes:     requestBytes(c.Request),
		Timestamp: a.clock.Now(),
	}
	if _, err := a.emitter.Emit(ctx, record); err != nil {
		log.Error("usage emission failed, rejecting request", zap.Error(err))
		a.metrics.RecordAdmissionDenied(ctx, "usage_emission_failed")
		AbortWithError(c, fmt.Errorf("%w: %w", ErrEmissionFailed, err))
		return
	}
	a.metrics.RecordUsageEmitted(ctx, cred.APIID)
	a.metrics.RecordAdmissionAllowed(ctx, cred.APIID)

	a.proxy.ServeHTTP(c.Writer, c.Request)
}

func setRateLimitHeaders(c *gin.Context, result ratelimit.Result) {
	c.Header("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
	c.Header("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(int64(result.ResetAfter/time.Second), 10))
}

func requestBytes(r *http.Request) int64 {
	if r.ContentLength > 0 {
		return r.ContentLength
	}
	return 0
}
