package scheduler

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sanarberkebayram/monetizeit/internal/config"
	"go.uber.org/zap"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "monetizeit_billing_runs_total",
		Help: "Billing runs by outcome.",
	}, []string{"outcome"})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "monetizeit_billing_run_duration_seconds",
		Help:    "Wall time of billing runs.",
		Buckets: prometheus.DefBuckets,
	})

	runsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "monetizeit_billing_runs_skipped_total",
		Help: "Ticks skipped because a run was still in flight.",
	})
)

// Job is one schedulable unit of work.
type Job interface {
	RunOnce(ctx context.Context) error
}

// Scheduler drives the billing engine on a jittered interval. Overlapping
// runs are skipped rather than queued.
type Scheduler struct {
	job    Job
	holder *config.BillingConfigHolder
	logger *zap.Logger
	mu     sync.Mutex
}

func New(job Job, holder *config.BillingConfigHolder, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		job:    job,
		holder: holder,
		logger: logger,
	}
}

// RunForever runs one pass immediately, then ticks until the context is
// cancelled. The immediate pass means a restarted worker never postpones
// settlement by a full interval.
func (s *Scheduler) RunForever(ctx context.Context) {
	s.RunOnce(ctx)

	for {
		cfg := s.currentConfig()
		wait := jittered(cfg.RunInterval, cfg.RunJitter)

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}

		s.RunOnce(ctx)
	}
}

// RunOnce executes one billing run under the configured timeout. A run
// already in flight makes this a no-op.
func (s *Scheduler) RunOnce(ctx context.Context) {
	if !s.mu.TryLock() {
		runsSkipped.Inc()
		s.logger.Warn("billing run still in flight, skipping tick")
		return
	}
	defer s.mu.Unlock()

	cfg := s.currentConfig()
	runCtx, cancel := context.WithTimeout(ctx, cfg.RunTimeout)
	defer cancel()

	start := time.Now()
	err := s.job.RunOnce(runCtx)
	runDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		runsTotal.WithLabelValues("error").Inc()
		s.logger.Error("billing run finished with errors",
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return
	}

	runsTotal.WithLabelValues("ok").Inc()
	s.logger.Info("billing run finished", zap.Duration("duration", time.Since(start)))
}

func (s *Scheduler) currentConfig() Config {
	billing := s.holder.Get()
	return Config{
		RunInterval: billing.RunInterval,
		RunJitter:   billing.RunJitter,
		RunTimeout:  billing.RunTimeout,
	}.withDefaults()
}

// jittered spreads ticks across [interval-jitter, interval+jitter] so
// replicas do not bill in lockstep.
func jittered(interval, jitter time.Duration) time.Duration {
	if jitter <= 0 {
		return interval
	}
	offset := time.Duration(rand.Int63n(int64(2*jitter))) - jitter
	wait := interval + offset
	if wait < time.Second {
		wait = time.Second
	}
	return wait
}
