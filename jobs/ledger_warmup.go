package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	jobmetrics "github.com/guildledger/ledgerboard/internal/jobs"
	"github.com/guildledger/ledgerboard/internal/ledger"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// Warmer loads a ledger and billboard pair through the caching backend client.
type Warmer interface {
	Warm(ctx context.Context, ledgerReq, billboardReq ledger.Request) error
}

// LedgerWarmupJob preloads the month and year payloads of configured entities
// so the first dashboard visit after a cache bump is served from Redis.
type LedgerWarmupJob struct {
	Backend     Warmer
	Targets     []WarmupTarget
	Logger      *slog.Logger
	Metrics     *jobmetrics.Metrics
	Concurrency int
	clock       func() time.Time
}

// NewLedgerWarmupJob wires dependencies for the warmup handler.
func NewLedgerWarmupJob(backend Warmer, targets []WarmupTarget, logger *slog.Logger, metrics *jobmetrics.Metrics) *LedgerWarmupJob {
	return &LedgerWarmupJob{
		Backend:     backend,
		Targets:     targets,
		Logger:      logger,
		Metrics:     metrics,
		Concurrency: 4,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// WithClock overrides the time source used to pick the warmed month and year.
func (j *LedgerWarmupJob) WithClock(clock func() time.Time) *LedgerWarmupJob {
	if clock != nil {
		j.clock = clock
	}
	return j
}

// Handle processes warmup tasks. A failing target does not stop the others;
// the run reports the joined errors.
func (j *LedgerWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Backend == nil {
		return errors.New("ledger warmup: handler not configured")
	}
	var payload WarmupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	targets := payload.Targets
	if len(targets) == 0 {
		targets = j.Targets
	}

	tracker := j.metrics().Track(TaskLedgerWarmup)
	logger := j.logger()
	if len(targets) == 0 {
		logger.Info("no entities configured for warmup")
		return tracker.End(nil)
	}

	start := j.now()
	var (
		mu   sync.Mutex
		errs []error
	)
	g, gctx := errgroup.WithContext(ctx)
	if j.Concurrency > 0 {
		g.SetLimit(j.Concurrency)
	}
	for _, target := range targets {
		target := target
		g.Go(func() error {
			err := j.warmTarget(gctx, target, start)
			outcome := "ok"
			if err != nil {
				outcome = "error"
				logger.Warn("warm entity", slog.String("target", target.String()), slog.Any("error", err))
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", target, err))
				mu.Unlock()
			}
			j.metrics().AddWarmed(string(target.Entity), outcome, 1)
			return nil
		})
	}
	_ = g.Wait()

	err := errors.Join(errs...)
	logger.Info("completed ledger warmup",
		slog.Int("targets", len(targets)),
		slog.Int("failed", len(errs)),
		slog.Duration("duration", time.Since(start)))
	return tracker.End(err)
}

func (j *LedgerWarmupJob) warmTarget(ctx context.Context, target WarmupTarget, now time.Time) error {
	targetCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	sel := ledger.NewSelection(target.Entity, target.PK, now)
	for _, view := range []ledger.ViewMode{ledger.ViewMonth, ledger.ViewYear} {
		if err := j.Backend.Warm(targetCtx, sel.LedgerRequest(view), sel.BillboardRequest(view)); err != nil {
			return err
		}
	}
	return nil
}

func (j *LedgerWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLedgerWarmup))
	}
	return slog.Default().With(slog.String("job", TaskLedgerWarmup))
}

func (j *LedgerWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *LedgerWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
