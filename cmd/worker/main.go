package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/guildledger/ledgerboard/internal/app"
	jobmetrics "github.com/guildledger/ledgerboard/internal/jobs"
	"github.com/guildledger/ledgerboard/internal/ledger/backend"
	platformcache "github.com/guildledger/ledgerboard/internal/platform/cache"
	"github.com/guildledger/ledgerboard/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	redisClient, err := platformcache.New(ctx, cfg.Redis())
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	targets, err := jobs.ParseWarmupTargets(cfg.WarmupEntities)
	if err != nil {
		logger.Error("parse warmup entities", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := jobmetrics.NewMetrics(nil)
	cache := backend.NewCache(redisClient, cfg.CacheTTL)
	client := backend.NewClient(cfg.BackendURL, cfg.BackendTimeout, backend.WithCache(cache), backend.WithLogger(logger))

	warmupJob := jobs.NewLedgerWarmupJob(client, targets, logger, metrics)
	bumpJob := &jobs.CacheBumpJob{Cache: cache, Logger: logger, Metrics: metrics}

	var cron []jobs.CronRegistration
	if len(targets) > 0 && cfg.WarmupCron != "" {
		warmupTask, err := jobs.NewWarmupTask(jobs.WarmupPayload{})
		if err != nil {
			logger.Error("build warmup task", slog.Any("error", err))
			os.Exit(1)
		}
		cron = append(cron, jobs.CronRegistration{
			Spec:    cfg.WarmupCron,
			Task:    warmupTask,
			Options: []asynq.Option{asynq.MaxRetry(3), asynq.Queue(jobs.QueueDefault)},
		})
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   cfg.Redis().QueueOpt(),
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskLedgerWarmup, Handler: warmupJob.Handle},
			{Type: jobs.TaskLedgerCacheBump, Handler: bumpJob.Handle},
		},
		Cron: cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker", slog.Int("warmup_targets", len(targets)))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
