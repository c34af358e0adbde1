package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/guildledger/ledgerboard/cmd/ledgerboard/cli"
	"github.com/guildledger/ledgerboard/internal/app"
	"github.com/guildledger/ledgerboard/internal/ledger/backend"
	"github.com/guildledger/ledgerboard/internal/ledger/dashboard"
	ledgerhttp "github.com/guildledger/ledgerboard/internal/ledger/http"
	"github.com/guildledger/ledgerboard/internal/ledger/ui"
	"github.com/guildledger/ledgerboard/internal/observability"
	platformcache "github.com/guildledger/ledgerboard/internal/platform/cache"
	"github.com/guildledger/ledgerboard/internal/shared"
	"github.com/guildledger/ledgerboard/internal/view"
	"github.com/guildledger/ledgerboard/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		os.Exit(runJobsCommand(ctx, cfg, os.Args[2:]))
	}

	redisClient, err := platformcache.New(ctx, cfg.Redis())
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	cache := backend.NewCache(redisClient, cfg.CacheTTL)
	if err := cache.ListenForInvalidation(ctx, backend.BumpChannel); err != nil {
		logger.Warn("cache invalidation listener", slog.Any("error", err))
	}
	client := backend.NewClient(cfg.BackendURL, cfg.BackendTimeout,
		backend.WithCache(cache),
		backend.WithLogger(logger),
		backend.WithMetrics(metrics.Registerer()),
	)

	sessionManager := shared.NewSessionManager(redisClient, "ledger_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	var (
		invalidator ledgerhttp.CacheInvalidator
		jobClient   *jobs.Client
	)
	redisOpts := cfg.Redis().QueueOpt()
	if cfg.JobQueue {
		jobClient, err = jobs.NewClient(redisOpts)
		if err != nil {
			logger.Error("init job client", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := jobClient.Close(); err != nil {
				logger.Warn("job client close", slog.Any("error", err))
			}
		}()
		invalidator = jobClient
	} else {
		invalidator = ledgerhttp.InvalidatorFunc(func(ctx context.Context) error {
			_, err := cache.Bump(ctx)
			return err
		})
	}

	ledgerHandler := ledgerhttp.NewHandler(logger, client, templates, csrfManager, ledgerhttp.Options{
		Formatter:    ui.NewFormatter(cfg.Locale, cfg.CurrencySuffix),
		Avatars:      ui.Avatars{Base: cfg.ImageBase, Placeholder: ui.DefaultAvatars.Placeholder, Size: ui.DefaultAvatars.Size},
		WorkspaceTTL: cfg.WorkspaceTTL,
		Invalidator:  invalidator,
		PanelObserver: func(panel dashboard.PanelID, outcome string) {
			metrics.ObservePanel(string(panel), outcome)
		},
	})

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		Templates:      templates,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,
		LedgerHandler:  ledgerHandler,
		JobHandler:     jobHandler,
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("backend", client.BaseURL()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

func runJobsCommand(ctx context.Context, cfg *app.Config, args []string) int {
	jobsCLI, err := cli.NewJobsCLI(cfg.Redis().QueueOpt())
	if err != nil {
		slog.Default().Error("init jobs cli", slog.Any("error", err))
		return 1
	}
	defer func() { _ = jobsCLI.Close() }()
	return cli.RunJobsCommand(ctx, jobsCLI, args, cli.JobsCommandOptions{})
}
