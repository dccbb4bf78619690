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
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"

	"github.com/odyssey-erp/payables/internal/ap"
	"github.com/odyssey-erp/payables/internal/app"
	"github.com/odyssey-erp/payables/internal/audit"
	"github.com/odyssey-erp/payables/internal/masterdata"
	"github.com/odyssey-erp/payables/internal/observability"
	"github.com/odyssey-erp/payables/internal/platform/cache"
	"github.com/odyssey-erp/payables/internal/platform/db"
	"github.com/odyssey-erp/payables/internal/rbac"
	"github.com/odyssey-erp/payables/internal/requests"
	"github.com/odyssey-erp/payables/internal/shared"
	"github.com/odyssey-erp/payables/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping server startup")
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

	pool, err := db.New(ctx, cfg.Pool())
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	metrics := observability.NewMetrics()

	// Without redis the API still serves: defaults are read straight from
	// postgres and audit events are written inline by the outbox.
	var (
		lookupCache *cache.Cache
		sink        audit.Sink = audit.StoreSink{Store: shared.NewAuditLogger(pool)}
		jobHandler  *jobs.Handler
	)
	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		logger.Warn("redis unavailable, using direct audit writes", slog.Any("error", err))
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
		lookupCache = cache.NewCache(redisClient, "payables:defaults", cfg.LookupCacheTTL)

		redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, DB: cfg.RedisDB}
		queue := asynq.NewClient(redisOpts)
		defer queue.Close()
		sink = jobs.NewQueueSink(queue, jobs.NewComposer(language.English))

		inspector := asynq.NewInspector(redisOpts)
		defer inspector.Close()
		jobHandler = jobs.NewHandler(inspector, logger)
	}

	outbox := audit.NewOutbox(sink, logger, audit.OutboxConfig{
		Buffer:   cfg.OutboxBuffer,
		Workers:  cfg.OutboxWorkers,
		Observer: metrics,
	})

	lookup := masterdata.NewCachedLookup(masterdata.NewLookup(pool), lookupCache, logger)
	rbacMiddleware := rbac.Middleware{Logger: logger}

	ledger := ap.NewService(ap.NewRepository(pool), outbox, logger)
	ledger.SetMetrics(metrics)
	authority := requests.NewService(requests.NewRepository(pool), lookup, outbox, logger)
	authority.SetMetrics(metrics)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		LedgerHandler:   ap.NewHandler(logger, ledger, rbacMiddleware),
		RequestsHandler: requests.NewHandler(logger, authority, rbacMiddleware),
		JobHandler:      jobHandler,
		Metrics:         metrics,
		Ready: func(r *http.Request) error {
			return pool.Ping(r.Context())
		},
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	outboxCtx, stopOutbox := context.WithCancel(context.Background())
	var g errgroup.Group
	g.Go(func() error {
		return outbox.Run(outboxCtx)
	})
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			stop()
			return err
		}
		return nil
	})

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
	// The outbox stops after the server so events from in-flight requests
	// are still drained.
	stopOutbox()
	if err := g.Wait(); err != nil {
		logger.Error("http server", slog.Any("error", err))
	}
	stats := outbox.Stats()
	logger.Info("audit outbox stopped",
		slog.Uint64("delivered", stats.Delivered),
		slog.Uint64("failed", stats.Failed),
		slog.Uint64("dropped", stats.Dropped),
	)
}
