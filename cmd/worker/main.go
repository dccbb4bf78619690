package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/payables/internal/ap"
	"github.com/odyssey-erp/payables/internal/app"
	"github.com/odyssey-erp/payables/internal/audit"
	jobmetrics "github.com/odyssey-erp/payables/internal/jobs"
	"github.com/odyssey-erp/payables/internal/observability"
	"github.com/odyssey-erp/payables/internal/platform/db"
	"github.com/odyssey-erp/payables/internal/shared"
	"github.com/odyssey-erp/payables/jobs"
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

	pool, err := db.New(ctx, cfg.Pool())
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	metrics := observability.NewMetrics()
	jobMetrics := jobmetrics.NewMetrics(metrics.Registerer())

	auditStore := shared.NewAuditLogger(pool)
	auditJob := jobs.NewAuditRecordJob(auditStore, logger, jobMetrics)
	notifyJob := jobs.NewNotifyJob(jobs.LogNotifier{Logger: logger}, logger, jobMetrics)

	// Sweep events are written straight to audit_logs; the worker does not
	// feed its own queue.
	outbox := audit.NewOutbox(audit.StoreSink{Store: auditStore}, logger, audit.OutboxConfig{
		Buffer:   cfg.OutboxBuffer,
		Workers:  1,
		Observer: metrics,
	})
	ledger := ap.NewService(ap.NewRepository(pool), outbox, logger)
	ledger.SetMetrics(metrics)
	reprojectJob := jobs.NewInvoiceReprojectJob(ledger, logger, jobMetrics)

	var cron []jobs.CronRegistration
	if cfg.ReprojectCron != "" {
		task, err := jobs.NewInvoiceReprojectTask(cfg.ReprojectBatchSize, cfg.ReprojectTimeout)
		if err != nil {
			logger.Error("build reproject task", slog.Any("error", err))
			os.Exit(1)
		}
		cron = append(cron, jobs.CronRegistration{Spec: cfg.ReprojectCron, Task: task})
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr, DB: cfg.RedisDB},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskAuditRecord, Handler: auditJob.Handle},
			{Type: jobs.TaskNotifyDispatch, Handler: notifyJob.Handle},
			{Type: jobs.TaskInvoiceReproject, Handler: reprojectJob.Handle},
		},
		Cron: cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	metricsServer := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: metrics.Handler(), ReadTimeout: cfg.AppReadTimeout}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("worker metrics server", slog.Any("error", err))
		}
	}()
	defer func() { _ = metricsServer.Close() }()

	outboxCtx, stopOutbox := context.WithCancel(context.Background())
	var g errgroup.Group
	g.Go(func() error {
		return outbox.Run(outboxCtx)
	})

	runErr := worker.Run(ctx)
	stopOutbox()
	_ = g.Wait()
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logger.Error("worker run", slog.Any("error", runErr))
		os.Exit(1)
	}
}
