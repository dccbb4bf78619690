package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/payables/internal/ap"
	"github.com/odyssey-erp/payables/internal/audit"
	jobmetrics "github.com/odyssey-erp/payables/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueAudit carries audit_logs writes.
	QueueAudit = "audit"
	// TaskAuditRecord persists one audit event.
	TaskAuditRecord = "audit:record"
	// TaskNotifyDispatch delivers one notification.
	TaskNotifyDispatch = "notify:dispatch"
	// TaskInvoiceReproject sweeps invoices through the status projector.
	TaskInvoiceReproject = "invoice:reproject"
)

// InvoiceReprojectPayload configures one sweep.
type InvoiceReprojectPayload struct {
	BatchSize int `json:"batch_size"`
}

// NewAuditRecordTask constructs an Asynq task carrying evt.
func NewAuditRecordTask(evt audit.Event) (*asynq.Task, error) {
	data, err := json.Marshal(evt)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditRecord, data), nil
}

// NewNotifyTask constructs an Asynq task carrying n.
func NewNotifyTask(n Notification) (*asynq.Task, error) {
	data, err := json.Marshal(n)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNotifyDispatch, data), nil
}

// NewInvoiceReprojectTask constructs the periodic sweep task. It is unique
// for its timeout so overlapping schedules never run two sweeps at once.
func NewInvoiceReprojectTask(batchSize int, timeout time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(InvoiceReprojectPayload{BatchSize: batchSize})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInvoiceReproject, data,
		asynq.Queue(QueueDefault), asynq.MaxRetry(1), asynq.Timeout(timeout), asynq.Unique(timeout)), nil
}

// AuditRecordJob writes audit tasks into audit_logs.
type AuditRecordJob struct {
	store   audit.AuditRecorder
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewAuditRecordJob constructs the job.
func NewAuditRecordJob(store audit.AuditRecorder, logger *slog.Logger, metrics *jobmetrics.Metrics) *AuditRecordJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditRecordJob{store: store, logger: logger, metrics: metrics}
}

// Handle processes TaskAuditRecord tasks.
func (j *AuditRecordJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track(TaskAuditRecord)
	var evt audit.Event
	if err := json.Unmarshal(t.Payload(), &evt); err != nil {
		j.logger.Warn("audit task payload", slog.Any("error", err))
		return tracker.End(fmt.Errorf("decode audit payload: %v: %w", err, asynq.SkipRetry))
	}
	if err := j.store.Record(ctx, audit.ToAuditLog(evt)); err != nil {
		return tracker.End(fmt.Errorf("record audit %s: %w", evt.Name, err))
	}
	return tracker.End(nil)
}

// NotifyJob hands notification tasks to a Notifier.
type NotifyJob struct {
	notifier Notifier
	logger   *slog.Logger
	metrics  *jobmetrics.Metrics
}

// NewNotifyJob constructs the job.
func NewNotifyJob(notifier Notifier, logger *slog.Logger, metrics *jobmetrics.Metrics) *NotifyJob {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = LogNotifier{Logger: logger}
	}
	return &NotifyJob{notifier: notifier, logger: logger, metrics: metrics}
}

// Handle processes TaskNotifyDispatch tasks.
func (j *NotifyJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track(TaskNotifyDispatch)
	var n Notification
	if err := json.Unmarshal(t.Payload(), &n); err != nil {
		j.logger.Warn("notify task payload", slog.Any("error", err))
		return tracker.End(fmt.Errorf("decode notification: %v: %w", err, asynq.SkipRetry))
	}
	if err := j.notifier.Notify(ctx, n); err != nil {
		return tracker.End(fmt.Errorf("notify %s: %w", n.Event, err))
	}
	j.metrics.AddNotification(n.Event)
	return tracker.End(nil)
}

// InvoiceReprojector is satisfied by *ap.Service.
type InvoiceReprojector interface {
	ReprojectAll(ctx context.Context, batch int) (ap.ReprojectReport, error)
}

// InvoiceReprojectJob repairs invoice statuses that drifted from their
// approved payment totals.
type InvoiceReprojectJob struct {
	ledger  InvoiceReprojector
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewInvoiceReprojectJob constructs the job.
func NewInvoiceReprojectJob(ledger InvoiceReprojector, logger *slog.Logger, metrics *jobmetrics.Metrics) *InvoiceReprojectJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &InvoiceReprojectJob{ledger: ledger, logger: logger, metrics: metrics}
}

// Handle processes TaskInvoiceReproject tasks.
func (j *InvoiceReprojectJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track(TaskInvoiceReproject)
	var payload InvoiceReprojectPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			j.logger.Warn("reproject task payload", slog.Any("error", err))
			return tracker.End(fmt.Errorf("decode reproject payload: %v: %w", err, asynq.SkipRetry))
		}
	}
	report, err := j.ledger.ReprojectAll(ctx, payload.BatchSize)
	j.logger.Info("invoice reprojection",
		slog.Int("scanned", report.Scanned),
		slog.Int("changed", report.Changed),
		slog.Int("failed", report.Failed),
	)
	if err != nil {
		return tracker.End(fmt.Errorf("reproject invoices: %w", err))
	}
	if report.Failed > 0 {
		return tracker.End(fmt.Errorf("reproject invoices: %d of %d failed", report.Failed, report.Scanned))
	}
	return tracker.End(nil)
}
