package audit

import (
	"context"
	"log/slog"

	"github.com/odyssey-erp/payables/internal/shared"
)

// Sink delivers a single event to its destination (audit table, queue, log).
type Sink interface {
	Record(ctx context.Context, evt Event) error
}

// SinkFunc adapts a function into a Sink.
type SinkFunc func(ctx context.Context, evt Event) error

// Record implements Sink.
func (f SinkFunc) Record(ctx context.Context, evt Event) error {
	return f(ctx, evt)
}

// LogSink writes events to a structured logger.
type LogSink struct {
	Logger *slog.Logger
}

// Record implements Sink.
func (s LogSink) Record(_ context.Context, evt Event) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("audit event",
		slog.String("event", evt.Name),
		slog.String("entity", evt.Entity),
		slog.String("entity_id", evt.EntityID),
		slog.Int64("actor_id", evt.ActorID),
	)
	return nil
}

// AuditRecorder is satisfied by shared.AuditLogger.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// StoreSink persists events as audit_logs rows.
type StoreSink struct {
	Store AuditRecorder
}

// Record implements Sink.
func (s StoreSink) Record(ctx context.Context, evt Event) error {
	return s.Store.Record(ctx, ToAuditLog(evt))
}

// ToAuditLog maps an event onto the audit_logs row shape.
func ToAuditLog(evt Event) shared.AuditLog {
	return shared.AuditLog{
		ActorID:  evt.ActorID,
		Action:   evt.Name,
		Entity:   evt.Entity,
		EntityID: evt.EntityID,
		Meta:     evt.Payload,
		At:       evt.At,
	}
}
