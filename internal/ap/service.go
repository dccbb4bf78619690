package ap

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/payables/internal/audit"
	"github.com/odyssey-erp/payables/internal/rbac"
)

const entityPayment = "payment"

// MetricsRecorder observes ledger outcomes.
type MetricsRecorder interface {
	RecordPayment(status string)
}

// Service implements the payment ledger and the invoice status projector.
// The invoice row lock serialises every mutation on one invoice.
type Service struct {
	repo      Repository
	publisher audit.Publisher
	logger    *slog.Logger
	metrics   MetricsRecorder
	now       func() time.Time
	newID     func() uuid.UUID
}

// NewService builds a ledger service. A nil publisher discards events.
func NewService(repo Repository, publisher audit.Publisher, logger *slog.Logger) *Service {
	if publisher == nil {
		publisher = audit.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.New,
	}
}

// SetMetrics wires a metrics recorder.
func (s *Service) SetMetrics(m MetricsRecorder) {
	s.metrics = m
}

// RecordPayment records a payment against an invoice. Approvers get their
// payment auto-approved and projected onto the invoice; anyone else leaves a
// pending payment and the invoice untouched.
func (s *Service) RecordPayment(ctx context.Context, input RecordPaymentInput) (Payment, error) {
	if !input.Actor.Authenticated() {
		return Payment{}, ErrNotAuthenticated
	}
	if input.Amount.Sign() <= 0 {
		return Payment{}, ErrInvalidAmount
	}
	now := s.now().UTC()
	paymentDate := input.PaymentDate
	if paymentDate.IsZero() {
		paymentDate = now
	}

	var (
		payment       Payment
		invoiceStatus InvoiceStatus
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.LockInvoice(ctx, input.InvoiceID)
		if err != nil {
			return err
		}
		if inv.IsArchived {
			return ErrInvoiceArchived
		}
		if !inv.Status.AcceptsPayments() {
			return ErrInvoiceNotEditable
		}
		payments, err := tx.ListPayments(ctx, inv.ID)
		if err != nil {
			return err
		}
		summary := Summarize(inv, payments)
		if summary.HasPendingPayment {
			return ErrPendingPaymentExists
		}
		if input.Amount.GreaterThan(summary.RemainingBalance) {
			return ErrAmountExceedsBalance
		}

		payment = Payment{
			ID:          s.newID(),
			InvoiceID:   inv.ID,
			AmountPaid:  input.Amount,
			PaymentDate: paymentDate,
			Status:      PaymentStatusPending,
			CreatedBy:   input.Actor.ID,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if tds := inv.TDS(); tds.TDSAmount.Sign() > 0 {
			applied := tds.TDSAmount
			payment.TDSAmountApplied = &applied
			payment.TDSRounded = tds.IsRounded
		}
		if input.Actor.CanApprove() {
			approver := input.Actor.ID
			payment.Status = PaymentStatusApproved
			payment.ApprovedBy = &approver
			payment.ApprovedAt = &now
		}
		if err := tx.InsertPayment(ctx, payment); err != nil {
			return err
		}

		invoiceStatus = inv.Status
		if payment.Status == PaymentStatusApproved {
			invoiceStatus, err = projectInvoiceStatus(ctx, tx, inv.ID)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Payment{}, err
	}

	s.observe(payment.Status)
	s.publish(ctx, audit.EventPaymentRecorded, payment, input.Actor, map[string]any{
		"invoice_status": string(invoiceStatus),
	})
	return payment, nil
}

// ApprovePayment approves a pending payment and projects the invoice status.
func (s *Service) ApprovePayment(ctx context.Context, paymentID uuid.UUID, actor rbac.Actor) (Payment, error) {
	if !actor.CanApprove() {
		return Payment{}, ErrNotApprover
	}
	var (
		payment       Payment
		invoiceStatus InvoiceStatus
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		payment, err = s.lockPendingPayment(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		inv, err := tx.LockInvoice(ctx, payment.InvoiceID)
		if err != nil {
			return err
		}
		payments, err := tx.ListPayments(ctx, inv.ID)
		if err != nil {
			return err
		}
		if payment.AmountPaid.GreaterThan(Summarize(inv, payments).RemainingBalance) {
			return ErrAmountExceedsBalance
		}

		now := s.now().UTC()
		approver := actor.ID
		payment.Status = PaymentStatusApproved
		payment.ApprovedBy = &approver
		payment.ApprovedAt = &now
		payment.UpdatedAt = now
		if err := tx.UpdatePayment(ctx, payment); err != nil {
			return err
		}
		invoiceStatus, err = projectInvoiceStatus(ctx, tx, inv.ID)
		return err
	})
	if err != nil {
		return Payment{}, err
	}

	s.observe(payment.Status)
	s.publish(ctx, audit.EventPaymentApproved, payment, actor, map[string]any{
		"invoice_status": string(invoiceStatus),
	})
	return payment, nil
}

// RejectPayment rejects a pending payment. The invoice is not touched.
func (s *Service) RejectPayment(ctx context.Context, input RejectPaymentInput) (Payment, error) {
	if !input.Actor.CanApprove() {
		return Payment{}, ErrNotApprover
	}
	var payment Payment
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		payment, err = s.lockPendingPayment(ctx, tx, input.PaymentID)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		payment.Status = PaymentStatusRejected
		if reason := strings.TrimSpace(input.Reason); reason != "" {
			payment.RejectionReason = &reason
		}
		payment.UpdatedAt = now
		return tx.UpdatePayment(ctx, payment)
	})
	if err != nil {
		return Payment{}, err
	}

	s.observe(payment.Status)
	payload := map[string]any{}
	if payment.RejectionReason != nil {
		payload["reason"] = *payment.RejectionReason
	}
	s.publish(ctx, audit.EventPaymentRejected, payment, input.Actor, payload)
	return payment, nil
}

// Summary returns the payment summary of an invoice.
func (s *Service) Summary(ctx context.Context, invoiceID uuid.UUID) (PaymentSummary, error) {
	inv, err := s.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		return PaymentSummary{}, err
	}
	payments, err := s.repo.ListPayments(ctx, invoiceID)
	if err != nil {
		return PaymentSummary{}, err
	}
	return Summarize(inv, payments), nil
}

// ListPayments lists every payment of an invoice, oldest first.
func (s *Service) ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]Payment, error) {
	if _, err := s.repo.GetInvoice(ctx, invoiceID); err != nil {
		return nil, err
	}
	return s.repo.ListPayments(ctx, invoiceID)
}

// ReprojectInvoice re-runs the projector for an invoice under its row lock.
func (s *Service) ReprojectInvoice(ctx context.Context, invoiceID uuid.UUID, actor rbac.Actor) (InvoiceStatus, error) {
	if !actor.CanApprove() {
		return "", ErrNotApprover
	}
	_, after, err := s.reproject(ctx, invoiceID, actor.ID)
	return after, err
}

// ReprojectReport summarises a sweep.
type ReprojectReport struct {
	Scanned int
	Changed int
	Failed  int
}

// ReprojectAll walks every reprojectable invoice in batches and repairs
// statuses that drifted from the approved payment total. Each invoice runs in
// its own transaction; a failure is logged and counted, and the sweep goes on.
// Events are attributed to the system actor (id 0).
func (s *Service) ReprojectAll(ctx context.Context, batch int) (ReprojectReport, error) {
	if batch <= 0 {
		batch = 200
	}
	var (
		report ReprojectReport
		cursor uuid.UUID
	)
	for {
		ids, err := s.repo.ListReprojectable(ctx, cursor, batch)
		if err != nil {
			return report, err
		}
		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			report.Scanned++
			before, after, err := s.reproject(ctx, id, 0)
			if err != nil {
				report.Failed++
				s.logger.Warn("reproject invoice", slog.String("invoice_id", id.String()), slog.Any("error", err))
				continue
			}
			if before != after {
				report.Changed++
			}
		}
		if len(ids) < batch {
			return report, nil
		}
		cursor = ids[len(ids)-1]
	}
}

func (s *Service) reproject(ctx context.Context, invoiceID uuid.UUID, actorID int64) (InvoiceStatus, InvoiceStatus, error) {
	var (
		before InvoiceStatus
		after  InvoiceStatus
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.LockInvoice(ctx, invoiceID)
		if err != nil {
			return err
		}
		before = inv.Status
		after, err = projectInvoiceStatus(ctx, tx, invoiceID)
		return err
	})
	if err != nil {
		return "", "", err
	}
	if before != after {
		s.publisher.Publish(ctx, audit.Event{
			Name:     audit.EventInvoiceReprojected,
			Entity:   "invoice",
			EntityID: invoiceID.String(),
			ActorID:  actorID,
			Payload:  map[string]any{"from": string(before), "to": string(after)},
		})
	}
	return before, after, nil
}

// lockPendingPayment locks the payment's invoice then the payment, always in
// that order, and checks the payment is still pending.
func (s *Service) lockPendingPayment(ctx context.Context, tx TxRepository, paymentID uuid.UUID) (Payment, error) {
	current, err := tx.GetPayment(ctx, paymentID)
	if err != nil {
		return Payment{}, err
	}
	if _, err := tx.LockInvoice(ctx, current.InvoiceID); err != nil {
		return Payment{}, err
	}
	payment, err := tx.LockPayment(ctx, paymentID)
	if err != nil {
		return Payment{}, err
	}
	if payment.Status != PaymentStatusPending {
		return Payment{}, ErrPaymentNotPending
	}
	return payment, nil
}

// projectInvoiceStatus recomputes the invoice status from the payments
// visible in tx and writes it when it changed. It is idempotent.
func projectInvoiceStatus(ctx context.Context, tx TxRepository, invoiceID uuid.UUID) (InvoiceStatus, error) {
	inv, err := tx.LockInvoice(ctx, invoiceID)
	if err != nil {
		return "", err
	}
	payments, err := tx.ListPayments(ctx, invoiceID)
	if err != nil {
		return "", err
	}
	next := ProjectStatus(inv.Status, Summarize(inv, payments))
	if next == inv.Status {
		return next, nil
	}
	if err := tx.UpdateInvoiceStatus(ctx, invoiceID, next); err != nil {
		return "", err
	}
	return next, nil
}

func (s *Service) observe(status PaymentStatus) {
	if s.metrics != nil {
		s.metrics.RecordPayment(string(status))
	}
}

func (s *Service) publish(ctx context.Context, name string, p Payment, actor rbac.Actor, extra map[string]any) {
	payload := map[string]any{
		"invoice_id": p.InvoiceID.String(),
		"amount":     p.AmountPaid.String(),
		"status":     string(p.Status),
		"created_by": p.CreatedBy,
	}
	for k, v := range extra {
		payload[k] = v
	}
	s.publisher.Publish(ctx, audit.Event{
		Name:     name,
		Entity:   entityPayment,
		EntityID: p.ID.String(),
		ActorID:  actor.ID,
		Payload:  payload,
	})
}
