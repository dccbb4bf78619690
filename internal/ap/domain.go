package ap

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/payables/internal/money"
	"github.com/odyssey-erp/payables/internal/rbac"
)

// InvoiceStatus enumerates invoice statuses.
type InvoiceStatus string

const (
	InvoiceStatusPendingApproval InvoiceStatus = "pending_approval"
	InvoiceStatusOnHold          InvoiceStatus = "on_hold"
	InvoiceStatusUnpaid          InvoiceStatus = "unpaid"
	InvoiceStatusPartial         InvoiceStatus = "partial"
	InvoiceStatusPaid            InvoiceStatus = "paid"
	InvoiceStatusOverdue         InvoiceStatus = "overdue"
	InvoiceStatusRejected        InvoiceStatus = "rejected"
)

// AcceptsPayments reports whether new payments may be recorded against the invoice.
func (s InvoiceStatus) AcceptsPayments() bool {
	switch s {
	case InvoiceStatusUnpaid, InvoiceStatusPartial, InvoiceStatusOverdue:
		return true
	}
	return false
}

// IsPaymentDerived reports whether the status is owned by the projector.
func (s InvoiceStatus) IsPaymentDerived() bool {
	switch s {
	case InvoiceStatusUnpaid, InvoiceStatusPartial, InvoiceStatusPaid, InvoiceStatusOverdue:
		return true
	}
	return false
}

// PaymentStatus enumerates payment statuses.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusApproved PaymentStatus = "approved"
	PaymentStatusRejected PaymentStatus = "rejected"
)

// Invoice is the subset of the invoice record the ledger reads and the
// projector writes.
type Invoice struct {
	ID            uuid.UUID
	Number        string
	Amount        decimal.Decimal
	TDSPercentage *decimal.Decimal
	TDSRoundUp    bool
	Status        InvoiceStatus
	IsArchived    bool
	UpdatedAt     time.Time
}

// TDS computes the withholding on the invoice amount.
func (i Invoice) TDS() money.TDSResult {
	pct := decimal.Zero
	if i.TDSPercentage != nil {
		pct = *i.TDSPercentage
	}
	return money.CalculateTDS(i.Amount, pct, i.TDSRoundUp)
}

// Payment is a ledger entry against an invoice.
type Payment struct {
	ID               uuid.UUID
	InvoiceID        uuid.UUID
	AmountPaid       decimal.Decimal
	PaymentDate      time.Time
	Status           PaymentStatus
	TDSAmountApplied *decimal.Decimal
	TDSRounded       bool
	RejectionReason  *string
	CreatedBy        int64
	ApprovedBy       *int64
	ApprovedAt       *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// PaymentSummary is derived from an invoice and its payments; never persisted.
type PaymentSummary struct {
	InvoiceID         uuid.UUID
	InvoiceAmount     decimal.Decimal
	TDSAmount         decimal.Decimal
	PayableAmount     decimal.Decimal
	TotalPaid         decimal.Decimal
	RemainingBalance  decimal.Decimal
	IsFullyPaid       bool
	IsPartiallyPaid   bool
	HasPendingPayment bool
	PaymentCount      int
}

// RecordPaymentInput captures a payment submission.
type RecordPaymentInput struct {
	InvoiceID   uuid.UUID
	Amount      decimal.Decimal
	PaymentDate time.Time
	Actor       rbac.Actor
}

// RejectPaymentInput captures a payment rejection.
type RejectPaymentInput struct {
	PaymentID uuid.UUID
	Reason    string
	Actor     rbac.Actor
}
