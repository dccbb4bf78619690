package ap

import "github.com/odyssey-erp/payables/internal/shared"

var (
	ErrInvoiceNotFound      = shared.NewError(shared.KindNotFound, "INVOICE_NOT_FOUND", "Invoice not found")
	ErrPaymentNotFound      = shared.NewError(shared.KindNotFound, "PAYMENT_NOT_FOUND", "Payment not found")
	ErrInvoiceArchived      = shared.NewError(shared.KindInvalidState, "INVOICE_ARCHIVED", "Cannot record payments on an archived invoice")
	ErrInvoiceNotEditable   = shared.NewError(shared.KindInvalidState, "INVOICE_NOT_EDITABLE", "Payments can only be recorded on unpaid, partial or overdue invoices")
	ErrPendingPaymentExists = shared.NewError(shared.KindConflict, "PENDING_PAYMENT_EXISTS", "A payment is already pending approval for this invoice")
	ErrAmountExceedsBalance = shared.NewError(shared.KindValidation, "AMOUNT_EXCEEDS_BALANCE", "Payment amount exceeds remaining balance")
	ErrInvalidAmount        = shared.NewError(shared.KindValidation, "INVALID_AMOUNT", "Payment amount must be greater than zero")
	ErrPaymentNotPending    = shared.NewError(shared.KindInvalidState, "PAYMENT_NOT_PENDING", "Only pending payments can be approved or rejected")
	ErrNotApprover          = shared.NewError(shared.KindUnauthorized, "APPROVER_REQUIRED", "Only admins can approve or reject payments")
	ErrNotAuthenticated     = shared.NewError(shared.KindUnauthorized, "ACTOR_REQUIRED", "An authenticated actor is required")
)
