package ap

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/payables/internal/money"
)

// Summarize derives the payment summary of inv from its payments. Only
// approved payments count towards the paid total.
func Summarize(inv Invoice, payments []Payment) PaymentSummary {
	tds := inv.TDS()
	payable := decimal.Max(tds.PayableAmount, decimal.Zero)

	totalPaid := decimal.Zero
	summary := PaymentSummary{
		InvoiceID:     inv.ID,
		InvoiceAmount: inv.Amount,
		TDSAmount:     tds.TDSAmount,
		PayableAmount: payable,
	}
	for _, p := range payments {
		if p.InvoiceID != inv.ID {
			continue
		}
		switch p.Status {
		case PaymentStatusApproved:
			totalPaid = totalPaid.Add(p.AmountPaid)
			summary.PaymentCount++
		case PaymentStatusPending:
			summary.HasPendingPayment = true
		}
	}
	summary.TotalPaid = totalPaid
	summary.RemainingBalance = money.RemainingBalance(payable, totalPaid)
	summary.IsFullyPaid = summary.RemainingBalance.Sign() <= 0
	summary.IsPartiallyPaid = totalPaid.Sign() > 0 && !summary.IsFullyPaid
	return summary
}

// ProjectStatus derives the invoice status from a summary. Statuses not owned
// by the projector are returned unchanged.
func ProjectStatus(current InvoiceStatus, summary PaymentSummary) InvoiceStatus {
	if !current.IsPaymentDerived() {
		return current
	}
	switch {
	case summary.IsFullyPaid:
		return InvoiceStatusPaid
	case summary.TotalPaid.Sign() > 0:
		return InvoiceStatusPartial
	default:
		return InvoiceStatusUnpaid
	}
}
