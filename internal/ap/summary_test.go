package ap

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestSummarizeCountsApprovedOnly(t *testing.T) {
	inv := Invoice{ID: uuid.New(), Amount: dec("1000"), Status: InvoiceStatusPartial}
	payments := []Payment{
		{InvoiceID: inv.ID, AmountPaid: dec("300"), Status: PaymentStatusApproved},
		{InvoiceID: inv.ID, AmountPaid: dec("200"), Status: PaymentStatusRejected},
		{InvoiceID: inv.ID, AmountPaid: dec("100"), Status: PaymentStatusPending},
		{InvoiceID: uuid.New(), AmountPaid: dec("999"), Status: PaymentStatusApproved},
	}
	s := Summarize(inv, payments)
	require.True(t, s.TotalPaid.Equal(dec("300")))
	require.True(t, s.RemainingBalance.Equal(dec("700")))
	require.True(t, s.HasPendingPayment)
	require.True(t, s.IsPartiallyPaid)
	require.False(t, s.IsFullyPaid)
	require.Equal(t, 1, s.PaymentCount)
}

func TestSummarizeClampsOverpayment(t *testing.T) {
	inv := Invoice{ID: uuid.New(), Amount: dec("100"), Status: InvoiceStatusPaid}
	s := Summarize(inv, []Payment{{InvoiceID: inv.ID, AmountPaid: dec("150"), Status: PaymentStatusApproved}})
	require.True(t, s.RemainingBalance.IsZero())
	require.True(t, s.IsFullyPaid)
	require.False(t, s.IsPartiallyPaid)
}

func TestProjectStatus(t *testing.T) {
	unpaid := PaymentSummary{TotalPaid: dec("0"), RemainingBalance: dec("100")}
	partial := PaymentSummary{TotalPaid: dec("40"), RemainingBalance: dec("60")}
	paid := PaymentSummary{TotalPaid: dec("100"), RemainingBalance: dec("0"), IsFullyPaid: true}

	cases := []struct {
		current InvoiceStatus
		summary PaymentSummary
		want    InvoiceStatus
	}{
		{InvoiceStatusUnpaid, unpaid, InvoiceStatusUnpaid},
		{InvoiceStatusUnpaid, partial, InvoiceStatusPartial},
		{InvoiceStatusPartial, paid, InvoiceStatusPaid},
		{InvoiceStatusPaid, partial, InvoiceStatusPartial},
		{InvoiceStatusOverdue, partial, InvoiceStatusPartial},
		{InvoiceStatusOverdue, unpaid, InvoiceStatusUnpaid},
		{InvoiceStatusOverdue, paid, InvoiceStatusPaid},
		{InvoiceStatusPendingApproval, paid, InvoiceStatusPendingApproval},
		{InvoiceStatusOnHold, paid, InvoiceStatusOnHold},
		{InvoiceStatusRejected, partial, InvoiceStatusRejected},
	}
	for _, tc := range cases {
		got := ProjectStatus(tc.current, tc.summary)
		require.Equal(t, tc.want, got, "%s", tc.current)
		require.Equal(t, got, ProjectStatus(got, tc.summary), "projection must be stable for %s", tc.current)
	}
}

func TestInvoiceStatusPredicates(t *testing.T) {
	require.True(t, InvoiceStatusOverdue.AcceptsPayments())
	require.False(t, InvoiceStatusPaid.AcceptsPayments())
	require.True(t, InvoiceStatusPaid.IsPaymentDerived())
	require.False(t, InvoiceStatusOnHold.IsPaymentDerived())
}
