// Package money holds the withholding tax (TDS) and balance arithmetic used by
// the payment ledger. All functions are pure.
package money

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// TDSResult is the outcome of a TDS calculation.
type TDSResult struct {
	TDSAmount     decimal.Decimal
	PayableAmount decimal.Decimal
	ExactTDS      decimal.Decimal
	IsRounded     bool
}

// CalculateTDS computes the tax deducted at source on invoiceAmount.
//
// Out-of-range input (negative amount, percentage outside 0..100) is a no-op:
// the payable amount equals the invoice amount and nothing is withheld. When
// roundUp is set the withheld amount is the ceiling of the exact value.
func CalculateTDS(invoiceAmount, tdsPercentage decimal.Decimal, roundUp bool) TDSResult {
	if invoiceAmount.IsNegative() || tdsPercentage.IsNegative() || tdsPercentage.GreaterThan(hundred) {
		return TDSResult{
			TDSAmount:     decimal.Zero,
			PayableAmount: invoiceAmount,
			ExactTDS:      decimal.Zero,
		}
	}
	exact := invoiceAmount.Mul(tdsPercentage).Div(hundred)
	tds := exact
	if roundUp {
		tds = exact.Ceil()
	}
	return TDSResult{
		TDSAmount:     tds,
		PayableAmount: invoiceAmount.Sub(tds),
		ExactTDS:      exact,
		IsRounded:     roundUp && !tds.Equal(exact),
	}
}

// RemainingBalance is payable minus paid, clamped at zero.
func RemainingBalance(payableAmount, totalPaid decimal.Decimal) decimal.Decimal {
	remaining := payableAmount.Sub(totalPaid)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

// Sum adds amounts.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
