package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCalculateTDSRoundsWithCeiling(t *testing.T) {
	// 51 * 10% = 5.1, ceiling gives 6 (never 5).
	res := CalculateTDS(d("51"), d("10"), true)
	require.True(t, res.TDSAmount.Equal(d("6")), "got %s", res.TDSAmount)
	require.True(t, res.ExactTDS.Equal(d("5.1")))
	require.True(t, res.PayableAmount.Equal(d("45")))
	require.True(t, res.IsRounded)
}

func TestCalculateTDSExact(t *testing.T) {
	res := CalculateTDS(d("51"), d("10"), false)
	require.True(t, res.TDSAmount.Equal(d("5.1")))
	require.True(t, res.PayableAmount.Equal(d("45.9")))
	require.False(t, res.IsRounded)
}

func TestCalculateTDSScenario(t *testing.T) {
	res := CalculateTDS(d("1000"), d("10"), true)
	require.True(t, res.TDSAmount.Equal(d("100")))
	require.True(t, res.PayableAmount.Equal(d("900")))
	require.False(t, res.IsRounded, "integral exact value is not a rounding")
}

func TestCalculateTDSInvalidInputIsNoop(t *testing.T) {
	cases := []struct {
		name   string
		amount string
		pct    string
	}{
		{"negative amount", "-10", "5"},
		{"negative pct", "100", "-1"},
		{"pct above hundred", "100", "100.01"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := CalculateTDS(d(tc.amount), d(tc.pct), true)
			require.True(t, res.TDSAmount.IsZero())
			require.True(t, res.ExactTDS.IsZero())
			require.True(t, res.PayableAmount.Equal(d(tc.amount)))
			require.False(t, res.IsRounded)
		})
	}
}

func TestCalculateTDSBoundaries(t *testing.T) {
	res := CalculateTDS(d("250"), d("100"), true)
	require.True(t, res.TDSAmount.Equal(d("250")))
	require.True(t, res.PayableAmount.IsZero())

	res = CalculateTDS(d("250.75"), d("0"), true)
	require.True(t, res.TDSAmount.IsZero())
	require.True(t, res.PayableAmount.Equal(d("250.75")))
}

func TestCalculateTDSCeilingProperty(t *testing.T) {
	amounts := []string{"0", "0.01", "1", "99.99", "100", "1234.56", "99999.99"}
	pcts := []string{"0", "0.5", "1", "2", "7.5", "10", "33.33", "100"}
	for _, a := range amounts {
		for _, p := range pcts {
			amount, pct := d(a), d(p)
			rounded := CalculateTDS(amount, pct, true)
			exact := CalculateTDS(amount, pct, false)
			want := amount.Mul(pct).Div(hundred).Ceil()
			require.True(t, rounded.TDSAmount.Equal(want), "amount=%s pct=%s got %s want %s", a, p, rounded.TDSAmount, want)
			require.True(t, rounded.TDSAmount.GreaterThanOrEqual(exact.TDSAmount))
			if exact.TDSAmount.Equal(exact.TDSAmount.Truncate(0)) {
				require.True(t, rounded.TDSAmount.Equal(exact.TDSAmount))
				require.False(t, rounded.IsRounded)
			}
		}
	}
}

func TestRemainingBalanceClampsAtZero(t *testing.T) {
	require.True(t, RemainingBalance(d("1000"), d("400")).Equal(d("600")))
	require.True(t, RemainingBalance(d("900"), d("900")).IsZero())
	require.True(t, RemainingBalance(d("900"), d("950")).IsZero())
	for _, paid := range []string{"0", "1", "500", "1000.01", "99999"} {
		require.False(t, RemainingBalance(d("1000"), d(paid)).IsNegative())
	}
}

func TestSum(t *testing.T) {
	require.True(t, Sum().IsZero())
	require.True(t, Sum(d("400"), d("500"), d("0.5")).Equal(d("900.5")))
}
