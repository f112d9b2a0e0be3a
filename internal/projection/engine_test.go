package projection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonthlyPaymentAnnuity(t *testing.T) {
	// 200k @ 3.5% over 30 years: the textbook annuity is 898.09/month.
	payment := MonthlyPayment(20_000_000, 350, 360)
	assert.Equal(t, int64(89809), payment)
}

func TestMonthlyPaymentZeroRate(t *testing.T) {
	payment := MonthlyPayment(12_000_00, 0, 12)
	assert.Equal(t, int64(100_000), payment)
}

func TestMonthlyPaymentDegenerateInputs(t *testing.T) {
	assert.Zero(t, MonthlyPayment(0, 350, 360))
	assert.Zero(t, MonthlyPayment(1000, 350, 0))
}

func TestAmortizationScheduleLandsOnZero(t *testing.T) {
	schedule := AmortizationSchedule(20_000_000, 350, 360)
	require.Len(t, schedule, 360)

	assert.Zero(t, schedule[359].Balance)

	// First month interest on 200k at 3.5%/12.
	assert.Equal(t, int64(58333), schedule[0].Interest)

	// Balance decreases monotonically.
	for i := 1; i < len(schedule); i++ {
		assert.Less(t, schedule[i].Balance, schedule[i-1].Balance, "month %d", i+1)
	}

	// Principal repaid sums to the loan.
	var total int64
	for _, row := range schedule {
		total += row.Principal
	}
	assert.Equal(t, int64(20_000_000), total)
}

func TestRemainingBalance(t *testing.T) {
	principal := int64(20_000_000)
	assert.Equal(t, principal, RemainingBalance(principal, 350, 360, 0))
	assert.Zero(t, RemainingBalance(principal, 350, 360, 360))

	after12 := RemainingBalance(principal, 350, 360, 12)
	assert.Less(t, after12, principal)
	assert.Greater(t, after12, principal*9/10)
}

func TestComputeProjection(t *testing.T) {
	// Rent 1500, opex 300, debt service 898.09, bought at 250k with a
	// 200k loan.
	projection := Compute(CashflowInput{
		MonthlyRent:              150_000,
		MonthlyOperatingExpenses: 30_000,
		MonthlyDebtService:       89_809,
		PurchasePrice:            25_000_000,
		TotalLoanPrincipal:       20_000_000,
	})

	assert.Equal(t, int64(30_191), projection.MonthlyCashflow)
	assert.Equal(t, int64(362_292), projection.AnnualCashflow)
	assert.Equal(t, int64(1_440_000), projection.AnnualNOI)
	// NOI 14400 / price 250000 = 5.76%
	assert.Equal(t, 576, projection.CapRateBps)
	// Cashflow 3622.92 / equity 50000 = 7.25%
	assert.Equal(t, 725, projection.CashOnCashBps)
}

func TestComputeProjectionWithoutPriceOrEquity(t *testing.T) {
	projection := Compute(CashflowInput{
		MonthlyRent:              100_000,
		MonthlyOperatingExpenses: 20_000,
	})
	assert.Zero(t, projection.CapRateBps)
	assert.Zero(t, projection.CashOnCashBps)
	assert.Equal(t, int64(80_000), projection.MonthlyCashflow)
}
