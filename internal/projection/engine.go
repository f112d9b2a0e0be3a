// Package projection computes deterministic financial projections for
// properties. All functions are pure; money is cents, ratios are basis
// points.
package projection

import (
	"math"
)

// AmortizationRow is one month of an annuity loan schedule.
type AmortizationRow struct {
	Month     int   `json:"month"`
	Payment   int64 `json:"payment"`
	Interest  int64 `json:"interest"`
	Principal int64 `json:"principal"`
	Balance   int64 `json:"balance"`
}

// MonthlyPayment returns the fixed annuity payment for a loan. A zero rate
// degenerates to straight-line repayment.
func MonthlyPayment(principal int64, annualRateBps int, termMonths int) int64 {
	if principal <= 0 || termMonths <= 0 {
		return 0
	}
	monthlyRate := float64(annualRateBps) / 10000 / 12
	if monthlyRate == 0 {
		return int64(math.Round(float64(principal) / float64(termMonths)))
	}
	p := float64(principal)
	factor := math.Pow(1+monthlyRate, float64(termMonths))
	payment := p * monthlyRate * factor / (factor - 1)
	return int64(math.Round(payment))
}

// AmortizationSchedule expands a loan into its month-by-month schedule.
// The final payment absorbs rounding drift so the balance lands on zero.
func AmortizationSchedule(principal int64, annualRateBps int, termMonths int) []AmortizationRow {
	if principal <= 0 || termMonths <= 0 {
		return nil
	}

	payment := MonthlyPayment(principal, annualRateBps, termMonths)
	monthlyRate := float64(annualRateBps) / 10000 / 12

	rows := make([]AmortizationRow, 0, termMonths)
	balance := principal
	for month := 1; month <= termMonths; month++ {
		interest := int64(math.Round(float64(balance) * monthlyRate))
		principalPart := payment - interest
		if month == termMonths || principalPart > balance {
			principalPart = balance
			payment = interest + principalPart
		}
		balance -= principalPart
		rows = append(rows, AmortizationRow{
			Month:     month,
			Payment:   payment,
			Interest:  interest,
			Principal: principalPart,
			Balance:   balance,
		})
	}
	return rows
}

// RemainingBalance returns the balance after n payments.
func RemainingBalance(principal int64, annualRateBps int, termMonths, monthsElapsed int) int64 {
	if monthsElapsed <= 0 {
		return principal
	}
	if monthsElapsed >= termMonths {
		return 0
	}
	schedule := AmortizationSchedule(principal, annualRateBps, termMonths)
	return schedule[monthsElapsed-1].Balance
}

// CashflowInput aggregates a property's recurring monthly figures.
type CashflowInput struct {
	MonthlyRent              int64 `json:"monthly_rent"`
	MonthlyOperatingExpenses int64 `json:"monthly_operating_expenses"`
	MonthlyDebtService       int64 `json:"monthly_debt_service"`
	PurchasePrice            int64 `json:"purchase_price"`
	TotalLoanPrincipal       int64 `json:"total_loan_principal"`
}

// Projection is the derived financial picture of a property.
type Projection struct {
	MonthlyCashflow int64 `json:"monthly_cashflow"`
	AnnualCashflow  int64 `json:"annual_cashflow"`
	AnnualNOI       int64 `json:"annual_noi"`
	CapRateBps      int   `json:"cap_rate_bps"`
	CashOnCashBps   int   `json:"cash_on_cash_bps"`
}

// Compute derives the projection. NOI excludes debt service; cap rate
// needs a purchase price and cash-on-cash needs equity in the deal, both
// are zero otherwise.
func Compute(in CashflowInput) Projection {
	monthlyCashflow := in.MonthlyRent - in.MonthlyOperatingExpenses - in.MonthlyDebtService
	annualNOI := (in.MonthlyRent - in.MonthlyOperatingExpenses) * 12

	var capRateBps int
	if in.PurchasePrice > 0 {
		capRateBps = int(math.Round(float64(annualNOI) / float64(in.PurchasePrice) * 10000))
	}

	var cashOnCashBps int
	cashInvested := in.PurchasePrice - in.TotalLoanPrincipal
	if cashInvested > 0 {
		cashOnCashBps = int(math.Round(float64(monthlyCashflow*12) / float64(cashInvested) * 10000))
	}

	return Projection{
		MonthlyCashflow: monthlyCashflow,
		AnnualCashflow:  monthlyCashflow * 12,
		AnnualNOI:       annualNOI,
		CapRateBps:      capRateBps,
		CashOnCashBps:   cashOnCashBps,
	}
}
