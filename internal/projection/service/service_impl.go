// Package service assembles financial projections from portfolio data.
package service

import (
	"context"
	"encoding/json"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/rentfolio/rentfolio/internal/clock"
	expensedomain "github.com/rentfolio/rentfolio/internal/expense/domain"
	leasedomain "github.com/rentfolio/rentfolio/internal/lease/domain"
	loandomain "github.com/rentfolio/rentfolio/internal/loan/domain"
	"github.com/rentfolio/rentfolio/internal/projection"
	propertydomain "github.com/rentfolio/rentfolio/internal/property/domain"
)

// PropertyProjection is the full report for one property.
type PropertyProjection struct {
	PropertyID   snowflake.ID                 `json:"property_id"`
	Input        projection.CashflowInput     `json:"input"`
	Projection   projection.Projection        `json:"projection"`
	Amortization []projection.AmortizationRow `json:"amortization,omitempty"`
}

// PortfolioSummary aggregates projections across all properties.
type PortfolioSummary struct {
	Properties      []PropertyProjection `json:"properties"`
	MonthlyCashflow int64                `json:"monthly_cashflow"`
	AnnualNOI       int64                `json:"annual_noi"`
}

type Service interface {
	ProjectProperty(ctx context.Context, orgID, propertyID snowflake.ID, includeSchedule bool) (*PropertyProjection, error)
	ProjectPortfolio(ctx context.Context, orgID snowflake.ID) (*PortfolioSummary, error)
}

type Params struct {
	fx.In

	Log         *zap.Logger
	PropertySvc propertydomain.Service
	LeaseSvc    leasedomain.Service
	LoanSvc     loandomain.Service
	ExpenseSvc  expensedomain.Service
	Clock       clock.Clock
}

type service struct {
	log         *zap.Logger
	propertySvc propertydomain.Service
	leaseSvc    leasedomain.Service
	loanSvc     loandomain.Service
	expenseSvc  expensedomain.Service
	clock       clock.Clock
}

func New(p Params) Service {
	return &service{
		log:         p.Log.Named("projection.service"),
		propertySvc: p.PropertySvc,
		leaseSvc:    p.LeaseSvc,
		loanSvc:     p.LoanSvc,
		expenseSvc:  p.ExpenseSvc,
		clock:       p.Clock,
	}
}

func (s *service) ProjectProperty(ctx context.Context, orgID, propertyID snowflake.ID, includeSchedule bool) (*PropertyProjection, error) {
	property, err := s.propertySvc.Get(ctx, orgID, propertyID)
	if err != nil {
		return nil, err
	}

	leases, err := s.leaseSvc.ListByProperty(ctx, orgID, propertyID)
	if err != nil {
		return nil, err
	}
	loans, err := s.loanSvc.ListByProperty(ctx, orgID, propertyID)
	if err != nil {
		return nil, err
	}
	expenses, err := s.expenseSvc.ListByProperty(ctx, orgID, propertyID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	input := projection.CashflowInput{
		PurchasePrice: property.PurchasePrice,
	}
	for i := range leases {
		if leases[i].ActiveAt(now) {
			input.MonthlyRent += monthlyRent(&leases[i])
		}
	}
	for i := range expenses {
		input.MonthlyOperatingExpenses += expenses[i].MonthlyAmount()
	}
	for i := range loans {
		input.MonthlyDebtService += projection.MonthlyPayment(loans[i].Principal, loans[i].AnnualRateBps, loans[i].TermMonths)
		input.TotalLoanPrincipal += loans[i].Principal
	}

	report := &PropertyProjection{
		PropertyID: propertyID,
		Input:      input,
		Projection: projection.Compute(input),
	}
	if includeSchedule {
		for i := range loans {
			report.Amortization = append(report.Amortization,
				projection.AmortizationSchedule(loans[i].Principal, loans[i].AnnualRateBps, loans[i].TermMonths)...)
		}
	}
	return report, nil
}

func (s *service) ProjectPortfolio(ctx context.Context, orgID snowflake.ID) (*PortfolioSummary, error) {
	properties, err := s.propertySvc.List(ctx, orgID)
	if err != nil {
		return nil, err
	}

	summary := &PortfolioSummary{}
	for i := range properties {
		report, err := s.ProjectProperty(ctx, orgID, properties[i].ID, false)
		if err != nil {
			return nil, err
		}
		summary.Properties = append(summary.Properties, *report)
		summary.MonthlyCashflow += report.Projection.MonthlyCashflow
		summary.AnnualNOI += report.Projection.AnnualNOI
	}
	return summary, nil
}

// monthlyRent prefers the room-level lines when present; their sum reflects
// actual occupancy better than the headline rent.
func monthlyRent(lease *leasedomain.Lease) int64 {
	if len(lease.RoomRents) > 0 {
		var lines []leasedomain.RoomRent
		if err := json.Unmarshal(lease.RoomRents, &lines); err == nil && len(lines) > 0 {
			var sum int64
			for _, line := range lines {
				sum += line.Rent
			}
			return sum
		}
	}
	return lease.MonthlyRent
}
