// Package domain contains core types for property loans.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Loan is an amortizing mortgage on a property. Principal is cents, the
// rate is annual basis points (350 = 3.50%).
type Loan struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID         snowflake.ID `gorm:"not null;index" json:"org_id"`
	PropertyID    snowflake.ID `gorm:"not null;index" json:"property_id"`
	Name          string       `gorm:"type:text;not null" json:"name"`
	Principal     int64        `gorm:"not null" json:"principal"`
	AnnualRateBps int          `gorm:"not null" json:"annual_rate_bps"`
	TermMonths    int          `gorm:"not null" json:"term_months"`
	StartDate     time.Time    `gorm:"not null" json:"start_date"`
	CreatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Loan) TableName() string { return "loans" }

type Service interface {
	Create(ctx context.Context, orgID snowflake.ID, req CreateLoanRequest) (*Loan, error)
	Get(ctx context.Context, orgID, id snowflake.ID) (*Loan, error)
	ListByProperty(ctx context.Context, orgID, propertyID snowflake.ID) ([]Loan, error)
	List(ctx context.Context, orgID snowflake.ID) ([]Loan, error)
	Delete(ctx context.Context, orgID, id snowflake.ID) error
}

type CreateLoanRequest struct {
	PropertyID    snowflake.ID `json:"property_id"`
	Name          string       `json:"name"`
	Principal     int64        `json:"principal"`
	AnnualRateBps int          `json:"annual_rate_bps"`
	TermMonths    int          `json:"term_months"`
	StartDate     time.Time    `json:"start_date"`
}

var (
	ErrInvalidLoan  = errors.New("invalid loan")
	ErrLoanNotFound = errors.New("loan not found")
)
