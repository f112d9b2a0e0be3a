// Package domain contains core types for property expenses.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Recurrence of an expense.
const (
	RecurrenceOneOff  = "one_off"
	RecurrenceMonthly = "monthly"
	RecurrenceYearly  = "yearly"
)

// ValidRecurrence reports whether r is a known recurrence.
func ValidRecurrence(r string) bool {
	switch r {
	case RecurrenceOneOff, RecurrenceMonthly, RecurrenceYearly:
		return true
	default:
		return false
	}
}

// Expense is a cost booked against a property. Amount is cents; for
// recurring expenses it is the amount per period.
type Expense struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID      snowflake.ID `gorm:"not null;index" json:"org_id"`
	PropertyID snowflake.ID `gorm:"not null;index" json:"property_id"`
	Category   string       `gorm:"type:text;not null" json:"category"`
	Amount     int64        `gorm:"not null" json:"amount"`
	Recurrence string       `gorm:"type:text;not null" json:"recurrence"`
	IncurredOn time.Time    `gorm:"not null" json:"incurred_on"`
	Notes      string       `gorm:"type:text" json:"notes"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Expense) TableName() string { return "expenses" }

// MonthlyAmount normalizes the expense to a per-month figure. One-off
// expenses contribute nothing to recurring cashflow.
func (e *Expense) MonthlyAmount() int64 {
	switch e.Recurrence {
	case RecurrenceMonthly:
		return e.Amount
	case RecurrenceYearly:
		return e.Amount / 12
	default:
		return 0
	}
}

type Service interface {
	Create(ctx context.Context, orgID snowflake.ID, req CreateExpenseRequest) (*Expense, error)
	Get(ctx context.Context, orgID, id snowflake.ID) (*Expense, error)
	ListByProperty(ctx context.Context, orgID, propertyID snowflake.ID) ([]Expense, error)
	List(ctx context.Context, orgID snowflake.ID) ([]Expense, error)
	Delete(ctx context.Context, orgID, id snowflake.ID) error
}

type CreateExpenseRequest struct {
	PropertyID snowflake.ID `json:"property_id"`
	Category   string       `json:"category"`
	Amount     int64        `json:"amount"`
	Recurrence string       `json:"recurrence"`
	IncurredOn time.Time    `json:"incurred_on"`
	Notes      string       `json:"notes"`
}

var (
	ErrInvalidExpense  = errors.New("invalid expense")
	ErrExpenseNotFound = errors.New("expense not found")
)
