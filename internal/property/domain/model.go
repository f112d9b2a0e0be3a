// Package domain contains core types for properties.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Property is one rental object in a tenant's portfolio. Money is stored
// in cents.
type Property struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID         snowflake.ID `gorm:"not null;index" json:"org_id"`
	Name          string       `gorm:"type:text;not null" json:"name"`
	Address       string       `gorm:"type:text;not null" json:"address"`
	City          string       `gorm:"type:text" json:"city"`
	PostalCode    string       `gorm:"type:text" json:"postal_code"`
	PurchasePrice int64        `gorm:"not null;default:0" json:"purchase_price"`
	PurchaseDate  *time.Time   `json:"purchase_date"`
	Units         int          `gorm:"not null;default:1" json:"units"`
	Notes         string       `gorm:"type:text" json:"notes"`
	CreatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Property) TableName() string { return "properties" }

type Service interface {
	// Create enforces the tenant's property limit from the billing record.
	Create(ctx context.Context, orgID snowflake.ID, req CreatePropertyRequest) (*Property, error)
	Get(ctx context.Context, orgID, id snowflake.ID) (*Property, error)
	List(ctx context.Context, orgID snowflake.ID) ([]Property, error)
	Update(ctx context.Context, orgID, id snowflake.ID, req UpdatePropertyRequest) (*Property, error)
	Delete(ctx context.Context, orgID, id snowflake.ID) error
}

type CreatePropertyRequest struct {
	Name          string     `json:"name"`
	Address       string     `json:"address"`
	City          string     `json:"city"`
	PostalCode    string     `json:"postal_code"`
	PurchasePrice int64      `json:"purchase_price"`
	PurchaseDate  *time.Time `json:"purchase_date"`
	Units         int        `json:"units"`
	Notes         string     `json:"notes"`
}

type UpdatePropertyRequest struct {
	Name          *string    `json:"name"`
	Address       *string    `json:"address"`
	City          *string    `json:"city"`
	PostalCode    *string    `json:"postal_code"`
	PurchasePrice *int64     `json:"purchase_price"`
	PurchaseDate  *time.Time `json:"purchase_date"`
	Units         *int       `json:"units"`
	Notes         *string    `json:"notes"`
}

var (
	ErrInvalidProperty       = errors.New("invalid property")
	ErrPropertyNotFound      = errors.New("property not found")
	ErrPropertyLimitExceeded = errors.New("property limit exceeded for current plan")
)
