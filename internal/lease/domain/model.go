// Package domain contains core types for leases.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Lease is a rental contract on a property. Rent values are cents per
// month. RoomRents carries per-room rent lines for house-share setups;
// when present their sum is the effective monthly rent.
type Lease struct {
	ID          snowflake.ID   `gorm:"primaryKey" json:"id"`
	OrgID       snowflake.ID   `gorm:"not null;index" json:"org_id"`
	PropertyID  snowflake.ID   `gorm:"not null;index" json:"property_id"`
	TenantName  string         `gorm:"type:text;not null" json:"tenant_name"`
	StartDate   time.Time      `gorm:"not null" json:"start_date"`
	EndDate     *time.Time     `json:"end_date"`
	MonthlyRent int64          `gorm:"not null" json:"monthly_rent"`
	Deposit     int64          `gorm:"not null;default:0" json:"deposit"`
	RoomRents   datatypes.JSON `json:"room_rents"`
	CreatedAt   time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Lease) TableName() string { return "leases" }

// RoomRent is one room-level rent line.
type RoomRent struct {
	Room string `json:"room"`
	Rent int64  `json:"rent"`
}

// ActiveAt reports whether the lease covers the given instant.
func (l *Lease) ActiveAt(t time.Time) bool {
	if t.Before(l.StartDate) {
		return false
	}
	return l.EndDate == nil || !t.After(*l.EndDate)
}

type Service interface {
	Create(ctx context.Context, orgID snowflake.ID, req CreateLeaseRequest) (*Lease, error)
	Get(ctx context.Context, orgID, id snowflake.ID) (*Lease, error)
	ListByProperty(ctx context.Context, orgID, propertyID snowflake.ID) ([]Lease, error)
	List(ctx context.Context, orgID snowflake.ID) ([]Lease, error)
	End(ctx context.Context, orgID, id snowflake.ID, endDate time.Time) (*Lease, error)
	Delete(ctx context.Context, orgID, id snowflake.ID) error
}

type CreateLeaseRequest struct {
	PropertyID  snowflake.ID `json:"property_id"`
	TenantName  string       `json:"tenant_name"`
	StartDate   time.Time    `json:"start_date"`
	EndDate     *time.Time   `json:"end_date"`
	MonthlyRent int64        `json:"monthly_rent"`
	Deposit     int64        `json:"deposit"`
	RoomRents   []RoomRent   `json:"room_rents"`
}

var (
	ErrInvalidLease  = errors.New("invalid lease")
	ErrLeaseNotFound = errors.New("lease not found")
)
