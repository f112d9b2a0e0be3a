package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository persists billing records and webhook event records.
type Repository interface {
	// Get returns the billing record for a tenant, or nil when the tenant
	// has never been written (the implicit free record).
	Get(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (*BillingRecord, error)

	// MergeSet applies a partial update atomically, creating the record on
	// first write. Fields absent from the patch are preserved. The caller
	// supplies the updated_at timestamp so time stays clock-driven.
	MergeSet(ctx context.Context, db *gorm.DB, orgID snowflake.ID, patch RecordPatch, now time.Time) error

	// FindOrgByExternalCustomer resolves a tenant from the provider-side
	// customer id. Returns 0 when no record references the customer.
	FindOrgByExternalCustomer(ctx context.Context, db *gorm.DB, customerID string) (snowflake.ID, error)

	InsertEvent(ctx context.Context, db *gorm.DB, event *EventRecord) (bool, error)
	FindEvent(ctx context.Context, db *gorm.DB, provider, providerEventID string) (*EventRecord, error)
	MarkProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, processedAt time.Time) error
}
