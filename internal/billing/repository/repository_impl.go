// Package repository persists billing records and webhook event records.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domain "github.com/rentfolio/rentfolio/internal/billing/domain"
	pkgdb "github.com/rentfolio/rentfolio/pkg/db"
)

type repository struct{}

// Provide returns the gorm-backed billing repository.
func Provide() domain.Repository {
	return &repository{}
}

func (r *repository) Get(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (*domain.BillingRecord, error) {
	var record domain.BillingRecord
	err := db.WithContext(ctx).
		Where("org_id = ?", orgID).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// MergeSet upserts the record in a single statement. The insert side starts
// from the free default so a first write still carries valid limits; the
// conflict side updates only the columns the patch names.
func (r *repository) MergeSet(ctx context.Context, db *gorm.DB, orgID snowflake.ID, patch domain.RecordPatch, now time.Time) error {
	record := domain.DefaultRecord(orgID)
	record.UpdatedAt = now
	applyPatch(record, patch)

	assignments := map[string]interface{}{"updated_at": now}
	if patch.Plan != nil {
		assignments["plan"] = *patch.Plan
	}
	if patch.Status != nil {
		assignments["status"] = *patch.Status
	}
	if patch.PriceID != nil {
		assignments["price_id"] = *patch.PriceID
	}
	if patch.ExternalCustomerID != nil {
		assignments["external_customer_id"] = *patch.ExternalCustomerID
	}
	if patch.ExternalSubscriptionID != nil {
		assignments["external_subscription_id"] = *patch.ExternalSubscriptionID
	}
	if patch.PropertyLimit != nil {
		assignments["property_limit"] = *patch.PropertyLimit
	}
	if patch.SeatLimit != nil {
		assignments["seat_limit"] = *patch.SeatLimit
	}
	if patch.ClearGraceUntil {
		assignments["grace_until"] = gorm.Expr("NULL")
	} else if patch.GraceUntil != nil {
		assignments["grace_until"] = *patch.GraceUntil
	}
	if patch.LastInvoiceID != nil {
		assignments["last_invoice_id"] = *patch.LastInvoiceID
	}
	if patch.LastInvoiceStatus != nil {
		assignments["last_invoice_status"] = *patch.LastInvoiceStatus
	}
	if patch.ClearLastPaymentError {
		assignments["last_payment_error"] = gorm.Expr("NULL")
	} else if patch.LastPaymentError != nil {
		assignments["last_payment_error"] = *patch.LastPaymentError
	}

	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "org_id"}},
			DoUpdates: clause.Assignments(assignments),
		}).
		Create(record).Error
}

func applyPatch(record *domain.BillingRecord, patch domain.RecordPatch) {
	if patch.Plan != nil {
		record.Plan = *patch.Plan
	}
	if patch.Status != nil {
		record.Status = *patch.Status
	}
	if patch.PriceID != nil {
		record.PriceID = patch.PriceID
	}
	if patch.ExternalCustomerID != nil {
		record.ExternalCustomerID = patch.ExternalCustomerID
	}
	if patch.ExternalSubscriptionID != nil {
		record.ExternalSubscriptionID = patch.ExternalSubscriptionID
	}
	if patch.PropertyLimit != nil {
		record.PropertyLimit = *patch.PropertyLimit
	}
	if patch.SeatLimit != nil {
		record.SeatLimit = *patch.SeatLimit
	}
	if patch.ClearGraceUntil {
		record.GraceUntil = nil
	} else if patch.GraceUntil != nil {
		record.GraceUntil = patch.GraceUntil
	}
	if patch.LastInvoiceID != nil {
		record.LastInvoiceID = patch.LastInvoiceID
	}
	if patch.LastInvoiceStatus != nil {
		record.LastInvoiceStatus = patch.LastInvoiceStatus
	}
	if patch.ClearLastPaymentError {
		record.LastPaymentError = nil
	} else if patch.LastPaymentError != nil {
		record.LastPaymentError = patch.LastPaymentError
	}
}

func (r *repository) FindOrgByExternalCustomer(ctx context.Context, db *gorm.DB, customerID string) (snowflake.ID, error) {
	if customerID == "" {
		return 0, nil
	}
	var record domain.BillingRecord
	err := db.WithContext(ctx).
		Select("org_id").
		Where("external_customer_id = ?", customerID).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return record.OrgID, nil
}

// InsertEvent records a webhook delivery. Returns false when the
// (provider, provider_event_id) pair was already recorded.
func (r *repository) InsertEvent(ctx context.Context, db *gorm.DB, event *domain.EventRecord) (bool, error) {
	err := db.WithContext(ctx).Create(event).Error
	if err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *repository) FindEvent(ctx context.Context, db *gorm.DB, provider, providerEventID string) (*domain.EventRecord, error) {
	var event domain.EventRecord
	err := db.WithContext(ctx).
		Where("provider = ? AND provider_event_id = ?", provider, providerEventID).
		First(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *repository) MarkProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, processedAt time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.EventRecord{}).
		Where("id = ?", id).
		Update("processed_at", processedAt).Error
}
