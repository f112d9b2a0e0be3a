package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	domain "github.com/rentfolio/rentfolio/internal/billing/domain"
	"github.com/rentfolio/rentfolio/internal/billing/repository"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.BillingRecord{}, &domain.EventRecord{}))
	return db
}

func strPtr(s string) *string { return &s }

func TestMergeSetCreatesFromFreeDefault(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := repository.Provide()
	orgID := snowflake.ID(42)

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	customer := "cus_1"
	require.NoError(t, repo.MergeSet(ctx, db, orgID, domain.RecordPatch{
		ExternalCustomerID: &customer,
	}, now))

	record, err := repo.Get(ctx, db, orgID)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, domain.PlanFree, record.Plan)
	assert.Equal(t, domain.FreePropertyLimit, record.PropertyLimit)
	require.NotNil(t, record.ExternalCustomerID)
	assert.Equal(t, "cus_1", *record.ExternalCustomerID)
	// updated_at comes from the caller's clock, not the wall clock.
	assert.True(t, record.UpdatedAt.Equal(now))
}

func TestMergeSetPreservesUntouchedFields(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := repository.Provide()
	orgID := snowflake.ID(43)

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	plan := domain.PlanSolo
	status := domain.StatusActive
	propertyLimit := 10
	seatLimit := 1
	require.NoError(t, repo.MergeSet(ctx, db, orgID, domain.RecordPatch{
		Plan:                   &plan,
		Status:                 &status,
		PriceID:                strPtr("price_solo_monthly"),
		ExternalCustomerID:     strPtr("cus_2"),
		ExternalSubscriptionID: strPtr("sub_2"),
		PropertyLimit:          &propertyLimit,
		SeatLimit:              &seatLimit,
	}, now))

	// A later partial write touches only the invoice fields.
	require.NoError(t, repo.MergeSet(ctx, db, orgID, domain.RecordPatch{
		LastInvoiceID:     strPtr("in_1"),
		LastInvoiceStatus: strPtr("paid"),
	}, now.Add(time.Hour)))

	record, err := repo.Get(ctx, db, orgID)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, domain.PlanSolo, record.Plan)
	require.NotNil(t, record.ExternalSubscriptionID)
	assert.Equal(t, "sub_2", *record.ExternalSubscriptionID)
	require.NotNil(t, record.PriceID)
	assert.Equal(t, "price_solo_monthly", *record.PriceID)
	require.NotNil(t, record.LastInvoiceID)
	assert.Equal(t, "in_1", *record.LastInvoiceID)
	assert.True(t, record.UpdatedAt.Equal(now.Add(time.Hour)))
}

func TestMergeSetClearFlags(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := repository.Provide()
	orgID := snowflake.ID(44)

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	graceUntil := now.Add(72 * time.Hour)
	require.NoError(t, repo.MergeSet(ctx, db, orgID, domain.RecordPatch{
		GraceUntil:       &graceUntil,
		LastPaymentError: strPtr("card_declined"),
	}, now))

	require.NoError(t, repo.MergeSet(ctx, db, orgID, domain.RecordPatch{
		ClearGraceUntil:       true,
		ClearLastPaymentError: true,
	}, now.Add(time.Minute)))

	record, err := repo.Get(ctx, db, orgID)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Nil(t, record.GraceUntil)
	assert.Nil(t, record.LastPaymentError)
}

func TestGetReturnsNilForUnknownOrg(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := repository.Provide()

	record, err := repo.Get(ctx, db, snowflake.ID(999))
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestFindOrgByExternalCustomer(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := repository.Provide()
	orgID := snowflake.ID(45)

	require.NoError(t, repo.MergeSet(ctx, db, orgID, domain.RecordPatch{
		ExternalCustomerID: strPtr("cus_find"),
	}, time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)))

	found, err := repo.FindOrgByExternalCustomer(ctx, db, "cus_find")
	require.NoError(t, err)
	assert.Equal(t, orgID, found)

	missing, err := repo.FindOrgByExternalCustomer(ctx, db, "cus_missing")
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(0), missing)
}

func TestInsertEventDeduplicates(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := repository.Provide()

	event := &domain.EventRecord{
		ID:              snowflake.ID(1),
		Provider:        "stripe",
		ProviderEventID: "evt_1",
		EventKind:       domain.EventCheckoutCompleted,
		Payload:         datatypes.JSON([]byte(`{}`)),
		ReceivedAt:      time.Now().UTC(),
	}
	inserted, err := repo.InsertEvent(ctx, db, event)
	require.NoError(t, err)
	assert.True(t, inserted)

	dup := &domain.EventRecord{
		ID:              snowflake.ID(2),
		Provider:        "stripe",
		ProviderEventID: "evt_1",
		EventKind:       domain.EventCheckoutCompleted,
		Payload:         datatypes.JSON([]byte(`{}`)),
		ReceivedAt:      time.Now().UTC(),
	}
	inserted, err = repo.InsertEvent(ctx, db, dup)
	require.NoError(t, err)
	assert.False(t, inserted)

	stored, err := repo.FindEvent(ctx, db, "stripe", "evt_1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, snowflake.ID(1), stored.ID)
	assert.Nil(t, stored.ProcessedAt)

	require.NoError(t, repo.MarkProcessed(ctx, db, stored.ID, time.Now().UTC()))
	stored, err = repo.FindEvent(ctx, db, "stripe", "evt_1")
	require.NoError(t, err)
	require.NotNil(t, stored.ProcessedAt)
}
