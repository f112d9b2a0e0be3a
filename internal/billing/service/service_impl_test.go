package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/rentfolio/rentfolio/internal/billing/catalog"
	domain "github.com/rentfolio/rentfolio/internal/billing/domain"
	billingrepo "github.com/rentfolio/rentfolio/internal/billing/repository"
	billingservice "github.com/rentfolio/rentfolio/internal/billing/service"
	"github.com/rentfolio/rentfolio/internal/clock"
	"github.com/rentfolio/rentfolio/internal/config"
)

type fakeProvider struct {
	subscriptions map[string]*domain.ExternalSubscription
	err           error
}

func (p *fakeProvider) Subscription(ctx context.Context, id string) (*domain.ExternalSubscription, error) {
	if p.err != nil {
		return nil, p.err
	}
	sub, ok := p.subscriptions[id]
	if !ok {
		return nil, errors.New("no such subscription")
	}
	return sub, nil
}

func (p *fakeProvider) CreateCheckoutSession(ctx context.Context, req domain.CheckoutSessionRequest) (string, error) {
	return "https://checkout.example/" + req.PriceID, nil
}

func (p *fakeProvider) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	return "https://portal.example/" + customerID, nil
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.BillingRecord{}, &domain.EventRecord{}))
	return db
}

func newTestService(t *testing.T, db *gorm.DB, provider *fakeProvider, clk clock.Clock) *billingservice.Service {
	t.Helper()
	node, err := snowflake.NewNode(7)
	require.NoError(t, err)

	cfg := config.Config{}
	cfg.Billing.GraceDays = 7
	cfg.Billing.SuccessURL = "/billing/success"
	cfg.Billing.CancelURL = "/billing/cancel"
	cfg.Billing.PortalReturnURL = "/billing"

	return billingservice.NewService(billingservice.Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Repo:     billingrepo.Provide(),
		Catalog:  catalog.NewStatic(zap.NewNop(), nil),
		Provider: provider,
		Clock:    clk,
		Config:   cfg,
	})
}

func checkoutEvent(orgID snowflake.ID, eventID, subscriptionID string) *domain.LifecycleEvent {
	return &domain.LifecycleEvent{
		Provider:        "stripe",
		ProviderEventID: eventID,
		Kind:            domain.EventCheckoutCompleted,
		OrgID:           orgID,
		CustomerID:      "cus_123",
		SubscriptionID:  subscriptionID,
		PaymentStatus:   "paid",
		RawPayload:      []byte(`{"id":"` + eventID + `"}`),
	}
}

func soloSubscription(status string) *domain.ExternalSubscription {
	return &domain.ExternalSubscription{
		ID:         "sub_123",
		CustomerID: "cus_123",
		Status:     status,
		PriceID:    "price_solo_monthly",
	}
}

func TestReconcileCheckoutCompleted(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	provider := &fakeProvider{subscriptions: map[string]*domain.ExternalSubscription{
		"sub_123": soloSubscription("active"),
	}}
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	svc := newTestService(t, db, provider, clk)
	orgID := snowflake.ID(1001)

	require.NoError(t, svc.Reconcile(ctx, checkoutEvent(orgID, "evt_1", "sub_123")))

	record, err := svc.Record(ctx, orgID)
	require.NoError(t, err)
	assert.Equal(t, domain.PlanSolo, record.Plan)
	assert.Equal(t, domain.StatusActive, record.Status)
	assert.Equal(t, 10, record.PropertyLimit)
	assert.Equal(t, 1, record.SeatLimit)
	require.NotNil(t, record.ExternalCustomerID)
	assert.Equal(t, "cus_123", *record.ExternalCustomerID)
	require.NotNil(t, record.ExternalSubscriptionID)
	assert.Equal(t, "sub_123", *record.ExternalSubscriptionID)
	assert.Nil(t, record.GraceUntil)
}

func TestReconcileRedeliveryIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	provider := &fakeProvider{subscriptions: map[string]*domain.ExternalSubscription{
		"sub_123": soloSubscription("active"),
	}}
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	svc := newTestService(t, db, provider, clk)
	orgID := snowflake.ID(1002)

	require.NoError(t, svc.Reconcile(ctx, checkoutEvent(orgID, "evt_dup", "sub_123")))
	before, err := svc.Record(ctx, orgID)
	require.NoError(t, err)

	err = svc.Reconcile(ctx, checkoutEvent(orgID, "evt_dup", "sub_123"))
	assert.ErrorIs(t, err, domain.ErrEventAlreadyProcessed)

	after, err := svc.Record(ctx, orgID)
	require.NoError(t, err)
	assert.Equal(t, before.Plan, after.Plan)
	assert.Equal(t, before.Status, after.Status)
	assert.Equal(t, before.PropertyLimit, after.PropertyLimit)
}

func TestReconcilePaymentFailedOpensGraceWindow(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	provider := &fakeProvider{subscriptions: map[string]*domain.ExternalSubscription{
		"sub_123": soloSubscription("active"),
	}}
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clk := clock.NewFakeClock(start)
	svc := newTestService(t, db, provider, clk)
	orgID := snowflake.ID(1003)

	require.NoError(t, svc.Reconcile(ctx, checkoutEvent(orgID, "evt_1", "sub_123")))

	require.NoError(t, svc.Reconcile(ctx, &domain.LifecycleEvent{
		Provider:        "stripe",
		ProviderEventID: "evt_2",
		Kind:            domain.EventInvoicePaymentFailed,
		OrgID:           orgID,
		InvoiceID:       "in_1",
		InvoiceStatus:   "open",
		PaymentError:    "card_declined",
		RawPayload:      []byte(`{"id":"evt_2"}`),
	}))

	record, verdict, err := svc.Check(ctx, orgID)
	require.NoError(t, err)
	assert.True(t, verdict.Allowed)
	assert.Equal(t, domain.ReasonGraceActive, verdict.Reason)
	require.NotNil(t, record.GraceUntil)
	assert.WithinDuration(t, start.Add(7*24*time.Hour), *record.GraceUntil, time.Second)
	require.NotNil(t, record.LastPaymentError)
	assert.Equal(t, "card_declined", *record.LastPaymentError)

	// Merge must not clobber fields the failure event never carried.
	require.NotNil(t, record.ExternalSubscriptionID)
	assert.Equal(t, "sub_123", *record.ExternalSubscriptionID)
	assert.Equal(t, domain.PlanSolo, record.Plan)

	clk.Advance(8 * 24 * time.Hour)
	_, verdict, err = svc.Check(ctx, orgID)
	require.NoError(t, err)
	assert.False(t, verdict.Allowed)
	assert.Equal(t, domain.ReasonPaymentOverdue, verdict.Reason)
}

func TestReconcilePaymentFailedResolvesReferencedSubscription(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	provider := &fakeProvider{subscriptions: map[string]*domain.ExternalSubscription{
		"sub_123": soloSubscription("past_due"),
	}}
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clk := clock.NewFakeClock(start)
	svc := newTestService(t, db, provider, clk)
	orgID := snowflake.ID(1007)

	// Failure arrives as the tenant's very first event. Plan, price and
	// limits must come from the live subscription, not free defaults.
	require.NoError(t, svc.Reconcile(ctx, &domain.LifecycleEvent{
		Provider:        "stripe",
		ProviderEventID: "evt_first_fail",
		Kind:            domain.EventInvoicePaymentFailed,
		OrgID:           orgID,
		SubscriptionID:  "sub_123",
		InvoiceID:       "in_1",
		InvoiceStatus:   "open",
		PaymentError:    "card_declined",
		RawPayload:      []byte(`{"id":"evt_first_fail"}`),
	}))

	record, err := svc.Record(ctx, orgID)
	require.NoError(t, err)
	assert.Equal(t, domain.PlanSolo, record.Plan)
	assert.Equal(t, 10, record.PropertyLimit)
	assert.Equal(t, 1, record.SeatLimit)
	require.NotNil(t, record.PriceID)
	assert.Equal(t, "price_solo_monthly", *record.PriceID)
	require.NotNil(t, record.ExternalSubscriptionID)
	assert.Equal(t, "sub_123", *record.ExternalSubscriptionID)
	assert.Equal(t, domain.StatusPastDue, record.Status)
	require.NotNil(t, record.GraceUntil)
	assert.WithinDuration(t, start.Add(7*24*time.Hour), *record.GraceUntil, time.Second)
}

func TestReconcilePaymentFailedKeepsGraceWhenSubscriptionReadsActive(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	provider := &fakeProvider{subscriptions: map[string]*domain.ExternalSubscription{
		"sub_123": soloSubscription("active"),
	}}
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clk := clock.NewFakeClock(start)
	svc := newTestService(t, db, provider, clk)
	orgID := snowflake.ID(1008)

	require.NoError(t, svc.Reconcile(ctx, &domain.LifecycleEvent{
		Provider:        "stripe",
		ProviderEventID: "evt_fail_active",
		Kind:            domain.EventInvoicePaymentFailed,
		OrgID:           orgID,
		SubscriptionID:  "sub_123",
		InvoiceID:       "in_2",
		InvoiceStatus:   "open",
		PaymentError:    "card_declined",
		RawPayload:      []byte(`{"id":"evt_fail_active"}`),
	}))

	record, err := svc.Record(ctx, orgID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPastDue, record.Status)
	require.NotNil(t, record.GraceUntil)
	require.NotNil(t, record.LastPaymentError)
	assert.Equal(t, "card_declined", *record.LastPaymentError)
}

func TestReconcilePaymentSucceededClearsGrace(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	provider := &fakeProvider{subscriptions: map[string]*domain.ExternalSubscription{
		"sub_123": soloSubscription("active"),
	}}
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	svc := newTestService(t, db, provider, clk)
	orgID := snowflake.ID(1004)

	require.NoError(t, svc.Reconcile(ctx, checkoutEvent(orgID, "evt_1", "sub_123")))
	require.NoError(t, svc.Reconcile(ctx, &domain.LifecycleEvent{
		Provider:        "stripe",
		ProviderEventID: "evt_2",
		Kind:            domain.EventInvoicePaymentFailed,
		OrgID:           orgID,
		PaymentError:    "card_declined",
		RawPayload:      []byte(`{"id":"evt_2"}`),
	}))
	require.NoError(t, svc.Reconcile(ctx, &domain.LifecycleEvent{
		Provider:        "stripe",
		ProviderEventID: "evt_3",
		Kind:            domain.EventInvoicePaymentSucceeded,
		OrgID:           orgID,
		SubscriptionID:  "sub_123",
		InvoiceID:       "in_2",
		InvoiceStatus:   "paid",
		RawPayload:      []byte(`{"id":"evt_3"}`),
	}))

	record, verdict, err := svc.Check(ctx, orgID)
	require.NoError(t, err)
	assert.True(t, verdict.Allowed)
	assert.Equal(t, domain.StatusActive, record.Status)
	assert.Nil(t, record.GraceUntil)
	assert.Nil(t, record.LastPaymentError)
	require.NotNil(t, record.LastInvoiceID)
	assert.Equal(t, "in_2", *record.LastInvoiceID)
}

func TestReconcileSubscriptionDeletedDropsToFree(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	provider := &fakeProvider{subscriptions: map[string]*domain.ExternalSubscription{
		"sub_123": soloSubscription("active"),
	}}
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	svc := newTestService(t, db, provider, clk)
	orgID := snowflake.ID(1005)

	require.NoError(t, svc.Reconcile(ctx, checkoutEvent(orgID, "evt_1", "sub_123")))
	require.NoError(t, svc.Reconcile(ctx, &domain.LifecycleEvent{
		Provider:        "stripe",
		ProviderEventID: "evt_2",
		Kind:            domain.EventInvoicePaymentFailed,
		OrgID:           orgID,
		RawPayload:      []byte(`{"id":"evt_2"}`),
	}))
	require.NoError(t, svc.Reconcile(ctx, &domain.LifecycleEvent{
		Provider:        "stripe",
		ProviderEventID: "evt_3",
		Kind:            domain.EventSubscriptionDeleted,
		OrgID:           orgID,
		SubscriptionID:  "sub_123",
		RawPayload:      []byte(`{"id":"evt_3"}`),
	}))

	record, verdict, err := svc.Check(ctx, orgID)
	require.NoError(t, err)
	assert.False(t, verdict.Allowed)
	assert.Equal(t, domain.ReasonCanceled, verdict.Reason)
	assert.Equal(t, domain.PlanFree, record.Plan)
	assert.Equal(t, domain.StatusCanceled, record.Status)
	assert.Equal(t, domain.FreePropertyLimit, record.PropertyLimit)
	assert.Equal(t, domain.FreeSeatLimit, record.SeatLimit)
	assert.Nil(t, record.GraceUntil)
}

func TestReconcileResolvesOrgByCustomerID(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	provider := &fakeProvider{subscriptions: map[string]*domain.ExternalSubscription{
		"sub_123": soloSubscription("past_due"),
	}}
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	svc := newTestService(t, db, provider, clk)
	orgID := snowflake.ID(1006)

	require.NoError(t, svc.Reconcile(ctx, checkoutEvent(orgID, "evt_1", "sub_123")))

	// Subscription update arrives without tenant metadata; only the
	// provider-side customer id links it back.
	require.NoError(t, svc.Reconcile(ctx, &domain.LifecycleEvent{
		Provider:        "stripe",
		ProviderEventID: "evt_2",
		Kind:            domain.EventSubscriptionUpdated,
		CustomerID:      "cus_123",
		SubscriptionID:  "sub_123",
		RawPayload:      []byte(`{"id":"evt_2"}`),
	}))

	record, err := svc.Record(ctx, orgID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPastDue, record.Status)
}

func TestReconcileUnresolvedTenantIsAcked(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	provider := &fakeProvider{}
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	svc := newTestService(t, db, provider, clk)

	err := svc.Reconcile(ctx, &domain.LifecycleEvent{
		Provider:        "stripe",
		ProviderEventID: "evt_orphan",
		Kind:            domain.EventSubscriptionUpdated,
		CustomerID:      "cus_unknown",
		SubscriptionID:  "sub_unknown",
		RawPayload:      []byte(`{"id":"evt_orphan"}`),
	})
	require.NoError(t, err)

	// The delivery is recorded and processed, and redelivery dedups.
	err = svc.Reconcile(ctx, &domain.LifecycleEvent{
		Provider:        "stripe",
		ProviderEventID: "evt_orphan",
		Kind:            domain.EventSubscriptionUpdated,
		CustomerID:      "cus_unknown",
		SubscriptionID:  "sub_unknown",
		RawPayload:      []byte(`{"id":"evt_orphan"}`),
	})
	assert.ErrorIs(t, err, domain.ErrEventAlreadyProcessed)
}

func TestReconcileProviderLookupFailureRetries(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	provider := &fakeProvider{err: errors.New("stripe down")}
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	svc := newTestService(t, db, provider, clk)
	orgID := snowflake.ID(1007)

	err := svc.Reconcile(ctx, checkoutEvent(orgID, "evt_1", "sub_123"))
	assert.ErrorIs(t, err, domain.ErrUpstreamLookup)

	// Event stays unprocessed, so a redelivery succeeds once the provider
	// recovers.
	provider.err = nil
	provider.subscriptions = map[string]*domain.ExternalSubscription{
		"sub_123": soloSubscription("active"),
	}
	require.NoError(t, svc.Reconcile(ctx, checkoutEvent(orgID, "evt_1", "sub_123")))

	record, err := svc.Record(ctx, orgID)
	require.NoError(t, err)
	assert.Equal(t, domain.PlanSolo, record.Plan)
}

func TestReconcileCheckoutUnpaidIsSkipped(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	provider := &fakeProvider{}
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	svc := newTestService(t, db, provider, clk)
	orgID := snowflake.ID(1008)

	event := checkoutEvent(orgID, "evt_1", "sub_123")
	event.PaymentStatus = "unpaid"
	require.NoError(t, svc.Reconcile(ctx, event))

	record, err := svc.Record(ctx, orgID)
	require.NoError(t, err)
	assert.Equal(t, domain.PlanFree, record.Plan)
}

func TestRecordSynthesizesFreeDefault(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	svc := newTestService(t, db, &fakeProvider{}, clk)

	record, verdict, err := svc.Check(ctx, snowflake.ID(9999))
	require.NoError(t, err)
	assert.True(t, verdict.Allowed)
	assert.Equal(t, domain.PlanFree, record.Plan)
	assert.Equal(t, domain.FreePropertyLimit, record.PropertyLimit)
	assert.Equal(t, domain.FreeSeatLimit, record.SeatLimit)
}

func TestCreateCheckoutSessionRejectsUnknownPrice(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	svc := newTestService(t, db, &fakeProvider{}, clk)

	_, err := svc.CreateCheckoutSession(ctx, snowflake.ID(1), "price_bogus")
	assert.Error(t, err)

	url, err := svc.CreateCheckoutSession(ctx, snowflake.ID(1), "price_solo_monthly")
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.example/price_solo_monthly", url)
}

func TestCreatePortalSessionRequiresCustomer(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	provider := &fakeProvider{subscriptions: map[string]*domain.ExternalSubscription{
		"sub_123": soloSubscription("active"),
	}}
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	svc := newTestService(t, db, provider, clk)
	orgID := snowflake.ID(1009)

	_, err := svc.CreatePortalSession(ctx, orgID)
	assert.ErrorIs(t, err, domain.ErrNoExternalCustomer)

	require.NoError(t, svc.Reconcile(ctx, checkoutEvent(orgID, "evt_1", "sub_123")))

	url, err := svc.CreatePortalSession(ctx, orgID)
	require.NoError(t, err)
	assert.Equal(t, "https://portal.example/cus_123", url)
}
