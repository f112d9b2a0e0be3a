package webhook_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	domain "github.com/rentfolio/rentfolio/internal/billing/domain"
	"github.com/rentfolio/rentfolio/internal/billing/webhook"
)

type fakeAdapter struct {
	verifyErr error
	parseErr  error
	event     *domain.LifecycleEvent
}

func (a *fakeAdapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	return a.verifyErr
}

func (a *fakeAdapter) Parse(ctx context.Context, payload []byte) (*domain.LifecycleEvent, error) {
	if a.parseErr != nil {
		return nil, a.parseErr
	}
	return a.event, nil
}

type fakeBillingService struct {
	reconciled []*domain.LifecycleEvent
}

func (s *fakeBillingService) Reconcile(ctx context.Context, event *domain.LifecycleEvent) error {
	s.reconciled = append(s.reconciled, event)
	return nil
}

func (s *fakeBillingService) Record(ctx context.Context, orgID snowflake.ID) (*domain.BillingRecord, error) {
	return nil, nil
}

func (s *fakeBillingService) Check(ctx context.Context, orgID snowflake.ID) (*domain.BillingRecord, domain.Verdict, error) {
	return nil, domain.Verdict{}, nil
}

func (s *fakeBillingService) CreateCheckoutSession(ctx context.Context, orgID snowflake.ID, priceID string) (string, error) {
	return "", nil
}

func (s *fakeBillingService) CreatePortalSession(ctx context.Context, orgID snowflake.ID) (string, error) {
	return "", nil
}

func newIngress(adapter domain.WebhookAdapter, billingSvc domain.Service) domain.WebhookService {
	registry := webhook.NewRegistry()
	registry.Register("stripe", adapter)
	return webhook.NewService(webhook.Params{
		Log:        zap.NewNop(),
		BillingSvc: billingSvc,
		Adapters:   registry,
	})
}

func TestIngestWebhookReconcilesParsedEvent(t *testing.T) {
	billingSvc := &fakeBillingService{}
	adapter := &fakeAdapter{event: &domain.LifecycleEvent{
		ProviderEventID: "evt_1",
		Kind:            domain.EventSubscriptionUpdated,
	}}
	svc := newIngress(adapter, billingSvc)

	err := svc.IngestWebhook(context.Background(), "stripe", []byte(`{"id":"evt_1"}`), http.Header{})
	require.NoError(t, err)
	require.Len(t, billingSvc.reconciled, 1)
	assert.Equal(t, "stripe", billingSvc.reconciled[0].Provider)
	assert.NotNil(t, billingSvc.reconciled[0].RawPayload)
}

func TestIngestWebhookRejectsBadSignature(t *testing.T) {
	billingSvc := &fakeBillingService{}
	adapter := &fakeAdapter{verifyErr: domain.ErrInvalidSignature}
	svc := newIngress(adapter, billingSvc)

	err := svc.IngestWebhook(context.Background(), "stripe", []byte(`{}`), http.Header{})
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)
	assert.Empty(t, billingSvc.reconciled)
}

func TestIngestWebhookSwallowsIgnoredEvents(t *testing.T) {
	billingSvc := &fakeBillingService{}
	adapter := &fakeAdapter{parseErr: domain.ErrEventIgnored}
	svc := newIngress(adapter, billingSvc)

	err := svc.IngestWebhook(context.Background(), "stripe", []byte(`{}`), http.Header{})
	assert.NoError(t, err)
	assert.Empty(t, billingSvc.reconciled)
}

func TestIngestWebhookUnknownProvider(t *testing.T) {
	svc := newIngress(&fakeAdapter{}, &fakeBillingService{})

	err := svc.IngestWebhook(context.Background(), "paypal", []byte(`{}`), http.Header{})
	assert.ErrorIs(t, err, domain.ErrInvalidProvider)
}

func TestIngestWebhookRejectsInvalidJSON(t *testing.T) {
	svc := newIngress(&fakeAdapter{}, &fakeBillingService{})

	err := svc.IngestWebhook(context.Background(), "stripe", []byte("not json"), http.Header{})
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)
}

func TestIngestWebhookVerifiesBeforeTouchingBody(t *testing.T) {
	svc := newIngress(&fakeAdapter{verifyErr: domain.ErrInvalidSignature}, &fakeBillingService{})

	// An unsigned garbage body fails on the signature, never the payload.
	err := svc.IngestWebhook(context.Background(), "stripe", []byte("not json"), http.Header{})
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)
}
