package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

// Service reconciles subscription-lifecycle events and answers access checks.
type Service interface {
	// Reconcile applies one lifecycle event. Idempotent per event: handlers
	// re-derive state from the provider's live objects, so redelivery
	// converges to the same record.
	Reconcile(ctx context.Context, event *LifecycleEvent) error

	// Record returns the tenant's billing record, synthesizing the free
	// default when none has been persisted.
	Record(ctx context.Context, orgID snowflake.ID) (*BillingRecord, error)

	// Check loads the record and evaluates the access verdict at the
	// current time.
	Check(ctx context.Context, orgID snowflake.ID) (*BillingRecord, Verdict, error)

	// CreateCheckoutSession starts a provider checkout for a plan upgrade
	// and returns the redirect URL.
	CreateCheckoutSession(ctx context.Context, orgID snowflake.ID, priceID string) (string, error)

	// CreatePortalSession opens the provider's self-serve billing portal.
	CreatePortalSession(ctx context.Context, orgID snowflake.ID) (string, error)
}

// ExternalSubscription is the authoritative subscription object fetched from
// the provider during reconciliation.
type ExternalSubscription struct {
	ID         string
	CustomerID string
	Status     string
	PriceID    string
	Metadata   map[string]string
}

// CheckoutSessionRequest describes a checkout session to create.
type CheckoutSessionRequest struct {
	OrgID      snowflake.ID
	PriceID    string
	CustomerID string
	SuccessURL string
	CancelURL  string
}

// ProviderClient is the request/response surface of the external
// subscription-billing provider.
type ProviderClient interface {
	Subscription(ctx context.Context, id string) (*ExternalSubscription, error)
	CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (string, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
}
