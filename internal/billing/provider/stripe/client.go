package stripe

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	portalsession "github.com/stripe/stripe-go/v82/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/subscription"
	"go.uber.org/zap"

	domain "github.com/rentfolio/rentfolio/internal/billing/domain"
)

// Client is the live Stripe API surface used by the reconciler. Webhook
// payloads only trigger reconciliation; this client fetches the objects
// the billing record is derived from.
type Client struct {
	log *zap.Logger
}

// NewClient configures the stripe-go library and returns the API client.
func NewClient(apiKey string, log *zap.Logger) *Client {
	stripe.Key = apiKey
	return &Client{log: log.Named("billing.stripe")}
}

func (c *Client) Subscription(ctx context.Context, id string) (*domain.ExternalSubscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	sub, err := subscription.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("stripe: get subscription %s: %w", id, err)
	}

	ext := &domain.ExternalSubscription{
		ID:       sub.ID,
		Status:   string(sub.Status),
		Metadata: sub.Metadata,
	}
	if sub.Customer != nil {
		ext.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		ext.PriceID = sub.Items.Data[0].Price.ID
	}
	return ext, nil
}

func (c *Client) CreateCheckoutSession(ctx context.Context, req domain.CheckoutSessionRequest) (string, error) {
	metadata := map[string]string{"org_id": req.OrgID.String()}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(req.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.OrgID.String()),
		Metadata:          metadata,
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: metadata,
		},
	}
	params.Context = ctx
	if req.CustomerID != "" {
		params.Customer = stripe.String(req.CustomerID)
	}

	sess, err := checkoutsession.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe: create checkout session: %w", err)
	}

	c.log.Info("created checkout session",
		zap.String("session_id", sess.ID),
		zap.String("org_id", req.OrgID.String()),
		zap.String("price_id", req.PriceID),
	)
	return sess.URL, nil
}

func (c *Client) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx

	sess, err := portalsession.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe: create portal session: %w", err)
	}
	return sess.URL, nil
}
