// Package stripe adapts Stripe webhooks and API objects to billing
// lifecycle events.
package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"

	domain "github.com/rentfolio/rentfolio/internal/billing/domain"
)

// Provider is the registry key for this adapter.
const Provider = "stripe"

// Adapter verifies Stripe-Signature headers and parses subscription
// lifecycle events.
type Adapter struct {
	webhookSecret string
}

func NewAdapter(webhookSecret string) (*Adapter, error) {
	webhookSecret = strings.TrimSpace(webhookSecret)
	if webhookSecret == "" {
		return nil, errors.New("stripe: webhook secret is required")
	}
	return &Adapter{webhookSecret: webhookSecret}, nil
}

func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	sigHeader := strings.TrimSpace(headers.Get("Stripe-Signature"))
	if sigHeader == "" {
		return domain.ErrInvalidSignature
	}

	timestamp, signatures, err := parseSignatureHeader(sigHeader)
	if err != nil {
		return domain.ErrInvalidSignature
	}

	signedPayload := fmt.Sprintf("%s.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(a.webhookSecret))
	_, _ = mac.Write([]byte(signedPayload))
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, signature := range signatures {
		if hmac.Equal([]byte(signature), []byte(expected)) {
			return nil
		}
	}

	return domain.ErrInvalidSignature
}

func (a *Adapter) Parse(ctx context.Context, payload []byte) (*domain.LifecycleEvent, error) {
	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if strings.TrimSpace(event.ID) == "" {
		return nil, domain.ErrInvalidEvent
	}

	switch strings.TrimSpace(event.Type) {
	case "checkout.session.completed":
		return a.parseCheckoutSession(event, payload)
	case "customer.subscription.created":
		return a.parseSubscription(event, payload, domain.EventSubscriptionCreated)
	case "customer.subscription.updated":
		return a.parseSubscription(event, payload, domain.EventSubscriptionUpdated)
	case "customer.subscription.deleted":
		return a.parseSubscription(event, payload, domain.EventSubscriptionDeleted)
	case "invoice.payment_succeeded":
		return a.parseInvoice(event, payload, domain.EventInvoicePaymentSucceeded)
	case "invoice.payment_failed":
		return a.parseInvoice(event, payload, domain.EventInvoicePaymentFailed)
	default:
		return nil, domain.ErrEventIgnored
	}
}

type stripeEvent struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Created int64           `json:"created"`
	Data    stripeEventData `json:"data"`
}

type stripeEventData struct {
	Object json.RawMessage `json:"object"`
}

type stripeCheckoutSession struct {
	ID                string            `json:"id"`
	Customer          string            `json:"customer"`
	Subscription      string            `json:"subscription"`
	PaymentStatus     string            `json:"payment_status"`
	ClientReferenceID string            `json:"client_reference_id"`
	Created           int64             `json:"created"`
	Metadata          map[string]string `json:"metadata"`
}

type stripeSubscription struct {
	ID       string             `json:"id"`
	Customer string             `json:"customer"`
	Status   string             `json:"status"`
	Created  int64              `json:"created"`
	Metadata map[string]string  `json:"metadata"`
	Items    stripeItemsWrapper `json:"items"`
}

type stripeItemsWrapper struct {
	Data []stripeSubscriptionItem `json:"data"`
}

type stripeSubscriptionItem struct {
	Price stripePrice `json:"price"`
}

type stripePrice struct {
	ID string `json:"id"`
}

type stripeInvoice struct {
	ID                    string            `json:"id"`
	Customer              string            `json:"customer"`
	Subscription          string            `json:"subscription"`
	Status                string            `json:"status"`
	Created               int64             `json:"created"`
	Metadata              map[string]string `json:"metadata"`
	LastFinalizationError *stripeError      `json:"last_finalization_error"`
}

type stripeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a *Adapter) parseCheckoutSession(event stripeEvent, payload []byte) (*domain.LifecycleEvent, error) {
	var session stripeCheckoutSession
	if err := json.Unmarshal(event.Data.Object, &session); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if strings.TrimSpace(session.ID) == "" {
		return nil, domain.ErrInvalidEvent
	}

	orgID := parseOrgID(session.Metadata, session.ClientReferenceID)
	return &domain.LifecycleEvent{
		Provider:        Provider,
		ProviderEventID: event.ID,
		Kind:            domain.EventCheckoutCompleted,
		OrgID:           orgID,
		CustomerID:      strings.TrimSpace(session.Customer),
		SubscriptionID:  strings.TrimSpace(session.Subscription),
		PaymentStatus:   strings.TrimSpace(session.PaymentStatus),
		OccurredAt:      occurredAt(session.Created, event.Created),
		RawPayload:      payload,
	}, nil
}

func (a *Adapter) parseSubscription(event stripeEvent, payload []byte, kind string) (*domain.LifecycleEvent, error) {
	var sub stripeSubscription
	if err := json.Unmarshal(event.Data.Object, &sub); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if strings.TrimSpace(sub.ID) == "" {
		return nil, domain.ErrInvalidEvent
	}

	var priceID string
	if len(sub.Items.Data) > 0 {
		priceID = sub.Items.Data[0].Price.ID
	}

	return &domain.LifecycleEvent{
		Provider:        Provider,
		ProviderEventID: event.ID,
		Kind:            kind,
		OrgID:           parseOrgID(sub.Metadata, ""),
		CustomerID:      strings.TrimSpace(sub.Customer),
		SubscriptionID:  sub.ID,
		PriceID:         strings.TrimSpace(priceID),
		OccurredAt:      occurredAt(sub.Created, event.Created),
		RawPayload:      payload,
	}, nil
}

func (a *Adapter) parseInvoice(event stripeEvent, payload []byte, kind string) (*domain.LifecycleEvent, error) {
	var invoice stripeInvoice
	if err := json.Unmarshal(event.Data.Object, &invoice); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if strings.TrimSpace(invoice.ID) == "" {
		return nil, domain.ErrInvalidEvent
	}

	var paymentError string
	if invoice.LastFinalizationError != nil {
		paymentError = strings.TrimSpace(invoice.LastFinalizationError.Message)
	}
	if paymentError == "" && kind == domain.EventInvoicePaymentFailed {
		paymentError = "payment failed"
	}
	if kind == domain.EventInvoicePaymentSucceeded {
		paymentError = ""
	}

	return &domain.LifecycleEvent{
		Provider:        Provider,
		ProviderEventID: event.ID,
		Kind:            kind,
		OrgID:           parseOrgID(invoice.Metadata, ""),
		CustomerID:      strings.TrimSpace(invoice.Customer),
		SubscriptionID:  strings.TrimSpace(invoice.Subscription),
		InvoiceID:       invoice.ID,
		InvoiceStatus:   strings.TrimSpace(invoice.Status),
		PaymentError:    paymentError,
		OccurredAt:      occurredAt(invoice.Created, event.Created),
		RawPayload:      payload,
	}, nil
}

// parseOrgID reads the tenant id stamped into checkout metadata. A zero
// return defers resolution to the customer-id lookup in the reconciler.
func parseOrgID(metadata map[string]string, fallback string) snowflake.ID {
	raw := strings.TrimSpace(metadata["org_id"])
	if raw == "" {
		raw = strings.TrimSpace(fallback)
	}
	if raw == "" {
		return 0
	}
	id, err := snowflake.ParseString(raw)
	if err != nil {
		return 0
	}
	return id
}

func parseSignatureHeader(header string) (string, []string, error) {
	parts := strings.Split(header, ",")
	var timestamp string
	signatures := []string{}
	for _, part := range parts {
		piece := strings.TrimSpace(part)
		if piece == "" {
			continue
		}
		keyValue := strings.SplitN(piece, "=", 2)
		if len(keyValue) != 2 {
			continue
		}
		key := strings.TrimSpace(keyValue[0])
		value := strings.TrimSpace(keyValue[1])
		if key == "t" {
			timestamp = value
		}
		if key == "v1" {
			signatures = append(signatures, value)
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return "", nil, errors.New("invalid_signature")
	}
	return timestamp, signatures, nil
}

func occurredAt(primary int64, fallback int64) time.Time {
	value := primary
	if value == 0 {
		value = fallback
	}
	if value == 0 {
		return time.Now().UTC()
	}
	return time.Unix(value, 0).UTC()
}
