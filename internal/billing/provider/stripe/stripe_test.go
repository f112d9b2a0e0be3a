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
	"testing"
	"time"

	domain "github.com/rentfolio/rentfolio/internal/billing/domain"
)

func buildSignatureHeader(secret string, payload []byte, timestamp int64) string {
	signedPayload := fmt.Sprintf("%d.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(signedPayload))
	return fmt.Sprintf("t=%d,v1=%s", timestamp, hex.EncodeToString(mac.Sum(nil)))
}

func TestVerifySignature(t *testing.T) {
	secret := "whsec_test"
	payload := []byte(`{"id":"evt_123","type":"customer.subscription.updated","data":{"object":{}}}`)
	timestamp := time.Now().Unix()

	adapter, err := NewAdapter(secret)
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}

	reqHeader := http.Header{}
	reqHeader.Set("Stripe-Signature", buildSignatureHeader(secret, payload, timestamp))
	if err := adapter.Verify(context.Background(), payload, reqHeader); err != nil {
		t.Fatalf("expected valid signature, got error: %v", err)
	}

	reqHeader.Set("Stripe-Signature", buildSignatureHeader("wrong", payload, timestamp))
	if err := adapter.Verify(context.Background(), payload, reqHeader); !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("expected invalid signature error, got %v", err)
	}

	reqHeader.Del("Stripe-Signature")
	if err := adapter.Verify(context.Background(), payload, reqHeader); !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("expected invalid signature error for missing header, got %v", err)
	}
}

func TestParseCheckoutSessionCompleted(t *testing.T) {
	event := map[string]any{
		"id":      "evt_checkout",
		"type":    "checkout.session.completed",
		"created": time.Now().Unix(),
		"data": map[string]any{
			"object": map[string]any{
				"id":             "cs_1",
				"customer":       "cus_9",
				"subscription":   "sub_9",
				"payment_status": "paid",
				"metadata":       map[string]any{"org_id": "1234"},
			},
		},
	}
	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	adapter, _ := NewAdapter("whsec_test")
	parsed, err := adapter.Parse(context.Background(), payload)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if parsed.Kind != domain.EventCheckoutCompleted {
		t.Fatalf("expected checkout_completed, got %s", parsed.Kind)
	}
	if parsed.OrgID != 1234 {
		t.Fatalf("expected org id 1234, got %d", parsed.OrgID)
	}
	if parsed.CustomerID != "cus_9" || parsed.SubscriptionID != "sub_9" {
		t.Fatalf("unexpected ids: %s %s", parsed.CustomerID, parsed.SubscriptionID)
	}
	if parsed.PaymentStatus != "paid" {
		t.Fatalf("expected payment status paid, got %s", parsed.PaymentStatus)
	}
}

func TestParseSubscriptionEvents(t *testing.T) {
	tests := []struct {
		stripeType string
		wantKind   string
	}{
		{"customer.subscription.created", domain.EventSubscriptionCreated},
		{"customer.subscription.updated", domain.EventSubscriptionUpdated},
		{"customer.subscription.deleted", domain.EventSubscriptionDeleted},
	}

	adapter, _ := NewAdapter("whsec_test")
	for _, tt := range tests {
		t.Run(tt.stripeType, func(t *testing.T) {
			event := map[string]any{
				"id":   "evt_sub",
				"type": tt.stripeType,
				"data": map[string]any{
					"object": map[string]any{
						"id":       "sub_1",
						"customer": "cus_1",
						"status":   "active",
						"items": map[string]any{
							"data": []any{
								map[string]any{"price": map[string]any{"id": "price_solo_monthly"}},
							},
						},
					},
				},
			}
			payload, err := json.Marshal(event)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}

			parsed, err := adapter.Parse(context.Background(), payload)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if parsed.Kind != tt.wantKind {
				t.Fatalf("expected %s, got %s", tt.wantKind, parsed.Kind)
			}
			if parsed.SubscriptionID != "sub_1" || parsed.PriceID != "price_solo_monthly" {
				t.Fatalf("unexpected subscription fields: %+v", parsed)
			}
		})
	}
}

func TestParseInvoiceEvents(t *testing.T) {
	adapter, _ := NewAdapter("whsec_test")

	event := map[string]any{
		"id":   "evt_inv",
		"type": "invoice.payment_failed",
		"data": map[string]any{
			"object": map[string]any{
				"id":           "in_1",
				"customer":     "cus_1",
				"subscription": "sub_1",
				"status":       "open",
				"last_finalization_error": map[string]any{
					"code":    "card_declined",
					"message": "Your card was declined.",
				},
			},
		},
	}
	payload, _ := json.Marshal(event)

	parsed, err := adapter.Parse(context.Background(), payload)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.Kind != domain.EventInvoicePaymentFailed {
		t.Fatalf("expected invoice_payment_failed, got %s", parsed.Kind)
	}
	if parsed.InvoiceID != "in_1" || parsed.InvoiceStatus != "open" {
		t.Fatalf("unexpected invoice fields: %+v", parsed)
	}
	if parsed.PaymentError != "Your card was declined." {
		t.Fatalf("unexpected payment error: %s", parsed.PaymentError)
	}

	event["type"] = "invoice.payment_succeeded"
	payload, _ = json.Marshal(event)
	parsed, err = adapter.Parse(context.Background(), payload)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.Kind != domain.EventInvoicePaymentSucceeded {
		t.Fatalf("expected invoice_payment_succeeded, got %s", parsed.Kind)
	}
	if parsed.PaymentError != "" {
		t.Fatalf("success must not carry a payment error, got %q", parsed.PaymentError)
	}
}

func TestParseIgnoresUnknownEventTypes(t *testing.T) {
	adapter, _ := NewAdapter("whsec_test")
	payload := []byte(`{"id":"evt_x","type":"customer.created","data":{"object":{}}}`)

	_, err := adapter.Parse(context.Background(), payload)
	if !errors.Is(err, domain.ErrEventIgnored) {
		t.Fatalf("expected event ignored, got %v", err)
	}
}

func TestParseRejectsMalformedPayload(t *testing.T) {
	adapter, _ := NewAdapter("whsec_test")

	if _, err := adapter.Parse(context.Background(), []byte("not json")); !errors.Is(err, domain.ErrInvalidPayload) {
		t.Fatalf("expected invalid payload, got %v", err)
	}
	if _, err := adapter.Parse(context.Background(), []byte(`{"type":"checkout.session.completed"}`)); !errors.Is(err, domain.ErrInvalidEvent) {
		t.Fatalf("expected invalid event, got %v", err)
	}
}
