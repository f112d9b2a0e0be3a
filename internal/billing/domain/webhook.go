package domain

import (
	"context"
	"net/http"
)

// WebhookAdapter verifies and parses one provider's webhook deliveries.
type WebhookAdapter interface {
	// Verify checks the delivery's signature against the raw payload.
	Verify(ctx context.Context, payload []byte, headers http.Header) error

	// Parse maps a verified payload to a LifecycleEvent. Event types the
	// reconciler does not consume return ErrEventIgnored.
	Parse(ctx context.Context, payload []byte) (*LifecycleEvent, error)
}

// WebhookService is the ingress surface for provider webhooks.
type WebhookService interface {
	IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) error
}
