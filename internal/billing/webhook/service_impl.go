// Package webhook is the ingress layer for provider billing webhooks.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"

	domain "github.com/rentfolio/rentfolio/internal/billing/domain"
	obsmetrics "github.com/rentfolio/rentfolio/internal/observability/metrics"
	"github.com/rentfolio/rentfolio/pkg/telemetry/correlation"
)

// Registry maps provider names to their webhook adapters.
type Registry struct {
	adapters map[string]domain.WebhookAdapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: map[string]domain.WebhookAdapter{}}
}

func (r *Registry) Register(provider string, adapter domain.WebhookAdapter) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" || adapter == nil {
		return
	}
	r.adapters[provider] = adapter
}

func (r *Registry) Adapter(provider string) (domain.WebhookAdapter, bool) {
	if r == nil {
		return nil, false
	}
	adapter, ok := r.adapters[strings.ToLower(strings.TrimSpace(provider))]
	return adapter, ok
}

type Params struct {
	fx.In

	Log        *zap.Logger
	BillingSvc domain.Service
	Adapters   *Registry
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log        *zap.Logger
	billingSvc domain.Service
	adapters   *Registry
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) domain.WebhookService {
	return &Service{
		log:        p.Log.Named("billing.webhook"),
		billingSvc: p.BillingSvc,
		adapters:   p.Adapters,
		obsMetrics: p.ObsMetrics,
	}
}

// IngestWebhook verifies, parses, and reconciles one webhook delivery.
// Ignored event types are swallowed so the provider sees a 2xx and stops
// retrying payloads the reconciler will never consume.
func (s *Service) IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) error {
	// One correlation ID per delivery ties the ingest and reconcile logs
	// together across retries.
	ctx, cid := correlation.EnsureCorrelationID(ctx)
	log := s.log.With(zap.String("correlation_id", cid))

	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		return domain.ErrInvalidProvider
	}
	adapter, ok := s.adapters.Adapter(provider)
	if !ok {
		return domain.ErrInvalidProvider
	}
	if err := adapter.Verify(ctx, payload, headers); err != nil {
		if s.obsMetrics != nil {
			s.obsMetrics.RecordSignatureFailure(ctx, provider)
		}
		log.Warn("webhook signature verification failed", zap.String("provider", provider))
		return err
	}

	// Body inspection only after the signature proves the sender.
	if !json.Valid(payload) {
		return domain.ErrInvalidPayload
	}

	event, err := adapter.Parse(ctx, payload)
	if err != nil {
		if errors.Is(err, domain.ErrEventIgnored) {
			return nil
		}
		return err
	}
	event.Provider = provider
	if event.RawPayload == nil {
		event.RawPayload = payload
	}

	return s.billingSvc.Reconcile(ctx, event)
}
