// Package service implements billing reconciliation and access checks.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/rentfolio/rentfolio/internal/billing/catalog"
	domain "github.com/rentfolio/rentfolio/internal/billing/domain"
	"github.com/rentfolio/rentfolio/internal/clock"
	"github.com/rentfolio/rentfolio/internal/config"
	obsmetrics "github.com/rentfolio/rentfolio/internal/observability/metrics"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Repo       domain.Repository
	Catalog    *catalog.Catalog
	Provider   domain.ProviderClient
	Clock      clock.Clock
	Config     config.Config
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	repo       domain.Repository
	catalog    *catalog.Catalog
	provider   domain.ProviderClient
	clock      clock.Clock
	cfg        config.Config
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) *Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("billing.service"),
		genID:      p.GenID,
		repo:       p.Repo,
		catalog:    p.Catalog,
		provider:   p.Provider,
		clock:      p.Clock,
		cfg:        p.Config,
		obsMetrics: p.ObsMetrics,
	}
}

// Reconcile applies one subscription-lifecycle event to the tenant's billing
// record. Deliveries are deduplicated by (provider, provider_event_id), and
// handlers re-fetch the provider's live subscription before writing, so
// redelivery and reordering both converge to the same record.
func (s *Service) Reconcile(ctx context.Context, event *domain.LifecycleEvent) error {
	if event == nil {
		return domain.ErrInvalidEvent
	}
	event.Provider = strings.ToLower(strings.TrimSpace(event.Provider))
	if event.Provider == "" {
		return domain.ErrInvalidProvider
	}
	event.ProviderEventID = strings.TrimSpace(event.ProviderEventID)
	if event.ProviderEventID == "" || event.Kind == "" {
		return domain.ErrInvalidEvent
	}
	if len(event.RawPayload) > 0 && !json.Valid(event.RawPayload) {
		return domain.ErrInvalidPayload
	}

	now := s.clock.Now()
	received := domain.EventRecord{
		ID:              s.genID.Generate(),
		OrgID:           event.OrgID,
		Provider:        event.Provider,
		ProviderEventID: event.ProviderEventID,
		EventKind:       event.Kind,
		Payload:         datatypes.JSON(event.RawPayload),
		ReceivedAt:      now,
	}

	inserted, err := s.repo.InsertEvent(ctx, s.db, &received)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	stored := &received
	if !inserted {
		stored, err = s.repo.FindEvent(ctx, s.db, event.Provider, event.ProviderEventID)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
		}
		if stored == nil {
			return domain.ErrInvalidEvent
		}
		if stored.ProcessedAt != nil {
			return domain.ErrEventAlreadyProcessed
		}
	}

	orgID, err := s.resolveOrg(ctx, event)
	if err != nil {
		return err
	}
	if orgID == 0 {
		// Webhooks for customers this deployment never created. Recorded
		// for audit, acknowledged so the provider stops retrying.
		s.log.Warn("billing event references no known tenant",
			zap.String("provider", event.Provider),
			zap.String("provider_event_id", event.ProviderEventID),
			zap.String("customer_id", event.CustomerID),
		)
		if err := s.repo.MarkProcessed(ctx, s.db, stored.ID, s.clock.Now()); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
		}
		return nil
	}
	event.OrgID = orgID

	if err := s.applyEvent(ctx, event); err != nil {
		return err
	}

	if err := s.repo.MarkProcessed(ctx, s.db, stored.ID, s.clock.Now()); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	if inserted && s.obsMetrics != nil {
		s.obsMetrics.RecordBillingEvent(ctx, event.Provider, event.Kind)
	}

	return nil
}

func (s *Service) resolveOrg(ctx context.Context, event *domain.LifecycleEvent) (snowflake.ID, error) {
	if event.OrgID != 0 {
		return event.OrgID, nil
	}
	if event.CustomerID == "" {
		return 0, nil
	}
	orgID, err := s.repo.FindOrgByExternalCustomer(ctx, s.db, event.CustomerID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return orgID, nil
}

func (s *Service) applyEvent(ctx context.Context, event *domain.LifecycleEvent) error {
	switch event.Kind {
	case domain.EventCheckoutCompleted:
		return s.applyCheckoutCompleted(ctx, event)
	case domain.EventSubscriptionCreated, domain.EventSubscriptionUpdated:
		return s.applySubscriptionChange(ctx, event)
	case domain.EventSubscriptionDeleted:
		return s.applySubscriptionDeleted(ctx, event)
	case domain.EventInvoicePaymentSucceeded:
		return s.applyPaymentSucceeded(ctx, event)
	case domain.EventInvoicePaymentFailed:
		return s.applyPaymentFailed(ctx, event)
	default:
		return domain.ErrEventIgnored
	}
}

func (s *Service) applyCheckoutCompleted(ctx context.Context, event *domain.LifecycleEvent) error {
	if event.PaymentStatus != "" && event.PaymentStatus != "paid" {
		s.log.Info("checkout completed without payment, skipping",
			zap.Int64("org_id", int64(event.OrgID)),
			zap.String("payment_status", event.PaymentStatus),
		)
		return nil
	}
	if event.SubscriptionID == "" {
		s.log.Warn("checkout completed without subscription id",
			zap.Int64("org_id", int64(event.OrgID)),
			zap.String("provider_event_id", event.ProviderEventID),
		)
		return nil
	}
	return s.reconcileFromProvider(ctx, event.OrgID, event.SubscriptionID)
}

func (s *Service) applySubscriptionChange(ctx context.Context, event *domain.LifecycleEvent) error {
	if event.SubscriptionID == "" {
		return domain.ErrInvalidEvent
	}
	return s.reconcileFromProvider(ctx, event.OrgID, event.SubscriptionID)
}

// applySubscriptionDeleted drops the tenant back to the free tier. The
// canceled status blocks access regardless of any grace window, so the
// window is cleared rather than left to expire.
func (s *Service) applySubscriptionDeleted(ctx context.Context, event *domain.LifecycleEvent) error {
	plan := domain.PlanFree
	status := domain.StatusCanceled
	propertyLimit := domain.FreePropertyLimit
	seatLimit := domain.FreeSeatLimit

	patch := domain.RecordPatch{
		Plan:            &plan,
		Status:          &status,
		PropertyLimit:   &propertyLimit,
		SeatLimit:       &seatLimit,
		ClearGraceUntil: true,
	}
	if err := s.repo.MergeSet(ctx, s.db, event.OrgID, patch, s.clock.Now()); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *Service) applyPaymentSucceeded(ctx context.Context, event *domain.LifecycleEvent) error {
	patch := domain.RecordPatch{
		ClearGraceUntil:       true,
		ClearLastPaymentError: true,
	}
	if event.InvoiceID != "" {
		patch.LastInvoiceID = &event.InvoiceID
	}
	if event.InvoiceStatus != "" {
		patch.LastInvoiceStatus = &event.InvoiceStatus
	}

	if event.SubscriptionID != "" {
		sub, err := s.provider.Subscription(ctx, event.SubscriptionID)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrUpstreamLookup, err)
		}
		s.fillFromSubscription(&patch, sub)
	} else {
		status := domain.StatusActive
		patch.Status = &status
	}

	if err := s.repo.MergeSet(ctx, s.db, event.OrgID, patch, s.clock.Now()); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *Service) applyPaymentFailed(ctx context.Context, event *domain.LifecycleEvent) error {
	var patch domain.RecordPatch
	if event.SubscriptionID != "" {
		sub, err := s.provider.Subscription(ctx, event.SubscriptionID)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrUpstreamLookup, err)
		}
		s.fillFromSubscription(&patch, sub)
	}

	// The failed invoice is authoritative for access state even when the
	// live subscription still reads active: the tenant works through the
	// grace window, not past it. Plan, price and limits above come from
	// the live object, so a plan change missed earlier lands here too.
	graceUntil := s.clock.Now().Add(time.Duration(s.graceDays()) * 24 * time.Hour)
	status := domain.StatusPastDue
	patch.Status = &status
	patch.GraceUntil = &graceUntil
	patch.ClearGraceUntil = false
	patch.ClearLastPaymentError = false

	if event.InvoiceID != "" {
		patch.LastInvoiceID = &event.InvoiceID
	}
	if event.InvoiceStatus != "" {
		patch.LastInvoiceStatus = &event.InvoiceStatus
	}
	if event.PaymentError != "" {
		patch.LastPaymentError = &event.PaymentError
	}

	if err := s.repo.MergeSet(ctx, s.db, event.OrgID, patch, s.clock.Now()); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// reconcileFromProvider fetches the live subscription and rewrites the
// derived fields from it. Stale trigger payloads cannot regress the record
// because the provider object, not the event, is the source of truth.
func (s *Service) reconcileFromProvider(ctx context.Context, orgID snowflake.ID, subscriptionID string) error {
	sub, err := s.provider.Subscription(ctx, subscriptionID)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUpstreamLookup, err)
	}

	var patch domain.RecordPatch
	s.fillFromSubscription(&patch, sub)

	if err := s.repo.MergeSet(ctx, s.db, orgID, patch, s.clock.Now()); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *Service) fillFromSubscription(patch *domain.RecordPatch, sub *domain.ExternalSubscription) {
	if sub == nil {
		return
	}

	spec := s.catalog.Resolve(sub.PriceID)
	status := domain.Status(sub.Status)

	patch.Plan = &spec.Plan
	patch.Status = &status
	patch.PropertyLimit = &spec.PropertyLimit
	patch.SeatLimit = &spec.SeatLimit
	if sub.PriceID != "" {
		priceID := sub.PriceID
		patch.PriceID = &priceID
	}
	if sub.CustomerID != "" {
		customerID := sub.CustomerID
		patch.ExternalCustomerID = &customerID
	}
	if sub.ID != "" {
		subscriptionID := sub.ID
		patch.ExternalSubscriptionID = &subscriptionID
	}
	if status == domain.StatusActive || status == domain.StatusTrialing || status == domain.StatusCanceled {
		patch.GraceUntil = nil
		patch.ClearGraceUntil = true
	}
	if status == domain.StatusActive || status == domain.StatusTrialing {
		patch.ClearLastPaymentError = true
	}
}

func (s *Service) graceDays() int {
	if s.cfg.Billing.GraceDays > 0 {
		return s.cfg.Billing.GraceDays
	}
	return 7
}

// Record returns the tenant's billing record, synthesizing the free default
// for tenants that never produced a billing event.
func (s *Service) Record(ctx context.Context, orgID snowflake.ID) (*domain.BillingRecord, error) {
	record, err := s.repo.Get(ctx, s.db, orgID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	if record == nil {
		return domain.DefaultRecord(orgID), nil
	}
	return record, nil
}

// Check evaluates the access verdict at the current time. The verdict is
// never cached: a grace window expires between two requests without any
// event arriving.
func (s *Service) Check(ctx context.Context, orgID snowflake.ID) (*domain.BillingRecord, domain.Verdict, error) {
	record, err := s.Record(ctx, orgID)
	if err != nil {
		return nil, domain.Verdict{}, err
	}
	verdict := domain.Evaluate(record, s.clock.Now())
	if !verdict.Allowed && s.obsMetrics != nil {
		s.obsMetrics.RecordVerdictBlocked(ctx, verdict.Reason)
	}
	return record, verdict, nil
}

func (s *Service) CreateCheckoutSession(ctx context.Context, orgID snowflake.ID, priceID string) (string, error) {
	priceID = strings.TrimSpace(priceID)
	if priceID == "" || !s.catalog.Known(priceID) {
		return "", fmt.Errorf("%w: unknown price %q", domain.ErrInvalidEvent, priceID)
	}

	req := domain.CheckoutSessionRequest{
		OrgID:      orgID,
		PriceID:    priceID,
		SuccessURL: s.cfg.Billing.SuccessURL,
		CancelURL:  s.cfg.Billing.CancelURL,
	}

	record, err := s.repo.Get(ctx, s.db, orgID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	if record != nil && record.ExternalCustomerID != nil {
		req.CustomerID = *record.ExternalCustomerID
	}

	url, err := s.provider.CreateCheckoutSession(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUpstreamLookup, err)
	}
	return url, nil
}

func (s *Service) CreatePortalSession(ctx context.Context, orgID snowflake.ID) (string, error) {
	record, err := s.repo.Get(ctx, s.db, orgID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	if record == nil || record.ExternalCustomerID == nil || *record.ExternalCustomerID == "" {
		return "", domain.ErrNoExternalCustomer
	}

	url, err := s.provider.CreatePortalSession(ctx, *record.ExternalCustomerID, s.cfg.Billing.PortalReturnURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUpstreamLookup, err)
	}
	return url, nil
}
