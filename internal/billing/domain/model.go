// Package domain contains the canonical billing record and access verdict types.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Plan identifies a subscription tier. Semantics are ordinal with free as the floor.
type Plan string

const (
	PlanFree       Plan = "free"
	PlanSolo       Plan = "solo"
	PlanPortfolio  Plan = "portfolio"
	PlanEnterprise Plan = "enterprise"
)

// Status mirrors the external provider's subscription lifecycle states.
// Values outside this set are stored verbatim and fail closed at evaluation.
type Status string

const (
	StatusActive   Status = "active"
	StatusTrialing Status = "trialing"
	StatusPastDue  Status = "past_due"
	StatusUnpaid   Status = "unpaid"
	StatusCanceled Status = "canceled"
)

// Default limits applied to tenants without a paid subscription.
const (
	FreePropertyLimit = 3
	FreeSeatLimit     = 1
)

// BillingRecord is the canonical subscription state for a tenant.
// It is written exclusively by the reconciler; everyone else reads.
type BillingRecord struct {
	OrgID                  snowflake.ID `gorm:"primaryKey" json:"org_id"`
	Plan                   Plan         `gorm:"type:text;not null" json:"plan"`
	Status                 Status       `gorm:"type:text;not null" json:"status"`
	PriceID                *string      `gorm:"type:text" json:"price_id"`
	ExternalCustomerID     *string      `gorm:"type:text;index" json:"external_customer_id"`
	ExternalSubscriptionID *string      `gorm:"type:text;index" json:"external_subscription_id"`
	PropertyLimit          int          `gorm:"not null" json:"property_limit"`
	SeatLimit              int          `gorm:"not null" json:"seat_limit"`
	GraceUntil             *time.Time   `gorm:"column:grace_until" json:"grace_until"`
	LastInvoiceID          *string      `gorm:"type:text" json:"last_invoice_id"`
	LastInvoiceStatus      *string      `gorm:"type:text" json:"last_invoice_status"`
	LastPaymentError       *string      `gorm:"type:text" json:"last_payment_error"`
	UpdatedAt              time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (BillingRecord) TableName() string { return "billing_records" }

// DefaultRecord is the implicit record for tenants that never produced a
// billing event. It is synthesized on read and never persisted as-is.
func DefaultRecord(orgID snowflake.ID) *BillingRecord {
	return &BillingRecord{
		OrgID:         orgID,
		Plan:          PlanFree,
		Status:        StatusActive,
		PropertyLimit: FreePropertyLimit,
		SeatLimit:     FreeSeatLimit,
	}
}

// RecordPatch is a merge-write: nil fields are left untouched, Clear* flags
// null out their column explicitly.
type RecordPatch struct {
	Plan                   *Plan
	Status                 *Status
	PriceID                *string
	ExternalCustomerID     *string
	ExternalSubscriptionID *string
	PropertyLimit          *int
	SeatLimit              *int
	GraceUntil             *time.Time
	ClearGraceUntil        bool
	LastInvoiceID          *string
	LastInvoiceStatus      *string
	LastPaymentError       *string
	ClearLastPaymentError  bool
}

// EventRecord stores every accepted webhook delivery for idempotency and audit.
type EventRecord struct {
	ID              snowflake.ID   `json:"id" gorm:"primaryKey"`
	OrgID           snowflake.ID   `json:"org_id" gorm:"index"`
	Provider        string         `json:"provider" gorm:"type:text;not null;uniqueIndex:ux_billing_events_provider_event,priority:1"`
	ProviderEventID string         `json:"provider_event_id" gorm:"type:text;not null;uniqueIndex:ux_billing_events_provider_event,priority:2"`
	EventKind       string         `json:"event_kind" gorm:"type:text;not null"`
	Payload         datatypes.JSON `json:"payload" gorm:"not null"`
	ReceivedAt      time.Time      `json:"received_at" gorm:"not null"`
	ProcessedAt     *time.Time     `json:"processed_at"`
}

// TableName sets the database table name.
func (EventRecord) TableName() string { return "billing_events" }

// EventKind values accepted by the reconciler.
const (
	EventCheckoutCompleted       = "checkout_completed"
	EventSubscriptionCreated     = "subscription_created"
	EventSubscriptionUpdated     = "subscription_updated"
	EventSubscriptionDeleted     = "subscription_deleted"
	EventInvoicePaymentSucceeded = "invoice_payment_succeeded"
	EventInvoicePaymentFailed    = "invoice_payment_failed"
)

// LifecycleEvent is the canonical subscription-lifecycle event parsed by
// provider adapters. Payload fields are triggers only; the reconciler
// re-fetches authoritative state from the provider before writing.
type LifecycleEvent struct {
	Provider        string
	ProviderEventID string
	Kind            string
	OrgID           snowflake.ID
	CustomerID      string
	SubscriptionID  string
	PriceID         string
	InvoiceID       string
	InvoiceStatus   string
	PaymentStatus   string
	PaymentError    string
	OccurredAt      time.Time
	RawPayload      []byte
}
