package domain

import "time"

// Verdict reasons surfaced to clients.
const (
	ReasonGraceActive    = "Grace period active"
	ReasonPaymentOverdue = "Payment overdue"
	ReasonCanceled       = "Subscription canceled"
	ReasonUnknownStatus  = "Unknown billing status"
)

// Verdict is the access decision for a tenant at a point in time.
type Verdict struct {
	Allowed    bool       `json:"allowed"`
	Reason     string     `json:"reason,omitempty"`
	GraceUntil *time.Time `json:"grace_until,omitempty"`
}

// Evaluate derives the access verdict for a billing record at the given
// instant. Pure function: no I/O, no caching. Callers must re-evaluate on
// every request because grace expiry is time-driven, not event-driven.
//
// Unrecognized statuses block. Absence of certainty is never "allowed".
func Evaluate(record *BillingRecord, now time.Time) Verdict {
	if record == nil {
		// Unprovisioned tenant: free tier, no paid obligation.
		return Verdict{Allowed: true}
	}

	switch record.Status {
	case StatusActive, StatusTrialing:
		return Verdict{Allowed: true}
	case StatusCanceled:
		return Verdict{Allowed: false, Reason: ReasonCanceled}
	case StatusPastDue, StatusUnpaid:
		if record.GraceUntil != nil && !now.After(*record.GraceUntil) {
			return Verdict{Allowed: true, Reason: ReasonGraceActive, GraceUntil: record.GraceUntil}
		}
		return Verdict{Allowed: false, Reason: ReasonPaymentOverdue, GraceUntil: record.GraceUntil}
	default:
		return Verdict{Allowed: false, Reason: ReasonUnknownStatus}
	}
}
