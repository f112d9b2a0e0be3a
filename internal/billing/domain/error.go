package domain

import "errors"

var (
	ErrInvalidProvider       = errors.New("invalid payment provider")
	ErrInvalidSignature      = errors.New("invalid webhook signature")
	ErrInvalidPayload        = errors.New("invalid webhook payload")
	ErrInvalidEvent          = errors.New("invalid billing event")
	ErrEventIgnored          = errors.New("billing event ignored")
	ErrEventAlreadyProcessed = errors.New("billing event already processed")
	ErrUnresolvedTenant      = errors.New("billing event references no known tenant")
	ErrNoExternalCustomer    = errors.New("tenant has no billing customer")
	ErrUpstreamLookup        = errors.New("provider lookup failed")
	ErrStoreUnavailable      = errors.New("billing store unavailable")
)
