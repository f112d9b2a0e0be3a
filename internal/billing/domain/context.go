package domain

import "context"

type checkKey struct{}

type checkValue struct {
	record  *BillingRecord
	verdict Verdict
}

// WithCheck stores an already-evaluated record and verdict in the context so
// downstream quota checks reuse them instead of re-reading the store.
func WithCheck(ctx context.Context, record *BillingRecord, verdict Verdict) context.Context {
	if record == nil {
		return ctx
	}
	return context.WithValue(ctx, checkKey{}, checkValue{record: record, verdict: verdict})
}

// CheckFromContext returns the record and verdict attached by WithCheck.
func CheckFromContext(ctx context.Context) (*BillingRecord, Verdict, bool) {
	if ctx == nil {
		return nil, Verdict{}, false
	}
	value, ok := ctx.Value(checkKey{}).(checkValue)
	if !ok {
		return nil, Verdict{}, false
	}
	return value.record, value.verdict, true
}
