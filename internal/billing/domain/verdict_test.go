package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEvaluateNilRecordAllows(t *testing.T) {
	verdict := Evaluate(nil, time.Now())
	assert.True(t, verdict.Allowed)
	assert.Empty(t, verdict.Reason)
}

func TestEvaluateActiveAndTrialingAllow(t *testing.T) {
	now := time.Now().UTC()
	for _, status := range []Status{StatusActive, StatusTrialing} {
		record := &BillingRecord{Status: status}
		verdict := Evaluate(record, now)
		assert.True(t, verdict.Allowed, string(status))
	}
}

func TestEvaluateCanceledBlocksRegardlessOfGrace(t *testing.T) {
	now := time.Now().UTC()
	future := now.Add(72 * time.Hour)
	record := &BillingRecord{Status: StatusCanceled, GraceUntil: &future}

	verdict := Evaluate(record, now)
	assert.False(t, verdict.Allowed)
	assert.Equal(t, ReasonCanceled, verdict.Reason)
}

func TestEvaluateGraceWindowBoundary(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	graceUntil := now.Add(7 * 24 * time.Hour)
	record := &BillingRecord{Status: StatusPastDue, GraceUntil: &graceUntil}

	inside := Evaluate(record, graceUntil.Add(-time.Second))
	assert.True(t, inside.Allowed)
	assert.Equal(t, ReasonGraceActive, inside.Reason)
	assert.Equal(t, &graceUntil, inside.GraceUntil)

	atBoundary := Evaluate(record, graceUntil)
	assert.True(t, atBoundary.Allowed)

	expired := Evaluate(record, graceUntil.Add(time.Second))
	assert.False(t, expired.Allowed)
	assert.Equal(t, ReasonPaymentOverdue, expired.Reason)
}

func TestEvaluatePastDueWithoutGraceBlocks(t *testing.T) {
	record := &BillingRecord{Status: StatusUnpaid}
	verdict := Evaluate(record, time.Now().UTC())
	assert.False(t, verdict.Allowed)
	assert.Equal(t, ReasonPaymentOverdue, verdict.Reason)
}

func TestEvaluateUnknownStatusFailsClosed(t *testing.T) {
	record := &BillingRecord{Status: Status("incomplete_expired")}
	verdict := Evaluate(record, time.Now().UTC())
	assert.False(t, verdict.Allowed)
	assert.Equal(t, ReasonUnknownStatus, verdict.Reason)
}
