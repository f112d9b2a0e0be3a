package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	domain "github.com/rentfolio/rentfolio/internal/billing/domain"
)

func TestResolveKnownPrice(t *testing.T) {
	c := NewStatic(zap.NewNop(), nil)

	spec := c.Resolve("price_solo_monthly")
	assert.Equal(t, domain.PlanSolo, spec.Plan)
	assert.Equal(t, 10, spec.PropertyLimit)
	assert.Equal(t, 1, spec.SeatLimit)

	spec = c.Resolve("price_portfolio_yearly")
	assert.Equal(t, domain.PlanPortfolio, spec.Plan)
	assert.Equal(t, 50, spec.PropertyLimit)
	assert.Equal(t, 5, spec.SeatLimit)
}

func TestResolveUnknownPriceFallsBackToFree(t *testing.T) {
	c := NewStatic(zap.NewNop(), nil)

	spec := c.Resolve("price_does_not_exist")
	assert.Equal(t, domain.PlanFree, spec.Plan)
	assert.Equal(t, domain.FreePropertyLimit, spec.PropertyLimit)
	assert.Equal(t, domain.FreeSeatLimit, spec.SeatLimit)
}

func TestResolveEmptyPrice(t *testing.T) {
	c := NewStatic(zap.NewNop(), nil)

	spec := c.Resolve("")
	assert.Equal(t, domain.PlanFree, spec.Plan)

	spec = c.Resolve("   ")
	assert.Equal(t, domain.PlanFree, spec.Plan)
}

func TestResolveCustomTable(t *testing.T) {
	c := NewStatic(zap.NewNop(), map[string]PlanSpec{
		"price_custom": {Plan: domain.PlanEnterprise, PropertyLimit: 1000, SeatLimit: 50},
	})

	spec := c.Resolve("price_custom")
	assert.Equal(t, domain.PlanEnterprise, spec.Plan)
	assert.Equal(t, 1000, spec.PropertyLimit)

	assert.False(t, c.Known("price_solo_monthly"))
	assert.True(t, c.Known("price_custom"))
}

func TestPlanLimitsTravelTogether(t *testing.T) {
	c := NewStatic(zap.NewNop(), nil)
	for _, id := range c.PriceIDs() {
		spec := c.Resolve(id)
		assert.NotEqual(t, domain.PlanFree, spec.Plan, "configured price %s must not map to free", id)
		assert.Greater(t, spec.PropertyLimit, 0, id)
		assert.Greater(t, spec.SeatLimit, 0, id)
	}
}
