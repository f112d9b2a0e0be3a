// Package catalog maps external price identifiers to internal plans and limits.
package catalog

import (
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	domain "github.com/rentfolio/rentfolio/internal/billing/domain"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// PlanSpec is one row of the plan table. Plan and limits always travel
// together; callers must never mix rows.
type PlanSpec struct {
	Plan          domain.Plan `mapstructure:"plan"`
	PropertyLimit int         `mapstructure:"propertyLimit"`
	SeatLimit     int         `mapstructure:"seatLimit"`
}

// FreeSpec is the fail-safe default for null or unrecognized price ids.
func FreeSpec() PlanSpec {
	return PlanSpec{
		Plan:          domain.PlanFree,
		PropertyLimit: domain.FreePropertyLimit,
		SeatLimit:     domain.FreeSeatLimit,
	}
}

func defaultTable() map[string]PlanSpec {
	return map[string]PlanSpec{
		"price_solo_monthly":       {Plan: domain.PlanSolo, PropertyLimit: 10, SeatLimit: 1},
		"price_solo_yearly":        {Plan: domain.PlanSolo, PropertyLimit: 10, SeatLimit: 1},
		"price_portfolio_monthly":  {Plan: domain.PlanPortfolio, PropertyLimit: 50, SeatLimit: 5},
		"price_portfolio_yearly":   {Plan: domain.PlanPortfolio, PropertyLimit: 50, SeatLimit: 5},
		"price_enterprise_monthly": {Plan: domain.PlanEnterprise, PropertyLimit: 500, SeatLimit: 25},
		"price_enterprise_yearly":  {Plan: domain.PlanEnterprise, PropertyLimit: 500, SeatLimit: 25},
	}
}

// Catalog resolves price ids to plan specs. The table is loadable from a
// plans.yml and hot-reloaded on change; compiled defaults apply otherwise.
type Catalog struct {
	log     *zap.Logger
	current atomic.Value // holds map[string]PlanSpec
}

// New loads the catalog from plans.yml when present, falling back to the
// compiled defaults.
func New(log *zap.Logger) (*Catalog, error) {
	c := &Catalog{log: log.Named("billing.catalog")}
	c.current.Store(defaultTable())

	v := viper.New()
	v.SetConfigName("plans")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/rentfolio")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		return c, nil
	}

	table, err := unmarshalTable(v)
	if err != nil {
		return nil, err
	}
	c.current.Store(table)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := unmarshalTable(v)
		if err != nil {
			c.log.Warn("plan catalog reload failed", zap.String("file", e.Name), zap.Error(err))
			return
		}
		c.current.Store(updated)
		c.log.Info("plan catalog reloaded", zap.String("file", e.Name))
	})

	return c, nil
}

// NewStatic builds a catalog from a fixed table. Used in tests.
func NewStatic(log *zap.Logger, table map[string]PlanSpec) *Catalog {
	c := &Catalog{log: log}
	if table == nil {
		table = defaultTable()
	}
	c.current.Store(table)
	return c
}

func unmarshalTable(v *viper.Viper) (map[string]PlanSpec, error) {
	var table map[string]PlanSpec
	if err := v.UnmarshalKey("prices", &table); err != nil {
		return nil, err
	}
	if len(table) == 0 {
		return defaultTable(), nil
	}
	return table, nil
}

// Resolve maps a price id to its plan spec. Total: every input has a
// defined output, unknown ids fall back to free with a warning so a lagging
// table never turns into a processing failure.
func (c *Catalog) Resolve(priceID string) PlanSpec {
	priceID = strings.TrimSpace(priceID)
	if priceID == "" {
		return FreeSpec()
	}

	table := c.current.Load().(map[string]PlanSpec)
	spec, ok := table[priceID]
	if !ok {
		if c.log != nil {
			c.log.Warn("unrecognized price id, defaulting to free tier", zap.String("price_id", priceID))
		}
		return FreeSpec()
	}
	return spec
}

// Known reports whether the price id is present in the table.
func (c *Catalog) Known(priceID string) bool {
	table := c.current.Load().(map[string]PlanSpec)
	_, ok := table[strings.TrimSpace(priceID)]
	return ok
}

// PriceIDs lists the configured price ids.
func (c *Catalog) PriceIDs() []string {
	table := c.current.Load().(map[string]PlanSpec)
	ids := make([]string, 0, len(table))
	for id := range table {
		ids = append(ids, id)
	}
	return ids
}
