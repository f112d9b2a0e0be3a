// Package billing wires the billing subsystem.
package billing

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/rentfolio/rentfolio/internal/billing/catalog"
	domain "github.com/rentfolio/rentfolio/internal/billing/domain"
	stripeprovider "github.com/rentfolio/rentfolio/internal/billing/provider/stripe"
	"github.com/rentfolio/rentfolio/internal/billing/repository"
	billingservice "github.com/rentfolio/rentfolio/internal/billing/service"
	"github.com/rentfolio/rentfolio/internal/billing/webhook"
	"github.com/rentfolio/rentfolio/internal/config"
)

var Module = fx.Module("billing",
	fx.Provide(repository.Provide),
	fx.Provide(catalog.New),
	fx.Provide(func(cfg config.Config, log *zap.Logger) (domain.ProviderClient, error) {
		return stripeprovider.NewClient(cfg.Billing.APIKey, log), nil
	}),
	fx.Provide(func(cfg config.Config) (*webhook.Registry, error) {
		registry := webhook.NewRegistry()
		adapter, err := stripeprovider.NewAdapter(cfg.Billing.WebhookSecret)
		if err != nil {
			return nil, err
		}
		registry.Register(stripeprovider.Provider, adapter)
		return registry, nil
	}),
	fx.Provide(billingservice.NewService),
	fx.Provide(func(s *billingservice.Service) domain.Service { return s }),
	fx.Provide(webhook.NewService),
)
