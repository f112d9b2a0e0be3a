// Package organization wires tenant management.
package organization

import (
	"go.uber.org/fx"

	"github.com/rentfolio/rentfolio/internal/organization/repository"
	"github.com/rentfolio/rentfolio/internal/organization/service"
)

var Module = fx.Module("organization",
	fx.Provide(repository.New),
	fx.Provide(service.New),
)
