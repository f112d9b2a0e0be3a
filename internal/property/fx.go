// Package property wires property management.
package property

import (
	"go.uber.org/fx"

	"github.com/rentfolio/rentfolio/internal/property/repository"
	"github.com/rentfolio/rentfolio/internal/property/service"
)

var Module = fx.Module("property",
	fx.Provide(repository.New),
	fx.Provide(service.New),
)
