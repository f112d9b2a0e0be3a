// Package loan wires loan management.
package loan

import (
	"go.uber.org/fx"

	"github.com/rentfolio/rentfolio/internal/loan/service"
)

var Module = fx.Module("loan",
	fx.Provide(service.New),
)
