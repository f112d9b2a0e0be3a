// Package expense wires expense management.
package expense

import (
	"go.uber.org/fx"

	"github.com/rentfolio/rentfolio/internal/expense/service"
)

var Module = fx.Module("expense",
	fx.Provide(service.New),
)
