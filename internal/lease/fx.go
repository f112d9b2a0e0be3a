// Package lease wires lease management.
package lease

import (
	"go.uber.org/fx"

	"github.com/rentfolio/rentfolio/internal/lease/service"
)

var Module = fx.Module("lease",
	fx.Provide(service.New),
)
