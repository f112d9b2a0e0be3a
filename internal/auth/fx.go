// Package auth wires authentication.
package auth

import (
	"go.uber.org/fx"

	"github.com/rentfolio/rentfolio/internal/auth/repository"
	"github.com/rentfolio/rentfolio/internal/auth/service"
)

var Module = fx.Module("auth",
	fx.Provide(repository.New),
	fx.Provide(service.New),
)
