// Package authorization enforces role-based access over organization-scoped
// resources.
package authorization

import (
	"context"
	"errors"

	"go.uber.org/fx"
)

type Service interface {
	// Authorize checks whether the actor may perform action on object
	// within the given organization. Returns ErrForbidden on denial.
	Authorize(ctx context.Context, actor string, orgID string, object string, action string) error
}

var (
	ErrForbidden           = errors.New("forbidden")
	ErrInvalidActor        = errors.New("invalid actor")
	ErrInvalidOrganization = errors.New("invalid organization")
	ErrInvalidObject       = errors.New("invalid object")
	ErrInvalidAction       = errors.New("invalid action")
)

var Module = fx.Module("authorization",
	fx.Provide(
		NewEnforcer,
		NewService,
	),
)
