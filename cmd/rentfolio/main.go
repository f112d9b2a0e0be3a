package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/rentfolio/rentfolio/internal/auth"
	"github.com/rentfolio/rentfolio/internal/authorization"
	"github.com/rentfolio/rentfolio/internal/billing"
	"github.com/rentfolio/rentfolio/internal/clock"
	"github.com/rentfolio/rentfolio/internal/config"
	"github.com/rentfolio/rentfolio/internal/expense"
	"github.com/rentfolio/rentfolio/internal/lease"
	"github.com/rentfolio/rentfolio/internal/loan"
	"github.com/rentfolio/rentfolio/internal/migration"
	"github.com/rentfolio/rentfolio/internal/observability"
	"github.com/rentfolio/rentfolio/internal/organization"
	projectionservice "github.com/rentfolio/rentfolio/internal/projection/service"
	"github.com/rentfolio/rentfolio/internal/property"
	"github.com/rentfolio/rentfolio/internal/ratelimit"
	"github.com/rentfolio/rentfolio/internal/server"
	"github.com/rentfolio/rentfolio/pkg/db"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		ratelimit.Module,

		// Functional domains
		authorization.Module,
		auth.Module,
		organization.Module,
		billing.Module,
		property.Module,
		lease.Module,
		loan.Module,
		expense.Module,
		projectionservice.Module,

		server.Module,
	)
	app.Run()
}

func registerSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
