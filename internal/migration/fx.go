package migration

import (
	"strings"

	"go.uber.org/fx"
	"gorm.io/gorm"

	authdomain "github.com/rentfolio/rentfolio/internal/auth/domain"
	billingdomain "github.com/rentfolio/rentfolio/internal/billing/domain"
	"github.com/rentfolio/rentfolio/internal/config"
	expensedomain "github.com/rentfolio/rentfolio/internal/expense/domain"
	leasedomain "github.com/rentfolio/rentfolio/internal/lease/domain"
	loandomain "github.com/rentfolio/rentfolio/internal/loan/domain"
	organizationdomain "github.com/rentfolio/rentfolio/internal/organization/domain"
	propertydomain "github.com/rentfolio/rentfolio/internal/property/domain"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if strings.EqualFold(cfg.DBType, "postgres") {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return RunMigrations(sqlDB)
		}

		// Non-postgres dialects (sqlite for local development) derive the
		// schema from the models instead.
		return conn.AutoMigrate(
			&authdomain.User{},
			&authdomain.Session{},
			&organizationdomain.Organization{},
			&organizationdomain.OrganizationMember{},
			&billingdomain.BillingRecord{},
			&billingdomain.EventRecord{},
			&propertydomain.Property{},
			&leasedomain.Lease{},
			&loandomain.Loan{},
			&expensedomain.Expense{},
		)
	}),
)
