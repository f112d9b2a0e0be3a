package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectProperty     = "property"
	ObjectLease        = "lease"
	ObjectLoan         = "loan"
	ObjectExpense      = "expense"
	ObjectProjection   = "projection"
	ObjectBilling      = "billing"
	ObjectOrganization = "organization"
)

const (
	ActionPropertyView   = "property.view"
	ActionPropertyCreate = "property.create"
	ActionPropertyUpdate = "property.update"
	ActionPropertyDelete = "property.delete"

	ActionLeaseView   = "lease.view"
	ActionLeaseCreate = "lease.create"
	ActionLeaseEnd    = "lease.end"
	ActionLeaseDelete = "lease.delete"

	ActionLoanView   = "loan.view"
	ActionLoanCreate = "loan.create"
	ActionLoanDelete = "loan.delete"

	ActionExpenseView   = "expense.view"
	ActionExpenseCreate = "expense.create"
	ActionExpenseDelete = "expense.delete"

	ActionProjectionView = "projection.view"

	ActionBillingView   = "billing.view"
	ActionBillingManage = "billing.manage"

	ActionOrganizationView          = "organization.view"
	ActionOrganizationManageMembers = "organization.manage_members"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	db       *gorm.DB
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	enforcer.BuildRoleLinks()
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		db:       p.DB,
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, actor string, orgID string, object string, action string) error {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return ErrInvalidActor
	}
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return ErrInvalidOrganization
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	subject, roleName, err := s.resolveActor(ctx, actor, orgID)
	if err != nil {
		return err
	}

	domain := fmt.Sprintf("org:%s", orgID)
	if err := s.ensureGrouping(subject, roleName, domain); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(subject, domain, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Debug("authorization denied",
			zap.String("subject", subject),
			zap.String("org_id", orgID),
			zap.String("object", object),
			zap.String("action", action),
		)
		return ErrForbidden
	}
	return nil
}

func (s *ServiceImpl) resolveActor(ctx context.Context, actor string, orgID string) (string, string, error) {
	if !strings.HasPrefix(actor, "user:") {
		return "", "", ErrInvalidActor
	}
	userIDRaw := strings.TrimPrefix(actor, "user:")
	userID, err := snowflake.ParseString(userIDRaw)
	if err != nil || userID == 0 {
		return "", "", ErrInvalidActor
	}
	parsedOrgID, err := snowflake.ParseString(orgID)
	if err != nil || parsedOrgID == 0 {
		return "", "", ErrInvalidOrganization
	}
	role, err := s.roleForUser(ctx, parsedOrgID, userID)
	if err != nil {
		return "", "", err
	}
	return actor, fmt.Sprintf("role:%s", strings.ToLower(role)), nil
}

func (s *ServiceImpl) roleForUser(ctx context.Context, orgID snowflake.ID, userID snowflake.ID) (string, error) {
	var row struct {
		Role string `gorm:"column:role"`
	}
	if err := s.db.WithContext(ctx).Raw(
		`SELECT role
		 FROM organization_members
		 WHERE org_id = ? AND user_id = ?
		 LIMIT 1`,
		orgID,
		userID,
	).Scan(&row).Error; err != nil {
		return "", err
	}

	role := strings.TrimSpace(row.Role)
	if role == "" {
		return "", ErrForbidden
	}
	return role, nil
}

// ensureGrouping keeps the casbin role link in sync with the membership
// table. Role changes replace the stale grouping on the next check.
func (s *ServiceImpl) ensureGrouping(subject string, roleName string, domain string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject, "", domain)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 {
			continue
		}
		if rule[1] != roleName {
			params := make([]interface{}, 0, len(rule))
			for _, value := range rule {
				params = append(params, value)
			}
			_, _ = s.enforcer.RemoveGroupingPolicy(params...)
		}
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, roleName, domain)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleName, domain)
	return err
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// Member permissions (read-only)
		{"role:member", ObjectProperty, ActionPropertyView},
		{"role:member", ObjectLease, ActionLeaseView},
		{"role:member", ObjectLoan, ActionLoanView},
		{"role:member", ObjectExpense, ActionExpenseView},
		{"role:member", ObjectProjection, ActionProjectionView},
		{"role:member", ObjectOrganization, ActionOrganizationView},

		// Admin permissions
		{"role:admin", ObjectProperty, ActionPropertyView},
		{"role:admin", ObjectProperty, ActionPropertyCreate},
		{"role:admin", ObjectProperty, ActionPropertyUpdate},
		{"role:admin", ObjectProperty, ActionPropertyDelete},
		{"role:admin", ObjectLease, ActionLeaseView},
		{"role:admin", ObjectLease, ActionLeaseCreate},
		{"role:admin", ObjectLease, ActionLeaseEnd},
		{"role:admin", ObjectLease, ActionLeaseDelete},
		{"role:admin", ObjectLoan, ActionLoanView},
		{"role:admin", ObjectLoan, ActionLoanCreate},
		{"role:admin", ObjectLoan, ActionLoanDelete},
		{"role:admin", ObjectExpense, ActionExpenseView},
		{"role:admin", ObjectExpense, ActionExpenseCreate},
		{"role:admin", ObjectExpense, ActionExpenseDelete},
		{"role:admin", ObjectProjection, ActionProjectionView},
		{"role:admin", ObjectBilling, ActionBillingView},
		{"role:admin", ObjectOrganization, ActionOrganizationView},

		// Owner permissions
		{"role:owner", ObjectProperty, ActionPropertyView},
		{"role:owner", ObjectProperty, ActionPropertyCreate},
		{"role:owner", ObjectProperty, ActionPropertyUpdate},
		{"role:owner", ObjectProperty, ActionPropertyDelete},
		{"role:owner", ObjectLease, ActionLeaseView},
		{"role:owner", ObjectLease, ActionLeaseCreate},
		{"role:owner", ObjectLease, ActionLeaseEnd},
		{"role:owner", ObjectLease, ActionLeaseDelete},
		{"role:owner", ObjectLoan, ActionLoanView},
		{"role:owner", ObjectLoan, ActionLoanCreate},
		{"role:owner", ObjectLoan, ActionLoanDelete},
		{"role:owner", ObjectExpense, ActionExpenseView},
		{"role:owner", ObjectExpense, ActionExpenseCreate},
		{"role:owner", ObjectExpense, ActionExpenseDelete},
		{"role:owner", ObjectProjection, ActionProjectionView},
		{"role:owner", ObjectBilling, ActionBillingView},
		{"role:owner", ObjectBilling, ActionBillingManage},
		{"role:owner", ObjectOrganization, ActionOrganizationView},
		{"role:owner", ObjectOrganization, ActionOrganizationManageMembers},
	}

	for _, policy := range policies {
		if len(policy) < 3 {
			continue
		}
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
