package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	billingdomain "github.com/rentfolio/rentfolio/internal/billing/domain"
	"github.com/rentfolio/rentfolio/internal/clock"
	"github.com/rentfolio/rentfolio/internal/organization/domain"
	orgrepo "github.com/rentfolio/rentfolio/internal/organization/repository"
	orgservice "github.com/rentfolio/rentfolio/internal/organization/service"
)

type stubBilling struct {
	seatLimit int
}

func (s *stubBilling) Reconcile(ctx context.Context, event *billingdomain.LifecycleEvent) error {
	return nil
}

func (s *stubBilling) Record(ctx context.Context, orgID snowflake.ID) (*billingdomain.BillingRecord, error) {
	record := billingdomain.DefaultRecord(orgID)
	if s.seatLimit > 0 {
		record.SeatLimit = s.seatLimit
	}
	return record, nil
}

func (s *stubBilling) Check(ctx context.Context, orgID snowflake.ID) (*billingdomain.BillingRecord, billingdomain.Verdict, error) {
	record, _ := s.Record(ctx, orgID)
	return record, billingdomain.Verdict{Allowed: true}, nil
}

func (s *stubBilling) CreateCheckoutSession(ctx context.Context, orgID snowflake.ID, priceID string) (string, error) {
	return "", nil
}

func (s *stubBilling) CreatePortalSession(ctx context.Context, orgID snowflake.ID) (string, error) {
	return "", nil
}

func newTestService(t *testing.T, billing *stubBilling) domain.Service {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Organization{}, &domain.OrganizationMember{}))

	node, err := snowflake.NewNode(5)
	require.NoError(t, err)

	return orgservice.New(orgservice.Params{
		Log:        zap.NewNop(),
		Repo:       orgrepo.New(db),
		BillingSvc: billing,
		GenID:      node,
		Clock:      clock.NewFakeClock(time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)),
	})
}

func TestCreateMakesCallerOwner(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, &stubBilling{})
	userID := snowflake.ID(100)

	org, err := svc.Create(ctx, userID, domain.CreateOrganizationRequest{Name: "Acme Rentals"})
	require.NoError(t, err)
	assert.NotEmpty(t, org.Slug)

	member, err := svc.Membership(ctx, org.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleOwner, member.Role)

	items, err := svc.ListForUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, org.ID, items[0].OrgID)
}

func TestAddMemberEnforcesSeatLimit(t *testing.T) {
	ctx := context.Background()
	// Free tier: one seat, already taken by the owner.
	svc := newTestService(t, &stubBilling{})
	owner := snowflake.ID(100)

	org, err := svc.Create(ctx, owner, domain.CreateOrganizationRequest{Name: "Acme"})
	require.NoError(t, err)

	_, err = svc.AddMember(ctx, org.ID, snowflake.ID(101), domain.RoleMember)
	assert.ErrorIs(t, err, domain.ErrSeatLimitExceeded)
}

func TestAddMemberWithinSeatLimit(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, &stubBilling{seatLimit: 5})
	owner := snowflake.ID(100)

	org, err := svc.Create(ctx, owner, domain.CreateOrganizationRequest{Name: "Acme"})
	require.NoError(t, err)

	member, err := svc.AddMember(ctx, org.ID, snowflake.ID(101), domain.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, member.Role)

	_, err = svc.AddMember(ctx, org.ID, snowflake.ID(101), domain.RoleMember)
	assert.ErrorIs(t, err, domain.ErrAlreadyMember)

	_, err = svc.AddMember(ctx, org.ID, snowflake.ID(102), "SUPERUSER")
	assert.ErrorIs(t, err, domain.ErrInvalidRole)
}

func TestRemoveMemberKeepsLastOwner(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, &stubBilling{seatLimit: 5})
	owner := snowflake.ID(100)

	org, err := svc.Create(ctx, owner, domain.CreateOrganizationRequest{Name: "Acme"})
	require.NoError(t, err)

	err = svc.RemoveMember(ctx, org.ID, owner)
	assert.ErrorIs(t, err, domain.ErrLastOwner)

	_, err = svc.AddMember(ctx, org.ID, snowflake.ID(101), domain.RoleMember)
	require.NoError(t, err)
	require.NoError(t, svc.RemoveMember(ctx, org.ID, snowflake.ID(101)))

	_, err = svc.Membership(ctx, org.ID, snowflake.ID(101))
	assert.ErrorIs(t, err, domain.ErrNotAMember)
}
