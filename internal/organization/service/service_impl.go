// Package service implements organization and membership management.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"go.uber.org/fx"
	"go.uber.org/zap"

	billingdomain "github.com/rentfolio/rentfolio/internal/billing/domain"
	"github.com/rentfolio/rentfolio/internal/clock"
	"github.com/rentfolio/rentfolio/internal/organization/domain"
	"github.com/rentfolio/rentfolio/internal/organization/repository"
	pkgdb "github.com/rentfolio/rentfolio/pkg/db"
)

type Params struct {
	fx.In

	Log        *zap.Logger
	Repo       repository.Repository
	BillingSvc billingdomain.Service
	GenID      *snowflake.Node
	Clock      clock.Clock
}

type Service struct {
	log        *zap.Logger
	repo       repository.Repository
	billingSvc billingdomain.Service
	genID      *snowflake.Node
	clock      clock.Clock
}

func New(p Params) domain.Service {
	return &Service{
		log:        p.Log.Named("organization.service"),
		repo:       p.Repo,
		billingSvc: p.BillingSvc,
		genID:      p.GenID,
		clock:      p.Clock,
	}
}

func (s *Service) Create(ctx context.Context, userID snowflake.ID, req domain.CreateOrganizationRequest) (*domain.Organization, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	now := s.clock.Now()
	org := &domain.Organization{
		ID:        s.genID.Generate(),
		Name:      name,
		Slug:      slug.Make(name) + "-" + shortID(s.genID.Generate()),
		CreatedAt: now,
		UpdatedAt: now,
	}
	owner := &domain.OrganizationMember{
		ID:        s.genID.Generate(),
		OrgID:     org.ID,
		UserID:    userID,
		Role:      domain.RoleOwner,
		CreatedAt: now,
	}

	if err := s.repo.Create(ctx, org, owner); err != nil {
		return nil, err
	}
	return org, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*domain.Organization, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *Service) ListForUser(ctx context.Context, userID snowflake.ID) ([]domain.MembershipItem, error) {
	return s.repo.ListForUser(ctx, userID)
}

func (s *Service) Membership(ctx context.Context, orgID, userID snowflake.ID) (*domain.OrganizationMember, error) {
	return s.repo.FindMember(ctx, orgID, userID)
}

// AddMember writes a membership after checking the billing seat limit.
// The limit comes from the tenant's current billing record, so a downgrade
// takes effect on the next add, not retroactively.
func (s *Service) AddMember(ctx context.Context, orgID, userID snowflake.ID, role string) (*domain.OrganizationMember, error) {
	if !domain.ValidRole(role) {
		return nil, domain.ErrInvalidRole
	}

	if _, err := s.repo.FindMember(ctx, orgID, userID); err == nil {
		return nil, domain.ErrAlreadyMember
	} else if !errors.Is(err, domain.ErrNotAMember) {
		return nil, err
	}

	record, err := s.billingSvc.Record(ctx, orgID)
	if err != nil {
		return nil, err
	}
	count, err := s.repo.CountMembers(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if count >= int64(record.SeatLimit) {
		return nil, domain.ErrSeatLimitExceeded
	}

	member := &domain.OrganizationMember{
		ID:        s.genID.Generate(),
		OrgID:     orgID,
		UserID:    userID,
		Role:      role,
		CreatedAt: s.clock.Now(),
	}
	if err := s.repo.CreateMember(ctx, member); err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return nil, domain.ErrAlreadyMember
		}
		return nil, err
	}
	return member, nil
}

func (s *Service) RemoveMember(ctx context.Context, orgID, userID snowflake.ID) error {
	member, err := s.repo.FindMember(ctx, orgID, userID)
	if err != nil {
		return err
	}
	if member.Role == domain.RoleOwner {
		owners, err := s.repo.CountMembersWithRole(ctx, orgID, domain.RoleOwner)
		if err != nil {
			return err
		}
		if owners <= 1 {
			return domain.ErrLastOwner
		}
	}
	return s.repo.DeleteMember(ctx, orgID, userID)
}

func (s *Service) ListMembers(ctx context.Context, orgID snowflake.ID) ([]domain.OrganizationMember, error) {
	return s.repo.ListMembers(ctx, orgID)
}

func shortID(id snowflake.ID) string {
	return fmt.Sprintf("%x", int64(id)%0xffffff)
}
