// Package service implements property management with plan quota checks.
package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"

	billingdomain "github.com/rentfolio/rentfolio/internal/billing/domain"
	"github.com/rentfolio/rentfolio/internal/clock"
	"github.com/rentfolio/rentfolio/internal/property/domain"
	"github.com/rentfolio/rentfolio/internal/property/repository"
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
		log:        p.Log.Named("property.service"),
		repo:       p.Repo,
		billingSvc: p.BillingSvc,
		genID:      p.GenID,
		clock:      p.Clock,
	}
}

func (s *Service) Create(ctx context.Context, orgID snowflake.ID, req domain.CreatePropertyRequest) (*domain.Property, error) {
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Address) == "" {
		return nil, domain.ErrInvalidProperty
	}

	record, _, ok := billingdomain.CheckFromContext(ctx)
	if !ok {
		var err error
		record, err = s.billingSvc.Record(ctx, orgID)
		if err != nil {
			return nil, err
		}
	}
	count, err := s.repo.Count(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if count >= int64(record.PropertyLimit) {
		s.log.Info("property limit reached",
			zap.Int64("org_id", int64(orgID)),
			zap.Int64("count", count),
			zap.Int("limit", record.PropertyLimit),
		)
		return nil, domain.ErrPropertyLimitExceeded
	}

	units := req.Units
	if units <= 0 {
		units = 1
	}

	now := s.clock.Now()
	property := &domain.Property{
		ID:            s.genID.Generate(),
		OrgID:         orgID,
		Name:          strings.TrimSpace(req.Name),
		Address:       strings.TrimSpace(req.Address),
		City:          strings.TrimSpace(req.City),
		PostalCode:    strings.TrimSpace(req.PostalCode),
		PurchasePrice: req.PurchasePrice,
		PurchaseDate:  req.PurchaseDate,
		Units:         units,
		Notes:         req.Notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Create(ctx, property); err != nil {
		return nil, err
	}
	return property, nil
}

func (s *Service) Get(ctx context.Context, orgID, id snowflake.ID) (*domain.Property, error) {
	return s.repo.FindByID(ctx, orgID, id)
}

func (s *Service) List(ctx context.Context, orgID snowflake.ID) ([]domain.Property, error) {
	return s.repo.List(ctx, orgID)
}

func (s *Service) Update(ctx context.Context, orgID, id snowflake.ID, req domain.UpdatePropertyRequest) (*domain.Property, error) {
	property, err := s.repo.FindByID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return nil, domain.ErrInvalidProperty
		}
		property.Name = strings.TrimSpace(*req.Name)
	}
	if req.Address != nil {
		property.Address = strings.TrimSpace(*req.Address)
	}
	if req.City != nil {
		property.City = strings.TrimSpace(*req.City)
	}
	if req.PostalCode != nil {
		property.PostalCode = strings.TrimSpace(*req.PostalCode)
	}
	if req.PurchasePrice != nil {
		property.PurchasePrice = *req.PurchasePrice
	}
	if req.PurchaseDate != nil {
		property.PurchaseDate = req.PurchaseDate
	}
	if req.Units != nil && *req.Units > 0 {
		property.Units = *req.Units
	}
	if req.Notes != nil {
		property.Notes = *req.Notes
	}
	property.UpdatedAt = s.clock.Now()

	if err := s.repo.Save(ctx, property); err != nil {
		return nil, err
	}
	return property, nil
}

func (s *Service) Delete(ctx context.Context, orgID, id snowflake.ID) error {
	return s.repo.Delete(ctx, orgID, id)
}
