// Package service implements loan management.
package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/rentfolio/rentfolio/internal/clock"
	"github.com/rentfolio/rentfolio/internal/loan/domain"
	propertydomain "github.com/rentfolio/rentfolio/internal/property/domain"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	PropertySvc propertydomain.Service
	GenID       *snowflake.Node
	Clock       clock.Clock
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	propertySvc propertydomain.Service
	genID       *snowflake.Node
	clock       clock.Clock
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("loan.service"),
		propertySvc: p.PropertySvc,
		genID:       p.GenID,
		clock:       p.Clock,
	}
}

func (s *Service) Create(ctx context.Context, orgID snowflake.ID, req domain.CreateLoanRequest) (*domain.Loan, error) {
	if req.Principal <= 0 || req.TermMonths <= 0 || req.AnnualRateBps < 0 || req.StartDate.IsZero() {
		return nil, domain.ErrInvalidLoan
	}

	if _, err := s.propertySvc.Get(ctx, orgID, req.PropertyID); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = "Mortgage"
	}

	now := s.clock.Now()
	loan := &domain.Loan{
		ID:            s.genID.Generate(),
		OrgID:         orgID,
		PropertyID:    req.PropertyID,
		Name:          name,
		Principal:     req.Principal,
		AnnualRateBps: req.AnnualRateBps,
		TermMonths:    req.TermMonths,
		StartDate:     req.StartDate,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.db.WithContext(ctx).Create(loan).Error; err != nil {
		return nil, err
	}
	return loan, nil
}

func (s *Service) Get(ctx context.Context, orgID, id snowflake.ID) (*domain.Loan, error) {
	var loan domain.Loan
	err := s.db.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, id).
		First(&loan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrLoanNotFound
	}
	if err != nil {
		return nil, err
	}
	return &loan, nil
}

func (s *Service) ListByProperty(ctx context.Context, orgID, propertyID snowflake.ID) ([]domain.Loan, error) {
	var loans []domain.Loan
	err := s.db.WithContext(ctx).
		Where("org_id = ? AND property_id = ?", orgID, propertyID).
		Order("start_date").
		Find(&loans).Error
	if err != nil {
		return nil, err
	}
	return loans, nil
}

func (s *Service) List(ctx context.Context, orgID snowflake.ID) ([]domain.Loan, error) {
	var loans []domain.Loan
	err := s.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("start_date").
		Find(&loans).Error
	if err != nil {
		return nil, err
	}
	return loans, nil
}

func (s *Service) Delete(ctx context.Context, orgID, id snowflake.ID) error {
	tx := s.db.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, id).
		Delete(&domain.Loan{})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrLoanNotFound
	}
	return nil
}
