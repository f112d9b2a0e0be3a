// Package service implements expense management.
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
	"github.com/rentfolio/rentfolio/internal/expense/domain"
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
		log:         p.Log.Named("expense.service"),
		propertySvc: p.PropertySvc,
		genID:       p.GenID,
		clock:       p.Clock,
	}
}

func (s *Service) Create(ctx context.Context, orgID snowflake.ID, req domain.CreateExpenseRequest) (*domain.Expense, error) {
	if strings.TrimSpace(req.Category) == "" || req.Amount <= 0 || req.IncurredOn.IsZero() {
		return nil, domain.ErrInvalidExpense
	}
	recurrence := req.Recurrence
	if recurrence == "" {
		recurrence = domain.RecurrenceOneOff
	}
	if !domain.ValidRecurrence(recurrence) {
		return nil, domain.ErrInvalidExpense
	}

	if _, err := s.propertySvc.Get(ctx, orgID, req.PropertyID); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	expense := &domain.Expense{
		ID:         s.genID.Generate(),
		OrgID:      orgID,
		PropertyID: req.PropertyID,
		Category:   strings.TrimSpace(req.Category),
		Amount:     req.Amount,
		Recurrence: recurrence,
		IncurredOn: req.IncurredOn,
		Notes:      req.Notes,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.db.WithContext(ctx).Create(expense).Error; err != nil {
		return nil, err
	}
	return expense, nil
}

func (s *Service) Get(ctx context.Context, orgID, id snowflake.ID) (*domain.Expense, error) {
	var expense domain.Expense
	err := s.db.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, id).
		First(&expense).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrExpenseNotFound
	}
	if err != nil {
		return nil, err
	}
	return &expense, nil
}

func (s *Service) ListByProperty(ctx context.Context, orgID, propertyID snowflake.ID) ([]domain.Expense, error) {
	var expenses []domain.Expense
	err := s.db.WithContext(ctx).
		Where("org_id = ? AND property_id = ?", orgID, propertyID).
		Order("incurred_on").
		Find(&expenses).Error
	if err != nil {
		return nil, err
	}
	return expenses, nil
}

func (s *Service) List(ctx context.Context, orgID snowflake.ID) ([]domain.Expense, error) {
	var expenses []domain.Expense
	err := s.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("incurred_on").
		Find(&expenses).Error
	if err != nil {
		return nil, err
	}
	return expenses, nil
}

func (s *Service) Delete(ctx context.Context, orgID, id snowflake.ID) error {
	tx := s.db.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, id).
		Delete(&domain.Expense{})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrExpenseNotFound
	}
	return nil
}
