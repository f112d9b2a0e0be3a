// Package service implements lease management.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/rentfolio/rentfolio/internal/clock"
	"github.com/rentfolio/rentfolio/internal/lease/domain"
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
		log:         p.Log.Named("lease.service"),
		propertySvc: p.PropertySvc,
		genID:       p.GenID,
		clock:       p.Clock,
	}
}

func (s *Service) Create(ctx context.Context, orgID snowflake.ID, req domain.CreateLeaseRequest) (*domain.Lease, error) {
	if strings.TrimSpace(req.TenantName) == "" || req.StartDate.IsZero() {
		return nil, domain.ErrInvalidLease
	}
	if req.EndDate != nil && req.EndDate.Before(req.StartDate) {
		return nil, domain.ErrInvalidLease
	}

	// Leases only attach to properties the caller's org owns.
	if _, err := s.propertySvc.Get(ctx, orgID, req.PropertyID); err != nil {
		return nil, err
	}

	monthlyRent := req.MonthlyRent
	var roomRents datatypes.JSON
	if len(req.RoomRents) > 0 {
		var sum int64
		for _, line := range req.RoomRents {
			if line.Rent < 0 {
				return nil, domain.ErrInvalidLease
			}
			sum += line.Rent
		}
		monthlyRent = sum

		raw, err := json.Marshal(req.RoomRents)
		if err != nil {
			return nil, domain.ErrInvalidLease
		}
		roomRents = datatypes.JSON(raw)
	}
	if monthlyRent <= 0 {
		return nil, domain.ErrInvalidLease
	}

	now := s.clock.Now()
	lease := &domain.Lease{
		ID:          s.genID.Generate(),
		OrgID:       orgID,
		PropertyID:  req.PropertyID,
		TenantName:  strings.TrimSpace(req.TenantName),
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		MonthlyRent: monthlyRent,
		Deposit:     req.Deposit,
		RoomRents:   roomRents,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.db.WithContext(ctx).Create(lease).Error; err != nil {
		return nil, err
	}
	return lease, nil
}

func (s *Service) Get(ctx context.Context, orgID, id snowflake.ID) (*domain.Lease, error) {
	var lease domain.Lease
	err := s.db.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, id).
		First(&lease).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrLeaseNotFound
	}
	if err != nil {
		return nil, err
	}
	return &lease, nil
}

func (s *Service) ListByProperty(ctx context.Context, orgID, propertyID snowflake.ID) ([]domain.Lease, error) {
	var leases []domain.Lease
	err := s.db.WithContext(ctx).
		Where("org_id = ? AND property_id = ?", orgID, propertyID).
		Order("start_date").
		Find(&leases).Error
	if err != nil {
		return nil, err
	}
	return leases, nil
}

func (s *Service) List(ctx context.Context, orgID snowflake.ID) ([]domain.Lease, error) {
	var leases []domain.Lease
	err := s.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("start_date").
		Find(&leases).Error
	if err != nil {
		return nil, err
	}
	return leases, nil
}

func (s *Service) End(ctx context.Context, orgID, id snowflake.ID, endDate time.Time) (*domain.Lease, error) {
	lease, err := s.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if endDate.Before(lease.StartDate) {
		return nil, domain.ErrInvalidLease
	}

	lease.EndDate = &endDate
	lease.UpdatedAt = s.clock.Now()
	if err := s.db.WithContext(ctx).Save(lease).Error; err != nil {
		return nil, err
	}
	return lease, nil
}

func (s *Service) Delete(ctx context.Context, orgID, id snowflake.ID) error {
	tx := s.db.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, id).
		Delete(&domain.Lease{})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrLeaseNotFound
	}
	return nil
}
