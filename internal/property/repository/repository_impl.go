// Package repository persists properties.
package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/rentfolio/rentfolio/internal/property/domain"
)

type Repository interface {
	Create(ctx context.Context, property *domain.Property) error
	FindByID(ctx context.Context, orgID, id snowflake.ID) (*domain.Property, error)
	List(ctx context.Context, orgID snowflake.ID) ([]domain.Property, error)
	Count(ctx context.Context, orgID snowflake.ID) (int64, error)
	Save(ctx context.Context, property *domain.Property) error
	Delete(ctx context.Context, orgID, id snowflake.ID) error
}

type repo struct {
	db *gorm.DB
}

func New(db *gorm.DB) Repository {
	return &repo{db: db}
}

func (r *repo) Create(ctx context.Context, property *domain.Property) error {
	return r.db.WithContext(ctx).Create(property).Error
}

func (r *repo) FindByID(ctx context.Context, orgID, id snowflake.ID) (*domain.Property, error) {
	var property domain.Property
	err := r.db.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, id).
		First(&property).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrPropertyNotFound
	}
	if err != nil {
		return nil, err
	}
	return &property, nil
}

func (r *repo) List(ctx context.Context, orgID snowflake.ID) ([]domain.Property, error) {
	var properties []domain.Property
	err := r.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("created_at").
		Find(&properties).Error
	if err != nil {
		return nil, err
	}
	return properties, nil
}

func (r *repo) Count(ctx context.Context, orgID snowflake.ID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Property{}).
		Where("org_id = ?", orgID).
		Count(&count).Error
	return count, err
}

func (r *repo) Save(ctx context.Context, property *domain.Property) error {
	return r.db.WithContext(ctx).Save(property).Error
}

func (r *repo) Delete(ctx context.Context, orgID, id snowflake.ID) error {
	tx := r.db.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, id).
		Delete(&domain.Property{})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrPropertyNotFound
	}
	return nil
}
