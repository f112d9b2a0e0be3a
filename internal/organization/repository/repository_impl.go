// Package repository persists organizations and memberships.
package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/rentfolio/rentfolio/internal/organization/domain"
)

type Repository interface {
	Create(ctx context.Context, org *domain.Organization, owner *domain.OrganizationMember) error
	FindByID(ctx context.Context, id snowflake.ID) (*domain.Organization, error)
	ListForUser(ctx context.Context, userID snowflake.ID) ([]domain.MembershipItem, error)
	FindMember(ctx context.Context, orgID, userID snowflake.ID) (*domain.OrganizationMember, error)
	CreateMember(ctx context.Context, member *domain.OrganizationMember) error
	DeleteMember(ctx context.Context, orgID, userID snowflake.ID) error
	ListMembers(ctx context.Context, orgID snowflake.ID) ([]domain.OrganizationMember, error)
	CountMembers(ctx context.Context, orgID snowflake.ID) (int64, error)
	CountMembersWithRole(ctx context.Context, orgID snowflake.ID, role string) (int64, error)
}

type repo struct {
	db *gorm.DB
}

func New(db *gorm.DB) Repository {
	return &repo{db: db}
}

func (r *repo) Create(ctx context.Context, org *domain.Organization, owner *domain.OrganizationMember) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(org).Error; err != nil {
			return err
		}
		return tx.Create(owner).Error
	})
}

func (r *repo) FindByID(ctx context.Context, id snowflake.ID) (*domain.Organization, error) {
	var org domain.Organization
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&org).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrOrgNotFound
	}
	if err != nil {
		return nil, err
	}
	return &org, nil
}

func (r *repo) ListForUser(ctx context.Context, userID snowflake.ID) ([]domain.MembershipItem, error) {
	var items []domain.MembershipItem
	err := r.db.WithContext(ctx).Raw(
		`SELECT m.org_id, o.name, o.slug, m.role, m.created_at
		 FROM organization_members m
		 JOIN organizations o ON o.id = m.org_id
		 WHERE m.user_id = ?
		 ORDER BY m.created_at`,
		userID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) FindMember(ctx context.Context, orgID, userID snowflake.ID) (*domain.OrganizationMember, error) {
	var member domain.OrganizationMember
	err := r.db.WithContext(ctx).
		Where("org_id = ? AND user_id = ?", orgID, userID).
		First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotAMember
	}
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *repo) CreateMember(ctx context.Context, member *domain.OrganizationMember) error {
	return r.db.WithContext(ctx).Create(member).Error
}

func (r *repo) DeleteMember(ctx context.Context, orgID, userID snowflake.ID) error {
	return r.db.WithContext(ctx).
		Where("org_id = ? AND user_id = ?", orgID, userID).
		Delete(&domain.OrganizationMember{}).Error
}

func (r *repo) ListMembers(ctx context.Context, orgID snowflake.ID) ([]domain.OrganizationMember, error) {
	var members []domain.OrganizationMember
	err := r.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("created_at").
		Find(&members).Error
	if err != nil {
		return nil, err
	}
	return members, nil
}

func (r *repo) CountMembers(ctx context.Context, orgID snowflake.ID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.OrganizationMember{}).
		Where("org_id = ?", orgID).
		Count(&count).Error
	return count, err
}

func (r *repo) CountMembersWithRole(ctx context.Context, orgID snowflake.ID, role string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.OrganizationMember{}).
		Where("org_id = ? AND role = ?", orgID, role).
		Count(&count).Error
	return count, err
}
