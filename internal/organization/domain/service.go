package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	RoleOwner  = "OWNER"
	RoleAdmin  = "ADMIN"
	RoleMember = "MEMBER"
)

// ValidRole reports whether role is one of the known membership roles.
func ValidRole(role string) bool {
	switch role {
	case RoleOwner, RoleAdmin, RoleMember:
		return true
	default:
		return false
	}
}

type Service interface {
	Create(ctx context.Context, userID snowflake.ID, req CreateOrganizationRequest) (*Organization, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Organization, error)
	ListForUser(ctx context.Context, userID snowflake.ID) ([]MembershipItem, error)

	// Membership returns the caller's membership in an organization, or
	// ErrNotAMember.
	Membership(ctx context.Context, orgID, userID snowflake.ID) (*OrganizationMember, error)

	// AddMember enforces the tenant's seat limit before writing.
	AddMember(ctx context.Context, orgID, userID snowflake.ID, role string) (*OrganizationMember, error)
	RemoveMember(ctx context.Context, orgID, userID snowflake.ID) error
	ListMembers(ctx context.Context, orgID snowflake.ID) ([]OrganizationMember, error)
}

type CreateOrganizationRequest struct {
	Name string
}

type MembershipItem struct {
	OrgID     snowflake.ID `json:"org_id"`
	Name      string       `json:"name"`
	Slug      string       `json:"slug"`
	Role      string       `json:"role"`
	CreatedAt time.Time    `json:"created_at"`
}

var (
	ErrInvalidName       = errors.New("invalid organization name")
	ErrInvalidRole       = errors.New("invalid membership role")
	ErrOrgNotFound       = errors.New("organization not found")
	ErrNotAMember        = errors.New("not a member of this organization")
	ErrAlreadyMember     = errors.New("user is already a member")
	ErrSeatLimitExceeded = errors.New("seat limit exceeded for current plan")
	ErrLastOwner         = errors.New("cannot remove the last owner")
)
