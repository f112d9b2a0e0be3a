// Package domain contains core types for authentication.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// User is a portal account. One user can belong to many organizations.
type User struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	Email        string       `gorm:"type:text;not null;uniqueIndex" json:"email"`
	DisplayName  string       `gorm:"type:text;not null" json:"display_name"`
	PasswordHash *string      `gorm:"type:text" json:"-"`
	CreatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }

// Session is a persisted login session. Only the token hash is stored.
type Session struct {
	ID               snowflake.ID `gorm:"primaryKey" json:"id"`
	UserID           snowflake.ID `gorm:"column:user_id;not null;index" json:"user_id"`
	SessionTokenHash string       `gorm:"column:session_token_hash;type:text;not null;uniqueIndex" json:"-"`
	UserAgent        string       `gorm:"column:user_agent;type:text" json:"user_agent"`
	IPAddress        string       `gorm:"column:ip_address;type:text" json:"ip_address"`
	ExpiresAt        time.Time    `gorm:"column:expires_at;not null;index" json:"expires_at"`
	RevokedAt        *time.Time   `gorm:"column:revoked_at" json:"revoked_at"`
	CreatedAt        time.Time    `gorm:"column:created_at;not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	LastSeenAt       time.Time    `gorm:"column:last_seen_at;not null;default:CURRENT_TIMESTAMP" json:"last_seen_at"`
}

// TableName sets the database table name.
func (Session) TableName() string { return "sessions" }
