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

	"github.com/rentfolio/rentfolio/internal/auth/domain"
	authrepo "github.com/rentfolio/rentfolio/internal/auth/repository"
	authservice "github.com/rentfolio/rentfolio/internal/auth/service"
	"github.com/rentfolio/rentfolio/internal/clock"
	"github.com/rentfolio/rentfolio/internal/config"
)

func newTestService(t *testing.T, clk clock.Clock) domain.Service {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.User{}, &domain.Session{}))

	node, err := snowflake.NewNode(3)
	require.NoError(t, err)

	repo, sessionRepo := authrepo.New(db)
	cfg := config.Config{SessionTTLHours: 72}
	return authservice.New(authservice.Params{
		Log:         zap.NewNop(),
		Repo:        repo,
		SessionRepo: sessionRepo,
		GenID:       node,
		Clock:       clk,
		Config:      cfg,
	})
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFakeClock(time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC))
	svc := newTestService(t, clk)

	user, err := svc.Register(ctx, domain.RegisterRequest{
		Email:    "owner@example.com",
		Password: "correct horse",
	})
	require.NoError(t, err)
	assert.Equal(t, "owner@example.com", user.Email)
	assert.Equal(t, "owner", user.DisplayName)

	result, err := svc.Login(ctx, domain.LoginRequest{
		Email:    "Owner@Example.com",
		Password: "correct horse",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.RawToken)
	assert.Equal(t, user.ID, result.User.ID)

	authed, session, err := svc.Authenticate(ctx, result.RawToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, authed.ID)
	assert.Equal(t, user.ID, session.UserID)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFakeClock(time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC))
	svc := newTestService(t, clk)

	_, err := svc.Register(ctx, domain.RegisterRequest{Email: "a@example.com", Password: "longenough"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, domain.RegisterRequest{Email: "a@example.com", Password: "longenough"})
	assert.ErrorIs(t, err, domain.ErrUserExists)
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFakeClock(time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC))
	svc := newTestService(t, clk)

	_, err := svc.Register(ctx, domain.RegisterRequest{Email: "a@example.com", Password: "short"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestLoginWrongPassword(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFakeClock(time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC))
	svc := newTestService(t, clk)

	_, err := svc.Register(ctx, domain.RegisterRequest{Email: "a@example.com", Password: "longenough"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, domain.LoginRequest{Email: "a@example.com", Password: "wrong password"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestAuthenticateExpiredSession(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFakeClock(time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC))
	svc := newTestService(t, clk)

	_, err := svc.Register(ctx, domain.RegisterRequest{Email: "a@example.com", Password: "longenough"})
	require.NoError(t, err)
	result, err := svc.Login(ctx, domain.LoginRequest{Email: "a@example.com", Password: "longenough"})
	require.NoError(t, err)

	clk.Advance(73 * time.Hour)
	_, _, err = svc.Authenticate(ctx, result.RawToken)
	assert.ErrorIs(t, err, domain.ErrSessionExpired)
}

func TestLogoutRevokesSession(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFakeClock(time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC))
	svc := newTestService(t, clk)

	_, err := svc.Register(ctx, domain.RegisterRequest{Email: "a@example.com", Password: "longenough"})
	require.NoError(t, err)
	result, err := svc.Login(ctx, domain.LoginRequest{Email: "a@example.com", Password: "longenough"})
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, result.RawToken))
	_, _, err = svc.Authenticate(ctx, result.RawToken)
	assert.ErrorIs(t, err, domain.ErrSessionRevoked)
}
