package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-mini/internal/config"
	"github.com/spec-kit/helpdesk-mini/internal/domain"
	"github.com/spec-kit/helpdesk-mini/internal/repository/memory"
	"github.com/spec-kit/helpdesk-mini/internal/service"
)

func newAuthService() *service.AuthService {
	cfg := config.Config{
		Auth: config.AuthConfig{
			JWTSecret:             "test-secret",
			AccessTokenTTLMinutes: 5,
			BcryptCost:            4, // MinCost keeps the suite fast
		},
	}
	return service.NewAuthService(cfg, memory.NewUserRepository())
}

func TestRegisterDefaultsRole(t *testing.T) {
	svc := newAuthService()

	user, err := svc.Register(context.Background(), service.RegisterInput{
		Name:     "Alice",
		Email:    "Alice@Example.com",
		Password: "secret",
	})
	require.NoError(t, err)
	require.Equal(t, domain.RoleUser, user.Role)
	require.Equal(t, "alice@example.com", user.Email, "email is normalized")
	require.NotEqual(t, "secret", user.PasswordHash)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	svc := newAuthService()

	input := service.RegisterInput{Name: "Alice", Email: "alice@example.com", Password: "secret"}
	_, err := svc.Register(context.Background(), input)
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), input)
	require.Equal(t, "CONFLICT", domainErr(t, err).Code)
}

func TestRegisterRejectsUnknownRole(t *testing.T) {
	svc := newAuthService()

	_, err := svc.Register(context.Background(), service.RegisterInput{
		Name:     "Mallory",
		Email:    "mallory@example.com",
		Password: "secret",
		Role:     "superadmin",
	})
	require.Equal(t, "VALIDATION_FAILED", domainErr(t, err).Code)
}

func TestLoginIssuesParsableToken(t *testing.T) {
	svc := newAuthService()

	registered, err := svc.Register(context.Background(), service.RegisterInput{
		Name:     "Agent Smith",
		Email:    "smith@example.com",
		Password: "secret",
		Role:     domain.RoleAgent,
	})
	require.NoError(t, err)

	user, token, expiresAt, err := svc.Login(context.Background(), "smith@example.com", "secret")
	require.NoError(t, err)
	require.Equal(t, registered.ID, user.ID)
	require.False(t, expiresAt.IsZero())

	claims, err := svc.TokenManager().ParseToken(token)
	require.NoError(t, err)
	require.Equal(t, registered.ID, claims.UserID)
	require.Equal(t, domain.RoleAgent, claims.Role)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc := newAuthService()

	_, err := svc.Register(context.Background(), service.RegisterInput{
		Name:     "Alice",
		Email:    "alice@example.com",
		Password: "secret",
	})
	require.NoError(t, err)

	_, _, _, err = svc.Login(context.Background(), "alice@example.com", "wrong")
	require.Equal(t, "UNAUTHORIZED", domainErr(t, err).Code)

	_, _, _, err = svc.Login(context.Background(), "nobody@example.com", "secret")
	require.Equal(t, "UNAUTHORIZED", domainErr(t, err).Code)
}
