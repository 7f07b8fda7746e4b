package service

import (
	"context"
	"testing"

	"backend/internal/model"
	"backend/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUserService(t *testing.T) UserService {
	t.Helper()
	db := newTestDB(t)
	return NewUserService(repository.NewUserRepository(db))
}

func TestCreateUser(t *testing.T) {
	svc := newUserService(t)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, CreateUserRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Phone:    "0123",
		Password: "secret1",
		Role:     model.RoleFinancialManager,
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, model.RoleFinancialManager, user.Role)

	// Duplicate username rejected
	_, err = svc.CreateUser(ctx, CreateUserRequest{
		Username: "alice",
		Email:    "other@example.com",
		Phone:    "0123",
		Password: "secret1",
		Role:     model.RoleAdmin,
	})
	assert.ErrorIs(t, err, ErrValidation)

	// Unknown role rejected
	_, err = svc.CreateUser(ctx, CreateUserRequest{
		Username: "bob",
		Email:    "bob@example.com",
		Phone:    "0123",
		Password: "secret1",
		Role:     "intern",
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestLoginAndRefresh(t *testing.T) {
	svc := newUserService(t)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, CreateUserRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Phone:    "0123",
		Password: "secret1",
		Role:     model.RoleAdmin,
	})
	require.NoError(t, err)

	_, err = svc.Login(ctx, LoginUserRequest{Email: "alice@example.com", Password: "wrong"})
	assert.Error(t, err)

	tokens, err := svc.Login(ctx, LoginUserRequest{Email: "alice@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.NotEmpty(t, tokens.Token)
	assert.NotEmpty(t, tokens.RefreshToken)

	rotated, err := svc.RefreshToken(ctx, RefreshTokenRequest{RefreshToken: tokens.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, tokens.RefreshToken, rotated.RefreshToken)

	// Refresh tokens are single-use
	_, err = svc.RefreshToken(ctx, RefreshTokenRequest{RefreshToken: tokens.RefreshToken})
	assert.Error(t, err)
}

func TestListUsers_RoleFilter(t *testing.T) {
	svc := newUserService(t)
	ctx := context.Background()

	for _, u := range []struct{ name, role string }{
		{"alice", model.RoleFinancialManager},
		{"bob", model.RoleAdministrationManager},
		{"carol", model.RoleFinancialManager},
	} {
		_, err := svc.CreateUser(ctx, CreateUserRequest{
			Username: u.name,
			Email:    u.name + "@example.com",
			Phone:    "0",
			Password: "secret1",
			Role:     u.role,
		})
		require.NoError(t, err)
	}

	users, total, err := svc.ListUsers(ctx, model.RoleFinancialManager, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, users, 2)

	_, _, err = svc.ListUsers(ctx, "intern", 1, 10)
	assert.ErrorIs(t, err, ErrValidation)
}
