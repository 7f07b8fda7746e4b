package service

import (
	"context"
	"testing"

	"backend/internal/model"
	"backend/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newClientServiceEnv(t *testing.T) (ClientService, *gorm.DB, Actor) {
	t.Helper()
	db := newTestDB(t)

	user := &model.User{Username: "alice", Email: "alice@example.com", Phone: "0", Password: "x", Role: model.RoleCustomerService}
	require.NoError(t, db.Create(user).Error)

	svc := NewClientService(
		repository.NewClientRepository(db),
		repository.NewAuditRepository(db),
		repository.NewTransactionManager(db),
	)
	return svc, db, Actor{ID: user.ID, Role: user.Role}
}

func TestClientLifecycle(t *testing.T) {
	svc, db, actor := newClientServiceEnv(t)
	ctx := context.Background()

	created, err := svc.CreateClient(ctx, actor, CreateClientRequest{
		Name:        "Acme Corp",
		CompanyName: "Acme",
		Email:       "events@acme.example.com",
	})
	require.NoError(t, err)
	assert.True(t, created.IsActive)

	inactive := false
	updated, err := svc.UpdateClient(ctx, actor, created.ID.String(), UpdateClientRequest{IsActive: &inactive})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)

	require.NoError(t, svc.DeleteClient(ctx, actor, created.ID.String()))
	_, err = svc.GetClientByID(ctx, created.ID.String())
	assert.ErrorIs(t, err, ErrNotFound)

	// Every mutation left an audit trail
	var count int64
	require.NoError(t, db.Model(&model.AuditLog{}).Count(&count).Error)
	assert.EqualValues(t, 3, count)
}

func TestCreateClient_InvalidEmail(t *testing.T) {
	svc, _, actor := newClientServiceEnv(t)

	_, err := svc.CreateClient(context.Background(), actor, CreateClientRequest{
		Name:  "Acme Corp",
		Email: "not-an-email",
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestListClients_SearchAndActiveFilter(t *testing.T) {
	svc, _, actor := newClientServiceEnv(t)
	ctx := context.Background()

	_, err := svc.CreateClient(ctx, actor, CreateClientRequest{Name: "Acme Corp"})
	require.NoError(t, err)
	other, err := svc.CreateClient(ctx, actor, CreateClientRequest{Name: "Globex"})
	require.NoError(t, err)

	inactive := false
	_, err = svc.UpdateClient(ctx, actor, other.ID.String(), UpdateClientRequest{IsActive: &inactive})
	require.NoError(t, err)

	results, total, err := svc.ListClients(ctx, "acme", false, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, results, 1)
	assert.Equal(t, "Acme Corp", results[0].Name)

	active, total, err := svc.ListClients(ctx, "", true, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, active, 1)
	assert.Equal(t, "Acme Corp", active[0].Name)
}
