package service

import (
	"context"
	"testing"

	"backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedDefaultRolesAndPermissions(t *testing.T) {
	db := newTestDB(t)
	svc := NewRoleService(db)
	ctx := context.Background()

	require.NoError(t, svc.SeedDefaultRolesAndPermissions(ctx))
	// Seeding must be idempotent
	require.NoError(t, svc.SeedDefaultRolesAndPermissions(ctx))

	var roleCount int64
	require.NoError(t, db.Model(&model.Role{}).Count(&roleCount).Error)
	assert.EqualValues(t, 5, roleCount)

	roles, err := svc.ListRoles(ctx)
	require.NoError(t, err)
	byName := make(map[string]RoleResponse, len(roles))
	for _, r := range roles {
		assert.True(t, r.IsSystem, "seeded role %s must be a system role", r.Name)
		byName[r.Name] = r
	}

	codes := func(r RoleResponse) map[string]bool {
		set := make(map[string]bool, len(r.Permissions))
		for _, p := range r.Permissions {
			set[p.Code] = true
		}
		return set
	}

	fm := codes(byName[model.RoleFinancialManager])
	assert.True(t, fm["event_requests.review"])
	assert.False(t, fm["event_requests.write"])
	assert.False(t, fm["roles.manage"])

	scso := codes(byName[model.RoleSeniorCustomerService])
	assert.True(t, scso["event_requests.review"])
	assert.True(t, scso["event_requests.write"])

	cs := codes(byName[model.RoleCustomerService])
	assert.True(t, cs["event_requests.write"])
	assert.False(t, cs["event_requests.review"])

	admin := codes(byName[model.RoleAdmin])
	assert.True(t, admin["roles.manage"])
	assert.True(t, admin["users.delete"])
}

func TestRoleService_CustomRoles(t *testing.T) {
	db := newTestDB(t)
	svc := NewRoleService(db)
	ctx := context.Background()

	require.NoError(t, svc.SeedDefaultRolesAndPermissions(ctx))

	created, err := svc.CreateRole(ctx, CreateRoleRequest{Name: "auditor", Description: "Read-only oversight"})
	require.NoError(t, err)
	assert.False(t, created.IsSystem)
	assert.Empty(t, created.Permissions)

	perms, err := svc.ListPermissions(ctx)
	require.NoError(t, err)
	var auditRead string
	for _, p := range perms {
		if p.Code == "audit.read" {
			auditRead = p.ID
		}
	}
	require.NotEmpty(t, auditRead)

	updated, err := svc.UpdateRolePermissions(ctx, created.ID, UpdateRolePermissionsRequest{PermissionIDs: []string{auditRead}})
	require.NoError(t, err)
	require.Len(t, updated.Permissions, 1)
	assert.Equal(t, "audit.read", updated.Permissions[0].Code)

	require.NoError(t, svc.DeleteRole(ctx, created.ID))

	// System roles are protected
	roles, err := svc.ListRoles(ctx)
	require.NoError(t, err)
	for _, r := range roles {
		if r.Name == model.RoleAdmin {
			assert.Error(t, svc.DeleteRole(ctx, r.ID))
		}
	}
}

func TestGetPermissionsByRoleName(t *testing.T) {
	db := newTestDB(t)
	svc := NewRoleService(db)
	ctx := context.Background()

	require.NoError(t, svc.SeedDefaultRolesAndPermissions(ctx))

	codes, err := svc.GetPermissionsByRoleName(ctx, model.RoleAdministrationManager)
	require.NoError(t, err)
	assert.Contains(t, codes, "event_requests.review")
	assert.NotContains(t, codes, "roles.manage")

	_, err = svc.GetPermissionsByRoleName(ctx, "ghost")
	assert.Error(t, err)
}
