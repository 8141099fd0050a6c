package rbac

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestBuiltinPermissionsUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for _, p := range BuiltinPermissions() {
		if _, dup := seen[p.ID]; dup {
			t.Fatalf("duplicate permission id %q", p.ID)
		}
		seen[p.ID] = struct{}{}
		assert.NotEmpty(t, p.Resource, p.ID)
		assert.NotEmpty(t, p.Action, p.ID)
		assert.NotEmpty(t, p.Name, p.ID)
		assert.NotEmpty(t, p.NameID, p.ID)
	}
}

func TestBuiltinRolesReferenceKnownPermissions(t *testing.T) {
	known := make(map[string]struct{})
	for _, p := range BuiltinPermissions() {
		known[p.ID] = struct{}{}
	}
	for _, r := range BuiltinRoles(testNow) {
		assert.True(t, r.IsSystemRole, r.ID)
		for _, id := range r.PermissionIDs {
			if _, ok := known[id]; !ok {
				t.Fatalf("role %s references unknown permission %q", r.ID, id)
			}
		}
	}
}

func TestBuiltinRolesShape(t *testing.T) {
	roles := BuiltinRoles(time.Now())
	require.Len(t, roles, 6)

	byID := make(map[string]Role, len(roles))
	for _, r := range roles {
		byID[r.ID] = r
	}

	owner := byID[RoleOwner]
	require.Len(t, owner.PermissionIDs, len(BuiltinPermissions()), "owner holds the whole catalog")

	manager := byID[RoleManager]
	require.Len(t, manager.PermissionIDs, len(BuiltinPermissions())-3)
	assert.False(t, manager.HasPermission("users.delete"))
	assert.False(t, manager.HasPermission("backup.delete"))
	assert.False(t, manager.HasPermission("training.award"))
	assert.True(t, manager.HasPermission("users.create"))

	cashier := byID[RoleCashier]
	assert.True(t, cashier.HasPermission("sales.create"))
	assert.False(t, cashier.HasPermission("sales.refund"))
	assert.False(t, cashier.HasPermission("users.delete"))

	auditor := byID[RoleAuditor]
	for _, id := range auditor.PermissionIDs {
		p, ok := findPermission(id)
		require.True(t, ok, id)
		assert.Contains(t, []string{"view", "report", "export"}, p.Action,
			"auditor must stay read-only, got %s", id)
	}
}

func findPermission(id string) (Permission, bool) {
	for _, p := range BuiltinPermissions() {
		if p.ID == id {
			return p, true
		}
	}
	return Permission{}, false
}

func TestPermissionLabelsBilingual(t *testing.T) {
	p, ok := findPermission("sales.create")
	require.True(t, ok)
	assert.Equal(t, "Create Sale", p.Label(language.English))
	assert.Equal(t, "Buat Penjualan", p.Label(language.Indonesian))
	assert.Equal(t, "Mencatat transaksi kasir", p.Describe(language.Indonesian))
}
