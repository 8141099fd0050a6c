package rbac

import (
	"context"
	"time"
)

// Store defines the persistence methods the engine needs. The pgx
// implementation lives in repo.sql.go; tests substitute in-memory stubs.
//
// Upserts must be atomic on the composite key, so two concurrent writers for
// the same (user, role) or (user, permission) pair cannot produce duplicate
// rows.
type Store interface {
	CountRoles(ctx context.Context) (int64, error)
	InsertPermission(ctx context.Context, p Permission) error
	InsertRole(ctx context.Context, r Role) error
	UpdateRolePermissions(ctx context.Context, roleID string, permissionIDs []string) error

	GetPermission(ctx context.Context, id string) (Permission, error)
	ListPermissions(ctx context.Context) ([]Permission, error)
	GetRole(ctx context.Context, id string) (Role, error)
	ListRoles(ctx context.Context) ([]Role, error)

	// EffectiveRoles returns full Role records for the user's assignments
	// that are active and not expired at the given instant.
	EffectiveRoles(ctx context.Context, userID int64, at time.Time) ([]Role, error)
	// EffectiveOverrides returns the user's active, non-expired overrides.
	EffectiveOverrides(ctx context.Context, userID int64, at time.Time) ([]PermissionOverride, error)
	// NextExpiry returns the earliest expires_at after the given instant
	// among the user's effective assignments and overrides, or nil when
	// none of them expire. Cached resolutions must not outlive it.
	NextExpiry(ctx context.Context, userID int64, at time.Time) (*time.Time, error)

	GetAssignment(ctx context.Context, userID int64, roleID string) (RoleAssignment, error)
	UpsertAssignment(ctx context.Context, a RoleAssignment) error
	// DeactivateAssignment soft deletes the row and reports whether one
	// matched. A missing row is not an error.
	DeactivateAssignment(ctx context.Context, userID int64, roleID string) (bool, error)

	GetOverride(ctx context.Context, userID int64, permissionID string) (PermissionOverride, error)
	UpsertOverride(ctx context.Context, o PermissionOverride) error
	DeactivateOverride(ctx context.Context, userID int64, permissionID string) (bool, error)
}
