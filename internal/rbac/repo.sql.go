package rbac

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// IsUniqueViolation reports whether err is a duplicate-key failure. First-run
// seeding races rely on this to treat a lost insert race as success.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// CountRoles returns the number of role rows.
func (r *Repository) CountRoles(ctx context.Context) (int64, error) {
	var count int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM roles`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// InsertPermission inserts a catalog entry.
func (r *Repository) InsertPermission(ctx context.Context, p Permission) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO permissions (id, resource, action, name, name_id, description, description_id, conditions)
		VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, '{}'::text[]))`,
		p.ID, p.Resource, p.Action, p.Name, p.NameID, p.Description, p.DescriptionID, p.Conditions)
	return err
}

// InsertRole inserts a role row.
func (r *Repository) InsertRole(ctx context.Context, role Role) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO roles (id, name, name_id, description, description_id, permission_ids, is_system_role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, '{}'::text[]), $7, COALESCE($8, NOW()), COALESCE($8, NOW()))`,
		role.ID, role.Name, role.NameID, role.Description, role.DescriptionID,
		role.PermissionIDs, role.IsSystemRole, nullableTime(role.CreatedAt))
	return err
}

// UpdateRolePermissions replaces a role's permission set.
func (r *Repository) UpdateRolePermissions(ctx context.Context, roleID string, permissionIDs []string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE roles SET permission_ids = COALESCE($2, '{}'::text[]), updated_at = NOW() WHERE id = $1`,
		roleID, permissionIDs)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetPermission fetches one catalog entry.
func (r *Repository) GetPermission(ctx context.Context, id string) (Permission, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, resource, action, name, name_id, description, description_id, conditions
		FROM permissions WHERE id = $1`, id)
	p, err := scanPermission(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Permission{}, ErrNotFound
	}
	return p, err
}

// ListPermissions returns the full catalog ordered by id.
func (r *Repository) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, resource, action, name, name_id, description, description_id, conditions
		FROM permissions ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		p, err := scanPermission(rows)
		if err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return perms, nil
}

// GetRole fetches a role by id.
func (r *Repository) GetRole(ctx context.Context, id string) (Role, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, name_id, description, description_id, permission_ids, is_system_role, created_at, updated_at
		FROM roles WHERE id = $1`, id)
	role, err := scanRole(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Role{}, ErrNotFound
	}
	return role, err
}

// ListRoles returns all roles ordered by id.
func (r *Repository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, name_id, description, description_id, permission_ids, is_system_role, created_at, updated_at
		FROM roles ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRoles(rows)
}

// EffectiveRoles joins active, non-expired assignments with their roles.
func (r *Repository) EffectiveRoles(ctx context.Context, userID int64, at time.Time) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT r.id, r.name, r.name_id, r.description, r.description_id, r.permission_ids, r.is_system_role, r.created_at, r.updated_at
		FROM user_role_assignments a
		JOIN roles r ON r.id = a.role_id
		WHERE a.user_id = $1
		  AND a.status = 'active'
		  AND (a.expires_at IS NULL OR a.expires_at > $2)
		ORDER BY r.id`, userID, at)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRoles(rows)
}

// EffectiveOverrides returns the user's active, non-expired overrides.
func (r *Repository) EffectiveOverrides(ctx context.Context, userID int64, at time.Time) ([]PermissionOverride, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT user_id, permission_id, granted, reason, granted_by, granted_at, expires_at, status
		FROM user_permission_overrides
		WHERE user_id = $1
		  AND status = 'active'
		  AND (expires_at IS NULL OR expires_at > $2)`, userID, at)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var overrides []PermissionOverride
	for rows.Next() {
		o, err := scanOverride(rows)
		if err != nil {
			return nil, err
		}
		overrides = append(overrides, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return overrides, nil
}

// NextExpiry returns the earliest pending expires_at among the user's
// effective assignments and overrides, nil when nothing expires.
func (r *Repository) NextExpiry(ctx context.Context, userID int64, at time.Time) (*time.Time, error) {
	var next *time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT MIN(expires_at) FROM (
			SELECT expires_at FROM user_role_assignments
			WHERE user_id = $1 AND status = 'active'
			  AND expires_at IS NOT NULL AND expires_at > $2
			UNION ALL
			SELECT expires_at FROM user_permission_overrides
			WHERE user_id = $1 AND status = 'active'
			  AND expires_at IS NOT NULL AND expires_at > $2
		) pending`, userID, at).Scan(&next)
	if err != nil {
		return nil, err
	}
	return next, nil
}

// GetAssignment fetches the row for (userID, roleID) regardless of status.
func (r *Repository) GetAssignment(ctx context.Context, userID int64, roleID string) (RoleAssignment, error) {
	var (
		a      RoleAssignment
		status string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT user_id, role_id, assigned_by, assigned_at, expires_at, status
		FROM user_role_assignments WHERE user_id = $1 AND role_id = $2`, userID, roleID).
		Scan(&a.UserID, &a.RoleID, &a.AssignedBy, &a.AssignedAt, &a.ExpiresAt, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return RoleAssignment{}, ErrNotFound
	}
	if err != nil {
		return RoleAssignment{}, err
	}
	a.Status = Status(status)
	return a, nil
}

// UpsertAssignment writes the (user, role) row, replacing any previous one.
// The conflict target keeps the composite-key uniqueness invariant under
// concurrent writers.
func (r *Repository) UpsertAssignment(ctx context.Context, a RoleAssignment) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_role_assignments (user_id, role_id, assigned_by, assigned_at, expires_at, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, role_id) DO UPDATE SET
			assigned_by = EXCLUDED.assigned_by,
			assigned_at = EXCLUDED.assigned_at,
			expires_at  = EXCLUDED.expires_at,
			status      = EXCLUDED.status`,
		a.UserID, a.RoleID, a.AssignedBy, a.AssignedAt, a.ExpiresAt, string(a.Status))
	return err
}

// DeactivateAssignment soft deletes the row and reports whether one matched.
func (r *Repository) DeactivateAssignment(ctx context.Context, userID int64, roleID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE user_role_assignments SET status = 'inactive'
		WHERE user_id = $1 AND role_id = $2`, userID, roleID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// GetOverride fetches the row for (userID, permissionID) regardless of status.
func (r *Repository) GetOverride(ctx context.Context, userID int64, permissionID string) (PermissionOverride, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT user_id, permission_id, granted, reason, granted_by, granted_at, expires_at, status
		FROM user_permission_overrides WHERE user_id = $1 AND permission_id = $2`, userID, permissionID)
	o, err := scanOverride(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return PermissionOverride{}, ErrNotFound
	}
	return o, err
}

// UpsertOverride writes the (user, permission) row, replacing any previous one.
func (r *Repository) UpsertOverride(ctx context.Context, o PermissionOverride) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_permission_overrides (user_id, permission_id, granted, reason, granted_by, granted_at, expires_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id, permission_id) DO UPDATE SET
			granted    = EXCLUDED.granted,
			reason     = EXCLUDED.reason,
			granted_by = EXCLUDED.granted_by,
			granted_at = EXCLUDED.granted_at,
			expires_at = EXCLUDED.expires_at,
			status     = EXCLUDED.status`,
		o.UserID, o.PermissionID, o.Granted, o.Reason, o.GrantedBy, o.GrantedAt, o.ExpiresAt, string(o.Status))
	return err
}

// DeactivateOverride soft deletes the row and reports whether one matched.
func (r *Repository) DeactivateOverride(ctx context.Context, userID int64, permissionID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE user_permission_overrides SET status = 'inactive'
		WHERE user_id = $1 AND permission_id = $2`, userID, permissionID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func scanPermission(row pgx.Row) (Permission, error) {
	var p Permission
	err := row.Scan(&p.ID, &p.Resource, &p.Action, &p.Name, &p.NameID, &p.Description, &p.DescriptionID, &p.Conditions)
	return p, err
}

func scanRole(row pgx.Row) (Role, error) {
	var role Role
	err := row.Scan(&role.ID, &role.Name, &role.NameID, &role.Description, &role.DescriptionID,
		&role.PermissionIDs, &role.IsSystemRole, &role.CreatedAt, &role.UpdatedAt)
	return role, err
}

func scanOverride(row pgx.Row) (PermissionOverride, error) {
	var (
		o      PermissionOverride
		status string
	)
	err := row.Scan(&o.UserID, &o.PermissionID, &o.Granted, &o.Reason, &o.GrantedBy, &o.GrantedAt, &o.ExpiresAt, &status)
	if err != nil {
		return PermissionOverride{}, err
	}
	o.Status = Status(status)
	return o, nil
}

func collectRoles(rows pgx.Rows) ([]Role, error) {
	var roles []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
