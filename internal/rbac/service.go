package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/partshub-erp/partshub-erp/internal/audit"
)

// Audit action and resource names, mirrored in the audit trail.
const (
	actionAssignRole         = "assign_role"
	actionRemoveRole         = "remove_role"
	actionGrantOverride      = "grant_override"
	actionDenyOverride       = "deny_override"
	actionRevokeOverride     = "revoke_override"
	actionCreateRole         = "create_role"
	actionSetRolePermissions = "set_role_permissions"

	resourceRoleAssignment     = "role_assignment"
	resourcePermissionOverride = "permission_override"
	resourceRole               = "role"
)

// AuditTrail is the audit surface the engine consumes and re-exposes.
// *audit.Service satisfies it.
type AuditTrail interface {
	Record(ctx context.Context, e audit.Entry) error
	Log(ctx context.Context, limit, offset int) ([]audit.Entry, error)
}

// ConditionHook lets the hosting application evaluate a permission's
// conditions against caller-supplied attributes. It runs only for allow
// decisions on permissions that carry conditions, and may veto them. The
// engine itself never interprets conditions.
type ConditionHook func(p Permission, attrs map[string]any) bool

// ServiceConfig collects the service's dependencies. Store is required;
// everything else is optional.
type ServiceConfig struct {
	Store         Store
	Audit         AuditTrail
	Cache         *Cache
	Metrics       *Metrics
	Logger        *slog.Logger
	Clock         func() time.Time
	ConditionHook ConditionHook
}

// Service is the authorization engine: it resolves permission checks and
// manages role assignments and per-user overrides, writing one audit entry
// per mutation.
type Service struct {
	store         Store
	audit         AuditTrail
	cache         *Cache
	metrics       *Metrics
	logger        *slog.Logger
	now           func() time.Time
	conditionHook ConditionHook
	validate      *validator.Validate
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) *Service {
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:         cfg.Store,
		audit:         cfg.Audit,
		cache:         cfg.Cache,
		metrics:       cfg.Metrics,
		logger:        logger,
		now:           now,
		conditionHook: cfg.ConditionHook,
		validate:      validator.New(),
	}
}

// Initialize seeds the permission and role catalogs when no roles exist yet.
// Run it once at process startup before serving traffic; a concurrent
// first-run losing the insert race is treated as success. Any other failure
// is startup fatal and propagates.
func (s *Service) Initialize(ctx context.Context) error {
	if s.store == nil {
		return errors.New("rbac: store not configured")
	}
	count, err := s.store.CountRoles(ctx)
	if err != nil {
		return fmt.Errorf("rbac: count roles: %w", err)
	}
	if count > 0 {
		return nil
	}
	perms := BuiltinPermissions()
	for _, p := range perms {
		if err := s.store.InsertPermission(ctx, p); err != nil {
			if IsUniqueViolation(err) {
				continue
			}
			return fmt.Errorf("rbac: seed permission %s: %w", p.ID, err)
		}
	}
	roles := BuiltinRoles(s.now())
	for _, r := range roles {
		if err := s.store.InsertRole(ctx, r); err != nil {
			if IsUniqueViolation(err) {
				continue
			}
			return fmt.Errorf("rbac: seed role %s: %w", r.ID, err)
		}
	}
	s.logger.Info("rbac catalogs seeded",
		slog.Int("permissions", len(perms)), slog.Int("roles", len(roles)))
	return nil
}

// HasPermission reports whether the user may exercise the permission right
// now. Effective role assignments establish the baseline; an effective
// override wins unconditionally in either direction. Storage errors fail
// closed: the error is logged and counted, and the caller sees a plain
// deny.
//
// attrs is handed to the configured ConditionHook, if any; otherwise it is
// ignored.
func (s *Service) HasPermission(ctx context.Context, userID int64, permissionID string, attrs map[string]any) bool {
	permissionID = strings.TrimSpace(permissionID)
	if s.store == nil || permissionID == "" {
		s.metrics.Decision(OutcomeDenied)
		return false
	}
	at := s.now()
	snap, err := s.cache.Fetch(ctx, userID, at, s.snapshotLoader(userID, at))
	if err != nil {
		s.logger.Error("rbac resolution failed, denying",
			slog.Int64("user_id", userID), slog.String("permission", permissionID), slog.Any("error", err))
		s.metrics.Decision(OutcomeError)
		return false
	}
	allowed := false
	for _, id := range snap.RolePermissions {
		if id == permissionID {
			allowed = true
			break
		}
	}
	if granted, ok := snap.Overrides[permissionID]; ok {
		allowed = granted
	}
	if allowed && s.conditionHook != nil {
		perm, err := s.store.GetPermission(ctx, permissionID)
		switch {
		case errors.Is(err, ErrNotFound):
			// Unknown permission id, nothing to evaluate.
		case err != nil:
			s.logger.Error("rbac condition lookup failed, denying",
				slog.String("permission", permissionID), slog.Any("error", err))
			s.metrics.Decision(OutcomeError)
			return false
		case len(perm.Conditions) > 0:
			allowed = s.conditionHook(perm, attrs)
		}
	}
	if allowed {
		s.metrics.Decision(OutcomeAllowed)
	} else {
		s.metrics.Decision(OutcomeDenied)
	}
	return allowed
}

// GetUserRoles returns full Role records for the user's effective
// assignments. Store errors fail closed to an empty result.
func (s *Service) GetUserRoles(ctx context.Context, userID int64) []Role {
	if s.store == nil {
		return nil
	}
	roles, err := s.store.EffectiveRoles(ctx, userID, s.now())
	if err != nil {
		s.logger.Error("rbac load user roles failed",
			slog.Int64("user_id", userID), slog.Any("error", err))
		return nil
	}
	return roles
}

func (s *Service) snapshotLoader(userID int64, at time.Time) func(context.Context) (Snapshot, error) {
	return func(ctx context.Context) (Snapshot, error) {
		roles, err := s.store.EffectiveRoles(ctx, userID, at)
		if err != nil {
			return Snapshot{}, err
		}
		seen := make(map[string]struct{})
		var permIDs []string
		for _, role := range roles {
			for _, id := range role.PermissionIDs {
				if _, ok := seen[id]; ok {
					continue
				}
				seen[id] = struct{}{}
				permIDs = append(permIDs, id)
			}
		}
		overrides, err := s.store.EffectiveOverrides(ctx, userID, at)
		if err != nil {
			return Snapshot{}, err
		}
		var byPerm map[string]bool
		if len(overrides) > 0 {
			byPerm = make(map[string]bool, len(overrides))
			for _, o := range overrides {
				byPerm[o.PermissionID] = o.Granted
			}
		}
		nextExpiry, err := s.store.NextExpiry(ctx, userID, at)
		if err != nil {
			return Snapshot{}, err
		}
		return Snapshot{RolePermissions: permIDs, Overrides: byPerm, ExpiresAt: nextExpiry}, nil
	}
}

// AssignRoleParams describes an assign-role mutation.
type AssignRoleParams struct {
	UserID     int64  `validate:"required,gt=0"`
	RoleID     string `validate:"required"`
	AssignedBy int64  `validate:"required,gt=0"`
	ExpiresAt  *time.Time
	IP         string
	UserAgent  string
}

// AssignRole upserts the (user, role) assignment and appends one audit
// entry. Assigning an already-held role refreshes assigned_by and the
// expiry instead of duplicating the row.
func (s *Service) AssignRole(ctx context.Context, p AssignRoleParams) error {
	if err := s.validate.Struct(p); err != nil {
		return fmt.Errorf("rbac: assign role: %w", err)
	}
	if _, err := s.store.GetRole(ctx, p.RoleID); err != nil {
		return fmt.Errorf("rbac: assign role %s: %w", p.RoleID, err)
	}
	prior := s.priorAssignment(ctx, p.UserID, p.RoleID)
	rec := RoleAssignment{
		UserID:     p.UserID,
		RoleID:     p.RoleID,
		AssignedBy: p.AssignedBy,
		AssignedAt: s.now(),
		ExpiresAt:  p.ExpiresAt,
		Status:     StatusActive,
	}
	if err := s.store.UpsertAssignment(ctx, rec); err != nil {
		return fmt.Errorf("rbac: assign role: %w", err)
	}
	s.invalidateUser(ctx, p.UserID)
	s.recordAudit(ctx, p.AssignedBy, actionAssignRole, resourceRoleAssignment,
		assignmentResourceID(p.UserID, p.RoleID), prior, rec, p.IP, p.UserAgent)
	return nil
}

// RemoveRoleParams describes a remove-role mutation.
type RemoveRoleParams struct {
	UserID    int64  `validate:"required,gt=0"`
	RoleID    string `validate:"required"`
	RemovedBy int64  `validate:"required,gt=0"`
	IP        string
	UserAgent string
}

// RemoveRole soft deletes the assignment. Removing an assignment that never
// existed is a success, not an error, and is still audited.
func (s *Service) RemoveRole(ctx context.Context, p RemoveRoleParams) error {
	if err := s.validate.Struct(p); err != nil {
		return fmt.Errorf("rbac: remove role: %w", err)
	}
	prior := s.priorAssignment(ctx, p.UserID, p.RoleID)
	if _, err := s.store.DeactivateAssignment(ctx, p.UserID, p.RoleID); err != nil {
		return fmt.Errorf("rbac: remove role: %w", err)
	}
	s.invalidateUser(ctx, p.UserID)
	s.recordAudit(ctx, p.RemovedBy, actionRemoveRole, resourceRoleAssignment,
		assignmentResourceID(p.UserID, p.RoleID), prior, nil, p.IP, p.UserAgent)
	return nil
}

// OverrideParams describes a grant or deny override mutation.
type OverrideParams struct {
	UserID       int64  `validate:"required,gt=0"`
	PermissionID string `validate:"required"`
	GrantedBy    int64  `validate:"required,gt=0"`
	Reason       string
	ExpiresAt    *time.Time
	IP           string
	UserAgent    string
}

// GrantOverride upserts an explicit allow for (user, permission). It takes
// precedence over whatever the user's roles say.
func (s *Service) GrantOverride(ctx context.Context, p OverrideParams) error {
	return s.writeOverride(ctx, p, true, actionGrantOverride)
}

// DenyOverride upserts an explicit deny for (user, permission), suppressing
// role-derived access until revoked or expired.
func (s *Service) DenyOverride(ctx context.Context, p OverrideParams) error {
	return s.writeOverride(ctx, p, false, actionDenyOverride)
}

func (s *Service) writeOverride(ctx context.Context, p OverrideParams, granted bool, action string) error {
	if err := s.validate.Struct(p); err != nil {
		return fmt.Errorf("rbac: %s: %w", action, err)
	}
	if _, err := s.store.GetPermission(ctx, p.PermissionID); err != nil {
		return fmt.Errorf("rbac: %s %s: %w", action, p.PermissionID, err)
	}
	prior := s.priorOverride(ctx, p.UserID, p.PermissionID)
	rec := PermissionOverride{
		UserID:       p.UserID,
		PermissionID: p.PermissionID,
		Granted:      granted,
		Reason:       strings.TrimSpace(p.Reason),
		GrantedBy:    p.GrantedBy,
		GrantedAt:    s.now(),
		ExpiresAt:    p.ExpiresAt,
		Status:       StatusActive,
	}
	if err := s.store.UpsertOverride(ctx, rec); err != nil {
		return fmt.Errorf("rbac: %s: %w", action, err)
	}
	s.invalidateUser(ctx, p.UserID)
	s.recordAudit(ctx, p.GrantedBy, action, resourcePermissionOverride,
		overrideResourceID(p.UserID, p.PermissionID), prior, rec, p.IP, p.UserAgent)
	return nil
}

// RevokeOverrideParams describes a revoke-override mutation.
type RevokeOverrideParams struct {
	UserID       int64  `validate:"required,gt=0"`
	PermissionID string `validate:"required"`
	RevokedBy    int64  `validate:"required,gt=0"`
	Reason       string
	IP           string
	UserAgent    string
}

// RevokeOverride deactivates the override. A revoked deny is gone too: the
// user falls back to role-derived access.
func (s *Service) RevokeOverride(ctx context.Context, p RevokeOverrideParams) error {
	if err := s.validate.Struct(p); err != nil {
		return fmt.Errorf("rbac: revoke override: %w", err)
	}
	prior := s.priorOverride(ctx, p.UserID, p.PermissionID)
	if _, err := s.store.DeactivateOverride(ctx, p.UserID, p.PermissionID); err != nil {
		return fmt.Errorf("rbac: revoke override: %w", err)
	}
	s.invalidateUser(ctx, p.UserID)
	newValue := map[string]any{"status": string(StatusInactive)}
	if reason := strings.TrimSpace(p.Reason); reason != "" {
		newValue["reason"] = reason
	}
	s.recordAudit(ctx, p.RevokedBy, actionRevokeOverride, resourcePermissionOverride,
		overrideResourceID(p.UserID, p.PermissionID), prior, newValue, p.IP, p.UserAgent)
	return nil
}

// AllPermissions returns the full permission catalog.
func (s *Service) AllPermissions(ctx context.Context) ([]Permission, error) {
	perms, err := s.store.ListPermissions(ctx)
	if err != nil {
		return nil, fmt.Errorf("rbac: list permissions: %w", err)
	}
	return perms, nil
}

// AllRoles returns every role, system and custom.
func (s *Service) AllRoles(ctx context.Context) ([]Role, error) {
	roles, err := s.store.ListRoles(ctx)
	if err != nil {
		return nil, fmt.Errorf("rbac: list roles: %w", err)
	}
	return roles, nil
}

// AuditLog returns the audit trail, newest first.
func (s *Service) AuditLog(ctx context.Context, limit, offset int) ([]audit.Entry, error) {
	if s.audit == nil {
		return nil, errors.New("rbac: audit trail not configured")
	}
	return s.audit.Log(ctx, limit, offset)
}

// CreateRoleParams describes a custom role.
type CreateRoleParams struct {
	ID            string `validate:"required"`
	Name          string `validate:"required"`
	NameID        string
	Description   string
	DescriptionID string
	PermissionIDs []string
	CreatedBy     int64 `validate:"required,gt=0"`
	IP            string
	UserAgent     string
}

// CreateRole inserts a custom role. Every referenced permission must exist
// in the catalog.
func (s *Service) CreateRole(ctx context.Context, p CreateRoleParams) (Role, error) {
	if err := s.validate.Struct(p); err != nil {
		return Role{}, fmt.Errorf("rbac: create role: %w", err)
	}
	if err := s.checkPermissionIDs(ctx, p.PermissionIDs); err != nil {
		return Role{}, fmt.Errorf("rbac: create role: %w", err)
	}
	now := s.now()
	role := Role{
		ID:            strings.TrimSpace(p.ID),
		Name:          strings.TrimSpace(p.Name),
		NameID:        strings.TrimSpace(p.NameID),
		Description:   strings.TrimSpace(p.Description),
		DescriptionID: strings.TrimSpace(p.DescriptionID),
		PermissionIDs: p.PermissionIDs,
		IsSystemRole:  false,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.InsertRole(ctx, role); err != nil {
		if IsUniqueViolation(err) {
			return Role{}, fmt.Errorf("rbac: role %s already exists", role.ID)
		}
		return Role{}, fmt.Errorf("rbac: create role: %w", err)
	}
	s.recordAudit(ctx, p.CreatedBy, actionCreateRole, resourceRole, role.ID, nil, role, p.IP, p.UserAgent)
	return role, nil
}

// SetRolePermissionsParams describes a role permission-set replacement.
type SetRolePermissionsParams struct {
	RoleID        string `validate:"required"`
	PermissionIDs []string
	UpdatedBy     int64 `validate:"required,gt=0"`
	IP            string
	UserAgent     string
}

// SetRolePermissions replaces a role's permission set. System roles are not
// special-cased here; keeping them immutable is the caller's policy.
func (s *Service) SetRolePermissions(ctx context.Context, p SetRolePermissionsParams) error {
	if err := s.validate.Struct(p); err != nil {
		return fmt.Errorf("rbac: set role permissions: %w", err)
	}
	role, err := s.store.GetRole(ctx, p.RoleID)
	if err != nil {
		return fmt.Errorf("rbac: set role permissions %s: %w", p.RoleID, err)
	}
	if err := s.checkPermissionIDs(ctx, p.PermissionIDs); err != nil {
		return fmt.Errorf("rbac: set role permissions: %w", err)
	}
	if err := s.store.UpdateRolePermissions(ctx, p.RoleID, p.PermissionIDs); err != nil {
		return fmt.Errorf("rbac: set role permissions: %w", err)
	}
	// Role edits change the resolution for every holder of the role.
	if err := s.cache.InvalidateAll(ctx); err != nil {
		s.logger.Warn("rbac cache invalidate all", slog.Any("error", err))
	}
	s.recordAudit(ctx, p.UpdatedBy, actionSetRolePermissions, resourceRole, p.RoleID,
		role.PermissionIDs, p.PermissionIDs, p.IP, p.UserAgent)
	return nil
}

func (s *Service) checkPermissionIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	perms, err := s.store.ListPermissions(ctx)
	if err != nil {
		return err
	}
	known := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		known[p.ID] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			return fmt.Errorf("unknown permission %q", id)
		}
	}
	return nil
}

func (s *Service) priorAssignment(ctx context.Context, userID int64, roleID string) *RoleAssignment {
	a, err := s.store.GetAssignment(ctx, userID, roleID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn("rbac load prior assignment", slog.Any("error", err))
		}
		return nil
	}
	return &a
}

func (s *Service) priorOverride(ctx context.Context, userID int64, permissionID string) *PermissionOverride {
	o, err := s.store.GetOverride(ctx, userID, permissionID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn("rbac load prior override", slog.Any("error", err))
		}
		return nil
	}
	return &o
}

// recordAudit appends one entry after a successful mutation. Audit writes
// are best effort: failures are logged and counted, the mutation stands.
func (s *Service) recordAudit(ctx context.Context, actorID int64, action, resourceType, resourceID string, oldValue, newValue any, ip, userAgent string) {
	if s.audit == nil {
		return
	}
	var actor *int64
	if actorID > 0 {
		actor = &actorID
	}
	err := s.audit.Record(ctx, audit.Entry{
		ActorID:      actor,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		OldValue:     oldValue,
		NewValue:     newValue,
		IP:           ip,
		UserAgent:    userAgent,
		CreatedAt:    s.now(),
	})
	if err != nil {
		s.logger.Error("rbac audit write failed",
			slog.String("action", action), slog.String("resource_id", resourceID), slog.Any("error", err))
		s.metrics.AuditWriteFailure()
	}
}

func (s *Service) invalidateUser(ctx context.Context, userID int64) {
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.logger.Warn("rbac cache invalidate", slog.Int64("user_id", userID), slog.Any("error", err))
	}
}

func assignmentResourceID(userID int64, roleID string) string {
	return fmt.Sprintf("%d:%s", userID, roleID)
}

func overrideResourceID(userID int64, permissionID string) string {
	return fmt.Sprintf("%d:%s", userID, permissionID)
}
