package rbac

import (
	"errors"
	"time"

	"golang.org/x/text/language"
)

// ErrNotFound indicates that the requested record does not exist.
var ErrNotFound = errors.New("rbac: not found")

// Status is the lifecycle state of an assignment or override row.
// Rows are soft deleted: removal flips the status instead of deleting,
// so the audit trail keeps pointing at a real row.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Permission represents an atomic capability, keyed as "resource.action".
// Labels are bilingual; the Indonesian variants carry the ID suffix.
type Permission struct {
	ID            string
	Resource      string
	Action        string
	Name          string
	NameID        string
	Description   string
	DescriptionID string
	// Conditions are opaque qualifier strings reserved for caller-side
	// context checks. The engine stores them but never evaluates them.
	Conditions []string
}

// Label returns the display name for the given locale.
func (p Permission) Label(tag language.Tag) string {
	if tag == language.Indonesian && p.NameID != "" {
		return p.NameID
	}
	return p.Name
}

// Describe returns the description for the given locale.
func (p Permission) Describe(tag language.Tag) string {
	if tag == language.Indonesian && p.DescriptionID != "" {
		return p.DescriptionID
	}
	return p.Description
}

// Role bundles permissions under a reusable name. Built-in roles are seeded
// once and flagged IsSystemRole; the engine itself does not prevent edits to
// them, callers are expected to.
type Role struct {
	ID            string
	Name          string
	NameID        string
	Description   string
	DescriptionID string
	PermissionIDs []string
	IsSystemRole  bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Label returns the display name for the given locale.
func (r Role) Label(tag language.Tag) string {
	if tag == language.Indonesian && r.NameID != "" {
		return r.NameID
	}
	return r.Name
}

// HasPermission reports whether the role's permission set contains id.
func (r Role) HasPermission(id string) bool {
	for _, p := range r.PermissionIDs {
		if p == id {
			return true
		}
	}
	return false
}

// RoleAssignment links a user to a role. At most one row exists per
// (user, role) pair; re-assigning replaces the row.
type RoleAssignment struct {
	UserID     int64
	RoleID     string
	AssignedBy int64
	AssignedAt time.Time
	ExpiresAt  *time.Time
	Status     Status
}

// EffectiveAt reports whether the assignment grants anything at t.
func (a RoleAssignment) EffectiveAt(t time.Time) bool {
	if a.Status != StatusActive {
		return false
	}
	return a.ExpiresAt == nil || a.ExpiresAt.After(t)
}

// PermissionOverride is a per-user exception that takes precedence over
// role-derived access. Granted=false is an explicit deny, which is distinct
// from an inactive (revoked) row.
type PermissionOverride struct {
	UserID       int64
	PermissionID string
	Granted      bool
	Reason       string
	GrantedBy    int64
	GrantedAt    time.Time
	ExpiresAt    *time.Time
	Status       Status
}

// EffectiveAt reports whether the override applies at t.
func (o PermissionOverride) EffectiveAt(t time.Time) bool {
	if o.Status != StatusActive {
		return false
	}
	return o.ExpiresAt == nil || o.ExpiresAt.After(t)
}
