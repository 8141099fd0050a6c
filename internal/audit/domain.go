// Package audit persists the append-only trail of policy mutations. Entries
// are never updated or deleted; a failed write is reported to the caller,
// which decides whether the triggering operation should care.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Entry is one immutable audit row.
type Entry struct {
	ID uuid.UUID
	// ActorID is nil for system actions (seeding, background sweeps).
	ActorID      *int64
	Action       string
	ResourceType string
	ResourceID   string
	// OldValue and NewValue are snapshots of the mutated record, stored as
	// JSON. Either may be nil.
	OldValue any
	NewValue any
	IP       string
	UserAgent string
	CreatedAt time.Time

	// ActorName is populated on reads by joining the hosting application's
	// users table. Empty for system actions or unknown actors.
	ActorName string
}
