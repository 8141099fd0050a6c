package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for rbac_audit_log.
type Repository struct {
	pool       *pgxpool.Pool
	actorNames bool
}

// NewRepository constructs a repository. By default List reads only the
// engine's own table; ActorName stays empty.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithActorNames makes List join the hosting application's users table to
// fill in ActorName. The engine's migrations do not create that table, so
// only hosts that have one should opt in.
func (r *Repository) WithActorNames() *Repository {
	r.actorNames = true
	return r
}

// Insert appends one entry. Snapshots are marshalled to JSONB; a zero ID is
// replaced with a fresh uuid.
func (r *Repository) Insert(ctx context.Context, e Entry) error {
	id := e.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	oldJSON, err := marshalSnapshot(e.OldValue)
	if err != nil {
		return err
	}
	newJSON, err := marshalSnapshot(e.NewValue)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO rbac_audit_log (id, actor_id, action, resource_type, resource_id, old_value, new_value, ip, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''), COALESCE($10, NOW()))`,
		id, e.ActorID, e.Action, e.ResourceType, e.ResourceID, oldJSON, newJSON, e.IP, e.UserAgent, nullableTime(e.CreatedAt))
	return err
}

const listSQL = `
	SELECT e.id, e.actor_id, e.action, e.resource_type, e.resource_id,
	       e.old_value, e.new_value, COALESCE(e.ip, ''), COALESCE(e.user_agent, ''),
	       e.created_at, ''::text
	FROM rbac_audit_log e
	ORDER BY e.created_at DESC, e.id DESC
	LIMIT $1 OFFSET $2`

const listWithActorNamesSQL = `
	SELECT e.id, e.actor_id, e.action, e.resource_type, e.resource_id,
	       e.old_value, e.new_value, COALESCE(e.ip, ''), COALESCE(e.user_agent, ''),
	       e.created_at, COALESCE(u.name, '')
	FROM rbac_audit_log e
	LEFT JOIN users u ON u.id = e.actor_id
	ORDER BY e.created_at DESC, e.id DESC
	LIMIT $1 OFFSET $2`

func (r *Repository) listQuery() string {
	if r.actorNames {
		return listWithActorNamesSQL
	}
	return listSQL
}

// List returns entries newest first.
func (r *Repository) List(ctx context.Context, limit, offset int32) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, r.listQuery(), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		var (
			e        Entry
			oldValue []byte
			newValue []byte
		)
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &e.ResourceType, &e.ResourceID,
			&oldValue, &newValue, &e.IP, &e.UserAgent, &e.CreatedAt, &e.ActorName); err != nil {
			return nil, err
		}
		if len(oldValue) > 0 {
			e.OldValue = json.RawMessage(oldValue)
		}
		if len(newValue) > 0 {
			e.NewValue = json.RawMessage(newValue)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func marshalSnapshot(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
