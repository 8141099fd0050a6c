package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/partshub-erp/partshub-erp/internal/rbac"
)

// ExpirySweeper is housekeeping for the policy tables. Expiry is evaluated
// lazily at query time, so expired rows never grant anything; the sweep only
// flips long-expired rows to inactive to keep the active partial indexes
// small.
type ExpirySweeper struct {
	pool   *pgxpool.Pool
	cache  *rbac.Cache
	logger *slog.Logger
}

// NewExpirySweeper constructs the sweep handler.
func NewExpirySweeper(pool *pgxpool.Pool, cache *rbac.Cache, logger *slog.Logger) *ExpirySweeper {
	return &ExpirySweeper{pool: pool, cache: cache, logger: logger}
}

// Handle processes TaskExpirySweep tasks.
func (s *ExpirySweeper) Handle(ctx context.Context, t *asynq.Task) error {
	var payload ExpirySweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	cutoff := time.Now().Add(-payload.Grace)

	assignments, err := s.pool.Exec(ctx, `
		UPDATE user_role_assignments SET status = 'inactive'
		WHERE status = 'active' AND expires_at IS NOT NULL AND expires_at < $1`, cutoff)
	if err != nil {
		return err
	}
	overrides, err := s.pool.Exec(ctx, `
		UPDATE user_permission_overrides SET status = 'inactive'
		WHERE status = 'active' AND expires_at IS NOT NULL AND expires_at < $1`, cutoff)
	if err != nil {
		return err
	}

	if assignments.RowsAffected() > 0 || overrides.RowsAffected() > 0 {
		if err := s.cache.InvalidateAll(ctx); err != nil && s.logger != nil {
			s.logger.Warn("expiry sweep cache invalidate", slog.Any("error", err))
		}
	}
	if s.logger != nil {
		s.logger.Info("rbac expiry sweep",
			slog.Int64("assignments", assignments.RowsAffected()),
			slog.Int64("overrides", overrides.RowsAffected()),
			slog.Time("cutoff", cutoff))
	}
	return nil
}
