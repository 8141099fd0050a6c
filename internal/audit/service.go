package audit

import (
	"context"
	"fmt"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

// RepositoryPort defines the persistence methods the service needs.
type RepositoryPort interface {
	Insert(ctx context.Context, e Entry) error
	List(ctx context.Context, limit, offset int32) ([]Entry, error)
}

// Service coordinates audit trail access.
type Service struct {
	repo RepositoryPort
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Record appends one entry. The caller decides how to handle a failure;
// policy mutations treat it as best-effort and never roll back.
func (s *Service) Record(ctx context.Context, e Entry) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("audit: repository not configured")
	}
	if e.Action == "" || e.ResourceType == "" {
		return fmt.Errorf("audit: entry requires action and resource type")
	}
	return s.repo.Insert(ctx, e)
}

// Log returns entries newest first. Limit defaults to 50 and is capped at
// 200; a negative offset reads from the start.
func (s *Service) Log(ctx context.Context, limit, offset int) ([]Entry, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("audit: repository not configured")
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, int32(limit), int32(offset))
}
