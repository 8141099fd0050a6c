package audit

import (
	"context"
	"strings"
	"testing"
	"time"
)

type stubRepo struct {
	inserted []Entry
	limit    int32
	offset   int32
}

func (s *stubRepo) Insert(ctx context.Context, e Entry) error {
	s.inserted = append(s.inserted, e)
	return nil
}

func (s *stubRepo) List(ctx context.Context, limit, offset int32) ([]Entry, error) {
	s.limit, s.offset = limit, offset
	return nil, nil
}

func TestRecordRequiresActionAndResource(t *testing.T) {
	repo := &stubRepo{}
	svc := NewService(repo)
	ctx := context.Background()

	if err := svc.Record(ctx, Entry{ResourceType: "role"}); err == nil {
		t.Fatal("expected error for missing action")
	}
	if err := svc.Record(ctx, Entry{Action: "assign_role"}); err == nil {
		t.Fatal("expected error for missing resource type")
	}
	err := svc.Record(ctx, Entry{
		Action:       "assign_role",
		ResourceType: "role_assignment",
		ResourceID:   "42:cashier",
		CreatedAt:    time.Now(),
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if len(repo.inserted) != 1 {
		t.Fatalf("inserted = %d, want 1", len(repo.inserted))
	}
}

func TestRecordWithoutRepository(t *testing.T) {
	var svc *Service
	if err := svc.Record(context.Background(), Entry{Action: "x", ResourceType: "y"}); err == nil {
		t.Fatal("expected error from nil service")
	}
	if err := NewService(nil).Record(context.Background(), Entry{Action: "x", ResourceType: "y"}); err == nil {
		t.Fatal("expected error from nil repository")
	}
}

func TestListQueryTouchesOnlyOwnTableByDefault(t *testing.T) {
	// The engine's migrations create rbac_audit_log but no users table, so
	// the default read must not reference one.
	plain := NewRepository(nil).listQuery()
	if strings.Contains(plain, "users") {
		t.Fatalf("default list query references users:\n%s", plain)
	}
	joined := NewRepository(nil).WithActorNames().listQuery()
	if !strings.Contains(joined, "LEFT JOIN users") {
		t.Fatalf("opt-in list query missing users join:\n%s", joined)
	}
}

func TestLogClampsPaging(t *testing.T) {
	cases := []struct {
		name                  string
		limit, offset         int
		wantLimit, wantOffset int32
	}{
		{"defaults", 0, 0, 50, 0},
		{"negative", -5, -10, 50, 0},
		{"capped", 1000, 20, 200, 20},
		{"passthrough", 25, 75, 25, 75},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &stubRepo{}
			if _, err := NewService(repo).Log(context.Background(), tc.limit, tc.offset); err != nil {
				t.Fatalf("log: %v", err)
			}
			if repo.limit != tc.wantLimit || repo.offset != tc.wantOffset {
				t.Fatalf("got (%d,%d), want (%d,%d)", repo.limit, repo.offset, tc.wantLimit, tc.wantOffset)
			}
		})
	}
}
