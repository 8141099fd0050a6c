package rbac

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// PermissionChecker is the decision surface the middleware needs.
// *Service satisfies it.
type PermissionChecker interface {
	HasPermission(ctx context.Context, userID int64, permissionID string, attrs map[string]any) bool
}

// UserIDFunc extracts the authenticated user's id from a request. Identity
// is owned by the hosting application; the guard only consumes it.
type UserIDFunc func(r *http.Request) (int64, bool)

// Middleware wires authorization guards for the hosting application's HTTP
// handlers. The engine owns no routes of its own.
type Middleware struct {
	Checker PermissionChecker
	UserID  UserIDFunc
	Logger  *slog.Logger
}

// RequireAny lets the request through when the user holds at least one of
// the permissions.
func (m Middleware) RequireAny(perms ...string) func(http.Handler) http.Handler {
	normalized := normalizePermissions(perms)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(normalized) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			userID, ok := m.currentUserID(r)
			if !ok {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			for _, p := range normalized {
				if m.Checker.HasPermission(r.Context(), userID, p, nil) {
					next.ServeHTTP(w, r)
					return
				}
			}
			m.logDenied(r, userID, normalized)
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		})
	}
}

// RequireAll lets the request through only when the user holds every
// permission.
func (m Middleware) RequireAll(perms ...string) func(http.Handler) http.Handler {
	normalized := normalizePermissions(perms)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(normalized) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			userID, ok := m.currentUserID(r)
			if !ok {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			for _, p := range normalized {
				if !m.Checker.HasPermission(r.Context(), userID, p, nil) {
					m.logDenied(r, userID, normalized)
					http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) currentUserID(r *http.Request) (int64, bool) {
	if m.UserID == nil {
		return 0, false
	}
	return m.UserID(r)
}

func (m Middleware) logDenied(r *http.Request, userID int64, perms []string) {
	if m.Logger == nil {
		return
	}
	m.Logger.Info("rbac request denied",
		slog.Int64("user_id", userID),
		slog.String("route", routePattern(r)),
		slog.String("permissions", strings.Join(perms, ",")))
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

func normalizePermissions(perms []string) []string {
	unique := make(map[string]struct{}, len(perms))
	normalized := make([]string, 0, len(perms))
	for _, p := range perms {
		p = strings.TrimSpace(strings.ToLower(p))
		if p == "" {
			continue
		}
		if _, ok := unique[p]; ok {
			continue
		}
		unique[p] = struct{}{}
		normalized = append(normalized, p)
	}
	return normalized
}
