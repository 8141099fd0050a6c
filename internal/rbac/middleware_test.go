package rbac

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

type staticChecker struct {
	granted map[string]bool
	asked   []string
}

func (c *staticChecker) HasPermission(_ context.Context, _ int64, permissionID string, _ map[string]any) bool {
	c.asked = append(c.asked, permissionID)
	return c.granted[permissionID]
}

func userID(id int64, ok bool) UserIDFunc {
	return func(*http.Request) (int64, bool) { return id, ok }
}

func serve(t *testing.T, guard func(http.Handler) http.Handler) *httptest.ResponseRecorder {
	t.Helper()
	router := chi.NewRouter()
	router.With(guard).Get("/parts", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/parts", nil))
	return rec
}

func TestRequireAnyAllows(t *testing.T) {
	checker := &staticChecker{granted: map[string]bool{"inventory.view": true}}
	mw := Middleware{Checker: checker, UserID: userID(42, true)}

	rec := serve(t, mw.RequireAny("inventory.edit", "inventory.view"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"inventory.edit", "inventory.view"}, checker.asked)
}

func TestRequireAnyDenies(t *testing.T) {
	checker := &staticChecker{}
	mw := Middleware{Checker: checker, UserID: userID(42, true)}

	rec := serve(t, mw.RequireAny("inventory.edit"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireAllNeedsEvery(t *testing.T) {
	checker := &staticChecker{granted: map[string]bool{"sales.view": true}}
	mw := Middleware{Checker: checker, UserID: userID(42, true)}

	rec := serve(t, mw.RequireAll("sales.view", "sales.refund"))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	checker.granted["sales.refund"] = true
	rec = serve(t, mw.RequireAll("sales.view", "sales.refund"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMissingIdentityDenied(t *testing.T) {
	checker := &staticChecker{granted: map[string]bool{"sales.view": true}}
	mw := Middleware{Checker: checker, UserID: userID(0, false)}

	rec := serve(t, mw.RequireAny("sales.view"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, checker.asked, "checker must not run without an identity")
}

func TestEmptyPermissionListPassesThrough(t *testing.T) {
	mw := Middleware{Checker: &staticChecker{}, UserID: userID(0, false)}
	rec := serve(t, mw.RequireAny("  ", ""))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNormalizePermissions(t *testing.T) {
	got := normalizePermissions([]string{" Sales.View ", "sales.view", "", "SALES.CREATE"})
	assert.Equal(t, []string{"sales.view", "sales.create"}, got)
}
