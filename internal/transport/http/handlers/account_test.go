package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/Developer-AbhinavAF/affiliate-backend/internal/core/domain"
	"github.com/Developer-AbhinavAF/affiliate-backend/internal/transport/http/middleware"
	"github.com/Developer-AbhinavAF/affiliate-backend/internal/usecase"
)

// newAccountRouter stands in for RequireAuth by planting the caller id.
func newAccountRouter(svc AccountService, callerID string) http.Handler {
	router := newTestRouter()
	h := NewAccountHandler(svc)

	authenticated := func(c *gin.Context) {
		if callerID != "" {
			c.Set(middleware.UserIDKey, callerID)
		}
		c.Next()
	}

	router.GET("/api/me", authenticated, h.Me)
	router.PATCH("/api/superadmin/users/:id/toggle", authenticated, h.ToggleDisabled)
	router.PATCH("/api/superadmin/users/:id/role", authenticated, h.ChangeRole)
	return router
}

func TestMe(t *testing.T) {
	username := "asha"
	svc := &fakeAccountService{account: &domain.Account{
		ID:       "acc-1",
		Name:     "Asha",
		Username: &username,
		Email:    "asha@example.com",
		Role:     domain.RoleAdmin,
	}}

	rr := doJSON(t, newAccountRouter(svc, "acc-1"), http.MethodGet, "/api/me", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	user, _ := decodeBody(t, rr)["user"].(map[string]any)
	if user["username"] != "asha" || user["role"] != "ADMIN" {
		t.Fatalf("unexpected user %v", user)
	}
	if svc.target != "acc-1" {
		t.Fatalf("expected profile lookup for caller, got %q", svc.target)
	}
}

func TestMeRejections(t *testing.T) {
	t.Run("no caller", func(t *testing.T) {
		rr := doJSON(t, newAccountRouter(&fakeAccountService{}, ""), http.MethodGet, "/api/me", nil)
		expectError(t, rr, http.StatusUnauthorized, "Unauthorized")
	})

	t.Run("account vanished", func(t *testing.T) {
		svc := &fakeAccountService{err: usecase.ErrAccountNotFound}
		rr := doJSON(t, newAccountRouter(svc, "acc-1"), http.MethodGet, "/api/me", nil)
		expectError(t, rr, http.StatusUnauthorized, "Unauthorized")
	})
}

func TestToggleDisabled(t *testing.T) {
	svc := &fakeAccountService{account: &domain.Account{ID: "acc-2", Disabled: true}}

	rr := doJSON(t, newAccountRouter(svc, "root"), http.MethodPatch, "/api/superadmin/users/acc-2/toggle", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if body := decodeBody(t, rr); body["disabled"] != true || body["success"] != true {
		t.Fatalf("unexpected body %v", body)
	}
	if svc.actorID != "root" || svc.target != "acc-2" {
		t.Fatalf("unexpected call actor=%q target=%q", svc.actorID, svc.target)
	}
}

func TestToggleDisabledErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{name: "super admin target", err: usecase.ErrSuperAdminProtected, status: http.StatusBadRequest, message: "Cannot disable super admin"},
		{name: "unknown target", err: usecase.ErrAccountNotFound, status: http.StatusNotFound, message: "User not found"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := &fakeAccountService{err: tc.err}
			rr := doJSON(t, newAccountRouter(svc, "root"), http.MethodPatch, "/api/superadmin/users/acc-2/toggle", nil)
			expectError(t, rr, tc.status, tc.message)
		})
	}
}

func TestChangeRole(t *testing.T) {
	svc := &fakeAccountService{account: &domain.Account{ID: "acc-2", Role: domain.RoleAdmin}}

	rr := doJSON(t, newAccountRouter(svc, "root"), http.MethodPatch, "/api/superadmin/users/acc-2/role", map[string]string{"role": "ADMIN"})

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if body := decodeBody(t, rr); body["role"] != "ADMIN" {
		t.Fatalf("unexpected body %v", body)
	}
	if svc.role != domain.RoleAdmin {
		t.Fatalf("unexpected role forwarded %q", svc.role)
	}
}

func TestChangeRoleErrors(t *testing.T) {
	t.Run("missing role", func(t *testing.T) {
		rr := doJSON(t, newAccountRouter(&fakeAccountService{}, "root"), http.MethodPatch, "/api/superadmin/users/acc-2/role", map[string]string{})
		expectError(t, rr, http.StatusBadRequest, "Invalid role")
	})

	t.Run("role rejected", func(t *testing.T) {
		svc := &fakeAccountService{err: &usecase.ValidationError{Field: "role", Message: "role must be ADMIN or CUSTOMER"}}
		rr := doJSON(t, newAccountRouter(svc, "root"), http.MethodPatch, "/api/superadmin/users/acc-2/role", map[string]string{"role": "SUPER_ADMIN"})
		expectError(t, rr, http.StatusBadRequest, "Invalid role")
	})

	t.Run("super admin target", func(t *testing.T) {
		svc := &fakeAccountService{err: usecase.ErrSuperAdminProtected}
		rr := doJSON(t, newAccountRouter(svc, "root"), http.MethodPatch, "/api/superadmin/users/root/role", map[string]string{"role": "ADMIN"})
		expectError(t, rr, http.StatusBadRequest, "Cannot change super admin role")
	})
}
