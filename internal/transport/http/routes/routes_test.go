package routes_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap/zaptest"

	"github.com/Developer-AbhinavAF/affiliate-backend/internal/core/domain"
	"github.com/Developer-AbhinavAF/affiliate-backend/internal/infra/config"
	redisrepo "github.com/Developer-AbhinavAF/affiliate-backend/internal/repository/redis"
	"github.com/Developer-AbhinavAF/affiliate-backend/internal/transport/http/middleware"
	httproutes "github.com/Developer-AbhinavAF/affiliate-backend/internal/transport/http/routes"
	"github.com/Developer-AbhinavAF/affiliate-backend/internal/usecase"
)

type stubServices struct {
	role domain.Role
}

func (s *stubServices) RequestCode(ctx context.Context, input usecase.SignupCodeInput) (*usecase.SignupCodeResult, error) {
	return &usecase.SignupCodeResult{MaskedEmail: "as***@example.com"}, nil
}

func (s *stubServices) Verify(ctx context.Context, raw string) (*usecase.VerifiedToken, error) {
	if raw != "good-token" {
		return nil, usecase.ErrUnauthorized
	}
	return &usecase.VerifiedToken{AccountID: "acc-1", Role: s.role}, nil
}

func (s *stubServices) Profile(ctx context.Context, accountID string) (*domain.Account, error) {
	return &domain.Account{ID: accountID, Name: "Asha", Email: "asha@example.com", Role: s.role}, nil
}

func (s *stubServices) ToggleDisabled(ctx context.Context, actorID, targetID string) (*domain.Account, error) {
	return &domain.Account{ID: targetID, Disabled: true}, nil
}

func (s *stubServices) ChangeRole(ctx context.Context, actorID, targetID string, role domain.Role) (*domain.Account, error) {
	return &domain.Account{ID: targetID, Role: role}, nil
}

// signupStub adapts stubServices to the signup interface, whose Verify
// signature differs from the token verifier.
type signupStub struct{ *stubServices }

func (s signupStub) Verify(ctx context.Context, input usecase.SignupVerifyInput) (*usecase.AuthResult, error) {
	return nil, usecase.ErrInvalidOrExpired
}

func newEngine(t *testing.T, role domain.Role, limiter *middleware.RateLimiter) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	stub := &stubServices{role: role}
	cfg := &config.AppConfig{
		App:       config.AppSettings{Env: "test"},
		RateLimit: config.RateLimitSettings{WindowDuration: time.Minute, SignupMaxAttempts: 2},
	}

	return httproutes.Register(httproutes.Dependencies{
		Config:      cfg,
		Logger:      zaptest.NewLogger(t),
		RateLimiter: limiter,
		Services: httproutes.ServiceSet{
			Signup:   signupStub{stub},
			Accounts: stub,
			Tokens:   stub,
		},
	})
}

func serve(r http.Handler, method, path, token string, payload any) *httptest.ResponseRecorder {
	var body bytes.Buffer
	if payload != nil {
		_ = json.NewEncoder(&body).Encode(payload)
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := &config.AppConfig{App: config.AppSettings{Env: "test"}}

	r := httproutes.Register(httproutes.Dependencies{
		Config: cfg,
		Logger: zaptest.NewLogger(t),
	})

	w := serve(r, http.MethodGet, "/healthz", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if w.Header().Get(middleware.TraceIDHeader) == "" {
		t.Fatalf("expected trace id header on every response")
	}
}

func TestMeRequiresBearerToken(t *testing.T) {
	r := newEngine(t, domain.RoleCustomer, nil)

	if w := serve(r, http.MethodGet, "/api/me", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
	if w := serve(r, http.MethodGet, "/api/me", "forged", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad token, got %d", w.Code)
	}
	if w := serve(r, http.MethodGet, "/api/me", "good-token", nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200 with good token, got %d", w.Code)
	}
}

func TestSuperAdminRoutesRequireRole(t *testing.T) {
	customer := newEngine(t, domain.RoleCustomer, nil)
	if w := serve(customer, http.MethodPatch, "/api/superadmin/users/acc-2/toggle", "good-token", nil); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for customer, got %d", w.Code)
	}

	root := newEngine(t, domain.RoleSuperAdmin, nil)
	if w := serve(root, http.MethodPatch, "/api/superadmin/users/acc-2/toggle", "good-token", nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200 for super admin, got %d", w.Code)
	}
	w := serve(root, http.MethodPatch, "/api/superadmin/users/acc-2/role", "good-token", map[string]string{"role": "ADMIN"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for role change, got %d", w.Code)
	}
}

func TestSignupRequestIsThrottledPerClient(t *testing.T) {
	server := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := redisrepo.NewRateLimitRepository(client, redisrepo.SlidingWindowConfig{KeyPrefix: "throttle", TTL: time.Hour})
	limiter := middleware.NewRateLimiter(store, zaptest.NewLogger(t))
	r := newEngine(t, domain.RoleCustomer, limiter)

	payload := map[string]string{"name": "Asha", "email": "asha@example.com", "password": "Str0ng!pass"}
	for i := 0; i < 2; i++ {
		if w := serve(r, http.MethodPost, "/api/auth/signup/request-otp", "", payload); w.Code != http.StatusOK {
			t.Fatalf("attempt %d: expected 200, got %d", i+1, w.Code)
		}
	}

	w := serve(r, http.MethodPost, "/api/auth/signup/request-otp", "", payload)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 once the client throttle is exhausted, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}

	if w := serve(r, http.MethodPost, "/api/auth/signup/verify-otp", "", map[string]string{"email": "asha@example.com", "code": "123456"}); w.Code != http.StatusBadRequest {
		t.Fatalf("verify-otp must not share the request throttle, got %d", w.Code)
	}
}
