package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Developer-AbhinavAF/affiliate-backend/internal/core/domain"
	"github.com/Developer-AbhinavAF/affiliate-backend/internal/usecase"
)

type fakeSignupService struct {
	codeErr   error
	verifyErr error
	codeIn    usecase.SignupCodeInput
	verifyIn  usecase.SignupVerifyInput
}

func (f *fakeSignupService) RequestCode(ctx context.Context, input usecase.SignupCodeInput) (*usecase.SignupCodeResult, error) {
	f.codeIn = input
	if f.codeErr != nil {
		return nil, f.codeErr
	}
	return &usecase.SignupCodeResult{MaskedEmail: "as***@example.com", ExpiresAt: time.Now().Add(5 * time.Minute)}, nil
}

func (f *fakeSignupService) Verify(ctx context.Context, input usecase.SignupVerifyInput) (*usecase.AuthResult, error) {
	f.verifyIn = input
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	return sampleAuthResult(input.Email), nil
}

type fakeLoginService struct {
	err error
	in  usecase.LoginInput
}

func (f *fakeLoginService) Login(ctx context.Context, input usecase.LoginInput) (*usecase.AuthResult, error) {
	f.in = input
	if f.err != nil {
		return nil, f.err
	}
	return sampleAuthResult("asha@example.com"), nil
}

type fakeRecoveryService struct {
	forgotErr error
	resetErr  error
	forgotIn  usecase.ForgotPasswordInput
	resetIn   usecase.ResetPasswordInput
}

func (f *fakeRecoveryService) ForgotPassword(ctx context.Context, input usecase.ForgotPasswordInput) (*usecase.ForgotPasswordResult, error) {
	f.forgotIn = input
	if f.forgotErr != nil {
		return nil, f.forgotErr
	}
	return &usecase.ForgotPasswordResult{}, nil
}

func (f *fakeRecoveryService) ResetPassword(ctx context.Context, input usecase.ResetPasswordInput) error {
	f.resetIn = input
	return f.resetErr
}

type fakeAccountService struct {
	account *domain.Account
	err     error
	actorID string
	target  string
	role    domain.Role
}

func (f *fakeAccountService) Profile(ctx context.Context, accountID string) (*domain.Account, error) {
	f.target = accountID
	return f.account, f.err
}

func (f *fakeAccountService) ToggleDisabled(ctx context.Context, actorID, targetID string) (*domain.Account, error) {
	f.actorID, f.target = actorID, targetID
	return f.account, f.err
}

func (f *fakeAccountService) ChangeRole(ctx context.Context, actorID, targetID string, role domain.Role) (*domain.Account, error) {
	f.actorID, f.target, f.role = actorID, targetID, role
	return f.account, f.err
}

func sampleAuthResult(email string) *usecase.AuthResult {
	return &usecase.AuthResult{
		Token: usecase.IssuedToken{Token: "signed.jwt.token", ExpiresAt: time.Date(2025, 3, 8, 10, 0, 0, 0, time.UTC)},
		Account: domain.Account{
			ID:    "acc-1",
			Name:  "Asha",
			Email: email,
			Role:  domain.RoleCustomer,
		},
	}
}

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func postJSON(t *testing.T, router http.Handler, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	return doJSON(t, router, http.MethodPost, path, payload)
}

func doJSON(t *testing.T, router http.Handler, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("encode payload: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "198.51.100.7:40000"
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	body := map[string]any{}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rr.Body.String(), err)
	}
	return body
}

func expectError(t *testing.T, rr *httptest.ResponseRecorder, status int, message string) {
	t.Helper()

	if rr.Code != status {
		t.Fatalf("expected status %d, got %d (%s)", status, rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["success"] != false {
		t.Fatalf("expected success=false, got %v", body["success"])
	}
	if body["message"] != message {
		t.Fatalf("expected message %q, got %v", message, body["message"])
	}
}
