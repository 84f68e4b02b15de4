package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Developer-AbhinavAF/affiliate-backend/internal/core/domain"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, message string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Success: false,
		Message: message,
		TraceID: traceIDStr,
	}
}

// SuccessResponse is returned by operations that only report an outcome.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// AccountSummary describes the public view of an account returned by the API.
type AccountSummary struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Username *string     `json:"username,omitempty"`
	Email    string      `json:"email"`
	Role     domain.Role `json:"role"`
}

// SignupOTPRequest defines the payload requesting a signup code.
type SignupOTPRequest struct {
	Name     string `json:"name" binding:"required,min=2,max=60"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=128"`
}

// OTPSentResponse reports an issued code and the masked destination.
type OTPSentResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	MaskedEmail string `json:"maskedEmail,omitempty"`
}

// SignupVerifyRequest carries the code completing a registration.
type SignupVerifyRequest struct {
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"code" binding:"required,min=4,max=12"`
}

// LoginRequest accepts either an email or a username together with the password.
type LoginRequest struct {
	Email    string `json:"email" binding:"omitempty,email"`
	Username string `json:"username" binding:"omitempty,min=2,max=60"`
	Password string `json:"password" binding:"required,min=8,max=128"`
}

// AuthTokenResponse is returned after a successful login or registration.
type AuthTokenResponse struct {
	Success   bool           `json:"success"`
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expiresAt"`
	User      AccountSummary `json:"user"`
}

// ForgotPasswordRequest identifies the account by email, username or name.
type ForgotPasswordRequest struct {
	Identifier string `json:"identifier" binding:"required,min=2,max=160"`
}

// ResetPasswordRequest carries the recovery code and the replacement password.
type ResetPasswordRequest struct {
	Identifier  string `json:"identifier" binding:"required,min=2,max=160"`
	Code        string `json:"code" binding:"required,min=4,max=12"`
	NewPassword string `json:"newPassword" binding:"required,min=8,max=128"`
}

// ProfileResponse wraps the authenticated account.
type ProfileResponse struct {
	Success bool           `json:"success"`
	User    AccountSummary `json:"user"`
}

// RoleChangeRequest selects the new role of an account.
type RoleChangeRequest struct {
	Role string `json:"role" binding:"required"`
}

// AccountStatusResponse reports the disabled flag after a toggle.
type AccountStatusResponse struct {
	Success  bool `json:"success"`
	Disabled bool `json:"disabled"`
}

// AccountRoleResponse reports the role after a change.
type AccountRoleResponse struct {
	Success bool        `json:"success"`
	Role    domain.Role `json:"role"`
}

// HealthResponse describes the service health payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadyResponse describes readiness probe results with dependency checks.
type ReadyResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// JWKSKey describes an individual JSON Web Key in the JWKS response.
type JWKSKey struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JWKSResponse represents the JSON Web Key Set payload.
type JWKSResponse struct {
	Keys []JWKSKey `json:"keys"`
}

// newAccountSummary converts a domain account to its API representation.
func newAccountSummary(account domain.Account) AccountSummary {
	return AccountSummary{
		ID:       account.ID,
		Name:     account.Name,
		Username: account.Username,
		Email:    account.Email,
		Role:     account.Role,
	}
}
