package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Developer-AbhinavAF/affiliate-backend/internal/core/domain"
	"github.com/Developer-AbhinavAF/affiliate-backend/internal/usecase"
)

// RoleKey is the context key for the role of the authenticated account.
const RoleKey = "role"

// ErrorResponse matches the handlers.ErrorResponse structure
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	TraceID string `json:"trace_id,omitempty"`
}

// newErrorResponse creates an error response with trace ID
func newErrorResponse(c *gin.Context, message string) ErrorResponse {
	return ErrorResponse{
		Success: false,
		Message: message,
		TraceID: GetTraceID(c),
	}
}

// TokenVerifier resolves a bearer token into an authenticated identity.
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (*usecase.VerifiedToken, error)
}

// RequireAuth validates the Authorization header against the current account
// state. Disabled accounts get 403; every other rejection is 401.
func RequireAuth(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok || verifier == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, newErrorResponse(c, "Unauthorized"))
			return
		}

		verified, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, usecase.ErrAccountDisabled):
				c.AbortWithStatusJSON(http.StatusForbidden, newErrorResponse(c, "Account disabled"))
			case errors.Is(err, usecase.ErrUnauthorized):
				c.AbortWithStatusJSON(http.StatusUnauthorized, newErrorResponse(c, "Unauthorized"))
			default:
				_ = c.Error(err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, newErrorResponse(c, "authentication failed"))
			}
			return
		}

		c.Set(UserIDKey, verified.AccountID)
		c.Set(RoleKey, verified.Role)

		if reqCtx := GetRequestContext(c); reqCtx != nil {
			reqCtx.UserID = verified.AccountID
		}

		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// RequireRole checks that the authenticated account holds one of the roles.
func RequireRole(roles ...domain.Role) gin.HandlerFunc {
	allowed := make(map[domain.Role]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}

	return func(c *gin.Context) {
		role, ok := GetAuthenticatedRole(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, newErrorResponse(c, "Unauthorized"))
			return
		}
		if !allowed[role] {
			c.AbortWithStatusJSON(http.StatusForbidden, newErrorResponse(c, "Forbidden"))
			return
		}
		c.Next()
	}
}

// GetAuthenticatedUserID retrieves the account ID from context (helper for handlers)
func GetAuthenticatedUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get(UserIDKey)
	if !exists {
		return "", false
	}

	if id, ok := userID.(string); ok {
		return id, true
	}

	return "", false
}

// GetAuthenticatedRole retrieves the role stored by RequireAuth.
func GetAuthenticatedRole(c *gin.Context) (domain.Role, bool) {
	raw, exists := c.Get(RoleKey)
	if !exists {
		return "", false
	}
	role, ok := raw.(domain.Role)
	return role, ok
}
