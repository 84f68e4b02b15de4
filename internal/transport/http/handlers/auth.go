package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Developer-AbhinavAF/affiliate-backend/internal/usecase"
)

// LoginService authenticates password logins.
type LoginService interface {
	Login(ctx context.Context, input usecase.LoginInput) (*usecase.AuthResult, error)
}

// AuthHandler exposes the password login endpoint.
type AuthHandler struct {
	auth LoginService
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(auth LoginService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// RegisterRoutes binds authentication routes, applying optional middleware ahead of handlers.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup, loginMiddlewares ...gin.HandlerFunc) {
	chain := append([]gin.HandlerFunc{}, loginMiddlewares...)
	chain = append(chain, h.Login)
	r.POST("/login", chain...)
}

// Login godoc
// @Summary Authenticate with email or username
// @Description Validates the password under the login lockout and returns a signed access token.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login request"
// @Success 200 {object} AuthTokenResponse "Successfully authenticated"
// @Failure 400 {object} ErrorResponse "Invalid request payload"
// @Failure 401 {object} ErrorResponse "Invalid credentials"
// @Failure 403 {object} ErrorResponse "Account disabled"
// @Failure 429 {object} middleware.ProblemDetails "Account locked"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /api/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	if h.auth == nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "login unavailable"))
		return
	}

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	req.Username = strings.TrimSpace(req.Username)
	if req.Email == "" && req.Username == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "email or username is required"))
		return
	}

	result, err := h.auth.Login(c.Request.Context(), usecase.LoginInput{
		Email:     req.Email,
		Username:  req.Username,
		Password:  req.Password,
		OriginIP:  strings.TrimSpace(c.ClientIP()),
		UserAgent: strings.TrimSpace(c.Request.UserAgent()),
	})
	if err != nil {
		RespondWithMappedError(c, err, credentialErrorCases, http.StatusInternalServerError, "authentication failed")
		return
	}

	c.JSON(http.StatusOK, AuthTokenResponse{
		Success:   true,
		Token:     result.Token.Token,
		ExpiresAt: result.Token.ExpiresAt,
		User:      newAccountSummary(result.Account),
	})
}
