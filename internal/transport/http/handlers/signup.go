package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Developer-AbhinavAF/affiliate-backend/internal/usecase"
)

// SignupService registers accounts through emailed codes.
type SignupService interface {
	RequestCode(ctx context.Context, input usecase.SignupCodeInput) (*usecase.SignupCodeResult, error)
	Verify(ctx context.Context, input usecase.SignupVerifyInput) (*usecase.AuthResult, error)
}

// SignupHandler exposes the two step registration endpoints.
type SignupHandler struct {
	signup SignupService
}

// NewSignupHandler constructs SignupHandler.
func NewSignupHandler(signup SignupService) *SignupHandler {
	return &SignupHandler{signup: signup}
}

// RegisterRoutes binds signup routes; middlewares guard the code request only.
func (h *SignupHandler) RegisterRoutes(r *gin.RouterGroup, requestMiddlewares ...gin.HandlerFunc) {
	chain := append([]gin.HandlerFunc{}, requestMiddlewares...)
	chain = append(chain, h.RequestOTP)
	r.POST("/signup/request-otp", chain...)
	r.POST("/signup/verify-otp", h.VerifyOTP)
}

// RequestOTP godoc
// @Summary Request a signup code
// @Description Emails a six digit code to an unregistered address. Limited to 3 codes per 15 minutes per email.
// @Tags Signup
// @Accept json
// @Produce json
// @Param request body SignupOTPRequest true "Registration form"
// @Success 200 {object} OTPSentResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "Email already in use"
// @Failure 429 {object} middleware.ProblemDetails
// @Failure 500 {object} ErrorResponse
// @Router /api/auth/signup/request-otp [post]
func (h *SignupHandler) RequestOTP(c *gin.Context) {
	var req SignupOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	result, err := h.signup.RequestCode(c.Request.Context(), usecase.SignupCodeInput{
		Name:     strings.TrimSpace(req.Name),
		Email:    req.Email,
		Password: req.Password,
		OriginIP: c.ClientIP(),
	})
	if err != nil {
		RespondWithMappedError(c, err, credentialErrorCases, http.StatusInternalServerError, "failed to send code")
		return
	}

	c.JSON(http.StatusOK, OTPSentResponse{
		Success:     true,
		Message:     "OTP sent",
		MaskedEmail: result.MaskedEmail,
	})
}

// VerifyOTP godoc
// @Summary Complete a registration
// @Description Consumes the signup code, creates the account and returns an access token.
// @Tags Signup
// @Accept json
// @Produce json
// @Param request body SignupVerifyRequest true "Signup code"
// @Success 201 {object} AuthTokenResponse
// @Failure 400 {object} ErrorResponse "Invalid or expired code"
// @Failure 409 {object} ErrorResponse "Email already in use"
// @Failure 429 {object} middleware.ProblemDetails "Too many attempts"
// @Failure 500 {object} ErrorResponse
// @Router /api/auth/signup/verify-otp [post]
func (h *SignupHandler) VerifyOTP(c *gin.Context) {
	var req SignupVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	result, err := h.signup.Verify(c.Request.Context(), usecase.SignupVerifyInput{
		Email:    req.Email,
		Code:     strings.TrimSpace(req.Code),
		OriginIP: c.ClientIP(),
	})
	if err != nil {
		RespondWithMappedError(c, err, credentialErrorCases, http.StatusInternalServerError, "failed to verify code")
		return
	}

	c.JSON(http.StatusCreated, AuthTokenResponse{
		Success:   true,
		Token:     result.Token.Token,
		ExpiresAt: result.Token.ExpiresAt,
		User:      newAccountSummary(result.Account),
	})
}
