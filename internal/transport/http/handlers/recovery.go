package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Developer-AbhinavAF/affiliate-backend/internal/usecase"
)

// RecoveryService resets forgotten passwords.
type RecoveryService interface {
	ForgotPassword(ctx context.Context, input usecase.ForgotPasswordInput) (*usecase.ForgotPasswordResult, error)
	ResetPassword(ctx context.Context, input usecase.ResetPasswordInput) error
}

// RecoveryHandler exposes forgot-password and reset-password.
type RecoveryHandler struct {
	recovery RecoveryService
}

// NewRecoveryHandler constructs RecoveryHandler.
func NewRecoveryHandler(recovery RecoveryService) *RecoveryHandler {
	return &RecoveryHandler{recovery: recovery}
}

// RegisterRoutes binds recovery routes behind the supplied middlewares.
func (h *RecoveryHandler) RegisterRoutes(r *gin.RouterGroup, middlewares ...gin.HandlerFunc) {
	forgot := append(append([]gin.HandlerFunc{}, middlewares...), h.ForgotPassword)
	reset := append(append([]gin.HandlerFunc{}, middlewares...), h.ResetPassword)
	r.POST("/forgot-password", forgot...)
	r.POST("/reset-password", reset...)
}

// ForgotPassword godoc
// @Summary Request a password reset code
// @Description Emails a reset code when the identifier matches an account. The response does not reveal whether it did.
// @Tags Recovery
// @Accept json
// @Produce json
// @Param request body ForgotPasswordRequest true "Email, username or name"
// @Success 200 {object} OTPSentResponse
// @Failure 400 {object} ErrorResponse
// @Failure 429 {object} middleware.ProblemDetails
// @Failure 500 {object} ErrorResponse
// @Router /api/auth/forgot-password [post]
func (h *RecoveryHandler) ForgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	result, err := h.recovery.ForgotPassword(c.Request.Context(), usecase.ForgotPasswordInput{
		Identifier: strings.TrimSpace(req.Identifier),
		OriginIP:   c.ClientIP(),
	})
	if err != nil {
		RespondWithMappedError(c, err, credentialErrorCases, http.StatusInternalServerError, "failed to send code")
		return
	}

	c.JSON(http.StatusOK, OTPSentResponse{
		Success:     true,
		Message:     "OTP sent if account exists",
		MaskedEmail: result.MaskedEmail,
	})
}

// ResetPassword godoc
// @Summary Reset a password with a recovery code
// @Description Consumes the code and replaces the password. Existing tokens stop working.
// @Tags Recovery
// @Accept json
// @Produce json
// @Param request body ResetPasswordRequest true "Reset payload"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse "Invalid or expired code, reused or weak password"
// @Failure 429 {object} middleware.ProblemDetails "Too many attempts"
// @Failure 500 {object} ErrorResponse
// @Router /api/auth/reset-password [post]
func (h *RecoveryHandler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	err := h.recovery.ResetPassword(c.Request.Context(), usecase.ResetPasswordInput{
		Identifier:  strings.TrimSpace(req.Identifier),
		Code:        strings.TrimSpace(req.Code),
		NewPassword: req.NewPassword,
		OriginIP:    c.ClientIP(),
	})
	if err != nil {
		RespondWithMappedError(c, err, credentialErrorCases, http.StatusInternalServerError, "failed to reset password")
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "Password reset successful"})
}
