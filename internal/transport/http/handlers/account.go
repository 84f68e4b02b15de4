package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Developer-AbhinavAF/affiliate-backend/internal/core/domain"
	"github.com/Developer-AbhinavAF/affiliate-backend/internal/transport/http/middleware"
	"github.com/Developer-AbhinavAF/affiliate-backend/internal/usecase"
)

// AccountService serves profiles and super admin account controls.
type AccountService interface {
	Profile(ctx context.Context, accountID string) (*domain.Account, error)
	ToggleDisabled(ctx context.Context, actorID, targetID string) (*domain.Account, error)
	ChangeRole(ctx context.Context, actorID, targetID string, role domain.Role) (*domain.Account, error)
}

// AccountHandler exposes /api/me and the super admin user endpoints.
type AccountHandler struct {
	accounts AccountService
}

// NewAccountHandler constructs AccountHandler.
func NewAccountHandler(accounts AccountService) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

// Me godoc
// @Summary Current account
// @Description Returns the account of the bearer token.
// @Tags Account
// @Produce json
// @Security BearerAuth
// @Success 200 {object} ProfileResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse "Account disabled"
// @Router /api/me [get]
func (h *AccountHandler) Me(c *gin.Context) {
	accountID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "Unauthorized"))
		return
	}

	account, err := h.accounts.Profile(c.Request.Context(), accountID)
	if err != nil {
		cases := []ErrorCase{{Err: usecase.ErrAccountNotFound, Status: http.StatusUnauthorized, Message: "Unauthorized"}}
		RespondWithMappedError(c, err, cases, http.StatusInternalServerError, "failed to load account")
		return
	}

	c.JSON(http.StatusOK, ProfileResponse{Success: true, User: newAccountSummary(*account)})
}

// ToggleDisabled godoc
// @Summary Enable or disable an account
// @Description Flips the disabled flag. Super admin accounts cannot be disabled.
// @Tags SuperAdmin
// @Produce json
// @Security BearerAuth
// @Param id path string true "Account ID"
// @Success 200 {object} AccountStatusResponse
// @Failure 400 {object} ErrorResponse "Cannot disable super admin"
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse "User not found"
// @Router /api/superadmin/users/{id}/toggle [patch]
func (h *AccountHandler) ToggleDisabled(c *gin.Context) {
	actorID, _ := middleware.GetAuthenticatedUserID(c)

	account, err := h.accounts.ToggleDisabled(c.Request.Context(), actorID, strings.TrimSpace(c.Param("id")))
	if err != nil {
		cases := append([]ErrorCase{
			{Err: usecase.ErrSuperAdminProtected, Status: http.StatusBadRequest, Message: "Cannot disable super admin"},
		}, credentialErrorCases...)
		RespondWithMappedError(c, err, cases, http.StatusInternalServerError, "failed to update account")
		return
	}

	c.JSON(http.StatusOK, AccountStatusResponse{Success: true, Disabled: account.Disabled})
}

// ChangeRole godoc
// @Summary Change the role of an account
// @Description Assigns ADMIN or CUSTOMER. The super admin role cannot be changed.
// @Tags SuperAdmin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Account ID"
// @Param request body RoleChangeRequest true "New role"
// @Success 200 {object} AccountRoleResponse
// @Failure 400 {object} ErrorResponse "Invalid role or super admin target"
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse "User not found"
// @Router /api/superadmin/users/{id}/role [patch]
func (h *AccountHandler) ChangeRole(c *gin.Context) {
	var req RoleChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "Invalid role"))
		return
	}

	actorID, _ := middleware.GetAuthenticatedUserID(c)

	account, err := h.accounts.ChangeRole(c.Request.Context(), actorID, strings.TrimSpace(c.Param("id")), domain.Role(req.Role))
	if err != nil {
		if errors.Is(err, usecase.ErrValidation) {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, "Invalid role"))
			return
		}
		cases := append([]ErrorCase{
			{Err: usecase.ErrSuperAdminProtected, Status: http.StatusBadRequest, Message: "Cannot change super admin role"},
		}, credentialErrorCases...)
		RespondWithMappedError(c, err, cases, http.StatusInternalServerError, "failed to update account")
		return
	}

	c.JSON(http.StatusOK, AccountRoleResponse{Success: true, Role: account.Role})
}
