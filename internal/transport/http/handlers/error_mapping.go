package handlers

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/Developer-AbhinavAF/affiliate-backend/internal/transport/http/middleware"
	"github.com/Developer-AbhinavAF/affiliate-backend/internal/usecase"
)

const (
	rateLimitProblemType  = "https://api.trendkart.example.com/errors/rate-limit-exceeded"
	rateLimitProblemTitle = "Rate Limit Exceeded"
)

// ErrorCase maps a sentinel error to an HTTP status code and response message.
type ErrorCase struct {
	Err     error
	Status  int
	Message string
}

// credentialErrorCases is the shared mapping of the credential error taxonomy.
var credentialErrorCases = []ErrorCase{
	{Err: usecase.ErrConflict, Status: http.StatusConflict, Message: "Email already in use"},
	{Err: usecase.ErrInvalidOrExpired, Status: http.StatusBadRequest, Message: "Invalid or expired code"},
	{Err: usecase.ErrPasswordReused, Status: http.StatusBadRequest, Message: "New password cannot match recent passwords"},
	{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "Invalid credentials"},
	{Err: usecase.ErrAccountDisabled, Status: http.StatusForbidden, Message: "Account disabled"},
	{Err: usecase.ErrUnauthorized, Status: http.StatusUnauthorized, Message: "Unauthorized"},
	{Err: usecase.ErrForbidden, Status: http.StatusForbidden, Message: "Forbidden"},
	{Err: usecase.ErrAccountNotFound, Status: http.StatusNotFound, Message: "User not found"},
}

// RespondWithMappedError resolves the provided error against known cases or falls back to a generic response.
// Validation and rate limit errors are always rendered by their dedicated writers.
func RespondWithMappedError(c *gin.Context, err error, cases []ErrorCase, fallbackStatus int, fallbackMessage string) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}

	var rateErr *usecase.RateLimitExceededError
	if errors.As(err, &rateErr) {
		respondRateLimitExceeded(c, rateErr)
		return
	}

	var validationErr *usecase.ValidationError
	if errors.As(err, &validationErr) {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, validationMessage(validationErr)))
		return
	}

	for _, cs := range cases {
		if cs.Err == nil {
			continue
		}
		if errors.Is(err, cs.Err) {
			c.JSON(cs.Status, NewErrorResponse(c, cs.Message))
			return
		}
	}

	_ = c.Error(err)
	c.JSON(fallbackStatus, NewErrorResponse(c, fallbackMessage))
}

func validationMessage(err *usecase.ValidationError) string {
	if err.Field == "newPassword" {
		return "Password does not meet complexity requirements"
	}
	return err.Error()
}

// rateLimitMessage returns the client facing message of a rate limit scope.
func rateLimitMessage(scope string) string {
	switch scope {
	case usecase.ScopeIdentityWindow:
		return "Too many OTP requests. Try again later."
	case usecase.ScopeOriginWindow:
		return "Too many reset attempts. Try again later."
	case usecase.ScopeCodeAttempts:
		return "Too many attempts. Try again later."
	case usecase.ScopeLoginLock:
		return "Account locked. Try again later."
	default:
		return "Too many requests. Try again later."
	}
}

// respondRateLimitExceeded writes an RFC 9457 problem with a Retry-After header.
func respondRateLimitExceeded(c *gin.Context, rateErr *usecase.RateLimitExceededError) {
	retryAfter := int(math.Ceil(rateErr.RetryAfter.Seconds()))
	if retryAfter < 0 {
		retryAfter = 0
	}
	if retryAfter > 0 {
		c.Header("Retry-After", strconv.Itoa(retryAfter))
	}

	instance := c.FullPath()
	if instance == "" {
		instance = c.Request.URL.Path
	}

	problem := middleware.ProblemDetails{
		Type:       rateLimitProblemType,
		Title:      rateLimitProblemTitle,
		Status:     http.StatusTooManyRequests,
		Detail:     rateLimitMessage(rateErr.Scope),
		Instance:   instance,
		RetryAfter: retryAfter,
		TraceID:    middleware.GetTraceID(c),
		Extensions: map[string]any{"scope": rateErr.Scope},
	}

	c.JSON(http.StatusTooManyRequests, problem)
}

// respondBindingError reports the first failing request field.
func respondBindingError(c *gin.Context, err error) {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, describeFieldError(fieldErrs[0])))
		return
	}
	c.JSON(http.StatusBadRequest, NewErrorResponse(c, "Invalid request payload"))
}

func describeFieldError(fe validator.FieldError) string {
	field := jsonFieldName(fe)
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// jsonFieldName lowers the first rune of the struct field name, which matches
// the json tags of every request model.
func jsonFieldName(fe validator.FieldError) string {
	name := fe.Field()
	if name == "" {
		return "field"
	}
	return strings.ToLower(name[:1]) + name[1:]
}
