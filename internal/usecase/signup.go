package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Developer-AbhinavAF/affiliate-backend/internal/core/domain"
	"github.com/Developer-AbhinavAF/affiliate-backend/internal/core/port"
	"github.com/Developer-AbhinavAF/affiliate-backend/internal/infra/logger"
	"github.com/Developer-AbhinavAF/affiliate-backend/internal/repository"
)

const (
	minSignupPasswordLength = 8
	maxSignupPasswordLength = 128
)

// SignupCodeInput carries the registration form submitted with a code request.
type SignupCodeInput struct {
	Name     string
	Email    string
	Password string
	OriginIP string
}

// SignupCodeResult describes an issued signup code.
type SignupCodeResult struct {
	MaskedEmail string
	ExpiresAt   time.Time
}

// SignupVerifyInput carries a code submitted to complete registration.
type SignupVerifyInput struct {
	Email    string
	Code     string
	OriginIP string
}

// AuthResult is a freshly issued token together with its account.
type AuthResult struct {
	Token   IssuedToken
	Account domain.Account
}

// SignupService registers accounts once the owner of the email proves control of it.
type SignupService struct {
	accounts port.AccountRepository
	otp      *OTPManager
	hasher   port.PasswordHasher
	tokens   *TokenService
	events   port.EventPublisher
	logger   *zap.Logger
	now      func() time.Time
}

// NewSignupService constructs a SignupService.
func NewSignupService(accounts port.AccountRepository, otp *OTPManager, hasher port.PasswordHasher, tokens *TokenService, events port.EventPublisher, logger *zap.Logger) *SignupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SignupService{
		accounts: accounts,
		otp:      otp,
		hasher:   hasher,
		tokens:   tokens,
		events:   events,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock allows tests to override the clock used for account timestamps.
func (s *SignupService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// RequestCode rejects known emails, hashes the chosen password and issues a
// signup code carrying the pending registration.
func (s *SignupService) RequestCode(ctx context.Context, input SignupCodeInput) (*SignupCodeResult, error) {
	name := strings.TrimSpace(input.Name)
	email := domain.NormalizeEmail(input.Email)

	if name == "" {
		return nil, newValidationError("name", "name is required")
	}
	if email == "" || !domain.IsEmailIdentifier(email) {
		return nil, newValidationError("email", "a valid email is required")
	}
	if n := len(input.Password); n < minSignupPasswordLength || n > maxSignupPasswordLength {
		return nil, newValidationError("password", fmt.Sprintf("password must be between %d and %d characters", minSignupPasswordLength, maxSignupPasswordLength))
	}

	if err := s.ensureEmailAvailable(ctx, email); err != nil {
		return nil, err
	}

	passwordHash, err := s.hasher.Hash(ctx, input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	issued, err := s.otp.Issue(ctx, IssueRequest{
		Purpose:      domain.PurposeSignup,
		Subject:      email,
		Recipient:    email,
		Name:         name,
		PasswordHash: passwordHash,
		OriginIP:     input.OriginIP,
	})
	if err != nil {
		return nil, err
	}

	return &SignupCodeResult{MaskedEmail: MaskEmail(email), ExpiresAt: issued.ExpiresAt}, nil
}

// Verify consumes the signup code and creates the account. When an account
// with the email appeared after the code was issued the code stays consumed
// and ErrConflict is returned.
func (s *SignupService) Verify(ctx context.Context, input SignupVerifyInput) (*AuthResult, error) {
	email := domain.NormalizeEmail(input.Email)
	if email == "" {
		return nil, newValidationError("email", "a valid email is required")
	}

	entry, err := s.otp.Verify(ctx, domain.PurposeSignup, email, input.Code)
	if err != nil {
		return nil, err
	}

	if err := s.ensureEmailAvailable(ctx, email); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	account := domain.Account{
		ID:            uuid.NewString(),
		Name:          entry.Name,
		Email:         email,
		PasswordHash:  entry.PasswordHash,
		Role:          domain.RoleCustomer,
		PasswordEpoch: 0,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("create account: %w", err)
	}

	token, err := s.tokens.Issue(ctx, account)
	if err != nil {
		return nil, err
	}

	logger.WithContext(ctx, s.logger).Info("account registered",
		zap.String("account_id", account.ID),
		zap.String("email", logger.MaskEmail(email)),
	)

	publishEvent(ctx, s.logger, s.events, "account.registered", func(p port.EventPublisher) error {
		return p.PublishAccountRegistered(ctx, domain.AccountRegisteredEvent{
			AccountID:    account.ID,
			Name:         account.Name,
			Email:        account.Email,
			Role:         account.Role,
			RegisteredAt: now,
			OriginIP:     input.OriginIP,
		})
	})

	return &AuthResult{Token: *token, Account: account}, nil
}

func (s *SignupService) ensureEmailAvailable(ctx context.Context, email string) error {
	_, err := s.accounts.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return ErrConflict
	case errors.Is(err, repository.ErrNotFound):
		return nil
	default:
		return fmt.Errorf("lookup account by email: %w", err)
	}
}
