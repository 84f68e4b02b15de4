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

// LoginInput carries credentials plus request metadata for the audit trail.
// Email takes precedence over Username when both are present.
type LoginInput struct {
	Email     string
	Username  string
	Password  string
	OriginIP  string
	UserAgent string
}

// AuthService authenticates password logins under the login governor and
// records every attempt as a LoginEvent.
type AuthService struct {
	accounts port.AccountRepository
	events   port.LoginEventRepository
	governor *LoginGovernor
	hasher   port.PasswordHasher
	tokens   *TokenService
	bus      port.EventPublisher
	metrics  CredentialMetrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewAuthService constructs an AuthService.
func NewAuthService(accounts port.AccountRepository, loginEvents port.LoginEventRepository, governor *LoginGovernor, hasher port.PasswordHasher, tokens *TokenService, bus port.EventPublisher, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		accounts: accounts,
		events:   loginEvents,
		governor: governor,
		hasher:   hasher,
		tokens:   tokens,
		bus:      bus,
		metrics:  noopMetrics{},
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock overrides the service clock for deterministic tests.
func (s *AuthService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// WithMetrics wires login outcome observers.
func (s *AuthService) WithMetrics(metrics CredentialMetrics) {
	if metrics != nil {
		s.metrics = metrics
	}
}

// Login resolves the identifier and applies, in order: not found, disabled,
// locked, wrong password, success. Unknown identifiers and wrong passwords
// share ErrInvalidCredentials. Locked accounts never reach the password hash.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	identifier := strings.TrimSpace(input.Email)
	byEmail := identifier != ""
	if !byEmail {
		identifier = strings.TrimSpace(input.Username)
	}
	if identifier == "" {
		return nil, newValidationError("email", "email or username is required")
	}
	if input.Password == "" {
		return nil, newValidationError("password", "password is required")
	}

	var (
		account *domain.Account
		err     error
	)
	if byEmail {
		account, err = s.accounts.GetByEmail(ctx, domain.NormalizeEmail(identifier))
	} else {
		account, err = s.accounts.FindByIdentifier(ctx, identifier)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.record(ctx, nil, identifier, input, domain.LoginReasonNotFound)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	now := s.now().UTC()
	if reason, err := s.governor.Admit(*account, now); err != nil {
		s.record(ctx, account, identifier, input, reason)
		return nil, err
	}

	matches, err := s.hasher.Verify(ctx, input.Password, account.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}

	if !matches {
		failure, err := s.governor.RecordFailure(ctx, account.ID, now)
		if err != nil {
			return nil, err
		}
		s.record(ctx, account, identifier, input, domain.LoginReasonWrongPassword)

		if failure.Locked(now) {
			logger.WithContext(ctx, s.logger).Warn("account locked after repeated login failures",
				zap.String("account_id", account.ID),
				zap.Time("lock_until", *failure.LockUntil),
				zap.String("ip", logger.MaskIP(input.OriginIP)),
			)
			publishEvent(ctx, s.logger, s.bus, "account.locked", func(p port.EventPublisher) error {
				return p.PublishAccountLocked(ctx, domain.AccountLockedEvent{
					AccountID:   account.ID,
					LockedAt:    now,
					LockedUntil: *failure.LockUntil,
					OriginIP:    input.OriginIP,
				})
			})
		}
		return nil, ErrInvalidCredentials
	}

	if err := s.governor.RecordSuccess(ctx, account.ID); err != nil {
		return nil, err
	}
	account.FailedLogins = 0
	account.LockUntil = nil

	token, err := s.tokens.Issue(ctx, *account)
	if err != nil {
		return nil, err
	}

	s.record(ctx, account, identifier, input, domain.LoginReasonSuccess)

	return &AuthResult{Token: *token, Account: *account}, nil
}

// record writes the audit event. Store failures are logged and ignored.
func (s *AuthService) record(ctx context.Context, account *domain.Account, identifier string, input LoginInput, reason domain.LoginReason) {
	s.metrics.IncLogin(string(reason))

	event := domain.LoginEvent{
		ID:         uuid.NewString(),
		Identifier: identifier,
		OriginIP:   input.OriginIP,
		UserAgent:  input.UserAgent,
		Success:    reason == domain.LoginReasonSuccess,
		Reason:     reason,
		CreatedAt:  s.now().UTC(),
	}
	if account != nil {
		id := account.ID
		event.AccountID = &id
	}

	if s.events == nil {
		return
	}
	if err := s.events.Record(ctx, event); err != nil {
		logger.WithContext(ctx, s.logger).Warn("record login event failed",
			zap.String("reason", string(reason)),
			zap.Error(err),
		)
	}
}
