package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Developer-AbhinavAF/affiliate-backend/internal/core/domain"
	"github.com/Developer-AbhinavAF/affiliate-backend/internal/core/port"
	"github.com/Developer-AbhinavAF/affiliate-backend/internal/infra/logger"
	"github.com/Developer-AbhinavAF/affiliate-backend/internal/repository"
)

const passwordChangeMethodRecovery = "recovery"

// ForgotPasswordInput identifies the account asking for a recovery code.
type ForgotPasswordInput struct {
	Identifier string
	OriginIP   string
}

// ForgotPasswordResult is identical for known and unknown identifiers except
// for MaskedEmail, which is empty unless a code was issued.
type ForgotPasswordResult struct {
	MaskedEmail string
}

// ResetPasswordInput carries a recovery code and the replacement password.
type ResetPasswordInput struct {
	Identifier  string
	Code        string
	NewPassword string
	OriginIP    string
}

// RecoveryService resets forgotten passwords through emailed one-time codes.
type RecoveryService struct {
	accounts port.AccountRepository
	otp      *OTPManager
	hasher   port.PasswordHasher
	guard    *HistoryGuard
	policy   port.PasswordPolicyValidator
	tokens   *TokenService
	events   port.EventPublisher
	logger   *zap.Logger
	now      func() time.Time
}

// NewRecoveryService constructs a RecoveryService.
func NewRecoveryService(accounts port.AccountRepository, otp *OTPManager, hasher port.PasswordHasher, policy port.PasswordPolicyValidator, tokens *TokenService, events port.EventPublisher, logger *zap.Logger) *RecoveryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecoveryService{
		accounts: accounts,
		otp:      otp,
		hasher:   hasher,
		guard:    NewHistoryGuard(hasher),
		policy:   policy,
		tokens:   tokens,
		events:   events,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock allows tests to override the clock used for password change timestamps.
func (s *RecoveryService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// ForgotPassword issues a recovery code when the identifier resolves to an
// account. Unknown identifiers succeed with an empty masked email.
func (s *RecoveryService) ForgotPassword(ctx context.Context, input ForgotPasswordInput) (*ForgotPasswordResult, error) {
	identifier := strings.TrimSpace(input.Identifier)
	if identifier == "" {
		return nil, newValidationError("identifier", "identifier is required")
	}

	account, err := s.accounts.FindByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &ForgotPasswordResult{}, nil
		}
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	issued, err := s.otp.Issue(ctx, IssueRequest{
		Purpose:   domain.PurposeRecovery,
		Subject:   account.ID,
		Recipient: account.Email,
		OriginIP:  input.OriginIP,
	})
	if err != nil {
		return nil, err
	}

	masked := MaskEmail(account.Email)
	publishEvent(ctx, s.logger, s.events, "recovery.requested", func(p port.EventPublisher) error {
		return p.PublishRecoveryRequested(ctx, domain.RecoveryRequestedEvent{
			AccountID:   account.ID,
			EntryID:     issued.EntryID,
			MaskedEmail: masked,
			OriginIP:    input.OriginIP,
			RequestedAt: s.now().UTC(),
			ExpiresAt:   issued.ExpiresAt,
		})
	})

	return &ForgotPasswordResult{MaskedEmail: masked}, nil
}

// ResetPassword validates the new password, consumes the recovery code, runs
// the history guard and rotates the password. A reused password is rejected
// after the code was consumed; the caller has to request a fresh code.
func (s *RecoveryService) ResetPassword(ctx context.Context, input ResetPasswordInput) error {
	identifier := strings.TrimSpace(input.Identifier)
	if identifier == "" {
		return newValidationError("identifier", "identifier is required")
	}
	if s.policy != nil {
		if err := s.policy.Validate(input.NewPassword); err != nil {
			return newValidationError("newPassword", err.Error())
		}
	}

	account, err := s.accounts.FindByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidOrExpired
		}
		return fmt.Errorf("lookup account: %w", err)
	}

	if _, err := s.otp.Verify(ctx, domain.PurposeRecovery, account.ID, input.Code); err != nil {
		return err
	}

	if err := s.guard.Check(ctx, *account, input.NewPassword); err != nil {
		if errors.Is(err, ErrPasswordReused) {
			logger.WithContext(ctx, s.logger).Info("password reuse rejected",
				zap.String("account_id", account.ID),
			)
		}
		return err
	}

	newHash, err := s.hasher.Hash(ctx, input.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	changedAt := s.now().UTC()
	updated, err := s.accounts.ChangePassword(ctx, account.ID, newHash, changedAt)
	if err != nil {
		return fmt.Errorf("change password: %w", err)
	}

	s.tokens.Refresh(ctx, updated.State())

	logger.WithContext(ctx, s.logger).Info("password reset",
		zap.String("account_id", account.ID),
		zap.Int64("password_epoch", updated.PasswordEpoch),
	)

	publishEvent(ctx, s.logger, s.events, "account.password.changed", func(p port.EventPublisher) error {
		return p.PublishPasswordChanged(ctx, domain.PasswordChangedEvent{
			AccountID:     account.ID,
			PasswordEpoch: updated.PasswordEpoch,
			ChangedAt:     changedAt,
			Method:        passwordChangeMethodRecovery,
			OriginIP:      input.OriginIP,
		})
	})

	return nil
}
