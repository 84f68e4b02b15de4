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
	"github.com/Developer-AbhinavAF/affiliate-backend/internal/infra/config"
	"github.com/Developer-AbhinavAF/affiliate-backend/internal/infra/logger"
	"github.com/Developer-AbhinavAF/affiliate-backend/internal/infra/security"
	"github.com/Developer-AbhinavAF/affiliate-backend/internal/repository"
)

const (
	defaultCodeLength      = 6
	defaultCodeTTL         = 5 * time.Minute
	defaultCodeMaxAttempts = 5
	defaultCodeLock        = 10 * time.Minute
)

// IssueRequest describes a code to issue. Subject is the normalized email for
// signup and the account id for recovery; Recipient is where the code is sent.
type IssueRequest struct {
	Purpose      domain.LedgerPurpose
	Subject      string
	Recipient    string
	Name         string
	PasswordHash string
	OriginIP     string
}

// IssuedCode describes the stored ledger entry. The code itself is never returned.
type IssuedCode struct {
	EntryID   string
	ExpiresAt time.Time
}

// OTPManager issues and verifies one-time codes for both signup and recovery.
// Entries move ISSUED -> VERIFIED | EXPIRED | LOCKED | SUPERSEDED; only the
// newest usable entry of a subject is ever considered.
type OTPManager struct {
	ledger      port.LedgerRepository
	governor    *RateGovernor
	hasher      port.PasswordHasher
	notifier    port.Notifier
	metrics     CredentialMetrics
	logger      *zap.Logger
	now         func() time.Time
	length      int
	ttl         time.Duration
	maxAttempts int
	lockFor     time.Duration
}

// NewOTPManager constructs the manager from the otp settings section.
func NewOTPManager(ledger port.LedgerRepository, governor *RateGovernor, hasher port.PasswordHasher, notifier port.Notifier, cfg config.OTPSettings, logger *zap.Logger) *OTPManager {
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &OTPManager{
		ledger:      ledger,
		governor:    governor,
		hasher:      hasher,
		notifier:    notifier,
		metrics:     noopMetrics{},
		logger:      logger,
		now:         time.Now,
		length:      cfg.Length,
		ttl:         cfg.TTL,
		maxAttempts: cfg.MaxAttempts,
		lockFor:     cfg.LockDuration,
	}
	if m.length <= 0 {
		m.length = defaultCodeLength
	}
	if m.ttl <= 0 {
		m.ttl = defaultCodeTTL
	}
	if m.maxAttempts <= 0 {
		m.maxAttempts = defaultCodeMaxAttempts
	}
	if m.lockFor <= 0 {
		m.lockFor = defaultCodeLock
	}
	return m
}

// WithClock allows tests to override the clock used by the manager.
func (m *OTPManager) WithClock(clock func() time.Time) {
	if clock != nil {
		m.now = clock
	}
}

// WithMetrics wires telemetry observers for issuance and verification.
func (m *OTPManager) WithMetrics(metrics CredentialMetrics) {
	if metrics != nil {
		m.metrics = metrics
	}
}

// TTL reports the validity of newly issued codes.
func (m *OTPManager) TTL() time.Duration {
	return m.ttl
}

// Issue checks the rate governor, stores a hashed code and dispatches it.
// Delivery failures are logged and swallowed because the entry is already stored.
func (m *OTPManager) Issue(ctx context.Context, req IssueRequest) (*IssuedCode, error) {
	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		return nil, fmt.Errorf("code subject is required")
	}

	now := m.now().UTC()
	if m.governor != nil {
		if err := m.governor.Check(ctx, req.Purpose, subject, req.OriginIP, now); err != nil {
			return nil, err
		}
	}

	code, err := security.GenerateNumericCode(m.length)
	if err != nil {
		return nil, fmt.Errorf("generate code: %w", err)
	}

	codeHash, err := m.hasher.Hash(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("hash code: %w", err)
	}

	entry := domain.LedgerEntry{
		ID:           uuid.NewString(),
		Purpose:      req.Purpose,
		Subject:      subject,
		Name:         req.Name,
		PasswordHash: req.PasswordHash,
		CodeHash:     codeHash,
		ExpiresAt:    now.Add(m.ttl),
		OriginIP:     strings.TrimSpace(req.OriginIP),
		CreatedAt:    now,
	}
	if err := m.ledger.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("store %s code: %w", req.Purpose, err)
	}
	m.metrics.IncOTPIssued(string(req.Purpose))

	if m.notifier != nil {
		msg := codeMessage(req.Purpose, req.Recipient, code, m.ttl)
		if err := m.notifier.Send(ctx, msg); err != nil {
			logger.WithContext(ctx, m.logger).Warn("code delivery failed",
				zap.String("purpose", string(req.Purpose)),
				zap.String("entry_id", entry.ID),
				zap.String("to", logger.MaskEmail(req.Recipient)),
				zap.Error(err),
			)
		}
	}

	return &IssuedCode{EntryID: entry.ID, ExpiresAt: entry.ExpiresAt}, nil
}

// Verify checks code against the newest usable entry of subject and consumes
// it on a match. Wrong, expired, unknown and already consumed codes all
// return ErrInvalidOrExpired; a locked entry returns ErrTooManyAttempts.
func (m *OTPManager) Verify(ctx context.Context, purpose domain.LedgerPurpose, subject, code string) (*domain.LedgerEntry, error) {
	subject = strings.TrimSpace(subject)
	code = strings.TrimSpace(code)
	if subject == "" || code == "" {
		return nil, ErrInvalidOrExpired
	}

	now := m.now().UTC()
	entry, err := m.ledger.LatestUsable(ctx, purpose, subject, now)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			m.metrics.IncOTPVerify(string(purpose), otpOutcomeInvalid)
			return nil, ErrInvalidOrExpired
		}
		return nil, fmt.Errorf("lookup %s code: %w", purpose, err)
	}

	if entry.IsLocked(now) {
		m.metrics.IncOTPVerify(string(purpose), otpOutcomeLocked)
		return nil, newRateLimitError(ScopeCodeAttempts, *entry.LockedUntil, now)
	}

	matches, err := m.hasher.Verify(ctx, code, entry.CodeHash)
	if err != nil {
		return nil, fmt.Errorf("verify %s code: %w", purpose, err)
	}

	if !matches {
		updated, err := m.ledger.RegisterFailure(ctx, purpose, entry.ID, m.maxAttempts, now.Add(m.lockFor))
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("register %s code failure: %w", purpose, err)
		}
		if updated != nil && updated.IsLocked(now) {
			logger.WithContext(ctx, m.logger).Info("code entry locked",
				zap.String("purpose", string(purpose)),
				zap.String("entry_id", entry.ID),
				zap.Int("attempts", updated.AttemptCount),
			)
		}
		m.metrics.IncOTPVerify(string(purpose), otpOutcomeInvalid)
		return nil, ErrInvalidOrExpired
	}

	if err := m.ledger.MarkUsed(ctx, purpose, entry.ID, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, m.consumeRejected(ctx, purpose, subject, entry.ID, now)
		}
		return nil, fmt.Errorf("consume %s code: %w", purpose, err)
	}

	entry.Used = true
	m.metrics.IncOTPVerify(string(purpose), otpOutcomeVerified)
	return entry, nil
}

// consumeRejected explains a MarkUsed that matched no row: wrong guesses
// racing this request may have locked the entry after it was read.
func (m *OTPManager) consumeRejected(ctx context.Context, purpose domain.LedgerPurpose, subject, entryID string, now time.Time) error {
	current, err := m.ledger.LatestUsable(ctx, purpose, subject, now)
	if err == nil && current.ID == entryID && current.IsLocked(now) {
		m.metrics.IncOTPVerify(string(purpose), otpOutcomeLocked)
		return newRateLimitError(ScopeCodeAttempts, *current.LockedUntil, now)
	}
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("lookup %s code: %w", purpose, err)
	}
	m.metrics.IncOTPVerify(string(purpose), otpOutcomeInvalid)
	return ErrInvalidOrExpired
}
