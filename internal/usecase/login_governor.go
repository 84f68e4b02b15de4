package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/Developer-AbhinavAF/affiliate-backend/internal/core/domain"
	"github.com/Developer-AbhinavAF/affiliate-backend/internal/core/port"
	"github.com/Developer-AbhinavAF/affiliate-backend/internal/infra/config"
)

const (
	defaultLoginMaxFailures = 5
	defaultLoginLock        = 15 * time.Minute
)

// LoginGovernor owns the failed-login counter and lock of an account. Every
// mutation is a single conditional update in the account store.
type LoginGovernor struct {
	accounts    port.AccountRepository
	maxFailures int
	lockFor     time.Duration
}

// NewLoginGovernor constructs the governor; non-positive settings fall back to 5 failures and 15 minutes.
func NewLoginGovernor(accounts port.AccountRepository, cfg config.LockoutSettings) *LoginGovernor {
	g := &LoginGovernor{accounts: accounts, maxFailures: cfg.MaxFailures, lockFor: cfg.LockDuration}
	if g.maxFailures <= 0 {
		g.maxFailures = defaultLoginMaxFailures
	}
	if g.lockFor <= 0 {
		g.lockFor = defaultLoginLock
	}
	return g
}

// Admit reports whether a password comparison may run. Disabled accounts are
// refused before the lock is consulted.
func (g *LoginGovernor) Admit(account domain.Account, now time.Time) (domain.LoginReason, error) {
	if account.Disabled {
		return domain.LoginReasonDisabled, ErrAccountDisabled
	}
	if account.IsLocked(now) {
		return domain.LoginReasonLocked, newRateLimitError(ScopeLoginLock, *account.LockUntil, now)
	}
	return "", nil
}

// RecordFailure counts a wrong password; the failure that reaches the
// threshold sets the lock and resets the counter.
func (g *LoginGovernor) RecordFailure(ctx context.Context, accountID string, now time.Time) (port.LoginFailure, error) {
	failure, err := g.accounts.RecordLoginFailure(ctx, accountID, g.maxFailures, now.Add(g.lockFor), now)
	if err != nil {
		return port.LoginFailure{}, fmt.Errorf("record login failure: %w", err)
	}
	return failure, nil
}

// RecordSuccess clears the counter and any expired lock.
func (g *LoginGovernor) RecordSuccess(ctx context.Context, accountID string) error {
	if err := g.accounts.ResetLoginFailures(ctx, accountID); err != nil {
		return fmt.Errorf("reset login failures: %w", err)
	}
	return nil
}
