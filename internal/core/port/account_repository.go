package port

import (
	"context"
	"time"

	"github.com/Developer-AbhinavAF/affiliate-backend/internal/core/domain"
)

// LoginFailure reports the account counters after a failed login was recorded.
type LoginFailure struct {
	FailedLogins int
	LockUntil    *time.Time
}

// Locked reports whether the recorded failure placed a lock in force at now.
func (f LoginFailure) Locked(now time.Time) bool {
	return f.LockUntil != nil && f.LockUntil.After(now)
}

// AccountRepository exposes persistence behavior for accounts.
type AccountRepository interface {
	Create(ctx context.Context, account domain.Account) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	FindByIdentifier(ctx context.Context, identifier string) (*domain.Account, error)
	// ChangePassword rotates the current hash into the bounded history and
	// increments the password epoch in a single statement.
	ChangePassword(ctx context.Context, id string, newHash string, changedAt time.Time) (*domain.Account, error)
	// RecordLoginFailure increments the failed counter; reaching threshold sets
	// lockUntil and resets the counter to zero.
	RecordLoginFailure(ctx context.Context, id string, threshold int, lockUntil time.Time, now time.Time) (LoginFailure, error)
	ResetLoginFailures(ctx context.Context, id string) error
	SetDisabled(ctx context.Context, id string, disabled bool) (*domain.Account, error)
	SetRole(ctx context.Context, id string, role domain.Role) (*domain.Account, error)
}
