package port

import (
	"context"
	"time"

	"github.com/Developer-AbhinavAF/affiliate-backend/internal/core/domain"
)

// WindowStats summarises ledger entries created inside a rate window.
type WindowStats struct {
	Count  int
	Oldest *time.Time
}

// LedgerRepository persists one-time code entries for both purposes.
type LedgerRepository interface {
	Create(ctx context.Context, entry domain.LedgerEntry) error
	// LatestUsable returns the newest unused entry for subject whose expiry is not before now.
	LatestUsable(ctx context.Context, purpose domain.LedgerPurpose, subject string, now time.Time) (*domain.LedgerEntry, error)
	// RegisterFailure increments the attempt counter of an unused entry and sets
	// lockUntil once the counter reaches maxAttempts, atomically.
	RegisterFailure(ctx context.Context, purpose domain.LedgerPurpose, id string, maxAttempts int, lockUntil time.Time) (*domain.LedgerEntry, error)
	// MarkUsed consumes an entry that is unused, unexpired and not locked at
	// now, in one statement. Otherwise it returns repository.ErrNotFound.
	MarkUsed(ctx context.Context, purpose domain.LedgerPurpose, id string, now time.Time) error
	CountBySubjectSince(ctx context.Context, purpose domain.LedgerPurpose, subject string, since time.Time) (WindowStats, error)
	CountByOriginSince(ctx context.Context, purpose domain.LedgerPurpose, origin string, since time.Time) (WindowStats, error)
	PurgeExpired(ctx context.Context, purpose domain.LedgerPurpose, before time.Time) (int64, error)
}

// LoginEventRepository stores the login audit trail.
type LoginEventRepository interface {
	Record(ctx context.Context, event domain.LoginEvent) error
}
