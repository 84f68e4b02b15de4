package port

import (
	"context"
	"time"

	"github.com/Developer-AbhinavAF/affiliate-backend/internal/core/domain"
)

// AccountStateCache caches the token-relevant account state for low-latency verification.
type AccountStateCache interface {
	GetAccountState(ctx context.Context, accountID string) (*domain.AccountState, error)
	// SetAccountState is a no-op when the cached entry carries a higher Version.
	SetAccountState(ctx context.Context, state domain.AccountState, ttl time.Duration) error
	DeleteAccountState(ctx context.Context, accountID string) error
}
