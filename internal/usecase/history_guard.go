package usecase

import (
	"context"
	"fmt"

	"github.com/Developer-AbhinavAF/affiliate-backend/internal/core/domain"
	"github.com/Developer-AbhinavAF/affiliate-backend/internal/core/port"
)

// HistoryGuard rejects a candidate password equal to the current one or to
// any of the retained historical hashes.
type HistoryGuard struct {
	hasher port.PasswordHasher
	limit  int
}

// NewHistoryGuard constructs the guard over domain.PasswordHistoryLimit entries.
func NewHistoryGuard(hasher port.PasswordHasher) *HistoryGuard {
	return &HistoryGuard{hasher: hasher, limit: domain.PasswordHistoryLimit}
}

// Check returns ErrPasswordReused on any match. Every hash is verified so the
// time taken does not reveal which entry matched.
func (g *HistoryGuard) Check(ctx context.Context, account domain.Account, candidate string) error {
	hashes := make([]string, 0, 1+g.limit)
	if account.PasswordHash != "" {
		hashes = append(hashes, account.PasswordHash)
	}
	for i, entry := range account.PasswordHistory {
		if i >= g.limit {
			break
		}
		if entry.Hash != "" {
			hashes = append(hashes, entry.Hash)
		}
	}

	reused := false
	for _, hash := range hashes {
		match, err := g.hasher.Verify(ctx, candidate, hash)
		if err != nil {
			return fmt.Errorf("compare password history: %w", err)
		}
		if match {
			reused = true
		}
	}

	if reused {
		return ErrPasswordReused
	}
	return nil
}
