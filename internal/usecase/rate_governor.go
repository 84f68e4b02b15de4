package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Developer-AbhinavAF/affiliate-backend/internal/core/domain"
	"github.com/Developer-AbhinavAF/affiliate-backend/internal/core/port"
	"github.com/Developer-AbhinavAF/affiliate-backend/internal/infra/config"
)

const (
	defaultIdentityWindow = 15 * time.Minute
	defaultIdentityLimit  = 3
	defaultOriginWindow   = time.Hour
	defaultOriginLimit    = 5
)

// RateGovernor throttles code issuance by counting ledger entries already
// created inside two sliding windows: one per subject and, for recovery only,
// one per origin address.
type RateGovernor struct {
	ledger         port.LedgerRepository
	identityWindow time.Duration
	identityLimit  int
	originWindow   time.Duration
	originLimit    int
}

// NewRateGovernor constructs the governor; non-positive settings fall back to 3/15m and 5/60m.
func NewRateGovernor(ledger port.LedgerRepository, cfg config.OTPSettings) *RateGovernor {
	g := &RateGovernor{
		ledger:         ledger,
		identityWindow: cfg.IdentityWindow,
		identityLimit:  cfg.IdentityLimit,
		originWindow:   cfg.OriginWindow,
		originLimit:    cfg.OriginLimit,
	}
	if g.identityWindow <= 0 {
		g.identityWindow = defaultIdentityWindow
	}
	if g.identityLimit <= 0 {
		g.identityLimit = defaultIdentityLimit
	}
	if g.originWindow <= 0 {
		g.originWindow = defaultOriginWindow
	}
	if g.originLimit <= 0 {
		g.originLimit = defaultOriginLimit
	}
	return g
}

// Check returns a RateLimitExceededError when either window is exhausted at now.
func (g *RateGovernor) Check(ctx context.Context, purpose domain.LedgerPurpose, subject, origin string, now time.Time) error {
	stats, err := g.ledger.CountBySubjectSince(ctx, purpose, subject, now.Add(-g.identityWindow))
	if err != nil {
		return fmt.Errorf("count %s codes for subject: %w", purpose, err)
	}
	if stats.Count >= g.identityLimit {
		return windowExceeded(ScopeIdentityWindow, stats, g.identityWindow, now)
	}

	origin = strings.TrimSpace(origin)
	if purpose != domain.PurposeRecovery || origin == "" {
		return nil
	}

	stats, err = g.ledger.CountByOriginSince(ctx, purpose, origin, now.Add(-g.originWindow))
	if err != nil {
		return fmt.Errorf("count %s codes for origin: %w", purpose, err)
	}
	if stats.Count >= g.originLimit {
		return windowExceeded(ScopeOriginWindow, stats, g.originWindow, now)
	}

	return nil
}

// windowExceeded derives the retry-after from the oldest entry still inside the window.
func windowExceeded(scope string, stats port.WindowStats, window time.Duration, now time.Time) error {
	if stats.Oldest == nil {
		return &RateLimitExceededError{Scope: scope}
	}
	return newRateLimitError(scope, stats.Oldest.Add(window), now)
}
