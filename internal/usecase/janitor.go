package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Developer-AbhinavAF/affiliate-backend/internal/core/domain"
	"github.com/Developer-AbhinavAF/affiliate-backend/internal/core/port"
	"github.com/Developer-AbhinavAF/affiliate-backend/internal/infra/config"
)

const (
	defaultJanitorInterval  = 10 * time.Minute
	defaultJanitorRetention = 24 * time.Hour
)

// LedgerJanitor periodically deletes ledger entries that expired more than
// the retention ago. Retention must exceed the longest rate window, since
// the governor counts expired entries too.
type LedgerJanitor struct {
	ledger    port.LedgerRepository
	interval  time.Duration
	retention time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewLedgerJanitor constructs the janitor from the janitor settings section.
func NewLedgerJanitor(ledger port.LedgerRepository, cfg config.JanitorSettings, logger *zap.Logger) *LedgerJanitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	j := &LedgerJanitor{
		ledger:    ledger,
		interval:  cfg.Interval,
		retention: cfg.Retention,
		logger:    logger,
		now:       time.Now,
	}
	if j.interval <= 0 {
		j.interval = defaultJanitorInterval
	}
	if j.retention <= 0 {
		j.retention = defaultJanitorRetention
	}
	return j
}

// WithClock overrides the janitor clock for deterministic tests.
func (j *LedgerJanitor) WithClock(clock func() time.Time) {
	if clock != nil {
		j.now = clock
	}
}

// Run sweeps once immediately and then every interval until ctx is cancelled.
func (j *LedgerJanitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.Sweep(ctx)
		}
	}
}

// Sweep purges both ledgers and returns the number of removed entries.
func (j *LedgerJanitor) Sweep(ctx context.Context) int64 {
	cutoff := j.now().UTC().Add(-j.retention)

	var total int64
	for _, purpose := range []domain.LedgerPurpose{domain.PurposeSignup, domain.PurposeRecovery} {
		removed, err := j.ledger.PurgeExpired(ctx, purpose, cutoff)
		if err != nil {
			j.logger.Warn("ledger purge failed", zap.String("purpose", string(purpose)), zap.Error(err))
			continue
		}
		total += removed
	}

	if total > 0 {
		j.logger.Info("expired ledger entries purged", zap.Int64("removed", total), zap.Time("cutoff", cutoff))
	}
	return total
}
