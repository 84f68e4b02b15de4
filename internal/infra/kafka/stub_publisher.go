package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Developer-AbhinavAF/affiliate-backend/internal/core/domain"
	"github.com/Developer-AbhinavAF/affiliate-backend/internal/core/port"
	"github.com/Developer-AbhinavAF/affiliate-backend/internal/infra/logger"
)

// StubPublisher logs events instead of sending them to Kafka. Used when no brokers are configured.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a log-only event publisher.
func NewStubPublisher(log *zap.Logger) *StubPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &StubPublisher{logger: log}
}

func (p *StubPublisher) logEvent(ctx context.Context, eventType, accountID string, at time.Time, fields ...zap.Field) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	base := []zap.Field{
		zap.String("event_type", eventType),
		zap.String("account_id", accountID),
		zap.Time("timestamp", at.UTC()),
	}
	logger.WithContext(ctx, p.logger).Info("stub event published", append(base, fields...)...)
}

// PublishAccountRegistered logs account.registered events.
func (p *StubPublisher) PublishAccountRegistered(ctx context.Context, event domain.AccountRegisteredEvent) error {
	p.logEvent(ctx, EventAccountRegistered, event.AccountID, event.RegisteredAt,
		zap.String("email", logger.MaskEmail(event.Email)),
		zap.String("role", string(event.Role)),
	)
	return nil
}

// PublishPasswordChanged logs account.password.changed events.
func (p *StubPublisher) PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error {
	p.logEvent(ctx, EventPasswordChanged, event.AccountID, event.ChangedAt,
		zap.Int64("password_epoch", event.PasswordEpoch),
		zap.String("method", event.Method),
	)
	return nil
}

// PublishAccountLocked logs account.locked events.
func (p *StubPublisher) PublishAccountLocked(ctx context.Context, event domain.AccountLockedEvent) error {
	p.logEvent(ctx, EventAccountLocked, event.AccountID, event.LockedAt,
		zap.Time("locked_until", event.LockedUntil),
		zap.String("origin_ip", logger.MaskIP(event.OriginIP)),
	)
	return nil
}

// PublishAccountStatusChanged logs account.status.changed events.
func (p *StubPublisher) PublishAccountStatusChanged(ctx context.Context, event domain.AccountStatusChangedEvent) error {
	p.logEvent(ctx, EventAccountStatusChanged, event.AccountID, event.ChangedAt,
		zap.Bool("disabled", event.Disabled),
		zap.String("changed_by", event.ChangedBy),
	)
	return nil
}

// PublishAccountRoleChanged logs account.role.changed events.
func (p *StubPublisher) PublishAccountRoleChanged(ctx context.Context, event domain.AccountRoleChangedEvent) error {
	p.logEvent(ctx, EventAccountRoleChanged, event.AccountID, event.ChangedAt,
		zap.String("previous_role", string(event.PreviousRole)),
		zap.String("role", string(event.Role)),
		zap.String("changed_by", event.ChangedBy),
	)
	return nil
}

// PublishRecoveryRequested logs recovery.requested events.
func (p *StubPublisher) PublishRecoveryRequested(ctx context.Context, event domain.RecoveryRequestedEvent) error {
	p.logEvent(ctx, EventRecoveryRequested, event.AccountID, event.RequestedAt,
		zap.String("entry_id", event.EntryID),
		zap.String("masked_email", event.MaskedEmail),
		zap.Time("expires_at", event.ExpiresAt),
	)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
