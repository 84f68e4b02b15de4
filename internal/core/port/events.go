package port

import (
	"context"

	"github.com/Developer-AbhinavAF/affiliate-backend/internal/core/domain"
)

// EventPublisher publishes credential lifecycle events to the message bus.
type EventPublisher interface {
	PublishAccountRegistered(ctx context.Context, event domain.AccountRegisteredEvent) error
	PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error
	PublishAccountLocked(ctx context.Context, event domain.AccountLockedEvent) error
	PublishAccountStatusChanged(ctx context.Context, event domain.AccountStatusChangedEvent) error
	PublishAccountRoleChanged(ctx context.Context, event domain.AccountRoleChangedEvent) error
	PublishRecoveryRequested(ctx context.Context, event domain.RecoveryRequestedEvent) error
}
