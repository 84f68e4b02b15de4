package usecase

import (
	"context"

	"go.uber.org/zap"

	"github.com/Developer-AbhinavAF/affiliate-backend/internal/core/port"
	"github.com/Developer-AbhinavAF/affiliate-backend/internal/infra/logger"
)

// publishEvent runs publish when a publisher is configured. Events are
// best-effort: failures are logged and never change the caller's outcome.
func publishEvent(ctx context.Context, log *zap.Logger, events port.EventPublisher, eventType string, publish func(port.EventPublisher) error) {
	if events == nil {
		return
	}
	if err := publish(events); err != nil {
		logger.WithContext(ctx, log).Warn("publish event failed",
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}
