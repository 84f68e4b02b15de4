package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/Developer-AbhinavAF/affiliate-backend/internal/core/port"
	"github.com/Developer-AbhinavAF/affiliate-backend/internal/infra/logger"
)

// LogNotifier records deliveries in the structured log instead of sending them.
// It backs local development and any deployment without SMTP settings.
type LogNotifier struct {
	logger      *zap.Logger
	includeBody bool
}

// NewLogNotifier constructs a log-only notifier. When includeBody is true the
// message body (and thus any code it carries) is written to the log.
func NewLogNotifier(log *zap.Logger, includeBody bool) *LogNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogNotifier{logger: log, includeBody: includeBody}
}

// Send logs the message and never fails.
func (n *LogNotifier) Send(ctx context.Context, msg port.Message) error {
	fields := []zap.Field{
		zap.String("to", logger.MaskEmail(msg.To)),
		zap.String("subject", msg.Subject),
	}
	if n.includeBody {
		fields = append(fields, zap.String("body", msg.Body))
	}

	logger.WithContext(ctx, n.logger).Info("dispatch notification", fields...)
	return nil
}

var _ port.Notifier = (*LogNotifier)(nil)
