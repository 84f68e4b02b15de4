package notify

import (
	"errors"

	"go.uber.org/zap"

	"github.com/Developer-AbhinavAF/affiliate-backend/internal/core/port"
	"github.com/Developer-AbhinavAF/affiliate-backend/internal/infra/config"
)

// New selects the SMTP notifier when a host is configured and falls back to
// the log notifier otherwise. Bodies are only logged outside production.
func New(cfg config.SMTPSettings, env string, log *zap.Logger) (port.Notifier, error) {
	notifier, err := NewSMTPNotifier(cfg, log)
	if err == nil {
		return notifier, nil
	}
	if !errors.Is(err, ErrSMTPNotConfigured) {
		return nil, err
	}

	if log != nil {
		log.Warn("smtp not configured, notifications will only be logged")
	}
	return NewLogNotifier(log, env != "production"), nil
}
