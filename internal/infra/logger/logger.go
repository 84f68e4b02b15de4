package logger

import (
	"context"
	"net"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	lg   *zap.Logger
	once sync.Once
)

type requestIDKey struct{}

// New returns the process logger. Production uses JSON output at info level,
// every other environment uses the colored development console encoder.
func New(env string) (*zap.Logger, error) {
	var err error
	once.Do(func() {
		lg, err = buildConfig(env).Build()
	})
	return lg, err
}

func buildConfig(env string) zap.Config {
	if env == "production" {
		cfg := zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.InitialFields = map[string]any{"env": env}
		return cfg
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if env != "" {
		cfg.InitialFields = map[string]any{"env": env}
	}
	return cfg
}

// ContextWithRequestID stores the correlation id picked up by WithContext.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the correlation id stored by ContextWithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// WithContext attaches request scoped fields to base, falling back to the
// process logger and then to a no-op logger.
func WithContext(ctx context.Context, base *zap.Logger) *zap.Logger {
	if base == nil {
		base = lg
	}
	if base == nil {
		return zap.NewNop()
	}
	if id := RequestIDFromContext(ctx); id != "" {
		return base.With(zap.String("request_id", id))
	}
	return base
}

// MaskEmail keeps the first three characters of the local part and the domain.
// Example: john.doe@example.com -> joh***@example.com
func MaskEmail(email string) string {
	if email == "" {
		return ""
	}

	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "***"
	}

	local, domain := email[:at], email[at:]
	if len(local) > 3 {
		local = local[:3]
	}
	return local + "***" + domain
}

// MaskIP hides the host part of an address: the last two octets of IPv4, the
// last four groups of IPv6. Anything unparseable becomes "***".
func MaskIP(ip string) string {
	if ip == "" {
		return ""
	}

	parsed := net.ParseIP(ip)
	switch {
	case parsed == nil:
		return "***"
	case parsed.To4() != nil:
		parts := strings.Split(parsed.To4().String(), ".")
		return parts[0] + "." + parts[1] + ".*.*"
	default:
		groups := strings.Split(ip, ":")
		if len(groups) < 4 {
			return "***"
		}
		return strings.Join(groups[:4], ":") + ":*:*:*:*"
	}
}
