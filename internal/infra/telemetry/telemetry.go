package telemetry

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/Developer-AbhinavAF/affiliate-backend/internal/infra/config"
)

// Provider represents a telemetry provider handle.
type Provider struct {
	metrics *CredentialMetrics
	tracer  *TracerProvider
}

// Attach configures credential metrics and, when enabled, the OTLP tracer provider.
func Attach(ctx context.Context, cfg *config.AppConfig, reg prometheus.Registerer, logger *zap.Logger) (*Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	provider := &Provider{metrics: NewCredentialMetrics(reg)}

	if cfg.Telemetry.TracingEnabled {
		tp, err := NewTracerProvider(ctx, cfg.Telemetry, cfg.App.Env, logger)
		if err != nil {
			return nil, fmt.Errorf("init tracing: %w", err)
		}
		provider.tracer = tp
	}

	return provider, nil
}

// Metrics exposes the credential flow collectors.
func (p *Provider) Metrics() *CredentialMetrics {
	if p == nil {
		return nil
	}
	return p.metrics
}

// Tracer returns the tracer provider, or nil when tracing is disabled.
func (p *Provider) Tracer() *TracerProvider {
	if p == nil {
		return nil
	}
	return p.tracer
}

// Shutdown flushes pending spans.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tracer == nil {
		return nil
	}
	return p.tracer.Shutdown(ctx)
}

// CredentialMetrics counts OTP issuance, OTP verification outcomes, login
// outcomes and account state cache lookups.
type CredentialMetrics struct {
	otpIssued    *prometheus.CounterVec
	otpVerify    *prometheus.CounterVec
	logins       *prometheus.CounterVec
	stateLookups *prometheus.CounterVec
}

// NewCredentialMetrics registers the collectors with reg (the default registerer when nil).
func NewCredentialMetrics(reg prometheus.Registerer) *CredentialMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &CredentialMetrics{
		otpIssued: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "credential",
			Name:      "otp_issued_total",
			Help:      "Total number of one-time codes issued partitioned by purpose.",
		}, []string{"purpose"}),
		otpVerify: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "credential",
			Name:      "otp_verify_total",
			Help:      "Total number of one-time code verifications partitioned by purpose and outcome.",
		}, []string{"purpose", "outcome"}),
		logins: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "credential",
			Name:      "login_total",
			Help:      "Total number of login attempts partitioned by reason.",
		}, []string{"reason"}),
		stateLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "credential",
			Name:      "account_state_cache_total",
			Help:      "Account state cache lookups during token verification partitioned by result.",
		}, []string{"result"}),
	}
}

// IncOTPIssued counts a stored and dispatched code.
func (m *CredentialMetrics) IncOTPIssued(purpose string) {
	if m == nil {
		return
	}
	m.otpIssued.WithLabelValues(purpose).Inc()
}

// IncOTPVerify counts a verification attempt by outcome.
func (m *CredentialMetrics) IncOTPVerify(purpose, outcome string) {
	if m == nil {
		return
	}
	m.otpVerify.WithLabelValues(purpose, outcome).Inc()
}

// IncLogin counts a login attempt by reason.
func (m *CredentialMetrics) IncLogin(reason string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(reason).Inc()
}

// IncAccountStateLookup counts cache hits and misses.
func (m *CredentialMetrics) IncAccountStateLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.stateLookups.WithLabelValues(result).Inc()
}
