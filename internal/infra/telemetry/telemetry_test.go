package telemetry

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap/zaptest"

	"github.com/Developer-AbhinavAF/affiliate-backend/internal/infra/config"
)

func TestCredentialMetricsCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewCredentialMetrics(registry)

	metrics.IncOTPIssued("signup")
	metrics.IncOTPIssued("signup")
	metrics.IncOTPVerify("recovery", "invalid")
	metrics.IncLogin("wrong_password")
	metrics.IncLogin("success")
	metrics.IncAccountStateLookup(true)
	metrics.IncAccountStateLookup(false)

	if got := testutil.ToFloat64(metrics.otpIssued.WithLabelValues("signup")); got != 2 {
		t.Fatalf("expected 2 signup codes issued, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.otpVerify.WithLabelValues("recovery", "invalid")); got != 1 {
		t.Fatalf("expected 1 invalid recovery verification, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.logins.WithLabelValues("wrong_password")); got != 1 {
		t.Fatalf("expected 1 wrong_password login, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.stateLookups.WithLabelValues("miss")); got != 1 {
		t.Fatalf("expected 1 cache miss, got %f", got)
	}

	if count, err := testutil.GatherAndCount(registry, "credential_login_total"); err != nil || count != 2 {
		t.Fatalf("expected 2 login series, got %d (%v)", count, err)
	}
}

func TestCredentialMetricsNilSafe(t *testing.T) {
	var metrics *CredentialMetrics
	metrics.IncOTPIssued("signup")
	metrics.IncOTPVerify("signup", "verified")
	metrics.IncLogin("success")
	metrics.IncAccountStateLookup(true)
}

func TestAttachWithoutTracing(t *testing.T) {
	cfg := &config.AppConfig{Telemetry: config.TelemetrySettings{TracingEnabled: false}}

	provider, err := Attach(context.Background(), cfg, prometheus.NewRegistry(), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Attach returned error: %v", err)
	}
	if provider.Metrics() == nil {
		t.Fatal("expected credential metrics")
	}
	if provider.Tracer() != nil {
		t.Fatal("expected no tracer provider when tracing is disabled")
	}
	if err := provider.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown returned error: %v", err)
	}
}

func TestAttachRequiresConfig(t *testing.T) {
	if _, err := Attach(context.Background(), nil, prometheus.NewRegistry(), nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestSamplerClampsRate(t *testing.T) {
	cases := map[float64]string{
		0:    "ParentBased{root:AlwaysOffSampler",
		-1:   "ParentBased{root:AlwaysOffSampler",
		1:    "ParentBased{root:AlwaysOnSampler",
		2.5:  "ParentBased{root:AlwaysOnSampler",
		0.25: "ParentBased{root:TraceIDRatioBased{0.25}",
	}

	for rate, prefix := range cases {
		if got := sampler(rate).Description(); !strings.HasPrefix(got, prefix) {
			t.Fatalf("sampler(%v) = %q, want prefix %q", rate, got, prefix)
		}
	}
}

func TestServiceResourceDefaults(t *testing.T) {
	res, err := serviceResource(context.Background(), "", "staging")
	if err != nil {
		t.Fatalf("serviceResource returned error: %v", err)
	}

	attrs := map[string]string{}
	for _, kv := range res.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	if attrs["service.name"] != defaultServiceName {
		t.Fatalf("expected default service name, got %q", attrs["service.name"])
	}
	if attrs["deployment.environment"] != "staging" {
		t.Fatalf("expected deployment environment, got %q", attrs["deployment.environment"])
	}
}
