package instrumentation

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestInstrumentation returns instrumentation backed by a manual reader.
func newTestInstrumentation(t *testing.T) (*Instrumentation, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	inst, err := New(Config{
		Enabled:       true,
		MeterProvider: sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return inst, reader
}

// collectSum returns the summed data points of the named Int64 counter that
// carry every attribute in want.
func collectSum(t *testing.T, reader *sdkmetric.ManualReader, name string, want ...attribute.KeyValue) int64 {
	t.Helper()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("metric %s is %T, want Sum[int64]", name, m.Data)
			}
			for _, dp := range sum.DataPoints {
				if hasAttributes(dp.Attributes, want) {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func hasAttributes(set attribute.Set, want []attribute.KeyValue) bool {
	for _, kv := range want {
		got, ok := set.Value(kv.Key)
		if !ok || got != kv.Value {
			return false
		}
	}
	return true
}

func TestMetrics_RecordProviderAPICall(t *testing.T) {
	ctx := context.Background()
	inst, reader := newTestInstrumentation(t)
	metrics := inst.Metrics()

	tests := []struct {
		name       string
		operation  string
		statusCode int
		err        error
	}{
		{"successful exchange", "exchange", 200, nil},
		{"bad request", "exchange", 400, errors.New("invalid_grant")},
		{"server error", "resource_owner", 503, errors.New("unavailable")},
		{"transport error", "refresh", 0, errors.New("connection refused")},
	}

	for _, tt := range tests {
		metrics.RecordProviderAPICall(ctx, "ebay", tt.operation, tt.statusCode, 10, tt.err)
	}

	if got := collectSum(t, reader, "provider.api.calls.total"); got != 4 {
		t.Errorf("provider.api.calls.total = %d, want 4", got)
	}
	if got := collectSum(t, reader, "provider.api.errors.total"); got != 3 {
		t.Errorf("provider.api.errors.total = %d, want 3", got)
	}
	if got := collectSum(t, reader, "provider.api.errors.total", attribute.String("error_type", "client_error")); got != 1 {
		t.Errorf("client_error count = %d, want 1", got)
	}
	if got := collectSum(t, reader, "provider.api.errors.total", attribute.String("error_type", "server_error")); got != 1 {
		t.Errorf("server_error count = %d, want 1", got)
	}
	if got := collectSum(t, reader, "provider.api.errors.total", attribute.String("error_type", "transport_error")); got != 1 {
		t.Errorf("transport_error count = %d, want 1", got)
	}
}

func TestMetrics_RecordOAuthOperations(t *testing.T) {
	ctx := context.Background()
	inst, reader := newTestInstrumentation(t)
	metrics := inst.Metrics()

	metrics.RecordCodeExchange(ctx, "EBAY_US", true)
	metrics.RecordCodeExchange(ctx, "EBAY_FR", false)
	metrics.RecordTokenRefresh(ctx, "EBAY_US", false)
	metrics.RecordResourceOwnerResolved(ctx, "legacy", true)
	metrics.RecordEndpointFallback(ctx, "production", "EBAY_DE")

	if got := collectSum(t, reader, "oauth.code.exchanged"); got != 2 {
		t.Errorf("oauth.code.exchanged = %d, want 2", got)
	}
	if got := collectSum(t, reader, "oauth.code.exchanged", attribute.Bool("pkce", true)); got != 1 {
		t.Errorf("oauth.code.exchanged{pkce=true} = %d, want 1", got)
	}
	if got := collectSum(t, reader, "oauth.token.refreshed", attribute.Bool("rotated", false)); got != 1 {
		t.Errorf("oauth.token.refreshed{rotated=false} = %d, want 1", got)
	}
	if got := collectSum(t, reader, "oauth.resource_owner.resolved", attribute.String("api_family", "legacy")); got != 1 {
		t.Errorf("oauth.resource_owner.resolved = %d, want 1", got)
	}
	if got := collectSum(t, reader, "oauth.endpoint.fallback.total", attribute.String("region", "EBAY_DE")); got != 1 {
		t.Errorf("oauth.endpoint.fallback.total = %d, want 1", got)
	}
}

func TestErrorType(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{0, "transport_error"},
		{200, "unknown"},
		{302, "unknown"},
		{401, "client_error"},
		{499, "client_error"},
		{500, "server_error"},
	}

	for _, tt := range tests {
		if got := errorType(tt.status); got != tt.want {
			t.Errorf("errorType(%d) = %q, want %q", tt.status, got, tt.want)
		}
	}
}
