package instrumentation

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all metric instruments for the provider adapter
type Metrics struct {
	// Provider Metrics
	ProviderAPICallsTotal metric.Int64Counter
	ProviderAPIDuration   metric.Float64Histogram
	ProviderAPIErrors     metric.Int64Counter

	// OAuth Flow Metrics
	CodeExchanged          metric.Int64Counter
	TokenRefreshed         metric.Int64Counter
	ResourceOwnerResolved  metric.Int64Counter
	EndpointFallbacksTotal metric.Int64Counter
}

// newMetrics creates and registers all metric instruments
func newMetrics(inst *Instrumentation) (*Metrics, error) {
	m := &Metrics{}
	providerMeter := inst.Meter("provider")
	oauthMeter := inst.Meter("oauth")

	var err error
	m.ProviderAPICallsTotal, err = providerMeter.Int64Counter(
		"provider.api.calls.total",
		metric.WithDescription("Total number of provider API calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider.api.calls.total counter: %w", err)
	}

	m.ProviderAPIDuration, err = providerMeter.Float64Histogram(
		"provider.api.duration",
		metric.WithDescription("Provider API call duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider.api.duration histogram: %w", err)
	}

	m.ProviderAPIErrors, err = providerMeter.Int64Counter(
		"provider.api.errors.total",
		metric.WithDescription("Total number of provider API errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider.api.errors.total counter: %w", err)
	}

	m.CodeExchanged, err = oauthMeter.Int64Counter(
		"oauth.code.exchanged",
		metric.WithDescription("Authorization codes exchanged for tokens"),
		metric.WithUnit("{exchange}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth.code.exchanged counter: %w", err)
	}

	m.TokenRefreshed, err = oauthMeter.Int64Counter(
		"oauth.token.refreshed",
		metric.WithDescription("Tokens refreshed with a refresh-token grant"),
		metric.WithUnit("{refresh}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth.token.refreshed counter: %w", err)
	}

	m.ResourceOwnerResolved, err = oauthMeter.Int64Counter(
		"oauth.resource_owner.resolved",
		metric.WithDescription("Resource owner details fetched and attached to a token"),
		metric.WithUnit("{fetch}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth.resource_owner.resolved counter: %w", err)
	}

	m.EndpointFallbacksTotal, err = oauthMeter.Int64Counter(
		"oauth.endpoint.fallback.total",
		metric.WithDescription("Endpoint resolutions that fell back to the default region"),
		metric.WithUnit("{resolution}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth.endpoint.fallback.total counter: %w", err)
	}

	return m, nil
}

// RecordProviderAPICall records a provider API call
func (m *Metrics) RecordProviderAPICall(ctx context.Context, provider, operation string, statusCode int, durationMs float64, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("provider", provider),
		attribute.String("operation", operation),
		attribute.Int("status", statusCode),
	}

	m.ProviderAPICallsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.ProviderAPIDuration.Record(ctx, durationMs, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("operation", operation),
	))

	if err != nil {
		m.ProviderAPIErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("operation", operation),
			attribute.String("error_type", errorType(statusCode)),
		))
	}
}

// errorType classifies a failed call by its HTTP status
func errorType(statusCode int) string {
	switch {
	case statusCode >= 400 && statusCode < 500:
		return "client_error"
	case statusCode >= 500:
		return "server_error"
	case statusCode == 0:
		return "transport_error"
	default:
		return "unknown"
	}
}

// RecordCodeExchange records an authorization code exchange
func (m *Metrics) RecordCodeExchange(ctx context.Context, region string, pkce bool) {
	m.CodeExchanged.Add(ctx, 1, metric.WithAttributes(
		attribute.String("region", region),
		attribute.Bool("pkce", pkce),
	))
}

// RecordTokenRefresh records a token refresh; rotated reports whether the
// provider issued a new refresh token
func (m *Metrics) RecordTokenRefresh(ctx context.Context, region string, rotated bool) {
	m.TokenRefreshed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("region", region),
		attribute.Bool("rotated", rotated),
	))
}

// RecordResourceOwnerResolved records a resource owner details fetch
func (m *Metrics) RecordResourceOwnerResolved(ctx context.Context, apiFamily string, found bool) {
	m.ResourceOwnerResolved.Add(ctx, 1, metric.WithAttributes(
		attribute.String("api_family", apiFamily),
		attribute.Bool("found", found),
	))
}

// RecordEndpointFallback records that a region had no dedicated endpoints
func (m *Metrics) RecordEndpointFallback(ctx context.Context, mode, region string) {
	m.EndpointFallbacksTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("mode", mode),
		attribute.String("region", region),
	))
}
