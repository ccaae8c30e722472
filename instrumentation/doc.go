// Package instrumentation provides OpenTelemetry (OTEL) instrumentation for the
// eBay OAuth provider adapter.
//
// It supplies:
//   - Metrics: counters and histograms for provider API calls and OAuth operations
//   - Traces: one span per provider operation with marketplace metadata
//
// # Quick Start
//
//	import "github.com/giantswarm/oauth2-ebay/instrumentation"
//
//	inst, err := instrumentation.New(instrumentation.Config{
//		ServiceName:    "my-shop-backend",
//		ServiceVersion: "1.0.0",
//		Enabled:        true,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer inst.Shutdown(context.Background())
//
//	provider, err := ebay.NewProvider(&ebay.Config{
//		ClientID:        appID,
//		ClientSecret:    certID,
//		Instrumentation: inst,
//	})
//
// When Enabled is true, configured MeterProvider/TracerProvider values win.
// Otherwise SpanExporter and MetricExporter, when set, back SDK providers that
// carry the service resource and are flushed by Shutdown. Without either, the
// globally registered OpenTelemetry providers are used. When Enabled is false,
// no-op providers are used.
//
// # Available Metrics
//
// Provider:
//   - provider.api.calls.total{provider, operation, status} - Provider API calls
//   - provider.api.duration{provider, operation} - Call duration in milliseconds
//   - provider.api.errors.total{provider, operation, error_type} - Failed calls
//
// OAuth:
//   - oauth.code.exchanged{region, pkce} - Authorization codes exchanged
//   - oauth.token.refreshed{region, rotated} - Tokens refreshed
//   - oauth.resource_owner.resolved{api_family, found} - Resource owner fetches
//   - oauth.endpoint.fallback.total{mode, region} - Regions resolved to default endpoints
//
// # Security
//
// Token values, authorization codes and client secrets are never recorded.
// Only metadata (grant type, whether PKCE or a refresh token was present,
// status codes) ends up in spans and metrics.
package instrumentation
