package instrumentation

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Common span attribute keys
//
// SECURITY WARNING: Never record actual sensitive values (access tokens, refresh tokens,
// authorization codes, client secrets) in traces or metrics. Only record metadata
// such as token types, expiry times and whether a value was present.
const (
	// OAuth flow attributes - SAFE to use for metadata only
	AttrClientID         = "oauth.client_id"         // Client identifier (non-secret)
	AttrUserID           = "oauth.user_id"           // Resource owner identifier (non-secret)
	AttrScope            = "oauth.scope"             // Requested scopes
	AttrGrantType        = "oauth.grant_type"        // OAuth grant type
	AttrPKCE             = "oauth.pkce"              // Whether PKCE was used (boolean)
	AttrTokenType        = "oauth.token_type"        //nolint:gosec // Token type (Bearer, etc.) - NOT the actual token
	AttrTokenRotated     = "oauth.token.rotated"     //nolint:gosec // Whether a refresh returned a new refresh token
	AttrRefreshPresent   = "oauth.refresh.present"   // Whether the token carries a refresh token
	AttrError            = "oauth.error"             // Error code
	AttrErrorDescription = "oauth.error_description" // Error description

	// Provider attributes
	AttrProviderName      = "provider.name"
	AttrProviderOperation = "provider.operation"

	// eBay attributes
	AttrEbayRegion    = "ebay.region"
	AttrEbayMode      = "ebay.mode"
	AttrEbayAPIFamily = "ebay.api_family"
	AttrEbaySiteID    = "ebay.site_id"
	AttrEbayFallback  = "ebay.endpoint.fallback"

	// HTTP attributes (in addition to standard semantic conventions)
	AttrHTTPEndpoint   = "http.endpoint"
	AttrHTTPMethod     = "http.method"
	AttrHTTPStatusCode = "http.status_code"
)

// RecordError records an error on a span with proper status codes (nil-safe)
func RecordError(span trace.Span, err error) {
	if span != nil && err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSpanSuccess marks a span as successful (nil-safe)
func SetSpanSuccess(span trace.Span) {
	if span != nil {
		span.SetStatus(codes.Ok, "")
	}
}

// SetSpanAttributes sets attributes on a span (nil-safe)
func SetSpanAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	if span != nil {
		span.SetAttributes(attrs...)
	}
}

// AddProviderAttributes adds provider attributes to a span (nil-safe)
func AddProviderAttributes(span trace.Span, providerName, operation string) {
	SetSpanAttributes(span,
		attribute.String(AttrProviderName, providerName),
		attribute.String(AttrProviderOperation, operation),
	)
}

// AddEbayAttributes adds marketplace selection attributes to a span (nil-safe)
func AddEbayAttributes(span trace.Span, region, mode string, fallback bool) {
	SetSpanAttributes(span,
		attribute.String(AttrEbayRegion, region),
		attribute.String(AttrEbayMode, mode),
		attribute.Bool(AttrEbayFallback, fallback),
	)
}

// AddAPIFamilyAttributes records which API family a request targets (nil-safe)
func AddAPIFamilyAttributes(span trace.Span, family string, siteID int) {
	SetSpanAttributes(span, attribute.String(AttrEbayAPIFamily, family))
	if siteID >= 0 {
		SetSpanAttributes(span, attribute.Int(AttrEbaySiteID, siteID))
	}
}

// AddGrantAttributes adds token grant attributes to a span (nil-safe)
func AddGrantAttributes(span trace.Span, grantType string, pkce bool) {
	SetSpanAttributes(span,
		attribute.String(AttrGrantType, grantType),
		attribute.Bool(AttrPKCE, pkce),
	)
}

// AddHTTPAttributes adds HTTP request attributes to a span (nil-safe)
func AddHTTPAttributes(span trace.Span, method, endpoint string, statusCode int) {
	SetSpanAttributes(span,
		attribute.String(AttrHTTPMethod, method),
		attribute.String(AttrHTTPEndpoint, endpoint),
		attribute.Int(AttrHTTPStatusCode, statusCode),
	)
}
