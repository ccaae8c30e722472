package providers

import (
	"context"
	"encoding/base64"
	"net/http"
	"time"
)

// DefaultRequestTimeout is used when a provider config leaves RequestTimeout unset.
const DefaultRequestTimeout = 30 * time.Second

// EnsureContextTimeout ensures the context has a deadline, adding one if needed.
// Returns a new context with timeout and a cancel function that should be deferred.
// If the context already has a deadline, returns the original context with a no-op cancel.
func EnsureContextTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

// ResolveTimeout returns timeout, or DefaultRequestTimeout when it is not positive.
func ResolveTimeout(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return DefaultRequestTimeout
	}
	return timeout
}

// ResolveHTTPClient returns client, or a new client bounded by timeout when nil.
func ResolveHTTPClient(client *http.Client, timeout time.Duration) *http.Client {
	if client != nil {
		return client
	}
	return &http.Client{Timeout: timeout}
}

// BasicAuthorization returns the value of an HTTP Basic Authorization header
// for the given client credentials. Unlike http.Request.SetBasicAuth it is
// usable when building header sets ahead of a request.
func BasicAuthorization(clientID, clientSecret string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(clientID+":"+clientSecret))
}

// CopyScopes returns a deep copy of scopes, or nil for an empty slice.
func CopyScopes(scopes []string) []string {
	if len(scopes) == 0 {
		return nil
	}
	out := make([]string, len(scopes))
	copy(out, scopes)
	return out
}
