// Package providers defines the interface for OAuth identity providers and the
// provider-neutral types shared by implementations.
package providers

import (
	"context"

	"golang.org/x/oauth2"
)

// Provider defines the interface for OAuth identity providers.
// Tokens are exchanged as golang.org/x/oauth2.Token so that hosting code can
// treat every provider alike; implementations may offer richer,
// provider-specific methods next to these.
type Provider interface {
	// Name returns the provider name (e.g., "ebay")
	Name() string

	// DefaultScopes returns the scopes requested when the caller passes none
	DefaultScopes() []string

	// AuthorizationURL generates the URL to redirect users for authentication.
	// codeChallenge and codeChallengeMethod are for PKCE (pass empty strings to disable).
	// If scopes is empty, the provider's default scopes are used.
	AuthorizationURL(state string, codeChallenge string, codeChallengeMethod string, scopes []string) string

	// ExchangeCode exchanges an authorization code for tokens.
	// codeVerifier is for PKCE verification (pass empty string if not using PKCE).
	ExchangeCode(ctx context.Context, code string, codeVerifier string) (*oauth2.Token, error)

	// ValidateToken validates an access token and returns user information
	ValidateToken(ctx context.Context, accessToken string) (*UserInfo, error)

	// RefreshToken refreshes an expired token using a refresh token
	RefreshToken(ctx context.Context, refreshToken string) (*oauth2.Token, error)

	// RevokeToken revokes a token at the provider
	RevokeToken(ctx context.Context, token string) error

	// HealthCheck verifies that the provider is reachable and functioning correctly.
	// Returns nil if the provider is healthy, or an error describing the issue.
	HealthCheck(ctx context.Context) error
}

// UserInfo represents user information from a provider
type UserInfo struct {
	// ID is the unique user identifier from the provider
	ID string

	// Email is the user's email address
	Email string

	// EmailVerified indicates if the email is verified
	EmailVerified bool

	// Name is the user's full name
	Name string

	// Locale is the user's preferred locale or site
	Locale string
}
