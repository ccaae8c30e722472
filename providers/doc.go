// Package providers defines the OAuth provider interface and types for user information.
//
// This package contains the Provider interface that identity provider adapters
// implement, the UserInfo type that represents authenticated user data, and a
// few helpers shared by implementations (context timeouts, HTTP client
// defaults, Basic client authentication and scope validation).
//
// Implementations are provided in subpackages:
//   - providers/ebay: eBay OAuth 2.0 provider (regional endpoints, Trading API user details)
//
// Example usage:
//
//	provider, err := ebay.NewProvider(&ebay.Config{
//	    ClientID:     "your-app-id",
//	    ClientSecret: "your-cert-id",
//	    RedirectURL:  "Your_Company-YourApp-Sandbo-abcdef",
//	    Sandbox:      true,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	var p providers.Provider = provider
//	url := p.AuthorizationURL(state, "", "", nil)
package providers
