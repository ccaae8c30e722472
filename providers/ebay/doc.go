// Package ebay provides an eBay OAuth 2.0 provider implementation.
//
// This package implements the providers.Provider interface for eBay's
// authorization server and adds the pieces eBay needs on top of
// golang.org/x/oauth2:
//   - Regional endpoints for sandbox and production, with a default region
//     used for marketplaces that have no dedicated endpoints
//   - Client authentication with HTTP Basic credentials on the token endpoint
//   - A Token that carries the resource owner id, which eBay only reveals
//     through a later user details call
//   - User details from the Trading API (GetUser on /ws/api.dll), which uses
//     IAF token headers instead of a bearer Authorization header
//
// Marketplaces are identified by Region values such as RegionUS or RegionFR.
// Each region has a legacy site id used by Trading API calls.
//
// Example usage:
//
//	provider, err := ebay.NewProvider(&ebay.Config{
//	    ClientID:     os.Getenv("EBAY_CLIENT_ID"),
//	    ClientSecret: os.Getenv("EBAY_CLIENT_SECRET"),
//	    RedirectURL:  os.Getenv("EBAY_RUNAME"),
//	    Region:       ebay.RegionFR,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	token, err := provider.ExchangeToken(ctx, code, verifier)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	user, err := provider.ResourceOwner(ctx, token)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	id, _ := token.ResourceOwnerID() // same as user.ID()
//
// A Provider is safe for concurrent use. A Token is updated by ResourceOwner
// and must not be shared across goroutines without synchronization.
package ebay
