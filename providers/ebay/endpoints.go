package ebay

import "golang.org/x/oauth2"

// Mode selects the sandbox or production endpoint tables.
type Mode int

const (
	// Production is the live eBay environment.
	Production Mode = iota
	// Sandbox is eBay's developer test environment.
	Sandbox
)

// ModeFor returns Sandbox when sandbox is true and Production otherwise.
func ModeFor(sandbox bool) Mode {
	if sandbox {
		return Sandbox
	}
	return Production
}

// String returns "sandbox" or "production".
func (m Mode) String() string {
	if m == Sandbox {
		return "sandbox"
	}
	return "production"
}

// Endpoints are the three URLs used for one mode and region.
type Endpoints struct {
	AuthURL     string
	TokenURL    string
	UserInfoURL string
}

// OAuth2 converts e into the base library's endpoint description.
// eBay authenticates clients with HTTP Basic credentials.
func (e Endpoints) OAuth2() oauth2.Endpoint {
	return oauth2.Endpoint{
		AuthURL:   e.AuthURL,
		TokenURL:  e.TokenURL,
		AuthStyle: oauth2.AuthStyleInHeader,
	}
}

// Only a few marketplaces have dedicated endpoints; every other region uses
// the DefaultRegion row of the same mode.
var (
	sandboxEndpoints = map[Region]Endpoints{
		RegionUS: {
			AuthURL:     "https://auth.sandbox.ebay.com/oauth2/authorize",
			TokenURL:    "https://api.sandbox.ebay.com/identity/v1/oauth2/token", //nolint:gosec // not a credential
			UserInfoURL: "https://api.sandbox.ebay.com/ws/api.dll",
		},
		RegionFR: {
			AuthURL:     "https://auth.sandbox.ebay.fr/oauth2/authorize",
			TokenURL:    "https://api.sandbox.ebay.fr/identity/v1/oauth2/token", //nolint:gosec // not a credential
			UserInfoURL: "https://api.sandbox.ebay.com/ws/api.dll",
		},
	}

	productionEndpoints = map[Region]Endpoints{
		RegionUS: {
			AuthURL:     "https://auth.ebay.com/oauth2/authorize",
			TokenURL:    "https://api.ebay.com/identity/v1/oauth2/token", //nolint:gosec // not a credential
			UserInfoURL: "https://api.ebay.com/ws/api.dll",
		},
		RegionFR: {
			AuthURL:     "https://auth.ebay.fr/oauth2/authorize",
			TokenURL:    "https://api.ebay.com/identity/v1/oauth2/token", //nolint:gosec // not a credential
			UserInfoURL: "https://api.ebay.com/ws/api.dll",
		},
	}
)

func endpointTable(mode Mode) map[Region]Endpoints {
	if mode == Sandbox {
		return sandboxEndpoints
	}
	return productionEndpoints
}

// Resolve returns the endpoints for mode and region. A region that is empty
// or has no row in the mode's table silently resolves to DefaultRegion; it is
// never an error.
func Resolve(mode Mode, region Region) Endpoints {
	table := endpointTable(mode)
	if e, ok := table[region]; ok {
		return e
	}
	return table[DefaultRegion]
}

// HasDedicatedEndpoints reports whether region has its own row in the mode's
// table, i.e. whether Resolve does not fall back.
func HasDedicatedEndpoints(mode Mode, region Region) bool {
	_, ok := endpointTable(mode)[region]
	return ok
}

// AuthorizeURL returns the authorization endpoint for mode and region.
func AuthorizeURL(mode Mode, region Region) string {
	return Resolve(mode, region).AuthURL
}

// TokenURL returns the token endpoint for mode and region.
func TokenURL(mode Mode, region Region) string {
	return Resolve(mode, region).TokenURL
}

// UserInfoURL returns the resource owner details endpoint for mode and region.
func UserInfoURL(mode Mode, region Region) string {
	return Resolve(mode, region).UserInfoURL
}
