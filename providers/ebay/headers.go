package ebay

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/oauth2"
)

// APIFamily identifies which eBay API a request targets. It decides the
// authentication header scheme.
type APIFamily int

const (
	// ModernAPI is the REST/JSON family using bearer authentication.
	ModernAPI APIFamily = iota
	// LegacyAPI is the XML Trading API family using IAF token headers.
	LegacyAPI
)

// String returns "modern" or "legacy".
func (f APIFamily) String() string {
	if f == LegacyAPI {
		return "legacy"
	}
	return "modern"
}

const (
	// legacyPathMarker is the path segment served by the Trading API.
	legacyPathMarker = "/ws/api.dll"

	// CompatibilityLevel is the Trading API schema version requested.
	CompatibilityLevel = "1061"

	HeaderIAFToken           = "X-EBAY-API-IAF-TOKEN"
	HeaderCompatibilityLevel = "X-EBAY-API-COMPATIBILITY-LEVEL"
	HeaderSiteID             = "X-EBAY-API-SITEID"
	HeaderCallName           = "X-EBAY-API-CALL-NAME"
)

// FamilyForURL classifies a request target. URLs whose path contains the
// Trading API segment are LegacyAPI; everything else, including unparsable
// input without that segment, is ModernAPI.
func FamilyForURL(rawURL string) APIFamily {
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		path = u.Path
	}
	if strings.Contains(path, legacyPathMarker) {
		return LegacyAPI
	}
	return ModernAPI
}

// AuthHeaders returns the authentication headers for one request.
//
// With no token the result is empty. ModernAPI yields a single bearer
// Authorization header. LegacyAPI yields exactly the raw IAF token, the
// compatibility level and the numeric site id.
func AuthHeaders(family APIFamily, token string, siteID int) http.Header {
	h := http.Header{}
	if token == "" {
		return h
	}

	if family == LegacyAPI {
		h.Set(HeaderIAFToken, token)
		h.Set(HeaderCompatibilityLevel, CompatibilityLevel)
		h.Set(HeaderSiteID, strconv.Itoa(siteID))
		return h
	}

	bearer := &oauth2.Token{AccessToken: token}
	h.Set("Authorization", bearer.Type()+" "+token)
	return h
}
