package ebay

import (
	"encoding/json"
	"maps"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// expirationTimestampThreshold separates relative "expires" values (seconds
// from now) from absolute unix timestamps. Ten years in seconds.
const expirationTimestampThreshold = 315360000

// bearerTokenType is the scheme eBay expects in Authorization headers. The
// token endpoint itself reports "User Access Token" or "Application Access
// Token", which the base library would send verbatim.
const bearerTokenType = "Bearer"

// Token response field names.
const (
	fieldAccessToken           = "access_token"
	fieldTokenType             = "token_type"
	fieldRefreshToken          = "refresh_token"
	fieldExpiresIn             = "expires_in"
	fieldExpires               = "expires"
	fieldRefreshTokenExpiresIn = "refresh_token_expires_in"
	fieldRefreshTokenExpires   = "refresh_token_expires"
	fieldResourceOwnerID       = "resource_owner_id"
)

// Token is an eBay access token. It composes the base *oauth2.Token with the
// resource owner identifier, which eBay does not return from the token
// endpoint and which is filled in after the owner's details are fetched.
//
// A Token is not safe for concurrent mutation; callers sharing one across
// goroutines synchronize around SetResourceOwnerID.
type Token struct {
	*oauth2.Token

	raw                map[string]any
	issuedType         string
	refreshTokenExpiry time.Time
	resourceOwnerID    string
	hasResourceOwnerID bool
}

// NewToken builds a Token from decoded token endpoint fields. It fails with a
// *MalformedTokenResponseError when access_token is missing or empty.
func NewToken(values map[string]any) (*Token, error) {
	return newToken(values, time.Now)
}

func newToken(values map[string]any, now func() time.Time) (*Token, error) {
	accessToken, _ := stringField(values, fieldAccessToken)
	if accessToken == "" {
		return nil, &MalformedTokenResponseError{Values: maps.Clone(values)}
	}

	base := &oauth2.Token{AccessToken: accessToken, TokenType: bearerTokenType}
	base.RefreshToken, _ = stringField(values, fieldRefreshToken)
	base.Expiry = expiryFrom(values, fieldExpiresIn, fieldExpires, now)
	if secs, ok := intField(values, fieldExpiresIn); ok && secs > 0 {
		base.ExpiresIn = secs
	}

	raw := maps.Clone(values)
	t := &Token{
		Token:              base.WithExtra(raw),
		raw:                raw,
		refreshTokenExpiry: expiryFrom(values, fieldRefreshTokenExpiresIn, fieldRefreshTokenExpires, now),
	}
	t.issuedType, _ = stringField(values, fieldTokenType)
	if id, ok := stringField(values, fieldResourceOwnerID); ok && id != "" {
		t.SetResourceOwnerID(id)
	}
	return t, nil
}

// IssuedTokenType returns the token_type reported by eBay, such as
// "User Access Token". TokenType itself is always "Bearer".
func (t *Token) IssuedTokenType() string {
	return t.issuedType
}

// ResourceOwnerID returns the resource owner identifier and whether it has
// been set.
func (t *Token) ResourceOwnerID() (string, bool) {
	return t.resourceOwnerID, t.hasResourceOwnerID
}

// SetResourceOwnerID records the resource owner identifier. The last write wins.
func (t *Token) SetResourceOwnerID(id string) {
	t.resourceOwnerID = id
	t.hasResourceOwnerID = true
}

// RefreshTokenExpiry returns when the refresh token expires, or the zero time
// when the response did not say.
func (t *Token) RefreshTokenExpiry() time.Time {
	return t.refreshTokenExpiry
}

// OAuth2 returns a copy of the base token with the resource owner id added
// to its extras, for callers that only understand *oauth2.Token.
func (t *Token) OAuth2() *oauth2.Token {
	return t.Token.WithExtra(t.Values())
}

// Values returns the token as a flat field map. Durations are emitted as
// absolute timestamps so that a later merge does not restart them.
func (t *Token) Values() map[string]any {
	out := maps.Clone(t.raw)
	if out == nil {
		out = map[string]any{}
	}
	delete(out, fieldExpiresIn)
	delete(out, fieldRefreshTokenExpiresIn)

	out[fieldAccessToken] = t.AccessToken
	setOrDelete(out, fieldTokenType, t.issuedType)
	setOrDelete(out, fieldRefreshToken, t.RefreshToken)
	if t.Expiry.IsZero() {
		delete(out, fieldExpires)
	} else {
		out[fieldExpires] = t.Expiry.Unix()
	}
	if t.refreshTokenExpiry.IsZero() {
		delete(out, fieldRefreshTokenExpires)
	} else {
		out[fieldRefreshTokenExpires] = t.refreshTokenExpiry.Unix()
	}
	if t.hasResourceOwnerID {
		out[fieldResourceOwnerID] = t.resourceOwnerID
	} else {
		delete(out, fieldResourceOwnerID)
	}
	return out
}

// MarshalJSON encodes the token as its field map.
func (t *Token) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Values())
}

func setOrDelete(m map[string]any, key, value string) {
	if value == "" {
		delete(m, key)
		return
	}
	m[key] = value
}

// mergeValues overlays update onto current; update's fields win.
func mergeValues(current, update map[string]any) map[string]any {
	out := make(map[string]any, len(current)+len(update))
	maps.Copy(out, current)
	maps.Copy(out, update)
	return out
}

// expiryFrom resolves an expiry from a relative field or, failing that, a
// field that is absolute when above expirationTimestampThreshold and relative
// otherwise. A relative value of zero means the token does not expire.
func expiryFrom(values map[string]any, relativeKey, absoluteKey string, now func() time.Time) time.Time {
	if secs, ok := intField(values, relativeKey); ok {
		if secs == 0 {
			return time.Time{}
		}
		return now().Add(time.Duration(secs) * time.Second)
	}
	if secs, ok := intField(values, absoluteKey); ok && secs != 0 {
		if secs > expirationTimestampThreshold {
			return time.Unix(secs, 0)
		}
		return now().Add(time.Duration(secs) * time.Second)
	}
	return time.Time{}
}

func stringField(values map[string]any, key string) (string, bool) {
	switch v := values[key].(type) {
	case string:
		return v, true
	case json.Number:
		return v.String(), true
	default:
		return "", false
	}
}

// intField reads an integer from the numeric and string forms a decoded
// response may hold.
func intField(values map[string]any, key string) (int64, bool) {
	switch v := values[key].(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case int32:
		return int64(v), true
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}
