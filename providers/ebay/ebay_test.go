package ebay

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"golang.org/x/time/rate"

	"github.com/giantswarm/oauth2-ebay/instrumentation"
	"github.com/giantswarm/oauth2-ebay/providers"
)

const (
	testClientID     = "TestApp-PRD-1234567890-abcdef"
	testClientSecret = "PRD-secret-0987654321"
	testRuName       = "Test_App-TestApp-PRD-abc-xyz"
	testAccessToken  = "v^1.1#i^1#access"
	testRefreshToken = "v^1.1#i^1#refresh"

	tokenPath    = "/identity/v1/oauth2/token"
	userInfoPath = "/ws/api.dll"
)

// recordedRequest is what the fake eBay server saw.
type recordedRequest struct {
	Host   string
	Method string
	Path   string
	Header http.Header
	Body   string
}

// fakeEbay serves canned responses per path and records every request.
type fakeEbay struct {
	t        *testing.T
	server   *httptest.Server
	mu       sync.Mutex
	requests []recordedRequest
	handlers map[string]http.HandlerFunc
}

func newFakeEbay(t *testing.T) *fakeEbay {
	t.Helper()
	f := &fakeEbay{t: t, handlers: map[string]http.HandlerFunc{}}
	f.server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeEbay) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{
		Host:   r.Header.Get("X-Original-Host"),
		Method: r.Method,
		Path:   r.URL.Path,
		Header: r.Header.Clone(),
		Body:   string(body),
	})
	handler, ok := f.handlers[r.URL.Path]
	f.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	handler(w, r)
}

func (f *fakeEbay) handle(path string, h http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[path] = h
}

func (f *fakeEbay) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeEbay) lastRequest() recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(f.t, f.requests, "no request reached the fake server")
	return f.requests[len(f.requests)-1]
}

// client returns an HTTP client that sends eBay-bound requests to the fake
// server, keeping the path and recording the original host.
func (f *fakeEbay) client() *http.Client {
	return &http.Client{Transport: &rewriteTransport{server: f.server}}
}

type rewriteTransport struct {
	server *httptest.Server
}

func (rt *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if strings.Contains(req.URL.Host, "ebay.") {
		req = req.Clone(req.Context())
		req.Header.Set("X-Original-Host", req.URL.Host)
		testURL, _ := url.Parse(rt.server.URL + req.URL.Path)
		testURL.RawQuery = req.URL.RawQuery
		req.URL = testURL
		req.Host = testURL.Host
	}
	return http.DefaultTransport.RoundTrip(req)
}

func jsonHandler(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func xmlHandler(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/xml;charset=utf-8")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

const tokenResponseJSON = `{
  "access_token": "v^1.1#i^1#access",
  "expires_in": 7200,
  "refresh_token": "v^1.1#i^1#refresh",
  "refresh_token_expires_in": 47304000,
  "token_type": "User Access Token"
}`

func newTestProvider(t *testing.T, f *fakeEbay, mutate func(*Config)) *Provider {
	t.Helper()
	cfg := &Config{
		ClientID:     testClientID,
		ClientSecret: testClientSecret,
		RedirectURL:  testRuName,
		HTTPClient:   f.client(),
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:          fixedClock,
	}
	if mutate != nil {
		mutate(cfg)
	}
	p, err := NewProvider(cfg)
	require.NoError(t, err)
	return p
}

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr string
	}{
		{
			name:   "valid config",
			config: &Config{ClientID: "id", ClientSecret: "secret"},
		},
		{
			name:    "nil config",
			config:  nil,
			wantErr: "config is required",
		},
		{
			name:    "missing client ID",
			config:  &Config{ClientSecret: "secret"},
			wantErr: "client ID is required",
		},
		{
			name:    "missing client secret",
			config:  &Config{ClientID: "id"},
			wantErr: "client secret is required",
		},
		{
			name:    "empty scope",
			config:  &Config{ClientID: "id", ClientSecret: "secret", Scopes: []string{DefaultScope, ""}},
			wantErr: "invalid scopes",
		},
		{
			name:   "unknown region is accepted",
			config: &Config{ClientID: "id", ClientSecret: "secret", Region: "EBAY_XX"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProvider(tt.config)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "ebay", p.Name())
		})
	}
}

func TestNewProvider_Defaults(t *testing.T) {
	p, err := NewProvider(&Config{ClientID: "id", ClientSecret: "secret"})
	require.NoError(t, err)

	assert.Equal(t, DefaultRegion, p.Region())
	assert.Equal(t, Production, p.Mode())
	assert.Equal(t, []string{DefaultScope}, p.DefaultScopes())
	assert.Equal(t, Resolve(Production, RegionUS), p.Endpoints())
	assert.Equal(t, 0, p.SiteID())
	assert.Equal(t, providers.DefaultRequestTimeout, p.requestTimeout)
	assert.Nil(t, p.limiter)
}

func TestNewProvider_RegionFallbackKeepsSiteID(t *testing.T) {
	p, err := NewProvider(&Config{ClientID: "id", ClientSecret: "secret", Region: RegionDE, Sandbox: true})
	require.NoError(t, err)

	assert.Equal(t, Resolve(Sandbox, RegionUS), p.Endpoints())
	assert.Equal(t, 77, p.SiteID())
	assert.True(t, p.fallback)

	p, err = NewProvider(&Config{ClientID: "id", ClientSecret: "secret", Region: "EBAY_XX"})
	require.NoError(t, err)
	assert.Equal(t, 0, p.SiteID(), "unknown region uses the default site id")
}

func TestProvider_DefaultScopesIsCopy(t *testing.T) {
	p, err := NewProvider(&Config{ClientID: "id", ClientSecret: "secret", Scopes: []string{"a", "b"}})
	require.NoError(t, err)

	scopes := p.DefaultScopes()
	scopes[0] = "mutated"
	assert.Equal(t, []string{"a", "b"}, p.DefaultScopes())
}

func TestProvider_AuthorizationURL(t *testing.T) {
	p, err := NewProvider(&Config{
		ClientID:     testClientID,
		ClientSecret: testClientSecret,
		RedirectURL:  testRuName,
		Region:       RegionFR,
		Scopes:       []string{DefaultScope, "https://api.ebay.com/oauth/api_scope/sell.inventory"},
	})
	require.NoError(t, err)

	tests := []struct {
		name      string
		challenge string
		method    string
		scopes    []string
		want      map[string]string
		absent    []string
	}{
		{
			name: "defaults",
			want: map[string]string{
				"client_id":     testClientID,
				"redirect_uri":  testRuName,
				"response_type": "code",
				"state":         "state-123",
				"scope":         DefaultScope + " https://api.ebay.com/oauth/api_scope/sell.inventory",
			},
			absent: []string{"code_challenge", "code_challenge_method", "prompt", "locale"},
		},
		{
			name:      "with PKCE",
			challenge: "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM",
			method:    "S256",
			want: map[string]string{
				"code_challenge":        "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM",
				"code_challenge_method": "S256",
			},
		},
		{
			name:      "challenge without method is ignored",
			challenge: "abc",
			absent:    []string{"code_challenge"},
		},
		{
			name:   "requested scopes override defaults",
			scopes: []string{"https://api.ebay.com/oauth/api_scope/commerce.identity.readonly"},
			want: map[string]string{
				"scope": "https://api.ebay.com/oauth/api_scope/commerce.identity.readonly",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := p.AuthorizationURL("state-123", tt.challenge, tt.method, tt.scopes)

			u, err := url.Parse(raw)
			require.NoError(t, err)
			assert.Equal(t, "auth.ebay.fr", u.Host)
			assert.Equal(t, "/oauth2/authorize", u.Path)

			q := u.Query()
			for k, v := range tt.want {
				assert.Equal(t, v, q.Get(k), "query parameter %s", k)
			}
			for _, k := range tt.absent {
				assert.False(t, q.Has(k), "query parameter %s should be absent", k)
			}
		})
	}
}

func TestProvider_AuthorizationURLWithOptions(t *testing.T) {
	p, err := NewProvider(&Config{ClientID: "id", ClientSecret: "secret", Sandbox: true})
	require.NoError(t, err)

	raw := p.AuthorizationURLWithOptions("s", AuthOptions{Prompt: "login", Locale: "fr-FR"})
	u, err := url.Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "auth.sandbox.ebay.com", u.Host)
	assert.Equal(t, "login", u.Query().Get("prompt"))
	assert.Equal(t, "fr-FR", u.Query().Get("locale"))
}

func TestProvider_ExchangeToken(t *testing.T) {
	f := newFakeEbay(t)
	f.handle(tokenPath, jsonHandler(http.StatusOK, tokenResponseJSON))
	p := newTestProvider(t, f, nil)

	token, err := p.ExchangeToken(context.Background(), "auth-code", "verifier-xyz")
	require.NoError(t, err)

	assert.Equal(t, testAccessToken, token.AccessToken)
	assert.Equal(t, testRefreshToken, token.RefreshToken)
	assert.Equal(t, "Bearer", token.TokenType)
	assert.Equal(t, "User Access Token", token.IssuedTokenType())
	assert.Equal(t, fixedNow.Add(2*time.Hour), token.Expiry)
	assert.Equal(t, fixedNow.Add(47304000*time.Second), token.RefreshTokenExpiry())
	_, ok := token.ResourceOwnerID()
	assert.False(t, ok)

	req := f.lastRequest()
	assert.Equal(t, "api.ebay.com", req.Host)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "application/json", req.Header.Get("Accept"))
	assert.Equal(t, "application/x-www-form-urlencoded", req.Header.Get("Content-Type"))
	assert.Equal(t, providers.BasicAuthorization(testClientID, testClientSecret), req.Header.Get("Authorization"))

	form, err := url.ParseQuery(req.Body)
	require.NoError(t, err)
	assert.Equal(t, "authorization_code", form.Get("grant_type"))
	assert.Equal(t, "auth-code", form.Get("code"))
	assert.Equal(t, testRuName, form.Get("redirect_uri"))
	assert.Equal(t, "verifier-xyz", form.Get("code_verifier"))
	assert.False(t, form.Has("client_id"), "credentials travel in the Authorization header only")
	assert.False(t, form.Has("client_secret"))
}

func TestProvider_ExchangeToken_NoVerifier(t *testing.T) {
	f := newFakeEbay(t)
	f.handle(tokenPath, jsonHandler(http.StatusOK, tokenResponseJSON))
	p := newTestProvider(t, f, nil)

	_, err := p.ExchangeToken(context.Background(), "auth-code", "")
	require.NoError(t, err)

	form, err := url.ParseQuery(f.lastRequest().Body)
	require.NoError(t, err)
	assert.False(t, form.Has("code_verifier"))
}

func TestProvider_ExchangeToken_EmptyCode(t *testing.T) {
	f := newFakeEbay(t)
	p := newTestProvider(t, f, nil)

	_, err := p.ExchangeToken(context.Background(), "", "")
	require.Error(t, err)
	assert.Zero(t, f.count())
}

func TestProvider_ExchangeToken_RegionalTokenURL(t *testing.T) {
	tests := []struct {
		name     string
		sandbox  bool
		region   Region
		wantHost string
	}{
		{"production FR uses the US token host", false, RegionFR, "api.ebay.com"},
		{"sandbox FR uses the French token host", true, RegionFR, "api.sandbox.ebay.fr"},
		{"sandbox DE falls back to US", true, RegionDE, "api.sandbox.ebay.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeEbay(t)
			f.handle(tokenPath, jsonHandler(http.StatusOK, tokenResponseJSON))
			p := newTestProvider(t, f, func(c *Config) {
				c.Sandbox = tt.sandbox
				c.Region = tt.region
			})

			_, err := p.ExchangeToken(context.Background(), "code", "")
			require.NoError(t, err)
			assert.Equal(t, tt.wantHost, f.lastRequest().Host)
		})
	}
}

func TestProvider_ExchangeToken_ProductionFRTokenURL(t *testing.T) {
	p, err := NewProvider(&Config{ClientID: "id", ClientSecret: "secret", Region: RegionFR})
	require.NoError(t, err)

	assert.Equal(t, "https://api.ebay.com/identity/v1/oauth2/token", p.Endpoints().TokenURL)
}

func TestProvider_ExchangeToken_ProviderError(t *testing.T) {
	f := newFakeEbay(t)
	f.handle(tokenPath, jsonHandler(http.StatusBadRequest,
		`{"error":"invalid_grant","error_description":"the provided authorization grant code is invalid or was issued to another client"}`))
	p := newTestProvider(t, f, nil)

	token, err := p.ExchangeToken(context.Background(), "bad-code", "")
	require.Error(t, err)
	assert.Nil(t, token)
	assert.True(t, errors.Is(err, ErrProviderHTTP))

	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, http.StatusBadRequest, pe.StatusCode)
	assert.Equal(t, "Bad Request", pe.Reason)
	assert.Equal(t, "invalid_grant", pe.Code)
	assert.Contains(t, pe.Body, "invalid_grant")
}

func TestProvider_ExchangeToken_Redirect3xxIsError(t *testing.T) {
	f := newFakeEbay(t)
	f.handle(tokenPath, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotModified)
	})
	p := newTestProvider(t, f, nil)

	_, err := p.ExchangeToken(context.Background(), "code", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProviderHTTP))
}

func TestProvider_ExchangeToken_MalformedResponse(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantIs  error
	}{
		{
			name:    "missing access_token",
			handler: jsonHandler(http.StatusOK, `{"token_type":"User Access Token","expires_in":7200}`),
			wantIs:  ErrMalformedTokenResponse,
		},
		{
			name:    "empty body",
			handler: jsonHandler(http.StatusOK, ``),
			wantIs:  ErrMalformedTokenResponse,
		},
		{
			name:    "array body",
			handler: jsonHandler(http.StatusOK, `[1,2]`),
			wantIs:  ErrMalformedTokenResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeEbay(t)
			f.handle(tokenPath, tt.handler)
			p := newTestProvider(t, f, nil)

			_, err := p.ExchangeToken(context.Background(), "code", "")
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantIs), "error = %v", err)
		})
	}
}

func TestProvider_ExchangeToken_MalformedResponseKeepsBody(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantBody   string
		wantValues map[string]any
	}{
		{
			name: "html page",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "text/html")
				_, _ = io.WriteString(w, "<html>maintenance</html>")
			},
			wantBody:   "<html>maintenance</html>",
			wantValues: map[string]any{},
		},
		{
			name:       "object without access_token",
			handler:    jsonHandler(http.StatusOK, `{"token_type":"User Access Token"}`),
			wantBody:   `{"token_type":"User Access Token"}`,
			wantValues: map[string]any{"token_type": "User Access Token"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeEbay(t)
			f.handle(tokenPath, tt.handler)
			p := newTestProvider(t, f, nil)

			_, err := p.ExchangeToken(context.Background(), "code", "")
			require.Error(t, err)

			var malformed *MalformedTokenResponseError
			require.True(t, errors.As(err, &malformed), "error = %v", err)
			assert.Equal(t, tt.wantBody, malformed.Body)
			assert.Equal(t, tt.wantValues, malformed.Values)
		})
	}
}

func TestProvider_ExchangeToken_InvalidJSON(t *testing.T) {
	f := newFakeEbay(t)
	f.handle(tokenPath, jsonHandler(http.StatusOK, `{"access_token":`))
	p := newTestProvider(t, f, nil)

	_, err := p.ExchangeToken(context.Background(), "code", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse token response")
}

func TestProvider_ExchangeCode_ReturnsOAuth2Token(t *testing.T) {
	f := newFakeEbay(t)
	f.handle(tokenPath, jsonHandler(http.StatusOK, tokenResponseJSON))
	p := newTestProvider(t, f, nil)

	token, err := p.ExchangeCode(context.Background(), "code", "")
	require.NoError(t, err)
	assert.Equal(t, testAccessToken, token.AccessToken)
	assert.Equal(t, testRefreshToken, token.RefreshToken)
	assert.Nil(t, token.Extra("resource_owner_id"))
}

func TestProvider_Refresh(t *testing.T) {
	f := newFakeEbay(t)
	f.handle(tokenPath, jsonHandler(http.StatusOK,
		`{"access_token":"v^1.1#i^1#fresh","expires_in":7200,"token_type":"User Access Token"}`))
	p := newTestProvider(t, f, func(c *Config) {
		c.Scopes = []string{DefaultScope, "https://api.ebay.com/oauth/api_scope/sell.account"}
	})

	current, err := newToken(map[string]any{
		"access_token":             testAccessToken,
		"refresh_token":            testRefreshToken,
		"expires_in":               60,
		"refresh_token_expires_in": 47304000,
		"token_type":               "User Access Token",
	}, fixedClock)
	require.NoError(t, err)
	current.SetResourceOwnerID("test_seller_1")

	refreshed, err := p.Refresh(context.Background(), current)
	require.NoError(t, err)

	assert.Equal(t, "v^1.1#i^1#fresh", refreshed.AccessToken)
	assert.Equal(t, testRefreshToken, refreshed.RefreshToken, "unrotated refresh token is kept")
	assert.Equal(t, fixedNow.Add(2*time.Hour), refreshed.Expiry)
	assert.True(t, current.RefreshTokenExpiry().Equal(refreshed.RefreshTokenExpiry()))

	id, ok := refreshed.ResourceOwnerID()
	require.True(t, ok)
	assert.Equal(t, "test_seller_1", id)

	assert.Equal(t, testAccessToken, current.AccessToken, "current token is not modified")

	form, err := url.ParseQuery(f.lastRequest().Body)
	require.NoError(t, err)
	assert.Equal(t, "refresh_token", form.Get("grant_type"))
	assert.Equal(t, testRefreshToken, form.Get("refresh_token"))
	assert.Equal(t, DefaultScope+" https://api.ebay.com/oauth/api_scope/sell.account", form.Get("scope"))
	assert.Equal(t, providers.BasicAuthorization(testClientID, testClientSecret), f.lastRequest().Header.Get("Authorization"))
}

func TestProvider_Refresh_ResponseFieldsWin(t *testing.T) {
	f := newFakeEbay(t)
	f.handle(tokenPath, jsonHandler(http.StatusOK,
		`{"access_token":"fresh","refresh_token":"rotated","resource_owner_id":"other"}`))
	p := newTestProvider(t, f, nil)

	current, err := NewToken(map[string]any{"access_token": "old", "refresh_token": "ref"})
	require.NoError(t, err)
	current.SetResourceOwnerID("seller")

	refreshed, err := p.Refresh(context.Background(), current)
	require.NoError(t, err)

	assert.Equal(t, "rotated", refreshed.RefreshToken)
	id, _ := refreshed.ResourceOwnerID()
	assert.Equal(t, "other", id)
}

func TestProvider_Refresh_NoRefreshToken(t *testing.T) {
	f := newFakeEbay(t)
	p := newTestProvider(t, f, nil)

	current, err := NewToken(map[string]any{"access_token": "tok"})
	require.NoError(t, err)

	_, err = p.Refresh(context.Background(), current)
	assert.ErrorIs(t, err, ErrNoRefreshToken)

	_, err = p.Refresh(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoRefreshToken)

	_, err = p.RefreshToken(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoRefreshToken)
	assert.Zero(t, f.count())
}

func TestProvider_Refresh_ProviderError(t *testing.T) {
	f := newFakeEbay(t)
	f.handle(tokenPath, jsonHandler(http.StatusBadRequest,
		`{"error":"invalid_grant","error_description":"the provided authorization refresh token is invalid or was issued to another client"}`))
	p := newTestProvider(t, f, nil)

	_, err := p.RefreshToken(context.Background(), "expired")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProviderHTTP))
	assert.Contains(t, err.Error(), "failed to refresh token")
}

func TestProvider_RefreshToken(t *testing.T) {
	f := newFakeEbay(t)
	f.handle(tokenPath, jsonHandler(http.StatusOK, `{"access_token":"fresh","expires_in":7200}`))
	p := newTestProvider(t, f, nil)

	token, err := p.RefreshToken(context.Background(), testRefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "fresh", token.AccessToken)
	assert.Equal(t, testRefreshToken, token.RefreshToken)
}

func TestProvider_ResourceOwner(t *testing.T) {
	f := newFakeEbay(t)
	f.handle(userInfoPath, xmlHandler(http.StatusOK, getUserResponseXML))
	p := newTestProvider(t, f, func(c *Config) { c.Region = RegionDE })

	token, err := NewToken(map[string]any{"access_token": testAccessToken})
	require.NoError(t, err)

	user, err := p.ResourceOwner(context.Background(), token)
	require.NoError(t, err)

	id, ok := user.ID()
	require.True(t, ok)
	assert.Equal(t, "test_seller_1", id)

	tokenOwner, ok := token.ResourceOwnerID()
	require.True(t, ok)
	assert.Equal(t, "test_seller_1", tokenOwner)

	req := f.lastRequest()
	assert.Equal(t, "api.ebay.com", req.Host)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, testAccessToken, req.Header.Get(HeaderIAFToken))
	assert.Equal(t, "1061", req.Header.Get(HeaderCompatibilityLevel))
	assert.Equal(t, "77", req.Header.Get(HeaderSiteID))
	assert.Equal(t, "GetUser", req.Header.Get(HeaderCallName))
	assert.Equal(t, "text/xml", req.Header.Get("Content-Type"))
	assert.Empty(t, req.Header.Get("Authorization"), "legacy calls carry no bearer header")
	assert.Contains(t, req.Body, `<GetUserRequest xmlns="urn:ebay:apis:eBLBaseComponents">`)
	assert.Contains(t, req.Body, "<DetailLevel>ReturnAll</DetailLevel>")
}

func TestProvider_ResourceOwner_MissingUserID(t *testing.T) {
	f := newFakeEbay(t)
	f.handle(userInfoPath, xmlHandler(http.StatusOK, `<GetUserResponse><Ack>Success</Ack><User/></GetUserResponse>`))
	p := newTestProvider(t, f, nil)

	token, err := NewToken(map[string]any{"access_token": testAccessToken})
	require.NoError(t, err)

	user, err := p.ResourceOwner(context.Background(), token)
	require.NoError(t, err)

	_, ok := user.ID()
	assert.False(t, ok)
	_, ok = token.ResourceOwnerID()
	assert.False(t, ok, "token stays without owner when the response has none")
}

func TestProvider_ResourceOwner_TradingFailure(t *testing.T) {
	f := newFakeEbay(t)
	f.handle(userInfoPath, xmlHandler(http.StatusOK, `<?xml version="1.0" encoding="UTF-8"?>
<GetUserResponse xmlns="urn:ebay:apis:eBLBaseComponents">
  <Ack>Failure</Ack>
  <Errors>
    <ShortMessage>Expired IAF token.</ShortMessage>
    <LongMessage>IAF token supplied is expired.</LongMessage>
    <ErrorCode>21917053</ErrorCode>
  </Errors>
</GetUserResponse>`))
	p := newTestProvider(t, f, nil)

	token, err := NewToken(map[string]any{"access_token": testAccessToken})
	require.NoError(t, err)

	_, err = p.ResourceOwner(context.Background(), token)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProviderHTTP))
	assert.Contains(t, err.Error(), "IAF token supplied is expired.")

	_, ok := token.ResourceOwnerID()
	assert.False(t, ok)
}

func TestProvider_ResourceOwner_HTTPError(t *testing.T) {
	f := newFakeEbay(t)
	f.handle(userInfoPath, xmlHandler(http.StatusInternalServerError, `<error/>`))
	p := newTestProvider(t, f, nil)

	token, err := NewToken(map[string]any{"access_token": testAccessToken})
	require.NoError(t, err)

	_, err = p.ResourceOwner(context.Background(), token)
	require.Error(t, err)

	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, http.StatusInternalServerError, pe.StatusCode)
}

func TestProvider_ResourceOwner_NoToken(t *testing.T) {
	f := newFakeEbay(t)
	p := newTestProvider(t, f, nil)

	_, err := p.ResourceOwner(context.Background(), nil)
	require.Error(t, err)
	assert.Zero(t, f.count())
}

func TestProvider_ResourceOwner_ModernEndpoint(t *testing.T) {
	f := newFakeEbay(t)
	f.handle("/commerce/identity/v1/user/", jsonHandler(http.StatusOK, `{"User":{"UserID":"rest_user"}}`))
	p := newTestProvider(t, f, nil)
	p.endpoints.UserInfoURL = "https://apiz.ebay.com/commerce/identity/v1/user/"

	token, err := NewToken(map[string]any{"access_token": testAccessToken})
	require.NoError(t, err)

	_, err = p.ResourceOwner(context.Background(), token)
	require.NoError(t, err)

	req := f.lastRequest()
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "Bearer "+testAccessToken, req.Header.Get("Authorization"))
	assert.Empty(t, req.Header.Get(HeaderIAFToken))
	assert.Empty(t, req.Header.Get(HeaderCallName))

	id, _ := token.ResourceOwnerID()
	assert.Equal(t, "rest_user", id)
}

// Family selection is per call, so concurrent calls with different tokens
// never see each other's headers.
func TestProvider_ResourceOwner_Concurrent(t *testing.T) {
	f := newFakeEbay(t)
	f.handle(userInfoPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/xml")
		_, _ = io.WriteString(w, "<GetUserResponse><Ack>Success</Ack><User><UserID>"+
			r.Header.Get(HeaderIAFToken)+"</UserID></User></GetUserResponse>")
	})
	p := newTestProvider(t, f, nil)

	const workers = 16
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			access := "token-" + string(rune('a'+i))
			token, err := NewToken(map[string]any{"access_token": access})
			if err != nil {
				errs <- err
				return
			}
			if _, err := p.ResourceOwner(context.Background(), token); err != nil {
				errs <- err
				return
			}
			if id, _ := token.ResourceOwnerID(); id != access {
				errs <- errors.New("resource owner " + id + " != " + access)
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

func TestProvider_ValidateToken(t *testing.T) {
	f := newFakeEbay(t)
	f.handle(userInfoPath, xmlHandler(http.StatusOK, getUserResponseXML))
	p := newTestProvider(t, f, nil)

	info, err := p.ValidateToken(context.Background(), testAccessToken)
	require.NoError(t, err)
	assert.Equal(t, "test_seller_1", info.ID)
	assert.Equal(t, "seller@example.com", info.Email)
	assert.True(t, info.EmailVerified)
}

func TestProvider_RevokeToken(t *testing.T) {
	f := newFakeEbay(t)
	p := newTestProvider(t, f, nil)

	assert.NoError(t, p.RevokeToken(context.Background(), testAccessToken))
	assert.Zero(t, f.count())
}

func TestProvider_HealthCheck(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{"ok", http.StatusOK, false},
		{"bad request is healthy", http.StatusBadRequest, false},
		{"server error", http.StatusServiceUnavailable, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeEbay(t)
			f.handle("/oauth2/authorize", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			})
			p := newTestProvider(t, f, nil)

			err := p.HealthCheck(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, "auth.ebay.com", f.lastRequest().Host)
		})
	}
}

func TestProvider_HealthCheck_Unreachable(t *testing.T) {
	f := newFakeEbay(t)
	p := newTestProvider(t, f, nil)
	f.server.Close()

	err := p.HealthCheck(context.Background())
	assert.Error(t, err)
}

func TestProvider_RequestTimeout(t *testing.T) {
	f := newFakeEbay(t)
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	f.handle(tokenPath, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	p := newTestProvider(t, f, func(c *Config) { c.RequestTimeout = 50 * time.Millisecond })

	_, err := p.ExchangeToken(context.Background(), "code", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestProvider_RateLimit(t *testing.T) {
	f := newFakeEbay(t)
	f.handle(tokenPath, jsonHandler(http.StatusOK, tokenResponseJSON))
	p := newTestProvider(t, f, func(c *Config) {
		c.RateLimit = rate.Every(time.Hour)
		c.Burst = 1
	})
	require.NotNil(t, p.limiter)

	_, err := p.ExchangeToken(context.Background(), "code", "")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = p.ExchangeToken(ctx, "code", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limiter")
	assert.Equal(t, 1, f.count())
}

func TestProvider_Instrumentation(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	recorder := tracetest.NewSpanRecorder()
	inst, err := instrumentation.New(instrumentation.Config{
		Enabled:        true,
		MeterProvider:  sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)),
		TracerProvider: sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)),
	})
	require.NoError(t, err)

	f := newFakeEbay(t)
	f.handle(tokenPath, jsonHandler(http.StatusOK, tokenResponseJSON))
	f.handle(userInfoPath, xmlHandler(http.StatusOK, getUserResponseXML))
	p := newTestProvider(t, f, func(c *Config) {
		c.Instrumentation = inst
		c.Region = RegionDE
	})

	token, err := p.ExchangeToken(context.Background(), "code", "verifier")
	require.NoError(t, err)
	_, err = p.ResourceOwner(context.Background(), token)
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	sums := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					sums[m.Name] += dp.Value
				}
			}
		}
	}
	assert.Equal(t, int64(2), sums["provider.api.calls.total"])
	assert.Equal(t, int64(1), sums["oauth.code.exchanged"])
	assert.Equal(t, int64(1), sums["oauth.resource_owner.resolved"])
	assert.Equal(t, int64(1), sums["oauth.endpoint.fallback.total"])

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "ebay.exchange_code", spans[0].Name())
	assert.Equal(t, "ebay.resource_owner", spans[1].Name())

	exchangeAttrs := map[attribute.Key]attribute.Value{}
	for _, kv := range spans[0].Attributes() {
		exchangeAttrs[kv.Key] = kv.Value
	}
	assert.Equal(t, testClientID, exchangeAttrs[instrumentation.AttrClientID].AsString())
	assert.Equal(t, DefaultScope, exchangeAttrs[instrumentation.AttrScope].AsString())
	assert.True(t, exchangeAttrs[instrumentation.AttrPKCE].AsBool())

	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range spans[1].Attributes() {
		attrs[kv.Key] = kv.Value
	}
	assert.Equal(t, "legacy", attrs[instrumentation.AttrEbayAPIFamily].AsString())
	assert.Equal(t, int64(77), attrs[instrumentation.AttrEbaySiteID].AsInt64())
	assert.Equal(t, "EBAY_DE", attrs[instrumentation.AttrEbayRegion].AsString())
	assert.True(t, attrs[instrumentation.AttrEbayFallback].AsBool())
	assert.Equal(t, "test_seller_1", attrs[instrumentation.AttrUserID].AsString())
}
