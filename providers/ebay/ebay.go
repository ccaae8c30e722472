package ebay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/giantswarm/oauth2-ebay/instrumentation"
	"github.com/giantswarm/oauth2-ebay/internal/payload"
	"github.com/giantswarm/oauth2-ebay/internal/util"
	"github.com/giantswarm/oauth2-ebay/providers"
)

const (
	// ProviderName identifies eBay in logs, metrics and traces.
	ProviderName = "ebay"

	// DefaultScope is the public API scope every eBay application may request.
	DefaultScope = "https://api.ebay.com/oauth/api_scope"

	// getUserRequestBody asks the Trading API for the token owner's account.
	getUserRequestBody = `<?xml version="1.0" encoding="utf-8"?>
<GetUserRequest xmlns="urn:ebay:apis:eBLBaseComponents">
  <DetailLevel>ReturnAll</DetailLevel>
</GetUserRequest>`

	getUserCallName = "GetUser"

	// maxResponseSize caps how much of a response body is read.
	maxResponseSize = 1 << 20

	// tokenLogLength is how much of a token may appear in logs.
	tokenLogLength = 8

	grantAuthorizationCode = "authorization_code"
	grantRefreshToken      = "refresh_token"
)

// ErrNoRefreshToken is returned by Refresh when the token carries no refresh token.
var ErrNoRefreshToken = errors.New("token has no refresh token")

// Compile-time interface check.
var _ providers.Provider = (*Provider)(nil)

// Config holds eBay OAuth configuration.
type Config struct {
	// ClientID is the eBay application's App ID
	ClientID string

	// ClientSecret is the eBay application's Cert ID
	ClientSecret string

	// RedirectURL is the RuName registered for the application. eBay expects
	// the RuName here, not the URL it points at.
	RedirectURL string

	// Scopes are the scopes requested by default (default: DefaultScope)
	Scopes []string

	// Sandbox selects eBay's sandbox environment instead of production
	Sandbox bool

	// Region is the marketplace whose endpoints and site id are used.
	// Empty means DefaultRegion. Regions without dedicated endpoints use the
	// default region's endpoints but keep their own site id.
	Region Region

	// HTTPClient is an optional custom HTTP client
	HTTPClient *http.Client

	// RequestTimeout is the timeout for provider API calls (default: 30s)
	RequestTimeout time.Duration

	// Logger receives debug and error logs (default: slog.Default())
	Logger *slog.Logger

	// Instrumentation records metrics and traces. Nil disables both.
	Instrumentation *instrumentation.Instrumentation

	// RateLimit caps outbound requests per second. Zero disables limiting.
	RateLimit rate.Limit

	// Burst is the limiter bucket size (default: 1 when RateLimit is set)
	Burst int

	// now overrides the clock used for token expiry
	// INTERNAL USE ONLY: for tests
	now func() time.Time
}

// Provider implements providers.Provider for eBay. It is safe for concurrent
// use.
type Provider struct {
	oauth2Config   *oauth2.Config
	endpoints      Endpoints
	mode           Mode
	region         Region
	siteID         int
	fallback       bool
	httpClient     *http.Client
	requestTimeout time.Duration
	limiter        *rate.Limiter
	logger         *slog.Logger
	tracer         trace.Tracer
	metrics        *instrumentation.Metrics
	now            func() time.Time
}

// NewProvider creates a new eBay OAuth provider.
func NewProvider(cfg *Config) (*Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("client ID is required")
	}
	if cfg.ClientSecret == "" {
		return nil, fmt.Errorf("client secret is required")
	}

	scopes, err := resolveScopes(cfg.Scopes)
	if err != nil {
		return nil, err
	}

	inst := cfg.Instrumentation
	if inst == nil {
		inst, err = instrumentation.New(instrumentation.Config{Enabled: false})
		if err != nil {
			return nil, fmt.Errorf("failed to create instrumentation: %w", err)
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	region := cfg.Region
	if region == "" {
		region = DefaultRegion
	}
	mode := ModeFor(cfg.Sandbox)
	endpoints := Resolve(mode, region)
	fallback := !HasDedicatedEndpoints(mode, region)
	if fallback {
		logger.Debug("Region has no dedicated endpoints, using default region endpoints",
			"region", region,
			"default_region", DefaultRegion,
			"mode", mode)
		inst.Metrics().RecordEndpointFallback(context.Background(), mode.String(), region.String())
	}

	requestTimeout := providers.ResolveTimeout(cfg.RequestTimeout)

	now := cfg.now
	if now == nil {
		now = time.Now
	}

	p := &Provider{
		oauth2Config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint:     endpoints.OAuth2(),
		},
		endpoints:      endpoints,
		mode:           mode,
		region:         region,
		siteID:         siteCodeOrDefault(region),
		fallback:       fallback,
		httpClient:     providers.ResolveHTTPClient(cfg.HTTPClient, requestTimeout),
		requestTimeout: requestTimeout,
		logger:         logger,
		tracer:         inst.Tracer("provider"),
		metrics:        inst.Metrics(),
		now:            now,
	}

	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(cfg.RateLimit, burst)
	}

	return p, nil
}

// resolveScopes returns validated scopes, using DefaultScope if none provided.
func resolveScopes(configScopes []string) ([]string, error) {
	scopes := configScopes
	if len(scopes) == 0 {
		scopes = []string{DefaultScope}
	}

	if err := providers.ValidateScopes(scopes); err != nil {
		return nil, fmt.Errorf("invalid scopes: %w", err)
	}

	return providers.CopyScopes(scopes), nil
}

// Name returns the provider name
func (p *Provider) Name() string {
	return ProviderName
}

// DefaultScopes returns the provider's configured default scopes.
// Returns a deep copy to prevent external modification.
func (p *Provider) DefaultScopes() []string {
	return providers.CopyScopes(p.oauth2Config.Scopes)
}

// Region returns the configured marketplace.
func (p *Provider) Region() Region {
	return p.region
}

// Mode returns the configured environment.
func (p *Provider) Mode() Mode {
	return p.mode
}

// Endpoints returns the URLs the provider talks to.
func (p *Provider) Endpoints() Endpoints {
	return p.endpoints
}

// SiteID returns the Trading API site id sent with legacy calls.
func (p *Provider) SiteID() int {
	return p.siteID
}

// AuthOptions are optional parameters of the authorization URL.
type AuthOptions struct {
	// CodeChallenge and CodeChallengeMethod enable PKCE when both are set.
	CodeChallenge       string
	CodeChallengeMethod string

	// Scopes override the provider's default scopes when non-empty.
	Scopes []string

	// Prompt is passed through as eBay's prompt parameter, e.g. "login"
	// to force the sign-in page even with an active eBay session.
	Prompt string

	// Locale selects the language of eBay's consent page, e.g. "fr-FR".
	Locale string
}

// AuthorizationURL generates the eBay OAuth authorization URL with PKCE support.
// If scopes is empty, the provider's default configured scopes are used.
func (p *Provider) AuthorizationURL(state string, codeChallenge string, codeChallengeMethod string, scopes []string) string {
	return p.AuthorizationURLWithOptions(state, AuthOptions{
		CodeChallenge:       codeChallenge,
		CodeChallengeMethod: codeChallengeMethod,
		Scopes:              scopes,
	})
}

// AuthorizationURLWithOptions generates the authorization URL with eBay's
// optional prompt and locale parameters.
func (p *Provider) AuthorizationURLWithOptions(state string, opts AuthOptions) string {
	var authOpts []oauth2.AuthCodeOption

	if opts.CodeChallenge != "" && opts.CodeChallengeMethod != "" {
		authOpts = append(authOpts,
			oauth2.SetAuthURLParam("code_challenge", opts.CodeChallenge),
			oauth2.SetAuthURLParam("code_challenge_method", opts.CodeChallengeMethod),
		)
	}
	if opts.Prompt != "" {
		authOpts = append(authOpts, oauth2.SetAuthURLParam("prompt", opts.Prompt))
	}
	if opts.Locale != "" {
		authOpts = append(authOpts, oauth2.SetAuthURLParam("locale", opts.Locale))
	}

	config := *p.oauth2Config
	if len(opts.Scopes) > 0 {
		config.Scopes = providers.CopyScopes(opts.Scopes)
	} else {
		config.Scopes = providers.CopyScopes(p.oauth2Config.Scopes)
	}
	return config.AuthCodeURL(state, authOpts...)
}

// ExchangeToken exchanges an authorization code for an eBay token.
// verifier is the PKCE code verifier; pass an empty string when PKCE is not used.
func (p *Provider) ExchangeToken(ctx context.Context, code string, verifier string) (*Token, error) {
	ctx, span := p.startSpan(ctx, "exchange_code")
	defer span.End()
	instrumentation.AddGrantAttributes(span, grantAuthorizationCode, verifier != "")
	p.addClientAttributes(span)

	token, err := p.exchangeToken(ctx, code, verifier)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	p.metrics.RecordCodeExchange(ctx, p.region.String(), verifier != "")
	instrumentation.SetSpanAttributes(span,
		attribute.String(instrumentation.AttrTokenType, token.Type()),
		attribute.Bool(instrumentation.AttrRefreshPresent, token.RefreshToken != ""),
	)
	instrumentation.SetSpanSuccess(span)
	return token, nil
}

func (p *Provider) exchangeToken(ctx context.Context, code string, verifier string) (*Token, error) {
	if code == "" {
		return nil, fmt.Errorf("authorization code is required")
	}

	form := url.Values{
		"grant_type": {grantAuthorizationCode},
		"code":       {code},
	}
	if p.oauth2Config.RedirectURL != "" {
		form.Set("redirect_uri", p.oauth2Config.RedirectURL)
	}
	if verifier != "" {
		form.Set("code_verifier", verifier)
	}

	values, body, err := p.requestToken(ctx, "exchange_code", form)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	token, err := newToken(values, p.now)
	if err != nil {
		var malformed *MalformedTokenResponseError
		if errors.As(err, &malformed) {
			malformed.Body = string(body)
		}
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}
	return token, nil
}

// ExchangeCode exchanges an authorization code for tokens with PKCE verification.
// Returns standard oauth2.Token.
func (p *Provider) ExchangeCode(ctx context.Context, code string, verifier string) (*oauth2.Token, error) {
	token, err := p.ExchangeToken(ctx, code, verifier)
	if err != nil {
		return nil, err
	}
	return token.OAuth2(), nil
}

// Refresh obtains a new token with current's refresh token. The result starts
// from current's fields and takes every field the response carries, so an
// unrotated refresh token and the resource owner id survive.
func (p *Provider) Refresh(ctx context.Context, current *Token) (*Token, error) {
	ctx, span := p.startSpan(ctx, "refresh_token")
	defer span.End()
	instrumentation.AddGrantAttributes(span, grantRefreshToken, false)
	p.addClientAttributes(span)

	token, err := p.refresh(ctx, current)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	rotated := token.RefreshToken != current.RefreshToken
	p.metrics.RecordTokenRefresh(ctx, p.region.String(), rotated)
	instrumentation.SetSpanAttributes(span, attribute.Bool(instrumentation.AttrTokenRotated, rotated))
	instrumentation.SetSpanSuccess(span)
	return token, nil
}

func (p *Provider) refresh(ctx context.Context, current *Token) (*Token, error) {
	if current == nil || current.Token == nil || current.RefreshToken == "" {
		return nil, ErrNoRefreshToken
	}

	form := url.Values{
		"grant_type":    {grantRefreshToken},
		"refresh_token": {current.RefreshToken},
		"scope":         {strings.Join(p.oauth2Config.Scopes, " ")},
	}

	values, _, err := p.requestToken(ctx, "refresh_token", form)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}

	token, err := newToken(mergeValues(current.Values(), values), p.now)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}
	return token, nil
}

// RefreshToken refreshes an expired token using a refresh token.
// Returns standard oauth2.Token.
func (p *Provider) RefreshToken(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	token, err := p.Refresh(ctx, &Token{Token: &oauth2.Token{RefreshToken: refreshToken}})
	if err != nil {
		return nil, err
	}
	return token.OAuth2(), nil
}

// requestToken posts form to the token endpoint with the client's Basic
// credentials and returns the decoded response fields and the raw body.
//
// The request is built here rather than through oauth2.Config.Exchange: eBay
// needs Accept: application/json, malformed responses must keep their raw
// fields, and eBay's error and error_description fields map onto
// ProviderError.
func (p *Provider) requestToken(ctx context.Context, operation string, form url.Values) (map[string]any, []byte, error) {
	ctx, cancel := providers.EnsureContextTimeout(ctx, p.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoints.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", providers.BasicAuthorization(p.oauth2Config.ClientID, p.oauth2Config.ClientSecret))

	resp, body, err := p.do(ctx, operation, req)
	if err != nil {
		return nil, nil, err
	}
	if !isSuccessStatus(resp.StatusCode) {
		return nil, nil, newProviderError(resp, body)
	}

	v, err := payload.Normalize(body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	values, ok := v.Interface().(map[string]any)
	if !ok {
		return nil, nil, &MalformedTokenResponseError{Values: map[string]any{}, Body: string(body)}
	}
	return values, body, nil
}

// ResourceOwner fetches the account that authorized token and records its
// user id on token. The request's authentication headers follow the API
// family of the user-info endpoint.
func (p *Provider) ResourceOwner(ctx context.Context, token *Token) (*User, error) {
	ctx, span := p.startSpan(ctx, "resource_owner")
	defer span.End()

	user, err := p.resourceOwner(ctx, span, token)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	instrumentation.SetSpanSuccess(span)
	return user, nil
}

func (p *Provider) resourceOwner(ctx context.Context, span trace.Span, token *Token) (*User, error) {
	if token == nil || token.Token == nil || token.AccessToken == "" {
		return nil, fmt.Errorf("access token is required")
	}

	ctx, cancel := providers.EnsureContextTimeout(ctx, p.requestTimeout)
	defer cancel()

	target := p.endpoints.UserInfoURL
	family := FamilyForURL(target)
	siteID := -1
	if family == LegacyAPI {
		siteID = p.siteID
	}
	instrumentation.AddAPIFamilyAttributes(span, family.String(), siteID)

	p.logger.Debug("Fetching resource owner",
		"api_family", family,
		"site_id", p.siteID,
		"token_prefix", util.SafeTruncate(token.AccessToken, tokenLogLength))

	req, err := newUserRequest(ctx, family, target)
	if err != nil {
		return nil, err
	}
	for k, vs := range AuthHeaders(family, token.AccessToken, p.siteID) {
		req.Header[k] = vs
	}

	resp, body, err := p.do(ctx, "resource_owner", req)
	if err != nil {
		return nil, fmt.Errorf("failed to get user info: %w", err)
	}
	if !isSuccessStatus(resp.StatusCode) {
		return nil, fmt.Errorf("failed to get user info: %w", newProviderError(resp, body))
	}

	v, err := payload.Normalize(body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse user info response: %w", err)
	}

	user := NewUser(v)
	if family == LegacyAPI {
		if err := tradingFailure(user.Raw(), resp.StatusCode, body); err != nil {
			return nil, fmt.Errorf("failed to get user info: %w", err)
		}
	}

	id, found := user.ID()
	if found && id != "" {
		token.SetResourceOwnerID(id)
		instrumentation.SetSpanAttributes(span, attribute.String(instrumentation.AttrUserID, id))
	}
	p.metrics.RecordResourceOwnerResolved(ctx, family.String(), found && id != "")

	return user, nil
}

// newUserRequest builds the user details request for family. Trading API
// calls carry the GetUser body and call name; REST calls are plain GETs.
func newUserRequest(ctx context.Context, family APIFamily, target string) (*http.Request, error) {
	if family == ModernAPI {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create user info request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(getUserRequestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create user info request: %w", err)
	}
	req.Header.Set(HeaderCallName, getUserCallName)
	req.Header.Set("Content-Type", "text/xml")
	return req, nil
}

// ValidateToken validates an access token by fetching its owner from eBay.
func (p *Provider) ValidateToken(ctx context.Context, accessToken string) (*providers.UserInfo, error) {
	user, err := p.ResourceOwner(ctx, &Token{Token: &oauth2.Token{AccessToken: accessToken}})
	if err != nil {
		return nil, err
	}
	return user.UserInfo(), nil
}

// RevokeToken is a no-op: eBay offers no endpoint to revoke user tokens.
// Users revoke access from their eBay account settings.
func (p *Provider) RevokeToken(ctx context.Context, token string) error {
	p.logger.Debug("eBay does not support token revocation, skipping",
		"token_prefix", util.SafeTruncate(token, tokenLogLength))
	return nil
}

// HealthCheck verifies that eBay's authorization endpoint is reachable.
// Any status below 500 counts as healthy since the endpoint rejects bare requests.
func (p *Provider) HealthCheck(ctx context.Context) error {
	ctx, span := p.startSpan(ctx, "health_check")
	defer span.End()

	err := p.healthCheck(ctx)
	if err != nil {
		recordSpanError(span, err)
		return err
	}
	instrumentation.SetSpanSuccess(span)
	return nil
}

func (p *Provider) healthCheck(ctx context.Context) error {
	ctx, cancel := providers.EnsureContextTimeout(ctx, p.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoints.AuthURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, _, err := p.do(ctx, "health_check", req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("health check failed: authorization endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// do sends req after waiting for the rate limiter and returns the response
// with its body read and closed. Every call is recorded in metrics and on the
// span carried by ctx.
func (p *Provider) do(ctx context.Context, operation string, req *http.Request) (*http.Response, []byte, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	span := trace.SpanFromContext(ctx)
	start := time.Now()

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.metrics.RecordProviderAPICall(ctx, ProviderName, operation, 0, durationMs(start), err)
		return nil, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		err = fmt.Errorf("failed to read response body: %w", err)
		p.metrics.RecordProviderAPICall(ctx, ProviderName, operation, resp.StatusCode, durationMs(start), err)
		return nil, nil, err
	}

	var statusErr error
	if !isSuccessStatus(resp.StatusCode) {
		statusErr = ErrProviderHTTP
	}
	p.metrics.RecordProviderAPICall(ctx, ProviderName, operation, resp.StatusCode, durationMs(start), statusErr)
	instrumentation.AddHTTPAttributes(span, req.Method, req.URL.Scheme+"://"+req.URL.Host+req.URL.Path, resp.StatusCode)

	return resp, body, nil
}

func durationMs(start time.Time) float64 {
	return float64(time.Since(start).Milliseconds())
}

// startSpan starts a span for a provider operation tagged with the
// marketplace selection.
func (p *Provider) startSpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	ctx, span := p.tracer.Start(ctx, "ebay."+operation)
	instrumentation.AddProviderAttributes(span, ProviderName, operation)
	instrumentation.AddEbayAttributes(span, p.region.String(), p.mode.String(), p.fallback)
	return ctx, span
}

// addClientAttributes tags a token grant span with the application and the
// scopes it requests.
func (p *Provider) addClientAttributes(span trace.Span) {
	instrumentation.SetSpanAttributes(span,
		attribute.String(instrumentation.AttrClientID, p.oauth2Config.ClientID),
		attribute.String(instrumentation.AttrScope, strings.Join(p.oauth2Config.Scopes, " ")),
	)
}

// recordSpanError marks span failed and attaches eBay's error code when err
// carries one.
func recordSpanError(span trace.Span, err error) {
	var pe *ProviderError
	if errors.As(err, &pe) && pe.Code != "" {
		instrumentation.SetSpanAttributes(span,
			attribute.String(instrumentation.AttrError, pe.Code),
			attribute.String(instrumentation.AttrErrorDescription, pe.Description),
		)
	}
	instrumentation.RecordError(span, err)
}
