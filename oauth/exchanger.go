package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-integrations/core"
)

const (
	defaultRequestTimeout     = 30 * time.Second
	maxTokenResponseBodyBytes = int64(1 << 20)
)

// ProviderConfig describes one OAuth provider's token endpoint. Most
// providers take client credentials over HTTP basic auth; the ones that
// insist on body parameters set ClientSecretInBody.
type ProviderConfig struct {
	ID                 string
	TokenURL           string
	ClientID           string
	ClientSecret       string
	ClientSecretInBody bool
	RequestTimeout     time.Duration
	AccountExtractor   AccountExtractor
}

func (c ProviderConfig) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("oauth: provider id is required")
	}
	if strings.TrimSpace(c.TokenURL) == "" {
		return fmt.Errorf("oauth: token url is required for provider %q", c.ID)
	}
	if strings.TrimSpace(c.ClientID) == "" {
		return fmt.Errorf("oauth: client id is required for provider %q", c.ID)
	}
	return nil
}

type Option func(*Exchanger)

func WithHTTPClient(client *http.Client) Option {
	return func(e *Exchanger) {
		if client != nil {
			e.httpClient = client
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Exchanger) {
		if now != nil {
			e.now = now
		}
	}
}

// Exchanger implements core.Exchanger against real provider token
// endpoints.
type Exchanger struct {
	mu         sync.RWMutex
	providers  map[string]ProviderConfig
	httpClient *http.Client
	now        func() time.Time
}

func NewExchanger(configs []ProviderConfig, opts ...Option) (*Exchanger, error) {
	exchanger := &Exchanger{
		providers:  map[string]ProviderConfig{},
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, cfg := range configs {
		if err := exchanger.RegisterProvider(cfg); err != nil {
			return nil, err
		}
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(exchanger)
	}
	return exchanger, nil
}

func (e *Exchanger) RegisterProvider(cfg ProviderConfig) error {
	if e == nil {
		return fmt.Errorf("oauth: exchanger is nil")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	cfg.ID = strings.ToLower(strings.TrimSpace(cfg.ID))
	e.mu.Lock()
	defer e.mu.Unlock()
	e.providers[cfg.ID] = cfg
	return nil
}

func (e *Exchanger) provider(id string) (ProviderConfig, error) {
	if e == nil {
		return ProviderConfig{}, fmt.Errorf("oauth: exchanger is nil")
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	cfg, ok := e.providers[strings.ToLower(strings.TrimSpace(id))]
	if !ok {
		return ProviderConfig{}, &core.ConfigurationError{
			Field:  "provider",
			Reason: fmt.Sprintf("no oauth provider configured for %q", id),
		}
	}
	return cfg, nil
}

// ExchangeCode trades an authorization code for tokens. The code verifier is
// passed through for PKCE flows and omitted otherwise.
func (e *Exchanger) ExchangeCode(ctx context.Context, provider, code, redirectURI, codeVerifier string) (core.TokenSet, core.AccountInfo, error) {
	cfg, err := e.provider(provider)
	if err != nil {
		return core.TokenSet{}, core.AccountInfo{}, err
	}
	if strings.TrimSpace(code) == "" {
		return core.TokenSet{}, core.AccountInfo{}, fmt.Errorf("oauth: authorization code is required")
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", strings.TrimSpace(code))
	if strings.TrimSpace(redirectURI) != "" {
		form.Set("redirect_uri", strings.TrimSpace(redirectURI))
	}
	if strings.TrimSpace(codeVerifier) != "" {
		form.Set("code_verifier", strings.TrimSpace(codeVerifier))
	}

	payload, err := e.fetchToken(ctx, cfg, form)
	if err != nil {
		return core.TokenSet{}, core.AccountInfo{}, err
	}

	tokens := e.tokenSetFromPayload(payload)
	account, err := extractAccount(cfg, payload)
	if err != nil {
		return core.TokenSet{}, core.AccountInfo{}, err
	}
	return tokens, account, nil
}

// ExchangeRefreshToken trades a refresh token for a new token set.
func (e *Exchanger) ExchangeRefreshToken(ctx context.Context, provider, refreshToken string) (core.TokenSet, error) {
	cfg, err := e.provider(provider)
	if err != nil {
		return core.TokenSet{}, err
	}
	if strings.TrimSpace(refreshToken) == "" {
		return core.TokenSet{}, fmt.Errorf("oauth: refresh token is required")
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", strings.TrimSpace(refreshToken))

	payload, err := e.fetchToken(ctx, cfg, form)
	if err != nil {
		return core.TokenSet{}, err
	}
	return e.tokenSetFromPayload(payload), nil
}

type tokenEndpointPayload struct {
	AccessToken      string
	TokenType        string
	RefreshToken     string
	Scope            string
	ExpiresIn        int64
	ErrorCode        string
	ErrorDescription string
	Extra            map[string]any
}

func (e *Exchanger) fetchToken(ctx context.Context, cfg ProviderConfig, form url.Values) (tokenEndpointPayload, error) {
	if e == nil || e.httpClient == nil {
		return tokenEndpointPayload{}, fmt.Errorf("oauth: http client is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	values := url.Values{}
	for key, items := range form {
		if strings.TrimSpace(key) == "" {
			continue
		}
		for _, item := range items {
			values.Add(key, strings.TrimSpace(item))
		}
	}
	values.Set("client_id", cfg.ClientID)
	if cfg.ClientSecretInBody && cfg.ClientSecret != "" {
		values.Set("client_secret", cfg.ClientSecret)
	}

	requestCtx := ctx
	cancel := func() {}
	if cfg.RequestTimeout > 0 {
		requestCtx, cancel = context.WithTimeout(ctx, cfg.RequestTimeout)
	}
	defer cancel()

	httpReq, err := http.NewRequestWithContext(
		requestCtx,
		http.MethodPost,
		cfg.TokenURL,
		strings.NewReader(values.Encode()),
	)
	if err != nil {
		return tokenEndpointPayload{}, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")
	if !cfg.ClientSecretInBody && cfg.ClientSecret != "" {
		httpReq.SetBasicAuth(cfg.ClientID, cfg.ClientSecret)
	}

	response, err := e.httpClient.Do(httpReq)
	if err != nil {
		return tokenEndpointPayload{}, &core.NetworkError{Provider: cfg.ID, Cause: err}
	}
	defer response.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(response.Body, maxTokenResponseBodyBytes+1))
	if readErr != nil {
		return tokenEndpointPayload{}, &core.NetworkError{Provider: cfg.ID, Cause: readErr}
	}
	if int64(len(body)) > maxTokenResponseBodyBytes {
		return tokenEndpointPayload{}, fmt.Errorf("oauth: token response exceeds %d bytes", maxTokenResponseBodyBytes)
	}

	payload, parseErr := parseTokenPayload(body, response.Header.Get("Content-Type"))
	if parseErr != nil {
		return tokenEndpointPayload{}, fmt.Errorf("oauth: decode token response: %w", parseErr)
	}
	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return tokenEndpointPayload{}, &core.OAuthError{
			Provider:    cfg.ID,
			Code:        payload.ErrorCode,
			Description: payload.ErrorDescription,
			HTTPStatus:  response.StatusCode,
		}
	}
	// Some providers return errors with a 200 status.
	if payload.ErrorCode != "" {
		return tokenEndpointPayload{}, &core.OAuthError{
			Provider:    cfg.ID,
			Code:        payload.ErrorCode,
			Description: payload.ErrorDescription,
			HTTPStatus:  response.StatusCode,
		}
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		return tokenEndpointPayload{}, fmt.Errorf("oauth: token response missing access token for provider %q", cfg.ID)
	}
	return payload, nil
}

// tokenSetFromPayload normalizes the endpoint payload, converting the
// relative expires_in into an absolute instant. Zero expires_in means the
// provider declared no expiry.
func (e *Exchanger) tokenSetFromPayload(payload tokenEndpointPayload) core.TokenSet {
	var expiresAt *time.Time
	if payload.ExpiresIn > 0 {
		at := e.now().Add(time.Duration(payload.ExpiresIn) * time.Second)
		expiresAt = &at
	}
	return core.TokenSet{
		AccessToken:  strings.TrimSpace(payload.AccessToken),
		RefreshToken: strings.TrimSpace(payload.RefreshToken),
		TokenType:    normalizeTokenType(payload.TokenType),
		Scope:        strings.TrimSpace(payload.Scope),
		ExpiresAt:    expiresAt,
		Metadata:     payload.Extra,
	}
}

func parseTokenPayload(body []byte, contentType string) (tokenEndpointPayload, error) {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if strings.Contains(contentType, "json") {
		return parseTokenPayloadJSON(body)
	}
	if strings.Contains(contentType, "x-www-form-urlencoded") || strings.Contains(contentType, "text/plain") {
		return parseTokenPayloadForm(body)
	}
	if payload, err := parseTokenPayloadJSON(body); err == nil {
		return payload, nil
	}
	return parseTokenPayloadForm(body)
}

var knownTokenFields = map[string]struct{}{
	"access_token":      {},
	"token_type":        {},
	"refresh_token":     {},
	"scope":             {},
	"expires_in":        {},
	"error":             {},
	"error_description": {},
}

func parseTokenPayloadJSON(body []byte) (tokenEndpointPayload, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return tokenEndpointPayload{}, fmt.Errorf("empty payload")
	}
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return tokenEndpointPayload{}, err
	}
	extra := map[string]any{}
	for key, value := range decoded {
		if _, known := knownTokenFields[key]; !known {
			extra[key] = value
		}
	}
	return tokenEndpointPayload{
		AccessToken:      readAnyString(decoded["access_token"]),
		TokenType:        readAnyString(decoded["token_type"]),
		RefreshToken:     readAnyString(decoded["refresh_token"]),
		Scope:            readAnyString(decoded["scope"]),
		ExpiresIn:        readAnyInt64(decoded["expires_in"]),
		ErrorCode:        readAnyString(decoded["error"]),
		ErrorDescription: readAnyString(decoded["error_description"]),
		Extra:            extra,
	}, nil
}

func parseTokenPayloadForm(body []byte) (tokenEndpointPayload, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return tokenEndpointPayload{}, fmt.Errorf("empty payload")
	}
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return tokenEndpointPayload{}, err
	}
	extra := map[string]any{}
	for key := range values {
		if _, known := knownTokenFields[key]; !known {
			extra[key] = values.Get(key)
		}
	}
	expiresIn, _ := strconv.ParseInt(strings.TrimSpace(values.Get("expires_in")), 10, 64)
	return tokenEndpointPayload{
		AccessToken:      strings.TrimSpace(values.Get("access_token")),
		TokenType:        strings.TrimSpace(values.Get("token_type")),
		RefreshToken:     strings.TrimSpace(values.Get("refresh_token")),
		Scope:            strings.TrimSpace(values.Get("scope")),
		ExpiresIn:        expiresIn,
		ErrorCode:        strings.TrimSpace(values.Get("error")),
		ErrorDescription: strings.TrimSpace(values.Get("error_description")),
		Extra:            extra,
	}, nil
}

func normalizeTokenType(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "bearer"
	}
	return normalized
}

func readAnyString(value any) string {
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case json.Number:
		return strings.TrimSpace(typed.String())
	case fmt.Stringer:
		return strings.TrimSpace(typed.String())
	default:
		if value == nil {
			return ""
		}
		return strings.TrimSpace(fmt.Sprint(value))
	}
}

func readAnyInt64(value any) int64 {
	switch typed := value.(type) {
	case int:
		return int64(typed)
	case int64:
		return typed
	case float64:
		return int64(typed)
	case json.Number:
		parsed, err := typed.Int64()
		if err == nil {
			return parsed
		}
		floatParsed, floatErr := typed.Float64()
		if floatErr == nil {
			return int64(floatParsed)
		}
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(typed), 10, 64)
		if err == nil {
			return parsed
		}
	}
	return 0
}

var _ core.Exchanger = (*Exchanger)(nil)
