// Package oauth2 acquires and caches OAuth2 access tokens for configured
// systems.
package oauth2

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sarathm09/vibranium/packages/logging"
	"golang.org/x/sync/singleflight"
)

type GrantType string

const (
	ClientCredentials GrantType = "client_credentials"
	Password          GrantType = "password"
	RefreshToken      GrantType = "refresh_token"
)

type Config struct {
	TokenURL     string    `json:"tokenUrl" yaml:"tokenUrl"`
	ClientID     string    `json:"clientId" yaml:"clientId"`
	ClientSecret string    `json:"clientSecret" yaml:"clientSecret"`
	Scopes       []string  `json:"scopes,omitempty" yaml:"scopes,omitempty"`
	Username     string    `json:"username,omitempty" yaml:"username,omitempty"`
	Password     string    `json:"password,omitempty" yaml:"password,omitempty"`
	GrantType    GrantType `json:"grantType,omitempty" yaml:"grantType,omitempty"`
}

// Validate checks the fields needed for the configured grant.
func (c *Config) Validate() error {
	if c.TokenURL == "" {
		return fmt.Errorf("oauth2: tokenUrl is required")
	}
	switch c.GrantType {
	case "", ClientCredentials:
	case Password:
		if c.Username == "" {
			return fmt.Errorf("oauth2: password grant requires a username")
		}
	default:
		return fmt.Errorf("oauth2: unsupported grant type %q", c.GrantType)
	}
	return nil
}

type Token struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int       `json:"expires_in"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Scope        string    `json:"scope,omitempty"`
	ExpiresAt    time.Time `json:"-"`
}

// IsExpired reports whether the token expires within the next 30 seconds.
func (t *Token) IsExpired() bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().Add(30 * time.Second).After(t.ExpiresAt)
}

// Header returns the Authorization header value.
func (t *Token) Header() string {
	kind := t.TokenType
	if kind == "" || strings.EqualFold(kind, "bearer") {
		kind = "Bearer"
	}
	return kind + " " + t.AccessToken
}

// Provider fetches tokens for one Config. Concurrent callers share a single
// in-flight token request.
type Provider struct {
	config     *Config
	httpClient *http.Client
	cache      *TokenCache
	group      singleflight.Group
}

type Option func(*Provider)

func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

func WithCache(c *TokenCache) Option {
	return func(p *Provider) {
		p.cache = c
	}
}

func NewProvider(config *Config, opts ...Option) *Provider {
	p := &Provider{
		config:     config,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		cache:      GlobalCache,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// GetToken returns a valid token, refreshing or fetching one when needed.
func (p *Provider) GetToken(ctx context.Context) (*Token, error) {
	key := p.cacheKey()
	cached, ok := p.cache.Valid(key)
	if ok {
		return cached, nil
	}

	v, err, _ := p.group.Do(key, func() (any, error) {
		if current, ok := p.cache.Valid(key); ok {
			return current, nil
		}
		if cached != nil && cached.RefreshToken != "" {
			token, err := p.refresh(ctx, cached.RefreshToken)
			if err == nil {
				p.cache.Set(key, token)
				return token, nil
			}
			logging.Debug("OAuth2", "refresh failed, requesting a new token: %v", err)
		}
		token, err := p.fetch(ctx)
		if err != nil {
			return nil, err
		}
		p.cache.Set(key, token)
		return token, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Token), nil
}

func (p *Provider) cacheKey() string {
	return fmt.Sprintf("%s:%s:%s:%s", p.config.TokenURL, p.config.ClientID, p.config.Username, strings.Join(p.config.Scopes, ","))
}

func (p *Provider) fetch(ctx context.Context) (*Token, error) {
	data := url.Values{}
	switch p.config.GrantType {
	case Password:
		data.Set("grant_type", string(Password))
		data.Set("username", p.config.Username)
		data.Set("password", p.config.Password)
	default:
		data.Set("grant_type", string(ClientCredentials))
	}
	if len(p.config.Scopes) > 0 {
		data.Set("scope", strings.Join(p.config.Scopes, " "))
	}
	return p.doTokenRequest(ctx, data)
}

func (p *Provider) refresh(ctx context.Context, refreshToken string) (*Token, error) {
	data := url.Values{}
	data.Set("grant_type", string(RefreshToken))
	data.Set("refresh_token", refreshToken)
	return p.doTokenRequest(ctx, data)
}

func (p *Provider) doTokenRequest(ctx context.Context, data url.Values) (*Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if p.config.ClientID != "" {
		req.SetBasicAuth(p.config.ClientID, p.config.ClientSecret)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
			return nil, fmt.Errorf("token request failed: %s - %s", errResp.Error, errResp.ErrorDescription)
		}
		return nil, fmt.Errorf("token request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var token Token
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("token response has no access_token")
	}
	if token.ExpiresIn > 0 {
		token.ExpiresAt = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	}
	return &token, nil
}
