package http

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/sarathm09/vibranium/packages/auth/oauth2"
)

type AuthType string

const (
	AuthNone   AuthType = ""
	AuthBasic  AuthType = "basic"
	AuthBearer AuthType = "bearer"
	AuthOAuth2 AuthType = "oauth2"
)

type Auth struct {
	Type     AuthType
	Username string
	Password string
	Token    string
	OAuth2   *oauth2.Config
}

// System is a target service requests are sent to.
type System struct {
	Name    string
	BaseURL string
	Headers map[string]string
	Auth    *Auth
}

type authorizer struct {
	auth     *Auth
	provider *oauth2.Provider
}

func newAuthorizer(auth *Auth, cache *oauth2.TokenCache) (*authorizer, error) {
	a := &authorizer{auth: auth}
	if auth == nil {
		return a, nil
	}
	switch auth.Type {
	case AuthNone, AuthBasic, AuthBearer:
	case AuthOAuth2:
		if auth.OAuth2 == nil {
			return nil, fmt.Errorf("oauth2 auth requires oauth2 settings")
		}
		if err := auth.OAuth2.Validate(); err != nil {
			return nil, err
		}
		a.provider = oauth2.NewProvider(auth.OAuth2, oauth2.WithCache(cache))
	default:
		return nil, fmt.Errorf("unsupported auth type %q", auth.Type)
	}
	return a, nil
}

// header returns the Authorization header value, empty for no auth.
func (a *authorizer) header(ctx context.Context) (string, error) {
	if a == nil || a.auth == nil {
		return "", nil
	}
	switch a.auth.Type {
	case AuthBasic:
		creds := a.auth.Username + ":" + a.auth.Password
		return "Basic " + base64.StdEncoding.EncodeToString([]byte(creds)), nil
	case AuthBearer:
		return "Bearer " + a.auth.Token, nil
	case AuthOAuth2:
		token, err := a.provider.GetToken(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to get OAuth2 token: %w", err)
		}
		return token.Header(), nil
	}
	return "", nil
}
