package aip

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"agent-chatter/internal/config"
)

type Variant string

const (
	VariantToken  Variant = "token"
	VariantOAuth  Variant = "oauth"
	VariantOpenAI Variant = "openai"
)

// OAuthScopes are requested by the client-credentials sign-in.
var OAuthScopes = []string{"api:aip-agents-read", "api:aip-agents-write"}

const tokenPath = "/multipass/api/oauth2/token"

var ErrNotSignedIn = errors.New("confidential client is not signed in")

// VariantFor picks the variant the configuration asks for.
func VariantFor(cfg *config.Config) Variant {
	if cfg.Backend == config.BackendOpenAI {
		return VariantOpenAI
	}
	if cfg.AuthMode == config.AuthOAuth {
		return VariantOAuth
	}
	return VariantToken
}

// Credentials for one of the platform auth variants.
type Credentials struct {
	Variant      Variant
	Hostname     string
	Token        string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

func (c Credentials) String() string {
	switch c.Variant {
	case VariantOAuth:
		return fmt.Sprintf("oauth(host=%s, client=%s, scopes=%s)", c.Hostname, c.ClientID, strings.Join(c.Scopes, " "))
	default:
		return fmt.Sprintf("token(host=%s)", c.Hostname)
	}
}

// ResolveCredentials reads the values the variant needs from cfg.
func ResolveCredentials(cfg *config.Config, v Variant) (Credentials, error) {
	switch v {
	case VariantToken:
		if err := cfg.RequireAuth(config.AuthToken); err != nil {
			return Credentials{}, err
		}
		return Credentials{Variant: v, Hostname: cfg.Hostname, Token: cfg.BearerToken}, nil
	case VariantOAuth:
		if err := cfg.RequireAuth(config.AuthOAuth); err != nil {
			return Credentials{}, err
		}
		return Credentials{
			Variant:      v,
			Hostname:     cfg.Hostname,
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Scopes:       append([]string(nil), OAuthScopes...),
		}, nil
	default:
		return Credentials{}, fmt.Errorf("variant %q has no platform credentials", v)
	}
}

// TokenSource returns the bearer token source for c. The OAuth variant
// signs in before returning.
func (c Credentials) TokenSource(ctx context.Context, base *http.Client) (oauth2.TokenSource, error) {
	switch c.Variant {
	case VariantToken:
		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: c.Token, TokenType: "Bearer"}), nil
	case VariantOAuth:
		cc := NewConfidentialClient(c, base)
		if err := cc.SignIn(ctx); err != nil {
			return nil, err
		}
		return cc, nil
	default:
		return nil, fmt.Errorf("variant %q has no token source", c.Variant)
	}
}

// ConfidentialClient authenticates as a service user with the
// client-credentials grant.
type ConfidentialClient struct {
	conf clientcredentials.Config
	base *http.Client

	mu sync.RWMutex
	ts oauth2.TokenSource
}

func NewConfidentialClient(c Credentials, base *http.Client) *ConfidentialClient {
	return &ConfidentialClient{
		conf: clientcredentials.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			TokenURL:     baseURL(c.Hostname) + tokenPath,
			Scopes:       c.Scopes,
			AuthStyle:    oauth2.AuthStyleInParams,
		},
		base: base,
	}
}

// SignIn fetches the first access token. Later tokens are fetched by
// the oauth2 token source when the current one expires.
func (cc *ConfidentialClient) SignIn(ctx context.Context) error {
	tok, err := cc.conf.Token(withHTTPClient(ctx, cc.base))
	if err != nil {
		return fmt.Errorf("sign in as service user: %w", err)
	}
	ts := oauth2.ReuseTokenSource(tok, cc.conf.TokenSource(withHTTPClient(context.Background(), cc.base)))
	cc.mu.Lock()
	cc.ts = ts
	cc.mu.Unlock()
	return nil
}

func (cc *ConfidentialClient) Token() (*oauth2.Token, error) {
	cc.mu.RLock()
	ts := cc.ts
	cc.mu.RUnlock()
	if ts == nil {
		return nil, ErrNotSignedIn
	}
	return ts.Token()
}

func withHTTPClient(ctx context.Context, c *http.Client) context.Context {
	if c == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, c)
}

// baseURL accepts a bare hostname or a full URL.
func baseURL(hostname string) string {
	h := strings.TrimRight(strings.TrimSpace(hostname), "/")
	if strings.HasPrefix(h, "http://") || strings.HasPrefix(h, "https://") {
		return h
	}
	return "https://" + h
}
