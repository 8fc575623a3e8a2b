package aip

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agent-chatter/internal/config"
)

func TestResolveCredentials(t *testing.T) {
	cfg := &config.Config{Hostname: "h", BearerToken: "s3cr3t-bearer", ClientID: "id", ClientSecret: "s3cr3t-client"}

	tok, err := ResolveCredentials(cfg, VariantToken)
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t-bearer", tok.Token)

	oa, err := ResolveCredentials(cfg, VariantOAuth)
	require.NoError(t, err)
	assert.Equal(t, []string{"api:aip-agents-read", "api:aip-agents-write"}, oa.Scopes)
	assert.NotContains(t, oa.String(), "s3cr3t")
	assert.NotContains(t, tok.String(), "s3cr3t")

	_, err = ResolveCredentials(&config.Config{Hostname: "h"}, VariantOAuth)
	var me *config.MissingError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, []string{"CLIENT_ID", "CLIENT_SECRET"}, me.Missing)
}

func TestVariantFor(t *testing.T) {
	assert.Equal(t, VariantToken, VariantFor(&config.Config{Backend: config.BackendFoundry, AuthMode: config.AuthToken}))
	assert.Equal(t, VariantOAuth, VariantFor(&config.Config{Backend: config.BackendFoundry, AuthMode: config.AuthOAuth}))
	assert.Equal(t, VariantOpenAI, VariantFor(&config.Config{Backend: config.BackendOpenAI, AuthMode: config.AuthOAuth}))
}

// platform fakes the token endpoint and one agent endpoint.
func platform(t *testing.T, tokenCalls *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case tokenPath:
			atomic.AddInt32(tokenCalls, 1)
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
			assert.Equal(t, "id", r.PostForm.Get("client_id"))
			assert.Equal(t, "sec", r.PostForm.Get("client_secret"))
			assert.Equal(t, "api:aip-agents-read api:aip-agents-write", r.PostForm.Get("scope"))
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"access_token":"svc-token","token_type":"bearer","expires_in":3600}`)
		default:
			if r.Header.Get("Authorization") != "Bearer svc-token" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			fmt.Fprint(w, `{"rid":"s1"}`)
		}
	}))
}

func TestConfidentialClientSignIn(t *testing.T) {
	var calls int32
	srv := platform(t, &calls)
	defer srv.Close()

	creds := Credentials{Variant: VariantOAuth, Hostname: srv.URL, ClientID: "id", ClientSecret: "sec", Scopes: OAuthScopes}
	ts, err := creds.TokenSource(context.Background(), srv.Client())
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))

	c := NewFoundryClient(srv.URL, ts, WithHTTPClient(srv.Client()))
	sess, err := c.CreateSession(context.Background(), "ri.test.agent", Preview)
	require.NoError(t, err)
	assert.Equal(t, SessionRID("s1"), sess.RID)
	// the signed-in token is reused, not refetched
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestConfidentialClientSignInFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":"invalid_client"}`)
	}))
	defer srv.Close()

	cc := NewConfidentialClient(Credentials{Hostname: srv.URL, ClientID: "id", ClientSecret: "bad"}, srv.Client())
	_, err := cc.Token()
	assert.ErrorIs(t, err, ErrNotSignedIn)

	err = cc.SignIn(context.Background())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "sign in as service user"))
}
