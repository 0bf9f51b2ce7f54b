package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// discoveryServer serves just enough OIDC metadata for provider discovery
func discoveryServer(t *testing.T) *httptest.Server {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/.well-known/openid-configuration" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"issuer":                 srv.URL,
			"authorization_endpoint": srv.URL + "/auth",
			"token_endpoint":         srv.URL + "/token",
			"jwks_uri":               srv.URL + "/keys",
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewGoogleAuthCodeURL(t *testing.T) {
	srv := discoveryServer(t)
	g, err := NewGoogle(context.Background(), srv.URL, "client-1", "secret", "http://localhost/callback")
	require.NoError(t, err)

	u, err := url.Parse(g.AuthCodeURL("state-123"))
	require.NoError(t, err)
	assert.Equal(t, "/auth", u.Path)
	q := u.Query()
	assert.Equal(t, "state-123", q.Get("state"))
	assert.Equal(t, "client-1", q.Get("client_id"))
	assert.Equal(t, "http://localhost/callback", q.Get("redirect_uri"))
	assert.Contains(t, q.Get("scope"), "openid")
	assert.Contains(t, q.Get("scope"), "email")
}

func TestNewGoogleFailsWithoutDiscovery(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	_, err := NewGoogle(context.Background(), srv.URL, "id", "secret", "http://localhost/callback")
	assert.Error(t, err)
}

func TestExchangeFailsOnTokenEndpointError(t *testing.T) {
	srv := discoveryServer(t)
	g, err := NewGoogle(context.Background(), srv.URL, "id", "secret", "http://localhost/callback")
	require.NoError(t, err)
	_, err = g.Exchange(context.Background(), "bad-code")
	assert.Error(t, err)
}
