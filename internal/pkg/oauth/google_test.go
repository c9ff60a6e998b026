package oauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestState(t *testing.T) {
	g := NewGoogleService("id", "secret", "http://localhost/cb", []string{"email"})

	s1, err := g.GenerateState()
	require.NoError(t, err)
	s2, err := g.GenerateState()
	require.NoError(t, err)
	assert.NotEqual(t, s1, s2)

	assert.True(t, g.ValidState(s1, s1))
	assert.False(t, g.ValidState(s1, s2))
	assert.False(t, g.ValidState("", ""))
}

func TestRedirectURL(t *testing.T) {
	g := NewGoogleService("client-1", "secret", "http://localhost/cb", []string{"email", "profile"})

	u, err := url.Parse(g.RedirectURL("abc"))
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "abc", q.Get("state"))
	assert.Equal(t, "client-1", q.Get("client_id"))
	assert.Equal(t, "email profile", q.Get("scope"))
}

func TestProfile(t *testing.T) {
	verified := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		if verified {
			w.Write([]byte(`{"id":"g-1","email":"rina@example.com","verified_email":true}`))
			return
		}
		w.Write([]byte(`{"id":"g-1","email":"rina@example.com","verified_email":false}`))
	}))
	defer srv.Close()

	g := NewGoogleService("id", "secret", "http://localhost/cb", nil).(*googleService)
	g.userInfoURL = srv.URL
	token := &oauth2.Token{AccessToken: "tok", TokenType: "Bearer"}

	p, err := g.Profile(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "g-1", p.GoogleID)
	assert.Equal(t, "rina@example.com", p.Email)

	verified = false
	_, err = g.Profile(context.Background(), token)
	assert.ErrorIs(t, err, ErrEmailNotVerified)
}
