package apple

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKeyPEM(t *testing.T) (*ecdsa.PrivateKey, []byte) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	return key, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
}

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *ecdsa.PrivateKey) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	key, pemBytes := testKeyPEM(t)
	c, err := New(Config{
		TeamID:        "TEAM",
		ClientID:      "com.example.devlog",
		KeyID:         "KID",
		PrivateKeyPEM: pemBytes,
		TokenURL:      srv.URL + "/auth/token",
		RevokeURL:     srv.URL + "/auth/revoke",
	})
	require.NoError(t, err)
	return c.WithHTTPClient(srv.Client()), key
}

func TestNew_NotConfigured(t *testing.T) {
	_, err := New(Config{TeamID: "T"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestClientSecret_ES256FiveMinutes(t *testing.T) {
	c, key := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	fixed := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return fixed }

	raw, err := c.ClientSecret()
	require.NoError(t, err)

	claims := &jwtv5.RegisteredClaims{}
	tk, err := jwtv5.ParseWithClaims(raw, claims, func(tk *jwtv5.Token) (any, error) {
		return &key.PublicKey, nil
	}, jwtv5.WithValidMethods([]string{"ES256"}), jwtv5.WithTimeFunc(func() time.Time { return fixed }))
	require.NoError(t, err)

	assert.Equal(t, "KID", tk.Header["kid"])
	assert.Equal(t, "TEAM", claims.Issuer)
	assert.Equal(t, "com.example.devlog", claims.Subject)
	assert.Equal(t, jwtv5.ClaimStrings{Issuer}, claims.Audience)
	assert.Equal(t, 5*time.Minute, claims.ExpiresAt.Sub(claims.IssuedAt.Time))
}

func TestExchangeCodeAndRefresh(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "com.example.devlog", r.Form.Get("client_id"))
		assert.NotEmpty(t, r.Form.Get("client_secret"))
		switch r.Form.Get("grant_type") {
		case "authorization_code":
			if r.Form.Get("code") != "good" {
				w.WriteHeader(http.StatusBadRequest)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
				return
			}
			_ = json.NewEncoder(w).Encode(TokenResponse{AccessToken: "at", RefreshToken: "rt"})
		case "refresh_token":
			assert.Equal(t, "rt", r.Form.Get("refresh_token"))
			_ = json.NewEncoder(w).Encode(TokenResponse{AccessToken: "at2"})
		}
	})
	ctx := context.Background()

	tr, err := c.ExchangeCode(ctx, "good")
	require.NoError(t, err)
	assert.Equal(t, "rt", tr.RefreshToken)

	_, err = c.ExchangeCode(ctx, "bad")
	assert.ErrorContains(t, err, "invalid_grant")

	tr, err = c.Refresh(ctx, "rt")
	require.NoError(t, err)
	assert.Equal(t, "at2", tr.AccessToken)
}

func TestRevoke(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "access_token", r.Form.Get("token_type_hint"))
		if r.Form.Get("token") == "boom" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	ctx := context.Background()

	require.NoError(t, c.Revoke(ctx, "at", "access_token"))
	assert.Error(t, c.Revoke(ctx, "boom", "access_token"))
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}
