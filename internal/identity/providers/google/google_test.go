package google

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/dropDatabas3/devlog/internal/identity"
	"github.com/dropDatabas3/devlog/internal/identity/consent"
	goidc "github.com/dropDatabas3/devlog/internal/oauth/google"
)

type fixture struct {
	oidc     *goidc.OIDC
	revoked  atomic.Value
	omitID   bool
	verifier atomic.Value
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	f := &fixture{}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		f.verifier.Store(r.Form.Get("code_verifier"))
		idt, err := jwtv5.NewWithClaims(jwtv5.SigningMethodRS256, jwtv5.MapClaims{
			"iss": goidc.Issuer, "aud": "cid", "sub": "g-1", "email": "ada@x.io", "name": "Ada",
			"picture": "https://p/1", "iat": time.Now().Unix(), "exp": time.Now().Add(time.Hour).Unix(),
		}).SignedString(key)
		require.NoError(t, err)
		body := map[string]any{"access_token": "ya29.a", "token_type": "Bearer", "expires_in": 3600}
		if !f.omitID {
			body["id_token"] = idt
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	})
	mux.HandleFunc("/revoke", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		f.revoked.Store(r.Form.Get("token"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	keys := &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&key.PublicKey}}
	f.oidc = goidc.NewWithVerifier(oauth2.Config{
		ClientID: "cid",
		Endpoint: oauth2.Endpoint{AuthURL: srv.URL + "/auth", TokenURL: srv.URL + "/token"},
	}, oidc.NewVerifier(goidc.Issuer, keys, &oidc.Config{ClientID: "cid"}), srv.URL+"/revoke", srv.Client())
	return f
}

func consentWith(t *testing.T, cb func(q url.Values) url.Values) consent.Browser {
	return consent.BrowserFunc(func(ctx context.Context, authURL string) error {
		u, err := url.Parse(authURL)
		require.NoError(t, err)
		q := u.Query()
		assert.Equal(t, "S256", q.Get("code_challenge_method"))
		values := cb(q)
		go func() {
			resp, err := http.Get(q.Get("redirect_uri") + "?" + values.Encode())
			if err == nil {
				resp.Body.Close()
			}
		}()
		return nil
	})
}

func approve(q url.Values) url.Values {
	return url.Values{"code": {"c"}, "state": {q.Get("state")}}
}

func TestSignIn_PKCEAndTokens(t *testing.T) {
	f := newFixture(t)
	var challenge string
	a := New(f.oidc, consentWith(t, func(q url.Values) url.Values {
		challenge = q.Get("code_challenge")
		return approve(q)
	}))

	cred, err := a.SignIn(context.Background())
	require.NoError(t, err)
	assert.Equal(t, identity.Google, cred.Provider)
	assert.Equal(t, "ya29.a", cred.AccessToken)
	assert.NotEmpty(t, cred.IDToken)
	assert.Equal(t, "ada@x.io", cred.Email)
	assert.Equal(t, "Ada", cred.FullName)

	v, _ := f.verifier.Load().(string)
	assert.Equal(t, oauth2.S256ChallengeFromVerifier(v), challenge)
}

func TestSignIn_MissingIDTokenIsBadServerResponse(t *testing.T) {
	f := newFixture(t)
	f.omitID = true
	_, err := New(f.oidc, consentWith(t, approve)).SignIn(context.Background())
	assert.ErrorIs(t, err, identity.ErrBadServerResponse)
}

func TestSignIn_StateAndCancellation(t *testing.T) {
	f := newFixture(t)

	_, err := New(f.oidc, consentWith(t, func(q url.Values) url.Values {
		return url.Values{"code": {"c"}, "state": {"nope"}}
	})).SignIn(context.Background())
	assert.ErrorIs(t, err, identity.ErrStateMismatch)

	_, err = New(f.oidc, consentWith(t, func(q url.Values) url.Values {
		return url.Values{"error": {"access_denied"}, "state": {q.Get("state")}}
	})).Link(context.Background())
	assert.ErrorIs(t, err, identity.ErrUserCancelled)
}

func TestDisconnect(t *testing.T) {
	f := newFixture(t)
	a := New(f.oidc, nil)
	require.NoError(t, a.Disconnect(context.Background(), "ya29.a"))
	assert.Equal(t, "ya29.a", f.revoked.Load())

	require.NoError(t, a.Disconnect(context.Background(), ""))
}
