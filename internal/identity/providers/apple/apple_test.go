package apple

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/devlog/internal/identity"
	"github.com/dropDatabas3/devlog/internal/identity/consent"
)

type memNames struct {
	mu sync.Mutex
	m  map[string]string
}

func (n *memNames) FullName(sub string) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.m[sub], nil
}

func (n *memNames) SaveFullName(sub, name string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.m[sub] = name
	return nil
}

// idp responde la autorización como Apple: un form_post a la redirect URI.
// tweak puede reescribir el form posteado.
type idp struct {
	t     *testing.T
	key   *rsa.PrivateKey
	user  string
	tweak func(form url.Values, claims jwtv5.MapClaims)

	lastNonce string
}

func (p *idp) browser() consent.Browser {
	return consent.BrowserFunc(func(ctx context.Context, authURL string) error {
		u, err := url.Parse(authURL)
		require.NoError(p.t, err)
		q := u.Query()
		assert.Equal(p.t, "form_post", q.Get("response_mode"))
		assert.Equal(p.t, "svc", q.Get("client_id"))
		p.lastNonce = q.Get("nonce")

		claims := jwtv5.MapClaims{
			"iss":   Issuer,
			"aud":   "svc",
			"sub":   "apple-sub-1",
			"email": "ada@privaterelay.appleid.com",
			"nonce": q.Get("nonce"),
			"iat":   time.Now().Unix(),
			"exp":   time.Now().Add(time.Hour).Unix(),
		}
		form := url.Values{"code": {"auth-code"}, "state": {q.Get("state")}}
		if p.user != "" {
			form.Set("user", p.user)
		}
		if p.tweak != nil {
			p.tweak(form, claims)
		}
		if !form.Has("id_token") {
			raw, err := jwtv5.NewWithClaims(jwtv5.SigningMethodRS256, claims).SignedString(p.key)
			require.NoError(p.t, err)
			form.Set("id_token", raw)
		}
		go func() {
			resp, err := http.PostForm(q.Get("redirect_uri"), form)
			if err == nil {
				resp.Body.Close()
			}
		}()
		return nil
	})
}

func newAdapter(t *testing.T, p *idp, names NameStore) *Adapter {
	t.Helper()
	keys := &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&p.key.PublicKey}}
	return NewWithVerifier(Config{ServicesID: "svc"}, p.browser(), names,
		oidc.NewVerifier(Issuer, keys, &oidc.Config{ClientID: "svc"}))
}

func newIdP(t *testing.T) *idp {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return &idp{t: t, key: key}
}

func TestSignIn_FirstAuthorizationStoresName(t *testing.T) {
	p := newIdP(t)
	p.user = `{"name":{"firstName":"Ada","lastName":"Lovelace"},"email":"ada@privaterelay.appleid.com"}`
	names := &memNames{m: map[string]string{}}
	a := newAdapter(t, p, names)

	cred, err := a.SignIn(context.Background())
	require.NoError(t, err)
	assert.Equal(t, identity.Apple, cred.Provider)
	assert.Equal(t, "auth-code", cred.AuthorizationCode)
	assert.Equal(t, "Ada Lovelace", cred.FullName)
	assert.Equal(t, "ada@privaterelay.appleid.com", cred.Email)
	assert.Equal(t, p.lastNonce, HashNonce(cred.RawNonce))
	assert.NotEqual(t, p.lastNonce, cred.RawNonce)
	assert.Equal(t, "Ada Lovelace", names.m["apple-sub-1"])
}

func TestSignIn_LaterAuthorizationReadsStoredName(t *testing.T) {
	p := newIdP(t)
	names := &memNames{m: map[string]string{"apple-sub-1": "Ada Lovelace"}}
	a := newAdapter(t, p, names)

	cred, err := a.SignIn(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", cred.FullName)
}

func TestSignIn_FreshNoncePerAttempt(t *testing.T) {
	p := newIdP(t)
	a := newAdapter(t, p, &memNames{m: map[string]string{}})

	c1, err := a.SignIn(context.Background())
	require.NoError(t, err)
	c2, err := a.Link(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, c1.RawNonce, c2.RawNonce)
}

func TestSignIn_Rejections(t *testing.T) {
	cases := []struct {
		name  string
		tweak func(url.Values, jwtv5.MapClaims)
		want  error
	}{
		{"nonce mismatch", func(_ url.Values, c jwtv5.MapClaims) { c["nonce"] = HashNonce("other") }, identity.ErrBadServerResponse},
		{"wrong audience", func(_ url.Values, c jwtv5.MapClaims) { c["aud"] = "someone-else" }, identity.ErrBadServerResponse},
		{"missing identity token", func(f url.Values, _ jwtv5.MapClaims) { f.Set("id_token", "") }, identity.ErrBadServerResponse},
		{"missing code", func(f url.Values, _ jwtv5.MapClaims) { f.Del("code") }, identity.ErrBadServerResponse},
		{"state mismatch", func(f url.Values, _ jwtv5.MapClaims) { f.Set("state", "forged") }, identity.ErrStateMismatch},
		{"user cancelled", func(f url.Values, _ jwtv5.MapClaims) { f.Set("error", "user_cancelled_authorize") }, identity.ErrUserCancelled},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := newIdP(t)
			p.tweak = tc.tweak
			_, err := newAdapter(t, p, &memNames{m: map[string]string{}}).SignIn(context.Background())
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestNonceChallenge(t *testing.T) {
	raw, err := NonceChallenge(rand.Reader, 32)
	require.NoError(t, err)
	assert.Len(t, raw, 32)
	for _, r := range raw {
		assert.True(t, strings.ContainsRune(nonceCharset, r))
	}
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", HashNonce("abc"))
}
