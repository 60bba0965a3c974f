// Package apple es el adapter de Sign in with Apple para el CLI: autorización web
// con response_mode=form_post recibida en un loopback y un nonce hasheado ligado
// al identity token. El nombre completo, que Apple solo informa en la primera
// autorización, se guarda localmente como respaldo.
package apple

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/url"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/dropDatabas3/devlog/internal/identity"
	"github.com/dropDatabas3/devlog/internal/identity/consent"
	"github.com/dropDatabas3/devlog/internal/identity/providers"
	"github.com/dropDatabas3/devlog/internal/observability/logger"
)

const (
	Issuer         = "https://appleid.apple.com"
	DefaultAuthURL = Issuer + "/auth/authorize"
	DefaultKeysURL = Issuer + "/auth/keys"
	callbackPath   = "/apple/callback"
	nonceLength    = 32
	nonceCharset   = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz-_"
)

// NameStore guarda el nombre completo por subject de Apple entre autorizaciones.
type NameStore interface {
	FullName(subject string) (string, error)
	SaveFullName(subject, name string) error
}

type Config struct {
	ServicesID string
	AuthURL    string
}

type Adapter struct {
	cfg      Config
	browser  consent.Browser
	verifier *oidc.IDTokenVerifier
	names    NameStore
	random   io.Reader
}

var _ providers.Adapter = (*Adapter)(nil)

// New verifica los identity tokens contra las claves publicadas por Apple.
func New(ctx context.Context, cfg Config, browser consent.Browser, names NameStore) *Adapter {
	keys := oidc.NewRemoteKeySet(ctx, DefaultKeysURL)
	return NewWithVerifier(cfg, browser, names, oidc.NewVerifier(Issuer, keys, &oidc.Config{ClientID: cfg.ServicesID}))
}

func NewWithVerifier(cfg Config, browser consent.Browser, names NameStore, verifier *oidc.IDTokenVerifier) *Adapter {
	if cfg.AuthURL == "" {
		cfg.AuthURL = DefaultAuthURL
	}
	return &Adapter{cfg: cfg, browser: browser, verifier: verifier, names: names, random: rand.Reader}
}

func (a *Adapter) ID() identity.ProviderID { return identity.Apple }

func (a *Adapter) SignIn(ctx context.Context) (*identity.Credential, error) { return a.authorize(ctx) }

// Link corre el mismo consentimiento; el canje en el broker ocurre después del link.
func (a *Adapter) Link(ctx context.Context) (*identity.Credential, error) { return a.authorize(ctx) }

// NonceChallenge devuelve n caracteres aleatorios de un charset URL-safe.
func NonceChallenge(r io.Reader, n int) (string, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", identity.Wrap(identity.KindInternal, err, "generate nonce")
	}
	// 64 símbolos: b%64 es uniforme.
	for i := range b {
		b[i] = nonceCharset[int(b[i])%len(nonceCharset)]
	}
	return string(b), nil
}

// HashNonce es el SHA-256 en hex minúscula de raw, el valor que se envía a Apple.
func HashNonce(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

type idClaims struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Nonce   string `json:"nonce"`
}

// user es el JSON que Apple postea en el campo "user" en la primera autorización.
type user struct {
	Name struct {
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
	} `json:"name"`
	Email string `json:"email"`
}

func (u user) fullName() string {
	return strings.TrimSpace(strings.TrimSpace(u.Name.FirstName) + " " + strings.TrimSpace(u.Name.LastName))
}

func (a *Adapter) authURL(redirect, state, hashedNonce string) string {
	u, _ := url.Parse(a.cfg.AuthURL)
	q := u.Query()
	q.Set("client_id", a.cfg.ServicesID)
	q.Set("redirect_uri", redirect)
	q.Set("response_type", "code id_token")
	q.Set("response_mode", "form_post")
	q.Set("scope", "name email")
	q.Set("state", state)
	q.Set("nonce", hashedNonce)
	u.RawQuery = q.Encode()
	return u.String()
}

func (a *Adapter) authorize(ctx context.Context) (*identity.Credential, error) {
	log := logger.From(ctx).With(logger.Component("providers.apple"))

	// el nonce crudo vive solo durante este intento
	raw, err := NonceChallenge(a.random, nonceLength)
	if err != nil {
		return nil, err
	}
	state, err := providers.NewState(a.random)
	if err != nil {
		return nil, err
	}
	lb, err := consent.Listen(callbackPath)
	if err != nil {
		return nil, identity.Wrap(identity.KindInternal, err, "apple callback")
	}

	values, err := consent.Authorize(ctx, a.browser, lb, a.authURL(lb.RedirectURL(), state, HashNonce(raw)))
	if err != nil {
		return nil, err
	}
	if err := providers.CheckState(state, values.Get("state")); err != nil {
		return nil, err
	}
	idToken, err := providers.Callback(values, "id_token")
	if err != nil {
		return nil, err
	}
	code, err := providers.Callback(values, "code")
	if err != nil {
		return nil, err
	}

	tok, err := a.verifier.Verify(ctx, idToken)
	if err != nil {
		return nil, identity.Wrap(identity.KindBadServerResponse, err, "apple: verify identity token")
	}
	var claims idClaims
	if err := tok.Claims(&claims); err != nil {
		return nil, identity.Wrap(identity.KindBadServerResponse, err, "apple: identity token claims")
	}
	if claims.Nonce != HashNonce(raw) {
		return nil, identity.Errorf(identity.KindBadServerResponse, "apple: nonce mismatch")
	}

	var u user
	if s := values.Get("user"); s != "" {
		if err := json.Unmarshal([]byte(s), &u); err != nil {
			log.Debug("ignoring malformed user payload", logger.Err(err))
		}
	}

	fullName := u.fullName()
	if fullName != "" {
		if err := a.names.SaveFullName(claims.Subject, fullName); err != nil {
			log.Warn("could not persist apple full name", logger.Err(err))
		}
	} else if stored, err := a.names.FullName(claims.Subject); err == nil {
		fullName = stored
	}

	email := claims.Email
	if email == "" {
		email = u.Email
	}
	return &identity.Credential{
		Provider:          identity.Apple,
		IDToken:           idToken,
		AuthorizationCode: code,
		RawNonce:          raw,
		Email:             email,
		FullName:          fullName,
	}, nil
}
