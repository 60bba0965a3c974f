// Package google es el adapter de sign-in con Google: flujo PKCE de app instalada
// sobre un redirect loopback, que produce el id token y el access token que pide Firebase.
package google

import (
	"context"
	"errors"
	"io"

	"golang.org/x/oauth2"

	"github.com/dropDatabas3/devlog/internal/identity"
	"github.com/dropDatabas3/devlog/internal/identity/consent"
	"github.com/dropDatabas3/devlog/internal/identity/providers"
	goidc "github.com/dropDatabas3/devlog/internal/oauth/google"
)

const callbackPath = "/google/callback"

type Adapter struct {
	oidc    *goidc.OIDC
	browser consent.Browser
	random  io.Reader
}

var (
	_ providers.Adapter      = (*Adapter)(nil)
	_ providers.Disconnector = (*Adapter)(nil)
)

func New(o *goidc.OIDC, browser consent.Browser) *Adapter {
	return &Adapter{oidc: o, browser: browser}
}

func (a *Adapter) ID() identity.ProviderID { return identity.Google }

func (a *Adapter) SignIn(ctx context.Context) (*identity.Credential, error) { return a.authorize(ctx) }

func (a *Adapter) Link(ctx context.Context) (*identity.Credential, error) { return a.authorize(ctx) }

func (a *Adapter) authorize(ctx context.Context) (*identity.Credential, error) {
	state, err := providers.NewState(a.random)
	if err != nil {
		return nil, err
	}
	verifier := oauth2.GenerateVerifier()
	lb, err := consent.Listen(callbackPath)
	if err != nil {
		return nil, identity.Wrap(identity.KindInternal, err, "google callback")
	}
	redirect := lb.RedirectURL()

	values, err := consent.Authorize(ctx, a.browser, lb, a.oidc.AuthURL(redirect, state, verifier))
	if err != nil {
		return nil, err
	}
	if err := providers.CheckState(state, values.Get("state")); err != nil {
		return nil, err
	}
	code, err := providers.Callback(values, "code")
	if err != nil {
		return nil, err
	}

	tokens, err := a.oidc.Exchange(ctx, redirect, code, verifier)
	if err != nil {
		if errors.Is(err, goidc.ErrNoIDToken) {
			return nil, identity.Wrap(identity.KindBadServerResponse, err, "google: token response")
		}
		return nil, identity.Wrap(identity.KindBadServerResponse, err, "google: exchange")
	}
	return &identity.Credential{
		Provider:    identity.Google,
		IDToken:     tokens.IDToken,
		AccessToken: tokens.AccessToken,
		Email:       tokens.Claims.Email,
		FullName:    tokens.Claims.Name,
		AvatarURL:   tokens.Claims.Picture,
	}, nil
}

// Disconnect revoca el grant de la app en la cuenta Google del usuario.
func (a *Adapter) Disconnect(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return nil
	}
	if err := a.oidc.Revoke(ctx, accessToken); err != nil {
		return identity.Wrap(identity.KindInternal, err, "google: disconnect")
	}
	return nil
}
