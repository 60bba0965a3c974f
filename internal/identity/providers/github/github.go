// Package github es el adapter de sign-in con GitHub. El CLI nunca ve el client
// secret: corre el consentimiento en el navegador, valida el state y le pasa el
// code al broker, que devuelve el access token usado para traer el perfil.
package github

import (
	"context"
	"errors"
	"io"

	"github.com/dropDatabas3/devlog/internal/identity"
	"github.com/dropDatabas3/devlog/internal/identity/brokerclient"
	"github.com/dropDatabas3/devlog/internal/identity/consent"
	"github.com/dropDatabas3/devlog/internal/identity/providers"
	ghoauth "github.com/dropDatabas3/devlog/internal/oauth/github"
	"github.com/dropDatabas3/devlog/internal/observability/logger"
)

const callbackPath = "/github/callback"

// Broker es el canje del code que se hace del lado servidor.
type Broker interface {
	RequestGithubTokens(ctx context.Context, code string, link bool) (*brokerclient.GitHubTokens, error)
}

type Adapter struct {
	clientID  string
	endpoints ghoauth.Endpoints
	browser   consent.Browser
	broker    Broker
	random    io.Reader
}

var _ providers.Adapter = (*Adapter)(nil)

func New(clientID string, browser consent.Browser, broker Broker) *Adapter {
	return &Adapter{clientID: clientID, endpoints: ghoauth.DefaultEndpoints, browser: browser, broker: broker}
}

// WithEndpoints apunta el adapter a GitHub Enterprise o a un server de test.
func (a *Adapter) WithEndpoints(e ghoauth.Endpoints) *Adapter {
	a.endpoints = e
	return a
}

func (a *Adapter) ID() identity.ProviderID { return identity.GitHub }

func (a *Adapter) SignIn(ctx context.Context) (*identity.Credential, error) {
	return a.authorize(ctx, false)
}

// Link le indica al broker que guarde el token bajo el usuario logueado en vez
// de emitir un custom token.
func (a *Adapter) Link(ctx context.Context) (*identity.Credential, error) {
	return a.authorize(ctx, true)
}

func (a *Adapter) authorize(ctx context.Context, link bool) (*identity.Credential, error) {
	log := logger.From(ctx).With(logger.Component("providers.github"))

	state, err := providers.NewState(a.random)
	if err != nil {
		return nil, err
	}
	lb, err := consent.Listen(callbackPath)
	if err != nil {
		return nil, identity.Wrap(identity.KindInternal, err, "github callback")
	}
	client := ghoauth.New(a.clientID, "", lb.RedirectURL(), nil).WithEndpoints(a.endpoints)

	values, err := consent.Authorize(ctx, a.browser, lb, client.AuthURL(state))
	if err != nil {
		return nil, err
	}
	// redirect falsificado o repetido: el code nunca llega al broker
	if err := providers.CheckState(state, values.Get("state")); err != nil {
		log.Warn("github callback state mismatch")
		return nil, err
	}
	code, err := providers.Callback(values, "code")
	if err != nil {
		return nil, err
	}

	tokens, err := a.broker.RequestGithubTokens(ctx, code, link)
	if err != nil {
		return nil, err
	}

	// desde acá el broker tiene el token; ante falla se devuelve la credencial
	// parcial para que quien llama pueda revocarlo
	cred := &identity.Credential{
		Provider:    identity.GitHub,
		AccessToken: tokens.AccessToken,
		CustomToken: tokens.CustomToken,
	}
	info, err := client.GetUserInfo(ctx, tokens.AccessToken)
	if err != nil {
		return cred, identity.Wrap(identity.KindBadServerResponse, err, "github: profile")
	}
	if info.Email == "" {
		primary, err := client.GetPrimaryEmail(ctx, tokens.AccessToken)
		switch {
		case errors.Is(err, ghoauth.ErrNoEmail):
			// el link va a fallar con EmailNotFound
		case err != nil:
			return cred, identity.Wrap(identity.KindBadServerResponse, err, "github: emails")
		default:
			info.Email = primary.Email
		}
	}

	cred.Email = info.Email
	cred.FullName = info.Name
	cred.Login = info.Login
	cred.AvatarURL = info.AvatarURL
	return cred, nil
}
