// Package linking vincula y desvincula proveedores de la identidad logueada.
// Link exige que los emails coincidan y revoca lo que haya obtenido el intento
// fallido; Unlink revoca los tokens del servidor antes de desvincular y restaura
// el conjunto vinculado local si falla algún paso.
package linking

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/dropDatabas3/devlog/internal/identity"
	"github.com/dropDatabas3/devlog/internal/identity/providers"
	"github.com/dropDatabas3/devlog/internal/identity/session"
	"github.com/dropDatabas3/devlog/internal/observability/logger"
)

// Orchestrator es el dueño de la identidad; toda mutación pasa por él.
type Orchestrator interface {
	Current() *identity.Identity
	IDToken(ctx context.Context) (string, error)
	Adapters() providers.Set
	ApplyLinked(p identity.ProviderID)
	ApplyUnlinked(p identity.ProviderID)
	ReplaceLinked(set identity.ProviderSet)
	ReplaceSession(sess *session.Session)
	Disconnect(ctx context.Context, p identity.ProviderID) error
	SetGoogleToken(token string) error
}

type Sessions interface {
	Link(ctx context.Context, idToken string, cred identity.Credential) (*session.Session, *session.IdPProfile, error)
	Unlink(ctx context.Context, idToken string, p identity.ProviderID) (identity.ProviderSet, error)
}

type Broker interface {
	RequestAppleRefreshToken(ctx context.Context, authorizationCode, uid string) error
	RefreshAppleAccessToken(ctx context.Context) (string, error)
	RevokeAppleAccessToken(ctx context.Context, token string) error
	RevokeGithubAccessToken(ctx context.Context, accessToken string) error
}

type Deps struct {
	Orchestrator Orchestrator
	Sessions     Sessions
	Broker       Broker
}

type Coordinator struct {
	orch     Orchestrator
	sessions Sessions
	broker   Broker
	locks    *userLocks
}

func New(d Deps) *Coordinator {
	return &Coordinator{orch: d.Orchestrator, sessions: d.Sessions, broker: d.Broker, locks: newUserLocks()}
}

// Link corre el consentimiento de p y lo vincula a la identidad actual si los
// emails coinciden exactamente.
func (c *Coordinator) Link(ctx context.Context, p identity.ProviderID) error {
	cur := c.orch.Current()
	if cur == nil {
		return identity.ErrAuthenticationRequired
	}
	log := logger.From(ctx).With(logger.Component("linking"), logger.Op("Link"),
		logger.UserID(cur.UID), logger.Provider(string(p)))

	return c.locks.run(ctx, cur.UID, func() error {
		cur := c.orch.Current()
		if cur == nil {
			return identity.ErrAuthenticationRequired
		}
		if cur.LinkedProviders.Has(p) {
			return identity.Errorf(identity.KindInvalidArgument, "%s is already linked", p)
		}
		adapter, err := c.orch.Adapters().Get(p)
		if err != nil {
			return err
		}

		cred, err := adapter.Link(ctx)
		if err != nil {
			if cred != nil {
				return c.rollbackAttempt(ctx, log, p, cred, err)
			}
			return err
		}

		// Apple entrega el code una sola vez; canjearlo ahora deja un refresh token
		// en el servidor que se puede revocar si el link falla.
		if p == identity.Apple && cred.AuthorizationCode != "" {
			if err := c.broker.RequestAppleRefreshToken(ctx, cred.AuthorizationCode, cur.UID); err != nil {
				return err
			}
		}

		switch {
		case cred.Email == "":
			return c.rollbackAttempt(ctx, log, p, cred, identity.Errorf(identity.KindEmailNotFound, "%s credential has no email", p))
		case cred.Email != cur.Email:
			return c.rollbackAttempt(ctx, log, p, cred, identity.Errorf(identity.KindEmailMismatch, "%s email differs from account email", p))
		}

		idToken, err := c.orch.IDToken(ctx)
		if err != nil {
			return c.rollbackAttempt(ctx, log, p, cred, err)
		}
		sess, _, err := c.sessions.Link(ctx, idToken, *cred)
		if err != nil {
			return c.rollbackAttempt(ctx, log, p, cred, err)
		}

		c.orch.ReplaceSession(sess)
		c.orch.ApplyLinked(p)
		if p == identity.Google {
			if err := c.orch.SetGoogleToken(cred.AccessToken); err != nil {
				log.Warn("could not persist google token", logger.Err(err))
			}
		}
		log.Info("provider linked")
		return nil
	})
}

// rollbackAttempt revoca los tokens que obtuvo un intento de link fallido y
// devuelve cause. Una revocación fallida se loguea; el usuario ve cause.
func (c *Coordinator) rollbackAttempt(ctx context.Context, log *zap.Logger, p identity.ProviderID, cred *identity.Credential, cause error) error {
	var err error
	switch p {
	case identity.Apple:
		err = c.revokeApple(ctx)
	case identity.GitHub:
		err = c.broker.RevokeGithubAccessToken(ctx, cred.AccessToken)
	case identity.Google:
		if d, ok := c.adapterDisconnector(p); ok {
			err = d.Disconnect(ctx, cred.AccessToken)
		}
	}
	if err != nil {
		log.Warn("could not revoke tokens of failed link attempt", logger.Err(err))
	}
	return cause
}

func (c *Coordinator) adapterDisconnector(p identity.ProviderID) (providers.Disconnector, bool) {
	a, err := c.orch.Adapters().Get(p)
	if err != nil {
		return nil, false
	}
	d, ok := a.(providers.Disconnector)
	return d, ok
}

func (c *Coordinator) revokeApple(ctx context.Context) error {
	tok, err := c.broker.RefreshAppleAccessToken(ctx)
	if err != nil {
		return err
	}
	return c.broker.RevokeAppleAccessToken(ctx, tok)
}

// RevokeServerToken revoca el token de p que guarda el broker: Apple con un
// access token nuevo, GitHub con el access token guardado. No hace nada para
// proveedores sin token del servidor ni si el broker ya no lo tiene, porque un
// unlink o borrado reintentado lo encuentra ya revocado.
func (c *Coordinator) RevokeServerToken(ctx context.Context, p identity.ProviderID) error {
	var err error
	switch p {
	case identity.Apple:
		err = c.revokeApple(ctx)
	case identity.GitHub:
		err = c.broker.RevokeGithubAccessToken(ctx, "")
	}
	if errors.Is(err, identity.ErrNotFound) {
		logger.From(ctx).Info("no server token left to revoke", logger.Component("linking"), logger.Provider(string(p)))
		return nil
	}
	return err
}

// Unlink desvincula p. El conjunto local saca p de entrada y vuelve a su valor
// previo si falla algún paso; la revocación del servidor que ya ocurrió no se
// deshace, así que se espera que se reintente la operación completa.
func (c *Coordinator) Unlink(ctx context.Context, p identity.ProviderID) error {
	cur := c.orch.Current()
	if cur == nil {
		return identity.ErrAuthenticationRequired
	}
	log := logger.From(ctx).With(logger.Component("linking"), logger.Op("Unlink"),
		logger.UserID(cur.UID), logger.Provider(string(p)))

	return c.locks.run(ctx, cur.UID, func() error {
		cur := c.orch.Current()
		if cur == nil {
			return identity.ErrAuthenticationRequired
		}
		if !cur.LinkedProviders.Has(p) {
			return identity.Errorf(identity.KindInvalidArgument, "%s is not linked", p)
		}
		if cur.LinkedProviders.Len() <= 1 {
			return identity.ErrLastProvider
		}

		before := cur.LinkedProviders.Clone()
		c.orch.ApplyUnlinked(p)
		restore := func(err error) error {
			c.orch.ReplaceLinked(before)
			log.Warn("unlink failed, linked set restored", logger.Err(err))
			return err
		}

		if p.NeedsDisconnect() {
			if err := c.orch.Disconnect(ctx, p); err != nil {
				return restore(err)
			}
		}
		if p.HasServerToken() {
			if err := c.RevokeServerToken(ctx, p); err != nil {
				return restore(err)
			}
		}

		idToken, err := c.orch.IDToken(ctx)
		if err != nil {
			return restore(err)
		}
		if _, err := c.sessions.Unlink(ctx, idToken, p); err != nil {
			return restore(err)
		}
		log.Info("provider unlinked")
		return nil
	})
}
