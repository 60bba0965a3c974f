// Package deletion da de baja una cuenta: revoca los tokens de proveedores,
// borra los datos del usuario, cierra la sesión y elimina la identidad. Los pasos
// corren estrictamente en orden y la primera falla aborta el resto.
package deletion

import (
	"context"

	"github.com/dropDatabas3/devlog/internal/identity"
	"github.com/dropDatabas3/devlog/internal/observability/logger"
)

type Orchestrator interface {
	Current() *identity.Identity
	IDToken(ctx context.Context) (string, error)
	SignOut(ctx context.Context) error
}

// Revoker revoca el token de un proveedor que guarda el broker (linking.Coordinator).
type Revoker interface {
	RevokeServerToken(ctx context.Context, p identity.ProviderID) error
}

type Broker interface {
	UserCleanup(ctx context.Context, uid string) error
}

type Sessions interface {
	Delete(ctx context.Context, idToken string) error
}

type Deps struct {
	Orchestrator Orchestrator
	Revoker      Revoker
	Broker       Broker
	Sessions     Sessions
}

type Cascade struct {
	orch     Orchestrator
	revoker  Revoker
	broker   Broker
	sessions Sessions
}

func New(d Deps) *Cascade {
	return &Cascade{orch: d.Orchestrator, revoker: d.Revoker, broker: d.Broker, sessions: d.Sessions}
}

// DeleteAccount corre la cascada. Una falla puede dejar la cuenta borrada a
// medias; la operación completa se puede reintentar.
func (c *Cascade) DeleteAccount(ctx context.Context) error {
	cur := c.orch.Current()
	if cur == nil {
		return identity.ErrAuthenticationRequired
	}
	log := logger.From(ctx).With(logger.Component("deletion"), logger.Op("DeleteAccount"), logger.UserID(cur.UID))

	// 1. tokens
	for _, p := range cur.LinkedProviders.Sorted() {
		if !p.HasServerToken() {
			continue
		}
		if err := c.revoker.RevokeServerToken(ctx, p); err != nil {
			log.Warn("account deletion aborted: revoke failed", logger.Provider(string(p)), logger.Err(err))
			return err
		}
	}

	// 2. datos
	if err := c.broker.UserCleanup(ctx, cur.UID); err != nil {
		log.Warn("account deletion aborted: cleanup failed", logger.Err(err))
		return err
	}

	// el sign-out descarta la sesión, así que el token del paso 4 se toma ahora
	idToken, err := c.orch.IDToken(ctx)
	if err != nil {
		return err
	}

	// 3. sesión
	if err := c.orch.SignOut(ctx); err != nil {
		log.Warn("account deletion aborted: sign-out failed", logger.Err(err))
		return err
	}

	// 4. identidad
	if err := c.sessions.Delete(ctx, idToken); err != nil {
		log.Error("identity not deleted after data cleanup", logger.Err(err))
		return err
	}
	log.Info("account deleted")
	return nil
}
