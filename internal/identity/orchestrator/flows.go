package orchestrator

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/dropDatabas3/devlog/internal/identity"
	"github.com/dropDatabas3/devlog/internal/identity/brokerclient"
	"github.com/dropDatabas3/devlog/internal/identity/providers"
	"github.com/dropDatabas3/devlog/internal/identity/session"
	"github.com/dropDatabas3/devlog/internal/observability/logger"
)

// SignIn corre el consentimiento del proveedor p, abre la sesión de Firebase y
// converge la metadata guardada. La identidad se publica dos veces: primero con
// MetadataPending apenas existe la sesión, después ya convergida.
func (o *Orchestrator) SignIn(ctx context.Context, p identity.ProviderID) (*identity.Identity, error) {
	o.ops.Lock()
	defer o.ops.Unlock()
	log := logger.From(ctx).With(logger.Component("orchestrator"), logger.Op("SignIn"), logger.Provider(string(p)))

	adapter, err := o.adapters.Get(p)
	if err != nil {
		return nil, err
	}
	cred, err := adapter.SignIn(ctx)
	if err != nil {
		return nil, err
	}

	sess, err := o.openSession(ctx, cred)
	if err != nil {
		return nil, err
	}
	log = log.With(logger.UserID(sess.UID))

	o.install(sess, &identity.Identity{
		UID:             sess.UID,
		DisplayName:     sess.DisplayName,
		Email:           sess.Email,
		PhotoURL:        sess.PhotoURL,
		CurrentProvider: p,
		LinkedProviders: sess.Providers.With(p),
		MetadataPending: true,
	})

	if p == identity.Google {
		if err := o.store.SetGoogleToken(cred.AccessToken); err != nil {
			log.Warn("could not persist google token", logger.Err(err))
		}
	}

	// Apple solo entrega el authorization code ahora; el broker lo cambia por el
	// refresh token que se usa para revocar más adelante.
	if p == identity.Apple && cred.AuthorizationCode != "" {
		if err := o.broker.RequestAppleRefreshToken(ctx, cred.AuthorizationCode, sess.UID); err != nil {
			return nil, o.abortSignIn(ctx, log, err)
		}
	}

	id, err := o.converge(ctx, log, sess, p, cred)
	if err != nil {
		return nil, o.abortSignIn(ctx, log, err)
	}
	log.Info("signed in")
	return id, nil
}

// openSession entra a Firebase. GitHub llega con un custom token emitido por el
// broker; los demás proveedores pasan por signInWithIdp.
func (o *Orchestrator) openSession(ctx context.Context, cred *identity.Credential) (*session.Session, error) {
	if cred.CustomToken != "" {
		return o.sessions.SignInWithCustomToken(ctx, cred.CustomToken)
	}
	sess, _, err := o.sessions.SignIn(ctx, *cred)
	return sess, err
}

// abortSignIn deshace la parte local de un sign-in cuya metadata no pudo
// converger, para no dejar al usuario a medio loguear.
func (o *Orchestrator) abortSignIn(ctx context.Context, log *zap.Logger, err error) error {
	log.Warn("sign-in aborted after session creation", logger.Err(err))
	o.clearLocal(ctx)
	return err
}

// converge trae el perfil guardado, resuelve los campos a mostrar, los guarda
// con currentProvider y publica la identidad convergida. cred es nil al
// retomar una sesión persistida.
func (o *Orchestrator) converge(ctx context.Context, log *zap.Logger, sess *session.Session, p identity.ProviderID, cred *identity.Credential) (*identity.Identity, error) {
	stored, err := o.broker.GetUserInfo(ctx)
	if err != nil {
		return nil, err
	}
	if p == "" {
		var local identity.ProviderID
		if cur := o.Current(); cur != nil {
			local = cur.CurrentProvider
		}
		p = identity.ProviderID(firstNonEmpty(string(stored.CurrentProvider), string(local)))
	}

	var claim identity.Credential
	if cred != nil {
		claim = *cred
	}
	if claim.FullName == "" {
		claim.FullName = claim.Login
	}

	// El perfil de Firebase se completa desde el proveedor la primera vez.
	if sess.DisplayName == "" && claim.FullName != "" {
		if err := o.sessions.UpdateProfile(ctx, sess.IDToken, claim.FullName, claim.AvatarURL); err != nil {
			log.Warn("profile update failed", logger.Err(err))
		} else {
			sess.DisplayName = claim.FullName
			if sess.PhotoURL == "" {
				sess.PhotoURL = claim.AvatarURL
			}
		}
	}

	info := brokerclient.UserInfo{
		DisplayName:     firstNonEmpty(sess.DisplayName, claim.FullName, stored.DisplayName),
		Email:           firstNonEmpty(sess.Email, claim.Email, stored.Email),
		PhotoURL:        firstNonEmpty(sess.PhotoURL, claim.AvatarURL, stored.PhotoURL),
		CurrentProvider: p,
	}
	if err := o.broker.SaveUserInfo(ctx, info); err != nil {
		return nil, err
	}

	o.registerMessaging(ctx, log)

	linked := sess.Providers.Clone()
	if p != "" {
		linked = linked.With(p)
	}
	id := &identity.Identity{
		UID:             sess.UID,
		DisplayName:     info.DisplayName,
		Email:           info.Email,
		PhotoURL:        info.PhotoURL,
		CurrentProvider: p,
		LinkedProviders: linked,
	}
	o.install(sess, id)
	return id.Clone(), nil
}

// registerMessaging es best effort: la falta de push token nunca bloquea el sign-in.
func (o *Orchestrator) registerMessaging(ctx context.Context, log *zap.Logger) {
	if o.messaging == nil {
		return
	}
	tok, err := o.messaging.Token(ctx)
	if err == nil {
		err = o.broker.RegisterMessagingToken(ctx, tok)
	}
	if err != nil {
		log.Warn("messaging token not registered", logger.Err(err))
	}
}

// SignOut desarma la sesión en orden: (a) desconecta Google si está vinculado,
// (b) borra el messaging token del servidor, (c) invalida el local y (d) descarta
// la sesión. Una falla en (a) o (b) deja al usuario logueado.
func (o *Orchestrator) SignOut(ctx context.Context) error {
	o.ops.Lock()
	defer o.ops.Unlock()
	log := logger.From(ctx).With(logger.Component("orchestrator"), logger.Op("SignOut"))

	cur := o.Current()
	if cur == nil {
		return nil
	}
	log = log.With(logger.UserID(cur.UID))

	// (a)
	for _, p := range cur.LinkedProviders.Sorted() {
		if !p.NeedsDisconnect() {
			continue
		}
		if err := o.disconnect(ctx, p); err != nil {
			log.Warn("sign-out aborted: disconnect failed", logger.Provider(string(p)), logger.Err(err))
			return err
		}
	}

	// (b)
	if err := o.broker.DeleteMessagingToken(ctx); err != nil {
		log.Warn("sign-out aborted: messaging token not deleted", logger.Err(err))
		return err
	}

	// (c)
	if o.messaging != nil {
		if err := o.messaging.Invalidate(ctx); err != nil {
			log.Warn("local messaging token not invalidated", logger.Err(err))
		}
	}

	// (d)
	o.clearLocal(ctx)
	log.Info("signed out")
	return nil
}

// Disconnect revoca el grant del lado cliente de p (Google) con el access token
// guardado. No hace nada si este dispositivo no tiene grant, ya sea porque no
// hay adapter configurado (p se vinculó desde otro lado) o no hay token guardado.
func (o *Orchestrator) Disconnect(ctx context.Context, p identity.ProviderID) error {
	return o.disconnect(ctx, p)
}

func (o *Orchestrator) disconnect(ctx context.Context, p identity.ProviderID) error {
	log := logger.From(ctx).With(logger.Component("orchestrator"), logger.Provider(string(p)))

	adapter, err := o.adapters.Get(p)
	if err != nil {
		log.Debug("no adapter configured, nothing to disconnect")
		return nil
	}
	d, ok := adapter.(providers.Disconnector)
	if !ok {
		return nil
	}
	tok, err := o.store.GoogleToken()
	if err != nil {
		return identity.Wrap(identity.KindInternal, err, "load google token")
	}
	if tok == "" {
		log.Debug("no stored grant, nothing to disconnect")
		return nil
	}
	if err := d.Disconnect(ctx, tok); err != nil {
		return err
	}
	if err := o.store.SetGoogleToken(""); err != nil {
		log.Warn("could not clear google token", logger.Err(err))
	}
	return nil
}

// Restore retoma la sesión persistida, si hay: renueva el ID token, recarga la
// cuenta y converge la metadata sin flujo de proveedor. Devuelve nil, nil si no
// hay nada que restaurar.
func (o *Orchestrator) Restore(ctx context.Context) (*identity.Identity, error) {
	o.ops.Lock()
	defer o.ops.Unlock()
	log := logger.From(ctx).With(logger.Component("orchestrator"), logger.Op("Restore"))

	ls, err := o.store.Session()
	if err != nil {
		return nil, identity.Wrap(identity.KindInternal, err, "load session")
	}
	if ls == nil || ls.RefreshToken == "" {
		return nil, nil
	}

	sess := &session.Session{
		UID:          ls.UID,
		IDToken:      ls.IDToken,
		RefreshToken: ls.RefreshToken,
		ExpiresAt:    ls.ExpiresAt,
	}
	if sess.Expiring(o.now(), refreshSkew) {
		if err := o.sessions.Refresh(ctx, sess); err != nil {
			if errors.Is(err, identity.ErrAuthenticationRequired) {
				o.clearLocal(ctx)
			}
			return nil, err
		}
	}
	if err := o.sessions.Reload(ctx, sess); err != nil {
		if errors.Is(err, identity.ErrAuthenticationRequired) {
			o.clearLocal(ctx)
		}
		return nil, err
	}

	current := identity.ProviderID(ls.CurrentProvider)
	linked := sess.Providers.Clone()
	if current != "" {
		linked = linked.With(current)
	}
	o.install(sess, &identity.Identity{
		UID:             sess.UID,
		DisplayName:     firstNonEmpty(sess.DisplayName, ls.DisplayName),
		Email:           firstNonEmpty(sess.Email, ls.Email),
		PhotoURL:        firstNonEmpty(sess.PhotoURL, ls.PhotoURL),
		CurrentProvider: current,
		LinkedProviders: linked,
		MetadataPending: true,
	})

	id, err := o.converge(ctx, log.With(logger.UserID(sess.UID)), sess, "", nil)
	if err != nil {
		// la sesión es válida; se conserva y se reporta la falla de metadata
		log.Warn("metadata convergence failed", logger.Err(err))
		return o.Current(), err
	}
	return id, nil
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if v != "" {
			return v
		}
	}
	return ""
}
