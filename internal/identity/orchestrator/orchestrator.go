// Package orchestrator es dueño de la Identity autenticada y su único escritor.
// Los flujos de proveedor, el coordinador de links y la cascada de borrado pasan
// por sus operaciones; el resto la observa con Subscribe.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/dropDatabas3/devlog/internal/identity"
	"github.com/dropDatabas3/devlog/internal/identity/brokerclient"
	"github.com/dropDatabas3/devlog/internal/identity/localstate"
	"github.com/dropDatabas3/devlog/internal/identity/providers"
	"github.com/dropDatabas3/devlog/internal/identity/session"
	"github.com/dropDatabas3/devlog/internal/messaging"
	"github.com/dropDatabas3/devlog/internal/observability/logger"
)

// refreshSkew renueva el ID token con este margen antes de que expire.
const refreshSkew = 5 * time.Minute

// Sessions es la superficie de Firebase Auth que necesita el orquestador.
type Sessions interface {
	SignIn(ctx context.Context, cred identity.Credential) (*session.Session, *session.IdPProfile, error)
	SignInWithCustomToken(ctx context.Context, token string) (*session.Session, error)
	Reload(ctx context.Context, sess *session.Session) error
	Refresh(ctx context.Context, sess *session.Session) error
	UpdateProfile(ctx context.Context, idToken, displayName, photoURL string) error
}

// Broker es el subconjunto de callables del broker usado en sign-in y sign-out.
type Broker interface {
	RequestAppleRefreshToken(ctx context.Context, authorizationCode, uid string) error
	GetUserInfo(ctx context.Context) (brokerclient.UserInfo, error)
	SaveUserInfo(ctx context.Context, info brokerclient.UserInfo) error
	RegisterMessagingToken(ctx context.Context, token string) error
	DeleteMessagingToken(ctx context.Context) error
}

// Store persiste la sesión entre ejecuciones.
type Store interface {
	Session() (*localstate.Session, error)
	SaveSession(sess *localstate.Session) error
	ClearSession() error
	GoogleToken() (string, error)
	SetGoogleToken(token string) error
}

type Deps struct {
	Adapters  providers.Set
	Sessions  Sessions
	Broker    Broker
	Store     Store
	Messaging messaging.TokenSource
	Now       func() time.Time
}

type Orchestrator struct {
	adapters  providers.Set
	sessions  Sessions
	broker    Broker
	store     Store
	messaging messaging.TokenSource
	now       func() time.Time

	// ops serializa SignIn, SignOut y Restore.
	ops sync.Mutex
	// tokenMu serializa los refresh del ID token.
	tokenMu sync.Mutex

	mu     sync.Mutex
	ident  *identity.Identity
	sess   *session.Session
	subs   map[int]chan identity.Event
	nextID int
}

func New(d Deps) *Orchestrator {
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Orchestrator{
		adapters:  d.Adapters,
		sessions:  d.Sessions,
		broker:    d.Broker,
		store:     d.Store,
		messaging: d.Messaging,
		now:       d.Now,
		subs:      map[int]chan identity.Event{},
	}
}

// Adapters expone los adapters configurados a los coordinadores.
func (o *Orchestrator) Adapters() providers.Set { return o.adapters }

// ─── Observación ───

// Current devuelve una copia de la identidad, o nil sin sesión.
func (o *Orchestrator) Current() *identity.Identity {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.ident.Clone()
}

// Session devuelve una copia de la sesión activa, o nil.
func (o *Orchestrator) Session() *session.Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sess == nil {
		return nil
	}
	cp := *o.sess
	cp.Providers = o.sess.Providers.Clone()
	return &cp
}

// Subscribe reenvía el estado actual y después cada cambio. Un suscriptor lento
// pierde eventos intermedios pero siempre ve el último.
func (o *Orchestrator) Subscribe() (<-chan identity.Event, func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	id := o.nextID
	o.nextID++
	ch := make(chan identity.Event, 16)
	o.subs[id] = ch
	ch <- o.eventLocked()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			if c, ok := o.subs[id]; ok {
				delete(o.subs, id)
				close(c)
			}
		})
	}
}

func (o *Orchestrator) eventLocked() identity.Event {
	if o.ident == nil {
		return identity.Event{State: identity.Unauthenticated}
	}
	return identity.Event{State: identity.Authenticated, Identity: o.ident.Clone()}
}

func (o *Orchestrator) publishLocked() {
	for _, ch := range o.subs {
		ev := o.eventLocked()
		select {
		case ch <- ev:
		default:
			// se descarta el más viejo para que el último estado llegue
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- ev:
			default:
			}
		}
	}
}

// ─── Token ───

// IDToken devuelve un ID token válido para el broker y lo renueva si está por
// expirar. Devuelve "" sin sesión.
func (o *Orchestrator) IDToken(ctx context.Context) (string, error) {
	o.tokenMu.Lock()
	defer o.tokenMu.Unlock()

	cur := o.Session()
	if cur == nil {
		return "", nil
	}
	if !cur.Expiring(o.now(), refreshSkew) {
		return cur.IDToken, nil
	}
	if err := o.sessions.Refresh(ctx, cur); err != nil {
		return "", err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sess != nil && o.sess.UID == cur.UID {
		o.sess.IDToken = cur.IDToken
		o.sess.RefreshToken = cur.RefreshToken
		o.sess.ExpiresAt = cur.ExpiresAt
		o.persistLocked()
	}
	return cur.IDToken, nil
}

// ─── Mutaciones de los coordinadores ───

// ApplyLinked agrega p al conjunto vinculado.
func (o *Orchestrator) ApplyLinked(p identity.ProviderID) {
	o.mutate(func(id *identity.Identity) { id.LinkedProviders = id.LinkedProviders.With(p) })
}

// ApplyUnlinked saca p del conjunto vinculado.
func (o *Orchestrator) ApplyUnlinked(p identity.ProviderID) {
	o.mutate(func(id *identity.Identity) { id.LinkedProviders = id.LinkedProviders.Without(p) })
}

// ReplaceLinked fija el conjunto vinculado; se usa para restaurar el valor previo al intento.
func (o *Orchestrator) ReplaceLinked(set identity.ProviderSet) {
	o.mutate(func(id *identity.Identity) { id.LinkedProviders = set.Clone() })
}

// ReplaceSession instala los tokens que Firebase rotó durante un link o unlink.
// Se ignora una sesión de otro usuario.
func (o *Orchestrator) ReplaceSession(sess *session.Session) {
	if sess == nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sess == nil || o.sess.UID != sess.UID {
		return
	}
	o.sess.IDToken = sess.IDToken
	o.sess.RefreshToken = sess.RefreshToken
	o.sess.ExpiresAt = sess.ExpiresAt
	o.persistLocked()
}

// SetGoogleToken guarda el access token de Google para que el sign-out y el
// unlink puedan desconectarlo después.
func (o *Orchestrator) SetGoogleToken(token string) error {
	return o.store.SetGoogleToken(token)
}

// GoogleToken devuelve el access token de Google guardado.
func (o *Orchestrator) GoogleToken() (string, error) {
	return o.store.GoogleToken()
}

func (o *Orchestrator) mutate(fn func(*identity.Identity)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ident == nil {
		return
	}
	next := o.ident.Clone()
	fn(next)
	o.ident = next
	o.persistLocked()
	o.publishLocked()
}

// install reemplaza sesión e identidad juntas.
func (o *Orchestrator) install(sess *session.Session, id *identity.Identity) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sess = sess
	o.ident = id
	o.persistLocked()
	o.publishLocked()
}

// clearLocal descarta la sesión y publica Unauthenticated.
func (o *Orchestrator) clearLocal(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sess = nil
	o.ident = nil
	if err := o.store.ClearSession(); err != nil {
		logger.From(ctx).Warn("could not clear persisted session",
			logger.Component("orchestrator"), logger.Err(err))
	}
	o.publishLocked()
}

func (o *Orchestrator) persistLocked() {
	if o.sess == nil || o.ident == nil {
		return
	}
	ls := &localstate.Session{
		UID:             o.sess.UID,
		IDToken:         o.sess.IDToken,
		RefreshToken:    o.sess.RefreshToken,
		ExpiresAt:       o.sess.ExpiresAt,
		Email:           o.ident.Email,
		DisplayName:     o.ident.DisplayName,
		PhotoURL:        o.ident.PhotoURL,
		CurrentProvider: string(o.ident.CurrentProvider),
	}
	for _, p := range o.ident.LinkedProviders.Sorted() {
		ls.Providers = append(ls.Providers, string(p))
	}
	if err := o.store.SaveSession(ls); err != nil {
		logger.L().Warn("could not persist session", logger.Component("orchestrator"), logger.Err(err))
	}
}
