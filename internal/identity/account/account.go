// Package account es la frontera con la UI. Cada operación valida primero la
// conectividad, corre contra el núcleo de identidad y reporta las fallas como
// valor de retorno y como Alert en un único canal.
package account

import (
	"context"

	"github.com/dropDatabas3/devlog/internal/identity"
	"github.com/dropDatabas3/devlog/internal/observability/logger"
)

type Connectivity interface {
	Connected() bool
}

type Auth interface {
	SignIn(ctx context.Context, p identity.ProviderID) (*identity.Identity, error)
	SignOut(ctx context.Context) error
}

type Links interface {
	Link(ctx context.Context, p identity.ProviderID) error
	Unlink(ctx context.Context, p identity.ProviderID) error
}

type Deleter interface {
	DeleteAccount(ctx context.Context) error
}

// Alert es lo que muestra la UI después de una operación fallida.
type Alert struct {
	Op      string
	Kind    identity.Kind
	Message string
}

const alertBuffer = 8

type Deps struct {
	Net     Connectivity
	Auth    Auth
	Links   Links
	Deleter Deleter
}

type Facade struct {
	net     Connectivity
	auth    Auth
	links   Links
	deleter Deleter
	alerts  chan Alert
}

func New(d Deps) *Facade {
	return &Facade{
		net:     d.Net,
		auth:    d.Auth,
		links:   d.Links,
		deleter: d.Deleter,
		alerts:  make(chan Alert, alertBuffer),
	}
}

// Alerts es el único stream de alertas de falla. Si nadie lo consume, las
// alertas que exceden el buffer se descartan.
func (f *Facade) Alerts() <-chan Alert { return f.alerts }

func (f *Facade) SignIn(ctx context.Context, p identity.ProviderID) (*identity.Identity, error) {
	var id *identity.Identity
	err := f.run(ctx, "SignIn", func() (err error) {
		id, err = f.auth.SignIn(ctx, p)
		return err
	})
	return id, err
}

func (f *Facade) SignOut(ctx context.Context) error {
	return f.run(ctx, "SignOut", func() error { return f.auth.SignOut(ctx) })
}

func (f *Facade) Link(ctx context.Context, p identity.ProviderID) error {
	return f.run(ctx, "Link", func() error { return f.links.Link(ctx, p) })
}

func (f *Facade) Unlink(ctx context.Context, p identity.ProviderID) error {
	return f.run(ctx, "Unlink", func() error { return f.links.Unlink(ctx, p) })
}

func (f *Facade) DeleteAccount(ctx context.Context) error {
	return f.run(ctx, "DeleteAccount", func() error { return f.deleter.DeleteAccount(ctx) })
}

func (f *Facade) run(ctx context.Context, op string, fn func() error) error {
	if f.net != nil && !f.net.Connected() {
		f.alert(ctx, op, identity.ErrOffline)
		return identity.ErrOffline
	}
	err := fn()
	if err != nil {
		f.alert(ctx, op, err)
	}
	return err
}

func (f *Facade) alert(ctx context.Context, op string, err error) {
	a := Alert{Op: op, Kind: identity.KindOf(err), Message: identity.UserMessage(err)}
	select {
	case f.alerts <- a:
	default:
		logger.From(ctx).Warn("alert dropped", logger.Component("account"), logger.Op(op), logger.Err(err))
	}
}
