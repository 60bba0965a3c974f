// Package consent convierte el consentimiento interactivo de un proveedor (ida y
// vuelta por el navegador que termina en un redirect) en futuros de un solo uso
// que los adapters pueden esperar.
package consent

import (
	"context"
	"sync"

	"github.com/dropDatabas3/devlog/internal/identity"
)

// Promise se resuelve exactamente una vez. Las llamadas posteriores a
// Resolve/Reject se ignoran y devuelven false.
type Promise[T any] struct {
	once sync.Once
	done chan struct{}
	val  T
	err  error
}

func NewPromise[T any]() *Promise[T] {
	return &Promise[T]{done: make(chan struct{})}
}

func (p *Promise[T]) Resolve(v T) bool {
	return p.settle(v, nil)
}

func (p *Promise[T]) Reject(err error) bool {
	var zero T
	return p.settle(zero, err)
}

func (p *Promise[T]) settle(v T, err error) bool {
	ok := false
	p.once.Do(func() {
		p.val, p.err = v, err
		close(p.done)
		ok = true
	})
	return ok
}

// Done se cierra cuando la promesa se resuelve.
func (p *Promise[T]) Done() <-chan struct{} { return p.done }

// Wait bloquea hasta que la promesa se resuelve o ctx termina. Una espera
// cancelada se reporta como UserCancelled: la única forma de abandonar una
// espera de consentimiento es que el usuario desista.
func (p *Promise[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-p.done:
		return p.val, p.err
	case <-ctx.Done():
		var zero T
		return zero, identity.Wrap(identity.KindUserCancelled, ctx.Err(), "consent aborted")
	}
}
