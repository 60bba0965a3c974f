// Package messaging provee el token de mensajería del dispositivo que el
// broker guarda en users/{uid}/userData/messaging.
package messaging

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// TokenSource entrega el token del dispositivo y permite invalidarlo.
type TokenSource interface {
	// Token devuelve el token actual, emitiendo uno nuevo si no hay.
	Token(ctx context.Context) (string, error)
	// Invalidate descarta el token local; el próximo Token emite otro.
	Invalidate(ctx context.Context) error
}

// Persister es donde vive el token entre ejecuciones (localstate.Store).
type Persister interface {
	MessagingToken() (string, error)
	SetMessagingToken(token string) error
}

// DeviceTokens emite tokens aleatorios por dispositivo y los persiste.
type DeviceTokens struct {
	store Persister
	gen   func() string
}

func NewDeviceTokens(store Persister) *DeviceTokens {
	return &DeviceTokens{store: store, gen: func() string { return "devlog-" + uuid.NewString() }}
}

func (d *DeviceTokens) Token(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	tok, err := d.store.MessagingToken()
	if err != nil {
		return "", fmt.Errorf("messaging: load token: %w", err)
	}
	if tok != "" {
		return tok, nil
	}
	tok = d.gen()
	if err := d.store.SetMessagingToken(tok); err != nil {
		return "", fmt.Errorf("messaging: save token: %w", err)
	}
	return tok, nil
}

func (d *DeviceTokens) Invalidate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := d.store.SetMessagingToken(""); err != nil {
		return fmt.Errorf("messaging: clear token: %w", err)
	}
	return nil
}
