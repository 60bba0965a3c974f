// Package providers define el contrato de los adapters de sign-in que comparten
// Apple, GitHub y Google, más los helpers de state OAuth que usan todos.
package providers

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"io"
	"sort"

	"github.com/dropDatabas3/devlog/internal/identity"
)

// Adapter corre el consentimiento interactivo de un proveedor y devuelve la
// credencial resultante. SignIn y Link solo difieren en proveedores cuyo canje
// en el backend necesita saber la intención (GitHub). Si el flujo falla después
// de que se emitió un token del lado servidor, el error viene con la credencial
// parcial que lleva ese token; en otro caso la credencial es nil ante error.
type Adapter interface {
	ID() identity.ProviderID
	SignIn(ctx context.Context) (*identity.Credential, error)
	Link(ctx context.Context) (*identity.Credential, error)
}

// Disconnector lo implementan los adapters con un grant del lado cliente que
// hay que revocar en el sign-out o el unlink.
type Disconnector interface {
	Disconnect(ctx context.Context, accessToken string) error
}

// Set indexa los adapters por proveedor.
type Set map[identity.ProviderID]Adapter

func NewSet(adapters ...Adapter) Set {
	s := make(Set, len(adapters))
	for _, a := range adapters {
		if a != nil {
			s[a.ID()] = a
		}
	}
	return s
}

// Get devuelve el adapter de p o un error InvalidArgument si el proveedor no
// está configurado.
func (s Set) Get(p identity.ProviderID) (Adapter, error) {
	a, ok := s[p]
	if !ok {
		return nil, identity.Errorf(identity.KindInvalidArgument, "provider %s is not configured", p)
	}
	return a, nil
}

// IDs lista los proveedores configurados en orden lexicográfico.
func (s Set) IDs() []identity.ProviderID {
	out := make([]identity.ProviderID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// NewState devuelve 32 bytes aleatorios en base64url para el parámetro state de
// OAuth. Un reader nil usa crypto/rand.
func NewState(r io.Reader) (string, error) {
	if r == nil {
		r = rand.Reader
	}
	b := make([]byte, 32)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", identity.Wrap(identity.KindInternal, err, "generate state")
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// CheckState compara el state del callback con el generado en tiempo
// constante.
func CheckState(want, got string) error {
	if want == "" || subtle.ConstantTimeCompare([]byte(want), []byte(got)) != 1 {
		return identity.ErrStateMismatch
	}
	return nil
}

// Callback devuelve el parámetro de callback pedido o un error BadServerResponse
// si falta.
func Callback(values map[string][]string, name string) (string, error) {
	if v := values[name]; len(v) > 0 && v[0] != "" {
		return v[0], nil
	}
	return "", identity.Errorf(identity.KindBadServerResponse, "callback without %s", name)
}
