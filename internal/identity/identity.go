// Package identity contiene el modelo de identidad del cliente que comparten los
// adapters de proveedores, el orquestador y los coordinadores: ids de proveedor,
// la Identity autenticada, las credenciales en vuelo y la taxonomía de errores.
package identity

import (
	"sort"
	"strings"
)

// ProviderID es el identificador de Firebase de una fuente de identidad externa.
type ProviderID string

const (
	Apple  ProviderID = "apple.com"
	Google ProviderID = "google.com"
	GitHub ProviderID = "github.com"
)

// Providers lista todos los proveedores con los que el cliente puede entrar o vincular.
var Providers = []ProviderID{Apple, Google, GitHub}

// ParseProvider acepta el id del proveedor ("github.com") o su nombre corto
// ("github").
func ParseProvider(s string) (ProviderID, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, p := range Providers {
		if s == string(p) || s == p.Short() {
			return p, nil
		}
	}
	return "", Errorf(KindInvalidArgument, "unknown provider %q", s)
}

// Short devuelve el nombre del proveedor sin el sufijo de dominio.
func (p ProviderID) Short() string {
	return strings.TrimSuffix(string(p), ".com")
}

func (p ProviderID) String() string { return string(p) }

// HasServerToken indica si el broker guarda un token revocable para p.
func (p ProviderID) HasServerToken() bool {
	return p == Apple || p == GitHub
}

// NeedsDisconnect indica si p mantiene una sesión de SDK del lado cliente que hay
// que cerrar en el sign-out o el unlink.
func (p ProviderID) NeedsDisconnect() bool {
	return p == Google
}

// ProviderSet es un conjunto sin orden de ids de proveedor. El valor cero está vacío
// y es usable. Ningún método muta el receptor.
type ProviderSet map[ProviderID]struct{}

// NewProviderSet arma un conjunto con los ids dados, sin duplicados.
func NewProviderSet(ids ...ProviderID) ProviderSet {
	s := make(ProviderSet, len(ids))
	for _, id := range ids {
		if id != "" {
			s[id] = struct{}{}
		}
	}
	return s
}

func (s ProviderSet) Has(p ProviderID) bool {
	_, ok := s[p]
	return ok
}

func (s ProviderSet) Len() int { return len(s) }

// With devuelve una copia de s que además contiene p.
func (s ProviderSet) With(p ProviderID) ProviderSet {
	out := s.Clone()
	out[p] = struct{}{}
	return out
}

// Without devuelve una copia de s sin p.
func (s ProviderSet) Without(p ProviderID) ProviderSet {
	out := s.Clone()
	delete(out, p)
	return out
}

func (s ProviderSet) Clone() ProviderSet {
	out := make(ProviderSet, len(s)+1)
	for k := range s {
		out[k] = struct{}{}
	}
	return out
}

func (s ProviderSet) Equal(o ProviderSet) bool {
	if len(s) != len(o) {
		return false
	}
	for k := range s {
		if !o.Has(k) {
			return false
		}
	}
	return true
}

// Sorted devuelve los miembros en orden lexicográfico, para mostrar y persistir.
func (s ProviderSet) Sorted() []ProviderID {
	out := make([]ProviderID, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Identity es el principal autenticado. Solo el orquestador la escribe; el resto
// recibe copias.
type Identity struct {
	UID             string
	DisplayName     string
	Email           string
	PhotoURL        string
	CurrentProvider ProviderID
	LinkedProviders ProviderSet

	// MetadataPending es true entre que la sesión existe y que se trajo el perfil
	// guardado (currentProvider, nombres).
	MetadataPending bool
}

// Clone devuelve una copia profunda.
func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}
	out := *i
	out.LinkedProviders = i.LinkedProviders.Clone()
	return &out
}

// Credential es lo que un adapter de proveedor devuelve de un flujo interactivo.
// Vive un solo intento de sign-in o link y nunca se persiste.
type Credential struct {
	Provider ProviderID

	IDToken           string
	AccessToken       string
	AuthorizationCode string

	// RawNonce es el nonce de Apple sin hashear; Firebase lo necesita para validar
	// el identity token.
	RawNonce string

	// CustomToken es el custom token de Firebase que emite el broker (sign-in con GitHub).
	CustomToken string

	Email     string
	FullName  string
	Login     string
	AvatarURL string
}

// Estado del stream de identidad.
type State int

const (
	Unauthenticated State = iota
	Authenticated
)

func (s State) String() string {
	if s == Authenticated {
		return "authenticated"
	}
	return "unauthenticated"
}

// Event es un elemento del stream de identidad.
type Event struct {
	State    State
	Identity *Identity
}
