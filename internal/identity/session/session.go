// Package session habla con la API REST de Firebase Auth (Identity Toolkit y
// Secure Token) en nombre del CLI: sign-in con credencial de IdP o custom token,
// link, unlink, actualización de perfil, borrado de cuenta y refresh del ID
// token.
package session

import (
	"strings"
	"time"

	"github.com/dropDatabas3/devlog/internal/identity"
)

// Session es una sesión autenticada de Firebase.
type Session struct {
	UID          string
	IDToken      string
	RefreshToken string
	ExpiresAt    time.Time

	Email       string
	DisplayName string
	PhotoURL    string
	Providers   identity.ProviderSet
}

// Expiring indica si el ID token expira dentro de d.
func (s *Session) Expiring(now time.Time, d time.Duration) bool {
	return s.ExpiresAt.IsZero() || now.Add(d).After(s.ExpiresAt)
}

// IdPProfile es lo que informó el IdP durante signInWithIdp.
type IdPProfile struct {
	Provider    identity.ProviderID
	FederatedID string
	Email       string
	DisplayName string
	PhotoURL    string
}

// providerUserInfo es un proveedor vinculado en accounts:lookup.
type providerUserInfo struct {
	ProviderID  string `json:"providerId"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoUrl"`
	FederatedID string `json:"federatedId"`
	Email       string `json:"email"`
	RawID       string `json:"rawId"`
}

// account es un usuario de accounts:lookup.
type account struct {
	LocalID          string             `json:"localId"`
	Email            string             `json:"email"`
	EmailVerified    bool               `json:"emailVerified"`
	DisplayName      string             `json:"displayName"`
	PhotoURL         string             `json:"photoUrl"`
	ProviderUserInfo []providerUserInfo `json:"providerUserInfo"`
}

// providers conserva solo los proveedores federados que conoce el cliente;
// las entradas "password", "phone" y "custom" se ignoran.
func (a *account) providers() identity.ProviderSet {
	out := identity.NewProviderSet()
	for _, p := range a.ProviderUserInfo {
		for _, known := range identity.Providers {
			if p.ProviderID == string(known) {
				out[known] = struct{}{}
			}
		}
	}
	return out
}

type tokenFields struct {
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
	LocalID      string `json:"localId"`
}

func (t tokenFields) expiresAt(now time.Time) time.Time {
	d, err := time.ParseDuration(strings.TrimSpace(t.ExpiresIn) + "s")
	if err != nil || d <= 0 {
		d = time.Hour
	}
	return now.Add(d)
}
