// Package identitytest provee fakes en memoria de los adapters de proveedores,
// el cliente de sesión de Firebase y el broker para los tests de identidad.
package identitytest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dropDatabas3/devlog/internal/identity"
	"github.com/dropDatabas3/devlog/internal/identity/brokerclient"
	"github.com/dropDatabas3/devlog/internal/identity/session"
)

// ─── Adapter ───

// Adapter devuelve una credencial prefijada en SignIn y Link.
type Adapter struct {
	Provider identity.ProviderID
	Cred     identity.Credential
	Err      error

	DisconnectErr error

	mu           sync.Mutex
	SignIns      int
	Links        int
	Disconnected []string
}

func NewAdapter(p identity.ProviderID, cred identity.Credential) *Adapter {
	cred.Provider = p
	return &Adapter{Provider: p, Cred: cred}
}

func (a *Adapter) ID() identity.ProviderID { return a.Provider }

func (a *Adapter) SignIn(context.Context) (*identity.Credential, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.SignIns++
	if a.Err != nil {
		return nil, a.Err
	}
	c := a.Cred
	return &c, nil
}

func (a *Adapter) Link(context.Context) (*identity.Credential, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Links++
	if a.Err != nil {
		return nil, a.Err
	}
	c := a.Cred
	return &c, nil
}

func (a *Adapter) Disconnect(_ context.Context, token string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.DisconnectErr != nil {
		return a.DisconnectErr
	}
	a.Disconnected = append(a.Disconnected, token)
	return nil
}

// ─── Sessions ───

// Sessions es un Firebase Auth de un solo usuario.
type Sessions struct {
	mu sync.Mutex

	UID         string
	Email       string
	DisplayName string
	PhotoURL    string
	Providers   identity.ProviderSet
	Deleted     bool

	SignInErr  error
	LinkErr    error
	UnlinkErr  error
	DeleteErr  error
	RefreshErr error
	ReloadErr  error

	Calls        map[string]int
	CustomTokens []string
	DeletedWith  string
	ProfileName  string

	generation int
}

func NewSessions(uid, email string) *Sessions {
	return &Sessions{UID: uid, Email: email, Providers: identity.NewProviderSet(), Calls: map[string]int{}}
}

func (s *Sessions) sessionLocked() *session.Session {
	s.generation++
	return &session.Session{
		UID:          s.UID,
		IDToken:      fmt.Sprintf("id-%s-%d", s.UID, s.generation),
		RefreshToken: fmt.Sprintf("rt-%s-%d", s.UID, s.generation),
		ExpiresAt:    time.Now().Add(time.Hour),
		Email:        s.Email,
		DisplayName:  s.DisplayName,
		PhotoURL:     s.PhotoURL,
		Providers:    s.Providers.Clone(),
	}
}

func (s *Sessions) SignIn(_ context.Context, cred identity.Credential) (*session.Session, *session.IdPProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls["SignIn"]++
	if s.SignInErr != nil {
		return nil, nil, s.SignInErr
	}
	s.Providers = s.Providers.With(cred.Provider)
	return s.sessionLocked(), &session.IdPProfile{Provider: cred.Provider, Email: cred.Email}, nil
}

func (s *Sessions) SignInWithCustomToken(_ context.Context, token string) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls["SignInWithCustomToken"]++
	if s.SignInErr != nil {
		return nil, s.SignInErr
	}
	s.CustomTokens = append(s.CustomTokens, token)
	return s.sessionLocked(), nil
}

func (s *Sessions) Link(_ context.Context, idToken string, cred identity.Credential) (*session.Session, *session.IdPProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls["Link"]++
	if idToken == "" {
		return nil, nil, identity.ErrAuthenticationRequired
	}
	if s.LinkErr != nil {
		return nil, nil, s.LinkErr
	}
	s.Providers = s.Providers.With(cred.Provider)
	return s.sessionLocked(), &session.IdPProfile{Provider: cred.Provider, Email: cred.Email}, nil
}

func (s *Sessions) Unlink(_ context.Context, _ string, p identity.ProviderID) (identity.ProviderSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls["Unlink"]++
	if s.UnlinkErr != nil {
		return nil, s.UnlinkErr
	}
	s.Providers = s.Providers.Without(p)
	return s.Providers.Clone(), nil
}

func (s *Sessions) Reload(_ context.Context, sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls["Reload"]++
	if s.ReloadErr != nil {
		return s.ReloadErr
	}
	sess.Email = s.Email
	sess.DisplayName = s.DisplayName
	sess.PhotoURL = s.PhotoURL
	sess.Providers = s.Providers.Clone()
	return nil
}

func (s *Sessions) Refresh(_ context.Context, sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls["Refresh"]++
	if s.RefreshErr != nil {
		return s.RefreshErr
	}
	fresh := s.sessionLocked()
	sess.IDToken, sess.RefreshToken, sess.ExpiresAt = fresh.IDToken, fresh.RefreshToken, fresh.ExpiresAt
	return nil
}

func (s *Sessions) UpdateProfile(_ context.Context, _ string, displayName, photoURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls["UpdateProfile"]++
	s.ProfileName = displayName
	if displayName != "" {
		s.DisplayName = displayName
	}
	if photoURL != "" {
		s.PhotoURL = photoURL
	}
	return nil
}

func (s *Sessions) Delete(_ context.Context, idToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls["Delete"]++
	if s.DeleteErr != nil {
		return s.DeleteErr
	}
	s.Deleted = true
	s.DeletedWith = idToken
	return nil
}

func (s *Sessions) Count(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Calls[method]
}

// ─── Broker ───

// Broker registra cada callable en orden. Errs hace fallar una función.
type Broker struct {
	mu sync.Mutex

	Info           brokerclient.UserInfo
	AppleToken     string
	GitHubToken    string
	MessagingToken string
	Errs           map[string]error

	Log     []string
	Revoked []string
}

func NewBroker() *Broker {
	return &Broker{AppleToken: "apple-access", GitHubToken: "gh_tok", Errs: map[string]error{}}
}

func (b *Broker) record(fn string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Log = append(b.Log, fn)
	return b.Errs[fn]
}

// Count devuelve cuántas veces se llamó a fn.
func (b *Broker) Count(fn string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, f := range b.Log {
		if f == fn {
			n++
		}
	}
	return n
}

// Calls devuelve una copia del log de llamadas.
func (b *Broker) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.Log...)
}

func (b *Broker) RequestAppleRefreshToken(_ context.Context, code, uid string) error {
	return b.record("requestAppleRefreshToken")
}

func (b *Broker) RefreshAppleAccessToken(context.Context) (string, error) {
	if err := b.record("refreshAppleAccessToken"); err != nil {
		return "", err
	}
	return b.AppleToken, nil
}

func (b *Broker) RevokeAppleAccessToken(_ context.Context, token string) error {
	if err := b.record("revokeAppleAccessToken"); err != nil {
		return err
	}
	b.mu.Lock()
	b.Revoked = append(b.Revoked, token)
	b.mu.Unlock()
	return nil
}

// RequestGithubTokens emite un custom token solo fuera del modo link.
func (b *Broker) RequestGithubTokens(_ context.Context, code string, link bool) (*brokerclient.GitHubTokens, error) {
	if err := b.record("requestGithubTokens"); err != nil {
		return nil, err
	}
	out := &brokerclient.GitHubTokens{AccessToken: b.GitHubToken}
	if !link {
		out.CustomToken = "fb_tok"
	}
	return out, nil
}

func (b *Broker) RevokeGithubAccessToken(_ context.Context, token string) error {
	if err := b.record("revokeGithubAccessToken"); err != nil {
		return err
	}
	b.mu.Lock()
	b.Revoked = append(b.Revoked, token)
	b.mu.Unlock()
	return nil
}

func (b *Broker) UserCleanup(_ context.Context, uid string) error {
	return b.record("userCleanup")
}

func (b *Broker) GetUserInfo(context.Context) (brokerclient.UserInfo, error) {
	if err := b.record("getUserInfo"); err != nil {
		return brokerclient.UserInfo{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Info, nil
}

func (b *Broker) SaveUserInfo(_ context.Context, info brokerclient.UserInfo) error {
	if err := b.record("saveUserInfo"); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Info = info
	return nil
}

func (b *Broker) RegisterMessagingToken(_ context.Context, token string) error {
	if err := b.record("registerMessagingToken"); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.MessagingToken = token
	return nil
}

func (b *Broker) DeleteMessagingToken(context.Context) error {
	if err := b.record("deleteMessagingToken"); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.MessagingToken = ""
	return nil
}
