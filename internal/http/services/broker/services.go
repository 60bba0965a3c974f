// Package broker contiene los services del Token Broker: intercambio, refresh y
// revocación de tokens de Apple/GitHub, emisión de custom tokens de Firebase y
// limpieza de datos del usuario.
package broker

import (
	"context"
	"time"

	"github.com/dropDatabas3/devlog/internal/cache"
	"github.com/dropDatabas3/devlog/internal/firebase"
	"github.com/dropDatabas3/devlog/internal/oauth/apple"
	"github.com/dropDatabas3/devlog/internal/oauth/github"
	"github.com/dropDatabas3/devlog/internal/store"
)

// AppleClient es la parte de internal/oauth/apple que usa el broker.
type AppleClient interface {
	ExchangeCode(ctx context.Context, code string) (*apple.TokenResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*apple.TokenResponse, error)
	Revoke(ctx context.Context, token, hint string) error
}

// GitHubClient es la parte de internal/oauth/github que usa el broker.
type GitHubClient interface {
	ExchangeCode(ctx context.Context, code string) (*github.TokenResponse, error)
	GetUserWithEmail(ctx context.Context, accessToken string) (*github.UserInfo, error)
	RevokeToken(ctx context.Context, accessToken string) error
}

// TokenStore persiste el TokenRecord (store.Tokens).
type TokenStore interface {
	Get(ctx context.Context, uid string, f store.TokenField) (string, error)
	Put(ctx context.Context, uid string, f store.TokenField, value string) error
	Delete(ctx context.Context, uid string, fields ...store.TokenField) error
}

// UserStore es el árbol users/{uid} (store.Users).
type UserStore interface {
	GetInfo(ctx context.Context, uid string) (store.UserInfo, error)
	MergeInfo(ctx context.Context, uid string, in store.UserInfo) error
	DeleteAll(ctx context.Context, uid string) error
}

// Deps contiene las dependencias para crear los services del broker.
type Deps struct {
	Apple   AppleClient    // nil si Apple no está configurado
	GitHub  GitHubClient   // nil si GitHub no está configurado
	Auth    firebase.Admin // Firebase Auth admin
	Tokens  TokenStore
	Users   UserStore
	Locker  cache.Locker // serializa operaciones por uid
	LockTTL time.Duration
}

// Services agrupa todos los services del broker.
type Services struct {
	Apple     AppleService
	GitHub    GitHubService
	Account   AccountService
	Messaging MessagingService
}

// NewServices crea el agregador de services.
func NewServices(d Deps) Services {
	locks := newUserLocks(d.Locker, d.LockTTL)
	return Services{
		Apple: NewAppleService(AppleDeps{
			Client: d.Apple,
			Tokens: d.Tokens,
			Locks:  locks,
		}),
		GitHub: NewGitHubService(GitHubDeps{
			Client: d.GitHub,
			Auth:   d.Auth,
			Tokens: d.Tokens,
			Locks:  locks,
		}),
		Account: NewAccountService(AccountDeps{
			Users: d.Users,
			Locks: locks,
		}),
		Messaging: NewMessagingService(MessagingDeps{
			Tokens: d.Tokens,
			Locks:  locks,
		}),
	}
}
