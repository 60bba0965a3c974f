package broker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dropDatabas3/devlog/internal/firebase"
	"github.com/dropDatabas3/devlog/internal/metrics"
	"github.com/dropDatabas3/devlog/internal/observability/logger"
	"github.com/dropDatabas3/devlog/internal/store"
	"github.com/dropDatabas3/devlog/internal/store/core"
)

// GitHubTokens es la salida de requestGithubTokens.
type GitHubTokens struct {
	AccessToken string `json:"accessToken"`
	CustomToken string `json:"customToken"`
}

// GitHubService implementa requestGithubTokens y revokeGithubAccessToken.
type GitHubService interface {
	// RequestTokens intercambia code. Sin link resuelve (o crea) el uid por
	// email y emite un custom token; con link guarda el token bajo callerUID
	// y CustomToken queda vacío.
	RequestTokens(ctx context.Context, callerUID, code string, link bool) (*GitHubTokens, error)
	// RevokeAccessToken revoca accessToken, o el guardado si viene vacío.
	RevokeAccessToken(ctx context.Context, callerUID, accessToken string) error
}

// GitHubDeps contiene las dependencias del servicio github.
type GitHubDeps struct {
	Client GitHubClient
	Auth   firebase.Admin
	Tokens TokenStore
	Locks  *userLocks
}

type githubService struct {
	client GitHubClient
	auth   firebase.Admin
	tokens TokenStore
	locks  *userLocks
}

// NewGitHubService creates a new GitHubService.
func NewGitHubService(d GitHubDeps) GitHubService {
	return &githubService{client: d.Client, auth: d.Auth, tokens: d.Tokens, locks: d.Locks}
}

func (s *githubService) RequestTokens(ctx context.Context, callerUID, code string, link bool) (*GitHubTokens, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("broker.github"), logger.Op("RequestTokens"))

	if link && callerUID == "" {
		return nil, ErrUnauthenticated
	}
	if strings.TrimSpace(code) == "" {
		return nil, fmt.Errorf("%w: code", ErrMissingArgument)
	}
	if s.client == nil {
		log.Error("github not configured")
		return nil, ErrGitHubNotConfigured
	}

	tr, err := s.client.ExchangeCode(ctx, code)
	metrics.ProviderRequest("github", "exchange", err)
	if err != nil {
		log.Warn("github code exchange failed", logger.Err(err))
		return nil, fmt.Errorf("%w: %v", ErrProviderFailed, err)
	}

	if link {
		err := s.locks.run(ctx, callerUID, func() error {
			return s.tokens.Put(ctx, callerUID, store.GitHubAccessToken, tr.AccessToken)
		})
		if err != nil {
			log.Error("persist github token failed", logger.UserID(callerUID), logger.Err(err))
			return nil, err
		}
		log.Info("github token stored for link", logger.UserID(callerUID))
		return &GitHubTokens{AccessToken: tr.AccessToken}, nil
	}

	profile, err := s.client.GetUserWithEmail(ctx, tr.AccessToken)
	metrics.ProviderRequest("github", "profile", err)
	if err != nil {
		log.Error("github profile fetch failed", logger.Err(err))
		return nil, fmt.Errorf("%w: %v", ErrProviderFailed, err)
	}
	if profile.Email == "" {
		return nil, ErrEmailMissing
	}

	uid, err := s.resolveUID(ctx, profile.Email, firebase.Profile{
		Email:       profile.Email,
		DisplayName: profile.DisplayName(),
		PhotoURL:    profile.AvatarURL,
	})
	if err != nil {
		log.Error("resolve firebase uid failed", logger.Err(err))
		return nil, err
	}

	customToken, err := s.auth.CustomToken(ctx, uid)
	if err != nil {
		log.Error("mint custom token failed", logger.UserID(uid), logger.Err(err))
		return nil, fmt.Errorf("mint custom token: %w", err)
	}

	err = s.locks.run(ctx, uid, func() error {
		return s.tokens.Put(ctx, uid, store.GitHubAccessToken, tr.AccessToken)
	})
	if err != nil {
		log.Error("persist github token failed", logger.UserID(uid), logger.Err(err))
		return nil, err
	}

	log.Info("github sign-in tokens issued", logger.UserID(uid))
	return &GitHubTokens{AccessToken: tr.AccessToken, CustomToken: customToken}, nil
}

// resolveUID busca el usuario por email y lo crea si no existe.
func (s *githubService) resolveUID(ctx context.Context, email string, p firebase.Profile) (string, error) {
	uid, err := s.auth.UserByEmail(ctx, email)
	if err == nil {
		return uid, nil
	}
	if !errors.Is(err, firebase.ErrUserNotFound) {
		return "", fmt.Errorf("get user by email: %w", err)
	}
	uid, err = s.auth.CreateUser(ctx, p)
	if err != nil {
		return "", fmt.Errorf("create user: %w", err)
	}
	logger.From(ctx).Info("firebase user created", logger.Component("broker.github"), logger.UserID(uid))
	return uid, nil
}

func (s *githubService) RevokeAccessToken(ctx context.Context, callerUID, accessToken string) error {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("broker.github"), logger.Op("RevokeAccessToken"))

	if callerUID == "" {
		return ErrUnauthenticated
	}

	return s.locks.run(ctx, callerUID, func() error {
		stored, err := s.tokens.Get(ctx, callerUID, store.GitHubAccessToken)
		if err != nil && !errors.Is(err, core.ErrNotFound) {
			return fmt.Errorf("load github token: %w", err)
		}
		token := strings.TrimSpace(accessToken)
		if token == "" {
			token = stored
		}
		if token == "" {
			return ErrTokenNotFound
		}
		if s.client == nil {
			return ErrGitHubNotConfigured
		}

		err = s.client.RevokeToken(ctx, token)
		metrics.ProviderRequest("github", "revoke", err)
		if err != nil {
			log.Error("github revoke failed", logger.UserID(callerUID), logger.Err(err))
			return fmt.Errorf("%w: %v", ErrProviderFailed, err)
		}

		// Sólo se borra lo guardado si es el token que acabamos de revocar.
		if stored != "" && stored == token {
			if err := s.tokens.Delete(ctx, callerUID, store.GitHubAccessToken); err != nil {
				return fmt.Errorf("delete github token: %w", err)
			}
		}
		log.Info("github token revoked", logger.UserID(callerUID))
		return nil
	})
}
