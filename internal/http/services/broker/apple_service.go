package broker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/dropDatabas3/devlog/internal/metrics"
	"github.com/dropDatabas3/devlog/internal/observability/logger"
	"github.com/dropDatabas3/devlog/internal/store"
	"github.com/dropDatabas3/devlog/internal/store/core"
)

// AppleService implementa requestAppleRefreshToken, refreshAppleAccessToken y
// revokeAppleAccessToken. El uid siempre es el del llamador autenticado.
type AppleService interface {
	// StoreRefreshToken intercambia code y guarda sólo el refresh token.
	StoreRefreshToken(ctx context.Context, callerUID, userID, code string) error
	// RefreshAccessToken devuelve un access token nuevo; nunca el refresh token.
	RefreshAccessToken(ctx context.Context, callerUID string) (string, error)
	// RevokeAccessToken revoca token en Apple y borra el refresh token guardado.
	RevokeAccessToken(ctx context.Context, callerUID, token string) error
}

// AppleDeps contiene las dependencias del servicio apple.
type AppleDeps struct {
	Client AppleClient
	Tokens TokenStore
	Locks  *userLocks
}

type appleService struct {
	client AppleClient
	tokens TokenStore
	locks  *userLocks
	flight singleflight.Group
}

// NewAppleService creates a new AppleService.
func NewAppleService(d AppleDeps) AppleService {
	return &appleService{client: d.Client, tokens: d.Tokens, locks: d.Locks}
}

func (s *appleService) StoreRefreshToken(ctx context.Context, callerUID, userID, code string) error {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("broker.apple"), logger.Op("StoreRefreshToken"))

	if callerUID == "" {
		return ErrUnauthenticated
	}
	if strings.TrimSpace(code) == "" || strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: authorizationCode and userId", ErrMissingArgument)
	}
	if userID != callerUID {
		log.Warn("userId mismatch", logger.UserID(callerUID))
		return ErrUserMismatch
	}
	if s.client == nil {
		log.Error("apple not configured")
		return ErrAppleNotConfigured
	}

	return s.locks.run(ctx, callerUID, func() error {
		tr, err := s.client.ExchangeCode(ctx, code)
		metrics.ProviderRequest("apple", "exchange", err)
		if err != nil {
			log.Error("apple code exchange failed", logger.UserID(callerUID), logger.Err(err))
			return fmt.Errorf("%w: %v", ErrProviderFailed, err)
		}
		if err := s.tokens.Put(ctx, callerUID, store.AppleRefreshToken, tr.RefreshToken); err != nil {
			log.Error("persist apple refresh token failed", logger.UserID(callerUID), logger.Err(err))
			return fmt.Errorf("persist refresh token: %w", err)
		}
		log.Info("apple refresh token stored", logger.UserID(callerUID))
		return nil
	})
}

func (s *appleService) RefreshAccessToken(ctx context.Context, callerUID string) (string, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("broker.apple"), logger.Op("RefreshAccessToken"))

	if callerUID == "" {
		return "", ErrUnauthenticated
	}

	// Llamadas concurrentes del mismo uid comparten un único refresh.
	v, err, shared := s.flight.Do(callerUID, func() (any, error) {
		refresh, err := s.tokens.Get(ctx, callerUID, store.AppleRefreshToken)
		if errors.Is(err, core.ErrNotFound) {
			return "", ErrTokenNotFound
		}
		if err != nil {
			return "", fmt.Errorf("load refresh token: %w", err)
		}
		if s.client == nil {
			return "", ErrAppleNotConfigured
		}
		tr, err := s.client.Refresh(ctx, refresh)
		metrics.ProviderRequest("apple", "refresh", err)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrProviderFailed, err)
		}
		return tr.AccessToken, nil
	})
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			log.Info("no apple refresh token stored", logger.UserID(callerUID))
		} else {
			log.Error("apple refresh failed", logger.UserID(callerUID), logger.Err(err))
		}
		return "", err
	}
	log.Debug("apple access token refreshed", logger.UserID(callerUID), logger.Bool("shared", shared))
	return v.(string), nil
}

func (s *appleService) RevokeAccessToken(ctx context.Context, callerUID, token string) error {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("broker.apple"), logger.Op("RevokeAccessToken"))

	if callerUID == "" {
		return ErrUnauthenticated
	}
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("%w: token", ErrMissingArgument)
	}
	if s.client == nil {
		return ErrAppleNotConfigured
	}

	return s.locks.run(ctx, callerUID, func() error {
		err := s.client.Revoke(ctx, token, "access_token")
		metrics.ProviderRequest("apple", "revoke", err)
		if err != nil {
			log.Error("apple revoke failed", logger.UserID(callerUID), logger.Err(err))
			return fmt.Errorf("%w: %v", ErrProviderFailed, err)
		}
		// Revocar invalida toda la autorización, incluido el refresh token.
		if err := s.tokens.Delete(ctx, callerUID, store.AppleRefreshToken); err != nil {
			log.Error("delete apple refresh token failed", logger.UserID(callerUID), logger.Err(err))
			return fmt.Errorf("delete refresh token: %w", err)
		}
		log.Info("apple token revoked", logger.UserID(callerUID))
		return nil
	})
}
