package broker

import (
	"context"
	"fmt"
	"strings"

	"github.com/dropDatabas3/devlog/internal/observability/logger"
	"github.com/dropDatabas3/devlog/internal/store"
)

// AccountService cubre userCleanup y el documento de perfil.
type AccountService interface {
	// Cleanup borra recursivamente users/{uid}.
	Cleanup(ctx context.Context, callerUID, userID string) error
	GetInfo(ctx context.Context, callerUID string) (store.UserInfo, error)
	SaveInfo(ctx context.Context, callerUID string, in store.UserInfo) error
}

// AccountDeps contiene las dependencias del servicio account.
type AccountDeps struct {
	Users UserStore
	Locks *userLocks
}

type accountService struct {
	users UserStore
	locks *userLocks
}

// NewAccountService creates a new AccountService.
func NewAccountService(d AccountDeps) AccountService {
	return &accountService{users: d.Users, locks: d.Locks}
}

func (s *accountService) Cleanup(ctx context.Context, callerUID, userID string) error {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("broker.account"), logger.Op("Cleanup"))

	if callerUID == "" {
		return ErrUnauthenticated
	}
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: userId", ErrMissingArgument)
	}
	if userID != callerUID {
		log.Warn("userId mismatch", logger.UserID(callerUID))
		return ErrUserMismatch
	}

	return s.locks.run(ctx, callerUID, func() error {
		if err := s.users.DeleteAll(ctx, callerUID); err != nil {
			log.Error("recursive delete failed", logger.UserID(callerUID), logger.Err(err))
			return fmt.Errorf("delete user data: %w", err)
		}
		log.Info("user data deleted", logger.UserID(callerUID))
		return nil
	})
}

func (s *accountService) GetInfo(ctx context.Context, callerUID string) (store.UserInfo, error) {
	if callerUID == "" {
		return store.UserInfo{}, ErrUnauthenticated
	}
	return s.users.GetInfo(ctx, callerUID)
}

func (s *accountService) SaveInfo(ctx context.Context, callerUID string, in store.UserInfo) error {
	if callerUID == "" {
		return ErrUnauthenticated
	}
	return s.locks.run(ctx, callerUID, func() error {
		return s.users.MergeInfo(ctx, callerUID, in)
	})
}
