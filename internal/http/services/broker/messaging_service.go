package broker

import (
	"context"
	"fmt"
	"strings"

	"github.com/dropDatabas3/devlog/internal/store"
)

// MessagingService guarda y borra el token de push del dispositivo.
type MessagingService interface {
	Register(ctx context.Context, callerUID, token string) error
	Delete(ctx context.Context, callerUID string) error
}

// MessagingDeps contiene las dependencias del servicio messaging.
type MessagingDeps struct {
	Tokens TokenStore
	Locks  *userLocks
}

type messagingService struct {
	tokens TokenStore
	locks  *userLocks
}

// NewMessagingService creates a new MessagingService.
func NewMessagingService(d MessagingDeps) MessagingService {
	return &messagingService{tokens: d.Tokens, locks: d.Locks}
}

func (s *messagingService) Register(ctx context.Context, callerUID, token string) error {
	if callerUID == "" {
		return ErrUnauthenticated
	}
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("%w: token", ErrMissingArgument)
	}
	return s.locks.run(ctx, callerUID, func() error {
		return s.tokens.Put(ctx, callerUID, store.MessagingToken, token)
	})
}

func (s *messagingService) Delete(ctx context.Context, callerUID string) error {
	if callerUID == "" {
		return ErrUnauthenticated
	}
	return s.locks.run(ctx, callerUID, func() error {
		return s.tokens.Delete(ctx, callerUID, store.MessagingToken)
	})
}
