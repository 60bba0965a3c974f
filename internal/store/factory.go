// Package store abre el document store configurado y expone los repositorios
// del broker (tokens de proveedores y perfil de usuario) sobre él.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gcfs "cloud.google.com/go/firestore"

	"github.com/dropDatabas3/devlog/internal/store/adapters/firestore"
	"github.com/dropDatabas3/devlog/internal/store/adapters/memory"
	"github.com/dropDatabas3/devlog/internal/store/adapters/pg"
	"github.com/dropDatabas3/devlog/internal/store/core"
)

type Config struct {
	Driver string
	DSN    string
	// Firestore es obligatorio con driver firestore (lo crea internal/firebase).
	Firestore *gcfs.Client
}

// Open devuelve el DocumentStore del driver pedido.
func Open(ctx context.Context, cfg Config) (core.DocumentStore, error) {
	switch strings.ToLower(cfg.Driver) {
	case "firestore", "":
		if cfg.Firestore == nil {
			return nil, errors.New("store: firestore client is required")
		}
		return firestore.New(cfg.Firestore), nil
	case "postgres", "pg", "postgresql":
		return pg.Open(ctx, cfg.DSN)
	case "memory":
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}
}
