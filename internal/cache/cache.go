// Package cache provee abstracciones para caching y locks distribuidos con soporte multi-backend.
//
// Soporta:
//   - Memory (in-process, go-cache; para desarrollo/testing o una sola instancia)
//   - Redis (distribuido, para producción)
//
// El broker lo usa para serializar operaciones por uid (Locker) y, vía el
// cliente Redis subyacente, para el rate limiting.
package cache

import (
	"context"
	"errors"
	"time"
)

// Client define las operaciones de cache.
type Client interface {
	// Get obtiene un valor. Retorna ErrNotFound si no existe.
	Get(ctx context.Context, key string) (string, error)

	// Set guarda un valor con TTL opcional.
	// Si ttl es 0, usa el TTL default del backend (memory) o no expira (redis).
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete elimina una key.
	Delete(ctx context.Context, key string) error

	// Exists verifica si una key existe.
	Exists(ctx context.Context, key string) (bool, error)

	// Ping verifica la conexión.
	Ping(ctx context.Context) error

	// Close cierra la conexión.
	Close() error
}

// Locker provee exclusión mutua best-effort con expiración.
type Locker interface {
	// TryLock intenta tomar key por ttl. Si ya está tomada retorna ErrLocked.
	// La función devuelta libera el lock sólo si sigue siendo del llamador.
	TryLock(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// Store agrupa ambas capacidades; los dos backends la implementan.
type Store interface {
	Client
	Locker
}

// Config configuración para crear un cliente de cache.
type Config struct {
	Driver     string // "memory" | "redis"
	Addr       string
	Password   string
	DB         int
	Prefix     string // Prefijo para todas las keys
	DefaultTTL time.Duration
}

// Errores de cache.
var (
	ErrNotFound = errors.New("cache: key not found")
	ErrLocked   = errors.New("cache: key is locked")
)

// IsNotFound verifica si el error es porque la key no existe.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// New crea un cliente de cache según la configuración.
func New(cfg Config) (Store, error) {
	switch cfg.Driver {
	case "redis":
		return NewRedis(cfg)
	default:
		return NewMemory(cfg.Prefix, cfg.DefaultTTL), nil
	}
}

func prefixed(prefix, k string) string {
	if prefix == "" {
		return k
	}
	return prefix + ":" + k
}
