// Package health contiene el service de health check del broker.
package health

import (
	"context"
	"sort"
	"time"

	dto "github.com/dropDatabas3/devlog/internal/http/dto/health"
	"github.com/dropDatabas3/devlog/internal/observability/logger"
)

// Pinger es cualquier dependencia que sabe responder si está viva (cache, store).
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapta una función a Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthService chequea las dependencias del broker.
type HealthService interface {
	Check(ctx context.Context) dto.HealthResponse
}

// Deps contiene las dependencias del service de health.
type Deps struct {
	Components map[string]Pinger
	Region     string
	Version    string
	Timeout    time.Duration // por componente; default 2s
}

// Services agrupa todos los services del dominio health.
type Services struct {
	Health HealthService
}

// NewServices crea el agregador de services health.
func NewServices(d Deps) Services {
	return Services{Health: NewHealthService(d)}
}

type healthService struct {
	deps Deps
}

// NewHealthService crea el service de health.
func NewHealthService(d Deps) HealthService {
	if d.Timeout <= 0 {
		d.Timeout = 2 * time.Second
	}
	return &healthService{deps: d}
}

func (s *healthService) Check(ctx context.Context) dto.HealthResponse {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("health"), logger.Op("Check"))

	resp := dto.HealthResponse{
		Status:     "ready",
		Region:     s.deps.Region,
		Version:    s.deps.Version,
		Components: make(map[string]dto.HealthStatus, len(s.deps.Components)),
		Timestamp:  time.Now().UTC(),
	}

	names := make([]string, 0, len(s.deps.Components))
	for name := range s.deps.Components {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		cctx, cancel := context.WithTimeout(ctx, s.deps.Timeout)
		err := s.deps.Components[name].Ping(cctx)
		cancel()
		if err != nil {
			log.Warn("component unhealthy", logger.Component(name), logger.Err(err))
			resp.Components[name] = dto.HealthStatus{Status: "error", Message: err.Error()}
			resp.Status = "unavailable"
			continue
		}
		resp.Components[name] = dto.HealthStatus{Status: "ok"}
	}
	return resp
}
