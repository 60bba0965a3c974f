// Package app cablea el Token Broker a partir de la configuración: abre las
// dependencias externas (Firebase, store, cache, proveedores) y arma el handler.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/dropDatabas3/devlog/internal/cache"
	"github.com/dropDatabas3/devlog/internal/config"
	"github.com/dropDatabas3/devlog/internal/firebase"
	brokerctrl "github.com/dropDatabas3/devlog/internal/http/controllers/broker"
	healthctrl "github.com/dropDatabas3/devlog/internal/http/controllers/health"
	"github.com/dropDatabas3/devlog/internal/http/router"
	brokersvc "github.com/dropDatabas3/devlog/internal/http/services/broker"
	healthsvc "github.com/dropDatabas3/devlog/internal/http/services/health"
	"github.com/dropDatabas3/devlog/internal/metrics"
	"github.com/dropDatabas3/devlog/internal/oauth/apple"
	"github.com/dropDatabas3/devlog/internal/oauth/github"
	"github.com/dropDatabas3/devlog/internal/observability/logger"
	"github.com/dropDatabas3/devlog/internal/rate"
	"github.com/dropDatabas3/devlog/internal/security/secretbox"
	"github.com/dropDatabas3/devlog/internal/store"
	"github.com/dropDatabas3/devlog/internal/store/core"
)

// Deps son las dependencias ya construidas. Tests las arman con fakes.
type Deps struct {
	Auth    firebase.Admin
	Docs    core.DocumentStore
	Cache   cache.Store
	Sealer  store.Sealer // nil guarda los tokens sin sellar (sólo dev)
	Apple   brokersvc.AppleClient
	GitHub  brokersvc.GitHubClient
	Limiter rate.Limiter // nil desactiva el rate limiting

	// Registry para /metrics; nil usa el default de Prometheus.
	Registry *prometheus.Registry
	Version  string
}

// App es el broker cableado.
type App struct {
	Handler http.Handler
	closers []func() error
}

// Close libera store y cache.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// New arma services, controllers y router a partir de deps.
func New(cfg *config.Config, deps Deps) (*App, error) {
	if deps.Auth == nil || deps.Docs == nil || deps.Cache == nil {
		return nil, errors.New("app: auth, docs and cache are required")
	}

	var reg prometheus.Registerer
	var gatherer prometheus.Gatherer
	if deps.Registry != nil {
		reg, gatherer = deps.Registry, deps.Registry
	}
	metricsHandler, err := metrics.Register(reg, gatherer)
	if err != nil {
		return nil, fmt.Errorf("app: metrics: %w", err)
	}

	// 1. Services
	svcs := brokersvc.NewServices(brokersvc.Deps{
		Apple:   deps.Apple,
		GitHub:  deps.GitHub,
		Auth:    deps.Auth,
		Tokens:  store.NewTokens(deps.Docs, deps.Sealer),
		Users:   store.NewUsers(deps.Docs),
		Locker:  deps.Cache,
		LockTTL: cfg.Locks.TTL,
	})
	health := healthsvc.NewServices(healthsvc.Deps{
		Components: map[string]healthsvc.Pinger{
			"cache": deps.Cache,
			"store": healthsvc.PingFunc(func(ctx context.Context) error {
				_, err := deps.Docs.Get(ctx, "health/ping")
				if errors.Is(err, core.ErrNotFound) {
					return nil
				}
				return err
			}),
		},
		Region:  cfg.App.Region,
		Version: deps.Version,
	})

	// 2. Controllers + router
	handler := router.NewBrokerRouter(router.BrokerRouterDeps{
		Controllers:         brokerctrl.NewControllers(svcs),
		Health:              healthctrl.NewControllers(health),
		Auth:                deps.Auth,
		Region:              cfg.App.Region,
		RequireRegionHeader: cfg.Server.EnforceRegion,
		RateLimiter:         deps.Limiter,
		Metrics:             metricsHandler,
	})

	return &App{Handler: handler}, nil
}

// Build abre todas las dependencias reales según cfg y devuelve el App listo.
func Build(ctx context.Context, cfg *config.Config, version string) (*App, error) {
	log := logger.From(ctx).With(logger.Component("app"), logger.Op("Build"))

	fb, err := firebase.Init(ctx, firebase.Config{
		ProjectID:       cfg.Firebase.ProjectID,
		CredentialsFile: cfg.Firebase.CredentialsFile,
	}, cfg.Storage.Driver == "firestore")
	if err != nil {
		return nil, err
	}

	docs, err := store.Open(ctx, store.Config{
		Driver:    cfg.Storage.Driver,
		DSN:       cfg.Storage.DSN,
		Firestore: fb.Firestore,
	})
	if err != nil {
		return nil, fmt.Errorf("app: store: %w", err)
	}
	closers := []func() error{docs.Close}

	cc, err := cache.New(cache.Config{
		Driver:     cfg.Cache.Kind,
		Addr:       cfg.Cache.Redis.Addr,
		Password:   cfg.Cache.Redis.Password,
		DB:         cfg.Cache.Redis.DB,
		Prefix:     cfg.Cache.Redis.Prefix,
		DefaultTTL: cfg.MemoryTTL(),
	})
	if err != nil {
		_ = docs.Close()
		return nil, fmt.Errorf("app: cache: %w", err)
	}
	closers = append(closers, cc.Close)

	deps := Deps{
		Auth:    fb.Auth,
		Docs:    docs,
		Cache:   cc,
		Version: version,
	}

	if cfg.Security.TokenSealingKey != "" {
		box, err := secretbox.New(cfg.Security.TokenSealingKey)
		if err != nil {
			closeAll(closers)
			return nil, fmt.Errorf("app: token sealing key: %w", err)
		}
		deps.Sealer = box
	} else {
		log.Warn("token sealing disabled: provider tokens are stored in clear")
	}

	if cfg.AppleConfigured() {
		pem, err := cfg.ApplePrivateKeyPEM()
		if err != nil {
			closeAll(closers)
			return nil, fmt.Errorf("app: apple key: %w", err)
		}
		ac, err := apple.New(apple.Config{
			TeamID:        cfg.Apple.TeamID,
			ClientID:      cfg.Apple.ClientID,
			KeyID:         cfg.Apple.KeyID,
			PrivateKeyPEM: pem,
			TokenURL:      cfg.Apple.TokenURL,
			RevokeURL:     cfg.Apple.RevokeURL,
		})
		if err != nil {
			closeAll(closers)
			return nil, err
		}
		deps.Apple = ac
	} else {
		log.Warn("apple sign in not configured")
	}

	if cfg.GitHub.ClientID != "" && cfg.GitHub.ClientSecret != "" {
		deps.GitHub = github.New(cfg.GitHub.ClientID, cfg.GitHub.ClientSecret, cfg.GitHub.RedirectURL, nil).
			WithEndpoints(github.Endpoints{
				AuthURL:  cfg.GitHub.AuthURL,
				TokenURL: cfg.GitHub.TokenURL,
				APIURL:   cfg.GitHub.APIURL,
			})
	} else {
		log.Warn("github oauth not configured")
	}

	if cfg.Rate.Enabled {
		deps.Limiter = newLimiter(cfg, cc)
	}

	a, err := New(cfg, deps)
	if err != nil {
		closeAll(closers)
		return nil, err
	}
	a.closers = closers
	return a, nil
}

// newLimiter usa Redis si el cache es Redis; si no, un limiter en memoria.
func newLimiter(cfg *config.Config, cc cache.Store) rate.Limiter {
	if rc, ok := cc.(interface{ Redis() *redis.Client }); ok {
		return rate.NewRedisLimiter(rc.Redis(), cfg.Cache.Redis.Prefix+":rl:", cfg.Rate.MaxRequests, cfg.RateWindow())
	}
	return rate.NewMemoryLimiter(cfg.Rate.MaxRequests, cfg.RateWindow())
}

func closeAll(fns []func() error) {
	for i := len(fns) - 1; i >= 0; i-- {
		_ = fns[i]()
	}
}
