// Package router arma el http.Handler del broker: una ruta POST por callable
// más los endpoints operativos.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/devlog/internal/firebase"
	"github.com/dropDatabas3/devlog/internal/http/callable"
	ctrl "github.com/dropDatabas3/devlog/internal/http/controllers/broker"
	healthctrl "github.com/dropDatabas3/devlog/internal/http/controllers/health"
	mw "github.com/dropDatabas3/devlog/internal/http/middlewares"
	"github.com/dropDatabas3/devlog/internal/rate"
)

// BrokerRouterDeps contiene las dependencias para el router del broker.
type BrokerRouterDeps struct {
	Controllers         *ctrl.Controllers
	Health              *healthctrl.Controllers
	Auth                firebase.Admin
	Region              string // vacío desactiva el chequeo de región
	RequireRegionHeader bool
	RateLimiter         rate.Limiter // opcional
	Metrics             http.Handler // opcional: GET /metrics
}

type authMode int

const (
	authRequired authMode = iota
	authOptional
)

type route struct {
	fn      string
	auth    authMode
	handler http.HandlerFunc
}

// NewBrokerRouter registra todos los callables y devuelve el handler raíz.
func NewBrokerRouter(deps BrokerRouterDeps) http.Handler {
	c := deps.Controllers

	r := chi.NewRouter()
	r.Use(mw.WithRecover(), mw.WithRequestID(), mw.WithLogging())
	r.NotFound(notFound)
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		callable.WriteMethodNotAllowed(w)
	})

	if deps.Health != nil {
		r.Get("/healthz", deps.Health.Health.Healthz)
	}
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	routes := []route{
		{ctrl.FnRequestAppleRefreshToken, authRequired, c.Apple.RequestRefreshToken},
		{ctrl.FnRefreshAppleAccessToken, authRequired, c.Apple.RefreshAccessToken},
		{ctrl.FnRevokeAppleAccessToken, authRequired, c.Apple.RevokeAccessToken},
		{ctrl.FnRequestGithubTokens, authOptional, c.GitHub.RequestTokens},
		{ctrl.FnRevokeGithubAccessToken, authRequired, c.GitHub.RevokeAccessToken},
		{ctrl.FnUserCleanup, authRequired, c.Account.Cleanup},
		{ctrl.FnGetUserInfo, authRequired, c.Account.GetInfo},
		{ctrl.FnSaveUserInfo, authRequired, c.Account.SaveInfo},
		{ctrl.FnRegisterMessagingToken, authRequired, c.Messaging.Register},
		{ctrl.FnDeleteMessagingToken, authRequired, c.Messaging.Delete},
	}
	for _, rt := range routes {
		r.Method(http.MethodPost, "/"+rt.fn, callableHandler(deps, rt))
	}
	return r
}

// callableHandler crea el middleware chain de un callable. La auth corre antes
// que cualquier lectura del body.
func callableHandler(deps BrokerRouterDeps, rt route) http.Handler {
	auth := mw.RequireAuth(deps.Auth)
	if rt.auth == authOptional {
		auth = mw.OptionalAuth(deps.Auth)
	}
	chain := []mw.Middleware{
		mw.WithCallable(rt.fn),
		auth,
		mw.WithRegion(deps.Region, deps.RequireRegionHeader),
	}
	if deps.RateLimiter != nil {
		chain = append(chain, mw.WithRateLimit(mw.RateLimitConfig{
			Limiter: deps.RateLimiter,
			KeyFunc: mw.CallerRateKey,
		}))
	}
	return mw.Chain(rt.handler, chain...)
}

func notFound(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		callable.WriteMethodNotAllowed(w)
		return
	}
	callable.WriteError(w, callable.ErrUnimplemented.WithDetail("unknown function"))
}
