package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/devlog/internal/cache"
	"github.com/dropDatabas3/devlog/internal/config"
	"github.com/dropDatabas3/devlog/internal/firebase"
	"github.com/dropDatabas3/devlog/internal/oauth/apple"
	"github.com/dropDatabas3/devlog/internal/rate"
	"github.com/dropDatabas3/devlog/internal/store/adapters/memory"
)

type fakeAdmin struct{}

func (fakeAdmin) VerifyIDToken(_ context.Context, tok string) (string, error) {
	switch tok {
	case "tok-u1":
		return "u1", nil
	case "tok-u2":
		return "u2", nil
	}
	return "", errors.New("invalid token")
}

func (fakeAdmin) UserByEmail(context.Context, string) (string, error) {
	return "", firebase.ErrUserNotFound
}

func (fakeAdmin) CreateUser(context.Context, firebase.Profile) (string, error) { return "new", nil }

func (fakeAdmin) CustomToken(_ context.Context, uid string) (string, error) { return "ct-" + uid, nil }

type stubApple struct{ refreshes int }

func (s *stubApple) ExchangeCode(_ context.Context, code string) (*apple.TokenResponse, error) {
	return &apple.TokenResponse{AccessToken: "at", RefreshToken: "rt-" + code}, nil
}

func (s *stubApple) Refresh(_ context.Context, rt string) (*apple.TokenResponse, error) {
	s.refreshes++
	return &apple.TokenResponse{AccessToken: "fresh-" + rt}, nil
}

func (s *stubApple) Revoke(context.Context, string, string) error { return nil }

type fixture struct {
	handler http.Handler
	apple   *stubApple
}

func newFixture(t *testing.T, limiter rate.Limiter) *fixture {
	t.Helper()
	cfg := &config.Config{}
	cfg.App.Region = "us-central1"
	cfg.Locks.TTL = 5 * time.Second

	ap := &stubApple{}
	a, err := New(cfg, Deps{
		Auth:     fakeAdmin{},
		Docs:     memory.New(),
		Cache:    cache.NewMemory("t", time.Minute),
		Apple:    ap,
		Limiter:  limiter,
		Registry: prometheus.NewRegistry(),
	})
	require.NoError(t, err)
	return &fixture{handler: a.Handler, apple: ap}
}

type reply struct {
	code   int
	header http.Header
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

func (f *fixture) call(t *testing.T, method, fn, token string, data any, hdr ...string) reply {
	t.Helper()
	var body bytes.Buffer
	if data != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(map[string]any{"data": data}))
	}
	req := httptest.NewRequest(method, "/"+fn, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)

	out := reply{code: rr.Code, header: rr.Header()}
	if rr.Body.Len() > 0 && rr.Header().Get("Content-Type") != "" {
		_ = json.Unmarshal(rr.Body.Bytes(), &out)
	}
	return out
}

func TestCallable_RequiresAuthBeforeValidation(t *testing.T) {
	f := newFixture(t, nil)

	// body inválido pero sin token: gana UNAUTHENTICATED
	r := f.call(t, http.MethodPost, "requestAppleRefreshToken", "", map[string]any{})
	assert.Equal(t, http.StatusUnauthorized, r.code)
	require.NotNil(t, r.Error)
	assert.Equal(t, "UNAUTHENTICATED", r.Error.Status)

	r = f.call(t, http.MethodPost, "userCleanup", "garbage", map[string]any{"userId": "u1"})
	assert.Equal(t, http.StatusUnauthorized, r.code)
}

func TestCallable_UserIDMismatch(t *testing.T) {
	f := newFixture(t, nil)

	r := f.call(t, http.MethodPost, "requestAppleRefreshToken", "tok-u1",
		map[string]any{"authorizationCode": "c", "userId": "u2"})
	assert.Equal(t, http.StatusBadRequest, r.code)
	require.NotNil(t, r.Error)
	assert.Equal(t, "INVALID_ARGUMENT", r.Error.Status)

	r = f.call(t, http.MethodPost, "userCleanup", "tok-u1", map[string]any{"userId": "u2"})
	assert.Equal(t, "INVALID_ARGUMENT", r.Error.Status)
}

func TestCallable_AppleRoundTrip(t *testing.T) {
	f := newFixture(t, nil)

	r := f.call(t, http.MethodPost, "refreshAppleAccessToken", "tok-u1", map[string]any{})
	assert.Equal(t, http.StatusNotFound, r.code)
	assert.Equal(t, 0, f.apple.refreshes)

	r = f.call(t, http.MethodPost, "requestAppleRefreshToken", "tok-u1",
		map[string]any{"authorizationCode": "abc", "userId": "u1"})
	require.Equal(t, http.StatusOK, r.code)
	assert.JSONEq(t, `{"success":true}`, string(r.Result))

	r = f.call(t, http.MethodPost, "refreshAppleAccessToken", "tok-u1", nil)
	require.Equal(t, http.StatusOK, r.code)
	assert.JSONEq(t, `{"token":"fresh-rt-abc"}`, string(r.Result))
	assert.Equal(t, "no-store", r.header.Get("Cache-Control"))

	// otro uid no ve el token de u1
	r = f.call(t, http.MethodPost, "refreshAppleAccessToken", "tok-u2", nil)
	assert.Equal(t, http.StatusNotFound, r.code)
}

func TestCallable_UserInfo(t *testing.T) {
	f := newFixture(t, nil)

	r := f.call(t, http.MethodPost, "saveUserInfo", "tok-u1",
		map[string]any{"displayName": "Ada", "currentProvider": "github.com"})
	require.Equal(t, http.StatusOK, r.code)

	r = f.call(t, http.MethodPost, "saveUserInfo", "tok-u1", map[string]any{"email": "ada@example.com"})
	require.Equal(t, http.StatusOK, r.code)

	r = f.call(t, http.MethodPost, "getUserInfo", "tok-u1", nil)
	require.Equal(t, http.StatusOK, r.code)
	assert.JSONEq(t,
		`{"displayName":"Ada","email":"ada@example.com","currentProvider":"github.com","photoURL":""}`,
		string(r.Result))

	r = f.call(t, http.MethodPost, "userCleanup", "tok-u1", map[string]any{"userId": "u1"})
	require.Equal(t, http.StatusOK, r.code)

	r = f.call(t, http.MethodPost, "getUserInfo", "tok-u1", nil)
	require.Equal(t, http.StatusOK, r.code)
	assert.JSONEq(t, `{"displayName":"","email":"","currentProvider":"","photoURL":""}`, string(r.Result))
}

func TestCallable_GitHubNotConfigured(t *testing.T) {
	f := newFixture(t, nil)

	// sin auth: sign-in permitido, pero sin cliente GitHub es INTERNAL
	r := f.call(t, http.MethodPost, "requestGithubTokens", "", map[string]any{"code": "x"})
	assert.Equal(t, http.StatusInternalServerError, r.code)
	require.NotNil(t, r.Error)
	assert.Equal(t, "INTERNAL", r.Error.Status)

	// link exige auth
	r = f.call(t, http.MethodPost, "requestGithubTokens", "", map[string]any{"code": "x", "link": true})
	assert.Equal(t, http.StatusUnauthorized, r.code)
}

func TestRouter_MethodAndUnknownFunction(t *testing.T) {
	f := newFixture(t, nil)

	r := f.call(t, http.MethodGet, "userCleanup", "tok-u1", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, r.code)
	assert.Equal(t, http.MethodPost, r.header.Get("Allow"))
	require.NotNil(t, r.Error)

	r = f.call(t, http.MethodPost, "doesNotExist", "tok-u1", nil)
	assert.Equal(t, http.StatusNotImplemented, r.code)
	require.NotNil(t, r.Error)
	assert.Equal(t, "UNIMPLEMENTED", r.Error.Status)
}

func TestRouter_RegionMismatch(t *testing.T) {
	f := newFixture(t, nil)

	r := f.call(t, http.MethodPost, "getUserInfo", "tok-u1", nil, "X-Devlog-Region", "europe-west1")
	assert.Equal(t, http.StatusForbidden, r.code)
	require.NotNil(t, r.Error)
	assert.Equal(t, "PERMISSION_DENIED", r.Error.Status)

	r = f.call(t, http.MethodPost, "getUserInfo", "tok-u1", nil, "X-Devlog-Region", "us-central1")
	assert.Equal(t, http.StatusOK, r.code)
}

func TestRouter_RateLimit(t *testing.T) {
	f := newFixture(t, rate.NewMemoryLimiter(2, time.Hour))

	for i := 0; i < 2; i++ {
		r := f.call(t, http.MethodPost, "getUserInfo", "tok-u1", nil)
		require.Equal(t, http.StatusOK, r.code)
	}
	r := f.call(t, http.MethodPost, "getUserInfo", "tok-u1", nil)
	assert.Equal(t, http.StatusTooManyRequests, r.code)
	assert.NotEmpty(t, r.header.Get("Retry-After"))
	require.NotNil(t, r.Error)
	assert.Equal(t, "RESOURCE_EXHAUSTED", r.Error.Status)

	// la cuota es por uid
	r = f.call(t, http.MethodPost, "getUserInfo", "tok-u2", nil)
	assert.Equal(t, http.StatusOK, r.code)
}

func TestRouter_Healthz(t *testing.T) {
	f := newFixture(t, nil)

	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Status     string         `json:"status"`
		Region     string         `json:"region"`
		Components map[string]any `json:"components"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ready", body.Status)
	assert.Equal(t, "us-central1", body.Region)
	assert.Len(t, body.Components, 2)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}
