package broker

import (
	"net/http"

	"github.com/dropDatabas3/devlog/internal/http/callable"
	dto "github.com/dropDatabas3/devlog/internal/http/dto/broker"
	mw "github.com/dropDatabas3/devlog/internal/http/middlewares"
	svc "github.com/dropDatabas3/devlog/internal/http/services/broker"
)

// AppleController maneja los callables de Sign in with Apple.
type AppleController struct {
	service svc.AppleService
}

// NewAppleController crea el controller de Apple.
func NewAppleController(service svc.AppleService) *AppleController {
	return &AppleController{service: service}
}

// RequestRefreshToken maneja POST /requestAppleRefreshToken.
func (c *AppleController) RequestRefreshToken(w http.ResponseWriter, r *http.Request) {
	log := controllerLog(r, "AppleController.RequestRefreshToken")

	var req dto.AppleRefreshTokenRequest
	if !decode(w, r, &req) {
		return
	}
	uid := mw.GetUserID(r.Context())
	if err := c.service.StoreRefreshToken(r.Context(), uid, req.UserID, req.AuthorizationCode); err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	log.Debug("apple refresh token stored")
	callable.WriteResult(w, dto.OK)
}

// RefreshAccessToken maneja POST /refreshAppleAccessToken.
func (c *AppleController) RefreshAccessToken(w http.ResponseWriter, r *http.Request) {
	log := controllerLog(r, "AppleController.RefreshAccessToken")

	if !decode(w, r, nil) {
		return
	}
	token, err := c.service.RefreshAccessToken(r.Context(), mw.GetUserID(r.Context()))
	if err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	callable.WriteResult(w, dto.AppleAccessTokenResponse{Token: token})
}

// RevokeAccessToken maneja POST /revokeAppleAccessToken.
func (c *AppleController) RevokeAccessToken(w http.ResponseWriter, r *http.Request) {
	log := controllerLog(r, "AppleController.RevokeAccessToken")

	var req dto.TokenRequest
	if !decode(w, r, &req) {
		return
	}
	if err := c.service.RevokeAccessToken(r.Context(), mw.GetUserID(r.Context()), req.Token); err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	log.Debug("apple access token revoked")
	callable.WriteResult(w, dto.OK)
}
