package broker

import (
	"net/http"

	"github.com/dropDatabas3/devlog/internal/http/callable"
	dto "github.com/dropDatabas3/devlog/internal/http/dto/broker"
	mw "github.com/dropDatabas3/devlog/internal/http/middlewares"
	svc "github.com/dropDatabas3/devlog/internal/http/services/broker"
	"github.com/dropDatabas3/devlog/internal/store"
)

// AccountController maneja userCleanup y el documento de info del usuario.
type AccountController struct {
	service svc.AccountService
}

// NewAccountController crea el controller de cuenta.
func NewAccountController(service svc.AccountService) *AccountController {
	return &AccountController{service: service}
}

// Cleanup maneja POST /userCleanup.
func (c *AccountController) Cleanup(w http.ResponseWriter, r *http.Request) {
	log := controllerLog(r, "AccountController.Cleanup")

	var req dto.UserCleanupRequest
	if !decode(w, r, &req) {
		return
	}
	if err := c.service.Cleanup(r.Context(), mw.GetUserID(r.Context()), req.UserID); err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	log.Debug("user data removed")
	callable.WriteResult(w, dto.OK)
}

// GetInfo maneja POST /getUserInfo.
func (c *AccountController) GetInfo(w http.ResponseWriter, r *http.Request) {
	log := controllerLog(r, "AccountController.GetInfo")

	if !decode(w, r, nil) {
		return
	}
	info, err := c.service.GetInfo(r.Context(), mw.GetUserID(r.Context()))
	if err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	callable.WriteResult(w, dto.UserInfo{
		DisplayName:     info.DisplayName,
		Email:           info.Email,
		CurrentProvider: info.CurrentProvider,
		PhotoURL:        info.PhotoURL,
	})
}

// SaveInfo maneja POST /saveUserInfo.
func (c *AccountController) SaveInfo(w http.ResponseWriter, r *http.Request) {
	log := controllerLog(r, "AccountController.SaveInfo")

	var req dto.UserInfo
	if !decode(w, r, &req) {
		return
	}
	err := c.service.SaveInfo(r.Context(), mw.GetUserID(r.Context()), store.UserInfo{
		DisplayName:     req.DisplayName,
		Email:           req.Email,
		CurrentProvider: req.CurrentProvider,
		PhotoURL:        req.PhotoURL,
	})
	if err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	callable.WriteResult(w, dto.OK)
}
