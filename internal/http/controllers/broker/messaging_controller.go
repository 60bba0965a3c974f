package broker

import (
	"net/http"

	"github.com/dropDatabas3/devlog/internal/http/callable"
	dto "github.com/dropDatabas3/devlog/internal/http/dto/broker"
	mw "github.com/dropDatabas3/devlog/internal/http/middlewares"
	svc "github.com/dropDatabas3/devlog/internal/http/services/broker"
)

// MessagingController maneja el token de mensajería del dispositivo.
type MessagingController struct {
	service svc.MessagingService
}

// NewMessagingController crea el controller de mensajería.
func NewMessagingController(service svc.MessagingService) *MessagingController {
	return &MessagingController{service: service}
}

// Register maneja POST /registerMessagingToken.
func (c *MessagingController) Register(w http.ResponseWriter, r *http.Request) {
	log := controllerLog(r, "MessagingController.Register")

	var req dto.TokenRequest
	if !decode(w, r, &req) {
		return
	}
	if err := c.service.Register(r.Context(), mw.GetUserID(r.Context()), req.Token); err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	callable.WriteResult(w, dto.OK)
}

// Delete maneja POST /deleteMessagingToken.
func (c *MessagingController) Delete(w http.ResponseWriter, r *http.Request) {
	log := controllerLog(r, "MessagingController.Delete")

	if !decode(w, r, nil) {
		return
	}
	if err := c.service.Delete(r.Context(), mw.GetUserID(r.Context())); err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	callable.WriteResult(w, dto.OK)
}
