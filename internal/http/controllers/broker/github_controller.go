package broker

import (
	"net/http"

	"github.com/dropDatabas3/devlog/internal/http/callable"
	dto "github.com/dropDatabas3/devlog/internal/http/dto/broker"
	mw "github.com/dropDatabas3/devlog/internal/http/middlewares"
	svc "github.com/dropDatabas3/devlog/internal/http/services/broker"
)

// GitHubController maneja los callables de GitHub OAuth.
type GitHubController struct {
	service svc.GitHubService
}

// NewGitHubController crea el controller de GitHub.
func NewGitHubController(service svc.GitHubService) *GitHubController {
	return &GitHubController{service: service}
}

// RequestTokens maneja POST /requestGithubTokens. La auth es opcional salvo con link.
func (c *GitHubController) RequestTokens(w http.ResponseWriter, r *http.Request) {
	log := controllerLog(r, "GitHubController.RequestTokens")

	var req dto.GitHubTokensRequest
	if !decode(w, r, &req) {
		return
	}
	out, err := c.service.RequestTokens(r.Context(), mw.GetUserID(r.Context()), req.Code, req.Link)
	if err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	callable.WriteResult(w, dto.GitHubTokensResponse{
		AccessToken: out.AccessToken,
		CustomToken: out.CustomToken,
	})
}

// RevokeAccessToken maneja POST /revokeGithubAccessToken.
func (c *GitHubController) RevokeAccessToken(w http.ResponseWriter, r *http.Request) {
	log := controllerLog(r, "GitHubController.RevokeAccessToken")

	var req dto.GitHubRevokeRequest
	if !decode(w, r, &req) {
		return
	}
	if err := c.service.RevokeAccessToken(r.Context(), mw.GetUserID(r.Context()), req.AccessToken); err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	callable.WriteResult(w, dto.OK)
}
