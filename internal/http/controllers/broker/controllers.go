// Package broker contiene los controllers HTTP de los callables del Token Broker.
package broker

import svc "github.com/dropDatabas3/devlog/internal/http/services/broker"

// Nombres de los callables tal como aparecen en la URL.
const (
	FnRequestAppleRefreshToken = "requestAppleRefreshToken"
	FnRefreshAppleAccessToken  = "refreshAppleAccessToken"
	FnRevokeAppleAccessToken   = "revokeAppleAccessToken"
	FnRequestGithubTokens      = "requestGithubTokens"
	FnRevokeGithubAccessToken  = "revokeGithubAccessToken"
	FnUserCleanup              = "userCleanup"
	FnRegisterMessagingToken   = "registerMessagingToken"
	FnDeleteMessagingToken     = "deleteMessagingToken"
	FnGetUserInfo              = "getUserInfo"
	FnSaveUserInfo             = "saveUserInfo"
)

// Controllers agrupa todos los controllers del broker.
type Controllers struct {
	Apple     *AppleController
	GitHub    *GitHubController
	Account   *AccountController
	Messaging *MessagingController
}

// NewControllers crea el agregador de controllers.
func NewControllers(s svc.Services) *Controllers {
	return &Controllers{
		Apple:     NewAppleController(s.Apple),
		GitHub:    NewGitHubController(s.GitHub),
		Account:   NewAccountController(s.Account),
		Messaging: NewMessagingController(s.Messaging),
	}
}
