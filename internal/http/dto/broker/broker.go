// Package broker contiene los DTOs de los callables del Token Broker.
package broker

// AppleRefreshTokenRequest es el input de requestAppleRefreshToken.
type AppleRefreshTokenRequest struct {
	AuthorizationCode string `json:"authorizationCode"`
	UserID            string `json:"userId"`
}

// AppleAccessTokenResponse es la salida de refreshAppleAccessToken.
type AppleAccessTokenResponse struct {
	Token string `json:"token"`
}

// TokenRequest lleva un único token (revokeAppleAccessToken, registerMessagingToken).
type TokenRequest struct {
	Token string `json:"token"`
}

// GitHubTokensRequest es el input de requestGithubTokens.
type GitHubTokensRequest struct {
	Code string `json:"code"`
	Link bool   `json:"link,omitempty"`
}

// GitHubTokensResponse es la salida de requestGithubTokens.
type GitHubTokensResponse struct {
	AccessToken string `json:"accessToken"`
	CustomToken string `json:"customToken"`
}

// GitHubRevokeRequest es el input de revokeGithubAccessToken.
type GitHubRevokeRequest struct {
	AccessToken string `json:"accessToken,omitempty"`
}

// UserCleanupRequest es el input de userCleanup.
type UserCleanupRequest struct {
	UserID string `json:"userId"`
}

// UserInfo es el documento users/{uid}/userData/info.
type UserInfo struct {
	DisplayName     string `json:"displayName"`
	Email           string `json:"email"`
	CurrentProvider string `json:"currentProvider"`
	PhotoURL        string `json:"photoURL"`
}

// SuccessResponse es la salida {success: true}.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// OK es la respuesta estándar de las operaciones sin resultado.
var OK = SuccessResponse{Success: true}
