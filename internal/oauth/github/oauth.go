// Package github implements OAuth 2.0 authentication with GitHub.
// Unlike Google OIDC, GitHub uses OAuth 2.0 without ID tokens,
// requiring a separate API call to fetch user information.
//
// The same client serves the broker (code exchange, revocation) and the CLI
// (authorize URL, profile fetch); the latter never holds the client secret.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Endpoints can be overridden for GitHub Enterprise or tests.
type Endpoints struct {
	AuthURL  string // https://github.com/login/oauth/authorize
	TokenURL string // https://github.com/login/oauth/access_token
	APIURL   string // https://api.github.com
}

// DefaultEndpoints are the public github.com endpoints.
var DefaultEndpoints = Endpoints{
	AuthURL:  "https://github.com/login/oauth/authorize",
	TokenURL: "https://github.com/login/oauth/access_token",
	APIURL:   "https://api.github.com",
}

var (
	ErrNoEmail = errors.New("github: no email found")
	// ErrRevokeFailed is returned when the token-deletion endpoint answers anything but 204.
	ErrRevokeFailed = errors.New("github: token revocation failed")
)

// OAuth is the GitHub OAuth 2.0 client.
type OAuth struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	Endpoints    Endpoints

	http *http.Client
}

// New creates a new GitHub OAuth client.
func New(clientID, clientSecret, redirectURL string, scopes []string) *OAuth {
	if len(scopes) == 0 {
		scopes = []string{"read:user", "user:email"}
	}
	return &OAuth{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       scopes,
		Endpoints:    DefaultEndpoints,
		http:         &http.Client{Timeout: 10 * time.Second},
	}
}

// WithEndpoints applies the non-empty overrides in e.
func (g *OAuth) WithEndpoints(e Endpoints) *OAuth {
	if e.AuthURL != "" {
		g.Endpoints.AuthURL = e.AuthURL
	}
	if e.TokenURL != "" {
		g.Endpoints.TokenURL = e.TokenURL
	}
	if e.APIURL != "" {
		g.Endpoints.APIURL = strings.TrimRight(e.APIURL, "/")
	}
	return g
}

// WithHTTPClient swaps the underlying client (tests).
func (g *OAuth) WithHTTPClient(c *http.Client) *OAuth {
	g.http = c
	return g
}

// AuthURL builds the authorization URL for GitHub OAuth.
func (g *OAuth) AuthURL(state string) string {
	u, _ := url.Parse(g.Endpoints.AuthURL)
	q := u.Query()
	q.Set("client_id", g.ClientID)
	if g.RedirectURL != "" {
		q.Set("redirect_uri", g.RedirectURL)
	}
	q.Set("scope", strings.Join(g.Scopes, " "))
	q.Set("state", state)
	q.Set("allow_signup", "true")
	u.RawQuery = q.Encode()
	return u.String()
}

// TokenResponse is the response from GitHub's token endpoint.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Scope       string `json:"scope"`
	Error       string `json:"error,omitempty"`
	ErrorDesc   string `json:"error_description,omitempty"`
}

// ExchangeCode exchanges an authorization code for an access token.
func (g *OAuth) ExchangeCode(ctx context.Context, code string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("client_id", g.ClientID)
	form.Set("client_secret", g.ClientSecret)
	form.Set("code", code)
	if g.RedirectURL != "" {
		form.Set("redirect_uri", g.RedirectURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.Endpoints.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var tr TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}

	// GitHub answers 200 with an error body for bad codes.
	if tr.Error != "" {
		return nil, fmt.Errorf("github oauth error: %s - %s", tr.Error, tr.ErrorDesc)
	}

	if tr.AccessToken == "" {
		return nil, fmt.Errorf("no access_token in response")
	}

	return &tr, nil
}

// UserInfo contains user information from GitHub API.
type UserInfo struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

// DisplayName prefers the full name and falls back to the login.
func (u *UserInfo) DisplayName() string {
	if strings.TrimSpace(u.Name) != "" {
		return u.Name
	}
	return u.Login
}

// EmailInfo contains email information from GitHub API.
type EmailInfo struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

func (g *OAuth) apiGet(ctx context.Context, path, accessToken string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.Endpoints.APIURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := g.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("github api error: %s status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

// GetUserInfo fetches user information using the access token.
func (g *OAuth) GetUserInfo(ctx context.Context, accessToken string) (*UserInfo, error) {
	var info UserInfo
	if err := g.apiGet(ctx, "/user", accessToken, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// GetPrimaryEmail fetches the user's primary verified email.
// This is needed because some GitHub users have private emails.
func (g *OAuth) GetPrimaryEmail(ctx context.Context, accessToken string) (*EmailInfo, error) {
	var emails []EmailInfo
	if err := g.apiGet(ctx, "/user/emails", accessToken, &emails); err != nil {
		return nil, err
	}

	for _, e := range emails {
		if e.Primary && e.Verified {
			return &e, nil
		}
	}
	for _, e := range emails {
		if e.Verified {
			return &e, nil
		}
	}
	if len(emails) > 0 {
		return &emails[0], nil
	}
	return nil, ErrNoEmail
}

// GetUserWithEmail fetches user info and ensures we have an email.
// GitHub sometimes returns empty email in user info, so we fetch from /user/emails.
func (g *OAuth) GetUserWithEmail(ctx context.Context, accessToken string) (*UserInfo, error) {
	info, err := g.GetUserInfo(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	if info.Email == "" {
		emailInfo, err := g.GetPrimaryEmail(ctx, accessToken)
		if err != nil {
			return nil, fmt.Errorf("failed to get email: %w", err)
		}
		info.Email = emailInfo.Email
	}

	return info, nil
}

// RevokeToken deletes an OAuth grant token via
// DELETE /applications/{client_id}/token, authenticated with the app's
// client credentials. Any status other than 204 is an error.
func (g *OAuth) RevokeToken(ctx context.Context, accessToken string) error {
	body, err := json.Marshal(map[string]string{"access_token": accessToken})
	if err != nil {
		return err
	}
	endpoint := fmt.Sprintf("%s/applications/%s/token", g.Endpoints.APIURL, url.PathEscape(g.ClientID))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.SetBasicAuth(g.ClientID, g.ClientSecret)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("%w: status %d", ErrRevokeFailed, resp.StatusCode)
	}
	return nil
}
