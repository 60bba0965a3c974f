// Package brokerclient llama a las callable functions del Token Broker.
package brokerclient

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/dropDatabas3/devlog/internal/http/callable"
	dto "github.com/dropDatabas3/devlog/internal/http/dto/broker"
	"github.com/dropDatabas3/devlog/internal/identity"
	"github.com/dropDatabas3/devlog/internal/observability/logger"
)

// RegionHeader tiene que coincidir con el middleware del broker.
const RegionHeader = "X-Devlog-Region"

// TokenFunc devuelve el ID token actual de Firebase, o "" sin sesión.
type TokenFunc func(ctx context.Context) (string, error)

// Client es seguro para uso concurrente.
type Client struct {
	baseURL string
	region  string
	token   TokenFunc
	http    *http.Client

	// maxTries acota los intentos de una llamada que el broker reporta como ABORTED
	// (otra operación tiene el lock del usuario).
	maxTries uint
}

func New(baseURL, region string, token TokenFunc) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		region:   region,
		token:    token,
		http:     &http.Client{Timeout: 30 * time.Second},
		maxTries: 4,
	}
}

func (c *Client) WithHTTPClient(h *http.Client) *Client {
	c.http = h
	return c
}

// call postea {"data": in} a /fn y decodifica el resultado en out.
func (c *Client) call(ctx context.Context, fn string, in, out any) error {
	body, err := callable.EncodeRequest(in)
	if err != nil {
		return identity.Wrap(identity.KindInternal, err, "encode "+fn)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		err := c.once(ctx, fn, body, out)
		var ce *callable.Error
		if errors.As(err, &ce) && ce.Status == callable.StatusAborted {
			logger.From(ctx).Debug("broker busy, retrying",
				logger.Component("brokerclient"), logger.Function(fn))
			return struct{}{}, err
		}
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, nil
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(c.maxTries))

	return mapError(fn, err)
}

func (c *Client) once(ctx context.Context, fn string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+fn, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.region != "" {
		req.Header.Set(RegionHeader, c.region)
	}
	if c.token != nil {
		tok, err := c.token(ctx)
		if err != nil {
			return err
		}
		if tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return callable.DecodeResponse(resp, out)
}

// mapError traduce los status de callable a kinds de identidad. Las fallas de
// transporte son Internal; quien llama valida la conectividad antes.
func mapError(fn string, err error) error {
	if err == nil {
		return nil
	}
	var ie *identity.Error
	if errors.As(err, &ie) {
		return err
	}
	var ce *callable.Error
	if !errors.As(err, &ce) {
		return identity.Wrap(identity.KindInternal, err, fn)
	}
	switch ce.Status {
	case callable.StatusUnauthenticated:
		return identity.Wrap(identity.KindAuthenticationRequired, err, fn)
	case callable.StatusNotFound:
		return identity.Wrap(identity.KindNotFound, err, fn)
	case callable.StatusInvalidArgument:
		return identity.Wrap(identity.KindInvalidArgument, err, fn)
	default:
		return identity.Wrap(identity.KindInternal, err, fn)
	}
}

// ─── Apple ───

func (c *Client) RequestAppleRefreshToken(ctx context.Context, authorizationCode, uid string) error {
	return c.call(ctx, "requestAppleRefreshToken", dto.AppleRefreshTokenRequest{
		AuthorizationCode: authorizationCode,
		UserID:            uid,
	}, nil)
}

func (c *Client) RefreshAppleAccessToken(ctx context.Context) (string, error) {
	var out dto.AppleAccessTokenResponse
	if err := c.call(ctx, "refreshAppleAccessToken", nil, &out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", identity.Errorf(identity.KindBadServerResponse, "refreshAppleAccessToken: empty token")
	}
	return out.Token, nil
}

func (c *Client) RevokeAppleAccessToken(ctx context.Context, token string) error {
	return c.call(ctx, "revokeAppleAccessToken", dto.TokenRequest{Token: token}, nil)
}

// ─── GitHub ───

// GitHubTokens es la respuesta del broker a un canje de code.
type GitHubTokens struct {
	AccessToken string
	CustomToken string
}

func (c *Client) RequestGithubTokens(ctx context.Context, code string, link bool) (*GitHubTokens, error) {
	var out dto.GitHubTokensResponse
	if err := c.call(ctx, "requestGithubTokens", dto.GitHubTokensRequest{Code: code, Link: link}, &out); err != nil {
		return nil, err
	}
	if out.AccessToken == "" {
		return nil, identity.Errorf(identity.KindBadServerResponse, "requestGithubTokens: empty access token")
	}
	return &GitHubTokens{AccessToken: out.AccessToken, CustomToken: out.CustomToken}, nil
}

// RevokeGithubAccessToken revoca accessToken, o el token guardado si está vacío.
func (c *Client) RevokeGithubAccessToken(ctx context.Context, accessToken string) error {
	return c.call(ctx, "revokeGithubAccessToken", dto.GitHubRevokeRequest{AccessToken: accessToken}, nil)
}

// ─── Cuenta ───

func (c *Client) UserCleanup(ctx context.Context, uid string) error {
	return c.call(ctx, "userCleanup", dto.UserCleanupRequest{UserID: uid}, nil)
}

// UserInfo refleja users/{uid}/userData/info.
type UserInfo struct {
	DisplayName     string
	Email           string
	CurrentProvider identity.ProviderID
	PhotoURL        string
}

func (c *Client) GetUserInfo(ctx context.Context) (UserInfo, error) {
	var out dto.UserInfo
	if err := c.call(ctx, "getUserInfo", nil, &out); err != nil {
		return UserInfo{}, err
	}
	return UserInfo{
		DisplayName:     out.DisplayName,
		Email:           out.Email,
		CurrentProvider: identity.ProviderID(out.CurrentProvider),
		PhotoURL:        out.PhotoURL,
	}, nil
}

func (c *Client) SaveUserInfo(ctx context.Context, info UserInfo) error {
	return c.call(ctx, "saveUserInfo", dto.UserInfo{
		DisplayName:     info.DisplayName,
		Email:           info.Email,
		CurrentProvider: string(info.CurrentProvider),
		PhotoURL:        info.PhotoURL,
	}, nil)
}

// ─── Messaging ───

func (c *Client) RegisterMessagingToken(ctx context.Context, token string) error {
	return c.call(ctx, "registerMessagingToken", dto.TokenRequest{Token: token}, nil)
}

func (c *Client) DeleteMessagingToken(ctx context.Context) error {
	return c.call(ctx, "deleteMessagingToken", nil, nil)
}
