package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/dropDatabas3/devlog/internal/identity"
	"github.com/dropDatabas3/devlog/internal/observability/logger"
)

// Endpoints se puede apuntar al emulador de Auth o a un server de test.
type Endpoints struct {
	IdentityToolkit string // https://identitytoolkit.googleapis.com/v1
	SecureToken     string // https://securetoken.googleapis.com/v1
}

var DefaultEndpoints = Endpoints{
	IdentityToolkit: "https://identitytoolkit.googleapis.com/v1",
	SecureToken:     "https://securetoken.googleapis.com/v1",
}

// Client es un cliente REST de Firebase Auth atado a una web API key.
type Client struct {
	apiKey    string
	endpoints Endpoints
	http      *http.Client
	now       func() time.Time
}

func New(apiKey string) *Client {
	return &Client{
		apiKey:    apiKey,
		endpoints: DefaultEndpoints,
		http:      &http.Client{Timeout: 20 * time.Second},
		now:       time.Now,
	}
}

func (c *Client) WithEndpoints(e Endpoints) *Client {
	if e.IdentityToolkit != "" {
		c.endpoints.IdentityToolkit = strings.TrimRight(e.IdentityToolkit, "/")
	}
	if e.SecureToken != "" {
		c.endpoints.SecureToken = strings.TrimRight(e.SecureToken, "/")
	}
	return c
}

func (c *Client) WithHTTPClient(h *http.Client) *Client {
	c.http = h
	return c
}

// ─── Sign-in ───

// SignIn abre una sesión a partir de una credencial de proveedor. El conjunto
// de proveedores vinculados sale de un accounts:lookup posterior.
func (c *Client) SignIn(ctx context.Context, cred identity.Credential) (*Session, *IdPProfile, error) {
	body, err := idpBody(cred)
	if err != nil {
		return nil, nil, err
	}
	return c.signInWithIdp(ctx, body)
}

// SignInWithCustomToken abre una sesión con un custom token emitido por el broker.
func (c *Client) SignInWithCustomToken(ctx context.Context, token string) (*Session, error) {
	var out tokenFields
	err := c.post(ctx, "accounts:signInWithCustomToken", map[string]any{
		"token":             token,
		"returnSecureToken": true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return c.complete(ctx, out)
}

// Link vincula el proveedor de cred al usuario de la sesión y devuelve la sesión
// actualizada (Firebase rota los tokens en el link).
func (c *Client) Link(ctx context.Context, idToken string, cred identity.Credential) (*Session, *IdPProfile, error) {
	body, err := idpBody(cred)
	if err != nil {
		return nil, nil, err
	}
	body["idToken"] = idToken
	return c.signInWithIdp(ctx, body)
}

type idpResponse struct {
	tokenFields
	ProviderID   string `json:"providerId"`
	FederatedID  string `json:"federatedId"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName"`
	PhotoURL     string `json:"photoUrl"`
	ErrorMessage string `json:"errorMessage"`
	NeedConfirm  bool   `json:"needConfirmation"`
}

func (c *Client) signInWithIdp(ctx context.Context, body map[string]any) (*Session, *IdPProfile, error) {
	var out idpResponse
	if err := c.post(ctx, "accounts:signInWithIdp", body, &out); err != nil {
		return nil, nil, err
	}
	// Firebase responde 200 con errorMessage en algunos conflictos de link.
	if out.ErrorMessage != "" {
		return nil, nil, mapCode(out.ErrorMessage, nil)
	}
	if out.NeedConfirm {
		return nil, nil, identity.Errorf(identity.KindInternal, "account exists with different credential")
	}
	sess, err := c.complete(ctx, out.tokenFields)
	if err != nil {
		return nil, nil, err
	}
	return sess, &IdPProfile{
		Provider:    identity.ProviderID(out.ProviderID),
		FederatedID: out.FederatedID,
		Email:       out.Email,
		DisplayName: out.DisplayName,
		PhotoURL:    out.PhotoURL,
	}, nil
}

// idpBody arma el request de signInWithIdp para cred.
func idpBody(cred identity.Credential) (map[string]any, error) {
	post := url.Values{"providerId": {string(cred.Provider)}}
	switch cred.Provider {
	case identity.Apple:
		if cred.IDToken == "" {
			return nil, identity.Errorf(identity.KindBadServerResponse, "apple: missing identity token")
		}
		post.Set("id_token", cred.IDToken)
		if cred.RawNonce != "" {
			post.Set("nonce", cred.RawNonce)
		}
	case identity.Google:
		if cred.IDToken == "" || cred.AccessToken == "" {
			return nil, identity.Errorf(identity.KindBadServerResponse, "google: missing tokens")
		}
		post.Set("id_token", cred.IDToken)
		post.Set("access_token", cred.AccessToken)
	case identity.GitHub:
		if cred.AccessToken == "" {
			return nil, identity.Errorf(identity.KindBadServerResponse, "github: missing access token")
		}
		post.Set("access_token", cred.AccessToken)
	default:
		return nil, identity.Errorf(identity.KindInvalidArgument, "unsupported provider %q", cred.Provider)
	}
	return map[string]any{
		"postBody":            post.Encode(),
		"requestUri":          "http://localhost",
		"returnSecureToken":   true,
		"returnIdpCredential": true,
	}, nil
}

// complete convierte los campos de token en una Session y completa el perfil y
// el conjunto de proveedores con accounts:lookup.
func (c *Client) complete(ctx context.Context, t tokenFields) (*Session, error) {
	if t.IDToken == "" || t.RefreshToken == "" {
		return nil, identity.Errorf(identity.KindBadServerResponse, "session: missing tokens")
	}
	sess := &Session{
		UID:          t.LocalID,
		IDToken:      t.IDToken,
		RefreshToken: t.RefreshToken,
		ExpiresAt:    t.expiresAt(c.now()),
	}
	if err := c.Reload(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// ─── Cuenta ───

// Reload actualiza el perfil y los proveedores vinculados de sess con accounts:lookup.
func (c *Client) Reload(ctx context.Context, sess *Session) error {
	var out struct {
		Users []account `json:"users"`
	}
	if err := c.post(ctx, "accounts:lookup", map[string]any{"idToken": sess.IDToken}, &out); err != nil {
		return err
	}
	if len(out.Users) == 0 {
		return identity.Errorf(identity.KindAuthenticationRequired, "session: user no longer exists")
	}
	u := out.Users[0]
	if sess.UID == "" {
		sess.UID = u.LocalID
	}
	sess.Email = u.Email
	sess.DisplayName = u.DisplayName
	sess.PhotoURL = u.PhotoURL
	sess.Providers = u.providers()
	return nil
}

// Unlink desvincula provider y devuelve los proveedores federados que quedan.
func (c *Client) Unlink(ctx context.Context, idToken string, provider identity.ProviderID) (identity.ProviderSet, error) {
	var out struct {
		ProviderUserInfo []providerUserInfo `json:"providerUserInfo"`
	}
	err := c.post(ctx, "accounts:update", map[string]any{
		"idToken":        idToken,
		"deleteProvider": []string{string(provider)},
	}, &out)
	if err != nil {
		return nil, err
	}
	a := account{ProviderUserInfo: out.ProviderUserInfo}
	return a.providers(), nil
}

// UpdateProfile fija el display name y la photo URL. Los valores vacíos no se
// tocan.
func (c *Client) UpdateProfile(ctx context.Context, idToken, displayName, photoURL string) error {
	body := map[string]any{"idToken": idToken}
	if displayName != "" {
		body["displayName"] = displayName
	}
	if photoURL != "" {
		body["photoUrl"] = photoURL
	}
	if len(body) == 1 {
		return nil
	}
	return c.post(ctx, "accounts:update", body, nil)
}

// Delete elimina el usuario de Firebase.
func (c *Client) Delete(ctx context.Context, idToken string) error {
	return c.post(ctx, "accounts:delete", map[string]any{"idToken": idToken}, nil)
}

// ─── Refresh ───

// Refresh canjea el refresh token por un ID token nuevo con la Secure Token API,
// que usa el grant refresh_token estándar.
func (c *Client) Refresh(ctx context.Context, sess *Session) error {
	conf := &oauth2.Config{
		Endpoint: oauth2.Endpoint{
			TokenURL:  c.endpoints.SecureToken + "/token?key=" + url.QueryEscape(c.apiKey),
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)
	tok, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: sess.RefreshToken}).Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil && re.Response.StatusCode == http.StatusBadRequest {
			return identity.Wrap(identity.KindAuthenticationRequired, err, "session: refresh rejected")
		}
		return identity.Wrap(identity.KindInternal, err, "session: refresh")
	}
	idToken, _ := tok.Extra("id_token").(string)
	if idToken == "" {
		return identity.Errorf(identity.KindBadServerResponse, "session: refresh without id_token")
	}
	sess.IDToken = idToken
	if tok.RefreshToken != "" {
		sess.RefreshToken = tok.RefreshToken
	}
	if !tok.Expiry.IsZero() {
		sess.ExpiresAt = tok.Expiry
	} else {
		sess.ExpiresAt = c.now().Add(time.Hour)
	}
	logger.From(ctx).Debug("id token refreshed", logger.Component("session"), logger.UserID(sess.UID))
	return nil
}

// ─── Transporte ───

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) post(ctx context.Context, method string, in, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return identity.Wrap(identity.KindInternal, err, "session: encode")
	}
	endpoint := fmt.Sprintf("%s/%s?key=%s", c.endpoints.IdentityToolkit, method, url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
	if err != nil {
		return identity.Wrap(identity.KindInternal, err, "session: request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return identity.Wrap(identity.KindInternal, err, "session: "+method)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return identity.Wrap(identity.KindInternal, err, "session: read")
	}

	if resp.StatusCode != http.StatusOK {
		var ae apiError
		if json.Unmarshal(raw, &ae) == nil && ae.Error.Message != "" {
			return mapCode(ae.Error.Message, fmt.Errorf("%s: status %d", method, resp.StatusCode))
		}
		return identity.Errorf(identity.KindInternal, "session: %s: status %d", method, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return identity.Wrap(identity.KindBadServerResponse, err, "session: decode "+method)
	}
	return nil
}

// mapCode traduce un mensaje de error de Identity Toolkit ("TOKEN_EXPIRED",
// "INVALID_IDP_RESPONSE : detail") a un error de identidad.
func mapCode(message string, cause error) error {
	code, detail, _ := strings.Cut(message, ":")
	code = strings.TrimSpace(code)
	detail = strings.TrimSpace(detail)
	if cause == nil {
		cause = errors.New(message)
	}

	switch code {
	case "INVALID_ID_TOKEN", "TOKEN_EXPIRED", "USER_NOT_FOUND", "USER_DISABLED",
		"CREDENTIAL_TOO_OLD_LOGIN_AGAIN", "INVALID_REFRESH_TOKEN":
		return identity.Wrap(identity.KindAuthenticationRequired, cause, code)
	case "EMAIL_EXISTS", "FEDERATED_USER_ID_ALREADY_LINKED":
		return &identity.Error{Kind: identity.KindInternal, Msg: strings.TrimSpace(code + " " + detail), Err: cause}
	case "INVALID_IDP_RESPONSE", "MISSING_OR_INVALID_NONCE":
		return identity.Wrap(identity.KindBadServerResponse, cause, code)
	default:
		return identity.Wrap(identity.KindInternal, cause, code)
	}
}

// ErrorCode extrae el código de Identity Toolkit de un error armado por este
// paquete ("" si es desconocido).
func ErrorCode(err error) string {
	var e *identity.Error
	if !errors.As(err, &e) {
		return ""
	}
	code, _, _ := strings.Cut(e.Msg, " ")
	return code
}
