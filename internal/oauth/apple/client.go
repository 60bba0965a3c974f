// Package apple habla con los endpoints REST de Sign in with Apple del lado
// servidor: canje del authorization code, refresh y revocación. Cada request se
// autentica con un client secret ES256 recién firmado.
package apple

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

const (
	// Issuer es a la vez el audience del client secret y el iss de los identity tokens.
	Issuer = "https://appleid.apple.com"

	DefaultTokenURL  = Issuer + "/auth/token"
	DefaultRevokeURL = Issuer + "/auth/revoke"

	clientSecretTTL = 5 * time.Minute
)

var (
	ErrNotConfigured = errors.New("apple: team id, client id, key id and private key are required")
	ErrNoRefresh     = errors.New("apple: no refresh_token in response")
	ErrNoAccess      = errors.New("apple: no access_token in response")
)

// Config tiene los identificadores de la cuenta de desarrollador y la clave .p8.
type Config struct {
	TeamID        string
	ClientID      string
	KeyID         string
	PrivateKeyPEM []byte
	TokenURL      string
	RevokeURL     string
}

// Client es seguro para uso concurrente.
type Client struct {
	teamID    string
	clientID  string
	keyID     string
	key       *ecdsa.PrivateKey
	tokenURL  string
	revokeURL string

	http *http.Client
	now  func() time.Time
}

// New valida cfg y parsea la clave de firma.
func New(cfg Config) (*Client, error) {
	if cfg.TeamID == "" || cfg.ClientID == "" || cfg.KeyID == "" || len(cfg.PrivateKeyPEM) == 0 {
		return nil, ErrNotConfigured
	}
	key, err := jwtv5.ParseECPrivateKeyFromPEM(cfg.PrivateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("apple: parse private key: %w", err)
	}
	c := &Client{
		teamID:    cfg.TeamID,
		clientID:  cfg.ClientID,
		keyID:     cfg.KeyID,
		key:       key,
		tokenURL:  cfg.TokenURL,
		revokeURL: cfg.RevokeURL,
		http:      &http.Client{Timeout: 10 * time.Second},
		now:       time.Now,
	}
	if c.tokenURL == "" {
		c.tokenURL = DefaultTokenURL
	}
	if c.revokeURL == "" {
		c.revokeURL = DefaultRevokeURL
	}
	return c, nil
}

// WithHTTPClient reemplaza el cliente HTTP (tests).
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	c.http = h
	return c
}

// ClientSecret firma la aserción de vida corta que Apple espera como client_secret.
// Se regenera en cada llamada.
func (c *Client) ClientSecret() (string, error) {
	now := c.now()
	claims := jwtv5.RegisteredClaims{
		Issuer:    c.teamID,
		Subject:   c.clientID,
		Audience:  jwtv5.ClaimStrings{Issuer},
		IssuedAt:  jwtv5.NewNumericDate(now),
		ExpiresAt: jwtv5.NewNumericDate(now.Add(clientSecretTTL)),
	}
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodES256, claims)
	tk.Header["kid"] = c.keyID
	return tk.SignedString(c.key)
}

// TokenResponse es el body de un /auth/token exitoso.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	IDToken      string `json:"id_token"`
}

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// ExchangeCode cambia un authorization code por un par refresh/access token.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*TokenResponse, error) {
	tr, err := c.token(ctx, url.Values{
		"grant_type": {"authorization_code"},
		"code":       {code},
	})
	if err != nil {
		return nil, err
	}
	if tr.RefreshToken == "" {
		return nil, ErrNoRefresh
	}
	return tr, nil
}

// Refresh obtiene un access token nuevo. Apple no rota los refresh tokens.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	tr, err := c.token(ctx, url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	})
	if err != nil {
		return nil, err
	}
	if tr.AccessToken == "" {
		return nil, ErrNoAccess
	}
	return tr, nil
}

// Revoke invalida token. hint es "access_token" o "refresh_token".
func (c *Client) Revoke(ctx context.Context, token, hint string) error {
	form := url.Values{
		"token":           {token},
		"token_type_hint": {hint},
	}
	resp, err := c.post(ctx, c.revokeURL, form)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError("revoke", resp)
	}
	return nil
}

func (c *Client) token(ctx context.Context, form url.Values) (*TokenResponse, error) {
	resp, err := c.post(ctx, c.tokenURL, form)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(form.Get("grant_type"), resp)
	}
	var tr TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("apple: decode token response: %w", err)
	}
	return &tr, nil
}

func (c *Client) post(ctx context.Context, endpoint string, form url.Values) (*http.Response, error) {
	secret, err := c.ClientSecret()
	if err != nil {
		return nil, fmt.Errorf("apple: sign client secret: %w", err)
	}
	form.Set("client_id", c.clientID)
	form.Set("client_secret", secret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	return c.http.Do(req)
}

func decodeError(op string, resp *http.Response) error {
	var er errorResponse
	_ = json.NewDecoder(resp.Body).Decode(&er)
	if er.Error != "" {
		return fmt.Errorf("apple %s: status %d: %s", op, resp.StatusCode, er.Error)
	}
	return fmt.Errorf("apple %s: status %d", op, resp.StatusCode)
}
