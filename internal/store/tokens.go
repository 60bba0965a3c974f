package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dropDatabas3/devlog/internal/store/core"
)

// TokenField es un campo de users/{uid}/userData/tokens.
type TokenField string

const (
	AppleRefreshToken TokenField = "appleRefreshToken"
	GitHubAccessToken TokenField = "githubAccessToken"
	MessagingToken    TokenField = "fcmToken"
)

// sealed indica si el campo se guarda cifrado.
func (f TokenField) sealed() bool {
	return f == AppleRefreshToken || f == GitHubAccessToken
}

// Sealer cifra valores en reposo (secretbox.Box).
type Sealer interface {
	Seal(plain, aad string) (string, error)
	Open(sealed, aad string) (string, error)
}

// Tokens es el repositorio del TokenRecord. Con box nil los valores se
// guardan en claro (sólo dev).
type Tokens struct {
	docs core.DocumentStore
	box  Sealer
}

func NewTokens(docs core.DocumentStore, box Sealer) *Tokens {
	return &Tokens{docs: docs, box: box}
}

func aad(uid string, f TokenField) string { return uid + "/" + string(f) }

// Get devuelve core.ErrNotFound si el campo no existe o está vacío.
func (t *Tokens) Get(ctx context.Context, uid string, f TokenField) (string, error) {
	doc, err := t.docs.Get(ctx, core.TokensDoc(uid))
	if err != nil {
		return "", err
	}
	v := doc.String(string(f))
	if v == "" {
		return "", core.ErrNotFound
	}
	if f.sealed() && t.box != nil {
		pt, err := t.box.Open(v, aad(uid, f))
		if err != nil {
			return "", fmt.Errorf("open %s: %w", f, err)
		}
		return pt, nil
	}
	return v, nil
}

// Put hace merge de un único campo; no toca el resto del documento.
func (t *Tokens) Put(ctx context.Context, uid string, f TokenField, value string) error {
	if value == "" {
		return errors.New("store: empty token value")
	}
	if f.sealed() && t.box != nil {
		ct, err := t.box.Seal(value, aad(uid, f))
		if err != nil {
			return fmt.Errorf("seal %s: %w", f, err)
		}
		value = ct
	}
	return t.docs.Merge(ctx, core.TokensDoc(uid), core.Document{string(f): value})
}

// Delete borra los campos dados. Idempotente.
func (t *Tokens) Delete(ctx context.Context, uid string, fields ...TokenField) error {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = string(f)
	}
	return t.docs.DeleteFields(ctx, core.TokensDoc(uid), names...)
}
