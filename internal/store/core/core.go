// Package core define el contrato del document store path-addressed que usa
// el broker. Las rutas alternan colección/documento como en Firestore:
// "users/{uid}/userData/tokens".
package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrInvalidPath = errors.New("invalid document path")
)

// Document es el contenido de un documento: campos de primer nivel.
type Document map[string]any

// String devuelve el campo k como string ("" si falta o no es string).
func (d Document) String(k string) string {
	s, _ := d[k].(string)
	return s
}

// DocumentStore es el cliente genérico que consume el broker.
type DocumentStore interface {
	// Get devuelve ErrNotFound si el documento no existe.
	Get(ctx context.Context, path string) (Document, error)

	// Merge crea el documento si no existe y pisa sólo los campos dados.
	Merge(ctx context.Context, path string, fields Document) error

	// DeleteFields borra campos sueltos. Idempotente: documento o campo ausente no es error.
	DeleteFields(ctx context.Context, path string, fields ...string) error

	// DeleteRecursive borra el documento y todo lo anidado debajo de él.
	DeleteRecursive(ctx context.Context, path string) error

	Close() error
}

// ValidateDocPath exige un número par de segmentos no vacíos.
func ValidateDocPath(path string) error {
	segs := strings.Split(path, "/")
	if len(segs)%2 != 0 {
		return fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	for _, s := range segs {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	return nil
}

// Rutas conocidas.

func UserDoc(uid string) string     { return "users/" + uid }
func TokensDoc(uid string) string   { return UserDoc(uid) + "/userData/tokens" }
func InfoDoc(uid string) string     { return UserDoc(uid) + "/userData/info" }
func SettingsDoc(uid string) string { return UserDoc(uid) + "/userData/settings" }
