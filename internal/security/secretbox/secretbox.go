// Package secretbox sella secretos en reposo (tokens de proveedores) con
// XChaCha20-Poly1305. El texto sellado tiene la forma base64(nonce)|base64(ciphertext).
package secretbox

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

const sep = "|"

var ErrMalformed = errors.New("secretbox: formato inválido, esperado base64(nonce)|base64(ciphertext)")

// Box sella y abre valores con una clave fija de 32 bytes.
type Box struct {
	key []byte
}

// New construye un Box a partir de la clave configurada (base64, hex o 32 bytes crudos).
func New(key string) (*Box, error) {
	k, err := ParseKey(key)
	if err != nil {
		return nil, err
	}
	return &Box{key: k}, nil
}

// ParseKey acepta base64 (con o sin padding), hex de 64 chars o 32 bytes crudos.
func ParseKey(key string) ([]byte, error) {
	key = strings.TrimSpace(key)
	if b, err := base64.StdEncoding.DecodeString(key); err == nil && len(b) == chacha20poly1305.KeySize {
		return b, nil
	}
	if b, err := base64.RawStdEncoding.DecodeString(key); err == nil && len(b) == chacha20poly1305.KeySize {
		return b, nil
	}
	if len(key) == 2*chacha20poly1305.KeySize {
		if h, err := hex.DecodeString(key); err == nil {
			return h, nil
		}
	}
	if len(key) == chacha20poly1305.KeySize {
		return []byte(key), nil
	}
	return nil, fmt.Errorf("secretbox: clave inválida: se requieren %d bytes", chacha20poly1305.KeySize)
}

// Seal cifra plain. aad se autentica pero no se guarda: el mismo aad es
// necesario para abrir (p.ej. "uid/campo", para que un valor no pueda moverse
// de documento).
func (b *Box) Seal(plain, aad string) (string, error) {
	aead, err := chacha20poly1305.NewX(b.key)
	if err != nil {
		return "", fmt.Errorf("chacha20poly1305.NewX: %w", err)
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("nonce random: %w", err)
	}
	ct := aead.Seal(nil, nonce, []byte(plain), []byte(aad))
	return base64.StdEncoding.EncodeToString(nonce) + sep + base64.StdEncoding.EncodeToString(ct), nil
}

// Open revierte Seal.
func (b *Box) Open(sealed, aad string) (string, error) {
	parts := strings.Split(sealed, sep)
	if len(parts) != 2 {
		return "", ErrMalformed
	}
	nonce, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("decode nonce: %w", err)
	}
	ct, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	if len(nonce) != chacha20poly1305.NonceSizeX {
		return "", fmt.Errorf("nonce inválido: esperado %d bytes, obtuvo %d", chacha20poly1305.NonceSizeX, len(nonce))
	}
	aead, err := chacha20poly1305.NewX(b.key)
	if err != nil {
		return "", fmt.Errorf("chacha20poly1305.NewX: %w", err)
	}
	pt, err := aead.Open(nil, nonce, ct, []byte(aad))
	if err != nil {
		return "", fmt.Errorf("secretbox: auth/decrypt: %w", err)
	}
	return string(pt), nil
}
