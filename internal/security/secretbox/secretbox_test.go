package secretbox

import (
	"encoding/base64"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() []byte {
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = byte(i + 1)
	}
	return raw
}

func TestSealOpen_RoundTrip(t *testing.T) {
	b, err := New(base64.StdEncoding.EncodeToString(testKey()))
	require.NoError(t, err)

	msg := "gho_abc123 ✓ secreto"
	ct, err := b.Seal(msg, "uid-1/githubAccessToken")
	require.NoError(t, err)
	assert.NotContains(t, ct, "gho_abc123")

	pt, err := b.Open(ct, "uid-1/githubAccessToken")
	require.NoError(t, err)
	assert.Equal(t, msg, pt)
}

func TestOpen_WrongAADFails(t *testing.T) {
	b, err := New(hex.EncodeToString(testKey()))
	require.NoError(t, err)

	ct, err := b.Seal("refresh", "uid-1/appleRefreshToken")
	require.NoError(t, err)

	_, err = b.Open(ct, "uid-2/appleRefreshToken")
	assert.Error(t, err)
}

func TestOpen_DetectsTamper(t *testing.T) {
	b, err := New(string(testKey()))
	require.NoError(t, err)

	ct, err := b.Seal("top secret", "")
	require.NoError(t, err)
	parts := strings.Split(ct, "|")
	require.Len(t, parts, 2)

	bs, err := base64.StdEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	bs[0] ^= 0x01
	corrupted := parts[0] + "|" + base64.StdEncoding.EncodeToString(bs)

	_, err = b.Open(corrupted, "")
	assert.Error(t, err)

	_, err = b.Open("garbage", "")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestNew_RejectsShortKey(t *testing.T) {
	_, err := New("short")
	assert.Error(t, err)
}
