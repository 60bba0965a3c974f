package providers

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/devlog/internal/identity"
)

func TestNewState(t *testing.T) {
	a, err := NewState(nil)
	require.NoError(t, err)
	b, err := NewState(nil)
	require.NoError(t, err)
	assert.Len(t, a, 43)
	assert.NotEqual(t, a, b)
	assert.False(t, strings.ContainsAny(a, "+/="))

	_, err = NewState(bytes.NewReader([]byte("short")))
	assert.ErrorIs(t, err, identity.ErrInternal)
}

func TestCheckState(t *testing.T) {
	assert.NoError(t, CheckState("abc", "abc"))
	assert.ErrorIs(t, CheckState("abc", "abd"), identity.ErrStateMismatch)
	assert.ErrorIs(t, CheckState("abc", ""), identity.ErrStateMismatch)
	assert.ErrorIs(t, CheckState("", ""), identity.ErrStateMismatch)
	assert.Equal(t, identity.KindUserCancelled, identity.KindOf(CheckState("a", "b")))
}

func TestCallback(t *testing.T) {
	v, err := Callback(map[string][]string{"code": {"c"}}, "code")
	require.NoError(t, err)
	assert.Equal(t, "c", v)

	_, err = Callback(map[string][]string{"code": {""}}, "code")
	assert.ErrorIs(t, err, identity.ErrBadServerResponse)
}
