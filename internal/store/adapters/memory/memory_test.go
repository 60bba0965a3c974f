package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/devlog/internal/store/core"
)

func TestMergeDoesNotClobber(t *testing.T) {
	ctx := context.Background()
	s := New()
	p := core.TokensDoc("u1")

	require.NoError(t, s.Merge(ctx, p, core.Document{"fcmToken": "f1"}))
	require.NoError(t, s.Merge(ctx, p, core.Document{"appleRefreshToken": "r1"}))

	d, err := s.Get(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, "f1", d.String("fcmToken"))
	assert.Equal(t, "r1", d.String("appleRefreshToken"))
}

func TestDeleteFieldsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := New()
	p := core.TokensDoc("u1")

	require.NoError(t, s.DeleteFields(ctx, p, "fcmToken"))
	require.NoError(t, s.Merge(ctx, p, core.Document{"fcmToken": "f1", "githubAccessToken": "g"}))
	require.NoError(t, s.DeleteFields(ctx, p, "fcmToken"))

	d, err := s.Get(ctx, p)
	require.NoError(t, err)
	assert.NotContains(t, d, "fcmToken")
	assert.Equal(t, "g", d.String("githubAccessToken"))
}

func TestDeleteRecursive(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Merge(ctx, core.UserDoc("u1"), core.Document{"x": 1}))
	require.NoError(t, s.Merge(ctx, core.TokensDoc("u1"), core.Document{"x": 1}))
	require.NoError(t, s.Merge(ctx, core.InfoDoc("u1"), core.Document{"x": 1}))
	require.NoError(t, s.Merge(ctx, "users/u1/todos/t1", core.Document{"x": 1}))
	// Prefijo parecido pero otro usuario.
	require.NoError(t, s.Merge(ctx, core.TokensDoc("u10"), core.Document{"x": 1}))

	require.NoError(t, s.DeleteRecursive(ctx, core.UserDoc("u1")))

	assert.ElementsMatch(t, []string{core.TokensDoc("u10")}, s.Paths())
	_, err := s.Get(ctx, core.TokensDoc("u1"))
	assert.ErrorIs(t, err, core.ErrNotFound)
}
