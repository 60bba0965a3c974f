package linking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/devlog/internal/identity"
)

func TestUserLocks_SerializesPerUID(t *testing.T) {
	l := newUserLocks()
	entered := make(chan struct{})
	release := make(chan struct{})

	go func() {
		_ = l.run(context.Background(), "u1", func() error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	// otro uid no queda bloqueado
	require.NoError(t, l.run(context.Background(), "u2", func() error { return nil }))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := l.run(ctx, "u1", func() error { return nil })
	assert.ErrorIs(t, err, identity.ErrUserCancelled)

	close(release)
	require.Eventually(t, func() bool {
		return l.run(context.Background(), "u1", func() error { return nil }) == nil
	}, time.Second, 10*time.Millisecond)
}
