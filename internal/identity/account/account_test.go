package account

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/devlog/internal/identity"
)

type fakeNet struct{ up bool }

func (n *fakeNet) Connected() bool { return n.up }

type fakeCore struct {
	calls []string
	err   error
}

func (c *fakeCore) SignIn(_ context.Context, p identity.ProviderID) (*identity.Identity, error) {
	c.calls = append(c.calls, "SignIn:"+string(p))
	if c.err != nil {
		return nil, c.err
	}
	return &identity.Identity{UID: "u1", CurrentProvider: p}, nil
}

func (c *fakeCore) SignOut(context.Context) error {
	c.calls = append(c.calls, "SignOut")
	return c.err
}

func (c *fakeCore) Link(_ context.Context, p identity.ProviderID) error {
	c.calls = append(c.calls, "Link:"+string(p))
	return c.err
}

func (c *fakeCore) Unlink(_ context.Context, p identity.ProviderID) error {
	c.calls = append(c.calls, "Unlink:"+string(p))
	return c.err
}

func (c *fakeCore) DeleteAccount(context.Context) error {
	c.calls = append(c.calls, "DeleteAccount")
	return c.err
}

func newFacade(up bool) (*Facade, *fakeCore) {
	core := &fakeCore{}
	return New(Deps{Net: &fakeNet{up: up}, Auth: core, Links: core, Deleter: core}), core
}

func TestOffline_NoSideEffects(t *testing.T) {
	f, core := newFacade(false)
	ctx := context.Background()

	_, err := f.SignIn(ctx, identity.Apple)
	assert.ErrorIs(t, err, identity.ErrOffline)
	assert.ErrorIs(t, f.SignOut(ctx), identity.ErrOffline)
	assert.ErrorIs(t, f.Link(ctx, identity.GitHub), identity.ErrOffline)
	assert.ErrorIs(t, f.Unlink(ctx, identity.GitHub), identity.ErrOffline)
	assert.ErrorIs(t, f.DeleteAccount(ctx), identity.ErrOffline)
	assert.Empty(t, core.calls)

	a := <-f.Alerts()
	assert.Equal(t, "SignIn", a.Op)
	assert.Equal(t, identity.KindOffline, a.Kind)
	assert.Equal(t, identity.UserMessage(identity.ErrOffline), a.Message)
}

func TestOnline_DelegatesWithoutAlert(t *testing.T) {
	f, core := newFacade(true)
	ctx := context.Background()

	id, err := f.SignIn(ctx, identity.GitHub)
	require.NoError(t, err)
	assert.Equal(t, identity.GitHub, id.CurrentProvider)
	require.NoError(t, f.Link(ctx, identity.Apple))
	require.NoError(t, f.Unlink(ctx, identity.Apple))
	require.NoError(t, f.SignOut(ctx))

	assert.Equal(t, []string{"SignIn:github.com", "Link:apple.com", "Unlink:apple.com", "SignOut"}, core.calls)
	select {
	case a := <-f.Alerts():
		t.Fatalf("unexpected alert %+v", a)
	default:
	}
}

func TestFailure_AlertCarriesLocalizedMessage(t *testing.T) {
	f, core := newFacade(true)
	core.err = identity.Errorf(identity.KindEmailMismatch, "apple.com email differs from account email")

	err := f.Link(context.Background(), identity.Apple)
	assert.ErrorIs(t, err, identity.ErrEmailMismatch)

	a := <-f.Alerts()
	assert.Equal(t, "Link", a.Op)
	assert.Equal(t, identity.KindEmailMismatch, a.Kind)
	assert.NotContains(t, a.Message, "apple.com")
	assert.Equal(t, identity.UserMessage(err), a.Message)
}

func TestAlerts_DropWhenFull(t *testing.T) {
	f, core := newFacade(true)
	core.err = identity.ErrInternal

	for i := 0; i < alertBuffer+3; i++ {
		assert.Error(t, f.DeleteAccount(context.Background()))
	}
	assert.Len(t, f.alerts, alertBuffer)
	assert.Len(t, core.calls, alertBuffer+3)
}
