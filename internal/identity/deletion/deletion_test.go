package deletion_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/devlog/internal/identity"
	"github.com/dropDatabas3/devlog/internal/identity/deletion"
	"github.com/dropDatabas3/devlog/internal/identity/identitytest"
	"github.com/dropDatabas3/devlog/internal/identity/linking"
	"github.com/dropDatabas3/devlog/internal/identity/localstate"
	"github.com/dropDatabas3/devlog/internal/identity/orchestrator"
	"github.com/dropDatabas3/devlog/internal/identity/providers"
	"github.com/dropDatabas3/devlog/internal/messaging"
)

type env struct {
	orch     *orchestrator.Orchestrator
	links    *linking.Coordinator
	cascade  *deletion.Cascade
	sessions *identitytest.Sessions
	broker   *identitytest.Broker
	google   *identitytest.Adapter
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store, err := localstate.Open(t.TempDir())
	require.NoError(t, err)
	e := &env{
		sessions: identitytest.NewSessions("u1", "a@x.com"),
		broker:   identitytest.NewBroker(),
		google:   identitytest.NewAdapter(identity.Google, identity.Credential{IDToken: "g-id", AccessToken: "g-access", Email: "a@x.com"}),
	}
	apple := identitytest.NewAdapter(identity.Apple, identity.Credential{IDToken: "apple-id", AuthorizationCode: "code", Email: "a@x.com"})
	github := identitytest.NewAdapter(identity.GitHub, identity.Credential{AccessToken: "gh_tok", CustomToken: "fb_tok", Email: "a@x.com"})

	e.orch = orchestrator.New(orchestrator.Deps{
		Adapters:  providers.NewSet(apple, e.google, github),
		Sessions:  e.sessions,
		Broker:    e.broker,
		Store:     store,
		Messaging: messaging.NewDeviceTokens(store),
	})
	e.links = linking.New(linking.Deps{Orchestrator: e.orch, Sessions: e.sessions, Broker: e.broker})
	e.cascade = deletion.New(deletion.Deps{Orchestrator: e.orch, Revoker: e.links, Broker: e.broker, Sessions: e.sessions})

	_, err = e.orch.SignIn(context.Background(), identity.GitHub)
	require.NoError(t, err)
	require.NoError(t, e.links.Link(context.Background(), identity.Apple))
	require.NoError(t, e.links.Link(context.Background(), identity.Google))
	return e
}

func tail(calls []string, from string) []string {
	for i, c := range calls {
		if c == from {
			return calls[i:]
		}
	}
	return nil
}

func TestDeleteAccount_OrderedCascade(t *testing.T) {
	e := newEnv(t)
	token := e.orch.Session().IDToken

	require.NoError(t, e.cascade.DeleteAccount(context.Background()))

	assert.Equal(t, []string{
		"refreshAppleAccessToken", "revokeAppleAccessToken",
		"revokeGithubAccessToken",
		"userCleanup",
		"deleteMessagingToken",
	}, tail(e.broker.Calls(), "refreshAppleAccessToken"))
	assert.Equal(t, []string{"g-access"}, e.google.Disconnected)
	assert.True(t, e.sessions.Deleted)
	assert.Equal(t, token, e.sessions.DeletedWith, "identity deleted with the token captured before sign-out")
	assert.Nil(t, e.orch.Current())
}

func TestDeleteAccount_CleanupFailureKeepsIdentity(t *testing.T) {
	e := newEnv(t)
	e.broker.Errs["userCleanup"] = identity.Errorf(identity.KindInternal, "firestore down")

	err := e.cascade.DeleteAccount(context.Background())
	assert.ErrorIs(t, err, identity.ErrInternal)
	assert.False(t, e.sessions.Deleted)
	assert.Equal(t, 0, e.sessions.Count("Delete"))
	assert.NotNil(t, e.orch.Current())
	assert.Equal(t, 0, e.broker.Count("deleteMessagingToken"))
}

func TestDeleteAccount_RevokeFailureAbortsBeforeCleanup(t *testing.T) {
	e := newEnv(t)
	e.broker.Errs["revokeGithubAccessToken"] = identity.Errorf(identity.KindInternal, "github 500")

	require.Error(t, e.cascade.DeleteAccount(context.Background()))
	assert.Equal(t, 0, e.broker.Count("userCleanup"))
	assert.False(t, e.sessions.Deleted)
}

func TestDeleteAccount_SignOutFailureAbortsBeforeIdentityDelete(t *testing.T) {
	e := newEnv(t)
	e.google.DisconnectErr = identity.Errorf(identity.KindInternal, "revoke failed")

	require.Error(t, e.cascade.DeleteAccount(context.Background()))
	assert.Equal(t, 1, e.broker.Count("userCleanup"))
	assert.False(t, e.sessions.Deleted)
	assert.NotNil(t, e.orch.Current())
}

func TestDeleteAccount_RequiresSession(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.orch.SignOut(context.Background()))
	assert.ErrorIs(t, e.cascade.DeleteAccount(context.Background()), identity.ErrAuthenticationRequired)
}

func TestDeleteAccount_GoogleLinkedElsewhereCompletes(t *testing.T) {
	store, err := localstate.Open(t.TempDir())
	require.NoError(t, err)
	sessions := identitytest.NewSessions("u1", "a@x.com")
	sessions.Providers = identity.NewProviderSet(identity.Google)
	broker := identitytest.NewBroker()
	github := identitytest.NewAdapter(identity.GitHub, identity.Credential{AccessToken: "gh_tok", CustomToken: "fb_tok", Email: "a@x.com"})

	orch := orchestrator.New(orchestrator.Deps{
		Adapters:  providers.NewSet(github),
		Sessions:  sessions,
		Broker:    broker,
		Store:     store,
		Messaging: messaging.NewDeviceTokens(store),
	})
	links := linking.New(linking.Deps{Orchestrator: orch, Sessions: sessions, Broker: broker})
	cascade := deletion.New(deletion.Deps{Orchestrator: orch, Revoker: links, Broker: broker, Sessions: sessions})

	id, err := orch.SignIn(context.Background(), identity.GitHub)
	require.NoError(t, err)
	require.True(t, id.LinkedProviders.Has(identity.Google))

	require.NoError(t, cascade.DeleteAccount(context.Background()))
	assert.True(t, sessions.Deleted)
	assert.Equal(t, 1, broker.Count("userCleanup"))
	assert.Nil(t, orch.Current())
}
