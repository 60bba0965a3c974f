package orchestrator_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/devlog/internal/identity"
	"github.com/dropDatabas3/devlog/internal/identity/identitytest"
	"github.com/dropDatabas3/devlog/internal/identity/localstate"
	"github.com/dropDatabas3/devlog/internal/identity/orchestrator"
	"github.com/dropDatabas3/devlog/internal/identity/providers"
	"github.com/dropDatabas3/devlog/internal/messaging"
)

type env struct {
	o        *orchestrator.Orchestrator
	sessions *identitytest.Sessions
	broker   *identitytest.Broker
	store    *localstate.Store
	apple    *identitytest.Adapter
	google   *identitytest.Adapter
	github   *identitytest.Adapter
	deps     orchestrator.Deps
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store, err := localstate.Open(t.TempDir())
	require.NoError(t, err)

	e := &env{
		sessions: identitytest.NewSessions("u1", "a@x.com"),
		broker:   identitytest.NewBroker(),
		store:    store,
		apple: identitytest.NewAdapter(identity.Apple, identity.Credential{
			IDToken: "apple-id", AuthorizationCode: "apple-code", RawNonce: "raw", Email: "a@x.com", FullName: "Ada Lovelace",
		}),
		google: identitytest.NewAdapter(identity.Google, identity.Credential{
			IDToken: "g-id", AccessToken: "g-access", Email: "a@x.com", FullName: "Ada",
		}),
		github: identitytest.NewAdapter(identity.GitHub, identity.Credential{
			AccessToken: "gh_tok", CustomToken: "fb_tok", Email: "a@x.com", Login: "ada",
		}),
	}
	e.deps = orchestrator.Deps{
		Adapters:  providers.NewSet(e.apple, e.google, e.github),
		Sessions:  e.sessions,
		Broker:    e.broker,
		Store:     store,
		Messaging: messaging.NewDeviceTokens(store),
	}
	e.o = orchestrator.New(e.deps)
	return e
}

func next(t *testing.T, ch <-chan identity.Event) identity.Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no identity event")
		return identity.Event{}
	}
}

func TestSignIn_GitHubUsesCustomToken(t *testing.T) {
	e := newEnv(t)

	id, err := e.o.SignIn(context.Background(), identity.GitHub)
	require.NoError(t, err)

	assert.Equal(t, []string{"fb_tok"}, e.sessions.CustomTokens)
	assert.Equal(t, 0, e.sessions.Count("SignIn"))
	assert.Equal(t, identity.GitHub, id.CurrentProvider)
	assert.True(t, id.LinkedProviders.Equal(identity.NewProviderSet(identity.GitHub)))
	assert.False(t, id.MetadataPending)
	assert.Equal(t, identity.GitHub, e.broker.Info.CurrentProvider)
}

func TestSignIn_CurrentProviderAndLinkedSet(t *testing.T) {
	for _, p := range identity.Providers {
		t.Run(p.Short(), func(t *testing.T) {
			e := newEnv(t)
			id, err := e.o.SignIn(context.Background(), p)
			require.NoError(t, err)
			assert.Equal(t, p, id.CurrentProvider)
			assert.True(t, id.LinkedProviders.Has(p))
		})
	}
}

func TestSignIn_PublishesPendingThenConverged(t *testing.T) {
	e := newEnv(t)
	ch, cancel := e.o.Subscribe()
	defer cancel()

	assert.Equal(t, identity.Unauthenticated, next(t, ch).State)

	_, err := e.o.SignIn(context.Background(), identity.Google)
	require.NoError(t, err)

	pending := next(t, ch)
	require.Equal(t, identity.Authenticated, pending.State)
	assert.True(t, pending.Identity.MetadataPending)

	converged := next(t, ch)
	require.Equal(t, identity.Authenticated, converged.State)
	assert.False(t, converged.Identity.MetadataPending)
	assert.Equal(t, identity.Google, converged.Identity.CurrentProvider)
}

func TestSignIn_AppleExchangesCodeBeforeMetadata(t *testing.T) {
	e := newEnv(t)

	_, err := e.o.SignIn(context.Background(), identity.Apple)
	require.NoError(t, err)

	calls := e.broker.Calls()
	require.GreaterOrEqual(t, len(calls), 3)
	assert.Equal(t, []string{"requestAppleRefreshToken", "getUserInfo", "saveUserInfo"}, calls[:3])
	assert.Equal(t, 1, e.broker.Count("registerMessagingToken"))
	assert.NotEmpty(t, e.broker.MessagingToken)
}

func TestSignIn_AppleExchangeFailureSignsBackOut(t *testing.T) {
	e := newEnv(t)
	e.broker.Errs["requestAppleRefreshToken"] = identity.Errorf(identity.KindInternal, "apple down")

	_, err := e.o.SignIn(context.Background(), identity.Apple)
	assert.ErrorIs(t, err, identity.ErrInternal)
	assert.Nil(t, e.o.Current())

	persisted, err := e.store.Session()
	require.NoError(t, err)
	assert.Nil(t, persisted)
}

func TestSignIn_NameFallbackOrder(t *testing.T) {
	e := newEnv(t)
	// primera autorización: el claim del proveedor completa el perfil de Firebase
	_, err := e.o.SignIn(context.Background(), identity.Apple)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", e.sessions.ProfileName)
	assert.Equal(t, "Ada Lovelace", e.o.Current().DisplayName)

	// sin nombre en el perfil ni claim: gana el valor guardado
	e2 := newEnv(t)
	e2.apple.Cred.FullName = ""
	e2.broker.Info.DisplayName = "Stored Name"
	id, err := e2.o.SignIn(context.Background(), identity.Apple)
	require.NoError(t, err)
	assert.Equal(t, "Stored Name", id.DisplayName)
	assert.Equal(t, 0, e2.sessions.Count("UpdateProfile"))
}

func TestSignIn_CancelledLeavesStateUntouched(t *testing.T) {
	e := newEnv(t)
	e.github.Err = identity.Errorf(identity.KindUserCancelled, "closed")

	_, err := e.o.SignIn(context.Background(), identity.GitHub)
	assert.ErrorIs(t, err, identity.ErrUserCancelled)
	assert.Nil(t, e.o.Current())
	assert.Empty(t, e.broker.Calls())
	assert.Equal(t, 0, e.sessions.Count("SignInWithCustomToken"))
}

func TestSignOut_OrderedSteps(t *testing.T) {
	e := newEnv(t)
	_, err := e.o.SignIn(context.Background(), identity.Google)
	require.NoError(t, err)
	tok, err := e.store.MessagingToken()
	require.NoError(t, err)
	require.NotEmpty(t, tok)

	require.NoError(t, e.o.SignOut(context.Background()))

	assert.Equal(t, []string{"g-access"}, e.google.Disconnected)
	assert.Equal(t, "deleteMessagingToken", e.broker.Calls()[len(e.broker.Calls())-1])
	assert.Nil(t, e.o.Current())

	tok, err = e.store.MessagingToken()
	require.NoError(t, err)
	assert.Empty(t, tok)
	persisted, err := e.store.Session()
	require.NoError(t, err)
	assert.Nil(t, persisted)
}

func TestSignOut_AbortsOnDisconnectFailure(t *testing.T) {
	e := newEnv(t)
	_, err := e.o.SignIn(context.Background(), identity.Google)
	require.NoError(t, err)
	e.google.DisconnectErr = errors.New("revoke failed")

	require.Error(t, e.o.SignOut(context.Background()))
	assert.NotNil(t, e.o.Current())
	assert.Equal(t, 0, e.broker.Count("deleteMessagingToken"))
}

func TestSignOut_GoogleLinkedElsewhereWithoutAdapter(t *testing.T) {
	e := newEnv(t)
	e.sessions.Providers = identity.NewProviderSet(identity.Google)
	e.deps.Adapters = providers.NewSet(e.apple)
	o := orchestrator.New(e.deps)

	id, err := o.SignIn(context.Background(), identity.Apple)
	require.NoError(t, err)
	require.True(t, id.LinkedProviders.Has(identity.Google))

	require.NoError(t, o.Disconnect(context.Background(), identity.Google))
	require.NoError(t, o.SignOut(context.Background()))
	assert.Nil(t, o.Current())
}

func TestSignOut_GoogleWithoutStoredTokenSkipsDisconnect(t *testing.T) {
	e := newEnv(t)
	e.sessions.Providers = identity.NewProviderSet(identity.Google)
	e.google.DisconnectErr = errors.New("must not be called")

	_, err := e.o.SignIn(context.Background(), identity.Apple)
	require.NoError(t, err)

	require.NoError(t, e.o.SignOut(context.Background()))
	assert.Empty(t, e.google.Disconnected)
	assert.Nil(t, e.o.Current())
}

func TestSignOut_AbortsOnMessagingDeleteFailure(t *testing.T) {
	e := newEnv(t)
	_, err := e.o.SignIn(context.Background(), identity.GitHub)
	require.NoError(t, err)
	e.broker.Errs["deleteMessagingToken"] = identity.Errorf(identity.KindInternal, "down")

	require.Error(t, e.o.SignOut(context.Background()))
	assert.NotNil(t, e.o.Current())

	tok, err := e.store.MessagingToken()
	require.NoError(t, err)
	assert.NotEmpty(t, tok, "local token survives an aborted sign-out")
}

func TestRestore_ResumesPersistedSession(t *testing.T) {
	e := newEnv(t)
	_, err := e.o.SignIn(context.Background(), identity.GitHub)
	require.NoError(t, err)

	// un proceso nuevo sobre el mismo directorio de estado
	o2 := orchestrator.New(e.deps)
	id, err := o2.Restore(context.Background())
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, "u1", id.UID)
	assert.Equal(t, identity.GitHub, id.CurrentProvider)
	assert.True(t, id.LinkedProviders.Has(identity.GitHub))
}

func TestRestore_NothingPersisted(t *testing.T) {
	e := newEnv(t)
	id, err := e.o.Restore(context.Background())
	require.NoError(t, err)
	assert.Nil(t, id)
}

func TestRestore_RevokedSessionIsCleared(t *testing.T) {
	e := newEnv(t)
	_, err := e.o.SignIn(context.Background(), identity.GitHub)
	require.NoError(t, err)

	e.sessions.ReloadErr = identity.Errorf(identity.KindAuthenticationRequired, "user disabled")
	_, err = orchestrator.New(e.deps).Restore(context.Background())
	assert.ErrorIs(t, err, identity.ErrAuthenticationRequired)

	persisted, err := e.store.Session()
	require.NoError(t, err)
	assert.Nil(t, persisted)
}

func TestIDToken_RefreshesNearExpiry(t *testing.T) {
	e := newEnv(t)
	_, err := e.o.SignIn(context.Background(), identity.GitHub)
	require.NoError(t, err)

	tok, err := e.o.IDToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, e.o.Session().IDToken, tok)
	assert.Equal(t, 0, e.sessions.Count("Refresh"))

	deps := e.deps
	deps.Now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	o2 := orchestrator.New(deps)
	_, err = o2.Restore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, e.sessions.Count("Refresh"))
}

func TestMutations(t *testing.T) {
	e := newEnv(t)
	e.o.ApplyLinked(identity.Apple) // no identity: ignored
	assert.Nil(t, e.o.Current())

	_, err := e.o.SignIn(context.Background(), identity.GitHub)
	require.NoError(t, err)

	e.o.ApplyLinked(identity.Apple)
	assert.True(t, e.o.Current().LinkedProviders.Has(identity.Apple))
	e.o.ApplyUnlinked(identity.Apple)
	assert.False(t, e.o.Current().LinkedProviders.Has(identity.Apple))
	e.o.ReplaceLinked(identity.NewProviderSet(identity.GitHub, identity.Google))
	assert.True(t, e.o.Current().LinkedProviders.Equal(identity.NewProviderSet(identity.GitHub, identity.Google)))

	persisted, err := e.store.Session()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"github.com", "google.com"}, persisted.Providers)
}
