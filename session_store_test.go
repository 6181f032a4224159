package storefront_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	storefront "github.com/goliatone/go-storefront"
	"github.com/goliatone/go-storefront/storage"
)

func newStore(t *testing.T, api storefront.AuthAPI, opts ...storefront.SessionStoreOption) (*storefront.SessionStore, *storage.MemoryStore) {
	t.Helper()
	mem := storage.NewMemoryStore()
	opts = append([]storefront.SessionStoreOption{storefront.WithSessionLogger(storefront.NopLogger())}, opts...)
	return storefront.NewSessionStore(api, mem, opts...), mem
}

func TestSessionStoreStartsUnauthenticated(t *testing.T) {
	store, _ := newStore(t, &MockAuthAPI{})

	session := store.Session()
	assert.Equal(t, storefront.SessionUnauthenticated, session.State)
	assert.Empty(t, session.Subject)
	assert.Empty(t, store.Credential())
	assert.True(t, session.IsSettled())
}

func TestSessionStoreLoginPersistsCredentialAndRoles(t *testing.T) {
	api := &MockAuthAPI{}
	token := signToken("ada@example.com", 7, []string{"USER", "ADMIN"}, time.Now().Add(time.Hour))
	api.On("Authenticate", mock.Anything, "ada@example.com", "secret1").Return(token, nil).Once()

	sink := &recordingSink{}
	store, mem := newStore(t, api, storefront.WithSessionActivitySink(sink))

	session, err := store.Login(context.Background(), "ada@example.com", "secret1")
	require.NoError(t, err)

	assert.True(t, session.IsAuthenticated())
	assert.Equal(t, "ada@example.com", session.Subject)
	assert.Equal(t, "7", session.UserID)
	assert.True(t, session.HasRole("admin"))
	assert.Equal(t, token, store.Credential())

	persisted, ok, err := mem.Get(context.Background(), storefront.DefaultTokenStorageKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, token, persisted)

	roles, ok, err := mem.Get(context.Background(), storefront.DefaultRolesStorageKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `["ADMIN","USER"]`, roles)

	assert.Equal(t, []storefront.ActivityEventType{
		storefront.ActivityEventSessionChanged,
		storefront.ActivityEventLoginSuccess,
	}, sink.types())
	api.AssertExpectations(t)
}

func TestSessionStoreLoginFailureLeavesStateUnchanged(t *testing.T) {
	api := &MockAuthAPI{}
	rejected := storefront.ErrUnauthorized.Clone()
	rejected.Message = "invalid email or password"
	api.On("Authenticate", mock.Anything, "ada@example.com", "wrong-pass").Return("", rejected).Once()

	sink := &recordingSink{}
	store, mem := newStore(t, api, storefront.WithSessionActivitySink(sink))

	session, err := store.Login(context.Background(), "ada@example.com", "wrong-pass")
	require.Error(t, err)
	assert.True(t, storefront.IsAuthorizationFailure(err))
	assert.Equal(t, "invalid email or password", storefront.UserMessage(err))
	assert.Equal(t, storefront.SessionUnauthenticated, session.State)
	assert.Empty(t, mem.Keys())
	assert.Equal(t, []storefront.ActivityEventType{storefront.ActivityEventLoginFailure}, sink.types())
}

func TestSessionStoreLoginFailureKeepsExistingSession(t *testing.T) {
	api := &MockAuthAPI{}
	token := signToken("ada@example.com", 7, []string{"USER"}, time.Now().Add(time.Hour))
	api.On("Authenticate", mock.Anything, "ada@example.com", "secret1").Return(token, nil).Once()
	api.On("Authenticate", mock.Anything, "ada@example.com", "wrong-pass").Return("", storefront.ErrUnauthorized).Once()

	store, _ := newStore(t, api)

	_, err := store.Login(context.Background(), "ada@example.com", "secret1")
	require.NoError(t, err)

	_, err = store.Login(context.Background(), "ada@example.com", "wrong-pass")
	require.Error(t, err)

	assert.True(t, store.Session().IsAuthenticated())
	assert.Equal(t, token, store.Credential())
}

func TestSessionStoreLoginValidatesLocally(t *testing.T) {
	api := &MockAuthAPI{}
	store, _ := newStore(t, api)

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{name: "missing email", email: "", password: "secret1"},
		{name: "invalid email", email: "not-an-email", password: "secret1"},
		{name: "missing password", email: "ada@example.com", password: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Login(context.Background(), tt.email, tt.password)
			require.Error(t, err)
			assert.True(t, storefront.IsValidationError(err))
		})
	}

	api.AssertNotCalled(t, "Authenticate", mock.Anything, mock.Anything, mock.Anything)
}

func TestSessionStoreUndecodableCredentialResets(t *testing.T) {
	api := &MockAuthAPI{}
	api.On("Authenticate", mock.Anything, "ada@example.com", "secret1").Return("garbage", nil).Once()

	store, mem := newStore(t, api)
	require.NoError(t, mem.Set(context.Background(), storefront.DefaultRolesStorageKey, `["USER"]`))

	session, err := store.Login(context.Background(), "ada@example.com", "secret1")
	require.Error(t, err)
	assert.True(t, storefront.IsDecodeError(err))
	assert.Equal(t, storefront.SessionUnauthenticated, session.State)
	assert.Empty(t, mem.Keys())
}

func TestSessionStoreRegister(t *testing.T) {
	api := &MockAuthAPI{}
	payload := storefront.RegisterPayload{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@example.com",
		Password:  "secret1",
	}
	token := signToken("ada@example.com", 9, []string{"USER"}, time.Now().Add(time.Hour))
	api.On("Register", mock.Anything, payload).Return(token, nil).Once()

	sink := &recordingSink{}
	store, _ := newStore(t, api, storefront.WithSessionActivitySink(sink))

	session, err := store.Register(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, "9", session.UserID)
	assert.Contains(t, sink.types(), storefront.ActivityEventRegisterSuccess)

	_, err = store.Register(context.Background(), storefront.RegisterPayload{Email: "ada@example.com"})
	require.Error(t, err)
	assert.True(t, storefront.IsValidationError(err))
	api.AssertNumberOfCalls(t, "Register", 1)
}

func TestSessionStoreInitializeWithoutCredential(t *testing.T) {
	store, _ := newStore(t, &MockAuthAPI{})

	var seen []storefront.SessionState
	store.OnTransition(func(_ context.Context, tc storefront.TransitionContext) error {
		seen = append(seen, tc.To)
		return nil
	})

	session, err := store.Initialize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, storefront.SessionUnauthenticated, session.State)
	assert.Equal(t, []storefront.SessionState{
		storefront.SessionRestoring,
		storefront.SessionUnauthenticated,
	}, seen)
}

func TestSessionStoreInitializeRestoresCredential(t *testing.T) {
	store, mem := newStore(t, &MockAuthAPI{})
	token := signToken("ada@example.com", 7, []string{"ADMIN"}, time.Now().Add(time.Hour))
	require.NoError(t, mem.Set(context.Background(), storefront.DefaultTokenStorageKey, token))

	var seen []storefront.SessionState
	store.OnTransition(func(_ context.Context, tc storefront.TransitionContext) error {
		seen = append(seen, tc.To)
		return nil
	})

	session, err := store.Initialize(context.Background())
	require.NoError(t, err)
	assert.True(t, session.IsAuthenticated())
	assert.True(t, session.HasRole("ADMIN"))
	assert.Equal(t, []storefront.SessionState{
		storefront.SessionRestoring,
		storefront.SessionAuthenticated,
	}, seen)

	// A second call is a no-op.
	_, err = store.Initialize(context.Background())
	require.NoError(t, err)
	assert.Len(t, seen, 2)
}

func TestSessionStoreInitializeFallsBackToCachedRoles(t *testing.T) {
	store, mem := newStore(t, &MockAuthAPI{})
	token := signToken("ada@example.com", 7, nil, time.Now().Add(time.Hour))
	require.NoError(t, mem.Set(context.Background(), storefront.DefaultTokenStorageKey, token))
	require.NoError(t, mem.Set(context.Background(), storefront.DefaultRolesStorageKey, `["admin"]`))

	session, err := store.Initialize(context.Background())
	require.NoError(t, err)
	assert.True(t, session.HasRole(storefront.RoleAdmin))
}

func TestSessionStoreInitializePurgesBadCredential(t *testing.T) {
	tests := []struct {
		name     string
		token    string
		textCode string
	}{
		{
			name:     "expired",
			token:    signToken("ada@example.com", 7, []string{"USER"}, time.Now().Add(-time.Hour)),
			textCode: storefront.TextCodeCredentialExpired,
		},
		{
			name:     "malformed",
			token:    "definitely.not.ajwt",
			textCode: storefront.TextCodeCredentialMalformed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mem := newStore(t, &MockAuthAPI{})
			require.NoError(t, mem.Set(context.Background(), storefront.DefaultTokenStorageKey, tt.token))
			require.NoError(t, mem.Set(context.Background(), storefront.DefaultRolesStorageKey, `["USER"]`))

			session, err := store.Initialize(context.Background())
			require.Error(t, err)
			assert.Equal(t, tt.textCode, storefront.TextCode(err))
			assert.Equal(t, storefront.SessionUnauthenticated, session.State)
			assert.Empty(t, session.Subject)
			assert.Empty(t, mem.Keys())
		})
	}
}

func TestSessionStoreCustomStorageKeys(t *testing.T) {
	api := &MockAuthAPI{}
	token := signToken("ada@example.com", 7, []string{"USER"}, time.Now().Add(time.Hour))
	api.On("Authenticate", mock.Anything, mock.Anything, mock.Anything).Return(token, nil)

	store, mem := newStore(t, api, storefront.WithStorageKeys("sf.token", "sf.roles"))
	_, err := store.Login(context.Background(), "ada@example.com", "secret1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"sf.token", "sf.roles"}, mem.Keys())
}

func TestSessionStoreLogoutPurges(t *testing.T) {
	api := &MockAuthAPI{}
	token := signToken("ada@example.com", 7, []string{"USER"}, time.Now().Add(time.Hour))
	api.On("Authenticate", mock.Anything, mock.Anything, mock.Anything).Return(token, nil)

	sink := &recordingSink{}
	store, mem := newStore(t, api, storefront.WithSessionActivitySink(sink))
	_, err := store.Login(context.Background(), "ada@example.com", "secret1")
	require.NoError(t, err)

	store.Logout(context.Background())

	assert.Equal(t, storefront.SessionUnauthenticated, store.Session().State)
	assert.Empty(t, store.Credential())
	assert.Empty(t, mem.Keys())
	assert.Contains(t, sink.types(), storefront.ActivityEventLogout)

	// Idempotent while unauthenticated.
	store.Logout(context.Background())
	assert.Equal(t, storefront.SessionUnauthenticated, store.Session().State)
}

func TestSessionStoreUnauthorizedResponseForcesLogout(t *testing.T) {
	api := &MockAuthAPI{}
	token := signToken("ada@example.com", 7, []string{"USER"}, time.Now().Add(time.Hour))
	api.On("Authenticate", mock.Anything, mock.Anything, mock.Anything).Return(token, nil)

	sink := &recordingSink{}
	store, mem := newStore(t, api, storefront.WithSessionActivitySink(sink))
	_, err := store.Login(context.Background(), "ada@example.com", "secret1")
	require.NoError(t, err)

	store.OnUnauthorizedResponse(context.Background())

	assert.Equal(t, storefront.SessionUnauthenticated, store.Session().State)
	assert.Empty(t, mem.Keys())
	assert.Contains(t, sink.types(), storefront.ActivityEventForcedLogout)
}

func TestSessionStoreHooksSeeNewStateSynchronously(t *testing.T) {
	api := &MockAuthAPI{}
	token := signToken("ada@example.com", 7, []string{"USER"}, time.Now().Add(time.Hour))
	api.On("Authenticate", mock.Anything, mock.Anything, mock.Anything).Return(token, nil)

	var store *storefront.SessionStore
	var observed []storefront.TransitionContext
	hook := func(_ context.Context, tc storefront.TransitionContext) error {
		assert.Equal(t, tc.To, store.Session().State)
		observed = append(observed, tc)
		return errors.New("hook errors are logged, not returned")
	}
	store, _ = newStore(t, api, storefront.WithTransitionHook(hook))

	_, err := store.Login(context.Background(), "ada@example.com", "secret1")
	require.NoError(t, err)
	store.Logout(context.Background())

	require.Len(t, observed, 2)
	assert.Equal(t, storefront.SessionUnauthenticated, observed[0].From)
	assert.Equal(t, storefront.SessionAuthenticated, observed[0].To)
	assert.Equal(t, "ada@example.com", observed[0].Session.Subject)
	assert.Equal(t, storefront.SessionAuthenticated, observed[1].From)
	assert.Equal(t, storefront.SessionUnauthenticated, observed[1].To)
}

func TestSessionSnapshotIsIndependent(t *testing.T) {
	api := &MockAuthAPI{}
	token := signToken("ada@example.com", 7, []string{"USER"}, time.Now().Add(time.Hour))
	api.On("Authenticate", mock.Anything, mock.Anything, mock.Anything).Return(token, nil)

	store, _ := newStore(t, api)
	_, err := store.Login(context.Background(), "ada@example.com", "secret1")
	require.NoError(t, err)

	snapshot := store.Session()
	delete(snapshot.Roles, storefront.RoleUser)

	assert.True(t, store.Session().HasRole(storefront.RoleUser))
	assert.NotContains(t, snapshot.String(), token)
}
