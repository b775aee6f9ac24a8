/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package apiclient

import (
	"context"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-adminclient/credential"
	"github.com/acronis/go-adminclient/internal/mockbackend"
	"github.com/acronis/go-adminclient/log/logtest"
)

func newMockBackendClient(t *testing.T, backend *mockbackend.Server, store credential.Store, bus *credential.Bus) (*Client, *recordingNavigator) {
	t.Helper()
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	nav := newRecordingNavigator()
	client, err := NewWithOpts(NewDefaultConfig(srv.URL), store, Opts{
		Bus:       bus,
		Navigator: nav,
		Sink:      &recordingSink{},
		Logger:    logtest.NewRecorder(),
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client, nav
}

func loginAsAdmin(t *testing.T, client *Client) {
	t.Helper()
	out := client.Login(context.Background(), Request{
		Path:   "/user/login",
		Params: StaticParams(url.Values{"username": {"admin"}, "password": {"admin"}}),
	})
	require.False(t, out.Failed, "%v", out.Err)
}

func TestMockBackend_ConcurrentQueriesWithExpiredToken(t *testing.T) {
	backend := mockbackend.New(mockbackend.Opts{Delay: 100 * time.Millisecond})
	bus := credential.NewBus()
	store, err := credential.NewFileStore(filepath.Join(t.TempDir(), "credential.yml"), bus)
	require.NoError(t, err)
	client, nav := newMockBackendClient(t, backend, store, bus)

	loginAsAdmin(t, client)
	loggedIn, ok := store.Get()
	require.True(t, ok)
	require.Equal(t, "1", loggedIn.UserID)

	backend.ExpireAccessTokens()

	startTime := time.Now()
	var wg sync.WaitGroup
	outcomes := make([]Outcome[mockbackend.Page], 8)
	for i := range outcomes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i] = Perform[mockbackend.Page](context.Background(), client, Request{
				Path:   "/user/query",
				Params: StaticParams(url.Values{"page": {"1"}, "size": {"5"}}),
			})
		}(i)
	}
	wg.Wait()

	for _, out := range outcomes {
		require.False(t, out.Failed, "%v", out.Err)
		require.Equal(t, 25, out.Payload.Total)
		require.Len(t, out.Payload.List, 5)
	}
	require.Equal(t, 1, backend.RefreshCalls())
	require.LessOrEqual(t, backend.MaxInFlight(), DefaultLimit)
	require.Less(t, time.Since(startTime), 2*time.Second)
	require.EqualValues(t, 0, nav.redirects.Load())

	refreshed, ok := store.Get()
	require.True(t, ok)
	require.NotEqual(t, loggedIn.AccessToken, refreshed.AccessToken)
	require.NotEqual(t, loggedIn.RefreshToken, refreshed.RefreshToken)

	// The rotated pair survives a restart.
	reopened, err := credential.NewFileStore(store.Path(), nil)
	require.NoError(t, err)
	persisted, ok := reopened.Get()
	require.True(t, ok)
	require.Equal(t, refreshed, persisted)
}

func TestMockBackend_RevokedRefreshToken(t *testing.T) {
	backend := mockbackend.New(mockbackend.Opts{})
	bus := credential.NewBus()
	store := credential.NewMemoryStore(bus)
	client, nav := newMockBackendClient(t, backend, store, bus)

	loginAsAdmin(t, client)
	backend.ExpireAccessTokens()
	backend.RevokeRefreshTokens()

	out := client.Get(context.Background(), "/user/department/", nil)
	require.True(t, out.Failed)
	var refreshErr *RefreshFailureError
	require.ErrorAs(t, out.Err, &refreshErr)
	_, ok := store.Get()
	require.False(t, ok)
	require.EqualValues(t, 1, nav.redirects.Load())
}

func TestMockBackend_ForbiddenSession(t *testing.T) {
	backend := mockbackend.New(mockbackend.Opts{})
	bus := credential.NewBus()
	store := credential.NewMemoryStore(bus)
	client, nav := newMockBackendClient(t, backend, store, bus)

	loginAsAdmin(t, client)
	backend.ForceForbidden(true)

	out := Perform[[]mockbackend.Department](context.Background(), client, Request{Path: "/user/department/"})
	require.True(t, out.Failed)
	var forbiddenErr *SessionForbiddenError
	require.ErrorAs(t, out.Err, &forbiddenErr)
	require.EqualValues(t, 1, nav.redirects.Load())
	require.EqualValues(t, 1, nav.resets.Load())
}

func TestNew_TracksOwnCredentialWrites(t *testing.T) {
	backend := mockbackend.New(mockbackend.Opts{})
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	// The store publishes on a bus the client knows nothing about.
	store := credential.NewMemoryStore(credential.NewBus())
	client, err := New(NewDefaultConfig(srv.URL), store)
	require.NoError(t, err)
	t.Cleanup(client.Close)

	generation := func() uint64 {
		client.coord.mu.Lock()
		defer client.coord.mu.Unlock()
		return client.coord.generation
	}

	before := generation()
	loginAsAdmin(t, client)
	require.Greater(t, generation(), before)

	backend.ExpireAccessTokens()
	backend.RevokeRefreshTokens()
	out := client.Get(context.Background(), "/user/department/", nil)
	var refreshErr *RefreshFailureError
	require.ErrorAs(t, out.Err, &refreshErr)

	// No credential is left, the 401 fails without another refresh.
	out = client.Get(context.Background(), "/user/department/", nil)
	require.ErrorAs(t, out.Err, &refreshErr)
	require.Equal(t, 1, backend.RefreshCalls())

	loginAsAdmin(t, client)
	out = client.Get(context.Background(), "/user/department/", nil)
	require.False(t, out.Failed, "%v", out.Err)

	before = generation()
	require.NoError(t, client.Logout())
	require.Greater(t, generation(), before)
}
