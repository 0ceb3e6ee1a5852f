package devserver

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transitwatch/transitwatch/pkg/auth"
	"github.com/transitwatch/transitwatch/pkg/client"
	"github.com/transitwatch/transitwatch/pkg/tokenstore"
	"github.com/transitwatch/transitwatch/pkg/utils"
)

// buildStack wires the full client stack against a stub server, the way
// the CLI does: file-backed token store, persistent cookie jar, session
// controller and the authenticated API client.
func buildStack(t *testing.T, ts *httptest.Server, stateDir string) (*auth.Controller, *client.Client) {
	t.Helper()

	jar, err := auth.NewPersistentJar(filepath.Join(stateDir, "cookies.json"))
	require.NoError(t, err)
	tokens, err := tokenstore.NewFileStore(filepath.Join(stateDir, "token.json"))
	require.NoError(t, err)

	httpClient := utils.NewHTTPClient(utils.HTTPClientConfig{
		Timeout: 5 * time.Second,
		Jar:     jar,
	})

	controller, err := auth.NewController(auth.ControllerOptions{
		BaseURL:    ts.URL,
		HTTPClient: httpClient,
		Tokens:     tokens,
		Jar:        jar,
	})
	require.NoError(t, err)

	api := client.NewClient(ts.URL, tokens, controller.Refresher(), client.WithHTTPClient(httpClient))
	return controller, api
}

func TestIntegration_LoginAndFetch(t *testing.T) {
	s := NewServer()
	s.SeedUser("rider@example.com", "transit123")
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	controller, api := buildStack(t, ts, t.TempDir())
	ctx := context.Background()

	require.NoError(t, controller.Login(ctx, "rider@example.com", "transit123"))
	assert.Equal(t, auth.StateAuthenticated, controller.State())

	sub, err := api.CreateSubscription(ctx, "12", "s-4")
	require.NoError(t, err)

	arrivals, err := api.Arrivals(ctx, sub.RouteID, sub.StopID)
	require.NoError(t, err)
	assert.Len(t, arrivals, 3)
}

func TestIntegration_ExpiredTokenTriggersSingleRefresh(t *testing.T) {
	s := NewServer()
	s.SeedUser("rider@example.com", "transit123")
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	controller, api := buildStack(t, ts, t.TempDir())
	ctx := context.Background()
	require.NoError(t, controller.Login(ctx, "rider@example.com", "transit123"))

	// Every outstanding access token dies; the next burst of requests
	// must recover through exactly one refresh. The refresh endpoint is
	// slowed down so every caller's 401 lands while that refresh is
	// still in flight.
	s.ExpireAccessTokens()
	s.SetRefreshDelay(300 * time.Millisecond)

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = api.ListSubscriptions(ctx)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "caller %d", i)
	}
	assert.Equal(t, 1, s.RefreshCalls(), "concurrent retries should share one refresh")
	assert.Equal(t, auth.StateAuthenticated, controller.State())
}

func TestIntegration_SessionSurvivesRestart(t *testing.T) {
	s := NewServer()
	s.SeedUser("rider@example.com", "transit123")
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	stateDir := t.TempDir()
	ctx := context.Background()

	controller, _ := buildStack(t, ts, stateDir)
	require.NoError(t, controller.Login(ctx, "rider@example.com", "transit123"))

	// A new process: same state directory, fresh stack. The persisted
	// refresh cookie re-establishes the session without credentials.
	controller2, api2 := buildStack(t, ts, stateDir)
	controller2.BootstrapRefresh(ctx)
	require.Equal(t, auth.StateAuthenticated, controller2.State())

	_, err := api2.ListSubscriptions(ctx)
	assert.NoError(t, err)
}

func TestIntegration_LogoutEndsSessionEverywhere(t *testing.T) {
	s := NewServer()
	s.SeedUser("rider@example.com", "transit123")
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	stateDir := t.TempDir()
	ctx := context.Background()

	controller, _ := buildStack(t, ts, stateDir)
	require.NoError(t, controller.Login(ctx, "rider@example.com", "transit123"))
	controller.Logout(ctx)
	assert.Equal(t, auth.StateUnauthenticated, controller.State())

	// After logout a restart cannot resume the session
	controller2, _ := buildStack(t, ts, stateDir)
	controller2.BootstrapRefresh(ctx)
	assert.Equal(t, auth.StateUnauthenticated, controller2.State())
}

func TestIntegration_RefreshFailureEndsSession(t *testing.T) {
	s := NewServer()
	s.SeedUser("rider@example.com", "transit123")
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	controller, api := buildStack(t, ts, t.TempDir())
	ctx := context.Background()
	require.NoError(t, controller.Login(ctx, "rider@example.com", "transit123"))

	// Revoke the session server-side, then kill the access token. The
	// refresh attempt fails and the session terminates locally.
	s.RevokeRefreshCredentials()
	s.ExpireAccessTokens()

	_, err := api.ListSubscriptions(ctx)
	require.Error(t, err)

	var refreshErr *auth.RefreshError
	assert.ErrorAs(t, err, &refreshErr)
	assert.Equal(t, auth.StateUnauthenticated, controller.State())
}
