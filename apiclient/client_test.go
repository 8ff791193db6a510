package apiclient_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/carefleet/carefleet-client/apiclient"
	errs "github.com/carefleet/carefleet-client/internal/errors"
	"github.com/carefleet/carefleet-client/users"
)

type testConfig struct {
	baseURL string
}

func (c testConfig) GetAPIBaseURL() string            { return c.baseURL }
func (c testConfig) GetRequestTimeout() time.Duration { return time.Second }

// fakeTokens rotates its access token on Refresh
type fakeTokens struct {
	mu         sync.Mutex
	token      string
	refreshed  int
	refreshErr error
}

func (f *fakeTokens) AccessToken() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

func (f *fakeTokens) Refresh(context.Context) (*users.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshed++
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	f.token = "access-fresh"
	return &users.User{ID: "user-1"}, nil
}

func (f *fakeTokens) refreshCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshed
}

func newClient(t *testing.T, server *httptest.Server, tokens *fakeTokens) *apiclient.Client {
	t.Helper()
	client, err := apiclient.New(testConfig{baseURL: server.URL}, tokens)
	require.NoError(t, err)
	return client
}

func TestRequestCarriesBearerCredential(t *testing.T) {
	var header string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	tokens := &fakeTokens{token: "access-stale"}
	var out map[string]bool
	require.NoError(t, newClient(t, server, tokens).GetJSON(context.Background(), "/ambulances", &out))
	require.Equal(t, "Bearer access-stale", header)
	require.True(t, out["ok"])
	require.Zero(t, tokens.refreshCount())
}

func TestUnauthorizedTriggersOneRefreshAndOneRetry(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Header.Get("Authorization"))
		mu.Unlock()
		if r.Header.Get("Authorization") != "Bearer access-fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"id":"call-1"}`))
	}))
	defer server.Close()

	tokens := &fakeTokens{token: "access-stale"}
	var out map[string]string
	require.NoError(t, newClient(t, server, tokens).GetJSON(context.Background(), "/emergency-calls/call-1", &out))
	require.Equal(t, "call-1", out["id"])
	require.Equal(t, 1, tokens.refreshCount())
	require.Equal(t, []string{"Bearer access-stale", "Bearer access-fresh"}, seen)
}

func TestPostBodyIsReplayedOnRetry(t *testing.T) {
	var mu sync.Mutex
	var bodies []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 256)
		n, _ := r.Body.Read(buf)
		mu.Lock()
		bodies = append(bodies, string(buf[:n]))
		mu.Unlock()
		if r.Header.Get("Authorization") != "Bearer access-fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	tokens := &fakeTokens{token: "access-stale"}
	body := map[string]string{"status": "EN_ROUTE"}
	require.NoError(t, newClient(t, server, tokens).PostJSON(context.Background(), "/assignments/a-1/status", body, nil))

	require.Len(t, bodies, 2)
	require.Equal(t, bodies[0], bodies[1])
	require.Contains(t, bodies[1], "EN_ROUTE")
}

func TestFailedRefreshPropagatesWithoutRetry(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	tokens := &fakeTokens{token: "access-stale", refreshErr: errs.ErrSessionExpired}
	err := newClient(t, server, tokens).GetJSON(context.Background(), "/ambulances", nil)
	require.ErrorIs(t, err, errs.ErrSessionExpired)
	require.Equal(t, 1, requests)
}

func TestSecondUnauthorizedIsNotRetriedAgain(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	tokens := &fakeTokens{token: "access-stale"}
	err := newClient(t, server, tokens).GetJSON(context.Background(), "/ambulances", nil)
	require.Error(t, err)
	require.Equal(t, 2, requests)
	require.Equal(t, 1, tokens.refreshCount())
}

func TestTransportFailureSurfacesNetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	tokens := &fakeTokens{token: "access-stale"}
	client, err := apiclient.New(testConfig{baseURL: server.URL}, tokens)
	require.NoError(t, err)
	require.ErrorIs(t, client.GetJSON(context.Background(), "/ambulances", nil), errs.ErrNetwork)
}

func TestNewRequiresTokenSource(t *testing.T) {
	_, err := apiclient.New(testConfig{baseURL: "http://localhost"}, nil)
	require.Error(t, err)
}

func TestRefreshErrorIsReturnedVerbatim(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	cause := errors.Wrap(errs.ErrSessionExpired, "refresh rejected")
	tokens := &fakeTokens{token: "access-stale", refreshErr: cause}
	err := newClient(t, server, tokens).GetJSON(context.Background(), "/ambulances", nil)
	require.Equal(t, cause, err)
}
