package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/carefleet/carefleet-client/internal/config"
)

func TestDefaults(t *testing.T) {
	c := config.New()
	require.Equal(t, "CareFleet", c.GetAppName())
	require.Equal(t, "DEV", c.GetEnv())
	require.Equal(t, "http://localhost:8080/api/v1", c.GetAPIBaseURL())
	require.Equal(t, 10*time.Second, c.GetRequestTimeout())
	require.Equal(t, "ws://localhost:3001/ws", c.GetRealtimeURL())
	require.Equal(t, time.Second, c.GetReconnectBase())
	require.Equal(t, 5, c.GetMaxReconnectAttempts())
	require.Equal(t, "./data/credentials.db", c.GetCredentialsPath())
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("APP_NAME", "CareFleet Staging")
	t.Setenv("ENV", "STAGING")
	t.Setenv("API_BASE_URL", "https://staging.carefleet.io/api/v1")
	t.Setenv("REQUEST_TIMEOUT_MS", "2500")
	t.Setenv("REALTIME_URL", "wss://staging.carefleet.io/ws")
	t.Setenv("RECONNECT_BASE_MS", "500")
	t.Setenv("RECONNECT_MAX_ATTEMPTS", "3")
	t.Setenv("CREDENTIALS_DB", "/var/lib/carefleet/credentials.db")

	c := config.New()
	require.Equal(t, "CareFleet Staging", c.GetAppName())
	require.Equal(t, "STAGING", c.GetEnv())
	require.Equal(t, "https://staging.carefleet.io/api/v1", c.GetAPIBaseURL())
	require.Equal(t, 2500*time.Millisecond, c.GetRequestTimeout())
	require.Equal(t, "wss://staging.carefleet.io/ws", c.GetRealtimeURL())
	require.Equal(t, 500*time.Millisecond, c.GetReconnectBase())
	require.Equal(t, 3, c.GetMaxReconnectAttempts())
	require.Equal(t, "/var/lib/carefleet/credentials.db", c.GetCredentialsPath())
}

func TestInvalidNumericValuesFallBackToDefaults(t *testing.T) {
	t.Setenv("REQUEST_TIMEOUT_MS", "not-a-number")
	t.Setenv("RECONNECT_MAX_ATTEMPTS", "-1")

	c := config.New()
	require.Equal(t, 10*time.Second, c.GetRequestTimeout())
	require.Equal(t, 5, c.GetMaxReconnectAttempts())
}
