package config

import (
	"os"
	"strconv"
	"time"
)

const (
	appNameVar           = "APP_NAME"
	apiBaseURLVar        = "API_BASE_URL"
	requestTimeoutVar    = "REQUEST_TIMEOUT_MS"
	realtimeURLVar       = "REALTIME_URL"
	reconnectBaseVar     = "RECONNECT_BASE_MS"
	reconnectAttemptsVar = "RECONNECT_MAX_ATTEMPTS"
	credentialsPathVar   = "CREDENTIALS_DB"
)

type EnvVars struct{}

var _ Config = mainConfig{}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "CareFleet")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

// GetAPIBaseURL returns the base URL of the CareFleet data service
// (e.g. "http://localhost:8080/api/v1")
func (EnvVars) GetAPIBaseURL() string {
	return GetEnv(apiBaseURLVar, "http://localhost:8080/api/v1")
}

func (EnvVars) GetRequestTimeout() time.Duration {
	return getEnvMillis(requestTimeoutVar, 10_000)
}

func (EnvVars) GetRealtimeURL() string {
	return GetEnv(realtimeURLVar, "ws://localhost:3001/ws")
}

func (EnvVars) GetReconnectBase() time.Duration {
	return getEnvMillis(reconnectBaseVar, 1_000)
}

func (EnvVars) GetMaxReconnectAttempts() int {
	return getEnvInt(reconnectAttemptsVar, 5)
}

func (EnvVars) GetCredentialsPath() string {
	return GetEnv(credentialsPathVar, "./data/credentials.db")
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(envVar string, defaultValue int) int {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return defaultValue
	}
	return n
}

func getEnvMillis(envVar string, defaultMillis int) time.Duration {
	return time.Duration(getEnvInt(envVar, defaultMillis)) * time.Millisecond
}
