package config

import "time"

type Config interface {
	EnvConfig
	GatewayConfig
	RealtimeConfig
	StorageConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
}

// GatewayConfig configures the auth gateway REST client.
type GatewayConfig interface {
	GetAPIBaseURL() string
	GetRequestTimeout() time.Duration
}

// RealtimeConfig configures the realtime channel transport and its
// reconnect policy. Base delay and attempt cap are tunables, not constants.
type RealtimeConfig interface {
	GetRealtimeURL() string
	GetReconnectBase() time.Duration
	GetMaxReconnectAttempts() int
}

type StorageConfig interface {
	GetCredentialsPath() string
}

type mainConfig struct {
	EnvVars
}

func New() Config {
	return mainConfig{}
}
