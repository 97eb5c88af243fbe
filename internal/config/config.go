package config

import (
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

type Config interface {
	EnvConfig
	CorsConfig
	SecurityConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetDatabaseURL() string
	GetRedisAddr() string
	GetEnv() string
}

type CorsConfig interface {
	GetAllowedOrigins() []string
	GetAllowedMethods() []string
	GetAllowedHeaders() []string
}

type mainConfig struct {
	EnvVars
	Cors
	Security
}

// New loads a .env file when present and returns the assembled config. It
// fails when a required secret is missing rather than starting with a
// guessable default.
func New() (Config, error) {
	// Absent .env is fine; real environments set variables directly.
	_ = godotenv.Load()

	cfg := mainConfig{}
	if cfg.GetJWTSecret() == "" {
		return nil, errors.New("[config.New] JWT_SECRET must be set")
	}
	return cfg, nil
}
