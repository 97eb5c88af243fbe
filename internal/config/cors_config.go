package config

import "strings"

type Cors struct{}

var _ CorsConfig = Cors{}

// GetAllowedOrigins reads CORS_ORIGINS as a comma-separated list, defaulting
// to allow-all for local development.
func (Cors) GetAllowedOrigins() []string {
	raw := GetEnv("CORS_ORIGINS", "*")
	var origins []string
	for _, origin := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

func (Cors) GetAllowedMethods() []string {
	return []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
}

func (Cors) GetAllowedHeaders() []string {
	return []string{"Content-Type", "Authorization"}
}
