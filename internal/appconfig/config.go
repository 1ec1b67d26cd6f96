package appconfig

import (
	"os"
	"strconv"
)

// Config holds client settings, read from SYNC_* environment variables with
// defaults suitable for local development.
type Config struct {
	CoordinatorURL string
	CatalogURL     string
	StreamBaseURL  string
	ProfilePath    string
	DriftThreshold float64
	LogLevel       string
}

// NewConfigFromEnv reads SYNC_* environment variables (with defaults).
func NewConfigFromEnv() Config {
	threshold, err := strconv.ParseFloat(getEnv("SYNC_DRIFT_THRESHOLD", "1.5"), 64)
	if err != nil || threshold <= 0 {
		threshold = 1.5
	}

	return Config{
		CoordinatorURL: getEnv("SYNC_COORDINATOR_URL", "ws://localhost:8080/ws"),
		CatalogURL:     getEnv("SYNC_CATALOG_URL", "http://localhost:8080/api"),
		StreamBaseURL:  getEnv("SYNC_STREAM_URL", "http://localhost:8080/stream"),
		ProfilePath:    getEnv("SYNC_PROFILE_PATH", "syncplayer.db"),
		DriftThreshold: threshold,
		LogLevel:       getEnv("SYNC_LOG_LEVEL", "info"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
