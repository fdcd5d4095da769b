// Package config resolves runtime settings from the environment, with an
// optional .env file for local development.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config carries every tunable the server reads at startup.
type Config struct {
	Addr              string
	DatabaseURL       string
	SnapshotDir       string
	SnapshotInterval  time.Duration
	SnapshotRetention int
	SessionTTL        time.Duration
}

// Load reads configuration from the environment. A missing .env file is not
// an error; explicit environment variables always win over file values.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Addr:              getenv("NETINV_ADDR", ":8080"),
		DatabaseURL:       os.Getenv("NETINV_DATABASE_URL"),
		SnapshotDir:       getenv("NETINV_SNAPSHOT_DIR", "data"),
		SnapshotInterval:  getduration("NETINV_SNAPSHOT_INTERVAL", 5*time.Minute),
		SnapshotRetention: getint("NETINV_SNAPSHOT_RETENTION", 20),
		SessionTTL:        getduration("NETINV_SESSION_TTL", 12*time.Hour),
	}
}

func getenv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getint(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getduration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
