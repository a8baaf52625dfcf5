package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

func init() {
	// Missing .env is fine, variables may come from the environment
	godotenv.Load(".env")
}

// Config func to get env value
func Config(key string) string {
	return os.Getenv(key)
}

// ConfigInt func to get env value as int, or fallback when unset or invalid
func ConfigInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

// ConfigDuration func to get env value as duration, or fallback when unset or invalid
func ConfigDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}
