package util

import (
	"os"
	"strconv"
	"time"

	"github.com/OFFIS-RIT/segbench/pkg/logger"

	"github.com/joho/godotenv"
)

// LoadEnv reads .env from the working directory when present. Variables
// already set in the process environment win.
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found, using system environment variables")
	}
}

// envOr returns parse(value) for a set variable, and def when the variable
// is unset or parse rejects the value.
func envOr[T any](key string, def T, parse func(string) (T, bool)) T {
	value, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	if v, ok := parse(value); ok {
		return v
	}
	return def
}

func GetEnv(key string) string {
	return os.Getenv(key)
}

func GetEnvString(key string, defaultValue string) string {
	return envOr(key, defaultValue, func(s string) (string, bool) { return s, true })
}

func GetEnvNumeric(key string, defaultValue int) float64 {
	return envOr(key, float64(defaultValue), func(s string) (float64, bool) {
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	})
}

// GetEnvBool only accepts the literals "true" and "false".
func GetEnvBool(key string, defaultValue bool) bool {
	return envOr(key, defaultValue, func(s string) (bool, bool) {
		return s == "true", s == "true" || s == "false"
	})
}

// GetEnvDuration parses values like "30s" or "5m". Invalid or non-positive
// values yield defaultValue.
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	return envOr(key, defaultValue, func(s string) (time.Duration, bool) {
		d, err := time.ParseDuration(s)
		if err != nil || d <= 0 {
			logger.Warn("Invalid duration, using default", "key", key, "value", s, "default", defaultValue.String())
			return 0, false
		}
		return d, true
	})
}
