// Package config loads server configuration from the environment so main
// stays lean. Defaults mirror a small self-hosted deployment.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config captures everything the server needs at startup.
type Config struct {
	Addr       string
	ServerName string

	// Private instances lock new accounts until an admin validates them.
	Private bool

	// Empty URLs select the in-memory stores; useful for development and
	// tests, required to be set in production.
	PostgresURL string
	RedisURL    string

	// Size in bytes of secrets, salts, challenges, and responses.
	// Should be at least 16; 32 is more than enough.
	SecretSize int

	// KDFIterations is the PBKDF2 iteration count. You probably shouldn't
	// touch this.
	KDFIterations int

	PasswordMinLength   int
	PasswordMaxAttempts int
	PasswordLockTime    time.Duration

	// UserSessionTTL is the maximum time a user session can go without
	// being renewed.
	UserSessionTTL time.Duration

	// AdminSessionTTL should be very short (1-5 minutes) for optimal
	// security.
	AdminSessionTTL time.Duration

	// PageSize caps the number of results returned by any listing query.
	PageSize int

	// SeedAdminName, when set, triggers idempotent creation of a root
	// administrator at startup. SeedAdminSecret is hex-encoded.
	SeedAdminName   string
	SeedAdminSecret string
}

// FromEnv builds a Config from environment variables, applying defaults for
// anything unset.
func FromEnv() Config {
	return Config{
		Addr:                envString("UNDERTONE_ADDR", ":8080"),
		ServerName:          envString("UNDERTONE_SERVER_NAME", "undertone"),
		Private:             envString("UNDERTONE_PRIVATE", "") == "true",
		PostgresURL:         os.Getenv("UNDERTONE_POSTGRES_URL"),
		RedisURL:            os.Getenv("UNDERTONE_REDIS_URL"),
		SecretSize:          envInt("UNDERTONE_SECRET_SIZE", 32),
		KDFIterations:       envInt("UNDERTONE_KDF_ITERATIONS", 10000),
		PasswordMinLength:   envInt("UNDERTONE_PASSWORD_MIN_LENGTH", 8),
		PasswordMaxAttempts: envInt("UNDERTONE_PASSWORD_MAX_ATTEMPTS", 10),
		PasswordLockTime:    envDuration("UNDERTONE_PASSWORD_LOCK_TIME", time.Hour),
		UserSessionTTL:      envDuration("UNDERTONE_SESSION_TTL", 15*time.Minute),
		AdminSessionTTL:     envDuration("UNDERTONE_ADMIN_SESSION_TTL", 2*time.Minute),
		PageSize:            envInt("UNDERTONE_PAGE_SIZE", 500),
		SeedAdminName:       os.Getenv("UNDERTONE_SEED_ADMIN_NAME"),
		SeedAdminSecret:     os.Getenv("UNDERTONE_SEED_ADMIN_SECRET"),
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
