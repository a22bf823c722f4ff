// Package config resolves the service configuration from environment
// variables. Every account-security knob is a named, overridable setting;
// only the token secret has no default.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"kense.org/internal/auth"
)

const envPrefix = "KENSE_"

// Config is the resolved service configuration.
type Config struct {
	Addr  string
	PGDSN string

	TokenSecret string
	TokenExpiry string

	MaxFailedAttempts       int
	LockoutMinutes          int
	AttemptRetentionMinutes int
	SweepIntervalMinutes    int
	PasswordMinLength       int
}

// Load reads the configuration from the environment. KENSE_AUTH_SECRET is
// required; everything else has a default.
func Load() (*Config, error) {
	secret := os.Getenv(envPrefix + "AUTH_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("missing required environment variable %sAUTH_SECRET", envPrefix)
	}
	return &Config{
		Addr:                    getEnv("ADDR", ":8080"),
		PGDSN:                   getEnv("PG_DSN", ""),
		TokenSecret:             secret,
		TokenExpiry:             getEnv("TOKEN_EXPIRY", "1h"),
		MaxFailedAttempts:       getEnvAsInt("MAX_FAILED_ATTEMPTS", auth.DefaultMaxFailedAttempts),
		LockoutMinutes:          getEnvAsInt("LOCKOUT_MINUTES", int(auth.DefaultLockoutDuration/time.Minute)),
		AttemptRetentionMinutes: getEnvAsInt("ATTEMPT_RETENTION_MINUTES", int(auth.DefaultAttemptRetention/time.Minute)),
		SweepIntervalMinutes:    getEnvAsInt("SWEEP_INTERVAL_MINUTES", int(auth.DefaultSweepInterval/time.Minute)),
		PasswordMinLength:       getEnvAsInt("PASSWORD_MIN_LENGTH", auth.DefaultPasswordMinLength),
	}, nil
}

// TrackerConfig maps the minute-based settings onto the tracker's durations.
func (c *Config) TrackerConfig() auth.TrackerConfig {
	return auth.TrackerConfig{
		MaxFailedAttempts: c.MaxFailedAttempts,
		LockoutDuration:   time.Duration(c.LockoutMinutes) * time.Minute,
		AttemptRetention:  time.Duration(c.AttemptRetentionMinutes) * time.Minute,
		SweepInterval:     time.Duration(c.SweepIntervalMinutes) * time.Minute,
		PasswordMinLength: c.PasswordMinLength,
	}
}

// TokenTTL resolves the configured expiry string to a duration.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(auth.ParseExpiry(c.TokenExpiry)) * time.Second
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(envPrefix + key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	raw := os.Getenv(envPrefix + key)
	if raw == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val <= 0 {
		return defaultVal
	}
	return val
}
