// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package config loads the accounts API configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// knownWeakSecrets contains default/example secrets that must be rejected.
var knownWeakSecrets = []string{
	"change-me-to-32-byte-secret-key!",
	"REPLACE_WITH_YOUR_OWN_SECRET_KEY!",
	"my-ultra-secure-and-ultra-long-secret",
}

// Config holds the application configuration loaded from environment variables.
type Config struct {
	Env            string        `env:"ACCOUNTS_ENV" envDefault:"development"`
	ServerHost     string        `env:"ACCOUNTS_SERVER_HOST" envDefault:"localhost"`
	ServerPort     int           `env:"ACCOUNTS_SERVER_PORT" envDefault:"5001"`
	APIPrefix      string        `env:"ACCOUNTS_API_PREFIX" envDefault:"/api/v1/users"`
	LogLevel       string        `env:"ACCOUNTS_LOG_LEVEL" envDefault:"info"`
	RequestTimeout time.Duration `env:"ACCOUNTS_REQUEST_TIMEOUT" envDefault:"30s"`
	UploadsDir     string        `env:"ACCOUNTS_UPLOADS_DIR" envDefault:"./uploads"`

	// Database configuration
	DBDriver string `env:"ACCOUNTS_DB_DRIVER" envDefault:"sqlite"` // sqlite, postgres or mysql
	DBDSN    string `env:"ACCOUNTS_DB_DSN" envDefault:"./data/accounts.db"`

	// Token and password configuration
	JWTSecret          string   `env:"JWT_SECRET,required"`
	JWTExpiresIn       Lifetime `env:"JWT_EXPIRES_IN,required"`
	JWTCookieExpiresIn int      `env:"JWT_COOKIE_EXPIRES_IN" envDefault:"90"` // days
	BcryptCost         int      `env:"BCRYPT_COST" envDefault:"12"`

	// Login protection
	MaxFailedLogins int           `env:"ACCOUNTS_MAX_FAILED_LOGINS" envDefault:"5"`
	LockoutDuration time.Duration `env:"ACCOUNTS_LOCKOUT_DURATION" envDefault:"15m"`

	// Cache configuration
	RedisURL    string `env:"ACCOUNTS_REDIS_URL"` // Optional Redis URL for shared login-protection state
	CachePrefix string `env:"ACCOUNTS_CACHE_PREFIX" envDefault:"accounts:"`

	// TrustedOrigins are host names allowed to send cross-origin writes.
	TrustedOrigins []string `env:"ACCOUNTS_TRUSTED_ORIGINS" envSeparator:","`

	// GeoIP configuration
	GeoIPDBPath string `env:"ACCOUNTS_GEOIP_DB_PATH"` // Path to GeoLite2-Country.mmdb file

	// Bootstrap admin, created on startup when both are set
	AdminEmail    string `env:"ACCOUNTS_ADMIN_EMAIL"`
	AdminPassword string `env:"ACCOUNTS_ADMIN_PASSWORD"`
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if the application is running in production mode.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// UseRedis returns true if Redis is configured.
func (c Config) UseRedis() bool {
	return c.RedisURL != ""
}

// GeoIPEnabled returns true if GeoIP database is configured.
func (c Config) GeoIPEnabled() bool {
	return c.GeoIPDBPath != ""
}

// SeedAdmin returns true if a bootstrap admin account is configured.
func (c Config) SeedAdmin() bool {
	return c.AdminEmail != "" && c.AdminPassword != ""
}

// TokenTTL returns the session token lifetime.
func (c Config) TokenTTL() time.Duration {
	return time.Duration(c.JWTExpiresIn)
}

// CookieTTL returns the lifetime of the jwt cookie.
func (c Config) CookieTTL() time.Duration {
	return time.Duration(c.JWTCookieExpiresIn) * 24 * time.Hour
}

// MinJWTSecretLength is the minimum required length for the token signing secret.
// HS256 keys shorter than the hash output weaken the MAC.
const MinJWTSecretLength = 32

var validDrivers = []string{"sqlite", "postgres", "mysql"}

// Load parses environment variables and returns a Config struct.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	// Warn about low-entropy secrets
	if !hasMinimumEntropy(cfg.JWTSecret) {
		slog.Warn("JWT_SECRET has low character diversity; " +
			"consider generating a random secret with: openssl rand -base64 32")
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.JWTSecret) < MinJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d bytes long, got %d bytes; "+
			"generate a secure secret with: openssl rand -base64 32",
			MinJWTSecretLength, len(c.JWTSecret))
	}

	for _, weak := range knownWeakSecrets {
		if c.JWTSecret == weak {
			return fmt.Errorf("JWT_SECRET is a known default value and must not be used; " +
				"generate a secure secret with: openssl rand -base64 32")
		}
	}

	if c.JWTExpiresIn <= 0 {
		return fmt.Errorf("JWT_EXPIRES_IN must be positive")
	}
	if c.JWTCookieExpiresIn <= 0 {
		return fmt.Errorf("JWT_COOKIE_EXPIRES_IN must be a positive number of days, got %d", c.JWTCookieExpiresIn)
	}

	if c.Env != "development" && c.Env != "production" {
		return fmt.Errorf("ACCOUNTS_ENV must be development or production, got %q", c.Env)
	}

	c.DBDriver = strings.ToLower(c.DBDriver)
	valid := false
	for _, d := range validDrivers {
		if c.DBDriver == d {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("ACCOUNTS_DB_DRIVER must be one of %s, got %q",
			strings.Join(validDrivers, ", "), c.DBDriver)
	}

	if !strings.HasPrefix(c.APIPrefix, "/") {
		return fmt.Errorf("ACCOUNTS_API_PREFIX must start with /, got %q", c.APIPrefix)
	}

	return nil
}

// hasMinimumEntropy checks that a secret contains at least 3 character classes
// (lowercase, uppercase, digits, special characters).
func hasMinimumEntropy(s string) bool {
	charTypes := 0
	if strings.ContainsAny(s, "abcdefghijklmnopqrstuvwxyz") {
		charTypes++
	}
	if strings.ContainsAny(s, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
		charTypes++
	}
	if strings.ContainsAny(s, "0123456789") {
		charTypes++
	}
	if strings.ContainsAny(s, "!@#$%^&*()-_=+[]{}|;:,.<>?/~`'\"\\") {
		charTypes++
	}
	return charTypes >= 3
}
