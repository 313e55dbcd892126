// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strings"
)

// Config holds all application configuration.
type Config struct {
	Port   string
	Env    string // "dev" or anything else for production
	Domain string // used to locate the TLS certificates outside dev
	Name   string

	// Test-message recipient for the /test endpoint.
	DevPhone string
	DevName  string

	// Path of the WhatsApp device credential store (SQLite file).
	DeviceStorePath string

	// Bearer-token introspection for /send. Skipped unless TokenAPI is true.
	TokenAPI             bool
	TokenValidationURL   string
	TokenInvalidationURL string

	UseMemoryStore bool
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:                 getEnv("APP_PORT", "3000"),
		Env:                  getEnv("APP_ENV", "dev"),
		Domain:               getEnv("APP_DOMAIN", ""),
		Name:                 getEnv("APP_NAME", "WhatsApp Server"),
		DevPhone:             getEnv("DEV_PHONE", ""),
		DevName:              getEnv("DEV_NAME", ""),
		DeviceStorePath:      getEnv("WA_STORE_PATH", "./data/whatsapp.db"),
		TokenAPI:             getEnvBool("TOKEN_API", false),
		TokenValidationURL:   getEnv("TOKEN_VALIDATION_URL", ""),
		TokenInvalidationURL: getEnv("TOKEN_INVALIDATION_URL", ""),
		UseMemoryStore:       getEnvBool("USE_MEMORY_STORE", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the combinations that would only fail at an awkward time.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("APP_PORT cannot be empty")
	}
	if !c.IsDev() && c.Domain == "" {
		return fmt.Errorf("APP_DOMAIN is required outside dev (TLS certificates)")
	}
	if c.TokenAPI && c.TokenValidationURL == "" {
		return fmt.Errorf("TOKEN_VALIDATION_URL is required when TOKEN_API=true")
	}
	return nil
}

// IsDev reports whether the server runs without TLS.
func (c *Config) IsDev() bool {
	return c.Env == "dev"
}

// CertFile is the letsencrypt certificate path for the configured domain.
func (c *Config) CertFile() string {
	return fmt.Sprintf("/etc/letsencrypt/live/%s/fullchain.pem", c.Domain)
}

// KeyFile is the letsencrypt private key path for the configured domain.
func (c *Config) KeyFile() string {
	return fmt.Sprintf("/etc/letsencrypt/live/%s/privkey.pem", c.Domain)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
