// Package config handles loading and validation of service configuration.
// Supports both development (env vars) and production (Secret Manager) modes.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
)

// Store modes select the cart backing.
const (
	// StoreModeRemote keys the cart off the storefront session.
	StoreModeRemote = "remote"
	// StoreModeLocal persists carts in a local SQLite database.
	StoreModeLocal = "local"
)

// Config holds all service configuration.
// Environment determines whether secrets load from env vars (development)
// or Secret Manager (production).
type Config struct {
	// Server settings
	Port        string
	Environment string // "development" or "production"
	LogLevel    string // "debug", "info", "warn", "error"

	// GCP settings (required in production)
	GCPProject string
	ShopID     string

	// Cart backing: "remote" or "local"
	StoreMode string

	// Shop-specific configuration (loaded from secrets)
	Merchant MerchantConfig
}

// MerchantConfig contains shop-specific settings.
// In production, this is loaded from Secret Manager as JSON.
// In development, loaded from individual env vars or CONFIG_FILE.
type MerchantConfig struct {
	StoreURL    string `json:"store_url"`
	StoreDomain string `json:"store_domain"` // Derived from StoreURL if not set

	// CartBaseURL is the cart page permalinks point at.
	// Defaults to StoreURL + "/cart".
	CartBaseURL string `json:"cart_base_url,omitempty"`

	// OptionSynonyms are option names treated as the size axis when
	// building purchase choices, checked in order.
	OptionSynonyms []string `json:"option_synonyms,omitempty"`

	// PollIntervalMS and ReadyTimeoutMS tune the cart readiness wait.
	PollIntervalMS int `json:"poll_interval_ms,omitempty"`
	ReadyTimeoutMS int `json:"ready_timeout_ms,omitempty"`

	// LocalDBPath locates the SQLite cart database in local mode.
	LocalDBPath string `json:"local_db_path,omitempty"`

	// MinClientVersion gates embedding clients; empty disables the check.
	MinClientVersion string `json:"min_client_version,omitempty"`
}

// Load reads configuration from file, environment, or Secret Manager.
// Priority: CONFIG_FILE (if set) → ENV vars / Secret Manager.
// Validates all required fields and returns an error if any are missing.
func Load(ctx context.Context) (*Config, error) {
	// If CONFIG_FILE is set, load everything from the JSON file
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromFile(configPath)
	}

	cfg := &Config{
		Port:        envOrDefault("PORT", "8080"),
		Environment: envOrDefault("ENVIRONMENT", "development"),
		LogLevel:    envOrDefault("LOG_LEVEL", "info"),
		GCPProject:  os.Getenv("GCP_PROJECT"),
		ShopID:      os.Getenv("SHOP_ID"),
		StoreMode:   envOrDefault("STORE_MODE", StoreModeRemote),
	}

	// ShopID required in all environments
	if cfg.ShopID == "" {
		return nil, fmt.Errorf("SHOP_ID environment variable required")
	}

	// Load shop config based on environment
	var err error
	if cfg.Environment == "production" {
		if cfg.GCPProject == "" {
			return nil, fmt.Errorf("GCP_PROJECT required in production environment")
		}
		err = cfg.loadFromSecretManager(ctx)
	} else {
		err = cfg.loadFromEnv()
	}
	if err != nil {
		return nil, fmt.Errorf("loading shop config: %w", err)
	}

	cfg.applyDerived()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFromFile reads all configuration from a JSON file.
// Used for local development to avoid multiple ENV vars.
func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var fileConfig struct {
		Port        string         `json:"port"`
		Environment string         `json:"environment"`
		LogLevel    string         `json:"log_level"`
		StoreMode   string         `json:"store_mode"`
		ShopID      string         `json:"shop_id"`
		Merchant    MerchantConfig `json:"merchant"`
	}

	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg := &Config{
		Port:        withDefault(fileConfig.Port, "8080"),
		Environment: withDefault(fileConfig.Environment, "development"),
		LogLevel:    withDefault(fileConfig.LogLevel, "info"),
		StoreMode:   withDefault(fileConfig.StoreMode, StoreModeRemote),
		ShopID:      fileConfig.ShopID,
		Merchant:    fileConfig.Merchant,
	}

	cfg.applyDerived()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// withDefault returns val if non-empty, otherwise defaultVal.
func withDefault(val, defaultVal string) string {
	if val != "" {
		return val
	}
	return defaultVal
}

// loadFromSecretManager fetches shop config from GCP Secret Manager.
// Secret name format: projects/{project}/secrets/{shop_id}/versions/latest
func (c *Config) loadFromSecretManager(ctx context.Context) error {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("creating secret manager client: %w", err)
	}
	defer client.Close()

	secretName := fmt.Sprintf("projects/%s/secrets/%s/versions/latest",
		c.GCPProject, c.ShopID)

	result, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: secretName,
	})
	if err != nil {
		return fmt.Errorf("accessing secret %s: %w", secretName, err)
	}

	if err := json.Unmarshal(result.Payload.Data, &c.Merchant); err != nil {
		return fmt.Errorf("parsing secret JSON: %w", err)
	}

	return nil
}

// loadFromEnv reads shop config from individual environment variables.
// Used in development mode for local testing.
func (c *Config) loadFromEnv() error {
	c.Merchant = MerchantConfig{
		StoreURL:         os.Getenv("SHOP_STORE_URL"),
		StoreDomain:      os.Getenv("SHOP_STORE_DOMAIN"),
		CartBaseURL:      os.Getenv("SHOP_CART_BASE_URL"),
		LocalDBPath:      os.Getenv("SHOP_LOCAL_DB_PATH"),
		MinClientVersion: os.Getenv("SHOP_MIN_CLIENT_VERSION"),
	}

	if synonyms := os.Getenv("SHOP_OPTION_SYNONYMS"); synonyms != "" {
		for _, s := range strings.Split(synonyms, ",") {
			if s = strings.TrimSpace(s); s != "" {
				c.Merchant.OptionSynonyms = append(c.Merchant.OptionSynonyms, s)
			}
		}
	}

	return nil
}

// applyDerived fills fields computable from others.
func (c *Config) applyDerived() {
	if c.Merchant.StoreDomain == "" && c.Merchant.StoreURL != "" {
		c.Merchant.StoreDomain = extractDomain(c.Merchant.StoreURL)
	}
	if c.Merchant.CartBaseURL == "" && c.Merchant.StoreURL != "" {
		c.Merchant.CartBaseURL = strings.TrimSuffix(c.Merchant.StoreURL, "/") + "/cart"
	}
	if len(c.Merchant.OptionSynonyms) == 0 {
		c.Merchant.OptionSynonyms = []string{"Size", "Amount", "Weight"}
	}
	if c.StoreMode == StoreModeLocal && c.Merchant.LocalDBPath == "" {
		c.Merchant.LocalDBPath = "carts.db"
	}
}

// validate checks that all required configuration fields are present.
func (c *Config) validate() error {
	if c.ShopID == "" {
		return fmt.Errorf("shop_id is required")
	}
	if c.Merchant.StoreURL == "" {
		return fmt.Errorf("store_url is required")
	}
	if _, err := url.Parse(c.Merchant.StoreURL); err != nil {
		return fmt.Errorf("invalid store_url: %w", err)
	}

	switch c.StoreMode {
	case StoreModeRemote, StoreModeLocal:
	default:
		return fmt.Errorf("store_mode must be %q or %q, got %q",
			StoreModeRemote, StoreModeLocal, c.StoreMode)
	}

	return nil
}

// PollInterval returns the configured readiness poll interval.
func (c *Config) PollInterval() time.Duration {
	if c.Merchant.PollIntervalMS <= 0 {
		return 0
	}
	return time.Duration(c.Merchant.PollIntervalMS) * time.Millisecond
}

// ReadyTimeout returns the configured readiness wait bound.
func (c *Config) ReadyTimeout() time.Duration {
	if c.Merchant.ReadyTimeoutMS <= 0 {
		return 0
	}
	return time.Duration(c.Merchant.ReadyTimeoutMS) * time.Millisecond
}

// extractDomain parses the domain from a URL string.
func extractDomain(storeURL string) string {
	u, err := url.Parse(storeURL)
	if err != nil {
		// Fallback: strip protocol prefix manually
		domain := strings.TrimPrefix(storeURL, "https://")
		domain = strings.TrimPrefix(domain, "http://")
		return strings.Split(domain, "/")[0]
	}
	return u.Host
}

// envOrDefault returns the environment variable value or the default if not set.
func envOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
