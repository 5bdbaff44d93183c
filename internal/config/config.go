// Package config handles loading and validation of storefrontd configuration.
// Supports both development (env vars) and production (Secret Manager) modes.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"gopkg.in/yaml.v3"

	"storefront/internal/model"
)

// Store kinds.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

const defaultBackendURL = "http://localhost:5000/api"

// Config holds all service configuration.
// Environment determines whether secrets load from env vars (development) or Secret Manager (production).
type Config struct {
	// Server settings
	Port        string
	Environment string // "development" or "production"
	LogLevel    string // "debug", "info", "warn", "error"

	// GCP settings (required in production)
	GCPProject   string
	StorefrontID string

	Backend BackendConfig
	Store   StoreConfig
}

// BackendConfig describes the storefront backend and the account
// storefrontd signs in with at startup, if any.
type BackendConfig struct {
	BaseURL           string        `json:"base_url" yaml:"base_url"`
	Timeout           time.Duration `json:"-" yaml:"-"`
	ChromeFingerprint bool          `json:"chrome_fingerprint,omitempty" yaml:"chrome_fingerprint,omitempty"`
	TaxBasisPoints    int           `json:"tax_basis_points,omitempty" yaml:"tax_basis_points,omitempty"`

	// Credentials. In production these come from Secret Manager.
	Email    string `json:"email,omitempty" yaml:"email,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
}

// StoreConfig selects where local session state is persisted.
type StoreConfig struct {
	Kind      string        `json:"kind" yaml:"kind"`
	Path      string        `json:"path,omitempty" yaml:"path,omitempty"`
	RedisURL  string        `json:"redis_url,omitempty" yaml:"redis_url,omitempty"`
	Namespace string        `json:"namespace,omitempty" yaml:"namespace,omitempty"`
	TTL       time.Duration `json:"-" yaml:"-"`
}

// storefrontSecret is the JSON payload stored in Secret Manager.
type storefrontSecret struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	RedisURL string `json:"redis_url,omitempty"`
}

// Load reads configuration from file, environment, or Secret Manager.
// Priority: CONFIG_FILE (if set) → ENV vars / Secret Manager.
// Validates all required fields and returns an error if any are missing.
func Load(ctx context.Context) (*Config, error) {
	var (
		cfg *Config
		err error
	)
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		cfg, err = loadFromFile(configPath)
	} else {
		cfg, err = loadFromEnv()
	}
	if err != nil {
		return nil, err
	}

	if cfg.Environment == "production" {
		if cfg.GCPProject == "" {
			return nil, fmt.Errorf("GCP_PROJECT required in production environment")
		}
		if cfg.StorefrontID == "" {
			return nil, fmt.Errorf("STOREFRONT_ID required in production environment")
		}
		if err := cfg.loadFromSecretManager(ctx); err != nil {
			return nil, fmt.Errorf("loading storefront secret: %w", err)
		}
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromEnv reads configuration from individual environment variables.
func loadFromEnv() (*Config, error) {
	cfg := &Config{
		Port:         envOrDefault("PORT", "8080"),
		Environment:  envOrDefault("ENVIRONMENT", "development"),
		LogLevel:     envOrDefault("LOG_LEVEL", "info"),
		GCPProject:   os.Getenv("GCP_PROJECT"),
		StorefrontID: os.Getenv("STOREFRONT_ID"),
		Backend: BackendConfig{
			BaseURL:  os.Getenv("BACKEND_URL"),
			Email:    os.Getenv("STOREFRONT_EMAIL"),
			Password: os.Getenv("STOREFRONT_PASSWORD"),
		},
		Store: StoreConfig{
			Kind:      os.Getenv("STORE_KIND"),
			Path:      os.Getenv("STORE_PATH"),
			RedisURL:  os.Getenv("REDIS_URL"),
			Namespace: os.Getenv("STORE_NAMESPACE"),
		},
	}

	var err error
	if cfg.Backend.Timeout, err = envDuration("BACKEND_TIMEOUT"); err != nil {
		return nil, err
	}
	if cfg.Store.TTL, err = envDuration("STORE_TTL"); err != nil {
		return nil, err
	}
	if v := os.Getenv("CHROME_FINGERPRINT"); v != "" {
		if cfg.Backend.ChromeFingerprint, err = strconv.ParseBool(v); err != nil {
			return nil, fmt.Errorf("parsing CHROME_FINGERPRINT: %w", err)
		}
	}
	if v := os.Getenv("TAX_BASIS_POINTS"); v != "" {
		if cfg.Backend.TaxBasisPoints, err = strconv.Atoi(v); err != nil {
			return nil, fmt.Errorf("parsing TAX_BASIS_POINTS: %w", err)
		}
	}
	return cfg, nil
}

// fileConfig matches the CONFIG_FILE structure. Durations are strings
// ("30s", "24h") so JSON and YAML read the same way.
type fileConfig struct {
	Port         string `json:"port" yaml:"port"`
	Environment  string `json:"environment" yaml:"environment"`
	LogLevel     string `json:"log_level" yaml:"log_level"`
	GCPProject   string `json:"gcp_project" yaml:"gcp_project"`
	StorefrontID string `json:"storefront_id" yaml:"storefront_id"`

	Backend        BackendConfig `json:"backend" yaml:"backend"`
	BackendTimeout string        `json:"backend_timeout" yaml:"backend_timeout"`

	Store    StoreConfig `json:"store" yaml:"store"`
	StoreTTL string      `json:"store_ttl" yaml:"store_ttl"`
}

// loadFromFile reads all configuration from a JSON or YAML file, chosen by
// extension. Used for local development to avoid multiple ENV vars.
func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var fc fileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	default:
		err = json.Unmarshal(data, &fc)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg := &Config{
		Port:         withDefault(fc.Port, "8080"),
		Environment:  withDefault(fc.Environment, "development"),
		LogLevel:     withDefault(fc.LogLevel, "info"),
		GCPProject:   fc.GCPProject,
		StorefrontID: fc.StorefrontID,
		Backend:      fc.Backend,
		Store:        fc.Store,
	}
	if cfg.Backend.Timeout, err = parseDuration("backend_timeout", fc.BackendTimeout); err != nil {
		return nil, err
	}
	if cfg.Store.TTL, err = parseDuration("store_ttl", fc.StoreTTL); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromSecretManager fetches the storefront credentials from GCP Secret Manager.
// Secret name format: projects/{project}/secrets/{storefront_id}/versions/latest
func (c *Config) loadFromSecretManager(ctx context.Context) error {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("creating secret manager client: %w", err)
	}
	defer client.Close()

	secretName := c.SecretName()
	result, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: secretName,
	})
	if err != nil {
		return fmt.Errorf("accessing secret %s: %w", secretName, err)
	}

	return c.applySecret(result.Payload.Data)
}

// SecretName is the Secret Manager resource holding this storefront's credentials.
func (c *Config) SecretName() string {
	return fmt.Sprintf("projects/%s/secrets/%s/versions/latest", c.GCPProject, c.StorefrontID)
}

// applySecret overlays the secret payload. Secret values win over env.
func (c *Config) applySecret(data []byte) error {
	var s storefrontSecret
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("parsing secret JSON: %w", err)
	}
	if s.Email != "" {
		c.Backend.Email = s.Email
	}
	if s.Password != "" {
		c.Backend.Password = s.Password
	}
	if s.RedisURL != "" {
		c.Store.RedisURL = s.RedisURL
	}
	return nil
}

func (c *Config) applyDefaults() {
	c.Backend.BaseURL = withDefault(c.Backend.BaseURL, defaultBackendURL)
	if c.Backend.Timeout <= 0 {
		c.Backend.Timeout = 30 * time.Second
	}
	if c.Backend.TaxBasisPoints == 0 {
		c.Backend.TaxBasisPoints = model.DefaultTaxBasisPoints
	}
	if c.Store.Kind == "" {
		c.Store.Kind = StoreMemory
		if c.Store.RedisURL != "" {
			c.Store.Kind = StoreRedis
		}
	}
	c.Store.Namespace = withDefault(c.Store.Namespace, withDefault(c.StorefrontID, "default"))
}

// validate checks that all required configuration fields are present.
func (c *Config) validate() error {
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid backend base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("backend base_url must be http or https, got %q", c.Backend.BaseURL)
	}

	if (c.Backend.Email == "") != (c.Backend.Password == "") {
		return fmt.Errorf("email and password must be set together")
	}
	if c.Backend.TaxBasisPoints < 0 || c.Backend.TaxBasisPoints > 10000 {
		return fmt.Errorf("tax_basis_points must be between 0 and 10000, got %d", c.Backend.TaxBasisPoints)
	}

	switch c.Store.Kind {
	case StoreMemory:
	case StoreFile:
		// An empty path means localstore.DefaultPath.
	case StoreRedis:
		if c.Store.RedisURL == "" {
			return fmt.Errorf("redis_url is required for the redis store")
		}
	default:
		return fmt.Errorf("unknown store kind %q (memory, file or redis)", c.Store.Kind)
	}

	return nil
}

// withDefault returns val if non-empty, otherwise defaultVal.
func withDefault(val, defaultVal string) string {
	if val != "" {
		return val
	}
	return defaultVal
}

// envOrDefault returns the environment variable value or the default if not set.
func envOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func envDuration(key string) (time.Duration, error) {
	return parseDuration(key, os.Getenv(key))
}

func parseDuration(name, val string) (time.Duration, error) {
	if val == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", name, err)
	}
	return d, nil
}
