package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"storefront/internal/model"
)

var configEnv = []string{
	"CONFIG_FILE", "PORT", "ENVIRONMENT", "LOG_LEVEL", "GCP_PROJECT", "STOREFRONT_ID",
	"BACKEND_URL", "BACKEND_TIMEOUT", "CHROME_FINGERPRINT", "TAX_BASIS_POINTS",
	"STOREFRONT_EMAIL", "STOREFRONT_PASSWORD",
	"STORE_KIND", "STORE_PATH", "REDIS_URL", "STORE_NAMESPACE", "STORE_TTL",
}

// clearEnv blanks every variable Load reads; t.Setenv restores them.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configEnv {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Port = %s, want 8080", cfg.Port)
	}
	if cfg.Backend.BaseURL != defaultBackendURL {
		t.Errorf("BaseURL = %s", cfg.Backend.BaseURL)
	}
	if cfg.Backend.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", cfg.Backend.Timeout)
	}
	if cfg.Backend.TaxBasisPoints != model.DefaultTaxBasisPoints {
		t.Errorf("TaxBasisPoints = %d", cfg.Backend.TaxBasisPoints)
	}
	if cfg.Store.Kind != StoreMemory || cfg.Store.Namespace != "default" {
		t.Errorf("Store = %+v", cfg.Store)
	}
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("STOREFRONT_ID", "shop-eu")
	t.Setenv("BACKEND_URL", "https://shop.example.com/api")
	t.Setenv("BACKEND_TIMEOUT", "5s")
	t.Setenv("CHROME_FINGERPRINT", "true")
	t.Setenv("TAX_BASIS_POINTS", "2000")
	t.Setenv("STOREFRONT_EMAIL", "bot@example.com")
	t.Setenv("STOREFRONT_PASSWORD", "pw")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("STORE_TTL", "24h")

	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Port != "9090" || cfg.LogLevel != "debug" {
		t.Errorf("server = %s/%s", cfg.Port, cfg.LogLevel)
	}
	want := BackendConfig{
		BaseURL:           "https://shop.example.com/api",
		Timeout:           5 * time.Second,
		ChromeFingerprint: true,
		TaxBasisPoints:    2000,
		Email:             "bot@example.com",
		Password:          "pw",
	}
	if cfg.Backend != want {
		t.Errorf("Backend = %+v, want %+v", cfg.Backend, want)
	}
	// A Redis URL without an explicit kind selects Redis.
	if cfg.Store.Kind != StoreRedis {
		t.Errorf("Store.Kind = %s, want redis", cfg.Store.Kind)
	}
	if cfg.Store.Namespace != "shop-eu" {
		t.Errorf("Namespace = %s, want storefront id", cfg.Store.Namespace)
	}
	if cfg.Store.TTL != 24*time.Hour {
		t.Errorf("TTL = %v", cfg.Store.TTL)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "bad scheme",
			env:     map[string]string{"BACKEND_URL": "ftp://shop"},
			wantErr: "http or https",
		},
		{
			name:    "email without password",
			env:     map[string]string{"STOREFRONT_EMAIL": "bot@example.com"},
			wantErr: "together",
		},
		{
			name:    "redis without url",
			env:     map[string]string{"STORE_KIND": "redis"},
			wantErr: "redis_url",
		},
		{
			name:    "unknown store",
			env:     map[string]string{"STORE_KIND": "sqlite"},
			wantErr: "unknown store kind",
		},
		{
			name:    "bad timeout",
			env:     map[string]string{"BACKEND_TIMEOUT": "soon"},
			wantErr: "BACKEND_TIMEOUT",
		},
		{
			name:    "bad tax",
			env:     map[string]string{"TAX_BASIS_POINTS": "20000"},
			wantErr: "tax_basis_points",
		},
		{
			name:    "production without project",
			env:     map[string]string{"ENVIRONMENT": "production", "STOREFRONT_ID": "shop"},
			wantErr: "GCP_PROJECT",
		},
		{
			name:    "production without storefront id",
			env:     map[string]string{"ENVIRONMENT": "production", "GCP_PROJECT": "proj"},
			wantErr: "STOREFRONT_ID",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load(context.Background())
			if err == nil {
				t.Fatal("Load() expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "json",
			file: "config.json",
			content: `{
				"port": "7070",
				"log_level": "warn",
				"backend": {"base_url": "https://shop.example.com/api", "tax_basis_points": 500},
				"backend_timeout": "10s",
				"store": {"kind": "file", "path": "/tmp/state.json"}
			}`,
		},
		{
			name: "yaml",
			file: "config.yaml",
			content: `port: "7070"
log_level: warn
backend:
  base_url: https://shop.example.com/api
  tax_basis_points: 500
backend_timeout: 10s
store:
  kind: file
  path: /tmp/state.json
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("CONFIG_FILE", writeFile(t, tt.file, tt.content))

			cfg, err := Load(context.Background())
			if err != nil {
				t.Fatalf("Load() error: %v", err)
			}

			if cfg.Port != "7070" || cfg.LogLevel != "warn" || cfg.Environment != "development" {
				t.Errorf("server = %s/%s/%s", cfg.Port, cfg.LogLevel, cfg.Environment)
			}
			if cfg.Backend.BaseURL != "https://shop.example.com/api" || cfg.Backend.TaxBasisPoints != 500 {
				t.Errorf("Backend = %+v", cfg.Backend)
			}
			if cfg.Backend.Timeout != 10*time.Second {
				t.Errorf("Timeout = %v", cfg.Backend.Timeout)
			}
			if cfg.Store.Kind != StoreFile || cfg.Store.Path != "/tmp/state.json" {
				t.Errorf("Store = %+v", cfg.Store)
			}
		})
	}
}

func TestLoadFromFileErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("CONFIG_FILE", "/nonexistent/config.json")
		if _, err := Load(context.Background()); err == nil {
			t.Error("expected error for missing file")
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("CONFIG_FILE", writeFile(t, "config.json", "{invalid"))
		if _, err := Load(context.Background()); err == nil {
			t.Error("expected error for invalid JSON")
		}
	})

	t.Run("invalid yaml", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("CONFIG_FILE", writeFile(t, "config.yml", "port: [unclosed"))
		if _, err := Load(context.Background()); err == nil {
			t.Error("expected error for invalid YAML")
		}
	})

	t.Run("bad duration", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("CONFIG_FILE", writeFile(t, "config.json", `{"store_ttl": "forever"}`))
		if _, err := Load(context.Background()); err == nil {
			t.Error("expected error for bad duration")
		}
	})
}

func TestApplySecret(t *testing.T) {
	cfg := &Config{
		GCPProject:   "proj",
		StorefrontID: "shop",
		Backend:      BackendConfig{Email: "env@example.com", Password: "env"},
		Store:        StoreConfig{RedisURL: "redis://env"},
	}

	if got := cfg.SecretName(); got != "projects/proj/secrets/shop/versions/latest" {
		t.Errorf("SecretName = %s", got)
	}

	if err := cfg.applySecret([]byte(`{"email":"bot@example.com","password":"s3cret"}`)); err != nil {
		t.Fatalf("applySecret: %v", err)
	}
	if cfg.Backend.Email != "bot@example.com" || cfg.Backend.Password != "s3cret" {
		t.Errorf("credentials = %s/%s", cfg.Backend.Email, cfg.Backend.Password)
	}
	// Fields absent from the secret keep their env values.
	if cfg.Store.RedisURL != "redis://env" {
		t.Errorf("RedisURL = %s", cfg.Store.RedisURL)
	}

	if err := cfg.applySecret([]byte("not json")); err == nil {
		t.Error("expected error for malformed secret")
	}
}

func TestWithDefault(t *testing.T) {
	if got := withDefault("", "fallback"); got != "fallback" {
		t.Errorf("withDefault(\"\") = %s", got)
	}
	if got := withDefault("set", "fallback"); got != "set" {
		t.Errorf("withDefault(set) = %s", got)
	}
}

func TestEnvOrDefault(t *testing.T) {
	t.Setenv("TEST_ENV_VAR", "custom")
	if got := envOrDefault("TEST_ENV_VAR", "default"); got != "custom" {
		t.Errorf("envOrDefault = %s, want custom", got)
	}
	t.Setenv("TEST_ENV_VAR", "")
	if got := envOrDefault("TEST_ENV_VAR", "default"); got != "default" {
		t.Errorf("envOrDefault = %s, want default", got)
	}
}
