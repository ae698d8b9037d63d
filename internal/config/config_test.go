package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("Default config must validate: %v", err)
	}
}

func TestValidateCatchesBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing database", func(c *Config) { c.Database = nil }},
		{"empty database path", func(c *Config) { c.Database.Path = "" }},
		{"zero port", func(c *Config) { c.HTTP.Port = 0 }},
		{"port too large", func(c *Config) { c.HTTP.Port = 70000 }},
		{"negative ping interval", func(c *Config) { c.WebSocket.PingInterval = -time.Second }},
		{"zero poll interval", func(c *Config) { c.Client.PollInterval = 0 }},
		{"empty JWT secret", func(c *Config) { c.Auth.JWTSecret = "" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation to fail")
			}
		})
	}
}

func TestLoadFromEnvOverridesDefaults(t *testing.T) {
	t.Setenv("CLASSBOARD_HTTP_PORT", "9090")
	t.Setenv("CLASSBOARD_DATABASE_PATH", "/tmp/test.db")
	t.Setenv("CLASSBOARD_CLIENT_POLL_INTERVAL", "3s")
	t.Setenv("CLASSBOARD_JWT_SECRET", "env-secret")

	cfg := LoadFromEnv()

	if cfg.HTTP.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", cfg.HTTP.Port)
	}
	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Expected overridden database path, got %s", cfg.Database.Path)
	}
	if cfg.Client.PollInterval != 3*time.Second {
		t.Errorf("Expected 3s poll interval, got %v", cfg.Client.PollInterval)
	}
	if cfg.Auth.JWTSecret != "env-secret" {
		t.Errorf("Expected env secret, got %s", cfg.Auth.JWTSecret)
	}
}

func TestLoadFromEnvIgnoresMalformedValues(t *testing.T) {
	t.Setenv("CLASSBOARD_HTTP_PORT", "not-a-number")
	t.Setenv("CLASSBOARD_CLIENT_POLL_INTERVAL", "soon")

	cfg := LoadFromEnv()
	defaults := DefaultConfig()

	if cfg.HTTP.Port != defaults.HTTP.Port {
		t.Errorf("Expected default port, got %d", cfg.HTTP.Port)
	}
	if cfg.Client.PollInterval != defaults.Client.PollInterval {
		t.Errorf("Expected default poll interval, got %v", cfg.Client.PollInterval)
	}
}

func TestLoadFromFile(t *testing.T) {
	content := `{
		"http": {"port": 9999, "host": "127.0.0.1"},
		"client": {"poll_interval": "5s"},
		"auth": {"jwt_secret": "file-secret"}
	}`

	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if cfg.HTTP.Port != 9999 || cfg.HTTP.Host != "127.0.0.1" {
		t.Errorf("Expected file HTTP settings, got %+v", cfg.HTTP)
	}
	if cfg.Client.PollInterval != 5*time.Second {
		t.Errorf("Expected 5s poll interval, got %v", cfg.Client.PollInterval)
	}
	if cfg.Auth.JWTSecret != "file-secret" {
		t.Errorf("Expected file secret, got %s", cfg.Auth.JWTSecret)
	}

	// Unspecified sections keep defaults.
	if cfg.Database.Path != DefaultConfig().Database.Path {
		t.Errorf("Expected default database path, got %s", cfg.Database.Path)
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	if _, err := LoadFromFile("/nonexistent/config.json"); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestPrecedenceFileOverEnv(t *testing.T) {
	t.Setenv("CLASSBOARD_HTTP_PORT", "9090")

	content := `{"http": {"port": 9999}}`
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg := LoadConfigWithPrecedence(path)
	if cfg.HTTP.Port != 9999 {
		t.Errorf("Expected file to win over env, got %d", cfg.HTTP.Port)
	}

	// Without a file, env wins over defaults.
	cfg = LoadConfigWithPrecedence("")
	if cfg.HTTP.Port != 9090 {
		t.Errorf("Expected env to win over defaults, got %d", cfg.HTTP.Port)
	}
}
