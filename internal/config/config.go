package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the system-wide settings tree. Sections mirror the runtime
// components: storage, the HTTP surface, the push channel, the client poll
// fallback, and login-token signing.
type Config struct {
	Database  *DatabaseConfig  `json:"database"`
	HTTP      *HTTPConfig      `json:"http"`
	WebSocket *WebSocketConfig `json:"websocket"`
	Client    *ClientConfig    `json:"client"`
	Auth      *AuthConfig      `json:"auth"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path           string        `json:"path"`
	Timeout        time.Duration `json:"timeout"`
	MigrationsPath string        `json:"migrations_path"`
}

// HTTPConfig holds server settings.
type HTTPConfig struct {
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	Host         string        `json:"host"`
}

// WebSocketConfig holds push-channel settings.
type WebSocketConfig struct {
	PingInterval time.Duration `json:"ping_interval"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	BufferSize   int           `json:"buffer_size"`
}

// ClientConfig holds settings for the client-side session view.
type ClientConfig struct {
	// PollInterval bounds staleness: a missed push is corrected by the next
	// poll, so worst-case divergence equals one interval.
	PollInterval time.Duration `json:"poll_interval"`
}

// AuthConfig holds login-token settings.
type AuthConfig struct {
	JWTSecret string `json:"jwt_secret"`
}

// DefaultConfig returns defaults matching the reference deployment: local
// SQLite file, port 8080, 30s heartbeat, 10s poll fallback.
func DefaultConfig() *Config {
	return &Config{
		Database: &DatabaseConfig{
			Path:           "./classboard.db",
			Timeout:        30 * time.Second,
			MigrationsPath: "./migrations",
		},
		HTTP: &HTTPConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			Host:         "0.0.0.0",
		},
		WebSocket: &WebSocketConfig{
			PingInterval: 30 * time.Second,
			ReadTimeout:  60 * time.Second,
			WriteTimeout: 10 * time.Second,
			BufferSize:   100,
		},
		Client: &ClientConfig{
			PollInterval: 10 * time.Second,
		},
		Auth: &AuthConfig{
			JWTSecret: "classboard-dev-secret",
		},
	}
}

// Validate catches invalid configurations before components initialize.
func (c *Config) Validate() error {
	if c.Database == nil {
		return fmt.Errorf("database configuration is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.Database.Timeout <= 0 {
		return fmt.Errorf("database timeout must be positive")
	}
	if c.Database.MigrationsPath == "" {
		return fmt.Errorf("migrations path cannot be empty")
	}

	if c.HTTP == nil {
		return fmt.Errorf("HTTP configuration is required")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP port must be between 1 and 65535")
	}
	if c.HTTP.ReadTimeout <= 0 {
		return fmt.Errorf("HTTP read timeout must be positive")
	}
	if c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("HTTP write timeout must be positive")
	}
	if c.HTTP.Host == "" {
		return fmt.Errorf("HTTP host cannot be empty")
	}

	if c.WebSocket == nil {
		return fmt.Errorf("WebSocket configuration is required")
	}
	if c.WebSocket.PingInterval <= 0 {
		return fmt.Errorf("WebSocket ping interval must be positive")
	}
	if c.WebSocket.ReadTimeout <= 0 {
		return fmt.Errorf("WebSocket read timeout must be positive")
	}
	if c.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("WebSocket write timeout must be positive")
	}
	if c.WebSocket.BufferSize <= 0 {
		return fmt.Errorf("WebSocket buffer size must be positive")
	}

	if c.Client == nil {
		return fmt.Errorf("client configuration is required")
	}
	if c.Client.PollInterval <= 0 {
		return fmt.Errorf("client poll interval must be positive")
	}

	if c.Auth == nil {
		return fmt.Errorf("auth configuration is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT secret cannot be empty")
	}

	return nil
}

// LoadFromEnv builds a config from environment variables over defaults.
// A .env file in the working directory is loaded first if present, so local
// development does not need exported variables.
func LoadFromEnv() *Config {
	_ = godotenv.Load() // missing .env is fine

	config := DefaultConfig()

	if port := os.Getenv("CLASSBOARD_HTTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.HTTP.Port = p
		}
	}

	if host := os.Getenv("CLASSBOARD_HTTP_HOST"); host != "" {
		config.HTTP.Host = host
	}

	if dbPath := os.Getenv("CLASSBOARD_DATABASE_PATH"); dbPath != "" {
		config.Database.Path = dbPath
	}

	if migrations := os.Getenv("CLASSBOARD_MIGRATIONS_PATH"); migrations != "" {
		config.Database.MigrationsPath = migrations
	}

	if readTimeout := os.Getenv("CLASSBOARD_HTTP_READ_TIMEOUT"); readTimeout != "" {
		if timeout, err := time.ParseDuration(readTimeout); err == nil {
			config.HTTP.ReadTimeout = timeout
		}
	}

	if writeTimeout := os.Getenv("CLASSBOARD_HTTP_WRITE_TIMEOUT"); writeTimeout != "" {
		if timeout, err := time.ParseDuration(writeTimeout); err == nil {
			config.HTTP.WriteTimeout = timeout
		}
	}

	if dbTimeout := os.Getenv("CLASSBOARD_DATABASE_TIMEOUT"); dbTimeout != "" {
		if timeout, err := time.ParseDuration(dbTimeout); err == nil {
			config.Database.Timeout = timeout
		}
	}

	if pingInterval := os.Getenv("CLASSBOARD_WEBSOCKET_PING_INTERVAL"); pingInterval != "" {
		if interval, err := time.ParseDuration(pingInterval); err == nil {
			config.WebSocket.PingInterval = interval
		}
	}

	if pollInterval := os.Getenv("CLASSBOARD_CLIENT_POLL_INTERVAL"); pollInterval != "" {
		if interval, err := time.ParseDuration(pollInterval); err == nil {
			config.Client.PollInterval = interval
		}
	}

	if secret := os.Getenv("CLASSBOARD_JWT_SECRET"); secret != "" {
		config.Auth.JWTSecret = secret
	}

	return config
}

// ConfigFile is the JSON structure for file-based configuration; durations
// are strings so the file stays human-editable.
type ConfigFile struct {
	Database  *DatabaseConfigFile  `json:"database"`
	HTTP      *HTTPConfigFile      `json:"http"`
	WebSocket *WebSocketConfigFile `json:"websocket"`
	Client    *ClientConfigFile    `json:"client"`
	Auth      *AuthConfig          `json:"auth"`
}

type DatabaseConfigFile struct {
	Path           string `json:"path"`
	Timeout        string `json:"timeout"`
	MigrationsPath string `json:"migrations_path"`
}

type HTTPConfigFile struct {
	Port         int    `json:"port"`
	ReadTimeout  string `json:"read_timeout"`
	WriteTimeout string `json:"write_timeout"`
	Host         string `json:"host"`
}

type WebSocketConfigFile struct {
	PingInterval string `json:"ping_interval"`
	ReadTimeout  string `json:"read_timeout"`
	WriteTimeout string `json:"write_timeout"`
	BufferSize   int    `json:"buffer_size"`
}

type ClientConfigFile struct {
	PollInterval string `json:"poll_interval"`
}

// LoadFromFile reads a JSON config file over defaults.
func LoadFromFile(filepath string) (*Config, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filepath, err)
	}

	var configFile ConfigFile
	if err := json.Unmarshal(data, &configFile); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", filepath, err)
	}

	config := DefaultConfig()

	if configFile.Database != nil {
		if configFile.Database.Path != "" {
			config.Database.Path = configFile.Database.Path
		}
		if configFile.Database.MigrationsPath != "" {
			config.Database.MigrationsPath = configFile.Database.MigrationsPath
		}
		if configFile.Database.Timeout != "" {
			if timeout, err := time.ParseDuration(configFile.Database.Timeout); err == nil {
				config.Database.Timeout = timeout
			}
		}
	}

	if configFile.HTTP != nil {
		if configFile.HTTP.Port > 0 {
			config.HTTP.Port = configFile.HTTP.Port
		}
		if configFile.HTTP.Host != "" {
			config.HTTP.Host = configFile.HTTP.Host
		}
		if configFile.HTTP.ReadTimeout != "" {
			if timeout, err := time.ParseDuration(configFile.HTTP.ReadTimeout); err == nil {
				config.HTTP.ReadTimeout = timeout
			}
		}
		if configFile.HTTP.WriteTimeout != "" {
			if timeout, err := time.ParseDuration(configFile.HTTP.WriteTimeout); err == nil {
				config.HTTP.WriteTimeout = timeout
			}
		}
	}

	if configFile.WebSocket != nil {
		if configFile.WebSocket.BufferSize > 0 {
			config.WebSocket.BufferSize = configFile.WebSocket.BufferSize
		}
		if configFile.WebSocket.PingInterval != "" {
			if interval, err := time.ParseDuration(configFile.WebSocket.PingInterval); err == nil {
				config.WebSocket.PingInterval = interval
			}
		}
		if configFile.WebSocket.ReadTimeout != "" {
			if timeout, err := time.ParseDuration(configFile.WebSocket.ReadTimeout); err == nil {
				config.WebSocket.ReadTimeout = timeout
			}
		}
		if configFile.WebSocket.WriteTimeout != "" {
			if timeout, err := time.ParseDuration(configFile.WebSocket.WriteTimeout); err == nil {
				config.WebSocket.WriteTimeout = timeout
			}
		}
	}

	if configFile.Client != nil {
		if configFile.Client.PollInterval != "" {
			if interval, err := time.ParseDuration(configFile.Client.PollInterval); err == nil {
				config.Client.PollInterval = interval
			}
		}
	}

	if configFile.Auth != nil && configFile.Auth.JWTSecret != "" {
		config.Auth.JWTSecret = configFile.Auth.JWTSecret
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", filepath, err)
	}

	return config, nil
}

// LoadConfigWithPrecedence resolves configuration as file > environment >
// defaults. File errors are silently ignored so environment and defaults
// still work in minimal deployments.
func LoadConfigWithPrecedence(filepath string) *Config {
	config := LoadFromEnv()

	if filepath != "" {
		if fileConfig, err := LoadFromFile(filepath); err == nil {
			config = fileConfig
		}
	}

	return config
}
