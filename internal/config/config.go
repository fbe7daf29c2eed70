package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Environment
	GoEnv string `env:"GO_ENV" default:"development"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"json"`

	// API listener
	APIAddr            string        `env:"API_ADDR" default:"0.0.0.0:8080"`
	APIMaxWorkers      int           `env:"API_MAX_WORKERS" default:"256"`
	APIAcceptRate      float64       `env:"API_ACCEPT_RATE" default:"0"` // connections per second, 0 = unlimited
	APIWriteTimeout    time.Duration `env:"API_WRITE_TIMEOUT" default:"5s"`
	APILinger          time.Duration `env:"API_LINGER" default:"250ms"`
	APIShutdownTimeout time.Duration `env:"API_SHUTDOWN_TIMEOUT" default:"10s"`

	// Node stub
	NodeLifetime time.Duration `env:"NODE_LIFETIME" default:"10s"`

	// Cluster node
	NodeID       string            `env:"NODE_ID" default:"us1"`
	NodeAddr     string            `env:"NODE_ADDR" default:"0.0.0.0:9001"`
	NodePeers    map[string]string `env:"NODE_PEERS"` // eu1=http://host:port,ap1=...
	ClusterID    string            `env:"CLUSTER_ID"`
	NodeSecret   string            `env:"NODE_SECRET" required:"true"`
	CookieSecret string            `env:"COOKIE_SECRET" required:"true"`
	CookieDomain string            `env:"COOKIE_DOMAIN" default:"raft.example.dev"`

	// State storage
	StateBackend string `env:"STATE_BACKEND" default:"memory"`
	RedisURL     string `env:"REDIS_URL" default:"redis://localhost:6379"`
	DatabaseURL  string `env:"DATABASE_URL"`
}

// LoadConfig loads configuration from an optional .env file and the environment.
// Secrets needed only by the cluster node are checked by ValidateNode.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		// a missing .env is fine, system env vars still apply
		fmt.Fprintf(os.Stderr, "Warning: .env file not found: %v\n", err)
	}

	config := &Config{}

	if err := loadEnvString(&config.GoEnv, "GO_ENV", "development"); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.LogLevel, "LOG_LEVEL", "info"); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.LogFormat, "LOG_FORMAT", "json"); err != nil {
		return nil, err
	}

	// API listener
	if err := loadEnvString(&config.APIAddr, "API_ADDR", "0.0.0.0:8080"); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.APIMaxWorkers, "API_MAX_WORKERS", 256); err != nil {
		return nil, err
	}
	if err := loadEnvFloat(&config.APIAcceptRate, "API_ACCEPT_RATE", 0); err != nil {
		return nil, err
	}
	if err := loadEnvDuration(&config.APIWriteTimeout, "API_WRITE_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if err := loadEnvDuration(&config.APILinger, "API_LINGER", 250*time.Millisecond); err != nil {
		return nil, err
	}
	if err := loadEnvDuration(&config.APIShutdownTimeout, "API_SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}

	// Node stub
	if err := loadEnvDuration(&config.NodeLifetime, "NODE_LIFETIME", 10*time.Second); err != nil {
		return nil, err
	}

	// Cluster node
	if err := loadEnvString(&config.NodeID, "NODE_ID", "us1"); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.NodeAddr, "NODE_ADDR", "0.0.0.0:9001"); err != nil {
		return nil, err
	}
	if err := loadEnvStringMap(&config.NodePeers, "NODE_PEERS"); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.ClusterID, "CLUSTER_ID", ""); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.NodeSecret, "NODE_SECRET", ""); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.CookieSecret, "COOKIE_SECRET", ""); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.CookieDomain, "COOKIE_DOMAIN", "raft.example.dev"); err != nil {
		return nil, err
	}

	// State storage
	if err := loadEnvString(&config.StateBackend, "STATE_BACKEND", "memory"); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.RedisURL, "REDIS_URL", "redis://localhost:6379"); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.DatabaseURL, "DATABASE_URL", ""); err != nil {
		return nil, err
	}

	return config, nil
}

// Helper functions for type conversion and validation
func loadEnvString(target *string, key, defaultValue string) error {
	if value := os.Getenv(key); value != "" {
		*target = value
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvInt(target *int, key string, defaultValue int) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value for %s: %w", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvFloat(target *float64, key string, defaultValue float64) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid float value for %s: %w", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvDuration(target *time.Duration, key string, defaultValue time.Duration) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration value for %s: %w", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

// loadEnvStringMap parses "k1=v1,k2=v2". Whitespace around keys and values is trimmed.
func loadEnvStringMap(target *map[string]string, key string) error {
	*target = make(map[string]string)
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	for _, pair := range strings.Split(value, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(k) == "" || strings.TrimSpace(v) == "" {
			return fmt.Errorf("invalid entry %q for %s, expected key=value", pair, key)
		}
		(*target)[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return nil
}

// Validate checks the logging settings every binary reads
func (c *Config) Validate() error {
	var errors []string

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.LogLevel) {
		errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: %s", strings.Join(validLogLevels, ", ")))
	}

	validLogFormats := []string{"text", "json"}
	if !contains(validLogFormats, c.LogFormat) {
		errors = append(errors, fmt.Sprintf("LOG_FORMAT must be one of: %s", strings.Join(validLogFormats, ", ")))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}

// ValidateAPI checks the listener settings only api-server reads
func (c *Config) ValidateAPI() error {
	var errors []string

	if c.APIMaxWorkers < 1 {
		errors = append(errors, "API_MAX_WORKERS must be at least 1")
	}
	if c.APIAcceptRate < 0 {
		errors = append(errors, "API_ACCEPT_RATE must not be negative")
	}
	if c.APIWriteTimeout <= 0 {
		errors = append(errors, "API_WRITE_TIMEOUT must be positive")
	}
	if c.APILinger < 0 {
		errors = append(errors, "API_LINGER must not be negative")
	}
	if c.APIShutdownTimeout <= 0 {
		errors = append(errors, "API_SHUTDOWN_TIMEOUT must be positive")
	}

	if len(errors) > 0 {
		return fmt.Errorf("api configuration validation failed: %s", strings.Join(errors, "; "))
	}
	return nil
}

// ValidateNode checks the settings only `node serve` needs
func (c *Config) ValidateNode() error {
	var errors []string

	if c.NodeSecret == "" {
		errors = append(errors, "required environment variable NODE_SECRET is not set")
	} else if len(c.NodeSecret) < 32 {
		errors = append(errors, "NODE_SECRET should be at least 32 characters long")
	}
	if c.CookieSecret == "" {
		errors = append(errors, "required environment variable COOKIE_SECRET is not set")
	}

	validBackends := []string{"memory", "redis", "postgres"}
	if !contains(validBackends, c.StateBackend) {
		errors = append(errors, fmt.Sprintf("STATE_BACKEND must be one of: %s", strings.Join(validBackends, ", ")))
	}
	if c.StateBackend == "postgres" && c.DatabaseURL == "" {
		errors = append(errors, "DATABASE_URL is required when STATE_BACKEND=postgres")
	}

	if len(errors) > 0 {
		return fmt.Errorf("node configuration validation failed: %s", strings.Join(errors, "; "))
	}
	return nil
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.GoEnv == "development"
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.GoEnv == "production"
}

// Helper function to check if slice contains a string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
