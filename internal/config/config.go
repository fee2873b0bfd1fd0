package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	ServerPort       string `yaml:"server_port"`
	FrontendURL      string `yaml:"frontend_url"`
	EnableHSTS       bool   `yaml:"enable_hsts"`
	RateLimit        string `yaml:"rate_limit"`
	MaxRequestBytes  int64  `yaml:"max_request_bytes"`
	ServerDebugMode  bool   `yaml:"debug"`
	OTELEnabled      bool   `yaml:"otel_enabled"`
	OTELEndpoint     string `yaml:"otel_endpoint"`
	DefaultProject   string `yaml:"default_project"`
	ShutdownTimeoutS int    `yaml:"shutdown_timeout_seconds"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		ServerPort:       getEnv("SERVER_PORT", "8080"),
		FrontendURL:      getEnv("FRONTEND_URL", "http://localhost:3000"),
		EnableHSTS:       getEnvBool("ENABLE_HSTS", false),
		RateLimit:        getEnv("RATE_LIMIT", "30-S"),
		MaxRequestBytes:  int64(getEnvInt("MAX_REQUEST_BYTES", 1<<20)),
		ServerDebugMode:  getEnvBool("SERVER_DEBUG_MODE", false),
		OTELEnabled:      getEnvBool("OTEL_ENABLED", false),
		OTELEndpoint:     getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		DefaultProject:   getEnv("DEFAULT_PROJECT_DIR", ""),
		ShutdownTimeoutS: getEnvInt("SHUTDOWN_TIMEOUT_SECONDS", 30),
	}
	return cfg, nil
}

// LoadFile loads configuration from env, then overlays values from a YAML
// config file. File values win over env for fields the file sets.
func LoadFile(path string) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
