// Package config provides configuration for the logsleuth server.
package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"
)

// SplunkConfig holds connection parameters for the Splunk backend.
type SplunkConfig struct {
	Host      string `json:"host"`
	Port      int    `json:"port"`
	Scheme    string `json:"scheme"`
	Token     string `json:"token"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	VerifySSL bool   `json:"verify_ssl"`
	// Timeout applies to individual backend HTTP calls and is the
	// default search timeout when a tool does not specify one.
	Timeout time.Duration `json:"-"`

	TimeoutSeconds int `json:"timeout"`
}

// ServerConfig holds settings for the HTTP/SSE surface.
type ServerConfig struct {
	Host    string `json:"host"`
	Port    int    `json:"port"`
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Config is the top-level configuration container.
type Config struct {
	Server ServerConfig `json:"server"`
	Splunk SplunkConfig `json:"splunk"`

	// MaxResultsDefault caps search results when a caller does not ask
	// for a specific limit.
	MaxResultsDefault int `json:"max_results_default"`

	// AuditDBPath is the sqlite DSN for the audit store. Empty disables
	// auditing.
	AuditDBPath string `json:"audit_db_path"`
}

// Load reads configuration from an optional JSON file (CONFIG_PATH, default
// config.json) and overrides every value with environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:    "127.0.0.1",
			Port:    8000,
			Name:    "logsleuth",
			Version: "1.0.0",
		},
		Splunk: SplunkConfig{
			Host:           "localhost",
			Port:           8089,
			Scheme:         "https",
			VerifySSL:      true,
			TimeoutSeconds: 30,
		},
		MaxResultsDefault: 100,
	}

	path := getEnv("CONFIG_PATH", "config.json")
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("invalid config file %s: %w", path, err)
		}
		log.Printf("Loaded configuration from %s", path)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	cfg.Server.Host = getEnv("SERVER_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvInt("SERVER_PORT", cfg.Server.Port)
	cfg.Splunk.Host = getEnv("SPLUNK_HOST", cfg.Splunk.Host)
	cfg.Splunk.Port = getEnvInt("SPLUNK_PORT", cfg.Splunk.Port)
	cfg.Splunk.Scheme = getEnv("SPLUNK_SCHEME", cfg.Splunk.Scheme)
	cfg.Splunk.Token = getEnv("SPLUNK_TOKEN", cfg.Splunk.Token)
	cfg.Splunk.Username = getEnv("SPLUNK_USERNAME", cfg.Splunk.Username)
	cfg.Splunk.Password = getEnv("SPLUNK_PASSWORD", cfg.Splunk.Password)
	cfg.Splunk.VerifySSL = getEnvBool("SPLUNK_VERIFY_SSL", cfg.Splunk.VerifySSL)
	cfg.Splunk.TimeoutSeconds = getEnvInt("SPLUNK_TIMEOUT", cfg.Splunk.TimeoutSeconds)
	cfg.MaxResultsDefault = getEnvInt("MAX_RESULTS_DEFAULT", cfg.MaxResultsDefault)
	cfg.AuditDBPath = getEnv("AUDIT_DB_PATH", cfg.AuditDBPath)

	if cfg.Splunk.TimeoutSeconds <= 0 {
		return nil, fmt.Errorf("splunk timeout must be positive, got %d", cfg.Splunk.TimeoutSeconds)
	}
	cfg.Splunk.Timeout = time.Duration(cfg.Splunk.TimeoutSeconds) * time.Second

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
		log.Printf("WARN: ignoring non-integer value for %s: %q", key, val)
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		switch val {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
		log.Printf("WARN: ignoring non-boolean value for %s: %q", key, val)
	}
	return defaultVal
}
