package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config holds all configuration for Courier
type Config struct {
	Backend  BackendConfig  `json:"backend"`
	Storage  StorageConfig  `json:"storage"`
	Stream   StreamConfig   `json:"stream"`
	Monitor  MonitorConfig  `json:"monitor"`
	Server   ServerConfig   `json:"server"`
	Autosave AutosaveConfig `json:"autosave"`
}

// BackendConfig holds the AI backend connection settings
type BackendConfig struct {
	URL         string `json:"url"`           // Base endpoint of the agentic backend
	Token       string `json:"token"`         // Bearer credential for the streaming request
	Model       string `json:"model"`         // Default model for new sessions
	MaxDaysBack int    `json:"max_days_back"` // Default mailbox lookback window
}

// StorageConfig selects the durable store backing sessions and telemetry
type StorageConfig struct {
	// DataDir is used for the file store (local mode)
	DataDir string `json:"data_dir"`
	// PostgreSQL connection (hosted mode); takes precedence when set
	PostgresURL string `json:"postgres_url"`
}

// StreamConfig tunes the streaming reasoning client
type StreamConfig struct {
	// ConflictPolicy is "reject" or "cancel_replace" for sends into a
	// session that already has a live stream
	ConflictPolicy string `json:"conflict_policy"`
}

// MonitorConfig tunes the connection quality monitor
type MonitorConfig struct {
	ProbeIntervalSeconds int `json:"probe_interval_seconds"`
}

// ServerConfig holds API server configuration
type ServerConfig struct {
	Host        string   `json:"host"`
	Port        int      `json:"port"`
	CORSOrigins []string `json:"cors_origins"` // Allowed CORS origins
}

// AutosaveConfig tunes durable session persistence
type AutosaveConfig struct {
	Enabled             bool `json:"enabled"`
	DebounceMs          int  `json:"debounce_ms"`
	AnalyticsWindowDays int  `json:"analytics_window_days"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".courier")

	return &Config{
		Backend: BackendConfig{
			URL:         "http://localhost:8000",
			Token:       "",
			Model:       "gpt-4o-mini",
			MaxDaysBack: 30,
		},
		Storage: StorageConfig{
			DataDir:     dataDir,
			PostgresURL: "",
		},
		Stream: StreamConfig{
			ConflictPolicy: "reject",
		},
		Monitor: MonitorConfig{
			ProbeIntervalSeconds: 30,
		},
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8080,
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Autosave: AutosaveConfig{
			Enabled:             true,
			DebounceMs:          2000,
			AnalyticsWindowDays: 7,
		},
	}
}

// envString loads a string environment variable into the target pointer if set
func envString(key string, target *string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

// envInt loads an integer environment variable into the target pointer if set and valid
func envInt(key string, target *int) {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			*target = i
		}
	}
}

// envBool loads a boolean environment variable into the target pointer if set and valid
func envBool(key string, target *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*target = b
		}
	}
}

// envStringSlice loads a comma-separated environment variable into a string slice
func envStringSlice(key string, target *[]string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			*target = result
		}
	}
}

// Load loads configuration from environment variables and config file
func Load() (*Config, error) {
	cfg := DefaultConfig()

	configPath := getConfigPath()
	if data, err := os.ReadFile(configPath); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to parse config file %s: %v\n", configPath, err)
		}
	}

	envString("COURIER_BACKEND_URL", &cfg.Backend.URL)
	envString("COURIER_BACKEND_TOKEN", &cfg.Backend.Token)
	envString("COURIER_BACKEND_MODEL", &cfg.Backend.Model)
	envInt("COURIER_MAX_DAYS_BACK", &cfg.Backend.MaxDaysBack)

	envString("COURIER_DATA_DIR", &cfg.Storage.DataDir)
	envString("COURIER_POSTGRES_URL", &cfg.Storage.PostgresURL)

	envString("COURIER_CONFLICT_POLICY", &cfg.Stream.ConflictPolicy)
	envInt("COURIER_PROBE_INTERVAL_SECONDS", &cfg.Monitor.ProbeIntervalSeconds)

	envString("COURIER_SERVER_HOST", &cfg.Server.Host)
	envInt("COURIER_SERVER_PORT", &cfg.Server.Port)
	envStringSlice("COURIER_CORS_ORIGINS", &cfg.Server.CORSOrigins)

	envBool("COURIER_AUTOSAVE_ENABLED", &cfg.Autosave.Enabled)
	envInt("COURIER_AUTOSAVE_DEBOUNCE_MS", &cfg.Autosave.DebounceMs)
	envInt("COURIER_ANALYTICS_WINDOW_DAYS", &cfg.Autosave.AnalyticsWindowDays)

	if err := os.MkdirAll(cfg.Storage.DataDir, 0755); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// IsPostgresConfigured returns true if the hosted Postgres store should be used
func (c *Config) IsPostgresConfigured() bool {
	return c.Storage.PostgresURL != ""
}

// HasCredential returns true if a bearer token is available
func (c *Config) HasCredential() bool {
	return c.Backend.Token != ""
}

// isValidURL validates that a URL has proper format
func isValidURL(urlStr string) bool {
	u, err := url.Parse(urlStr)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// Validate checks that the configuration has valid values
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server port must be between 1 and 65535")
	}

	if c.Backend.URL == "" {
		errs = append(errs, "backend URL is required")
	} else if !isValidURL(c.Backend.URL) {
		errs = append(errs, "backend URL must be a valid URL")
	}
	if c.Backend.MaxDaysBack < 0 {
		errs = append(errs, "max_days_back must not be negative")
	}

	if c.Storage.PostgresURL == "" && c.Storage.DataDir == "" {
		errs = append(errs, "either PostgreSQL URL or data dir is required")
	}
	if c.Storage.PostgresURL != "" && !isValidURL(c.Storage.PostgresURL) {
		errs = append(errs, "PostgreSQL URL must be a valid URL")
	}

	switch c.Stream.ConflictPolicy {
	case "reject", "cancel_replace":
	default:
		errs = append(errs, "conflict_policy must be \"reject\" or \"cancel_replace\"")
	}

	if c.Monitor.ProbeIntervalSeconds < 1 {
		errs = append(errs, "probe interval must be at least 1 second")
	}
	if c.Autosave.DebounceMs < 0 {
		errs = append(errs, "autosave debounce must not be negative")
	}
	if c.Autosave.AnalyticsWindowDays < 1 {
		errs = append(errs, "analytics window must be at least 1 day")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return nil
}

func getConfigPath() string {
	if path := os.Getenv("COURIER_CONFIG"); path != "" {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "config.json"
	}

	// Check ~/.config/courier/config.json first
	configDir := filepath.Join(homeDir, ".config", "courier")
	configPath := filepath.Join(configDir, "config.json")
	if _, err := os.Stat(configPath); err == nil {
		return configPath
	}

	// Fall back to ~/.courier/config.json
	return filepath.Join(homeDir, ".courier", "config.json")
}
