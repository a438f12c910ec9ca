package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Backend.URL == "" {
		t.Error("Backend URL should not be empty")
	}
	if cfg.Backend.Model == "" {
		t.Error("Backend Model should not be empty")
	}
	if cfg.Backend.MaxDaysBack <= 0 {
		t.Error("Backend MaxDaysBack should be positive")
	}

	if cfg.Storage.DataDir == "" {
		t.Error("Storage DataDir should not be empty")
	}

	if cfg.Stream.ConflictPolicy != "reject" {
		t.Errorf("default conflict policy should be reject, got %q", cfg.Stream.ConflictPolicy)
	}

	if cfg.Monitor.ProbeIntervalSeconds != 30 {
		t.Errorf("default probe interval should be 30s, got %d", cfg.Monitor.ProbeIntervalSeconds)
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		t.Error("Server Port should be valid")
	}

	if !cfg.Autosave.Enabled {
		t.Error("Autosave should default to enabled")
	}
	if cfg.Autosave.DebounceMs != 2000 {
		t.Errorf("default debounce should be 2000ms, got %d", cfg.Autosave.DebounceMs)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("COURIER_CONFIG", filepath.Join(t.TempDir(), "missing.json"))
	t.Setenv("COURIER_DATA_DIR", t.TempDir())
	t.Setenv("COURIER_BACKEND_URL", "http://backend.internal:9000")
	t.Setenv("COURIER_BACKEND_TOKEN", "secret")
	t.Setenv("COURIER_SERVER_PORT", "9999")
	t.Setenv("COURIER_CONFLICT_POLICY", "cancel_replace")
	t.Setenv("COURIER_AUTOSAVE_ENABLED", "false")
	t.Setenv("COURIER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Backend.URL != "http://backend.internal:9000" {
		t.Errorf("unexpected backend URL: %q", cfg.Backend.URL)
	}
	if !cfg.HasCredential() {
		t.Error("credential should be set")
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("unexpected port: %d", cfg.Server.Port)
	}
	if cfg.Stream.ConflictPolicy != "cancel_replace" {
		t.Errorf("unexpected conflict policy: %q", cfg.Stream.ConflictPolicy)
	}
	if cfg.Autosave.Enabled {
		t.Error("autosave should be disabled")
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "https://b.example" {
		t.Errorf("unexpected CORS origins: %v", cfg.Server.CORSOrigins)
	}
}

func TestEnvIntIgnoresGarbage(t *testing.T) {
	t.Setenv("COURIER_TEST_INT", "not-a-number")
	target := 42
	envInt("COURIER_TEST_INT", &target)
	if target != 42 {
		t.Errorf("invalid int should be ignored, got %d", target)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.json")
	content := `{
		"backend": {"url": "http://from-file:8000", "model": "file-model"},
		"storage": {"data_dir": "` + strings.ReplaceAll(dir, `\`, `\\`) + `"}
	}`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("COURIER_CONFIG", configPath)

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Backend.URL != "http://from-file:8000" {
		t.Errorf("unexpected backend URL: %q", cfg.Backend.URL)
	}
	if cfg.Backend.Model != "file-model" {
		t.Errorf("unexpected model: %q", cfg.Backend.Model)
	}
	// Values absent from the file keep their defaults.
	if cfg.Server.Port != 8080 {
		t.Errorf("unexpected port: %d", cfg.Server.Port)
	}
}

func TestEnvOverridesConfigFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.json")
	if err := os.WriteFile(configPath, []byte(`{"backend": {"url": "http://from-file:8000"}}`), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("COURIER_CONFIG", configPath)
	t.Setenv("COURIER_DATA_DIR", dir)
	t.Setenv("COURIER_BACKEND_URL", "http://from-env:8000")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Backend.URL != "http://from-env:8000" {
		t.Errorf("env should win over file, got %q", cfg.Backend.URL)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "port"},
		{"missing backend URL", func(c *Config) { c.Backend.URL = "" }, "backend URL"},
		{"malformed backend URL", func(c *Config) { c.Backend.URL = "not a url" }, "valid URL"},
		{"bad conflict policy", func(c *Config) { c.Stream.ConflictPolicy = "queue" }, "conflict_policy"},
		{"zero probe interval", func(c *Config) { c.Monitor.ProbeIntervalSeconds = 0 }, "probe interval"},
		{"no storage", func(c *Config) { c.Storage.DataDir = ""; c.Storage.PostgresURL = "" }, "data dir"},
		{"negative lookback", func(c *Config) { c.Backend.MaxDaysBack = -1 }, "max_days_back"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q should mention %q", err, tc.want)
			}
		})
	}
}
