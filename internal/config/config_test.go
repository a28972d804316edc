package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

// TestDefaultConfig verifies default configuration values
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", cfg.MaxAttempts)
	}
	if cfg.RepairBudget != 5*time.Minute {
		t.Errorf("RepairBudget = %v, want 5m", cfg.RepairBudget)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
	if cfg.LogDir != ".vata/logs" {
		t.Errorf("LogDir = %q, want %q", cfg.LogDir, ".vata/logs")
	}
	if cfg.Scene.EntryMethod != "construct" || cfg.Scene.BaseClass != "Scene" {
		t.Errorf("Scene = %+v, want Scene/construct", cfg.Scene)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v", err)
	}
}

// TestLoadConfigValidFile tests loading a valid YAML config file
func TestLoadConfigValidFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	configContent := `log_level: debug
max_attempts: 5
repair_budget: 2m30s
runtime_timeout: 15s
concurrency: 4
rules_file: rules/manim-0.18.yaml
sandbox:
  interpreter: /opt/venv/bin/python
  isolate_network: false
scene:
  class_name: RegressionScene
llm:
  backend: openai
  model: gpt-4o-mini
  timeout: 45s
history:
  enabled: false
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	checks := []struct {
		name      string
		got, want interface{}
	}{
		{"LogLevel", cfg.LogLevel, "debug"},
		{"MaxAttempts", cfg.MaxAttempts, 5},
		{"RepairBudget", cfg.RepairBudget, 150 * time.Second},
		{"RuntimeTimeout", cfg.RuntimeTimeout, 15 * time.Second},
		{"InstantiationTimeout", cfg.InstantiationTimeout, 60 * time.Second},
		{"Concurrency", cfg.Concurrency, 4},
		{"RulesFile", cfg.RulesFile, "rules/manim-0.18.yaml"},
		{"Sandbox.Interpreter", cfg.Sandbox.Interpreter, "/opt/venv/bin/python"},
		{"Sandbox.IsolateNetwork", cfg.Sandbox.IsolateNetwork, false},
		{"Sandbox.MemoryLimitMB", cfg.Sandbox.MemoryLimitMB, 2048},
		{"Scene.ClassName", cfg.Scene.ClassName, "RegressionScene"},
		{"Scene.EntryMethod", cfg.Scene.EntryMethod, "construct"},
		{"LLM.Backend", cfg.LLM.Backend, "openai"},
		{"LLM.Model", cfg.LLM.Model, "gpt-4o-mini"},
		{"LLM.Timeout", cfg.LLM.Timeout, 45 * time.Second},
		{"LLM.MaxRetries", cfg.LLM.MaxRetries, 3},
		{"History.Enabled", cfg.History.Enabled, false},
	}
	for _, c := range checks {
		if !reflect.DeepEqual(c.got, c.want) {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

// TestLoadConfigMissingFile tests that a missing file yields defaults
func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if !reflect.DeepEqual(cfg, DefaultConfig()) {
		t.Errorf("LoadConfig(missing) = %+v, want defaults", cfg)
	}
}

// TestLoadConfigErrors tests malformed files
func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad yaml", "log_level: [unclosed", "failed to parse"},
		{"bad budget", "repair_budget: forever", "repair_budget"},
		{"bad llm timeout", "llm:\n  timeout: soon", "llm.timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			_, err := LoadConfig(path)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("LoadConfig() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

// TestLoadConfigFromDir tests the .vata/config.yaml lookup
func TestLoadConfigFromDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, ".vata"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".vata", "config.yaml"), []byte("output_dir: renders\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigFromDir(dir)
	if err != nil {
		t.Fatalf("LoadConfigFromDir() error = %v", err)
	}
	if cfg.OutputDir != "renders" {
		t.Errorf("OutputDir = %q, want %q", cfg.OutputDir, "renders")
	}
}

// TestMergeWithFlags tests that set flags override the file
func TestMergeWithFlags(t *testing.T) {
	cfg := DefaultConfig()
	attempts := 1
	budget := 30 * time.Second
	backend := "none"

	cfg.MergeWithFlags(&attempts, &budget, nil, nil, nil, &backend, nil, nil)

	if cfg.MaxAttempts != 1 {
		t.Errorf("MaxAttempts = %d, want 1", cfg.MaxAttempts)
	}
	if cfg.RepairBudget != 30*time.Second {
		t.Errorf("RepairBudget = %v, want 30s", cfg.RepairBudget)
	}
	if cfg.LLM.Backend != "none" {
		t.Errorf("LLM.Backend = %q, want none", cfg.LLM.Backend)
	}
	if cfg.RuntimeTimeout != 60*time.Second {
		t.Errorf("RuntimeTimeout changed to %v by a nil flag", cfg.RuntimeTimeout)
	}
}

// TestApplyEnv tests environment overrides
func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"MAX_HEALING_ATTEMPTS": "5",
		"GOOGLE_API_KEY":       "google-key",
	}
	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(func(k string) string { return env[k] }); err != nil {
		t.Fatalf("ApplyEnv() error = %v", err)
	}
	if cfg.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d, want 5", cfg.MaxAttempts)
	}
	if cfg.LLM.APIKey != "google-key" {
		t.Errorf("APIKey = %q, want the GOOGLE_API_KEY fallback", cfg.LLM.APIKey)
	}

	env["VATA_MAX_ATTEMPTS"] = "2"
	env["GEMINI_API_KEY"] = "gemini-key"
	cfg = DefaultConfig()
	cfg.ApplyEnv(func(k string) string { return env[k] })
	if cfg.MaxAttempts != 2 {
		t.Errorf("VATA_MAX_ATTEMPTS should win, got %d", cfg.MaxAttempts)
	}
	if cfg.LLM.APIKey != "gemini-key" {
		t.Errorf("APIKey = %q, want gemini-key", cfg.LLM.APIKey)
	}

	env["VATA_MAX_ATTEMPTS"] = "many"
	if err := DefaultConfig().ApplyEnv(func(k string) string { return env[k] }); err == nil {
		t.Error("ApplyEnv() should reject a non-numeric attempt count")
	}
}

// TestValidate tests configuration validation
func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, true},
		{"negative attempts", func(c *Config) { c.MaxAttempts = -1 }, true},
		{"zero attempts allowed", func(c *Config) { c.MaxAttempts = 0 }, false},
		{"zero runtime timeout", func(c *Config) { c.RuntimeTimeout = 0 }, true},
		{"zero concurrency", func(c *Config) { c.Concurrency = 0 }, true},
		{"empty interpreter", func(c *Config) { c.Sandbox.Interpreter = "" }, true},
		{"unknown backend", func(c *Config) { c.LLM.Backend = "oracle" }, true},
		{"claude backend", func(c *Config) { c.LLM.Backend = "claude-cli" }, false},
		{"empty entry method", func(c *Config) { c.Scene.EntryMethod = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// TestGetHome tests VATA_HOME resolution
func TestGetHome(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "home")
	t.Setenv("VATA_HOME", dir)

	home, err := GetHome()
	if err != nil {
		t.Fatalf("GetHome() error = %v", err)
	}
	if home != dir {
		t.Errorf("GetHome() = %q, want %q", home, dir)
	}

	cfg := DefaultConfig()
	path, err := cfg.GetHistoryDBPath()
	if err != nil {
		t.Fatal(err)
	}
	if path != filepath.Join(dir, "history.db") {
		t.Errorf("GetHistoryDBPath() = %q", path)
	}

	cfg.History.DBPath = "/var/lib/vata.db"
	if path, _ := cfg.GetHistoryDBPath(); path != "/var/lib/vata.db" {
		t.Errorf("explicit db_path ignored: %q", path)
	}
}
