package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// SandboxConfig controls the subprocess sandbox used by the runtime and
// scene-instantiation stages.
type SandboxConfig struct {
	// Root is the directory under which per-call scopes are created.
	// Empty means the system temp directory.
	Root string `yaml:"root"`

	// Interpreter is the Python executable used to run candidates.
	Interpreter string `yaml:"interpreter"`

	// IsolateNetwork runs candidates in a fresh network namespace (Linux).
	IsolateNetwork bool `yaml:"isolate_network"`

	// MemoryLimitMB caps the candidate's address space (0 = unlimited).
	MemoryLimitMB int `yaml:"memory_limit_mb"`

	// CPUSeconds caps the candidate's CPU time (0 = unlimited).
	CPUSeconds int `yaml:"cpu_seconds"`

	// MaxProcesses caps the number of processes for the sandbox user (0 = unlimited).
	MaxProcesses int `yaml:"max_processes"`

	// PassEnv lists host environment variables copied into the sandbox.
	PassEnv []string `yaml:"pass_env"`
}

// SceneConfig describes the animation-framework contract checked by the
// scene-instantiation stage.
type SceneConfig struct {
	// ClassName is the scene class to look for. Empty selects the last
	// subclass of BaseClass defined in the candidate.
	ClassName string `yaml:"class_name"`

	// BaseClass is the framework scene base class name.
	BaseClass string `yaml:"base_class"`

	// EntryMethod is the method every scene must expose.
	EntryMethod string `yaml:"entry_method"`
}

// LLMConfig configures the model backend used for generation and repair.
type LLMConfig struct {
	// Backend is one of: gemini, openai, claude-cli, none.
	Backend string `yaml:"backend"`

	// Model is the model name passed to the backend.
	Model string `yaml:"model"`

	// BaseURL overrides the OpenAI-compatible endpoint.
	BaseURL string `yaml:"base_url"`

	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string `yaml:"api_key_env"`

	// APIKey is resolved from the environment, never read from the file.
	APIKey string `yaml:"-"`

	// Timeout bounds a single model call.
	Timeout time.Duration `yaml:"-"`

	// RequestsPerMinute paces model calls (0 = unlimited).
	RequestsPerMinute int `yaml:"requests_per_minute"`

	// MaxRetries is the number of retries on transient service errors.
	MaxRetries int `yaml:"max_retries"`

	// Temperature is the sampling temperature.
	Temperature float32 `yaml:"temperature"`

	// MaxTokens caps the completion length.
	MaxTokens int `yaml:"max_tokens"`

	// ClaudePath is the claude CLI binary for the claude-cli backend.
	ClaudePath string `yaml:"claude_path"`
}

// HistoryConfig configures the sqlite run history.
type HistoryConfig struct {
	// Enabled records every run in the history database.
	Enabled bool `yaml:"enabled"`

	// DBPath is the path to the history database. Empty means $VATA_HOME/history.db.
	DBPath string `yaml:"db_path"`
}

// Config represents vata configuration options
type Config struct {
	// LogLevel sets the logging verbosity (trace, debug, info, warn, error)
	LogLevel string `yaml:"log_level"`

	// LogDir is the directory where logs will be written
	LogDir string `yaml:"log_dir"`

	// OutputDir receives generated scene files and reports
	OutputDir string `yaml:"output_dir"`

	// MaxAttempts is the maximum number of repair calls per strategy
	MaxAttempts int `yaml:"max_attempts"`

	// RepairBudget is the wall-clock budget for one strategy's repair sequence
	RepairBudget time.Duration `yaml:"-"`

	// RuntimeTimeout bounds the runtime stage subprocess
	RuntimeTimeout time.Duration `yaml:"-"`

	// InstantiationTimeout bounds the scene-instantiation stage subprocess
	InstantiationTimeout time.Duration `yaml:"-"`

	// Concurrency is the number of storyboards processed at once
	Concurrency int `yaml:"concurrency"`

	// RulesFile overrides the embedded logic rule table
	RulesFile string `yaml:"rules_file"`

	// MetricsFile receives Prometheus metrics in text format after each run
	MetricsFile string `yaml:"metrics_file"`

	Sandbox SandboxConfig `yaml:"sandbox"`
	Scene   SceneConfig   `yaml:"scene"`
	LLM     LLMConfig     `yaml:"llm"`
	History HistoryConfig `yaml:"history"`
}

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	return &Config{
		LogLevel:             "info",
		LogDir:               ".vata/logs",
		OutputDir:            "output",
		MaxAttempts:          3,
		RepairBudget:         5 * time.Minute,
		RuntimeTimeout:       60 * time.Second,
		InstantiationTimeout: 60 * time.Second,
		Concurrency:          1,
		Sandbox: SandboxConfig{
			Interpreter:    "python3",
			IsolateNetwork: true,
			MemoryLimitMB:  2048,
			CPUSeconds:     120,
			MaxProcesses:   0,
			PassEnv:        []string{"PYTHONPATH", "VIRTUAL_ENV", "CONDA_PREFIX"},
		},
		Scene: SceneConfig{
			BaseClass:   "Scene",
			EntryMethod: "construct",
		},
		LLM: LLMConfig{
			Backend:           "gemini",
			Model:             "gemini-2.0-flash",
			APIKeyEnv:         "GEMINI_API_KEY",
			Timeout:           2 * time.Minute,
			RequestsPerMinute: 10,
			MaxRetries:        3,
			Temperature:       0.1,
			MaxTokens:         16384,
			ClaudePath:        "claude",
		},
		History: HistoryConfig{
			Enabled: true,
		},
	}
}

// LoadConfig loads configuration from the specified file path
// If the file doesn't exist, returns default configuration without error
// If the file exists but is malformed, returns an error
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Durations are strings in the file
	type yamlLLM struct {
		LLMConfig `yaml:",inline"`
		Timeout   string `yaml:"timeout"`
	}
	type yamlConfig struct {
		LogLevel             string        `yaml:"log_level"`
		LogDir               string        `yaml:"log_dir"`
		OutputDir            string        `yaml:"output_dir"`
		MaxAttempts          int           `yaml:"max_attempts"`
		RepairBudget         string        `yaml:"repair_budget"`
		RuntimeTimeout       string        `yaml:"runtime_timeout"`
		InstantiationTimeout string        `yaml:"instantiation_timeout"`
		Concurrency          int           `yaml:"concurrency"`
		RulesFile            string        `yaml:"rules_file"`
		MetricsFile          string        `yaml:"metrics_file"`
		Sandbox              SandboxConfig `yaml:"sandbox"`
		Scene                SceneConfig   `yaml:"scene"`
		LLM                  yamlLLM       `yaml:"llm"`
		History              HistoryConfig `yaml:"history"`
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}
	if yamlCfg.LogDir != "" {
		cfg.LogDir = yamlCfg.LogDir
	}
	if yamlCfg.OutputDir != "" {
		cfg.OutputDir = yamlCfg.OutputDir
	}
	if yamlCfg.MaxAttempts != 0 {
		cfg.MaxAttempts = yamlCfg.MaxAttempts
	}
	if yamlCfg.Concurrency != 0 {
		cfg.Concurrency = yamlCfg.Concurrency
	}
	if yamlCfg.RulesFile != "" {
		cfg.RulesFile = yamlCfg.RulesFile
	}
	if yamlCfg.MetricsFile != "" {
		cfg.MetricsFile = yamlCfg.MetricsFile
	}

	durations := []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{"repair_budget", yamlCfg.RepairBudget, &cfg.RepairBudget},
		{"runtime_timeout", yamlCfg.RuntimeTimeout, &cfg.RuntimeTimeout},
		{"instantiation_timeout", yamlCfg.InstantiationTimeout, &cfg.InstantiationTimeout},
		{"llm.timeout", yamlCfg.LLM.Timeout, &cfg.LLM.Timeout},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return nil, fmt.Errorf("invalid %s format %q: %w", d.name, d.value, err)
		}
		*d.dst = parsed
	}

	// Nested sections: only keys present in the file override defaults
	var rawMap map[string]interface{}
	if err := yaml.Unmarshal(data, &rawMap); err == nil {
		if section, ok := rawMap["sandbox"].(map[string]interface{}); ok {
			mergeSandbox(&cfg.Sandbox, yamlCfg.Sandbox, section)
		}
		if section, ok := rawMap["scene"].(map[string]interface{}); ok {
			mergeScene(&cfg.Scene, yamlCfg.Scene, section)
		}
		if section, ok := rawMap["llm"].(map[string]interface{}); ok {
			mergeLLM(&cfg.LLM, yamlCfg.LLM.LLMConfig, section)
		}
		if section, ok := rawMap["history"].(map[string]interface{}); ok {
			if _, exists := section["enabled"]; exists {
				cfg.History.Enabled = yamlCfg.History.Enabled
			}
			if _, exists := section["db_path"]; exists {
				cfg.History.DBPath = yamlCfg.History.DBPath
			}
		}
	}

	return cfg, nil
}

func mergeSandbox(dst *SandboxConfig, src SandboxConfig, keys map[string]interface{}) {
	if _, ok := keys["root"]; ok {
		dst.Root = src.Root
	}
	if _, ok := keys["interpreter"]; ok {
		dst.Interpreter = src.Interpreter
	}
	if _, ok := keys["isolate_network"]; ok {
		dst.IsolateNetwork = src.IsolateNetwork
	}
	if _, ok := keys["memory_limit_mb"]; ok {
		dst.MemoryLimitMB = src.MemoryLimitMB
	}
	if _, ok := keys["cpu_seconds"]; ok {
		dst.CPUSeconds = src.CPUSeconds
	}
	if _, ok := keys["max_processes"]; ok {
		dst.MaxProcesses = src.MaxProcesses
	}
	if _, ok := keys["pass_env"]; ok {
		dst.PassEnv = src.PassEnv
	}
}

func mergeScene(dst *SceneConfig, src SceneConfig, keys map[string]interface{}) {
	if _, ok := keys["class_name"]; ok {
		dst.ClassName = src.ClassName
	}
	if _, ok := keys["base_class"]; ok {
		dst.BaseClass = src.BaseClass
	}
	if _, ok := keys["entry_method"]; ok {
		dst.EntryMethod = src.EntryMethod
	}
}

func mergeLLM(dst *LLMConfig, src LLMConfig, keys map[string]interface{}) {
	if _, ok := keys["backend"]; ok {
		dst.Backend = src.Backend
	}
	if _, ok := keys["model"]; ok {
		dst.Model = src.Model
	}
	if _, ok := keys["base_url"]; ok {
		dst.BaseURL = src.BaseURL
	}
	if _, ok := keys["api_key_env"]; ok {
		dst.APIKeyEnv = src.APIKeyEnv
	}
	if _, ok := keys["requests_per_minute"]; ok {
		dst.RequestsPerMinute = src.RequestsPerMinute
	}
	if _, ok := keys["max_retries"]; ok {
		dst.MaxRetries = src.MaxRetries
	}
	if _, ok := keys["temperature"]; ok {
		dst.Temperature = src.Temperature
	}
	if _, ok := keys["max_tokens"]; ok {
		dst.MaxTokens = src.MaxTokens
	}
	if _, ok := keys["claude_path"]; ok {
		dst.ClaudePath = src.ClaudePath
	}
}

// LoadConfigFromDir loads configuration from .vata/config.yaml in the specified directory
// If the directory or file doesn't exist, returns default configuration without error
func LoadConfigFromDir(dir string) (*Config, error) {
	configPath := filepath.Join(dir, ".vata", "config.yaml")
	return LoadConfig(configPath)
}

// ApplyEnv applies environment overrides: the attempt ceiling from
// VATA_MAX_ATTEMPTS (or MAX_HEALING_ATTEMPTS) and the API key from the
// configured variable with the usual fallbacks for the backend.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	for _, name := range []string{"VATA_MAX_ATTEMPTS", "MAX_HEALING_ATTEMPTS"} {
		if v := getenv(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s %q: %w", name, v, err)
			}
			c.MaxAttempts = n
			break
		}
	}

	candidates := []string{c.LLM.APIKeyEnv}
	switch c.LLM.Backend {
	case "gemini":
		candidates = append(candidates, "GEMINI_API_KEY", "GOOGLE_API_KEY")
	case "openai":
		candidates = append(candidates, "OPENAI_API_KEY")
	}
	for _, name := range candidates {
		if name == "" {
			continue
		}
		if v := getenv(name); v != "" {
			c.LLM.APIKey = v
			break
		}
	}
	return nil
}

// MergeWithFlags merges CLI flags into the configuration
// Non-nil flag values override configuration values
func (c *Config) MergeWithFlags(maxAttempts *int, repairBudget, runtimeTimeout *time.Duration, logDir, outputDir, backend, model *string, concurrency *int) {
	if maxAttempts != nil {
		c.MaxAttempts = *maxAttempts
	}
	if repairBudget != nil {
		c.RepairBudget = *repairBudget
	}
	if runtimeTimeout != nil {
		c.RuntimeTimeout = *runtimeTimeout
	}
	if logDir != nil {
		c.LogDir = *logDir
	}
	if outputDir != nil {
		c.OutputDir = *outputDir
	}
	if backend != nil {
		c.LLM.Backend = *backend
	}
	if model != nil {
		c.LLM.Model = *model
	}
	if concurrency != nil {
		c.Concurrency = *concurrency
	}
}

// Validate validates the configuration values
// Returns an error if any values are invalid
func (c *Config) Validate() error {
	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level %q, must be one of: trace, debug, info, warn, error", c.LogLevel)
	}

	if c.MaxAttempts < 0 {
		return fmt.Errorf("max_attempts must be >= 0, got %d", c.MaxAttempts)
	}
	if c.RepairBudget < 0 {
		return fmt.Errorf("repair_budget must be >= 0, got %v", c.RepairBudget)
	}
	if c.RuntimeTimeout <= 0 {
		return fmt.Errorf("runtime_timeout must be > 0, got %v", c.RuntimeTimeout)
	}
	if c.InstantiationTimeout <= 0 {
		return fmt.Errorf("instantiation_timeout must be > 0, got %v", c.InstantiationTimeout)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be >= 1, got %d", c.Concurrency)
	}

	if c.Sandbox.Interpreter == "" {
		return fmt.Errorf("sandbox.interpreter cannot be empty")
	}
	if c.Sandbox.MemoryLimitMB < 0 || c.Sandbox.CPUSeconds < 0 || c.Sandbox.MaxProcesses < 0 {
		return fmt.Errorf("sandbox limits must be >= 0")
	}

	if c.Scene.BaseClass == "" || c.Scene.EntryMethod == "" {
		return fmt.Errorf("scene.base_class and scene.entry_method cannot be empty")
	}

	switch c.LLM.Backend {
	case "gemini", "openai", "claude-cli", "none":
	default:
		return fmt.Errorf("invalid llm.backend %q, must be one of: gemini, openai, claude-cli, none", c.LLM.Backend)
	}
	if c.LLM.MaxRetries < 0 {
		return fmt.Errorf("llm.max_retries must be >= 0, got %d", c.LLM.MaxRetries)
	}
	if c.LLM.RequestsPerMinute < 0 {
		return fmt.Errorf("llm.requests_per_minute must be >= 0, got %d", c.LLM.RequestsPerMinute)
	}
	if c.LLM.Timeout < 0 {
		return fmt.Errorf("llm.timeout must be >= 0, got %v", c.LLM.Timeout)
	}

	return nil
}
