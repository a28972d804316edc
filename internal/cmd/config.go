package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Manik0107/VATA/internal/config"
	"github.com/Manik0107/VATA/internal/sandbox"
	"github.com/Manik0107/VATA/internal/validation"
)

// loadConfig reads the config file named by --config (or .vata/config.yaml)
// and applies the --log-level override. Callers merge their own flags and
// then call finishConfig.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
		}
	} else {
		cfg, err = config.LoadConfigFromDir(".")
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = level
	}
	return cfg, nil
}

// finishConfig applies the environment after flags have been merged, so
// the API key lookup follows the final backend, then validates.
func finishConfig(cfg *config.Config) error {
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return fmt.Errorf("invalid environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func loadRules(path string) (*validation.RuleSet, error) {
	rules, err := validation.LoadRules(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}
	return rules, nil
}

func sceneContract(cfg *config.Config) validation.SceneContract {
	return validation.SceneContract{
		ClassName:   cfg.Scene.ClassName,
		BaseClass:   cfg.Scene.BaseClass,
		EntryMethod: cfg.Scene.EntryMethod,
	}
}

func newSandbox(cfg *config.Config, root string) (*sandbox.Sandbox, error) {
	return sandbox.New(sandbox.Options{
		Root:           root,
		Interpreter:    cfg.Sandbox.Interpreter,
		IsolateNetwork: cfg.Sandbox.IsolateNetwork,
		MemoryLimitMB:  cfg.Sandbox.MemoryLimitMB,
		CPUSeconds:     cfg.Sandbox.CPUSeconds,
		MaxProcesses:   cfg.Sandbox.MaxProcesses,
		PassEnv:        cfg.Sandbox.PassEnv,
	})
}
