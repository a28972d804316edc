package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetHome returns the vata home directory.
// Priority order:
//  1. VATA_HOME environment variable (if set)
//  2. Nearest ancestor of the working directory containing .vata/
//  3. .vata/ in the current working directory (fallback)
//
// The directory is created if it doesn't exist.
func GetHome() (string, error) {
	if home := os.Getenv("VATA_HOME"); home != "" {
		if err := os.MkdirAll(home, 0755); err != nil {
			return "", fmt.Errorf("create vata home directory: %w", err)
		}
		return home, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}

	if root, ok := findProjectRoot(cwd); ok {
		return filepath.Join(root, ".vata"), nil
	}

	home := filepath.Join(cwd, ".vata")
	if err := os.MkdirAll(home, 0755); err != nil {
		return "", fmt.Errorf("create vata home directory: %w", err)
	}
	return home, nil
}

// findProjectRoot walks up from dir looking for an existing .vata directory.
func findProjectRoot(dir string) (string, bool) {
	current := dir
	for {
		if info, err := os.Stat(filepath.Join(current, ".vata")); err == nil && info.IsDir() {
			return current, true
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", false
		}
		current = parent
	}
}

// GetHistoryDBPath returns the history database path:
// cfg.History.DBPath when set, otherwise $VATA_HOME/history.db.
func (c *Config) GetHistoryDBPath() (string, error) {
	if c.History.DBPath != "" {
		return c.History.DBPath, nil
	}
	home, err := GetHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "history.db"), nil
}
