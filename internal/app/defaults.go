package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - JCH_CONFIG_PATH: config file location (default: ~/.config/jch.toml)
//   - JCH_HOME: base directory for jch data (default: ~/.local/share/jch)
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path":  configPath,
		"base_dir":     baseDir,
		"log_dir":      filepath.Join(baseDir, "log"),
		"history_root": filepath.Join(baseDir, "config-history"),
	}, nil
}

// getConfigPath returns JCH_CONFIG_PATH, or ~/.config/jch.toml.
func getConfigPath() (string, error) {
	if path := os.Getenv("JCH_CONFIG_PATH"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "jch.toml"), nil
}

// getBaseDir returns JCH_HOME, or the XDG default ~/.local/share/jch.
func getBaseDir() (string, error) {
	if path := os.Getenv("JCH_HOME"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "jch"), nil
}
