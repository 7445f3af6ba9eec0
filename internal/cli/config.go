package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const defaultServerURL = "http://localhost:8080"

// CLIConfig is the client side configuration kept in
// ~/.config/mela/config.yaml. The server reads its own server.yaml.
type CLIConfig struct {
	ServerURL string `yaml:"server_url,omitempty"`
	APIKey    string `yaml:"api_key,omitempty"`
}

func configPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("finding home directory: %w", err)
	}
	return filepath.Join(home, ".config", "mela", "config.yaml"), nil
}

// loadConfig reads the CLI config. A missing file yields the zero config.
func loadConfig() (CLIConfig, error) {
	path, err := configPath()
	if err != nil {
		return CLIConfig{}, err
	}

	var cfg CLIConfig
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		return cfg, nil
	case err != nil:
		return CLIConfig{}, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return CLIConfig{}, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// saveConfig writes cfg with owner-only permissions since it holds the key.
func saveConfig(cfg CLIConfig) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// settings merges MELA_SERVER_URL and MELA_API_KEY over the saved config.
// An unreadable config file is treated as empty.
func settings() CLIConfig {
	cfg, err := loadConfig()
	if err != nil {
		cfg = CLIConfig{}
	}
	if v := os.Getenv("MELA_SERVER_URL"); v != "" {
		cfg.ServerURL = v
	}
	if v := os.Getenv("MELA_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if cfg.ServerURL == "" {
		cfg.ServerURL = defaultServerURL
	}
	cfg.ServerURL = strings.TrimRight(cfg.ServerURL, "/")
	return cfg
}

func getServerURL() string {
	return settings().ServerURL
}

func getAPIKey() string {
	return settings().APIKey
}
