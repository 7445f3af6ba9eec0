// Package config loads the server configuration from YAML and MELA_*
// environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the server configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	DB         DBConfig         `yaml:"db"`
	Auth       AuthConfig       `yaml:"auth"`
	SMTP       SMTPConfig       `yaml:"smtp"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Redis      RedisConfig      `yaml:"redis"`
	Push       PushConfig       `yaml:"push"`
	Matcher    MatcherConfig    `yaml:"matcher"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port    int    `yaml:"port"`
	BaseURL string `yaml:"base_url"`
	DevMode bool   `yaml:"dev_mode"`
}

// DBConfig configures the SQLite store.
type DBConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig configures login and passkeys.
type AuthConfig struct {
	AdminEmail string `yaml:"admin_email"`
	RPID       string `yaml:"rp_id"`
	RPName     string `yaml:"rp_name"`
}

// SMTPConfig configures outgoing mail.
type SMTPConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
	User string `yaml:"user"`
	Pass string `yaml:"pass"`
	From string `yaml:"from"`
}

// Configured reports whether enough SMTP settings are present to send mail.
func (s SMTPConfig) Configured() bool {
	return s.Host != "" && s.From != ""
}

// ClassifierConfig selects and tunes the brand detector.
type ClassifierConfig struct {
	// Provider is one of genai, gateway or catalog.
	Provider        string        `yaml:"provider"`
	Model           string        `yaml:"model"`
	APIKey          string        `yaml:"api_key"`
	GatewayURL      string        `yaml:"gateway_url"`
	Timeout         time.Duration `yaml:"timeout"`
	CacheTTL        time.Duration `yaml:"cache_ttl"`
	BreakerFailures int           `yaml:"breaker_failures"`
	BreakerCooldown time.Duration `yaml:"breaker_cooldown"`
}

// RedisConfig configures the detection cache. An empty Addr disables it.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// PushConfig configures Firebase Cloud Messaging.
type PushConfig struct {
	Enabled         bool   `yaml:"enabled"`
	CredentialsFile string `yaml:"credentials_file"`
	ProjectID       string `yaml:"project_id"`
}

// MatcherConfig tunes the asynchronous matcher.
type MatcherConfig struct {
	Workers     int `yaml:"workers"`
	QueueSize   int `yaml:"queue_size"`
	PushWorkers int `yaml:"push_workers"`
}

// Classifier providers.
const (
	ProviderGenAI   = "genai"
	ProviderGateway = "gateway"
	ProviderCatalog = "catalog"
)

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:    8080,
			BaseURL: "http://localhost:8080",
		},
		Auth: AuthConfig{
			RPName: "Mela",
		},
		SMTP: SMTPConfig{
			Port: "587",
		},
		Classifier: ClassifierConfig{
			Provider:        ProviderCatalog,
			GatewayURL:      "https://ai.gateway.lovable.dev/v1/chat/completions",
			Timeout:         15 * time.Second,
			CacheTTL:        24 * time.Hour,
			BreakerFailures: 5,
			BreakerCooldown: 30 * time.Second,
		},
		Matcher: MatcherConfig{
			Workers:     2,
			QueueSize:   64,
			PushWorkers: 8,
		},
	}
}

// DefaultPath returns the default config path: ~/.config/mela/server.yaml
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("finding home directory: %w", err)
	}
	return filepath.Join(home, ".config", "mela", "server.yaml"), nil
}

// Load reads the config file at path (a missing file is not an error),
// then applies environment overrides. An empty path uses DefaultPath.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return Config{}, err
		}
		path = p
	}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return Config{}, fmt.Errorf("reading config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg, os.Getenv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overrides cfg with MELA_* variables read through getenv.
func applyEnv(cfg *Config, getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}

	str("MELA_BASE_URL", &cfg.Server.BaseURL)
	str("MELA_DB", &cfg.DB.Path)
	str("MELA_ADMIN_EMAIL", &cfg.Auth.AdminEmail)
	str("MELA_RP_ID", &cfg.Auth.RPID)
	str("MELA_SMTP_HOST", &cfg.SMTP.Host)
	str("MELA_SMTP_PORT", &cfg.SMTP.Port)
	str("MELA_SMTP_USER", &cfg.SMTP.User)
	str("MELA_SMTP_PASS", &cfg.SMTP.Pass)
	str("MELA_SMTP_FROM", &cfg.SMTP.From)
	str("MELA_CLASSIFIER", &cfg.Classifier.Provider)
	str("MELA_CLASSIFIER_MODEL", &cfg.Classifier.Model)
	str("MELA_CLASSIFIER_API_KEY", &cfg.Classifier.APIKey)
	str("MELA_GATEWAY_URL", &cfg.Classifier.GatewayURL)
	str("MELA_REDIS_ADDR", &cfg.Redis.Addr)
	str("MELA_REDIS_PASSWORD", &cfg.Redis.Password)
	str("MELA_FIREBASE_CREDENTIALS", &cfg.Push.CredentialsFile)
	str("MELA_FIREBASE_PROJECT", &cfg.Push.ProjectID)

	if v := getenv("MELA_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing MELA_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if v := getenv("MELA_DEV_MODE"); v != "" {
		cfg.Server.DevMode = v == "true"
	}
	if v := getenv("MELA_PUSH_ENABLED"); v != "" {
		cfg.Push.Enabled = v == "true"
	}
	if v := getenv("MELA_CACHE_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parsing MELA_CACHE_TTL: %w", err)
		}
		cfg.Classifier.CacheTTL = ttl
	}

	return cfg.validate()
}

func (c *Config) validate() error {
	switch c.Classifier.Provider {
	case ProviderGenAI, ProviderGateway, ProviderCatalog:
	default:
		return fmt.Errorf("unknown classifier provider %q", c.Classifier.Provider)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	if c.Matcher.Workers < 1 {
		c.Matcher.Workers = 1
	}
	if c.Matcher.QueueSize < 1 {
		c.Matcher.QueueSize = 1
	}
	if c.Matcher.PushWorkers < 1 {
		c.Matcher.PushWorkers = 1
	}
	return nil
}
