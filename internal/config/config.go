// Package config loads the gateway's startup configuration.
//
// Configuration is read exactly once, at process startup, from an
// optional YAML file plus PUSHGATE_* environment overrides. The
// resulting Config value is passed into constructors and treated as
// read-only for the life of the process; request handlers never read
// ambient environment state.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"pushgate/internal/security"
	"pushgate/pkg/cmdutil"
	"pushgate/pkg/fileutil"
)

const (
	// ConfigFileName is the YAML file searched for in the default paths.
	ConfigFileName = "pushgate.yaml"

	DefaultHost       = "127.0.0.1"
	DefaultPort       = 5000
	DefaultCommand    = "./deploy.sh"
	DefaultLogFile    = "./pushgate.log"
	DefaultLedgerPath = "./deliveries.db"
)

// Config is the root configuration structure.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Webhook WebhookConfig `yaml:"webhook"`
	Deploy  DeployConfig  `yaml:"deploy"`
	Site    SiteConfig    `yaml:"site"`
	Log     LogConfig     `yaml:"log"`
	Ledger  LedgerConfig  `yaml:"ledger"`

	// Source is the config file Load actually read, empty when the
	// configuration came from defaults and environment alone.
	Source string `yaml:"-"`
}

// ServerConfig is the listen address.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// WebhookConfig holds the shared secret. An empty secret means the
// webhook is unconfigured, which is a valid state: the gateway runs but
// rejects deliveries with 503 until a secret is provided.
type WebhookConfig struct {
	Secret string `yaml:"secret"`
}

// DeployConfig describes the deploy command.
type DeployConfig struct {
	// Command is the deploy command as written in YAML: either a
	// shell-quoted string or a list of argv elements.
	Command interface{} `yaml:"command"`

	// Dir is the working directory for the deploy command. Empty means
	// the gateway process's own working directory.
	Dir string `yaml:"dir"`

	// Argv is the parsed command line, populated by Load.
	Argv []string `yaml:"-"`
}

// SiteConfig points at the static site root served on GET requests.
type SiteConfig struct {
	Dir string `yaml:"dir"`
}

// LogConfig names the log file written alongside stdout.
type LogConfig struct {
	File string `yaml:"file"`
}

// LedgerConfig locates the delivery-ledger database.
type LedgerConfig struct {
	Path string `yaml:"path"`
}

// Addr returns the host:port the server listens on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// WebhookConfigured reports whether a shared secret is present.
func (c *Config) WebhookConfigured() bool {
	return c.Webhook.Secret != ""
}

// Load reads configuration from the given path, or from the default
// search paths when path is empty, applies environment overrides and
// defaults, and validates the result. A missing config file is not an
// error: the environment can supply everything.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path == "" {
		path = fileutil.FindConfigOptional(ConfigFileName)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
		cfg.Source = path
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)

	argv, err := cmdutil.ParseCommandList(cfg.Deploy.Command)
	if err != nil {
		return nil, fmt.Errorf("invalid deploy command: %w", err)
	}
	cfg.Deploy.Argv = argv

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("PUSHGATE_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("PUSHGATE_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PUSHGATE_PORT %q: %w", v, err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("PUSHGATE_WEBHOOK_SECRET"); v != "" {
		cfg.Webhook.Secret = v
	}
	if v := os.Getenv("PUSHGATE_DEPLOY_COMMAND"); v != "" {
		cfg.Deploy.Command = v
	}
	if v := os.Getenv("PUSHGATE_DEPLOY_DIR"); v != "" {
		cfg.Deploy.Dir = v
	}
	if v := os.Getenv("PUSHGATE_SITE_DIR"); v != "" {
		cfg.Site.Dir = v
	}
	if v := os.Getenv("PUSHGATE_LOG_FILE"); v != "" {
		cfg.Log.File = v
	}
	if v := os.Getenv("PUSHGATE_DB_PATH"); v != "" {
		cfg.Ledger.Path = v
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = DefaultHost
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultPort
	}
	if cfg.Deploy.Command == nil {
		cfg.Deploy.Command = DefaultCommand
	}
	if cfg.Log.File == "" {
		cfg.Log.File = DefaultLogFile
	}
	if cfg.Ledger.Path == "" {
		cfg.Ledger.Path = DefaultLedgerPath
	}
}

func validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d (must be 1-65535)", cfg.Server.Port)
	}

	// An absent secret is valid; a present secret must be strong.
	if cfg.Webhook.Secret != "" {
		if err := security.ValidateSecret(cfg.Webhook.Secret); err != nil {
			return fmt.Errorf("invalid webhook secret: %w", err)
		}
	}

	return nil
}
