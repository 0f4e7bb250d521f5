package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up in the workspace.
const FileName = "taskboard.yml"

// Config models taskboard.yml.
type Config struct {
	Server struct {
		Addr     string `yaml:"addr" mapstructure:"addr"`
		BasePath string `yaml:"base_path" mapstructure:"base_path"`
	} `yaml:"server" mapstructure:"server"`
	Database struct {
		Driver string `yaml:"driver" mapstructure:"driver"`
		Path   string `yaml:"path" mapstructure:"path"`
		DSN    string `yaml:"dsn" mapstructure:"dsn"`
	} `yaml:"database" mapstructure:"database"`
	Auth struct {
		JWTSecret         string `yaml:"jwt_secret" mapstructure:"jwt_secret"`
		TokenTTL          string `yaml:"token_ttl" mapstructure:"token_ttl"`
		AllowRegistration bool   `yaml:"allow_registration" mapstructure:"allow_registration"`
	} `yaml:"auth" mapstructure:"auth"`
	Log struct {
		Level  string `yaml:"level" mapstructure:"level"`
		Format string `yaml:"format" mapstructure:"format"`
	} `yaml:"log" mapstructure:"log"`
	Bootstrap struct {
		Admin BootstrapAdmin `yaml:"admin" mapstructure:"admin"`
	} `yaml:"bootstrap" mapstructure:"bootstrap"`
}

// BootstrapAdmin is created on start-up when no user with its email exists.
type BootstrapAdmin struct {
	Name     string `yaml:"name" mapstructure:"name"`
	Email    string `yaml:"email" mapstructure:"email"`
	Password string `yaml:"password" mapstructure:"password"`
}

func (b BootstrapAdmin) Enabled() bool {
	return strings.TrimSpace(b.Email) != ""
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return fmt.Errorf("config.server.addr is required")
	}
	if bp := c.Server.BasePath; bp != "" && !strings.HasPrefix(bp, "/") {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	switch strings.ToLower(c.Database.Driver) {
	case "", "sqlite", "sqlite3":
	case "postgres", "postgresql", "pg":
		if strings.TrimSpace(c.Database.DSN) == "" {
			return fmt.Errorf("config.database.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("config.database.driver must be sqlite or postgres")
	}
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return fmt.Errorf("config.auth.jwt_secret is required")
	}
	if _, err := c.TokenTTL(); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("config.log.format must be text or json")
	}
	if c.Bootstrap.Admin.Enabled() && c.Bootstrap.Admin.Password == "" {
		return fmt.Errorf("config.bootstrap.admin.password is required when an admin email is set")
	}
	return nil
}

// TokenTTL parses auth.token_ttl. Empty means zero, which callers treat as
// their default lifetime.
func (c *Config) TokenTTL() (time.Duration, error) {
	raw := strings.TrimSpace(c.Auth.TokenTTL)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("config.auth.token_ttl must be a positive duration like 24h")
	}
	return d, nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, FileName)
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses config from raw YAML bytes on top of the defaults and validates it.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the defaults if the workspace has no config file.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `server:
  addr: "127.0.0.1:3001"
  base_path: /api

database:
  driver: sqlite
  path: ""
  dsn: ""

auth:
  jwt_secret: change-me
  token_ttl: 24h
  allow_registration: true

log:
  level: info
  format: text

bootstrap:
  admin:
    name: ""
    email: ""
    password: ""
`
