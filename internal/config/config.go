// Package config loads relay settings from flags, the environment, an optional
// .env file and an optional yaml file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Integration types a relay process can front.
const (
	TypeMySQL  = "mysql"
	TypeSearch = "search"
)

// Config is constructed once at startup and passed to the relay by reference.
type Config struct {
	Relay    RelayConfig    `mapstructure:"relay"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Search   SearchConfig   `mapstructure:"search"`
	SAM      SAMConfig      `mapstructure:"sam"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type RelayConfig struct {
	Type string `mapstructure:"type"` // mysql, search
}

type ServerConfig struct {
	Port        string `mapstructure:"port"`
	Token       string `mapstructure:"token"`
	TLSCertFile string `mapstructure:"tls_cert_file"`
	TLSKeyFile  string `mapstructure:"tls_key_file"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"` // mysql, sqlite
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	DSN      string `mapstructure:"dsn"`
}

type SearchConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

type SAMConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, console
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// env maps config keys to the environment variables the portal deploys with.
var env = map[string]string{
	"relay.type":           "RELAY_TYPE",
	"server.port":          "PORT",
	"server.token":         "RELAY_TOKEN",
	"server.tls_cert_file": "TLS_CERT_FILE",
	"server.tls_key_file":  "TLS_KEY_FILE",
	"database.driver":      "DB_DRIVER",
	"database.host":        "MYSQL_HOST",
	"database.port":        "MYSQL_PORT",
	"database.user":        "MYSQL_USER",
	"database.password":    "MYSQL_PASSWORD",
	"database.name":        "MYSQL_DATABASE",
	"database.dsn":         "DB_DSN",
	"search.api_key":       "SEARCH_API_KEY",
	"search.base_url":      "SEARCH_BASE_URL",
	"sam.api_key":          "SAM_API_KEY",
	"sam.base_url":         "SAM_BASE_URL",
	"log.level":            "LOG_LEVEL",
	"log.format":           "LOG_FORMAT",
	"metrics.addr":         "METRICS_ADDR",
}

// New returns a viper instance with defaults and environment bindings applied.
// Callers may bind flags on top before calling Load.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault("relay.type", TypeMySQL)
	v.SetDefault("server.port", "8000")
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.port", 3306)
	v.SetDefault("search.base_url", "https://api.tavily.com/search")
	v.SetDefault("sam.base_url", "https://api.sam.gov/opportunities/v2/search")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	for key, name := range env {
		_ = v.BindEnv(key, name)
	}
	return v
}

// LoadDotEnv loads a .env file from the working directory when one exists.
// Variables already set in the process environment win.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

// Load reads the optional yaml file and decodes v into a Config.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Relay.Type = strings.ToLower(strings.TrimSpace(cfg.Relay.Type))
	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))
	return &cfg, nil
}

// Validate rejects unknown integration types and missing credentials for the
// integration this process activates.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return errors.New("server port is required")
	}
	if (c.Server.TLSCertFile == "") != (c.Server.TLSKeyFile == "") {
		return errors.New("TLS_CERT_FILE and TLS_KEY_FILE must be set together")
	}
	switch c.Relay.Type {
	case TypeMySQL:
		if c.Database.DSN != "" {
			return nil
		}
		var missing []string
		if c.Database.Host == "" {
			missing = append(missing, "MYSQL_HOST")
		}
		if c.Database.User == "" {
			missing = append(missing, "MYSQL_USER")
		}
		if c.Database.Name == "" {
			missing = append(missing, "MYSQL_DATABASE")
		}
		if len(missing) > 0 {
			return fmt.Errorf("mysql relay requires %s", strings.Join(missing, ", "))
		}
	case TypeSearch:
		if c.Search.APIKey == "" {
			return errors.New("search relay requires SEARCH_API_KEY")
		}
	default:
		return fmt.Errorf("unknown relay type %q", c.Relay.Type)
	}
	return nil
}
