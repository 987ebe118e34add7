// Package config loads service configuration from defaults, an optional
// YAML file and the environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ConfigFileEnv names the environment variable holding an optional config file path.
const ConfigFileEnv = "PROCUREMENT_CONFIG"

// Config is the full service configuration
type Config struct {
	Service    ServiceConfig    `mapstructure:"service"`
	Server     ServerConfig     `mapstructure:"server"`
	OpenAI     OpenAIConfig     `mapstructure:"openai"`
	Extraction ExtractionConfig `mapstructure:"extraction"`
	Webhook    WebhookConfig    `mapstructure:"webhook"`
	Database   DatabaseConfig   `mapstructure:"database"`
	NATS       NATSConfig       `mapstructure:"nats"`
	Report     ReportConfig     `mapstructure:"report"`
	Company    CompanyConfig    `mapstructure:"company"`
	Log        LogConfig        `mapstructure:"log"`
}

type ServiceConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	GRPCPort        int           `mapstructure:"grpc_port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// RequestTimeout bounds a whole HTTP request. Text generation has no
	// timeout of its own, so this stays generous.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

type ExtractionConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type WebhookConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// DatabaseConfig enables the audit log when URL is set.
type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// NATSConfig enables workflow event publishing when URL is set.
type NATSConfig struct {
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

type ReportConfig struct {
	// FontPath points at a UTF-8 TTF font used for PDF output.
	FontPath string `mapstructure:"font_path"`
}

type CompanyConfig struct {
	ProfileFile string `mapstructure:"profile_file"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

var defaults = map[string]any{
	"service.name":             "be-procurement-assistant",
	"service.version":          "dev",
	"service.environment":      "development",
	"server.port":              8080,
	"server.grpc_port":         9090,
	"server.read_timeout":      "30s",
	"server.write_timeout":     "10m",
	"server.idle_timeout":      "120s",
	"server.shutdown_timeout":  "30s",
	"server.request_timeout":   "10m",
	"openai.api_key":           "",
	"openai.base_url":          "",
	"openai.model":             "gpt-4",
	"extraction.api_key":       "",
	"extraction.url":           "https://api.agentql.com/v1/query-document",
	"extraction.timeout":       "120s",
	"webhook.timeout":          "30s",
	"database.url":             "",
	"database.max_conns":       4,
	"nats.url":                 "",
	"nats.subject_prefix":      "procurement",
	"report.font_path":         "",
	"company.profile_file":     "",
	"log.level":                "info",
}

// Load reads configuration. path may be empty, in which case the file named
// by PROCUREMENT_CONFIG (if any) is used.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = os.Getenv(ConfigFileEnv)
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Server.GRPCPort <= 0 || c.Server.GRPCPort > 65535 {
		return fmt.Errorf("server.grpc_port out of range: %d", c.Server.GRPCPort)
	}
	if c.Extraction.Timeout <= 0 {
		return fmt.Errorf("extraction.timeout must be positive")
	}
	if c.Webhook.Timeout <= 0 {
		return fmt.Errorf("webhook.timeout must be positive")
	}
	return nil
}
