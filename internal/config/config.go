// Package config loads service configuration from environment variables
// and an optional YAML file, plus the vendor rules overlay.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full service configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Enrich  EnrichConfig  `mapstructure:"enrich"`
	Log     LogConfig     `mapstructure:"log"`

	// RulesFile points at an optional vendor rules overlay (rules.yaml).
	RulesFile string `mapstructure:"rules_file"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// MaxUploadBytes caps the size of an uploaded bugreport.zip.
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes"`
}

type StorageConfig struct {
	Backend    string `mapstructure:"backend"`
	SQLitePath string `mapstructure:"sqlite_path"`
	MaxRuns    int    `mapstructure:"max_runs"`
}

// EnrichConfig configures the optional LLM enrichment layer. With no
// endpoints configured, enrichment is disabled.
type EnrichConfig struct {
	Endpoints []string      `mapstructure:"endpoints"`
	Model     string        `mapstructure:"model"`
	APIKey    string        `mapstructure:"api_key"`
	Timeout   time.Duration `mapstructure:"timeout"`

	// MaxInsights bounds how many insight cards are sent for enrichment.
	MaxInsights int `mapstructure:"max_insights"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// Load reads configuration from BUGSIGHT_* environment variables and,
// when path is non-empty, the YAML file at path. File values override
// defaults; environment overrides both.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 60*time.Second)
	v.SetDefault("server.write_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.max_upload_bytes", int64(512<<20))
	v.SetDefault("storage.backend", "memory")
	v.SetDefault("storage.sqlite_path", "bugsight.db")
	v.SetDefault("storage.max_runs", 50)
	v.SetDefault("enrich.timeout", 120*time.Second)
	v.SetDefault("enrich.max_insights", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)

	v.SetEnvPrefix("BUGSIGHT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// Enabled reports whether enrichment is configured at all.
func (c EnrichConfig) Enabled() bool {
	return len(c.Endpoints) > 0
}
