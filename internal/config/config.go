// Package config provides configuration management for galaxy-admin.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for galaxy-admin.
type Config struct {
	KeysFile string         `mapstructure:"keys_file"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Tools    ToolsConfig    `mapstructure:"tools"`
	Toolshed ToolshedConfig `mapstructure:"toolshed"`
	Ping     PingConfig     `mapstructure:"ping"`
}

// HTTPConfig holds settings for calls to Galaxy and toolshed servers.
type HTTPConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// ToolsConfig holds tool repository install settings.
type ToolsConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// ToolshedConfig maps the well-known toolshed shortcuts to URLs.
type ToolshedConfig struct {
	Main string `mapstructure:"main"`
	Test string `mapstructure:"test"`
}

// PingConfig holds defaults for the ping command.
type PingConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// DefaultKeysFile returns the per-user alias file location.
func DefaultKeysFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".galaxy-admin-keys"
	}
	return filepath.Join(home, ".galaxy-admin-keys")
}

// Load reads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("keys_file", DefaultKeysFile())
	v.SetDefault("http.timeout", 60*time.Second)
	v.SetDefault("tools.poll_interval", 10*time.Second)
	v.SetDefault("tools.timeout", 600*time.Second)
	v.SetDefault("toolshed.main", "https://toolshed.g2.bx.psu.edu/")
	v.SetDefault("toolshed.test", "https://testtoolshed.g2.bx.psu.edu/")
	v.SetDefault("ping.interval", 5*time.Second)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "galaxy-admin"))
		}
		v.AddConfigPath("/etc/galaxy-admin")
	}

	v.SetEnvPrefix("GALAXY_ADMIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// A missing config file is fine; defaults and env still apply.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
