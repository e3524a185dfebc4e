// Package config loads tool configuration from astranotes.yaml and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// DashboardConfig holds the WebSocket dashboard settings.
type DashboardConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// Config is the resolved tool configuration.
type Config struct {
	// ServerURL is the base URL of the production tracking service.
	ServerURL string `mapstructure:"server_url"`

	// APIKey authenticates against the tracking service.
	APIKey string `mapstructure:"api_key"`

	// DatabasePath is the local draft database. Defaults under the
	// user config directory.
	DatabasePath string `mapstructure:"database_path"`

	// LogPath is the rotating log file. Empty means stderr only.
	LogPath string `mapstructure:"log_path"`

	// DropDir, when set, is watched for files to attach to the
	// targeted draft.
	DropDir string `mapstructure:"drop_dir"`

	// PlaylistID selects the review session to operate on.
	PlaylistID string `mapstructure:"playlist_id"`

	Dashboard DashboardConfig `mapstructure:"dashboard"`
}

// DefaultDatabasePath returns the standard location for the draft
// database.
func DefaultDatabasePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "astranotes.db"
	}
	return filepath.Join(dir, "astranotes", "astranotes.db")
}

// Load reads configuration from cfgFile, or from the standard search
// paths when cfgFile is empty. Environment variables prefixed with
// ASTRANOTES_ override file values (ASTRANOTES_SERVER_URL and so on).
// A missing config file is not an error; defaults and env still apply.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server_url", "")
	v.SetDefault("api_key", "")
	v.SetDefault("database_path", DefaultDatabasePath())
	v.SetDefault("log_path", "")
	v.SetDefault("drop_dir", "")
	v.SetDefault("playlist_id", "")
	v.SetDefault("dashboard.enabled", false)
	v.SetDefault("dashboard.port", 8985)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("astranotes")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "astranotes"))
		}
	}

	v.SetEnvPrefix("ASTRANOTES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &cfg, nil
}

// ValidateRemote checks the fields required to talk to the tracking
// service. Local-only commands skip this.
func (c *Config) ValidateRemote() error {
	if c.ServerURL == "" {
		return fmt.Errorf("server_url is required (set it in astranotes.yaml or ASTRANOTES_SERVER_URL)")
	}
	if c.APIKey == "" {
		return fmt.Errorf("api_key is required (set it in astranotes.yaml or ASTRANOTES_API_KEY)")
	}
	return nil
}
