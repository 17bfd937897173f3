// Package config provides configuration management for featsync.
// It supports YAML configuration files, environment variables, and sensible
// defaults.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/klauern/featsync/internal/errs"
)

// Demo credentials substituted when none are configured outside production.
const (
	DemoUsername = "demo"
	DemoToken    = "demo-token"
)

// Config represents the complete featsync configuration.
type Config struct {
	// Remote configures the remote system connection.
	Remote RemoteConfig `yaml:"remote"`

	// Paths configures the local and staging directories.
	Paths PathsConfig `yaml:"paths"`

	// Sync configures synchronization behavior.
	Sync SyncConfig `yaml:"sync"`

	// Cache configures caching behavior.
	Cache CacheConfig `yaml:"cache"`

	// Output configures display preferences.
	Output OutputConfig `yaml:"output"`
}

// RemoteConfig holds the remote system connection settings.
type RemoteConfig struct {
	// URL locates the remote feature snapshot. A plain path or file: URL
	// selects the directory transport.
	URL string `yaml:"url"`
	// Username authenticates against the remote system.
	Username string `yaml:"username"`
	// Token authenticates against the remote system.
	Token string `yaml:"token"`
	// Production marks this configuration as a production context, in
	// which missing credentials are a hard failure instead of a demo
	// substitution.
	Production bool `yaml:"production"`
}

// PathsConfig holds directory locations.
type PathsConfig struct {
	// FeaturesDir is the versioned local feature directory.
	FeaturesDir string `yaml:"features_dir"`
	// StagingDir is the ephemeral staging mirror.
	StagingDir string `yaml:"staging_dir"`
}

// SyncConfig holds synchronization settings.
type SyncConfig struct {
	// FanOut bounds concurrent document validation.
	FanOut int `yaml:"fan_out"`
	// HistoryMax bounds the event bus history.
	HistoryMax int `yaml:"history_max"`
	// Extension is the document file extension.
	Extension string `yaml:"extension"`
	// MergeTool is the external merge executable.
	MergeTool string `yaml:"merge_tool"`
}

// CacheConfig holds caching settings.
type CacheConfig struct {
	// Enabled enables or disables caching.
	Enabled bool `yaml:"enabled"`
}

// OutputConfig holds display preferences.
type OutputConfig struct {
	// Format is the default report format (text, tsv, json).
	Format string `yaml:"format"`
	// Color controls color output (auto, always, never).
	Color string `yaml:"color"`
	// Verbose enables verbose output.
	Verbose bool `yaml:"verbose"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Remote: RemoteConfig{},
		Paths: PathsConfig{
			FeaturesDir: "features",
			StagingDir:  filepath.Join(os.TempDir(), "featsync-staging"),
		},
		Sync: SyncConfig{
			FanOut:     5,
			HistoryMax: 1000,
			Extension:  ".feature",
			MergeTool:  "git",
		},
		Cache: CacheConfig{
			Enabled: true,
		},
		Output: OutputConfig{
			Format:  "text",
			Color:   "auto",
			Verbose: false,
		},
	}
}

// configFileName is the name of the config file.
const configFileName = "featsync.yaml"

// FilePath returns the path to the config file in the working directory,
// falling back to ~/.featsync/featsync.yaml.
func FilePath() string {
	if _, err := os.Stat(configFileName); err == nil {
		return configFileName
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return configFileName
	}
	return filepath.Join(home, ".featsync", configFileName)
}

// Load loads the configuration from file, merging with defaults. If the
// config file doesn't exist, returns default configuration with environment
// overrides applied.
func Load() (*Config, error) {
	return LoadFromPath(FilePath())
}

// LoadFromPath loads configuration from a specific path.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	// #nosec G304 - path is provided by caller or trusted config lookup
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvironment()
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.applyEnvironment()
	return cfg, nil
}

// Save writes the configuration to a specific path.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	// #nosec G306 - config file should be readable by user
	return os.WriteFile(path, data, 0o644)
}

// applyEnvironment applies environment variable overrides. Variables follow
// the pattern FEATSYNC_<SECTION>_<KEY>.
func (c *Config) applyEnvironment() {
	if v := os.Getenv("FEATSYNC_REMOTE_URL"); v != "" {
		c.Remote.URL = v
	}
	if v := os.Getenv("FEATSYNC_REMOTE_USERNAME"); v != "" {
		c.Remote.Username = v
	}
	if v := os.Getenv("FEATSYNC_REMOTE_TOKEN"); v != "" {
		c.Remote.Token = v
	}
	if v := os.Getenv("FEATSYNC_REMOTE_PRODUCTION"); v != "" {
		c.Remote.Production = parseBool(v)
	}

	if v := os.Getenv("FEATSYNC_PATHS_FEATURES_DIR"); v != "" {
		c.Paths.FeaturesDir = v
	}
	if v := os.Getenv("FEATSYNC_PATHS_STAGING_DIR"); v != "" {
		c.Paths.StagingDir = v
	}

	if v := os.Getenv("FEATSYNC_SYNC_FAN_OUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Sync.FanOut = n
		}
	}
	if v := os.Getenv("FEATSYNC_SYNC_MERGE_TOOL"); v != "" {
		c.Sync.MergeTool = v
	}

	if v := os.Getenv("FEATSYNC_CACHE_ENABLED"); v != "" {
		c.Cache.Enabled = parseBool(v)
	}

	if v := os.Getenv("FEATSYNC_OUTPUT_FORMAT"); v != "" {
		c.Output.Format = v
	}
	if v := os.Getenv("FEATSYNC_OUTPUT_COLOR"); v != "" {
		c.Output.Color = v
	}
	if v := os.Getenv("FEATSYNC_OUTPUT_VERBOSE"); v != "" {
		c.Output.Verbose = parseBool(v)
	}
}

// Validate checks the configuration for a sync run. Missing credentials are
// downgraded to demo substitutions outside a production context and reported
// through the returned flag; in production they are a hard failure.
func (c *Config) Validate() (demoApplied bool, err error) {
	if c.Paths.FeaturesDir == "" {
		return false, &errs.ConfigError{Field: "paths.features_dir", Message: "must not be empty"}
	}
	if c.Paths.StagingDir == "" {
		return false, &errs.ConfigError{Field: "paths.staging_dir", Message: "must not be empty"}
	}
	if c.Remote.URL == "" {
		return false, &errs.ConfigError{Field: "remote.url", Message: "must not be empty"}
	}

	if c.Remote.Username == "" || c.Remote.Token == "" {
		if c.Remote.Production {
			return false, &errs.ConfigError{
				Field:   "remote",
				Message: "credentials are required in a production context",
			}
		}
		if c.Remote.Username == "" {
			c.Remote.Username = DemoUsername
		}
		if c.Remote.Token == "" {
			c.Remote.Token = DemoToken
		}
		return true, nil
	}
	return false, nil
}

// parseBool parses a boolean from common string representations.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}
