package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauern/featsync/internal/errs"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Paths.FeaturesDir != "features" {
		t.Errorf("FeaturesDir = %q, want %q", cfg.Paths.FeaturesDir, "features")
	}
	if cfg.Sync.FanOut != 5 {
		t.Errorf("FanOut = %d, want 5", cfg.Sync.FanOut)
	}
	if cfg.Sync.Extension != ".feature" {
		t.Errorf("Extension = %q, want %q", cfg.Sync.Extension, ".feature")
	}
	if cfg.Sync.MergeTool != "git" {
		t.Errorf("MergeTool = %q, want %q", cfg.Sync.MergeTool, "git")
	}
	if !cfg.Cache.Enabled {
		t.Error("Cache.Enabled = false, want true")
	}
	if cfg.Output.Format != "text" || cfg.Output.Color != "auto" {
		t.Errorf("Output = %+v, want text/auto", cfg.Output)
	}
}

func TestLoadFromPathMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if cfg.Sync.FanOut != 5 {
		t.Errorf("FanOut = %d, want default 5", cfg.Sync.FanOut)
	}
}

func TestLoadFromPathMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "featsync.yaml")
	content := `remote:
  url: /srv/features
  username: sync-bot
sync:
  fan_out: 10
output:
  verbose: true
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Remote.URL != "/srv/features" {
		t.Errorf("URL = %q, want /srv/features", cfg.Remote.URL)
	}
	if cfg.Sync.FanOut != 10 {
		t.Errorf("FanOut = %d, want 10", cfg.Sync.FanOut)
	}
	if !cfg.Output.Verbose {
		t.Error("Verbose = false, want true")
	}
	// Untouched sections keep defaults.
	if cfg.Sync.Extension != ".feature" {
		t.Errorf("Extension = %q, want default", cfg.Sync.Extension)
	}
}

func TestLoadFromPathInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("remote: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromPath(path); err == nil {
		t.Error("expected an error for malformed YAML")
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("FEATSYNC_REMOTE_URL", "/env/features")
	t.Setenv("FEATSYNC_REMOTE_PRODUCTION", "true")
	t.Setenv("FEATSYNC_SYNC_FAN_OUT", "8")
	t.Setenv("FEATSYNC_CACHE_ENABLED", "no")

	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Remote.URL != "/env/features" {
		t.Errorf("URL = %q, want /env/features", cfg.Remote.URL)
	}
	if !cfg.Remote.Production {
		t.Error("Production = false, want true")
	}
	if cfg.Sync.FanOut != 8 {
		t.Errorf("FanOut = %d, want 8", cfg.Sync.FanOut)
	}
	if cfg.Cache.Enabled {
		t.Error("Cache.Enabled = true, want false")
	}
}

func TestEnvironmentIgnoresInvalidFanOut(t *testing.T) {
	t.Setenv("FEATSYNC_SYNC_FAN_OUT", "not-a-number")

	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Sync.FanOut != 5 {
		t.Errorf("FanOut = %d, want default 5", cfg.Sync.FanOut)
	}
}

func TestValidateDemoSubstitution(t *testing.T) {
	cfg := Default()
	cfg.Remote.URL = "/srv/features"

	demo, err := cfg.Validate()
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if !demo {
		t.Error("demoApplied = false, want true")
	}
	if cfg.Remote.Username != DemoUsername || cfg.Remote.Token != DemoToken {
		t.Errorf("credentials = %q/%q, want demo substitution", cfg.Remote.Username, cfg.Remote.Token)
	}
}

func TestValidateProductionRequiresCredentials(t *testing.T) {
	cfg := Default()
	cfg.Remote.URL = "/srv/features"
	cfg.Remote.Production = true

	_, err := cfg.Validate()
	if err == nil {
		t.Fatal("expected an error for missing production credentials")
	}
	var ce *errs.ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("error type = %T, want *errs.ConfigError", err)
	}
	if ce.Field != "remote" {
		t.Errorf("Field = %q, want %q", ce.Field, "remote")
	}
}

func TestValidateCompleteCredentialsPass(t *testing.T) {
	cfg := Default()
	cfg.Remote.URL = "/srv/features"
	cfg.Remote.Username = "bot"
	cfg.Remote.Token = "secret"
	cfg.Remote.Production = true

	demo, err := cfg.Validate()
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if demo {
		t.Error("demoApplied = true, want false")
	}
}

func TestValidateMissingFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"empty features dir", func(c *Config) { c.Paths.FeaturesDir = "" }, "paths.features_dir"},
		{"empty staging dir", func(c *Config) { c.Paths.StagingDir = "" }, "paths.staging_dir"},
		{"empty remote url", func(c *Config) { c.Remote.URL = "" }, "remote.url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Remote.URL = "/srv/features"
			tt.mutate(cfg)

			_, err := cfg.Validate()
			var ce *errs.ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("error = %v, want *errs.ConfigError", err)
			}
			if ce.Field != tt.field {
				t.Errorf("Field = %q, want %q", ce.Field, tt.field)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "featsync.yaml")

	cfg := Default()
	cfg.Remote.URL = "/srv/features"
	cfg.Sync.FanOut = 12
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if loaded.Remote.URL != "/srv/features" || loaded.Sync.FanOut != 12 {
		t.Errorf("round trip lost values: %+v", loaded)
	}
}
