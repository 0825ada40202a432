package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Filter.MinBookmarks != 3000 {
		t.Errorf("Expected min bookmarks 3000, got %d", cfg.Filter.MinBookmarks)
	}
	if cfg.Filter.MaxPageCount != 10 {
		t.Errorf("Expected max page count 10, got %d", cfg.Filter.MaxPageCount)
	}
	if cfg.Filter.SexLevel != 2 {
		t.Errorf("Expected sex level 2, got %d", cfg.Filter.SexLevel)
	}
	if cfg.Crawl.MaxItems != 300 {
		t.Errorf("Expected max items 300, got %d", cfg.Crawl.MaxItems)
	}
	if cfg.Crawl.StartDate != "2016-01-01" {
		t.Errorf("Expected start date 2016-01-01, got %s", cfg.Crawl.StartDate)
	}
	if cfg.RateLimit.RequestsPerMinute != 60 {
		t.Errorf("Expected 60 rpm, got %d", cfg.RateLimit.RequestsPerMinute)
	}
	if cfg.RateLimit.PageJitterMinSeconds != 1 || cfg.RateLimit.PageJitterMaxSeconds != 4 {
		t.Errorf("Expected jitter 1-4s, got %d-%d",
			cfg.RateLimit.PageJitterMinSeconds, cfg.RateLimit.PageJitterMaxSeconds)
	}
	if cfg.Download.Resolutions != "s" {
		t.Errorf("Expected default resolutions s, got %q", cfg.Download.Resolutions)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config must validate: %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative bookmarks", func(c *Config) { c.Filter.MinBookmarks = -1 }},
		{"zero page count", func(c *Config) { c.Filter.MaxPageCount = 0 }},
		{"zero max items", func(c *Config) { c.Crawl.MaxItems = 0 }},
		{"zero rpm", func(c *Config) { c.RateLimit.RequestsPerMinute = 0 }},
		{"inverted jitter", func(c *Config) {
			c.RateLimit.PageJitterMinSeconds = 5
			c.RateLimit.PageJitterMaxSeconds = 2
		}},
		{"unknown resolution", func(c *Config) { c.Download.Resolutions = "sx" }},
		{"empty output dir", func(c *Config) { c.Output.BaseDirectory = "" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := DefaultConfig()
			test.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected a validation error")
			}
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PIXDOWN_REFRESH_TOKEN", "env-token")
	t.Setenv("PIXDOWN_OUTPUT_DIR", "/tmp/pix")
	t.Setenv("PIXDOWN_REQUESTS_PER_MINUTE", "30")
	t.Setenv("PIXDOWN_MIN_BOOKMARKS", "500")

	cfg := DefaultConfig()
	if err := cfg.LoadFromEnv(); err != nil {
		t.Fatal(err)
	}

	if cfg.Pixiv.RefreshToken != "env-token" {
		t.Errorf("Expected env token, got %q", cfg.Pixiv.RefreshToken)
	}
	if cfg.Output.BaseDirectory != "/tmp/pix" {
		t.Errorf("Expected env output dir, got %q", cfg.Output.BaseDirectory)
	}
	if cfg.RateLimit.RequestsPerMinute != 30 {
		t.Errorf("Expected 30 rpm, got %d", cfg.RateLimit.RequestsPerMinute)
	}
	if cfg.Filter.MinBookmarks != 500 {
		t.Errorf("Expected 500 bookmarks, got %d", cfg.Filter.MinBookmarks)
	}
}

func TestLoadFromEnvLegacyTokenName(t *testing.T) {
	t.Setenv("PIXDOWN_REFRESH_TOKEN", "")
	t.Setenv("PIXIV_TOKEN", "legacy-token")

	cfg := DefaultConfig()
	if err := cfg.LoadFromEnv(); err != nil {
		t.Fatal(err)
	}
	if cfg.Pixiv.RefreshToken != "legacy-token" {
		t.Errorf("Expected the legacy variable to be honored, got %q", cfg.Pixiv.RefreshToken)
	}
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeCommandLineFlags(map[string]interface{}{
		"min-bookmarks": 1000,
		"max-pages":     5,
		"limit":         50,
		"keep-json":     true,
		"resolutions":   "smo",
		"sex-level":     3,
	})

	if cfg.Filter.MinBookmarks != 1000 {
		t.Errorf("Expected 1000 bookmarks, got %d", cfg.Filter.MinBookmarks)
	}
	if cfg.Filter.MaxPageCount != 5 {
		t.Errorf("Expected 5 pages, got %d", cfg.Filter.MaxPageCount)
	}
	if cfg.Crawl.MaxItems != 50 {
		t.Errorf("Expected limit 50, got %d", cfg.Crawl.MaxItems)
	}
	if !cfg.Crawl.KeepJSON {
		t.Error("Expected keep-json to be enabled")
	}
	if cfg.Download.Resolutions != "smo" {
		t.Errorf("Expected resolutions smo, got %q", cfg.Download.Resolutions)
	}
	if cfg.Filter.SexLevel != 3 {
		t.Errorf("Expected sex level 3, got %d", cfg.Filter.SexLevel)
	}
}

func TestSaveAndLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	original := DefaultConfig()
	original.Filter.MinBookmarks = 777
	original.Crawl.TrustPopularOrder = true
	if err := original.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded := DefaultConfig()
	if err := loaded.LoadFromFile(path); err != nil {
		t.Fatal(err)
	}
	if loaded.Filter.MinBookmarks != 777 {
		t.Errorf("Expected 777 bookmarks, got %d", loaded.Filter.MinBookmarks)
	}
	if !loaded.Crawl.TrustPopularOrder {
		t.Error("Expected trust_popular_order to survive the round trip")
	}
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.LoadFromFile(""); err != nil {
		t.Errorf("A missing default config file must not fail: %v", err)
	}

	if err := cfg.LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("An explicitly named missing file must fail")
	}
}

func TestLoadPrecedence(t *testing.T) {
	// File says 100, env says 200, flags say 300: flags win.
	path := filepath.Join(t.TempDir(), "config.yaml")
	fileCfg := DefaultConfig()
	fileCfg.Filter.MinBookmarks = 100
	if err := fileCfg.Save(path); err != nil {
		t.Fatal(err)
	}

	t.Setenv("PIXDOWN_MIN_BOOKMARKS", "200")

	cfg, err := Load(path, map[string]interface{}{"min-bookmarks": 300})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Filter.MinBookmarks != 300 {
		t.Errorf("Expected flags to win, got %d", cfg.Filter.MinBookmarks)
	}

	// Without the flag, env wins over the file.
	cfg, err = Load(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Filter.MinBookmarks != 200 {
		t.Errorf("Expected env to win over the file, got %d", cfg.Filter.MinBookmarks)
	}

	_ = os.Unsetenv("PIXDOWN_MIN_BOOKMARKS")
}
