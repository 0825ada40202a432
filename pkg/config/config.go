package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for pixdown.
type Config struct {
	// Pixiv account settings
	Pixiv PixivConfig `yaml:"pixiv" json:"pixiv"`

	// Illustration filter criteria
	Filter FilterConfig `yaml:"filter" json:"filter"`

	// Crawl pipeline settings
	Crawl CrawlConfig `yaml:"crawl" json:"crawl"`

	// Rate limiting configuration
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Download settings
	Download DownloadConfig `yaml:"download" json:"download"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// PixivConfig holds pixiv-specific configuration.
type PixivConfig struct {
	RefreshToken   string `yaml:"refresh_token" json:"refresh_token"`
	AcceptLanguage string `yaml:"accept_language" json:"accept_language"`
}

// FilterConfig holds the illustration filter criteria. A zero MinQuality
// means the quality rule is disabled.
type FilterConfig struct {
	MinBookmarks  int      `yaml:"min_bookmarks" json:"min_bookmarks"`
	MaxPageCount  int      `yaml:"max_page_count" json:"max_page_count"`
	MinQuality    float64  `yaml:"min_quality" json:"min_quality"`
	SexLevel      int      `yaml:"sex_level" json:"sex_level"`
	SkipArtistIDs []uint64 `yaml:"skip_artist_ids" json:"skip_artist_ids"`
	SkipIllustIDs []uint64 `yaml:"skip_illust_ids" json:"skip_illust_ids"`
}

// CrawlConfig holds crawl pipeline settings.
type CrawlConfig struct {
	// MaxItems bounds the working set per listing source (the top-K capacity
	// in best-of-N modes, the stop count otherwise).
	MaxItems int `yaml:"max_items" json:"max_items"`
	// TrustPopularOrder treats popularity-sorted delivery as already ranked,
	// truncating at MaxItems instead of heap-selecting. Never inferred from
	// the account's premium capability.
	TrustPopularOrder bool   `yaml:"trust_popular_order" json:"trust_popular_order"`
	KeepJSON          bool   `yaml:"keep_json" json:"keep_json"`
	StartDate         string `yaml:"start_date" json:"start_date"`
	EndDate           string `yaml:"end_date" json:"end_date"`
}

// RateLimitConfig holds rate limiting and pacing configuration.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
	// Jitter bounds for the randomized pause between page fetches, seconds.
	PageJitterMinSeconds int `yaml:"page_jitter_min_seconds" json:"page_jitter_min_seconds"`
	PageJitterMaxSeconds int `yaml:"page_jitter_max_seconds" json:"page_jitter_max_seconds"`
}

// DownloadConfig holds download-specific configuration.
type DownloadConfig struct {
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
	// Resolutions selects image tiers to download: any of "s", "m", "l", "o"
	// (square / medium / large / origin), e.g. "smo".
	Resolutions string `yaml:"resolutions" json:"resolutions"`
}

// OutputConfig holds output directory configuration.
type OutputConfig struct {
	BaseDirectory string `yaml:"base_directory" json:"base_directory"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Pixiv: PixivConfig{
			AcceptLanguage: "en-us",
		},
		Filter: FilterConfig{
			MinBookmarks: 3000,
			MaxPageCount: 10,
			MinQuality:   0,
			SexLevel:     2,
		},
		Crawl: CrawlConfig{
			MaxItems:  300,
			KeepJSON:  false,
			StartDate: "2016-01-01",
			EndDate:   "", // empty means today, resolved by the tag command
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute:    60,
			PageJitterMinSeconds: 1,
			PageJitterMaxSeconds: 4,
		},
		Download: DownloadConfig{
			Timeout:     60 * time.Second,
			Resolutions: "s",
		},
		Output: OutputConfig{
			BaseDirectory: "./pixdown",
		},
		Logging: LoggingConfig{
			Level: "warn",
		},
	}
}

// LoadFromEnv loads configuration from environment variables.
func (c *Config) LoadFromEnv() error {
	// PIXIV_TOKEN is the historical variable name, kept as a fallback.
	if token := os.Getenv("PIXDOWN_REFRESH_TOKEN"); token != "" {
		c.Pixiv.RefreshToken = token
	} else if token := os.Getenv("PIXIV_TOKEN"); token != "" {
		c.Pixiv.RefreshToken = token
	}

	if outputDir := os.Getenv("PIXDOWN_OUTPUT_DIR"); outputDir != "" {
		c.Output.BaseDirectory = outputDir
	}

	if rpm := os.Getenv("PIXDOWN_REQUESTS_PER_MINUTE"); rpm != "" {
		if val, err := strconv.Atoi(rpm); err == nil && val > 0 {
			c.RateLimit.RequestsPerMinute = val
		}
	}

	if bookmarks := os.Getenv("PIXDOWN_MIN_BOOKMARKS"); bookmarks != "" {
		if val, err := strconv.Atoi(bookmarks); err == nil && val >= 0 {
			c.Filter.MinBookmarks = val
		}
	}

	if logLevel := os.Getenv("PIXDOWN_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file.
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations.
func (c *Config) findConfigFile() string {
	locations := []string{
		".pixdown.yaml",
		".pixdown.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "pixdown", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "pixdown", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".pixdown.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []error

	if c.Filter.MinBookmarks < 0 {
		errs = append(errs, errors.New("min bookmarks cannot be negative"))
	}
	if c.Filter.MaxPageCount <= 0 {
		errs = append(errs, errors.New("max page count must be positive"))
	}
	if c.Filter.MinQuality < 0 {
		errs = append(errs, errors.New("min quality cannot be negative"))
	}

	if c.Crawl.MaxItems <= 0 {
		errs = append(errs, errors.New("max items must be positive"))
	}

	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}
	if c.RateLimit.PageJitterMinSeconds < 0 {
		errs = append(errs, errors.New("page jitter minimum cannot be negative"))
	}
	if c.RateLimit.PageJitterMaxSeconds < c.RateLimit.PageJitterMinSeconds {
		errs = append(errs, errors.New("page jitter maximum must not be below the minimum"))
	}

	if c.Download.Timeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}
	for _, r := range c.Download.Resolutions {
		switch r {
		case 's', 'm', 'l', 'o':
		default:
			errs = append(errs, fmt.Errorf("unknown resolution flag %q (expected s/m/l/o)", string(r)))
		}
	}

	if c.Output.BaseDirectory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if token, ok := flags["refresh-token"].(string); ok && token != "" {
		c.Pixiv.RefreshToken = token
	}
	if outputDir, ok := flags["output"].(string); ok && outputDir != "" {
		c.Output.BaseDirectory = outputDir
	}
	if bookmarks, ok := flags["min-bookmarks"].(int); ok && bookmarks >= 0 {
		c.Filter.MinBookmarks = bookmarks
	}
	if pages, ok := flags["max-pages"].(int); ok && pages > 0 {
		c.Filter.MaxPageCount = pages
	}
	if quality, ok := flags["min-quality"].(float64); ok && quality > 0 {
		c.Filter.MinQuality = quality
	}
	if level, ok := flags["sex-level"].(int); ok && level > 0 {
		c.Filter.SexLevel = level
	}
	if n, ok := flags["limit"].(int); ok && n > 0 {
		c.Crawl.MaxItems = n
	}
	if keep, ok := flags["keep-json"].(bool); ok {
		c.Crawl.KeepJSON = keep
	}
	if res, ok := flags["resolutions"].(string); ok && res != "" {
		c.Download.Resolutions = res
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence.
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".pixdown.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
