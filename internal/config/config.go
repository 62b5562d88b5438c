package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// NOTE: This file provides the configuration model and YAML-based
// load/save behavior, including first-run config creation and 0600
// permissions.

const (
	DefaultListen       = "127.0.0.1:8080"
	DefaultFeedURL      = "https://calendar.northeastern.edu/search/events.ics"
	DefaultTimezone     = "America/New_York"
	DefaultCacheTTL     = time.Hour
	DefaultFetchTimeout = 15 * time.Second
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "text"
)

// Duration is a time.Duration that reads and writes as a Go duration
// string ("1h", "15s") in YAML.
type Duration time.Duration

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	if s == "" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q: %w", node.Line, s, err)
	}
	*d = Duration(parsed)
	return nil
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the tool API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the tool API.
	Listen string `yaml:"listen" json:"listen"`

	// FeedURL is the ICS feed of the public event calendar.
	FeedURL string `yaml:"feed_url" json:"feed_url"`

	// Timezone is the IANA timezone that defines "today" and into which
	// event times are converted (e.g. "America/New_York").
	Timezone string `yaml:"timezone" json:"timezone"`

	// CacheTTL is how long a fetched feed is served before refetching.
	CacheTTL Duration `yaml:"cache_ttl" json:"cache_ttl"`

	// FetchTimeout bounds a single feed request.
	FetchTimeout Duration `yaml:"fetch_timeout" json:"fetch_timeout"`

	// MaxStaleness bounds how old a cached feed may be when served after
	// a failed refresh. Zero means stale data is served indefinitely.
	MaxStaleness Duration `yaml:"max_staleness" json:"max_staleness"`

	// RefreshCron is a cron-style schedule (e.g. "*/30 * * * *") for
	// refreshing the feed in the background. Empty disables it and the
	// feed is only fetched on demand.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// ExpandRecurrences adds RRULE occurrences to date-window queries.
	ExpandRecurrences bool `yaml:"expand_recurrences" json:"expand_recurrences"`

	LogLevel  string `yaml:"log_level" json:"log_level"`
	LogFormat string `yaml:"log_format" json:"log_format"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:       DefaultListen,
		FeedURL:      DefaultFeedURL,
		Timezone:     DefaultTimezone,
		CacheTTL:     Duration(DefaultCacheTTL),
		FetchTimeout: Duration(DefaultFetchTimeout),
		LogLevel:     DefaultLogLevel,
		LogFormat:    DefaultLogFormat,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.FeedURL == "" {
		c.FeedURL = DefaultFeedURL
	}
	if c.Timezone == "" {
		c.Timezone = DefaultTimezone
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = Duration(DefaultCacheTTL)
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = Duration(DefaultFetchTimeout)
	}
	if c.MaxStaleness < 0 {
		c.MaxStaleness = 0
	}
	switch c.LogFormat {
	case "text", "json":
		// ok
	default:
		c.LogFormat = DefaultLogFormat
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
}

// Location resolves Timezone, falling back to time.Local when the name is
// unknown.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local, err
	}
	return loc, nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".neucal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
