package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env"
	"github.com/xhit/go-str2duration/v2"
	"gopkg.in/yaml.v3"

	"duesync/internal/fsutil"
)

// Source kinds.
const (
	SourceFile    = "file"
	SourceBrowser = "browser"
	SourceHTTP    = "http"
)

// Calendar kinds.
const (
	CalendarGoogle = "google"
	CalendarICS    = "ics"
)

const (
	defaultTimezone        = "Asia/Kolkata"
	defaultListen          = "127.0.0.1:8087"
	defaultDuplicateWindow = "1d"
	defaultMaxAge          = "1h"
	defaultPortalURL       = "https://dtu.bestbookbuddies.com/cgi-bin/koha/opac-user.pl"
	defaultSourceLabel     = "Library Checkouts"
	defaultTimeoutSec      = 60
)

// SourceConfig describes where due date records come from.
type SourceConfig struct {
	// Kind is one of "file", "browser" (headless Chromium) or "http".
	Kind string `yaml:"kind" json:"kind"`

	// Path is the intermediate JSON file written by scrapers and read by the
	// file source. CSVPath receives a flat export of every scraped row.
	Path    string `yaml:"path" json:"path"`
	CSVPath string `yaml:"csv_path" json:"csv_path"`

	// MaxAge is how long a scraped file is reused before scraping again
	// (e.g. "1h", "30m"). Only used by the scraping kinds.
	MaxAge string `yaml:"max_age" json:"max_age"`

	PortalURL string `yaml:"portal_url" json:"portal_url"`
	Label     string `yaml:"label" json:"label"`

	Username string `yaml:"username" json:"-" env:"DUESYNC_LIBRARY_USERNAME"`
	Password string `yaml:"password" json:"-" env:"DUESYNC_LIBRARY_PASSWORD"`

	TimeoutSec int `yaml:"timeout_sec" json:"timeout_sec"`
}

// CalendarConfig selects and configures the calendar gateway.
type CalendarConfig struct {
	// Kind is "google" or "ics".
	Kind string `yaml:"kind" json:"kind"`

	CalendarID      string `yaml:"calendar_id" json:"calendar_id"`
	CredentialsPath string `yaml:"credentials_path" json:"credentials_path" env:"DUESYNC_GOOGLE_CREDENTIALS"`
	TokenPath       string `yaml:"token_path" json:"token_path" env:"DUESYNC_GOOGLE_TOKEN"`

	// ICSPath is the calendar file used by the "ics" kind.
	ICSPath string `yaml:"ics_path" json:"ics_path"`
}

// NotifyConfig enables run summary notifications.
type NotifyConfig struct {
	SNSTopicARN string `yaml:"sns_topic_arn" json:"sns_topic_arn" env:"DUESYNC_SNS_TOPIC_ARN"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the status API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username" env:"DUESYNC_BASIC_AUTH_USER"`
	Password string `yaml:"password" json:"password" env:"DUESYNC_BASIC_AUTH_PASSWORD"`
}

// Config is the top-level application configuration.
type Config struct {
	// Timezone is the IANA zone events are created in and date-only due
	// dates are resolved in.
	Timezone string `yaml:"timezone" json:"timezone"`

	// UpdateExisting rewrites events that already exist instead of skipping them.
	UpdateExisting bool `yaml:"update_existing" json:"update_existing"`

	// DuplicateWindow is the half-width of the calendar query used for
	// duplicate detection, e.g. "1d" or "36h".
	DuplicateWindow string `yaml:"duplicate_window" json:"duplicate_window"`

	// Schedule is a cron spec ("0 8 * * *"). Empty means run once and exit.
	Schedule string `yaml:"schedule" json:"schedule"`

	// Listen is the status API address used in scheduled mode.
	Listen string `yaml:"listen" json:"listen"`

	LogLevel  string `yaml:"log_level" json:"log_level"`
	LogFormat string `yaml:"log_format" json:"log_format"`

	Source   SourceConfig   `yaml:"source" json:"source"`
	Calendar CalendarConfig `yaml:"calendar" json:"calendar"`
	Notify   NotifyConfig   `yaml:"notify" json:"notify"`

	// BasicAuth, if non-nil, protects every status endpoint except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Timezone:        defaultTimezone,
		UpdateExisting:  false,
		DuplicateWindow: defaultDuplicateWindow,
		Listen:          defaultListen,
		LogLevel:        "info",
		LogFormat:       "text",
		Source: SourceConfig{
			Kind:       SourceFile,
			Path:       "./library_due_dates.json",
			CSVPath:    "./library_books.csv",
			MaxAge:     defaultMaxAge,
			PortalURL:  defaultPortalURL,
			Label:      defaultSourceLabel,
			TimeoutSec: defaultTimeoutSec,
		},
		Calendar: CalendarConfig{
			Kind:            CalendarGoogle,
			CalendarID:      "primary",
			CredentialsPath: "./credentials.json",
			TokenPath:       "./token.json",
			ICSPath:         "./duesync.ics",
		},
	}
}

// Normalize fills in missing/zero values with defaults so that partially
// filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()

	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.DuplicateWindow == "" {
		c.DuplicateWindow = def.DuplicateWindow
	}
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = def.LogFormat
	}

	c.Source.Kind = strings.ToLower(strings.TrimSpace(c.Source.Kind))
	switch c.Source.Kind {
	case SourceFile, SourceBrowser, SourceHTTP:
	default:
		c.Source.Kind = def.Source.Kind
	}
	if c.Source.Path == "" {
		c.Source.Path = def.Source.Path
	}
	if c.Source.CSVPath == "" {
		c.Source.CSVPath = def.Source.CSVPath
	}
	if c.Source.MaxAge == "" {
		c.Source.MaxAge = def.Source.MaxAge
	}
	if c.Source.PortalURL == "" {
		c.Source.PortalURL = def.Source.PortalURL
	}
	if c.Source.Label == "" {
		c.Source.Label = def.Source.Label
	}
	if c.Source.TimeoutSec <= 0 {
		c.Source.TimeoutSec = def.Source.TimeoutSec
	}

	c.Calendar.Kind = strings.ToLower(strings.TrimSpace(c.Calendar.Kind))
	switch c.Calendar.Kind {
	case CalendarGoogle, CalendarICS:
	default:
		c.Calendar.Kind = def.Calendar.Kind
	}
	if c.Calendar.CalendarID == "" {
		c.Calendar.CalendarID = def.Calendar.CalendarID
	}
	if c.Calendar.CredentialsPath == "" {
		c.Calendar.CredentialsPath = def.Calendar.CredentialsPath
	}
	if c.Calendar.TokenPath == "" {
		c.Calendar.TokenPath = def.Calendar.TokenPath
	}
	if c.Calendar.ICSPath == "" {
		c.Calendar.ICSPath = def.Calendar.ICSPath
	}
}

// Validate checks values that Normalize cannot repair.
func (c *Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := c.Window(); err != nil {
		return err
	}
	if _, err := c.SourceMaxAge(); err != nil {
		return err
	}
	if c.Source.Kind != SourceFile && (c.Source.Username == "" || c.Source.Password == "") {
		return fmt.Errorf("source %q requires library credentials", c.Source.Kind)
	}
	return nil
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Window parses DuplicateWindow.
func (c *Config) Window() (time.Duration, error) {
	return parsePositiveDuration("duplicate_window", c.DuplicateWindow)
}

// SourceMaxAge parses Source.MaxAge.
func (c *Config) SourceMaxAge() (time.Duration, error) {
	return parsePositiveDuration("source.max_age", c.Source.MaxAge)
}

// SourceTimeout is the upper bound for a single scrape.
func (c *Config) SourceTimeout() time.Duration {
	return time.Duration(c.Source.TimeoutSec) * time.Second
}

func parsePositiveDuration(key, s string) (time.Duration, error) {
	d, err := str2duration.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be positive", key, s)
	}
	return d, nil
}

// ApplyEnv overlays secrets from the environment. Unset variables leave the
// file values untouched.
func (c *Config) ApplyEnv() error {
	if err := env.Parse(&c.Source); err != nil {
		return fmt.Errorf("parse source env: %w", err)
	}
	if err := env.Parse(&c.Calendar); err != nil {
		return fmt.Errorf("parse calendar env: %w", err)
	}
	if err := env.Parse(&c.Notify); err != nil {
		return fmt.Errorf("parse notify env: %w", err)
	}

	auth := BasicAuthConfig{}
	if c.BasicAuth != nil {
		auth = *c.BasicAuth
	}
	if err := env.Parse(&auth); err != nil {
		return fmt.Errorf("parse basic auth env: %w", err)
	}
	if auth.Username != "" || auth.Password != "" {
		c.BasicAuth = &auth
	}
	return nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - If the file exists, it is unmarshalled and normalized.
//
// Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, cfg.ApplyEnv()
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
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

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(path, data)
}

// Save is a convenience method delegating to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
