package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// NOTE: This file provides the configuration model and full YAML-based
// load/save behavior, including first-run config creation and 0600
// permissions. Environment variables (TZCAL_*) override file values.

const (
	defaultListen  = "127.0.0.1:8080"
	defaultHome    = "America/Bogota"
	defaultWork    = "America/Chicago"
	defaultRefresh = "@daily"

	BackendTZDB = "tzdb"
	BackendAPI  = "api"
	BackendICS  = "ics"

	defaultICSURL    = "https://www.tzurl.org/zoneinfo-outlook/{zone}"
	defaultCacheSize = 256
	defaultCacheTTL  = 24 * time.Hour
)

// LookupConfig selects where timezone descriptors come from.
type LookupConfig struct {
	// Backend is one of "tzdb" (Go tz database, default), "api" (remote
	// timezone service) or "ics" (VTIMEZONE feeds).
	Backend string `yaml:"backend" json:"backend"`
	// APIURL is the base URL of the remote timezone service.
	APIURL string `yaml:"api_url" json:"api_url"`
	// ICSURL is a URL template for VTIMEZONE feeds; {zone} is replaced by the IANA name.
	ICSURL string `yaml:"ics_url" json:"ics_url"`
	// CacheDir stores fetched VTIMEZONE bodies with their ETag metadata.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`
}

// CacheConfig controls memoization of computed calendars.
type CacheConfig struct {
	// Size bounds the in-memory cache entries.
	Size int `yaml:"size" json:"size"`
	// RedisAddr, if set, stores computed calendars in Redis instead.
	RedisAddr string        `yaml:"redis_addr" json:"redis_addr"`
	RedisDB   int           `yaml:"redis_db" json:"redis_db"`
	TTL       time.Duration `yaml:"ttl" json:"ttl"`
}

// CaptureConfig holds viewport parameters for the PNG capture.
type CaptureConfig struct {
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the Web UI and API.
	Listen string `yaml:"listen" json:"listen"`

	// Home is the IANA zone the user lives in. It is the reference frame:
	// all transition dates are expressed as home dates.
	Home string `yaml:"home" json:"home"`

	// Work is the IANA zone of the place being called.
	Work string `yaml:"work" json:"work"`

	// Year is the calendar year to compute; 0 means the current year.
	Year int `yaml:"year" json:"year"`

	// Palette is the ordered list of class labels for distinct offsets.
	Palette []string `yaml:"palette" json:"palette"`

	// RefreshCron is a cron-style schedule string used to drop memoized
	// calendars so that year rollover and new DST data are picked up.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	Lookup  LookupConfig  `yaml:"lookup" json:"lookup"`
	Cache   CacheConfig   `yaml:"cache" json:"cache"`
	Capture CaptureConfig `yaml:"capture" json:"capture"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	c := &Config{}
	c.Normalize()
	return c
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Home == "" {
		c.Home = defaultHome
	}
	if c.Work == "" {
		c.Work = defaultWork
	}
	if len(c.Palette) == 0 {
		c.Palette = []string{"first", "second", "third"}
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefresh
	}
	c.Lookup.Backend = strings.ToLower(strings.TrimSpace(c.Lookup.Backend))
	if c.Lookup.Backend == "" {
		c.Lookup.Backend = BackendTZDB
	}
	if c.Lookup.ICSURL == "" {
		c.Lookup.ICSURL = defaultICSURL
	}
	if c.Lookup.CacheDir == "" {
		c.Lookup.CacheDir = "./var/tz-cache"
	}
	if c.Cache.Size <= 0 {
		c.Cache.Size = defaultCacheSize
	}
	if c.Cache.TTL <= 0 {
		c.Cache.TTL = defaultCacheTTL
	}
}

// Validate reports every problem in the configuration at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	zones := []struct{ field, zone string }{{"home", c.Home}, {"work", c.Work}}
	for _, z := range zones {
		if _, err := time.LoadLocation(z.zone); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: unknown timezone %q", z.field, z.zone))
		}
	}
	if c.Year < 0 || c.Year > 9999 {
		result = multierror.Append(result, fmt.Errorf("year: %d out of range", c.Year))
	}
	if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
		result = multierror.Append(result, fmt.Errorf("refresh: %w", err))
	}
	switch c.Lookup.Backend {
	case BackendTZDB, BackendICS:
	case BackendAPI:
		if c.Lookup.APIURL == "" {
			result = multierror.Append(result, errors.New("lookup.api_url: required for the api backend"))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("lookup.backend: unsupported value %q", c.Lookup.Backend))
	}
	seen := make(map[string]bool, len(c.Palette))
	for _, p := range c.Palette {
		if p == "" || strings.Contains(p, "_") {
			result = multierror.Append(result, fmt.Errorf("palette: invalid label %q", p))
		}
		if seen[p] {
			result = multierror.Append(result, fmt.Errorf("palette: duplicate label %q", p))
		}
		seen[p] = true
	}

	return result.ErrorOrNil()
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - A .env file next to the working directory is loaded first, if present.
//   - If the config file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - TZCAL_* environment variables override file values
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}
	// Missing .env is the normal case.
	_ = godotenv.Load()

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// First run: create default config file.
		def := DefaultConfig()
		if err := Save(path, def); err != nil {
			// Even if save fails, return cfg with error so caller can decide.
			return def, err
		}
		cfg = *def
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// applyEnv overrides fields from TZCAL_* variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("TZCAL_LISTEN", &c.Listen)
	str("TZCAL_HOME", &c.Home)
	str("TZCAL_WORK", &c.Work)
	str("TZCAL_REFRESH", &c.RefreshCron)
	str("TZCAL_LOOKUP_BACKEND", &c.Lookup.Backend)
	str("TZCAL_LOOKUP_API_URL", &c.Lookup.APIURL)
	str("TZCAL_REDIS_ADDR", &c.Cache.RedisAddr)

	if v, ok := lookup("TZCAL_YEAR"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("TZCAL_YEAR: %w", err)
		}
		c.Year = n
	}
	if v, ok := lookup("TZCAL_PALETTE"); ok && v != "" {
		c.Palette = strings.Split(v, ",")
	}
	if u, ok := lookup("TZCAL_BASIC_AUTH_USER"); ok && u != "" {
		p, _ := lookup("TZCAL_BASIC_AUTH_PASSWORD")
		c.BasicAuth = &BasicAuthConfig{Username: u, Password: p}
	}
	return nil
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

	tmp, err := os.CreateTemp(dir, ".tzcal-config-*.tmp")
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
