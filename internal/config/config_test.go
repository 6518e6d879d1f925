package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, defaultListen, cfg.Listen)
	assert.Equal(t, "America/Bogota", cfg.Home)
	assert.Equal(t, "America/Chicago", cfg.Work)
	assert.Equal(t, BackendTZDB, cfg.Lookup.Backend)
	assert.Equal(t, []string{"first", "second", "third"}, cfg.Palette)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoadReadsYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `listen: 0.0.0.0:9000
home: Pacific/Auckland
work: America/Chicago
year: 2024
palette: [green, blue]
refresh: "0 3 * * *"
lookup:
  backend: ICS
cache:
  size: 10
  ttl: 1h
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.Listen)
	assert.Equal(t, "Pacific/Auckland", cfg.Home)
	assert.Equal(t, 2024, cfg.Year)
	assert.Equal(t, []string{"green", "blue"}, cfg.Palette)
	assert.Equal(t, "0 3 * * *", cfg.RefreshCron)
	assert.Equal(t, BackendICS, cfg.Lookup.Backend)
	assert.Equal(t, defaultICSURL, cfg.Lookup.ICSURL)
	assert.Equal(t, 10, cfg.Cache.Size)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	assert.NoError(t, cfg.Validate())
}

func TestLoadEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv("TZCAL_HOME", "Asia/Bangkok")
	t.Setenv("TZCAL_YEAR", "2030")
	t.Setenv("TZCAL_PALETTE", "a,b,c,d")
	t.Setenv("TZCAL_BASIC_AUTH_USER", "admin")
	t.Setenv("TZCAL_BASIC_AUTH_PASSWORD", "secret")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Asia/Bangkok", cfg.Home)
	assert.Equal(t, 2030, cfg.Year)
	assert.Equal(t, []string{"a", "b", "c", "d"}, cfg.Palette)
	require.NotNil(t, cfg.BasicAuth)
	assert.Equal(t, "admin", cfg.BasicAuth.Username)
	assert.Equal(t, "secret", cfg.BasicAuth.Password)
}

func TestLoadRejectsBadYear(t *testing.T) {
	t.Setenv("TZCAL_YEAR", "next")
	_, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr []string
	}{
		{"defaults", func(*Config) {}, nil},
		{"unknown zone", func(c *Config) { c.Home = "Mars/Olympus" }, []string{"home"}},
		{"bad cron", func(c *Config) { c.RefreshCron = "every day" }, []string{"refresh"}},
		{"api without url", func(c *Config) { c.Lookup.Backend = BackendAPI }, []string{"lookup.api_url"}},
		{"bad backend", func(c *Config) { c.Lookup.Backend = "carrier-pigeon" }, []string{"lookup.backend"}},
		{"palette label with separator", func(c *Config) { c.Palette = []string{"a_b"} }, []string{"palette"}},
		{
			name: "several problems at once",
			mutate: func(c *Config) {
				c.Work = "Nowhere"
				c.Year = -1
				c.Palette = []string{"x", "x"}
			},
			wantErr: []string{"work", "year", "duplicate"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if len(tt.wantErr) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, want := range tt.wantErr {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}

func TestValidateReportsZonesInFieldOrder(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Home = "Mars/Olympus"
	cfg.Work = "Venus/Maat"

	for range 20 {
		err := cfg.Validate()
		require.Error(t, err)
		msg := err.Error()
		home, work := strings.Index(msg, "home: "), strings.Index(msg, "work: ")
		require.NotEqual(t, -1, home)
		require.NotEqual(t, -1, work)
		assert.Less(t, home, work)
	}
}
