package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	c := DefaultConfig()
	c.URLs = URLConfig{
		BQZip:      "https://dibbs2.bsm.dla.mil/Downloads/RFQ/Archive/bq{date}.zip",
		INTxtLower: "https://dibbs2.bsm.dla.mil/Downloads/RFQ/in{date}.txt",
		INTxtUpper: "https://dibbs2.bsm.dla.mil/Downloads/RFQ/IN{date}.TXT",
	}
	return c
}

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()

	assert.Equal(t, "./logs", c.Paths.Logs)
	assert.Equal(t, "./staging", c.Paths.Staging)
	assert.Equal(t, "./output", c.Paths.Output)
	assert.Equal(t, int64(1024), c.Validation.MinZipBytes)
	assert.Equal(t, int64(1024), c.Validation.MinINBytes)
	assert.Equal(t, "info", c.Logging.Level)
	assert.NotEmpty(t, c.HTTP.UserAgent)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `
paths:
  logs: /srv/dibbs/logs
  staging: /srv/dibbs/staging
  output: /srv/dibbs/output
urls:
  bq_zip: "https://example.com/archive/bq{date}.zip"
  in_txt_lower: "https://example.com/in{date}.txt"
  in_txt_upper: "https://example.com/IN{date}.TXT"
http:
  user_agent: "test-agent"
  referer: "https://example.com/"
validation:
  min_zip_bytes: 1000
  min_in_bytes: 500
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	c := DefaultConfig()
	require.NoError(t, c.LoadFromFile(path))

	assert.Equal(t, "/srv/dibbs/logs", c.Paths.Logs)
	assert.Equal(t, "https://example.com/archive/bq{date}.zip", c.URLs.BQZip)
	assert.Equal(t, "test-agent", c.HTTP.UserAgent)
	assert.Equal(t, int64(1000), c.Validation.MinZipBytes)
	assert.Equal(t, int64(500), c.Validation.MinINBytes)
	assert.Equal(t, "debug", c.Logging.Level)
}

func TestLoadFromFileMissing(t *testing.T) {
	c := DefaultConfig()
	err := c.LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DIBBSGET_OUTPUT_DIR", "/tmp/dibbs-out")
	t.Setenv("DIBBSGET_MIN_ZIP_BYTES", "4096")
	t.Setenv("DIBBSGET_LOG_LEVEL", "warn")

	c := DefaultConfig()
	c.LoadFromEnv()

	assert.Equal(t, "/tmp/dibbs-out", c.Paths.Output)
	assert.Equal(t, int64(4096), c.Validation.MinZipBytes)
	assert.Equal(t, "warn", c.Logging.Level)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing zip url",
			mutate:  func(c *Config) { c.URLs.BQZip = "" },
			wantErr: "urls.bq_zip is required",
		},
		{
			name:    "missing placeholder",
			mutate:  func(c *Config) { c.URLs.INTxtLower = "https://example.com/in.txt" },
			wantErr: "must contain the {date} placeholder",
		},
		{
			name:    "non http scheme",
			mutate:  func(c *Config) { c.URLs.INTxtUpper = "ftp://example.com/IN{date}.TXT" },
			wantErr: "must be an http(s) URL",
		},
		{
			name:    "zero threshold",
			mutate:  func(c *Config) { c.Validation.MinZipBytes = 0 },
			wantErr: "min_zip_bytes must be positive",
		},
		{
			name:    "negative threshold",
			mutate:  func(c *Config) { c.Validation.MinINBytes = -1 },
			wantErr: "min_in_bytes must be positive",
		},
		{
			name:    "empty staging",
			mutate:  func(c *Config) { c.Paths.Staging = "" },
			wantErr: "paths.staging is required",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "loud" },
			wantErr: "invalid log level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateAggregatesAllProblems(t *testing.T) {
	c := validConfig()
	c.URLs.BQZip = ""
	c.Validation.MinZipBytes = 0
	c.Paths.Output = ""

	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "urls.bq_zip is required")
	assert.Contains(t, err.Error(), "min_zip_bytes must be positive")
	assert.Contains(t, err.Error(), "paths.output is required")
}

func TestExpandURL(t *testing.T) {
	got := ExpandURL("https://example.com/archive/bq{date}.zip", "250903")
	assert.Equal(t, "https://example.com/archive/bq250903.zip", got)
}

func TestEnsureDirs(t *testing.T) {
	dir := t.TempDir()
	c := validConfig()
	c.Paths.Logs = filepath.Join(dir, "logs")
	c.Paths.Staging = filepath.Join(dir, "staging", "nested")
	c.Paths.Output = filepath.Join(dir, "output")

	require.NoError(t, c.EnsureDirs())

	for _, d := range []string{c.Paths.Logs, c.Paths.Staging, c.Paths.Output} {
		info, err := os.Stat(d)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}
