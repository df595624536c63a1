// Package config loads and validates the downloader configuration.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DatePlaceholder is the token in URL templates replaced by the run's date tag.
const DatePlaceholder = "{date}"

// Config holds all configuration for a download run
type Config struct {
	// Directory layout
	Paths PathsConfig `yaml:"paths" json:"paths"`

	// URL templates, each containing the {date} placeholder
	URLs URLConfig `yaml:"urls" json:"urls"`

	// Static HTTP headers attached to every request
	HTTP HTTPConfig `yaml:"http" json:"http"`

	// Minimum acceptable download sizes
	Validation ValidationConfig `yaml:"validation" json:"validation"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// PathsConfig holds the three working directories; all are created if absent.
type PathsConfig struct {
	Logs    string `yaml:"logs" json:"logs"`
	Staging string `yaml:"staging" json:"staging"`
	Output  string `yaml:"output" json:"output"`
}

// URLConfig holds the download URL templates. The standalone IN file has a
// primary (lowercase) and fallback (uppercase) URL.
type URLConfig struct {
	BQZip      string `yaml:"bq_zip" json:"bq_zip"`
	INTxtLower string `yaml:"in_txt_lower" json:"in_txt_lower"`
	INTxtUpper string `yaml:"in_txt_upper" json:"in_txt_upper"`
}

// HTTPConfig holds header values the session attaches to every request.
type HTTPConfig struct {
	UserAgent string `yaml:"user_agent" json:"user_agent"`
	Referer   string `yaml:"referer" json:"referer"`
}

// ValidationConfig holds the size sanity thresholds in bytes.
type ValidationConfig struct {
	MinZipBytes int64 `yaml:"min_zip_bytes" json:"min_zip_bytes"`
	MinINBytes  int64 `yaml:"min_in_bytes" json:"min_in_bytes"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `yaml:"level" json:"level"`
	Console bool   `yaml:"console" json:"console"`
}

// DefaultConfig returns a Config with sensible defaults. The URL templates
// have no usable default and must come from the config file.
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			Logs:    "./logs",
			Staging: "./staging",
			Output:  "./output",
		},
		HTTP: HTTPConfig{
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
			Referer:   "https://www.dibbs.bsm.dla.mil/",
		},
		Validation: ValidationConfig{
			MinZipBytes: 1024,
			MinINBytes:  1024,
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
		},
	}
}

// LoadFromFile loads configuration from a YAML file. A missing file is an
// error: the URL templates cannot be defaulted.
func (c *Config) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// LoadFromEnv overrides configuration from environment variables.
func (c *Config) LoadFromEnv() {
	if v := os.Getenv("DIBBSGET_LOGS_DIR"); v != "" {
		c.Paths.Logs = v
	}
	if v := os.Getenv("DIBBSGET_STAGING_DIR"); v != "" {
		c.Paths.Staging = v
	}
	if v := os.Getenv("DIBBSGET_OUTPUT_DIR"); v != "" {
		c.Paths.Output = v
	}
	if v := os.Getenv("DIBBSGET_USER_AGENT"); v != "" {
		c.HTTP.UserAgent = v
	}
	if v := os.Getenv("DIBBSGET_REFERER"); v != "" {
		c.HTTP.Referer = v
	}
	if v := os.Getenv("DIBBSGET_MIN_ZIP_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			c.Validation.MinZipBytes = n
		}
	}
	if v := os.Getenv("DIBBSGET_MIN_IN_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			c.Validation.MinINBytes = n
		}
	}
	if v := os.Getenv("DIBBSGET_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks the configuration once at load time and reports every
// missing or invalid field in a single aggregated error.
func (c *Config) Validate() error {
	var errs []error

	if c.Paths.Logs == "" {
		errs = append(errs, errors.New("paths.logs is required"))
	}
	if c.Paths.Staging == "" {
		errs = append(errs, errors.New("paths.staging is required"))
	}
	if c.Paths.Output == "" {
		errs = append(errs, errors.New("paths.output is required"))
	}

	errs = append(errs, validateTemplate("urls.bq_zip", c.URLs.BQZip)...)
	errs = append(errs, validateTemplate("urls.in_txt_lower", c.URLs.INTxtLower)...)
	errs = append(errs, validateTemplate("urls.in_txt_upper", c.URLs.INTxtUpper)...)

	if c.HTTP.UserAgent == "" {
		errs = append(errs, errors.New("http.user_agent is required"))
	}

	if c.Validation.MinZipBytes <= 0 {
		errs = append(errs, errors.New("validation.min_zip_bytes must be positive"))
	}
	if c.Validation.MinINBytes <= 0 {
		errs = append(errs, errors.New("validation.min_in_bytes must be positive"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Errorf("invalid log level %q", c.Logging.Level))
	}

	return errors.Join(errs...)
}

// validateTemplate checks that a URL template is present, parses as an
// absolute http(s) URL and carries the date placeholder.
func validateTemplate(key, tmpl string) []error {
	if tmpl == "" {
		return []error{fmt.Errorf("%s is required", key)}
	}

	var errs []error
	if !strings.Contains(tmpl, DatePlaceholder) {
		errs = append(errs, fmt.Errorf("%s must contain the %s placeholder", key, DatePlaceholder))
	}
	u, err := url.Parse(strings.ReplaceAll(tmpl, DatePlaceholder, "000000"))
	if err != nil {
		errs = append(errs, fmt.Errorf("%s is not a valid URL: %v", key, err))
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errs = append(errs, fmt.Errorf("%s must be an http(s) URL, got scheme %q", key, u.Scheme))
	}
	return errs
}

// ExpandURL substitutes the date tag into a URL template.
func ExpandURL(tmpl, dateTag string) string {
	return strings.ReplaceAll(tmpl, DatePlaceholder, dateTag)
}

// EnsureDirs creates the configured directories if they do not exist.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.Paths.Logs, c.Paths.Staging, c.Paths.Output} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// Load loads configuration with precedence: environment variables (including
// values from .env files) over the config file over defaults.
func Load(configPath string) (*Config, error) {
	// .env files are optional
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".dibbsget.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	config.LoadFromEnv()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
