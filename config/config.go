// Package config handles database configuration: a YAML file, environment
// overrides and .env loading.
package config

import (
	"bufio"
	"bytes"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultCacheTTL keeps query caches until they are explicitly refreshed.
const DefaultCacheTTL = 100 * 52 * 7 * 24 * time.Hour

// settingRe matches DuckDB setting names.
var settingRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Config holds the configuration of a Database and its query caches.
type Config struct {
	Path       string            `yaml:"path"`       // database file; empty or ":memory:" for in-memory
	ReadOnly   bool              `yaml:"read_only"`  // open the file in READ_ONLY access mode
	Settings   map[string]string `yaml:"settings"`   // DuckDB settings passed on open (threads, memory_limit, ...)
	Extensions []string          `yaml:"extensions"` // extensions installed and loaded after open
	LogLevel   string            `yaml:"log_level"`  // debug, info, warn, error (default "info")

	CacheDir string        `yaml:"cache_dir"` // root directory of parquet query caches
	CacheTTL time.Duration `yaml:"cache_ttl"` // maximum age of a reusable cache file

	// S3 fields are optional; nil when not configured.
	S3KeyID    *string `yaml:"s3_key_id"`
	S3Secret   *string `yaml:"s3_secret"`
	S3Endpoint *string `yaml:"s3_endpoint"`
	S3Region   *string `yaml:"s3_region"`
	S3URLStyle *string `yaml:"s3_url_style"`
}

// Default returns the configuration of an in-memory database.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads the YAML file at path (skipped when path is empty), applies
// DUCKREL_* environment overrides and fills in defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // path is caller-controlled
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv builds a configuration from environment variables only.
func LoadFromEnv() (*Config, error) {
	return Load("")
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("DUCKREL_PATH"); v != "" {
		c.Path = v
	}
	c.ReadOnly = parseBoolEnvDefault("DUCKREL_READ_ONLY", c.ReadOnly)
	if v := os.Getenv("DUCKREL_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("DUCKREL_EXTENSIONS"); v != "" {
		c.Extensions = compactNonEmpty(strings.Split(v, ","))
	}
	for _, key := range []string{"threads", "memory_limit"} {
		if v := os.Getenv("DUCKREL_" + strings.ToUpper(key)); v != "" {
			if c.Settings == nil {
				c.Settings = make(map[string]string)
			}
			c.Settings[key] = v
		}
	}

	if v := os.Getenv("DUCKREL_CACHE_DIR"); v != "" {
		c.CacheDir = v
	}
	if v := os.Getenv("DUCKREL_CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("DUCKREL_CACHE_TTL: %w", err)
		}
		c.CacheTTL = d
	}

	// S3 fields are only set if present
	for env, dst := range map[string]**string{
		"DUCKREL_S3_KEY_ID":    &c.S3KeyID,
		"DUCKREL_S3_SECRET":    &c.S3Secret,
		"DUCKREL_S3_ENDPOINT":  &c.S3Endpoint,
		"DUCKREL_S3_REGION":    &c.S3Region,
		"DUCKREL_S3_URL_STYLE": &c.S3URLStyle,
	} {
		if v := os.Getenv(env); v != "" {
			*dst = &v
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.CacheDir == "" {
		c.CacheDir = os.TempDir()
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = DefaultCacheTTL
	}
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.ReadOnly && c.IsMemory() {
		return fmt.Errorf("read_only requires a database file path")
	}
	for k := range c.Settings {
		if !settingRe.MatchString(k) {
			return fmt.Errorf("invalid setting name %q", k)
		}
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("cache_ttl must not be negative")
	}
	if (c.S3KeyID == nil) != (c.S3Secret == nil) {
		return fmt.Errorf("s3_key_id and s3_secret must be set together")
	}
	return nil
}

// IsMemory reports whether the configuration describes an in-memory database.
func (c *Config) IsMemory() bool {
	return c.Path == "" || c.Path == ":memory:"
}

// HasS3Config returns true if S3 credentials are configured.
func (c *Config) HasS3Config() bool {
	return c.S3KeyID != nil && c.S3Secret != nil
}

// DSN returns the DuckDB connection string: the database path followed by
// settings as query parameters.
func (c *Config) DSN() string {
	path := c.Path
	if path == ":memory:" {
		path = ""
	}
	params := url.Values{}
	keys := make([]string, 0, len(c.Settings))
	for k := range c.Settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		params.Set(k, c.Settings[k])
	}
	if c.ReadOnly {
		params.Set("access_mode", "READ_ONLY")
	}
	if len(params) == 0 {
		return path
	}
	return path + "?" + params.Encode()
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Logger returns a text logger writing to stderr at the configured level.
func (c *Config) Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: c.SlogLevel()}))
}

func parseBoolEnvDefault(key string, defaultVal bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if v == "" {
		return defaultVal
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	switch v {
	case "no", "off":
		return false
	case "yes", "on":
		return true
	}
	return defaultVal
}

func compactNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// LoadDotEnv reads a .env file and sets any variables not already in the environment.
// Lines must be in KEY=VALUE format. Comments (#) and blank lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil // .env not found is not an error
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = stripQuotes(strings.TrimSpace(value))
		// Only set if not already in the environment (env vars take precedence)
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
