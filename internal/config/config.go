// Package config handles CLI and TOML configuration loading and validation.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// configSearchPaths lists paths checked in order when no explicit config is given.
// Unlike a deployed service, a dev helper runs fine without any file.
var configSearchPaths = []string{
	"devproxy.toml",
	"configs/devproxy.toml",
}

// Route prefixes forwarded to the backend.
const (
	APIPrefix       = "/api/"
	WebSocketPrefix = "/ws/"
)

// CLI holds command-line arguments parsed by Kong.
type CLI struct {
	Port     int    `kong:"arg,optional,help='Listen port (default 3000).'"`
	PortFlag int    `kong:"name='port',short='p',help='Listen port when no positional port is given (overrides config).',env='PORT'"`
	Config   string `kong:"short='c',help='Path to TOML config file.',env='DEVPROXY_CONFIG'"`
	Host     string `kong:"help='Listen host (overrides config).',env='HOST'"`
	Backend  string `kong:"short='b',help='Backend origin, e.g. http://127.0.0.1:8000 (overrides config).',env='BACKEND_URL'"`
	Root     string `kong:"short='r',help='Directory served as static assets (default: executable directory).',env='STATIC_ROOT'"`
	LogLevel string `kong:"help='Log level: debug|info|warn|error (overrides config).',env='LOG_LEVEL'"`
}

// Config is the top-level application configuration. It is built once at
// startup and never mutated afterwards.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Backend BackendConfig `toml:"backend"`
	Static  StaticConfig  `toml:"static"`
	Admin   AdminConfig   `toml:"admin"`
	Log     LogConfig     `toml:"log"`
	Metrics MetricsConfig `toml:"metrics"`

	filePath string // resolved config file path (unexported)
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string          `toml:"host"`
	Port         int             `toml:"port"` // 0 means "use default" (3000)
	BodyMaxBytes int64           `toml:"body_max_bytes"` // 0 disables the limit
	RateLimit    RateLimitConfig `toml:"rate_limit"`
}

// RateLimitConfig controls per-IP request rate limiting.
type RateLimitConfig struct {
	Enabled           bool    `toml:"enabled"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// BackendConfig describes the origin API and websocket requests are forwarded to.
type BackendConfig struct {
	URL             string `toml:"url"`
	TimeoutSeconds  int    `toml:"timeout_seconds"` // 0 disables the timeout
	IdleConnections int    `toml:"idle_connections"`
}

// StaticConfig controls static asset serving.
type StaticConfig struct {
	Root   string `toml:"root"`
	Browse *bool  `toml:"browse"` // directory listings; nil means enabled
}

// AdminConfig holds the reserved prefix for health, status and metrics routes.
type AdminConfig struct {
	Prefix string `toml:"prefix"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

// Load reads the optional TOML config file and applies CLI overrides.
// When no explicit path is given (via --config or DEVPROXY_CONFIG), it searches
// ./devproxy.toml then configs/devproxy.toml and falls back to defaults.
func Load(cli *CLI) (*Config, error) {
	var cfg Config

	path := cli.Config
	if path == "" {
		path = findConfig()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg.filePath = path
	}

	cfg.applyCLI(cli)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	if err := cfg.setDefaults(); err != nil {
		return nil, fmt.Errorf("config: defaults: %w", err)
	}
	return &cfg, nil
}

// applyCLI overrides config values with non-zero CLI flags.
func (c *Config) applyCLI(cli *CLI) {
	if cli.Host != "" {
		c.Server.Host = cli.Host
	}
	switch {
	case cli.Port != 0:
		c.Server.Port = cli.Port
	case cli.PortFlag != 0:
		c.Server.Port = cli.PortFlag
	}
	if cli.Backend != "" {
		c.Backend.URL = cli.Backend
	}
	if cli.Root != "" {
		c.Static.Root = cli.Root
	}
	if cli.LogLevel != "" {
		c.Log.Level = cli.LogLevel
	}
}

func (c *Config) validate() error {
	if c.Backend.URL != "" {
		if err := validateOrigin(c.Backend.URL); err != nil {
			return err
		}
	}

	// Numeric bounds.
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 0-65535; got %d", c.Server.Port)
	}
	if c.Server.BodyMaxBytes < 0 {
		return fmt.Errorf("server.body_max_bytes must be non-negative; got %d", c.Server.BodyMaxBytes)
	}
	if c.Backend.TimeoutSeconds < 0 {
		return fmt.Errorf("backend.timeout_seconds must be non-negative; got %d", c.Backend.TimeoutSeconds)
	}
	if c.Backend.IdleConnections < 0 {
		return fmt.Errorf("backend.idle_connections must be non-negative; got %d", c.Backend.IdleConnections)
	}
	if c.Server.RateLimit.Enabled && c.Server.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("server.rate_limit.requests_per_second must be > 0 when rate limiting is enabled; got %v", c.Server.RateLimit.RequestsPerSecond)
	}

	// Log fields.
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error", "":
	default:
		return fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text", "":
	default:
		return fmt.Errorf("log.format must be one of: json, text; got %q", c.Log.Format)
	}

	if p := c.Admin.Prefix; p != "" {
		if p[0] != '/' {
			return fmt.Errorf("admin.prefix must start with '/'; got %q", p)
		}
		if p == "/" || strings.HasSuffix(p, "/") {
			return fmt.Errorf("admin.prefix must not end with '/'; got %q", p)
		}
		for _, reserved := range []string{APIPrefix, WebSocketPrefix} {
			if p+"/" == reserved || strings.HasPrefix(p, reserved) {
				return fmt.Errorf("admin.prefix %q conflicts with proxied prefix %q", p, reserved)
			}
		}
	}

	return nil
}

// validateOrigin accepts scheme://host[:port] only; request paths are appended verbatim.
func validateOrigin(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("backend.url is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("backend.url must use http or https; got %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("backend.url must include a host; got %q", raw)
	}
	if (u.Path != "" && u.Path != "/") || u.RawQuery != "" || u.Fragment != "" {
		return fmt.Errorf("backend.url must be an origin without path, query or fragment; got %q", raw)
	}
	return nil
}

// setDefaults fills zero-valued fields with defaults. For integer fields zero
// means "unset" because TOML cannot distinguish an explicit 0 from an omitted key.
// Backend.TimeoutSeconds is the exception: 0 keeps the backend call unbounded.
func (c *Config) setDefaults() error {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 3000
	}
	if c.Backend.URL == "" {
		c.Backend.URL = "http://127.0.0.1:8000"
	}
	c.Backend.URL = strings.TrimSuffix(c.Backend.URL, "/")
	if c.Backend.IdleConnections == 0 {
		c.Backend.IdleConnections = 16
	}
	if c.Static.Root == "" {
		dir, err := executableDir()
		if err != nil {
			return err
		}
		c.Static.Root = dir
	}
	root, err := filepath.Abs(c.Static.Root)
	if err != nil {
		return fmt.Errorf("resolve static.root %q: %w", c.Static.Root, err)
	}
	c.Static.Root = root
	if c.Static.Browse == nil {
		browse := true
		c.Static.Browse = &browse
	}
	if c.Admin.Prefix == "" {
		c.Admin.Prefix = "/__devproxy"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	return nil
}

// executableDir returns the directory holding the running binary.
func executableDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locate executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe), nil
}

// findConfig returns the first config path that exists, or empty string.
func findConfig() string {
	return findConfigInPaths(configSearchPaths)
}

// findConfigInPaths returns the first path that exists on disk, or empty string.
func findConfigInPaths(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Addr returns the server listen address as host:port.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// BrowseEnabled reports whether directory listings are served.
func (c *StaticConfig) BrowseEnabled() bool {
	return c.Browse == nil || *c.Browse
}

// FilePath returns the config file that was loaded, or empty when running on defaults.
func (c *Config) FilePath() string {
	return c.filePath
}

// WarnPermissions logs a warning if the config file is writable by group or others.
func (c *Config) WarnPermissions(logger *slog.Logger) {
	if c.filePath == "" {
		return
	}
	info, err := os.Stat(c.filePath)
	if err != nil {
		return
	}
	if perm := info.Mode().Perm(); perm&0o022 != 0 {
		logger.Warn("config file is writable by group/others; consider chmod 644",
			"path", c.filePath,
			"mode", fmt.Sprintf("%04o", perm),
		)
	}
}
