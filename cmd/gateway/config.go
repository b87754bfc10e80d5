package main

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Configuration defaults
const (
	DefaultListenPort      = 8080
	DefaultStaticRoot      = "dist"
	DefaultIndexFile       = "index.html"
	DefaultShutdownTimeout = 10 * time.Second
)

// ForwardRule maps a request path prefix to the upstream backend. Rules
// are checked in order; the first matching prefix wins. Upgrade marks
// the prefix as eligible for protocol upgrades (WebSocket).
type ForwardRule struct {
	Prefix  string
	Upgrade bool
}

// AssetDir attaches cache headers to a static URL prefix.
type AssetDir struct {
	URLPath  string
	CacheTTL int // Cache TTL in seconds
}

// Config is the resolved process configuration. It is read-only after
// startup and shared across concurrently handled connections.
type Config struct {
	ListenPort      int
	Upstream        *url.URL
	StaticRoot      string
	IndexFile       string
	Rules           []ForwardRule
	AssetDirs       []*AssetDir
	ShutdownTimeout time.Duration // Grace period for draining in-flight streams

	Logging LogConfig

	AuthFile    string
	AuthRealm   string
	AuthExclude []string

	RateLimit float64 // Requests per second per client, 0 disables
	RateBurst int
}

// LogConfig represents logging configuration
type LogConfig struct {
	Format string `yaml:"format"` // "text" or "json"
}

// YAMLConfig represents the on-disk configuration format
type YAMLConfig struct {
	Server struct {
		Listen          int    `yaml:"listen"`
		StaticRoot      string `yaml:"static_root"`
		Index           string `yaml:"index"`
		ShutdownTimeout string `yaml:"shutdown_timeout"` // Duration string like "15s"
	} `yaml:"server"`

	Upstream struct {
		URL string `yaml:"url"`
	} `yaml:"upstream"`

	Routes struct {
		Proxies []struct {
			Path    string `yaml:"path"`
			Upgrade bool   `yaml:"upgrade"`
		} `yaml:"proxies"`
	} `yaml:"routes"`

	Static struct {
		Directories []struct {
			Path  string `yaml:"path"`
			Cache int    `yaml:"cache"`
		} `yaml:"directories"`
	} `yaml:"static"`

	Auth struct {
		Enabled     bool     `yaml:"enabled"`
		HTPasswd    string   `yaml:"htpasswd"`
		Realm       string   `yaml:"realm"`
		PublicPaths []string `yaml:"public_paths"`
	} `yaml:"auth"`

	Logging LogConfig `yaml:"logging"`

	RateLimit struct {
		RequestsPerSecond float64 `yaml:"requests_per_second"`
		Burst             int     `yaml:"burst"`
	} `yaml:"rate_limit"`
}

// LoadConfig resolves the configuration from defaults, an optional YAML
// file, and finally the environment. Environment variables win over the
// file. Validation failures are fatal: the caller must exit before the
// listener is bound.
func LoadConfig(filename string) (*Config, error) {
	config := &Config{
		ListenPort:      DefaultListenPort,
		StaticRoot:      DefaultStaticRoot,
		IndexFile:       DefaultIndexFile,
		ShutdownTimeout: DefaultShutdownTimeout,
		Rules: []ForwardRule{
			{Prefix: "/ws", Upgrade: true},
			{Prefix: "/api"},
		},
	}

	var upstream string

	if filename != "" {
		content, err := os.ReadFile(filename)
		if err != nil {
			return nil, err
		}
		if err := applyYAML(config, content, &upstream); err != nil {
			return nil, err
		}
	}

	applyEnv(config, &upstream)

	if err := validate(config, upstream); err != nil {
		return nil, err
	}

	return config, nil
}

// applyYAML overlays settings from a YAML configuration file
func applyYAML(config *Config, content []byte, upstream *string) error {
	var yamlConfig YAMLConfig
	if err := yaml.Unmarshal(content, &yamlConfig); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	if yamlConfig.Server.Listen > 0 {
		config.ListenPort = yamlConfig.Server.Listen
	}
	if yamlConfig.Server.StaticRoot != "" {
		config.StaticRoot = yamlConfig.Server.StaticRoot
	}
	if yamlConfig.Server.Index != "" {
		config.IndexFile = yamlConfig.Server.Index
	}
	if yamlConfig.Server.ShutdownTimeout != "" {
		duration, err := time.ParseDuration(yamlConfig.Server.ShutdownTimeout)
		if err != nil {
			slog.Warn("Invalid shutdown timeout format, using default",
				"timeout", yamlConfig.Server.ShutdownTimeout, "error", err)
		} else {
			config.ShutdownTimeout = duration
		}
	}

	if yamlConfig.Upstream.URL != "" {
		*upstream = yamlConfig.Upstream.URL
	}

	// An explicit proxies list replaces the default rules; an explicit
	// empty list turns forwarding off (static-only mode).
	if yamlConfig.Routes.Proxies != nil {
		config.Rules = nil
		for _, proxy := range yamlConfig.Routes.Proxies {
			prefix := proxy.Path
			if !strings.HasPrefix(prefix, "/") {
				prefix = "/" + prefix
			}
			config.Rules = append(config.Rules, ForwardRule{
				Prefix:  prefix,
				Upgrade: proxy.Upgrade,
			})
		}
	}

	for _, dir := range yamlConfig.Static.Directories {
		config.AssetDirs = append(config.AssetDirs, &AssetDir{
			URLPath:  dir.Path,
			CacheTTL: dir.Cache,
		})
	}

	if yamlConfig.Auth.Enabled {
		config.AuthFile = yamlConfig.Auth.HTPasswd
		config.AuthRealm = yamlConfig.Auth.Realm
		config.AuthExclude = yamlConfig.Auth.PublicPaths
	}

	config.Logging = yamlConfig.Logging
	config.RateLimit = yamlConfig.RateLimit.RequestsPerSecond
	config.RateBurst = yamlConfig.RateLimit.Burst

	return nil
}

// applyEnv overlays settings from environment variables
func applyEnv(config *Config, upstream *string) {
	if port := os.Getenv("PORT"); port != "" {
		if n, err := strconv.Atoi(port); err == nil && n > 0 {
			config.ListenPort = n
		} else {
			slog.Warn("Ignoring invalid PORT value", "port", port)
		}
	}
	if v := os.Getenv("UPSTREAM_URL"); v != "" {
		*upstream = v
	}
	if v := os.Getenv("STATIC_ROOT"); v != "" {
		config.StaticRoot = v
	}
	if v := os.Getenv("INDEX_FILE"); v != "" {
		config.IndexFile = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		config.Logging.Format = v
	}
	if v := os.Getenv("SHUTDOWN_TIMEOUT"); v != "" {
		duration, err := time.ParseDuration(v)
		if err != nil {
			slog.Warn("Invalid SHUTDOWN_TIMEOUT format, using default",
				"timeout", v, "error", err)
		} else {
			config.ShutdownTimeout = duration
		}
	}
}

// validate checks the configuration for fatal misconfigurations. The
// static root and entry document must exist, and an upstream URL is
// required whenever forwarding rules are configured; there is no safe
// default to substitute for it.
func validate(config *Config, upstream string) error {
	info, err := os.Stat(config.StaticRoot)
	if err != nil {
		return fmt.Errorf("static root %s: %w", config.StaticRoot, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("static root %s is not a directory", config.StaticRoot)
	}

	indexPath := filepath.Join(config.StaticRoot, config.IndexFile)
	if _, err := os.Stat(indexPath); err != nil {
		return fmt.Errorf("entry document %s: %w", indexPath, err)
	}

	if len(config.Rules) > 0 {
		if upstream == "" {
			return fmt.Errorf("UPSTREAM_URL is required when forwarding routes are configured")
		}
		u, err := url.Parse(upstream)
		if err != nil {
			return fmt.Errorf("invalid upstream URL %q: %w", upstream, err)
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid upstream URL %q: scheme and host are required", upstream)
		}
		config.Upstream = u
	}

	return nil
}
