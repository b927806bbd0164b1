package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultTrackingScriptPrefix is the inline script Cloudflare injects into every page
const DefaultTrackingScriptPrefix = "(function(){function c(){var b=a.contentDocument||a.contentWindow.document;if(b){var d=b.createElement('script');"

// DefaultUserAgent mirrors a desktop browser so origins serve the regular markup
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36"

// TokenEnv overrides git.token when set
const TokenEnv = "SITE_MIRROR_GIT_TOKEN"

// Config holds all runtime configuration parameters
type Config struct {
	Origins                []string  `json:"origins" yaml:"origins" validate:"required,min=1,dive,url"`
	MirrorDir              string    `json:"mirror_dir" yaml:"mirror_dir"`
	ConcurrentWorkers      int       `json:"concurrent_workers" yaml:"concurrent_workers" validate:"gte=0"`
	RequestTimeoutMs       int       `json:"request_timeout_ms" yaml:"request_timeout_ms" validate:"gte=0"`
	MaxBodyBytes           int       `json:"max_body_bytes" yaml:"max_body_bytes" validate:"gte=0"`
	UserAgent              string    `json:"user_agent" yaml:"user_agent"`
	AcceptLanguage         string    `json:"accept_language" yaml:"accept_language"`
	AssetExtensions        []string  `json:"asset_extensions" yaml:"asset_extensions"`
	ExcludedPathSegments   []string  `json:"excluded_path_segments" yaml:"excluded_path_segments"`
	TrackingScriptPrefixes []string  `json:"tracking_script_prefixes" yaml:"tracking_script_prefixes"`
	BeaconAttributes       []string  `json:"beacon_attributes" yaml:"beacon_attributes"`
	IndentSize             int       `json:"indent_size" yaml:"indent_size" validate:"gte=0,lte=16"`
	Schedule               string    `json:"schedule" yaml:"schedule"`
	DBPath                 string    `json:"db_path" yaml:"db_path"`
	MetricsPath            string    `json:"metrics_path" yaml:"metrics_path"`
	Log                    LogConfig `json:"log" yaml:"log"`
	Git                    GitConfig `json:"git" yaml:"git"`
}

// LogConfig controls log level and the optional rotating log file
type LogConfig struct {
	Level      string `json:"level" yaml:"level" validate:"omitempty,oneof=trace debug info warn warning error"`
	File       string `json:"file" yaml:"file"`
	MaxSizeMB  int    `json:"max_size_mb" yaml:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `json:"max_age_days" yaml:"max_age_days" validate:"gte=0"`
}

// GitConfig describes the repository the mirror is synchronized to after each run
type GitConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	RepoDir     string `json:"repo_dir" yaml:"repo_dir"`
	Scope       string `json:"scope" yaml:"scope"`
	Remote      string `json:"remote" yaml:"remote"`
	Branch      string `json:"branch" yaml:"branch"`
	AuthorName  string `json:"author_name" yaml:"author_name"`
	AuthorEmail string `json:"author_email" yaml:"author_email" validate:"omitempty,email"`
	Username    string `json:"username" yaml:"username"`
	Token       string `json:"token" yaml:"token"`
}

// LoadConfig reads and validates configuration from a JSON or YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	}

	if token := os.Getenv(TokenEnv); token != "" {
		cfg.Git.Token = token
	}

	// Apply defaults for missing values
	applyDefaults(&cfg)

	// Validate configuration
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// FindConfig returns the config file in the XDG config dirs, if any
func FindConfig() (string, error) {
	for _, name := range []string{"site-mirror/config.yaml", "site-mirror/config.yml", "site-mirror/config.json"} {
		if path, err := xdg.SearchConfigFile(name); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no config file found in %s", filepath.Join(xdg.ConfigHome, "site-mirror"))
}

// applyDefaults sets default values for unspecified fields
func applyDefaults(cfg *Config) {
	if cfg.MirrorDir == "" {
		cfg.MirrorDir = "www"
	}
	if cfg.ConcurrentWorkers == 0 {
		cfg.ConcurrentWorkers = 1
	}
	if cfg.RequestTimeoutMs == 0 {
		cfg.RequestTimeoutMs = 30000
	}
	if cfg.MaxBodyBytes == 0 {
		cfg.MaxBodyBytes = 20 * 1024 * 1024
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.AcceptLanguage == "" {
		cfg.AcceptLanguage = "pl;q=0.7"
	}
	if len(cfg.AssetExtensions) == 0 {
		cfg.AssetExtensions = []string{"css", "js", "png", "jpg", "jpeg", "gif", "svg", "webp", "avif", "ico", "pdf"}
	}
	if cfg.ExcludedPathSegments == nil {
		cfg.ExcludedPathSegments = []string{"cdn-cgi"}
	}
	if cfg.TrackingScriptPrefixes == nil {
		cfg.TrackingScriptPrefixes = []string{DefaultTrackingScriptPrefix}
	}
	if cfg.BeaconAttributes == nil {
		cfg.BeaconAttributes = []string{"data-cf-beacon", "data-cfemail"}
	}
	if cfg.IndentSize == 0 {
		cfg.IndentSize = 4
	}
	if cfg.Schedule == "" {
		cfg.Schedule = "0 */6 * * *"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "site-mirror.db"
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "metrics.json"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.MaxSizeMB == 0 {
		cfg.Log.MaxSizeMB = 10
	}
	if cfg.Log.MaxBackups == 0 {
		cfg.Log.MaxBackups = 5
	}
	if cfg.Git.RepoDir == "" {
		cfg.Git.RepoDir = "."
	}
	if cfg.Git.Scope == "" {
		cfg.Git.Scope = cfg.MirrorDir
	}
	if cfg.Git.Branch == "" {
		cfg.Git.Branch = "main"
	}
	if cfg.Git.AuthorName == "" {
		cfg.Git.AuthorName = "site-mirror"
	}
	if cfg.Git.AuthorEmail == "" {
		cfg.Git.AuthorEmail = "site-mirror@localhost"
	}

	for i, ext := range cfg.AssetExtensions {
		cfg.AssetExtensions[i] = strings.ToLower(strings.TrimPrefix(ext, "."))
	}
}

// validate checks that required fields are present and values are sensible
func validate(cfg *Config) error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(cfg); err != nil {
		return err
	}

	for i, raw := range cfg.Origins {
		origin, err := NormalizeOrigin(raw)
		if err != nil {
			return err
		}
		cfg.Origins[i] = origin
	}
	if cfg.ConcurrentWorkers < 1 {
		return fmt.Errorf("concurrent_workers must be >= 1")
	}
	if cfg.RequestTimeoutMs < 1000 {
		return fmt.Errorf("request_timeout_ms must be >= 1000")
	}
	if cfg.Git.Remote != "" && !cfg.Git.Enabled {
		return fmt.Errorf("git.remote is set but git.enabled is false")
	}
	return nil
}

// NormalizeOrigin reduces an origin URL to lower-cased scheme://host[:port]
func NormalizeOrigin(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("invalid origin %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("origin %q must use http or https", raw)
	}
	if u.Host == "" {
		return "", fmt.Errorf("origin %q has no host", raw)
	}
	if u.Path != "" && u.Path != "/" {
		return "", fmt.Errorf("origin %q must not contain a path", raw)
	}
	return strings.ToLower(u.Scheme + "://" + u.Host), nil
}
