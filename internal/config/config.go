// Package config loads and validates application configuration from
// files and environment variables using Viper.
//
// Configuration is resolved in three layers, later layers winning:
// built-in defaults, an optional YAML file, and PERMAFROST_* environment
// variables (PERMAFROST_SERVER_PORT overrides server.port, and so on).
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration for the application.
type Config struct {
	Application ApplicationConfig `mapstructure:"application"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Freeze      FreezeConfig      `mapstructure:"freeze"`
	Server      ServerConfig      `mapstructure:"server"`
	Deploy      DeployConfig      `mapstructure:"deploy"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Prerender   PrerenderConfig   `mapstructure:"prerender"`
	LinkCheck   LinkCheckConfig   `mapstructure:"linkcheck"`
	Progress    ProgressConfig    `mapstructure:"progress"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Notify      NotifyConfig      `mapstructure:"notify"`
}

// ApplicationConfig identifies the site being frozen in logs, audit
// records, and notifications.
type ApplicationConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// FreezeConfig controls the freeze pipeline.
type FreezeConfig struct {
	// Destination is the directory the static tree is written to.
	Destination string `mapstructure:"destination"`
	// BaseURL is the public URL the frozen site will be served from.
	// It has no default; commands that need it fail without one.
	BaseURL string `mapstructure:"base_url"`
	// CNAME writes a CNAME file holding the base URL host into the
	// frozen tree.
	CNAME bool `mapstructure:"cname"`
	// Seeds are extra URL paths crawled in addition to "/".
	Seeds []string `mapstructure:"seeds"`
}

// ServerConfig controls the local static file server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
	// ShutdownEndpoint enables POST /__shutdown__/ for remote stops.
	ShutdownEndpoint bool `mapstructure:"shutdown_endpoint"`
	// Metrics exposes Prometheus metrics on /metrics.
	Metrics bool `mapstructure:"metrics"`
}

// DeployConfig controls how the frozen tree is published.
type DeployConfig struct {
	// Provider selects the publisher backend: "git" or "gcs".
	Provider string `mapstructure:"provider"`
	// Remote is the git remote pushed to.
	Remote string `mapstructure:"remote"`
	// Branch is the hosting branch the tree is committed to.
	Branch string `mapstructure:"branch"`
	// ShowPushStderr surfaces git push diagnostics on stderr.
	ShowPushStderr bool      `mapstructure:"show_push_stderr"`
	GCS            GCSConfig `mapstructure:"gcs"`
}

// StorageConfig selects where frozen files are written.
type StorageConfig struct {
	// Provider selects the blob store backend: "local", "memory", or "gcs".
	Provider string    `mapstructure:"provider"`
	GCS      GCSConfig `mapstructure:"gcs"`
}

// GCSConfig locates a Google Cloud Storage bucket.
type GCSConfig struct {
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
}

// PrerenderConfig controls headless-browser rendering of pages whose
// markup is built client side.
type PrerenderConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	MaxParallel       int    `mapstructure:"max_parallel"`
	NavTimeoutSeconds int    `mapstructure:"nav_timeout_seconds"`
	UserAgent         string `mapstructure:"user_agent"`
}

// LinkCheckConfig controls post-freeze verification of external links.
type LinkCheckConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	PerHostRPS     float64 `mapstructure:"per_host_rps"`
	Burst          int     `mapstructure:"burst"`
	MaxParallel    int     `mapstructure:"max_parallel"`
	UserAgent      string  `mapstructure:"user_agent"`
}

// ProgressConfig tunes the progress event hub.
type ProgressConfig struct {
	Buffer          int `mapstructure:"buffer"`
	BatchSize       int `mapstructure:"batch_size"`
	FlushIntervalMs int `mapstructure:"flush_interval_ms"`
	// LogEvents mirrors every progress event into the structured log.
	LogEvents bool `mapstructure:"log_events"`
}

// DatabaseConfig connects the optional freeze-run audit store.
// Auditing is enabled by setting a DSN.
type DatabaseConfig struct {
	DSN                string `mapstructure:"dsn"`
	Table              string `mapstructure:"table"`
	MaxConns           int32  `mapstructure:"max_conns"`
	MinConns           int32  `mapstructure:"min_conns"`
	MaxConnLifetimeMin int    `mapstructure:"max_conn_lifetime_minutes"`
}

// NotifyConfig controls completion notifications.
type NotifyConfig struct {
	// Provider selects the notifier backend: "none", "memory", or "pubsub".
	Provider  string `mapstructure:"provider"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic_name"`
}

// Load reads configuration from the given file path, falling back to a
// permafrost.yaml in the working directory or $HOME/.config/permafrost
// when path is empty. A missing file is not an error; defaults and
// environment variables still apply.
func Load(path string) (Config, error) {
	v := viper.New()

	v.SetEnvPrefix("PERMAFROST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("permafrost")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/permafrost")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("application.name", "permafrost")
	v.SetDefault("application.environment", "development")

	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")

	v.SetDefault("freeze.destination", "_build")
	v.SetDefault("freeze.base_url", "")
	v.SetDefault("freeze.cname", true)
	v.SetDefault("freeze.seeds", []string{})

	v.SetDefault("server.port", 8003)
	v.SetDefault("server.shutdown_endpoint", false)
	v.SetDefault("server.metrics", false)

	v.SetDefault("deploy.provider", "git")
	v.SetDefault("deploy.remote", "origin")
	v.SetDefault("deploy.branch", "gh-pages")
	v.SetDefault("deploy.show_push_stderr", false)
	v.SetDefault("deploy.gcs.bucket", "")
	v.SetDefault("deploy.gcs.prefix", "")

	v.SetDefault("storage.provider", "local")
	v.SetDefault("storage.gcs.bucket", "")
	v.SetDefault("storage.gcs.prefix", "")

	v.SetDefault("prerender.enabled", false)
	v.SetDefault("prerender.max_parallel", 1)
	v.SetDefault("prerender.nav_timeout_seconds", 25)
	v.SetDefault("prerender.user_agent", "permafrost/1.0")

	v.SetDefault("linkcheck.enabled", false)
	v.SetDefault("linkcheck.timeout_seconds", 10)
	v.SetDefault("linkcheck.per_host_rps", 2.0)
	v.SetDefault("linkcheck.burst", 1)
	v.SetDefault("linkcheck.max_parallel", 4)
	v.SetDefault("linkcheck.user_agent", "permafrost/1.0")

	v.SetDefault("progress.buffer", 256)
	v.SetDefault("progress.batch_size", 32)
	v.SetDefault("progress.flush_interval_ms", 500)
	v.SetDefault("progress.log_events", false)

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.table", "freeze_runs")
	v.SetDefault("database.max_conns", 4)
	v.SetDefault("database.min_conns", 0)
	v.SetDefault("database.max_conn_lifetime_minutes", 30)

	v.SetDefault("notify.provider", "none")
	v.SetDefault("notify.project_id", "")
	v.SetDefault("notify.topic_name", "")
}

// Validate checks the configuration for values no component could run
// with. It does not require a base URL; commands that need one check
// for it themselves.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Freeze.Destination == "" {
		return errors.New("freeze.destination must not be empty")
	}

	switch c.Storage.Provider {
	case "local", "memory":
	case "gcs":
		if c.Storage.GCS.Bucket == "" {
			return errors.New("storage.gcs.bucket is required when storage.provider is gcs")
		}
	default:
		return fmt.Errorf("unknown storage.provider %q", c.Storage.Provider)
	}

	switch c.Deploy.Provider {
	case "git":
		if c.Deploy.Remote == "" {
			return errors.New("deploy.remote must not be empty")
		}
		if c.Deploy.Branch == "" {
			return errors.New("deploy.branch must not be empty")
		}
	case "gcs":
		if c.Deploy.GCS.Bucket == "" {
			return errors.New("deploy.gcs.bucket is required when deploy.provider is gcs")
		}
	default:
		return fmt.Errorf("unknown deploy.provider %q", c.Deploy.Provider)
	}

	if c.Prerender.Enabled {
		if c.Prerender.MaxParallel <= 0 {
			return errors.New("prerender.max_parallel must be positive")
		}
		if c.Prerender.NavTimeoutSeconds <= 0 {
			return errors.New("prerender.nav_timeout_seconds must be positive")
		}
	}

	if c.LinkCheck.Enabled {
		if c.LinkCheck.TimeoutSeconds <= 0 {
			return errors.New("linkcheck.timeout_seconds must be positive")
		}
		if c.LinkCheck.PerHostRPS <= 0 {
			return errors.New("linkcheck.per_host_rps must be positive")
		}
		if c.LinkCheck.MaxParallel <= 0 {
			return errors.New("linkcheck.max_parallel must be positive")
		}
	}

	if c.Progress.Buffer <= 0 || c.Progress.BatchSize <= 0 || c.Progress.FlushIntervalMs <= 0 {
		return errors.New("progress.buffer, progress.batch_size, and progress.flush_interval_ms must be positive")
	}

	if c.Database.DSN != "" && c.Database.Table == "" {
		return errors.New("database.table must not be empty when database.dsn is set")
	}

	switch c.Notify.Provider {
	case "none", "memory":
	case "pubsub":
		if c.Notify.ProjectID == "" || c.Notify.Topic == "" {
			return errors.New("notify.project_id and notify.topic_name are required when notify.provider is pubsub")
		}
	default:
		return fmt.Errorf("unknown notify.provider %q", c.Notify.Provider)
	}

	return nil
}

// NavTimeout returns the prerender navigation timeout as a duration.
func (c PrerenderConfig) NavTimeout() time.Duration {
	return time.Duration(c.NavTimeoutSeconds) * time.Second
}

// Timeout returns the per-request link check timeout as a duration.
func (c LinkCheckConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// FlushInterval returns the progress batch flush interval as a duration.
func (c ProgressConfig) FlushInterval() time.Duration {
	return time.Duration(c.FlushIntervalMs) * time.Millisecond
}

// MaxConnLifetime returns the pool connection lifetime as a duration.
func (c DatabaseConfig) MaxConnLifetime() time.Duration {
	return time.Duration(c.MaxConnLifetimeMin) * time.Minute
}
