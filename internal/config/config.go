// Package config provides configuration management for gooffline.
//
// Configuration is loaded from four sources with the following precedence
// (highest to lowest):
//  1. CLI flags
//  2. Environment variables (GOOFFLINE_ prefix), including those loaded
//     from --env-file
//  3. Config file (.gooffline.yaml)
//  4. Defaults
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Supported log levels.
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// Supported log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Defaults.
const (
	DefaultWorkers     = 4
	DefaultHTTPTimeout = 60 * time.Second
	DefaultNegativeTTL = 10 * time.Minute
)

// Config represents the global configuration for gooffline.
type Config struct {
	// LogLevel controls the verbosity of log output.
	// Valid values: debug, info, warn, error.
	LogLevel string `mapstructure:"log-level" json:"logLevel"`

	// LogFormat controls the format of log output.
	// Valid values: text, json.
	LogFormat string `mapstructure:"log-format" json:"logFormat"`

	// NoColor disables colored output.
	NoColor bool `mapstructure:"no-color" json:"noColor"`

	// Quiet suppresses all log output below error level.
	Quiet bool `mapstructure:"quiet" json:"quiet"`

	// Silent suppresses the per-artifact success lines.
	Silent bool `mapstructure:"silent" json:"silent"`

	// EnvFile is a dotenv file loaded before environment variables are read.
	EnvFile string `mapstructure:"env-file" json:"envFile"`

	// Dependency filters. Values are literal; scopes must be valid scope names.
	IncludeArtifactIDs []string `mapstructure:"include-artifact-ids" json:"includeArtifactIds"`
	ExcludeArtifactIDs []string `mapstructure:"exclude-artifact-ids" json:"excludeArtifactIds"`
	IncludeGroupIDs    []string `mapstructure:"include-group-ids" json:"includeGroupIds"`
	ExcludeGroupIDs    []string `mapstructure:"exclude-group-ids" json:"excludeGroupIds"`
	IncludeScopes      []string `mapstructure:"include-scope" json:"includeScope"`
	ExcludeScopes      []string `mapstructure:"exclude-scope" json:"excludeScope"`
	IncludeClassifiers []string `mapstructure:"include-classifiers" json:"includeClassifiers"`
	ExcludeClassifiers []string `mapstructure:"exclude-classifiers" json:"excludeClassifiers"`
	IncludeTypes       []string `mapstructure:"include-types" json:"includeTypes"`
	ExcludeTypes       []string `mapstructure:"exclude-types" json:"excludeTypes"`

	// ExcludeReactor skips modules built by the current reactor.
	ExcludeReactor bool `mapstructure:"exclude-reactor" json:"excludeReactor"`

	// Transitive follows dependencies declared in POMs.
	Transitive bool `mapstructure:"transitive" json:"transitive"`

	// IncludeParents also fetches parent POMs.
	IncludeParents bool `mapstructure:"include-parents" json:"includeParents"`

	// Workers bounds concurrent coordinate resolutions per batch.
	Workers int `mapstructure:"workers" json:"workers"`

	// LocalRepository is where artifacts are stored.
	LocalRepository string `mapstructure:"local-repository" json:"localRepository"`

	// HTTPTimeout bounds a single remote request.
	HTTPTimeout time.Duration `mapstructure:"http-timeout" json:"httpTimeout"`

	// CaFile, CertFile and KeyFile configure TLS for private repositories.
	CaFile   string `mapstructure:"ca-file" json:"caFile"`
	CertFile string `mapstructure:"cert-file" json:"certFile"`
	KeyFile  string `mapstructure:"key-file" json:"keyFile"`

	// S3 settings for s3:// repositories.
	S3Endpoint string `mapstructure:"s3-endpoint" json:"s3Endpoint"`
	S3Region   string `mapstructure:"s3-region" json:"s3Region"`
	S3Insecure bool   `mapstructure:"s3-insecure" json:"s3Insecure"`

	// NegativeCacheTTL is how long a missing remote file is remembered.
	NegativeCacheTTL time.Duration `mapstructure:"negative-cache-ttl" json:"negativeCacheTtl"`

	// Manifest is where the offline manifest is written. "-" is stdout.
	Manifest string `mapstructure:"manifest" json:"manifest"`

	// Diff prints the difference to the previous manifest.
	Diff bool `mapstructure:"diff" json:"diff"`

	// Strict turns partial success into a distinct exit code.
	Strict bool `mapstructure:"strict" json:"strict"`

	// TraceFile enables span export to the given file.
	TraceFile string `mapstructure:"trace-file" json:"traceFile"`

	// ConfigFile is the resolved path to the config file used.
	// Set after Load(); not read from config itself.
	ConfigFile string `mapstructure:"-" json:"-"`
}

// DefaultLocalRepository returns ~/.m2/repository, or a relative
// .m2/repository when the home directory is unknown.
func DefaultLocalRepository() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".m2", "repository")
	}

	return filepath.Join(".m2", "repository")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		LogLevel:         LogLevelInfo,
		LogFormat:        LogFormatText,
		ExcludeReactor:   true,
		Transitive:       true,
		Workers:          DefaultWorkers,
		LocalRepository:  DefaultLocalRepository(),
		HTTPTimeout:      DefaultHTTPTimeout,
		NegativeCacheTTL: DefaultNegativeTTL,
	}
}

// Validate checks that all config values are valid. Filter values are
// validated when the filter chain is built.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		// valid
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", c.LogLevel)
	}

	switch c.LogFormat {
	case LogFormatText, LogFormatJSON:
		// valid
	default:
		return fmt.Errorf("invalid log format %q: must be one of text, json", c.LogFormat)
	}

	if c.Workers < 1 {
		return fmt.Errorf("invalid workers %d: must be at least 1", c.Workers)
	}

	if strings.TrimSpace(c.LocalRepository) == "" {
		return errors.New("local repository must not be empty")
	}

	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("invalid http timeout %s: must be positive", c.HTTPTimeout)
	}

	if c.NegativeCacheTTL < 0 {
		return fmt.Errorf("invalid negative cache ttl %s: must not be negative", c.NegativeCacheTTL)
	}

	if c.Diff && (c.Manifest == "" || c.Manifest == "-") {
		return errors.New("--diff requires --manifest with a file path")
	}

	return nil
}

// EffectiveLogLevel returns the log level to use. When Quiet is true the log
// level is overridden to "error" regardless of the configured LogLevel.
func (c *Config) EffectiveLogLevel() string {
	if c.Quiet {
		return LogLevelError
	}

	return c.LogLevel
}

// Load initialises configuration from flags, environment variables, and an
// optional config file. A fresh viper instance is used on every call so that
// Load is safe for concurrent tests.
func Load(cmd *cobra.Command, configFile string) (*Config, error) {
	v := viper.New()

	setDefaults(v)
	configureEnv(v)

	if err := configureFile(v, configFile); err != nil {
		return nil, err
	}

	if err := bindFlags(v, cmd); err != nil {
		return nil, err
	}

	if err := loadEnvFile(v.GetString("env-file")); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Store the resolved config file path so downstream code can locate it.
	cfg.ConfigFile = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// DefaultEnvFile is loaded when present and no env file is configured.
const DefaultEnvFile = ".env"

// loadEnvFile loads a dotenv file into the process environment. Environment
// lookups are lazy, so its variables are visible to the following
// Unmarshal. Variables already set win.
func loadEnvFile(path string) error {
	explicit := path != ""
	if !explicit {
		path = DefaultEnvFile
	}

	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}

		return fmt.Errorf("loading env file %q: %w", path, err)
	}

	return nil
}

// setDefaults registers default values in viper.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("log-level", d.LogLevel)
	v.SetDefault("log-format", d.LogFormat)
	v.SetDefault("no-color", false)
	v.SetDefault("quiet", false)
	v.SetDefault("silent", false)
	v.SetDefault("env-file", "")

	for _, key := range []string{
		"include-artifact-ids", "exclude-artifact-ids",
		"include-group-ids", "exclude-group-ids",
		"include-scope", "exclude-scope",
		"include-classifiers", "exclude-classifiers",
		"include-types", "exclude-types",
	} {
		v.SetDefault(key, []string{})
	}

	v.SetDefault("exclude-reactor", d.ExcludeReactor)
	v.SetDefault("transitive", d.Transitive)
	v.SetDefault("include-parents", false)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("local-repository", d.LocalRepository)
	v.SetDefault("http-timeout", d.HTTPTimeout)
	v.SetDefault("ca-file", "")
	v.SetDefault("cert-file", "")
	v.SetDefault("key-file", "")
	v.SetDefault("s3-endpoint", "")
	v.SetDefault("s3-region", "")
	v.SetDefault("s3-insecure", false)
	v.SetDefault("negative-cache-ttl", d.NegativeCacheTTL)
	v.SetDefault("manifest", "")
	v.SetDefault("diff", false)
	v.SetDefault("strict", false)
	v.SetDefault("trace-file", "")
}

// configureEnv sets up environment variable support.
func configureEnv(v *viper.Viper) {
	v.SetEnvPrefix("GOOFFLINE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
}

// configureFile sets up the config file source.
func configureFile(v *viper.Viper, configFile string) error {
	if configFile != "" {
		v.SetConfigFile(configFile)

		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config file %q: %w", configFile, err)
		}

		return nil
	}

	// Auto-discovery mode.
	v.SetConfigName(".gooffline")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "gooffline"))
	}

	if err := v.ReadInConfig(); err != nil {
		// No config file found → perfectly fine in auto-discovery.
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}

		// Found a file but it was malformed.
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

// bindFlags walks from cmd up to the root and binds all PersistentFlags.
func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	if cmd == nil {
		return nil
	}

	// Bind the current command's own flags.
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}

	// Walk up to root and bind all persistent flags at each level.
	for c := cmd; c != nil; c = c.Parent() {
		if err := v.BindPFlags(c.PersistentFlags()); err != nil {
			return fmt.Errorf("binding persistent flags: %w", err)
		}
	}

	return nil
}

// ---------------------------------------------------------------------------
// Context helpers
// ---------------------------------------------------------------------------

type ctxKey struct{}

// NewContext returns a child context carrying cfg.
func NewContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, ctxKey{}, cfg)
}

// FromContext extracts a Config from ctx, falling back to Default().
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(ctxKey{}).(*Config); ok {
		return cfg
	}

	return Default()
}
