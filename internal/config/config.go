// Package config loads docdrift settings from an optional YAML file,
// DOCDRIFT_* environment variables and command-line flags, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Sentinel validation errors.
var (
	ErrInvalidFormat      = errors.New("invalid output format")
	ErrInvalidWorkers     = errors.New("workers must not be negative")
	ErrInvalidLogLevel    = errors.New("invalid log level")
	ErrInvalidMaxFileSize = errors.New("max file size must be positive")
)

// Default configuration values.
const (
	DefaultSrc         = "src"
	DefaultFormat      = "text"
	DefaultLogLevel    = "warn"
	DefaultWorkers     = 0
	DefaultMaxFileSize = 10 * 1024 * 1024
	DefaultConfigName  = ".docdrift"
	envPrefix          = "DOCDRIFT"
)

// Config holds the settings of a docdrift run.
type Config struct {
	Src          string   `mapstructure:"src"`
	Packages     []string `mapstructure:"packages"`
	RelativeRoot string   `mapstructure:"relative_root"`
	Languages    []string `mapstructure:"languages"`
	Workers      int      `mapstructure:"workers"`
	Rules        []string `mapstructure:"rules"`
	RuleExprs    []string `mapstructure:"rule"`
	DB           string   `mapstructure:"db"`
	Format       string   `mapstructure:"format"`
	LogLevel     string   `mapstructure:"log_level"`
	MaxFileSize  int64    `mapstructure:"max_file_size"`

	// HasRelativeRoot is set when relative_root was given at all, since an
	// empty anchor is meaningful (the source root).
	HasRelativeRoot bool `mapstructure:"-"`
}

// Load reads configuration. configPath names an explicit file; when empty,
// .docdrift.yaml is looked up in the working directory and its absence is
// not an error. flags maps config keys to flag names in fs; only flags the
// user actually set override file and environment values.
func Load(configPath string, fs *pflag.FlagSet, flags map[string]string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	if fs != nil {
		for key, name := range flags {
			flag := fs.Lookup(name)
			if flag == nil {
				return nil, fmt.Errorf("config: unknown flag %q for key %q", name, key)
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return nil, fmt.Errorf("config: bind %s: %w", key, err)
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read %s: %w", v.ConfigFileUsed(), err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	cfg.HasRelativeRoot = v.IsSet("relative_root")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("src", DefaultSrc)
	v.SetDefault("packages", []string{})
	v.SetDefault("languages", []string{})
	v.SetDefault("workers", DefaultWorkers)
	v.SetDefault("rules", []string{})
	v.SetDefault("rule", []string{})
	v.SetDefault("db", "")
	v.SetDefault("format", DefaultFormat)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("max_file_size", DefaultMaxFileSize)
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch c.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: %q (valid: text, json)", ErrInvalidFormat, c.Format)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, c.Workers)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.MaxFileSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxFileSize, c.MaxFileSize)
	}
	return nil
}

// Level returns the slog level named by LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.LogLevel)
	}
	return l, nil
}
