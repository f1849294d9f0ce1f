// Package config loads media-tidy settings from a yaml file, MEDIA_TIDY_*
// environment variables and defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/quidome/media-tidy/pkg/dupes"
	"github.com/quidome/media-tidy/pkg/scan"
)

const (
	// FileName is the config file looked up in the working directory and $HOME.
	FileName  = ".media-tidy.yaml"
	EnvPrefix = "MEDIA_TIDY"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	DryRun     bool       `mapstructure:"dry_run" yaml:"dry_run"`
	Exclude    []string   `mapstructure:"exclude" yaml:"exclude"`
	Extensions []string   `mapstructure:"extensions" yaml:"extensions"`
	Workers    int        `mapstructure:"workers" yaml:"workers"`
	Hash       HashConfig `mapstructure:"hash" yaml:"hash"`
	Log        LogConfig  `mapstructure:"log" yaml:"log"`
}

type HashConfig struct {
	ChunkSize   int   `mapstructure:"chunk_size" yaml:"chunk_size"`
	PartialSize int64 `mapstructure:"partial_size" yaml:"partial_size"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// SetDefaults registers the default for every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("dry_run", false)
	v.SetDefault("exclude", scan.DefaultExclude)
	v.SetDefault("extensions", []string{})
	v.SetDefault("workers", 0)
	v.SetDefault("hash.chunk_size", dupes.DefaultChunkSize)
	v.SetDefault("hash.partial_size", dupes.DefaultPartialSize)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Load reads cfgFile, or FileName from the working directory or $HOME when
// cfgFile is empty, into v and decodes the result. A missing file found by
// lookup is not an error; a missing explicit file is.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	SetDefaults(v)

	if cfgFile != "" {
		if _, err := os.Stat(cfgFile); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(strings.TrimSuffix(FileName, filepath.Ext(FileName)))
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the tool cannot run with.
func (c *Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must be >= 0, got %d", ErrInvalid, c.Workers)
	}
	if c.Hash.ChunkSize < 1 {
		return fmt.Errorf("%w: hash.chunk_size must be >= 1, got %d", ErrInvalid, c.Hash.ChunkSize)
	}
	if c.Hash.PartialSize < 1 {
		return fmt.Errorf("%w: hash.partial_size must be >= 1, got %d", ErrInvalid, c.Hash.PartialSize)
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level: %v", ErrInvalid, err)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("%w: log.format must be console or json, got %q", ErrInvalid, c.Log.Format)
	}
	return nil
}

// ScanOptions returns listing options for the configured exclusions and
// extension filter.
func (c *Config) ScanOptions(logger *zap.Logger) scan.Options {
	return scan.Options{Exclude: c.Exclude, Extensions: c.Extensions, Logger: logger}
}

// DuplicateOptions returns detector options for the configured hashing.
func (c *Config) DuplicateOptions(logger *zap.Logger) dupes.Options {
	opts := dupes.DefaultOptions()
	opts.ChunkSize = c.Hash.ChunkSize
	opts.PartialSize = c.Hash.PartialSize
	opts.Workers = c.Workers
	opts.Logger = logger
	return opts
}

// NewLogger builds a logger writing to stderr. verbose forces debug level.
func (c *Config) NewLogger(verbose bool) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	if verbose {
		level.SetLevel(zapcore.DebugLevel)
	}

	zc := zap.NewProductionConfig()
	if c.Log.Format == "console" {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zc.Development = false
	}
	zc.Level = level
	zc.Encoding = c.Log.Format
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	zc.DisableStacktrace = true
	return zc.Build()
}
