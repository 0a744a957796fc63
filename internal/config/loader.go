package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// envPrefix is the environment variable prefix used by all settings.
const envPrefix = "LABELTRAITER"

// DefaultConfigName is the file searched for when no path is given.
const DefaultConfigName = "labeltraiter.yaml"

// Binder attaches higher-precedence sources, usually command-line flags, to
// the viper instance before it is unmarshalled.
type Binder func(v *viper.Viper) error

// LoadOptions controls LoadWith.
type LoadOptions struct {
	// ConfigPath is an explicit config file.  When empty the search paths
	// are tried and a missing file is not an error.
	ConfigPath string

	// SearchPaths overrides DefaultSearchPaths.
	SearchPaths []string

	Bind Binder
}

// newViper builds a viper instance with YAML file type, the LABELTRAITER_
// env prefix, automatic env binding, and a "." → "_" key replacer so that
// "pipeline.score_cutoff" resolves to LABELTRAITER_PIPELINE_SCORE_CUTOFF.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setViperDefaults(v)
	return v
}

// DefaultSearchPaths lists where a config file is looked for, in order.
func DefaultSearchPaths() []string {
	paths := []string{filepath.Join(".", DefaultConfigName)}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".labeltraiter", "config.yaml"))
	}
	return append(paths, "/etc/labeltraiter/config.yaml")
}

// Load reads the YAML file at configPath, merges LABELTRAITER_* environment
// overrides, applies defaults and validates the result.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		return nil, errors.New("config: config path is empty")
	}
	return LoadWith(LoadOptions{ConfigPath: configPath})
}

// LoadFromEnv builds a Config from LABELTRAITER_* environment variables and
// defaults only.
func LoadFromEnv() (*Config, error) {
	return unmarshalAndFinalize(newViper())
}

// LoadWith resolves configuration with precedence flags > env > file >
// defaults.
func LoadWith(opts LoadOptions) (*Config, error) {
	v := newViper()

	path := opts.ConfigPath
	if path == "" {
		search := opts.SearchPaths
		if search == nil {
			search = DefaultSearchPaths()
		}
		for _, p := range search {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: failed to read config file %q: %w", path, err)
		}
	}

	if opts.Bind != nil {
		if err := opts.Bind(v); err != nil {
			return nil, fmt.Errorf("config: failed to bind flags: %w", err)
		}
	}
	return unmarshalAndFinalize(v)
}

// unmarshalAndFinalize unmarshals viper state into a Config, applies
// defaults, and validates the result.
func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal configuration: %w", err)
	}

	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return cfg, nil
}

// MustLoad wraps Load and panics on error.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}
