// Package config loads scopeq settings.
//
// Sources, highest precedence first: command-line flags that were set,
// SCOPEQ_* environment variables, an optional YAML config file, defaults.
package config

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. SCOPEQ_BACKEND.
const EnvPrefix = "SCOPEQ"

// Backends are the accepted backend names.
var Backends = []string{"array", "sqlite", "postgres"}

// Formats are the accepted output formats.
var Formats = []string{"text", "json"}

// Config holds settings shared by every command.
type Config struct {
	// Backend selects the query backend: array, sqlite or postgres.
	Backend string `mapstructure:"backend"`
	// DB is the SQLite path or the Postgres DSN. An empty SQLite path
	// opens a private in-memory database.
	DB string `mapstructure:"db"`
	// Models is the directory holding CUE model definitions.
	Models string `mapstructure:"models"`
	// Fixture is an optional YAML fixture applied after opening.
	Fixture  string `mapstructure:"fixture"`
	Format   string `mapstructure:"format"`
	Verbose  bool   `mapstructure:"verbose"`
	LogLevel string `mapstructure:"log_level"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Backend:  "array",
		Models:   ".",
		Format:   "text",
		LogLevel: "warn",
	}
}

// Load resolves the configuration. file may be empty. flags, when not
// nil, are bound by name ("log-level" maps to log_level); only flags set
// on the command line override other sources.
func Load(file string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	def := Default()
	v.SetDefault("backend", def.Backend)
	v.SetDefault("db", def.DB)
	v.SetDefault("models", def.Models)
	v.SetDefault("fixture", def.Fixture)
	v.SetDefault("format", def.Format)
	v.SetDefault("verbose", def.Verbose)
	v.SetDefault("log_level", def.LogLevel)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if flags != nil {
		for _, key := range []string{"backend", "db", "models", "fixture", "format", "verbose", "log_level"} {
			f := flags.Lookup(strings.ReplaceAll(key, "_", "-"))
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", f.Name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	if !slices.Contains(Backends, c.Backend) {
		return fmt.Errorf("invalid backend %q: must be one of %v", c.Backend, Backends)
	}
	if !slices.Contains(Formats, c.Format) {
		return fmt.Errorf("invalid format %q: must be one of %v", c.Format, Formats)
	}
	if c.Backend == "postgres" && c.DB == "" {
		return fmt.Errorf("backend postgres requires db to be set to a DSN")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level returns the log level. Verbose forces debug.
func (c *Config) Level() (slog.Level, error) {
	if c.Verbose {
		return slog.LevelDebug, nil
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}
	return l, nil
}
