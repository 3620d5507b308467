// Package config loads the process configuration: struct defaults,
// then an optional YAML file, then DECKSERVE_-prefixed environment
// variables, then command-line flags. Components receive the resolved
// values at construction; nothing reads configuration globally.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix namespaces environment variables, e.g. DECKSERVE_SERVER_ADDR.
const EnvPrefix = "DECKSERVE_"

// DefaultConfigPath is used when no --config flag or DECKSERVE_CONFIG
// variable is set; a missing default file is not an error.
const DefaultConfigPath = "deckserve.yaml"

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr string `koanf:"addr" validate:"required"`
}

// DatabaseConfig locates the SQLite store.
type DatabaseConfig struct {
	Path string `koanf:"path" validate:"required"`
}

// MediaConfig locates the media asset root served under /media/.
type MediaConfig struct {
	Dir string `koanf:"dir" validate:"required"`
}

// ClientConfig locates the pre-built client bundle.
type ClientConfig struct {
	Dir string `koanf:"dir" validate:"required"`
}

// SourcesConfig locates git checkouts of markdown card sources.
type SourcesConfig struct {
	ReposDir string `koanf:"repos_dir" validate:"required"`
}

// ImportConfig tunes the import pipeline.
type ImportConfig struct {
	MaxUploadBytes int64 `koanf:"max_upload_bytes" validate:"gt=0"`
	Tokenize       bool  `koanf:"tokenize"`
}

// Config is the full process configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Media    MediaConfig    `koanf:"media"`
	Client   ClientConfig   `koanf:"client"`
	Sources  SourcesConfig  `koanf:"sources"`
	Import   ImportConfig   `koanf:"import"`
}

// Default returns the configuration used before any file, environment,
// or flag overrides.
func Default() *Config {
	return &Config{
		Server:   ServerConfig{Addr: ":8000"},
		Database: DatabaseConfig{Path: "deckserve.db"},
		Media:    MediaConfig{Dir: "media"},
		Client:   ClientConfig{Dir: "ui/dist/ui"},
		Sources:  SourcesConfig{ReposDir: "repos"},
		Import: ImportConfig{
			MaxUploadBytes: 1 << 28, // 256 MiB
			Tokenize:       true,
		},
	}
}

// Load resolves the configuration. flags may be nil; when given it is
// expected to carry dotted keys (server.addr, database.path, ...) plus
// an optional "config" flag naming the YAML file.
func Load(flags *pflag.FlagSet) (*Config, error) {
	cfg := Default()
	k := koanf.New(".")

	path, explicit := configPath(flags)
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
			}
		} else if explicit {
			return nil, fmt.Errorf("config file %s not readable: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment config: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, fmt.Errorf("failed to load flag config: %w", err)
		}
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// configPath picks the config file path: --config flag, then
// DECKSERVE_CONFIG, then the default. explicit reports whether the
// path was requested rather than defaulted.
func configPath(flags *pflag.FlagSet) (string, bool) {
	if flags != nil {
		if f := flags.Lookup("config"); f != nil && f.Changed {
			return f.Value.String(), true
		}
	}
	if v := os.Getenv(EnvPrefix + "CONFIG"); v != "" {
		return v, true
	}
	return DefaultConfigPath, false
}

// envKey maps DECKSERVE_SERVER_ADDR to server.addr. Only the first
// underscore becomes a level separator, so keys like
// import.max_upload_bytes survive.
func envKey(name string) string {
	key := strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
	if key == "config" {
		return "" // handled by configPath, not a config key
	}
	return strings.Replace(key, "_", ".", 1)
}
