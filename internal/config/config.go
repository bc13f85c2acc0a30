// Package config provides configuration loading for fsprof.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/blackwell-systems/fsprof/internal/logging"
	"github.com/blackwell-systems/fsprof/internal/perf"
)

// FileName is the name of the config file inside Dir().
const FileName = "config.yaml"

// EnvPrefix prefixes environment overrides, e.g. FSPROF_DB_PATH or
// FSPROF_STRING_TABLE_MAX_ENTRIES.
const EnvPrefix = "FSPROF"

// Dir returns the fsprof config directory, respecting XDG_CONFIG_HOME.
// Defaults to ~/.config/fsprof if XDG_CONFIG_HOME is not set.
func Dir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "fsprof"), nil
}

// DataDir returns ~/.fsprof, where the database and the spool live by
// default.
func DataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, ".fsprof"), nil
}

// StringTableConfig mirrors perf.TableOptions.
type StringTableConfig struct {
	MaxEntries  int  `mapstructure:"max_entries"`
	MaxBytes    int  `mapstructure:"max_bytes"`
	Dedupe      bool `mapstructure:"dedupe"`
	DedupeCache int  `mapstructure:"dedupe_cache"`
}

// Config holds every tunable of the fsprof binaries.
type Config struct {
	DBPath         string            `mapstructure:"db_path"`
	SpoolDir       string            `mapstructure:"spool_dir"`
	LogLevel       string            `mapstructure:"log_level"`
	BufferCapacity int               `mapstructure:"buffer_capacity"`
	StringTable    StringTableConfig `mapstructure:"string_table"`
	WatchInterval  time.Duration     `mapstructure:"watch_interval"`
}

// TableOptions converts the string table settings.
func (c *Config) TableOptions() perf.TableOptions {
	return perf.TableOptions{
		MaxEntries:      c.StringTable.MaxEntries,
		MaxBytes:        c.StringTable.MaxBytes,
		Dedupe:          c.StringTable.Dedupe,
		DedupeCacheSize: c.StringTable.DedupeCache,
	}
}

// Validate rejects settings the tracer or the watcher cannot run with.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return errors.New("db_path must not be empty")
	}
	if c.SpoolDir == "" {
		return errors.New("spool_dir must not be empty")
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.BufferCapacity <= 0 {
		return fmt.Errorf("buffer_capacity must be positive, got %d", c.BufferCapacity)
	}
	if c.StringTable.MaxEntries <= 0 {
		return fmt.Errorf("string_table.max_entries must be positive, got %d", c.StringTable.MaxEntries)
	}
	if c.StringTable.MaxBytes <= 0 {
		return fmt.Errorf("string_table.max_bytes must be positive, got %d", c.StringTable.MaxBytes)
	}
	if c.StringTable.Dedupe && c.StringTable.DedupeCache <= 0 {
		return fmt.Errorf("string_table.dedupe_cache must be positive when dedupe is on, got %d", c.StringTable.DedupeCache)
	}
	if c.WatchInterval < time.Second {
		return fmt.Errorf("watch_interval must be at least 1s, got %s", c.WatchInterval)
	}
	return nil
}

func setDefaults(v *viper.Viper, dataDir string) {
	table := perf.DefaultTableOptions()
	v.SetDefault("db_path", filepath.Join(dataDir, "fsprof.db"))
	v.SetDefault("spool_dir", filepath.Join(dataDir, "spool"))
	v.SetDefault("log_level", logging.DefaultLevel)
	v.SetDefault("buffer_capacity", perf.DefaultBufferCapacity)
	v.SetDefault("string_table.max_entries", table.MaxEntries)
	v.SetDefault("string_table.max_bytes", table.MaxBytes)
	v.SetDefault("string_table.dedupe", table.Dedupe)
	v.SetDefault("string_table.dedupe_cache", table.DedupeCacheSize)
	v.SetDefault("watch_interval", "30s")
}

// Load reads {dir}/config.yaml. A missing file yields the defaults;
// FSPROF_* environment variables override both.
func Load(dir string) (*Config, error) {
	return load(filepath.Join(dir, FileName), false)
}

// LoadFile reads the config file at path, which must exist.
func LoadFile(path string) (*Config, error) {
	return load(path, true)
}

func load(path string, required bool) (*Config, error) {
	dataDir, err := DataDir()
	if err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v, dataDir)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		if required || !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
	}
	return &cfg, nil
}
