package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "TINYRDB"

type TinyRDBConfig struct {
	AppName string `mapstructure:"app_name"`

	Storage struct {
		Workdir    string `mapstructure:"workdir"`
		BTreeOrder int    `mapstructure:"btree_order"`
	} `mapstructure:"storage"`

	Server struct {
		Addr  string `mapstructure:"addr"`
		Debug bool   `mapstructure:"debug"`
	} `mapstructure:"server"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_name", "tinyrdb")
	v.SetDefault("storage.workdir", "./data")
	v.SetDefault("storage.btree_order", 4)
	v.SetDefault("server.addr", "127.0.0.1:5433")
	v.SetDefault("server.debug", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// flagKeys maps command-line flags to config keys.
var flagKeys = map[string]string{
	"data-dir":    "storage.workdir",
	"btree-order": "storage.btree_order",
	"addr":        "server.addr",
	"debug":       "server.debug",
	"log-level":   "log.level",
	"log-format":  "log.format",
}

// RegisterFlags adds the flags LoadConfig understands to fs. Their defaults
// are empty: an unset flag never hides the file or the environment.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("data-dir", "", "directory holding the database files")
	fs.Int("btree-order", 0, "branching factor of B-tree indexes")
	fs.String("addr", "", "address the server listens on")
	fs.Bool("debug", false, "log at debug level")
	fs.String("log-level", "", "debug, info, warn or error")
	fs.String("log-format", "", "text or json")
}

// LoadConfig reads the YAML file at path, if any, on top of the defaults.
// TINYRDB_* environment variables (TINYRDB_STORAGE_WORKDIR, ...) override the
// file, and flags that were set on the command line override both.
func LoadConfig(path string, flags *pflag.FlagSet) (*TinyRDBConfig, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	var cfg TinyRDBConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *TinyRDBConfig) validate() error {
	var errs []error
	if c.Storage.Workdir == "" {
		errs = append(errs, errors.New("storage.workdir is empty"))
	}
	if c.Storage.BTreeOrder < 3 {
		errs = append(errs, fmt.Errorf("storage.btree_order must be at least 3, got %d", c.Storage.BTreeOrder))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return l, nil
}

// NewLogger builds the process logger from the log section. server.debug
// forces debug level.
func (c *TinyRDBConfig) NewLogger() *slog.Logger {
	level, _ := parseLevel(c.Log.Level)
	if c.Server.Debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
