package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Configuration keys. Flags bind to the same keys and win over the config
// file and environment (HYPERPLAY_LOG_LEVEL, HYPERPLAY_STORE_PATH, ...).
const (
	KeyLogLevel     = "log.level"
	KeyMaxSteps     = "engine.max_steps"
	KeyPlayTick     = "play.tick"
	KeyPlayDuration = "play.duration"
	KeyStorePath    = "store.path"
)

// Config is the resolved configuration shared by all commands.
type Config struct {
	LogLevel     string
	MaxSteps     int
	Tick         time.Duration
	Duration     time.Duration
	StorePath    string
	ConfigSource string // config file used, "" if none
}

// flagKeys maps command flags to the configuration key they override.
var flagKeys = map[string]string{
	"duration":  KeyPlayDuration,
	"tick":      KeyPlayTick,
	"db":        KeyStorePath,
	"max-steps": KeyMaxSteps,
}

// bindFlags binds the flags of the command being executed. Several
// commands share flag names (--db), and viper keeps one flag per key, so
// binding happens per execution instead of when commands are built.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		if f := flags.Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}
	return nil
}

// newViper creates a viper instance with defaults and environment
// binding. Each root command owns its own instance so tests stay isolated.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyMaxSteps, 10000)
	v.SetDefault(KeyPlayTick, "40ms")
	v.SetDefault(KeyPlayDuration, "30s")
	v.SetDefault(KeyStorePath, "")

	v.SetEnvPrefix("HYPERPLAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// readConfig loads the config file. An explicit file must exist; the
// default search (./hyperplay.yaml, then $HOME/.config/hyperplay) may
// find nothing.
func readConfig(v *viper.Viper, file string) error {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("hyperplay")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "hyperplay"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("reading config: %w", err)
	}
	return nil
}

// resolveConfig reads typed values out of v.
func resolveConfig(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		LogLevel:     v.GetString(KeyLogLevel),
		MaxSteps:     v.GetInt(KeyMaxSteps),
		StorePath:    v.GetString(KeyStorePath),
		ConfigSource: v.ConfigFileUsed(),
	}

	var err error
	if cfg.Tick, err = parseDurationKey(v, KeyPlayTick); err != nil {
		return nil, err
	}
	if cfg.Duration, err = parseDurationKey(v, KeyPlayDuration); err != nil {
		return nil, err
	}
	if cfg.Tick <= 0 {
		return nil, fmt.Errorf("%s must be positive, got %s", KeyPlayTick, cfg.Tick)
	}
	if cfg.MaxSteps <= 0 {
		return nil, fmt.Errorf("%s must be positive, got %d", KeyMaxSteps, cfg.MaxSteps)
	}
	if _, err := parseLevel(cfg.LogLevel); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseDurationKey(v *viper.Viper, key string) (time.Duration, error) {
	raw := v.GetString(key)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, raw)
	}
	return d, nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("%s: unknown level %q (want debug|info|warn|error)", KeyLogLevel, s)
}

// configureLogging installs the default slog handler on w. Verbose
// forces debug level.
func configureLogging(w io.Writer, level string, verbose bool) error {
	lvl, err := parseLevel(level)
	if err != nil {
		return err
	}
	if verbose {
		lvl = slog.LevelDebug
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
	return nil
}
