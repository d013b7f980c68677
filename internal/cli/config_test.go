package cli

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveConfigDefaults(t *testing.T) {
	cfg, err := resolveConfig(newViper())
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 10000, cfg.MaxSteps)
	assert.Equal(t, 40*time.Millisecond, cfg.Tick)
	assert.Equal(t, 30*time.Second, cfg.Duration)
	assert.Empty(t, cfg.StorePath)
	assert.Empty(t, cfg.ConfigSource)
}

func TestReadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hyperplay.yaml")
	content := `
log:
  level: debug
engine:
  max_steps: 50
play:
  tick: 10ms
  duration: 5s
store:
  path: /var/lib/hyperplay/trace.db
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	v := newViper()
	require.NoError(t, readConfig(v, path))
	cfg, err := resolveConfig(v)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 50, cfg.MaxSteps)
	assert.Equal(t, 10*time.Millisecond, cfg.Tick)
	assert.Equal(t, 5*time.Second, cfg.Duration)
	assert.Equal(t, "/var/lib/hyperplay/trace.db", cfg.StorePath)
	assert.Equal(t, path, cfg.ConfigSource)
}

func TestReadConfigMissingExplicitFile(t *testing.T) {
	err := readConfig(newViper(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config")
}

func TestReadConfigDefaultSearchFindsNothing(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())

	v := newViper()
	require.NoError(t, readConfig(v, ""))
	assert.Empty(t, v.ConfigFileUsed())
}

func TestReadConfigDefaultSearchFindsWorkingDirectory(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile("hyperplay.yaml", []byte("play:\n  tick: 25ms\n"), 0644))

	v := newViper()
	require.NoError(t, readConfig(v, ""))
	cfg, err := resolveConfig(v)
	require.NoError(t, err)
	assert.Equal(t, 25*time.Millisecond, cfg.Tick)
}

func TestEnvironmentOverridesDefaults(t *testing.T) {
	t.Setenv("HYPERPLAY_PLAY_TICK", "20ms")
	t.Setenv("HYPERPLAY_STORE_PATH", "env.db")

	cfg, err := resolveConfig(newViper())
	require.NoError(t, err)
	assert.Equal(t, 20*time.Millisecond, cfg.Tick)
	assert.Equal(t, "env.db", cfg.StorePath)
}

func TestFlagsOverrideConfig(t *testing.T) {
	flags := pflag.NewFlagSet("play", pflag.ContinueOnError)
	flags.Duration("tick", 40*time.Millisecond, "")
	flags.String("db", "", "")
	require.NoError(t, flags.Parse([]string{"--tick", "5ms", "--db", "flag.db"}))

	v := newViper()
	v.Set(KeyMaxSteps, 7)
	require.NoError(t, bindFlags(v, flags))
	cfg, err := resolveConfig(v)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Millisecond, cfg.Tick)
	assert.Equal(t, "flag.db", cfg.StorePath)
	assert.Equal(t, 7, cfg.MaxSteps)
}

func TestResolveConfigInvalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value any
		want  string
	}{
		{"bad tick", KeyPlayTick, "soon", "play.tick: invalid duration"},
		{"zero tick", KeyPlayTick, "0s", "must be positive"},
		{"bad duration", KeyPlayDuration, "forever", "play.duration: invalid duration"},
		{"zero max steps", KeyMaxSteps, 0, "must be positive"},
		{"unknown level", KeyLogLevel, "loud", "unknown level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newViper()
			v.Set(tt.key, tt.value)
			_, err := resolveConfig(v)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := parseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestConfigureLogging(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	buf := &bytes.Buffer{}
	require.NoError(t, configureLogging(buf, "warn", false))
	slog.Info("hidden")
	slog.Warn("shown", "object", "video")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "msg=shown")
	assert.Contains(t, buf.String(), "object=video")
}

func TestConfigureLoggingVerboseForcesDebug(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	buf := &bytes.Buffer{}
	require.NoError(t, configureLogging(buf, "error", true))
	slog.Debug("details")
	assert.Contains(t, buf.String(), "msg=details")
}
