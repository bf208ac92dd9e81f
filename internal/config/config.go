// Package config loads recorder settings from an optional YAML file and
// IRSDKREC_* environment variables.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "IRSDKREC"

type Config struct {
	OutputDir       string        `mapstructure:"output_dir"`
	SessionInfoFile string        `mapstructure:"session_info_file"`
	TelemetryFile   string        `mapstructure:"telemetry_file"`
	BufferSize      int           `mapstructure:"buffer_size"`
	PolicyPath      string        `mapstructure:"policy_path"`
	ArchivePath     string        `mapstructure:"archive_path"`
	LogLevel        string        `mapstructure:"log_level"`
	FailureBuffer   int           `mapstructure:"failure_buffer"`
	WatchDebounce   time.Duration `mapstructure:"watch_debounce"`
}

func DefaultConfig() Config {
	return Config{
		OutputDir:       ".",
		SessionInfoFile: "SessionInfo.txt",
		TelemetryFile:   "TelemetryData.txt",
		BufferSize:      1 << 20,
		LogLevel:        "info",
		FailureBuffer:   8,
		WatchDebounce:   100 * time.Millisecond,
	}
}

// Load layers defaults, the file at path (skipped when path is empty) and the
// environment, then validates the result.
func Load(path string) (Config, error) {
	v := viper.New()
	def := DefaultConfig()
	v.SetDefault("output_dir", def.OutputDir)
	v.SetDefault("session_info_file", def.SessionInfoFile)
	v.SetDefault("telemetry_file", def.TelemetryFile)
	v.SetDefault("buffer_size", def.BufferSize)
	v.SetDefault("policy_path", def.PolicyPath)
	v.SetDefault("archive_path", def.ArchivePath)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("failure_buffer", def.FailureBuffer)
	v.SetDefault("watch_debounce", def.WatchDebounce)

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.SessionInfoFile) == "" {
		return errors.New("config: session_info_file must be set")
	}
	if strings.TrimSpace(c.TelemetryFile) == "" {
		return errors.New("config: telemetry_file must be set")
	}
	if c.BufferSize <= 0 {
		return fmt.Errorf("config: buffer_size must be positive, got %d", c.BufferSize)
	}
	if c.FailureBuffer < 1 {
		return fmt.Errorf("config: failure_buffer must be positive, got %d", c.FailureBuffer)
	}
	if c.WatchDebounce < 0 {
		return fmt.Errorf("config: watch_debounce must be >= 0, got %s", c.WatchDebounce)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log_level %q", c.LogLevel)
	}
	return nil
}

// SessionInfoPath is SessionInfoFile resolved against OutputDir.
func (c Config) SessionInfoPath() string {
	return c.resolve(c.SessionInfoFile)
}

func (c Config) TelemetryPath() string {
	return c.resolve(c.TelemetryFile)
}

func (c Config) resolve(name string) string {
	if filepath.IsAbs(name) || c.OutputDir == "" {
		return name
	}
	return filepath.Join(c.OutputDir, name)
}
