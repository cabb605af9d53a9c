package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"

	"stereoguard/internal/logger"
)

// EnvPrefix prefixes every environment override, e.g.
// STEREOGUARD_GENERAL_POLL_INTERVAL_MS.
const EnvPrefix = "STEREOGUARD"

const (
	defaultPollIntervalMS   = 500
	minPollIntervalMS       = 50
	defaultReconnectDelayMS = 1000
	defaultRetryDelayMS     = 500
)

// Config stores runtime configuration.
type Config struct {
	General   GeneralConfig   `toml:"general"`
	Bluetooth BluetoothConfig `toml:"bluetooth"`
	Process   ProcessConfig   `toml:"process"`
	Audio     AudioConfig     `toml:"audio"`
	Logging   logger.Config   `toml:"logging"`
	Feed      ListenConfig    `toml:"feed"`
	Metrics   ListenConfig    `toml:"metrics"`

	// Path is the file the values were read from, empty when none was found.
	Path string `toml:"-" ignored:"true"`
}

type GeneralConfig struct {
	PollIntervalMS int  `toml:"poll_interval_ms" split_words:"true"`
	PreferStereo   bool `toml:"prefer_stereo" split_words:"true"`
}

type BluetoothConfig struct {
	ReconnectDelayMS int `toml:"reconnect_delay_ms" split_words:"true"`
	RetryDelayMS     int `toml:"retry_delay_ms" split_words:"true"`
}

type ProcessConfig struct {
	RequireConfirmation bool   `toml:"require_confirmation" split_words:"true"`
	ElevationCommand    string `toml:"elevation_command" split_words:"true"`
}

type AudioConfig struct {
	PactlCommand string `toml:"pactl_command" split_words:"true"`
}

// ListenConfig is an optional local listener. An empty Address disables it.
type ListenConfig struct {
	Address string `toml:"address"`
}

func (c Config) PollInterval() time.Duration {
	return time.Duration(c.General.PollIntervalMS) * time.Millisecond
}

func (c Config) ReconnectDelay() time.Duration {
	return time.Duration(c.Bluetooth.ReconnectDelayMS) * time.Millisecond
}

func (c Config) RetryDelay() time.Duration {
	return time.Duration(c.Bluetooth.RetryDelayMS) * time.Millisecond
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		General: GeneralConfig{PollIntervalMS: defaultPollIntervalMS},
		Bluetooth: BluetoothConfig{
			ReconnectDelayMS: defaultReconnectDelayMS,
			RetryDelayMS:     defaultRetryDelayMS,
		},
		Process: ProcessConfig{
			RequireConfirmation: true,
			ElevationCommand:    "pkexec",
		},
		Audio:   AudioConfig{PactlCommand: "pactl"},
		Logging: logger.Config{Level: "info", Output: "stderr"},
	}
}

// Load layers defaults, an optional TOML file and environment overrides.
// The file is $STEREOGUARD_CONFIG, else the first existing of
// ~/.config/stereoguard/config.toml and ./config.toml.
func Load() (Config, error) {
	cfg := Default()

	path, explicit, err := resolvePath()
	if err != nil {
		return Config{}, err
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse %s: %w", path, err)
			}
			cfg.Path = path
		case errors.Is(err, os.ErrNotExist) && !explicit:
		default:
			return Config{}, fmt.Errorf("read %s: %w", path, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("environment overrides: %w", err)
	}

	normalize(&cfg)
	return cfg, nil
}

func resolvePath() (path string, explicit bool, err error) {
	if p := strings.TrimSpace(os.Getenv(EnvPrefix + "_CONFIG")); p != "" {
		return p, true, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", false, errors.New("could not determine home directory")
	}
	return firstExisting(
		filepath.Join(home, ".config", "stereoguard", "config.toml"),
		"config.toml",
	), false, nil
}

func normalize(cfg *Config) {
	if cfg.General.PollIntervalMS < minPollIntervalMS {
		cfg.General.PollIntervalMS = defaultPollIntervalMS
	}
	if cfg.Bluetooth.ReconnectDelayMS <= 0 {
		cfg.Bluetooth.ReconnectDelayMS = defaultReconnectDelayMS
	}
	if cfg.Bluetooth.RetryDelayMS <= 0 {
		cfg.Bluetooth.RetryDelayMS = defaultRetryDelayMS
	}
	cfg.Audio.PactlCommand = firstNonEmpty(cfg.Audio.PactlCommand, "pactl")
	cfg.Process.ElevationCommand = firstNonEmpty(cfg.Process.ElevationCommand, "pkexec")
	cfg.Logging.Output = firstNonEmpty(cfg.Logging.Output, "stderr")
	cfg.Feed.Address = strings.TrimSpace(cfg.Feed.Address)
	cfg.Metrics.Address = strings.TrimSpace(cfg.Metrics.Address)
}

func firstExisting(paths ...string) string {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	if len(paths) == 0 {
		return ""
	}
	return paths[0]
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}
