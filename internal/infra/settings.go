package infra

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap/zapcore"

	"github.com/eliteGoblin/focusd/dlc_deploy/internal/domain"
)

const (
	// SettingsDirName is the directory under the XDG config home.
	SettingsDirName = "dlcdeploy"
	// SettingsFileName is the settings file inside SettingsDirName.
	SettingsFileName = "config.toml"
	// SettingsEnvVar overrides the settings file location.
	SettingsEnvVar = "DLCDEPLOY_CONFIG"
)

// ErrInvalidSettings wraps every settings validation failure.
var ErrInvalidSettings = errors.New("invalid settings")

// Settings holds user defaults for the CLI. Every field is optional.
type Settings struct {
	DefaultProxy    string `toml:"default_proxy"`
	DefaultPlatform string `toml:"default_platform"`
	LogLevel        string `toml:"log_level"`
	LogFile         string `toml:"log_file"`
	ScanProcesses   bool   `toml:"scan_processes"`
	RetryInterval   string `toml:"retry_interval"`
	RetryAttempts   int    `toml:"retry_attempts"`
}

// DefaultSettings returns the settings used when no file exists.
func DefaultSettings() Settings {
	return Settings{
		DefaultProxy:    "version",
		DefaultPlatform: string(domain.PlatformSteam),
		LogLevel:        "warn",
		ScanProcesses:   false,
		RetryInterval:   "30s",
		RetryAttempts:   10,
	}
}

// DefaultSettingsPath returns $DLCDEPLOY_CONFIG, or the XDG location.
func DefaultSettingsPath() string {
	if p := os.Getenv(SettingsEnvVar); p != "" {
		return p
	}
	return filepath.Join(xdg.ConfigHome, SettingsDirName, SettingsFileName)
}

// LoadSettings reads the settings file. A missing file yields the defaults;
// keys present in the file override them.
func LoadSettings(path string) (Settings, error) {
	settings := DefaultSettings()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return settings, nil
		}
		return settings, fmt.Errorf("read settings %s: %w", path, err)
	}
	return ParseSettings(data, path)
}

// ParseSettings decodes TOML settings on top of the defaults. Unknown keys
// are rejected so typos do not silently fall back to defaults.
func ParseSettings(data []byte, source string) (Settings, error) {
	settings := DefaultSettings()

	decoder := toml.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&settings); err != nil {
		return DefaultSettings(), fmt.Errorf("%w: %s: %v", ErrInvalidSettings, source, err)
	}
	if err := settings.Validate(); err != nil {
		return DefaultSettings(), fmt.Errorf("%s: %w", source, err)
	}
	return settings, nil
}

// Validate checks field values.
func (s Settings) Validate() error {
	if s.DefaultPlatform != "" {
		if _, err := domain.ParsePlatform(s.DefaultPlatform); err != nil {
			return fmt.Errorf("%w: default_platform: %v", ErrInvalidSettings, err)
		}
	}
	if _, err := s.Level(); err != nil {
		return err
	}
	if _, err := s.Interval(); err != nil {
		return err
	}
	if s.RetryAttempts < 0 {
		return fmt.Errorf("%w: retry_attempts must not be negative", ErrInvalidSettings)
	}
	return nil
}

// Level parses log_level.
func (s Settings) Level() (zapcore.Level, error) {
	if s.LogLevel == "" {
		return zapcore.InfoLevel, nil
	}
	lvl, err := zapcore.ParseLevel(strings.ToLower(s.LogLevel))
	if err != nil {
		return zapcore.InfoLevel, fmt.Errorf("%w: log_level: %v", ErrInvalidSettings, err)
	}
	return lvl, nil
}

// Interval parses retry_interval.
func (s Settings) Interval() (time.Duration, error) {
	if s.RetryInterval == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s.RetryInterval)
	if err != nil {
		return 0, fmt.Errorf("%w: retry_interval: %v", ErrInvalidSettings, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: retry_interval must not be negative", ErrInvalidSettings)
	}
	return d, nil
}
