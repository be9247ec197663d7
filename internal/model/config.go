package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// CalendarConfig holds the configuration for one external calendar source.
type CalendarConfig struct {
	// ID is the unique identifier for this source instance.
	ID string `mapstructure:"id" yaml:"id"`

	// Type identifies the source kind ("caldav", "imap", "icsfile").
	Type string `mapstructure:"type" yaml:"type"`

	// Name is the user-defined label for this calendar.
	Name string `mapstructure:"name" yaml:"name"`

	// Enabled controls whether this source is actively polled.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// PollIntervalSec is how often (in seconds) to fetch events.
	PollIntervalSec int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`

	// Config holds source-specific key-value settings
	// (e.g., server URL, username, mailbox, file path).
	Config map[string]string `mapstructure:"config" yaml:"config"`
}

// ReminderConfig holds settings for the daily due-task reminder.
type ReminderConfig struct {
	// Enabled controls whether the daily reminder job runs.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// At is the local "HH:MM" time the reminder fires.
	At string `mapstructure:"at" yaml:"at"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	Theme string `mapstructure:"theme" yaml:"theme"`

	// RangeDays is how many days around today the agenda preloads.
	RangeDays int `mapstructure:"range_days" yaml:"range_days"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	DBPath    string           `mapstructure:"db_path" yaml:"db_path"`
	Calendars []CalendarConfig `mapstructure:"calendars" yaml:"calendars"`
	Reminder  ReminderConfig   `mapstructure:"reminder" yaml:"reminder"`
	Display   DisplayConfig    `mapstructure:"display" yaml:"display"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/taskcal/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "taskcal", "config.yaml")
}

// defaultDBPath returns the default SQLite database location.
func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "taskcal.db")
	}
	return filepath.Join(home, ".config", "taskcal", "taskcal.db")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		DBPath:    defaultDBPath(),
		Calendars: []CalendarConfig{},
		Reminder: ReminderConfig{
			Enabled: true,
			At:      "08:00",
		},
		Display: DisplayConfig{
			Theme:     "default",
			RangeDays: 31,
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("db_path", defaultDBPath())
	v.SetDefault("reminder.enabled", true)
	v.SetDefault("reminder.at", "08:00")
	v.SetDefault("display.theme", "default")
	v.SetDefault("display.range_days", 31)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaultAppConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaultAppConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if !ValidClock(cfg.Reminder.At) {
		return nil, fmt.Errorf("invalid reminder time %q, expected HH:MM", cfg.Reminder.At)
	}

	// Apply defaults for each calendar entry.
	for i := range cfg.Calendars {
		if cfg.Calendars[i].PollIntervalSec == 0 {
			cfg.Calendars[i].PollIntervalSec = 300
		}
		if !cfg.Calendars[i].Enabled {
			// Viper unmarshals missing bools as false; treat unset as true.
			key := fmt.Sprintf("calendars.%d.enabled", i)
			if !v.IsSet(key) {
				cfg.Calendars[i].Enabled = true
			}
		}
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("db_path", cfg.DBPath)
	v.Set("calendars", cfg.Calendars)
	v.Set("reminder", cfg.Reminder)
	v.Set("display", cfg.Display)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
