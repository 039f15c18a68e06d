package config

import (
	"fmt"
	"time"

	"github.com/sdejongh/dirdiff/pkg/models"
)

// Config represents the configuration file
type Config struct {
	Defaults Profile            `mapstructure:"defaults" yaml:"defaults"`
	Profiles map[string]Profile `mapstructure:"profiles" yaml:"profiles,omitempty"`
	Logging  LoggingConfig      `mapstructure:"logging" yaml:"logging"`
}

// Profile is one layer of compare settings. Unset fields are nil so that a
// lower layer can supply them.
type Profile struct {
	Left     *string `mapstructure:"left" yaml:"left,omitempty"`
	Right    *string `mapstructure:"right" yaml:"right,omitempty"`
	Baseline *string `mapstructure:"baseline" yaml:"baseline,omitempty"`

	Mode      *string  `mapstructure:"mode" yaml:"mode,omitempty"`
	Algorithm *string  `mapstructure:"algorithm" yaml:"algorithm,omitempty"`
	Ignore    []string `mapstructure:"ignore" yaml:"ignore,omitempty"`

	CaseSensitive  *bool `mapstructure:"case_sensitive" yaml:"case_sensitive,omitempty"`
	FollowSymlinks *bool `mapstructure:"follow_symlinks" yaml:"follow_symlinks,omitempty"`

	// Durations use Go syntax, e.g. "2s" or "500ms"
	ModifiedTolerance *string `mapstructure:"modified_tolerance" yaml:"modified_tolerance,omitempty"`
	Threads           *int    `mapstructure:"threads" yaml:"threads,omitempty"`
	ReadLimit         *string `mapstructure:"read_limit" yaml:"read_limit,omitempty"`

	JSONReport *string `mapstructure:"json_report" yaml:"json_report,omitempty"`
	TextReport *string `mapstructure:"text_report" yaml:"text_report,omitempty"`
	DiffTool   *string `mapstructure:"diff_tool" yaml:"diff_tool,omitempty"`

	Verbosity     *string `mapstructure:"verbosity" yaml:"verbosity,omitempty"`
	FailOn        *string `mapstructure:"fail_on" yaml:"fail_on,omitempty"`
	Timeout       *string `mapstructure:"timeout" yaml:"timeout,omitempty"`
	WatchDebounce *string `mapstructure:"watch_debounce" yaml:"watch_debounce,omitempty"`
}

// LoggingConfig holds logging-related settings
type LoggingConfig struct {
	File       string `mapstructure:"file" yaml:"file,omitempty"` // empty = stderr
	Format     string `mapstructure:"format" yaml:"format"`       // "console" or "json"
	Level      string `mapstructure:"level" yaml:"level"`         // overrides verbosity when set
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb,omitempty"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups,omitempty"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days,omitempty"`
	Compress   bool   `mapstructure:"compress" yaml:"compress,omitempty"`
}

// Default returns the configuration written by "config init"
func Default() *Config {
	return &Config{
		Defaults: Profile{
			Mode:          ptr(string(models.ModeQuick)),
			Algorithm:     ptr(defaultAlgorithm),
			Ignore:        []string{".git/"},
			Verbosity:     ptr(string(models.VerbosityNormal)),
			FailOn:        ptr(string(models.FailDifferent)),
			WatchDebounce: ptr(defaultWatchDebounce.String()),
		},
		Logging: LoggingConfig{
			Format:     "console",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	validLogFormats := map[string]bool{"": true, "console": true, "json": true}
	if !validLogFormats[c.Logging.Format] {
		return &models.ValidationError{
			Field:   "logging.format",
			Message: "must be 'console' or 'json'",
			Err:     models.ErrConfigInvalid,
		}
	}

	validLogLevels := map[string]bool{"": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return &models.ValidationError{
			Field:   "logging.level",
			Message: "must be 'debug', 'info', 'warn', or 'error'",
			Err:     models.ErrConfigInvalid,
		}
	}

	if err := c.Defaults.validate("defaults"); err != nil {
		return err
	}
	for name, p := range c.Profiles {
		if err := p.validate("profiles." + name); err != nil {
			return err
		}
	}
	return nil
}

func (p *Profile) validate(prefix string) error {
	durations := map[string]*string{
		"modified_tolerance": p.ModifiedTolerance,
		"timeout":            p.Timeout,
		"watch_debounce":     p.WatchDebounce,
	}
	for field, v := range durations {
		if _, err := parseDuration(v); err != nil {
			return &models.ValidationError{
				Field:   prefix + "." + field,
				Message: err.Error(),
				Err:     models.ErrConfigInvalid,
			}
		}
	}
	if p.Threads != nil && *p.Threads < 1 {
		return &models.ValidationError{
			Field:   prefix + ".threads",
			Message: "must be at least 1",
			Err:     models.ErrConfigInvalid,
		}
	}
	return nil
}

func parseDuration(s *string) (*time.Duration, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	d, err := time.ParseDuration(*s)
	if err != nil {
		return nil, fmt.Errorf("invalid duration %q", *s)
	}
	return &d, nil
}

func ptr[T any](v T) *T {
	return &v
}
