package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sdejongh/dirdiff/pkg/models"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides, e.g. DIRDIFF_DEFAULTS_MODE
const EnvPrefix = "DIRDIFF"

var envKeys = []string{
	"defaults.left", "defaults.right", "defaults.baseline",
	"defaults.mode", "defaults.algorithm", "defaults.ignore",
	"defaults.case_sensitive", "defaults.follow_symlinks",
	"defaults.modified_tolerance", "defaults.threads", "defaults.read_limit",
	"defaults.json_report", "defaults.text_report", "defaults.diff_tool",
	"defaults.verbosity", "defaults.fail_on", "defaults.timeout", "defaults.watch_debounce",
	"logging.file", "logging.format", "logging.level",
}

// DefaultConfigPaths returns the directories searched for config.yaml
func DefaultConfigPaths() []string {
	paths := []string{"."}
	if configDir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(configDir, "dirdiff"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "dirdiff"))
	}
	return paths
}

// DefaultConfigPath returns the default configuration file path
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return filepath.Join(home, ".config", "dirdiff", "config.yaml"), nil
}

// Load reads the configuration file at path, or searches the default
// locations when path is empty. A missing default file yields an empty
// configuration; a missing explicit file is an error. A .env file in the
// working directory and DIRDIFF_* variables override file values.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		for _, p := range DefaultConfigPaths() {
			v.AddConfigPath(p)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: %w", models.ErrConfigInvalid, err)
		}
	}

	return decode(v)
}

// LoadFromString parses configuration from a YAML string
func LoadFromString(content string) (*Config, error) {
	v := newViper()
	if err := v.ReadConfig(strings.NewReader(content)); err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrConfigInvalid, err)
	}
	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrConfigInvalid, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SaveToFile saves configuration to a YAML file
func SaveToFile(cfg *Config, path string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Encode writes the configuration as YAML
func Encode(w io.Writer, cfg *Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return enc.Close()
}
