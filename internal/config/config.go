// Package config loads carve settings from .carve/config.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is the name of the carve configuration file
const ConfigFileName = "config.yaml"

// ConfigDirName is the name of the carve configuration directory
const ConfigDirName = ".carve"

// MaxDriftLimit is the largest accepted extract.max_drift.
const MaxDriftLimit = 64

// Config holds all carve configuration
type Config struct {
	Extract ExtractConfig `yaml:"extract"`
	Redact  RedactConfig  `yaml:"redact"`
	Batch   BatchConfig   `yaml:"batch"`
	Output  OutputConfig  `yaml:"output"`
	Log     LogConfig     `yaml:"log"`
}

// ExtractConfig holds defaults for extraction requests.
// Pointer fields distinguish "unset" from an explicit false or zero.
type ExtractConfig struct {
	FollowCalls       *bool `yaml:"follow_calls"`
	IncludeDirectives *bool `yaml:"include_directives"`
	MaxDrift          *int  `yaml:"max_drift"`
}

// RedactConfig holds defaults for redaction requests
type RedactConfig struct {
	DefaultTargets []string `yaml:"default_targets"`
}

// BatchConfig selects the files a batch run processes
type BatchConfig struct {
	Patterns []string `yaml:"patterns"`
	Exclude  []string `yaml:"exclude"`
}

// OutputConfig holds configuration for report formatting
type OutputConfig struct {
	Format string `yaml:"format"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `yaml:"level"`
}

// ErrConfigNotFound is returned when no config file can be found
var ErrConfigNotFound = errors.New("config file not found")

// ErrInvalidConfig is returned when config validation fails
var ErrInvalidConfig = errors.New("invalid configuration")

// FollowCallsOrDefault returns extract.follow_calls, false when unset.
func (c ExtractConfig) FollowCallsOrDefault() bool {
	return c.FollowCalls != nil && *c.FollowCalls
}

// IncludeDirectivesOrDefault returns extract.include_directives, true when unset.
func (c ExtractConfig) IncludeDirectivesOrDefault() bool {
	return c.IncludeDirectives == nil || *c.IncludeDirectives
}

// MaxDriftOrDefault returns extract.max_drift, 10 when unset.
func (c ExtractConfig) MaxDriftOrDefault() int {
	if c.MaxDrift == nil {
		return defaultMaxDrift
	}
	return *c.MaxDrift
}

// Load reads config from .carve/config.yaml, falling back to defaults.
// It searches for the config directory starting from workDir and walking up
// the directory tree. If no config is found, returns defaults.
func Load(workDir string) (*Config, error) {
	configDir, err := FindConfigDir(workDir)
	if err != nil {
		return DefaultConfig(), nil
	}

	return LoadFromPath(filepath.Join(configDir, ConfigFileName))
}

// LoadFromPath reads config from a specific path.
// Merges loaded config with defaults and validates the result.
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	loaded := &Config{}
	if err := yaml.Unmarshal(data, loaded); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	merged := Merge(loaded, DefaultConfig())
	if err := Validate(merged); err != nil {
		return nil, err
	}

	return merged, nil
}

// FindConfigDir locates the .carve directory by walking up from startDir.
func FindConfigDir(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	currentDir := absDir
	for {
		configDir := filepath.Join(currentDir, ConfigDirName)
		info, err := os.Stat(configDir)
		if err == nil && info.IsDir() {
			return configDir, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return "", ErrConfigNotFound
		}
		currentDir = parentDir
	}
}

// EnsureConfigDir creates the .carve directory if it doesn't exist.
// Returns the path to the .carve directory.
func EnsureConfigDir(workDir string) (string, error) {
	absDir, err := filepath.Abs(workDir)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	configDir := filepath.Join(absDir, ConfigDirName)

	info, err := os.Stat(configDir)
	if err == nil {
		if info.IsDir() {
			return configDir, nil
		}
		return "", fmt.Errorf("%s exists but is not a directory", configDir)
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}

	return configDir, nil
}

// Validate checks that config values are valid.
func Validate(cfg *Config) error {
	if d := cfg.Extract.MaxDriftOrDefault(); d < 0 || d > MaxDriftLimit {
		return fmt.Errorf("%w: extract.max_drift must be between 0 and %d, got %d",
			ErrInvalidConfig, MaxDriftLimit, d)
	}

	for _, name := range cfg.Redact.DefaultTargets {
		if name == "" {
			return fmt.Errorf("%w: redact.default_targets contains an empty name", ErrInvalidConfig)
		}
	}

	if len(cfg.Batch.Patterns) == 0 {
		return fmt.Errorf("%w: batch.patterns must not be empty", ErrInvalidConfig)
	}

	if !isOneOf(cfg.Output.Format, ValidFormats) {
		return fmt.Errorf("%w: output.format must be one of %v, got %q",
			ErrInvalidConfig, ValidFormats, cfg.Output.Format)
	}

	if !isOneOf(cfg.Log.Level, ValidLogLevels) {
		return fmt.Errorf("%w: log.level must be one of %v, got %q",
			ErrInvalidConfig, ValidLogLevels, cfg.Log.Level)
	}

	return nil
}

// SaveDefault writes the default configuration to .carve/config.yaml in workDir.
// Creates the .carve directory if it doesn't exist.
func SaveDefault(workDir string) (string, error) {
	configDir, err := EnsureConfigDir(workDir)
	if err != nil {
		return "", err
	}

	configPath := filepath.Join(configDir, ConfigFileName)

	if _, err := os.Stat(configPath); err == nil {
		return "", fmt.Errorf("config file already exists: %s", configPath)
	}

	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return "", fmt.Errorf("marshaling config: %w", err)
	}

	header := "# carve configuration\n# Command-line flags override these values.\n\n"
	data = append([]byte(header), data...)

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return "", fmt.Errorf("writing config file: %w", err)
	}

	return configPath, nil
}
