package config

import "github.com/hargabyte/carve/internal/parser"

const defaultMaxDrift = 10

// DefaultConfig returns configuration with sensible defaults.
// These defaults are used when no config file exists or when
// config file is missing specific fields.
func DefaultConfig() *Config {
	return &Config{
		Extract: ExtractConfig{
			FollowCalls:       boolPtr(false),
			IncludeDirectives: boolPtr(true),
			MaxDrift:          intPtr(defaultMaxDrift),
		},
		Redact: RedactConfig{
			DefaultTargets: []string{"main"},
		},
		Batch: BatchConfig{
			Patterns: sourcePatterns(),
			Exclude: []string{
				".git/**",
				"build/**",
				"third_party/**",
				"**/node_modules/**",
			},
		},
		Output: OutputConfig{
			Format: "yaml",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Merge merges loaded config with defaults.
// Values from loaded config take precedence over defaults.
// Returns a new Config with merged values.
func Merge(loaded, defaults *Config) *Config {
	return &Config{
		Extract: mergeExtractConfig(loaded.Extract, defaults.Extract),
		Redact:  mergeRedactConfig(loaded.Redact, defaults.Redact),
		Batch:   mergeBatchConfig(loaded.Batch, defaults.Batch),
		Output:  mergeOutputConfig(loaded.Output, defaults.Output),
		Log:     mergeLogConfig(loaded.Log, defaults.Log),
	}
}

func mergeExtractConfig(loaded, defaults ExtractConfig) ExtractConfig {
	result := defaults

	// Pointers are nil only when the key was absent from the file.
	if loaded.FollowCalls != nil {
		result.FollowCalls = loaded.FollowCalls
	}
	if loaded.IncludeDirectives != nil {
		result.IncludeDirectives = loaded.IncludeDirectives
	}
	if loaded.MaxDrift != nil {
		result.MaxDrift = loaded.MaxDrift
	}

	return result
}

func mergeRedactConfig(loaded, defaults RedactConfig) RedactConfig {
	if len(loaded.DefaultTargets) > 0 {
		return loaded
	}
	return defaults
}

func mergeBatchConfig(loaded, defaults BatchConfig) BatchConfig {
	result := BatchConfig{}

	if len(loaded.Patterns) > 0 {
		result.Patterns = loaded.Patterns
	} else {
		result.Patterns = defaults.Patterns
	}

	if len(loaded.Exclude) > 0 {
		result.Exclude = loaded.Exclude
	} else {
		result.Exclude = defaults.Exclude
	}

	return result
}

func mergeOutputConfig(loaded, defaults OutputConfig) OutputConfig {
	if loaded.Format != "" {
		return loaded
	}
	return defaults
}

func mergeLogConfig(loaded, defaults LogConfig) LogConfig {
	if loaded.Level != "" {
		return loaded
	}
	return defaults
}

// ValidFormats lists the valid values for output.format
var ValidFormats = []string{"yaml", "json"}

// ValidLogLevels lists the valid values for log.level
var ValidLogLevels = []string{"debug", "info", "warn", "error"}

func isOneOf(value string, valid []string) bool {
	for _, v := range valid {
		if value == v {
			return true
		}
	}
	return false
}

func boolPtr(b bool) *bool { return &b }

func intPtr(i int) *int { return &i }

// sourcePatterns matches every translation unit the parser recognizes.
func sourcePatterns() []string {
	exts := parser.SupportedExtensions()
	patterns := make([]string, 0, len(exts))
	for _, ext := range exts {
		patterns = append(patterns, "**/*"+ext)
	}
	return patterns
}
