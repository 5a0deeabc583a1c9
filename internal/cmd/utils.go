package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/hargabyte/carve/internal/config"
	"github.com/hargabyte/carve/internal/isolate"
	"github.com/hargabyte/carve/internal/output"
	"github.com/hargabyte/carve/internal/parser"
	"github.com/hargabyte/carve/internal/preview"
	"github.com/hargabyte/carve/internal/syntax"
	"github.com/spf13/cobra"
)

// Shared utility functions for command implementations

// loadConfig reads --config when given, otherwise the nearest .carve/config.yaml
// above the working directory. Defaults are returned when neither exists.
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromPath(configPath)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}
	return config.Load(cwd)
}

// newLogger builds the stderr logger. --verbose forces debug level.
func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// newEngine builds an engine with the configured drift window. lang forces a
// grammar when non-empty.
func newEngine(cmd *cobra.Command, cfg *config.Config, lang string) (*isolate.Engine, error) {
	frontend := parser.Frontend{}
	if lang != "" {
		l := parser.Language(strings.ToLower(lang))
		if l == "c++" || l == "cxx" {
			l = parser.Cpp
		}
		if l != parser.C && l != parser.Cpp {
			return nil, &parser.UnsupportedLanguageError{Language: lang}
		}
		frontend.Language = l
	}

	return isolate.New(frontend,
		isolate.WithLogger(newLogger(cmd.ErrOrStderr(), cfg)),
		isolate.WithMaxDrift(cfg.Extract.MaxDriftOrDefault()),
	), nil
}

// reportFormat returns --format when set, otherwise output.format from config.
func reportFormat(cfg *config.Config) (output.Format, error) {
	name := outputFormat
	if name == "" {
		name = cfg.Output.Format
	}
	if name == "" {
		return output.DefaultFormat, nil
	}
	return output.ParseFormat(name)
}

// writeReport renders v to the command's stdout in the selected format.
func writeReport(cmd *cobra.Command, cfg *config.Config, v any) error {
	format, err := reportFormat(cfg)
	if err != nil {
		return err
	}
	formatter, err := output.GetFormatter(format)
	if err != nil {
		return err
	}
	return formatter.FormatToWriter(cmd.OutOrStdout(), v)
}

// printText prints produced source to stdout, highlighted on terminals.
func printText(cmd *cobra.Command, text, filename string) error {
	return preview.Highlighter{}.Write(cmd.OutOrStdout(), text, filename)
}

// buildTargets pairs every name with the parsed kind.
func buildTargets(kind string, names []string) ([]isolate.Target, error) {
	k, err := syntax.ParseKind(kind)
	if err != nil {
		return nil, err
	}

	targets := make([]isolate.Target, 0, len(names))
	for _, name := range names {
		if name = strings.TrimSpace(name); name != "" {
			targets = append(targets, isolate.Target{Kind: k, Name: name})
		}
	}
	return targets, nil
}

// flagBool returns the flag value when it was set on the command line,
// otherwise fallback.
func flagBool(cmd *cobra.Command, name string, value, fallback bool) bool {
	if cmd.Flags().Changed(name) {
		return value
	}
	return fallback
}
