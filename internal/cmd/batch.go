package cmd

import (
	"fmt"
	"strings"

	"github.com/hargabyte/carve/internal/batch"
	"github.com/hargabyte/carve/internal/isolate"
	"github.com/hargabyte/carve/internal/preview"
	"github.com/spf13/cobra"
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch DIR",
	Short: "Extract or redact the same entities in every file under a directory",
	Long: `Batch runs one extract or redact request against every C/C++ file under DIR.

Files are selected with batch.patterns from the config (or --pattern) and
filtered by batch.exclude (or --exclude). Build directories created by CMake,
Meson or autotools are skipped automatically.

Outputs are written under --out-dir at the same relative path as their input.
A failing file is recorded in the report and does not stop the run; the
command exits non-zero if any file failed.`,
	Example: `  carve batch submissions/ --mode redact --names main --out-dir stripped/
  carve batch submissions/ --mode extract --names add,sub --follow-calls --out-dir units/
  carve batch src/ --mode redact --names main --pattern '**/*.c' --exclude 'tests/**'`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

var (
	batchMode        string
	batchNames       string
	batchKind        string
	batchOutDir      string
	batchPatterns    []string
	batchExclude     []string
	batchFollowCalls bool
	batchIncludes    bool
	batchNoProgress  bool
)

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().StringVar(&batchMode, "mode", "redact", "Request mode (extract|redact)")
	batchCmd.Flags().StringVar(&batchNames, "names", "", "Comma-separated entity names (redact default: redact.default_targets)")
	batchCmd.Flags().StringVar(&batchKind, "kind", "function", "Entity kind (function|variable|using-directive|using-declaration)")
	batchCmd.Flags().StringVar(&batchOutDir, "out-dir", "", "Directory receiving one output per input (empty: dry run)")
	batchCmd.Flags().StringSliceVar(&batchPatterns, "pattern", nil, "Glob selecting files, relative to DIR (repeatable)")
	batchCmd.Flags().StringSliceVar(&batchExclude, "exclude", nil, "Additional exclude globs (repeatable)")
	batchCmd.Flags().BoolVar(&batchFollowCalls, "follow-calls", false, "Follow same-file calls from each target")
	batchCmd.Flags().BoolVar(&batchIncludes, "includes", true, "Copy #include lines in extract mode")
	batchCmd.Flags().BoolVar(&batchNoProgress, "no-progress", false, "Disable the progress bar")
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	mode := isolate.Mode(strings.ToLower(batchMode))
	if mode != isolate.ModeExtract && mode != isolate.ModeRedact {
		return fmt.Errorf("invalid mode: %q (expected extract or redact)", batchMode)
	}

	var names []string
	if batchNames != "" {
		names = strings.Split(batchNames, ",")
	} else if mode == isolate.ModeRedact {
		names = cfg.Redact.DefaultTargets
	}
	targets, err := buildTargets(batchKind, names)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		return fmt.Errorf("--names is required")
	}

	patterns := cfg.Batch.Patterns
	if len(batchPatterns) > 0 {
		patterns = batchPatterns
	}
	exclude := append(append([]string(nil), cfg.Batch.Exclude...), batchExclude...)

	engine, err := newEngine(cmd, cfg, "")
	if err != nil {
		return err
	}

	// extract.follow_calls only widens extractions; a redaction removes
	// callees only when asked on the command line, as 'carve redact' does.
	followCalls := batchFollowCalls
	if mode == isolate.ModeExtract {
		followCalls = flagBool(cmd, "follow-calls", batchFollowCalls, cfg.Extract.FollowCallsOrDefault())
	}

	opts := batch.Options{
		Root:              args[0],
		Patterns:          patterns,
		Exclude:           exclude,
		Mode:              mode,
		Targets:           targets,
		FollowCalls:       followCalls,
		IncludeDirectives: flagBool(cmd, "includes", batchIncludes, cfg.Extract.IncludeDirectivesOrDefault()),
		OutDir:            batchOutDir,
		Logger:            newLogger(cmd.ErrOrStderr(), cfg),
	}
	if stderr := cmd.ErrOrStderr(); !batchNoProgress && preview.IsTerminal(stderr) {
		opts.Progress = stderr
	}

	report, err := batch.Run(engine, opts)
	if err != nil {
		return err
	}

	if err := writeReport(cmd, cfg, report); err != nil {
		return err
	}
	if report.Failed > 0 {
		return fmt.Errorf("%d of %d files failed", report.Failed, report.Processed)
	}
	return nil
}
