// Package batch applies one isolation request shape to every matching C/C++
// file under a directory.
package batch

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/hargabyte/carve/internal/isolate"
	"github.com/schollz/progressbar/v3"
)

// Options describe a batch run.
type Options struct {
	// Root is the directory to search.
	Root string
	// Patterns select files by slash-separated path relative to Root.
	Patterns []string
	// Exclude removes files and whole directories from the selection.
	Exclude []string
	// Mode is isolate.ModeExtract or isolate.ModeRedact.
	Mode isolate.Mode
	// Targets are requested in every file.
	Targets []isolate.Target
	// FollowCalls and IncludeDirectives are passed through to each request.
	FollowCalls       bool
	IncludeDirectives bool
	// OutDir receives one output per input at the same relative path. When
	// empty, nothing is written.
	OutDir string
	// Progress, when set, receives a progress bar.
	Progress io.Writer
	// Logger receives per-file events.
	Logger *slog.Logger
}

// FileResult is the outcome for one file.
type FileResult struct {
	Path     string `yaml:"path" json:"path"`
	Output   string `yaml:"output,omitempty" json:"output,omitempty"`
	Entities int    `yaml:"entities" json:"entities"`
	Error    string `yaml:"error,omitempty" json:"error,omitempty"`
	Stage    string `yaml:"stage,omitempty" json:"stage,omitempty"`
}

// Report summarizes a batch run.
type Report struct {
	Root      string       `yaml:"root" json:"root"`
	Mode      isolate.Mode `yaml:"mode" json:"mode"`
	Processed int          `yaml:"processed" json:"processed"`
	Failed    int          `yaml:"failed" json:"failed"`
	Files     []FileResult `yaml:"files" json:"files"`
}

// ErrNoFiles is returned when no file matches the batch patterns.
var ErrNoFiles = errors.New("no files matched")

// Run processes every discovered file sequentially. A failing file is
// recorded in the report and does not stop the run.
func Run(engine *isolate.Engine, opts Options) (*Report, error) {
	switch opts.Mode {
	case isolate.ModeExtract, isolate.ModeRedact:
	default:
		return nil, fmt.Errorf("unsupported batch mode: %q", opts.Mode)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	files, err := Discover(opts.Root, opts.Patterns, opts.Exclude)
	if err != nil {
		return nil, err
	}
	// outputs of an earlier run under Root are not inputs
	if opts.OutDir != "" {
		files = slices.DeleteFunc(files, func(path string) bool {
			return within(opts.OutDir, path)
		})
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w under %s", ErrNoFiles, opts.Root)
	}
	logger.Info("batch.discover", "root", opts.Root, "files", len(files))

	bar := newProgressBar(opts.Progress, len(files), string(opts.Mode))

	report := &Report{Root: opts.Root, Mode: opts.Mode}
	for _, path := range files {
		fr := runOne(engine, opts, path)
		if fr.Error != "" {
			report.Failed++
			logger.Warn("batch.file", "path", path, "stage", fr.Stage, "error", fr.Error)
		} else {
			logger.Debug("batch.file", "path", path, "entities", fr.Entities, "output", fr.Output)
		}
		report.Processed++
		report.Files = append(report.Files, fr)
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}

	logger.Info("batch.done", "processed", report.Processed, "failed", report.Failed)
	return report, nil
}

func runOne(engine *isolate.Engine, opts Options, path string) FileResult {
	fr := FileResult{Path: path}

	req := isolate.Request{
		Path:              path,
		Targets:           opts.Targets,
		FollowCalls:       opts.FollowCalls,
		IncludeDirectives: opts.IncludeDirectives,
	}
	if opts.OutDir != "" {
		out, err := outputPath(opts.Root, opts.OutDir, path)
		if err != nil {
			fr.Error = err.Error()
			fr.Stage = string(isolate.StageWrite)
			return fr
		}
		req.Output = out
	}

	var (
		res *isolate.Result
		err error
	)
	if opts.Mode == isolate.ModeExtract {
		res, err = engine.Extract(req)
	} else {
		res, err = engine.Redact(req)
	}
	if err != nil {
		fr.Error = err.Error()
		var stageErr *isolate.StageError
		if errors.As(err, &stageErr) {
			fr.Stage = string(stageErr.Stage)
		}
		return fr
	}

	fr.Output = res.Output
	fr.Entities = len(res.Entities)
	return fr
}

// outputPath mirrors path's position under root into outDir and creates the
// parent directory.
func outputPath(root, outDir, path string) (string, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", err
	}
	out := filepath.Join(outDir, rel)
	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}
	return out, nil
}

// within reports whether path lies under dir.
func within(dir, path string) bool {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absDir, absPath)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func newProgressBar(w io.Writer, total int, description string) *progressbar.ProgressBar {
	if w == nil {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("files/s"),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(w)
		}),
	)
}
