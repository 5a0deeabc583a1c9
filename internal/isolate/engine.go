// Package isolate locates named C/C++ entities in a parsed file and either
// extracts them into a standalone file or removes them from a copy of it.
//
// An Engine runs one Request end to end: parse, locate, resolve exact byte
// ranges, assemble the output text and optionally write it. Every failure is
// reported as a *StageError naming the step that failed.
package isolate

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/cespare/xxhash/v2"
	"github.com/hargabyte/carve/internal/syntax"
)

// Mode is the kind of output a request produced.
type Mode string

const (
	ModeExtract Mode = "extract"
	ModeRedact  Mode = "redact"
	ModeLocate  Mode = "locate"
)

// Request describes one isolation run. It carries everything the run needs;
// nothing is read from the environment.
type Request struct {
	// Path is the C/C++ file to read.
	Path string
	// Output, when set, receives the produced text.
	Output string
	// Targets are the entities to select. Names that are not found are
	// skipped.
	Targets []Target
	// FollowCalls adds every same-file function reachable through calls.
	FollowCalls bool
	// IncludeDirectives copies #include lines into an extraction.
	IncludeDirectives bool
}

// Located is one entity selected by a request.
type Located struct {
	Kind  syntax.Kind `yaml:"kind" json:"kind"`
	Name  string      `yaml:"name" json:"name"`
	File  string      `yaml:"file" json:"file"`
	Range Range       `yaml:"range" json:"range"`
	// Lines is the 1-based line span, "first-last".
	Lines string `yaml:"lines" json:"lines"`
	// Requested is false for entities reached only by following calls.
	Requested bool `yaml:"requested" json:"requested"`
}

// Result is the outcome of a request.
type Result struct {
	Path     string    `yaml:"path" json:"path"`
	Output   string    `yaml:"output,omitempty" json:"output,omitempty"`
	Mode     Mode      `yaml:"mode" json:"mode"`
	Entities []Located `yaml:"entities" json:"entities"`
	Includes []int     `yaml:"includes,omitempty" json:"includes,omitempty"`
	Globals  []Range   `yaml:"globals,omitempty" json:"globals,omitempty"`
	// Text is the produced file content. Empty for ModeLocate.
	Text string `yaml:"-" json:"-"`
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger for request events.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMaxDrift sets how far back a reported start offset may be corrected.
func WithMaxDrift(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.maxDrift = n
		}
	}
}

// Engine runs isolation requests against a front end. It holds no state
// between requests.
type Engine struct {
	frontend syntax.Frontend
	logger   *slog.Logger
	maxDrift int
}

// New creates an engine that parses files with frontend.
func New(frontend syntax.Frontend, opts ...Option) *Engine {
	e := &Engine{
		frontend: frontend,
		logger:   slog.New(slog.DiscardHandler),
		maxDrift: MaxDrift,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Locate finds the requested entities and resolves their ranges without
// producing any text.
func (e *Engine) Locate(req Request) (*Result, error) {
	tree, err := e.parse(req.Path)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	entities, err := e.locate(tree, req)
	if err != nil {
		return nil, err
	}
	return &Result{Path: req.Path, Mode: ModeLocate, Entities: entities}, nil
}

// Extract writes the selected entities, preceded by the file's include
// directives (when requested) and its top-level globals.
func (e *Engine) Extract(req Request) (*Result, error) {
	tree, err := e.parse(req.Path)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	entities, err := e.locate(tree, req)
	if err != nil {
		return nil, err
	}

	globals, err := GlobalRanges(tree.Root(), tree.Source(), e.maxDrift)
	if err != nil {
		return nil, stageErr(StageResolve, req.Path, err)
	}

	var includes []int
	if req.IncludeDirectives {
		for off := range DirectIncludes(tree.Root()) {
			includes = append(includes, off)
		}
	}

	f, size, err := openVerified(req.Path, tree.Digest())
	if err != nil {
		return nil, stageErr(StageResolve, req.Path, err)
	}
	defer f.Close()

	text, err := Extract(f, size, Assembly{
		Includes:  includes,
		Globals:   globals,
		Functions: functionRanges(entities, globals),
	})
	if err != nil {
		return nil, stageErr(StageAssemble, req.Path, err)
	}

	res := &Result{
		Path:     req.Path,
		Output:   req.Output,
		Mode:     ModeExtract,
		Entities: entities,
		Includes: includes,
		Globals:  globals,
		Text:     text,
	}
	if err := e.write(res); err != nil {
		return nil, err
	}

	e.logger.Info("isolate.extract",
		"path", req.Path,
		"entities", len(entities),
		"includes", len(includes),
		"globals", len(globals),
		"bytes", len(text))
	return res, nil
}

// Redact writes the file with the selected entities removed. All other bytes
// are copied unchanged.
func (e *Engine) Redact(req Request) (*Result, error) {
	tree, err := e.parse(req.Path)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	entities, err := e.locate(tree, req)
	if err != nil {
		return nil, err
	}

	f, size, err := openVerified(req.Path, tree.Digest())
	if err != nil {
		return nil, stageErr(StageResolve, req.Path, err)
	}
	defer f.Close()

	source, err := io.ReadAll(io.NewSectionReader(f, 0, size))
	if err != nil {
		return nil, stageErr(StageAssemble, req.Path, err)
	}

	ranges := make([]Range, 0, len(entities))
	for _, ent := range entities {
		ranges = append(ranges, ent.Range)
	}
	out, err := Redact(source, ranges)
	if err != nil {
		return nil, stageErr(StageAssemble, req.Path, err)
	}

	res := &Result{
		Path:     req.Path,
		Output:   req.Output,
		Mode:     ModeRedact,
		Entities: entities,
		Text:     string(out),
	}
	if err := e.write(res); err != nil {
		return nil, err
	}

	e.logger.Info("isolate.redact",
		"path", req.Path,
		"entities", len(entities),
		"removed", len(source)-len(out))
	return res, nil
}

// RemoveMain copies in to out without its main function.
func RemoveMain(frontend syntax.Frontend, in, out string) error {
	_, err := New(frontend).Redact(Request{
		Path:    in,
		Output:  out,
		Targets: Functions("main"),
	})
	return err
}

// syntaxErrorReporter is implemented by trees that can tell whether the
// parser had to recover from invalid input.
type syntaxErrorReporter interface {
	HasErrors() bool
}

func (e *Engine) parse(path string) (syntax.Tree, error) {
	tree, err := e.frontend.Parse(path)
	if err != nil {
		return nil, stageErr(StageParse, path, err)
	}
	if tree.Root() == nil {
		tree.Close()
		return nil, stageErr(StageParse, path, errors.New("front end returned an empty tree"))
	}
	// tree-sitter recovers from syntax errors instead of failing
	if r, ok := tree.(syntaxErrorReporter); ok && r.HasErrors() {
		e.logger.Warn("isolate.parse", "path", path, "syntax_errors", true)
	}
	e.logger.Debug("isolate.parse", "path", path, "bytes", len(tree.Source()), "digest", tree.Digest())
	return tree, nil
}

// locate finds the request's entities and resolves their ranges, sorted by
// start with duplicates and nested entities dropped.
func (e *Engine) locate(tree syntax.Tree, req Request) ([]Located, error) {
	root := tree.Root()
	if root.Kind() != syntax.KindTranslationUnit {
		return nil, stageErr(StageLocate, req.Path, fmt.Errorf("root is a %s, not a translation unit", root.Kind()))
	}

	nodes := Locate(root, req.Targets, req.FollowCalls)
	e.logger.Debug("isolate.locate",
		"path", req.Path,
		"targets", len(req.Targets),
		"found", len(nodes),
		"follow_calls", req.FollowCalls)

	entities := make([]Located, 0, len(nodes))
	for _, n := range nodes {
		r, err := ResolveRange(n, tree.Source(), e.maxDrift)
		if err != nil {
			return nil, stageErr(StageResolve, req.Path, err)
		}
		entities = append(entities, Located{
			Kind:      n.Kind(),
			Name:      n.Name(),
			File:      n.File(),
			Range:     r,
			Lines:     lineSpan(tree.Source(), r),
			Requested: matchesAny(n, req.Targets),
		})
	}
	return dropNested(entities), nil
}

// write stores res.Text at res.Output, if set.
func (e *Engine) write(res *Result) (err error) {
	if res.Output == "" {
		return nil
	}
	f, err := os.Create(res.Output)
	if err != nil {
		return stageErr(StageWrite, res.Output, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = stageErr(StageWrite, res.Output, cerr)
		}
	}()

	if _, err := io.WriteString(f, res.Text); err != nil {
		return stageErr(StageWrite, res.Output, err)
	}
	e.logger.Debug("isolate.write", "output", res.Output, "bytes", len(res.Text))
	return nil
}

// openVerified opens path and checks that its content still hashes to
// digest. The caller closes the file.
func openVerified(path string, digest uint64) (*os.File, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}

	h := xxhash.New()
	if _, err := io.Copy(h, io.NewSectionReader(f, 0, info.Size())); err != nil {
		f.Close()
		return nil, 0, err
	}
	if h.Sum64() != digest {
		f.Close()
		return nil, 0, ErrSourceChanged
	}
	return f, info.Size(), nil
}

// functionRanges returns the entity ranges that are not already emitted as
// globals.
func functionRanges(entities []Located, globals []Range) []Range {
	globalStarts := make(map[int]bool, len(globals))
	for _, g := range globals {
		globalStarts[g.Start] = true
	}
	ranges := make([]Range, 0, len(entities))
	for _, ent := range entities {
		if globalStarts[ent.Range.Start] {
			continue
		}
		ranges = append(ranges, ent.Range)
	}
	return ranges
}

func lineSpan(source []byte, r Range) string {
	first := bytes.Count(source[:r.Start], []byte("\n")) + 1
	last := first + bytes.Count(source[r.Start:r.End()], []byte("\n"))
	return fmt.Sprintf("%d-%d", first, last)
}

// dropNested sorts entities by start, outermost first, and drops every entity
// whose range lies inside an earlier one, so the result never overlaps.
func dropNested(entities []Located) []Located {
	slices.SortStableFunc(entities, func(a, b Located) int {
		if a.Range.Start != b.Range.Start {
			return a.Range.Start - b.Range.Start
		}
		return b.Range.Length - a.Range.Length
	})

	kept := entities[:0]
	for _, ent := range entities {
		if n := len(kept); n > 0 && ent.Range.End() <= kept[n-1].Range.End() {
			if ent.Range == kept[n-1].Range {
				kept[n-1].Requested = kept[n-1].Requested || ent.Requested
			}
			continue
		}
		kept = append(kept, ent)
	}
	return kept
}
