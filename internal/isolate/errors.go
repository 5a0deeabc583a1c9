package isolate

import (
	"errors"
	"fmt"
)

// Stage names the step of a request that failed.
type Stage string

const (
	StageParse    Stage = "parse"
	StageLocate   Stage = "locate"
	StageResolve  Stage = "resolve"
	StageAssemble Stage = "assemble"
	StageWrite    Stage = "write"
)

// ErrSourceChanged is returned when the input file no longer matches the
// bytes that were parsed.
var ErrSourceChanged = errors.New("source changed since it was parsed")

// StageError reports which stage of a request failed and why.
type StageError struct {
	Stage Stage
	Path  string
	Err   error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Stage, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error {
	return e.Err
}

// BoundaryError is returned when a node's text cannot be aligned with the
// source buffer.
type BoundaryError struct {
	Kind     string
	Name     string
	Reported int
	Token    string
	Window   int
}

// Error implements the error interface.
func (e *BoundaryError) Error() string {
	if e.Token == "" {
		return fmt.Sprintf("%s %q: extent at %d lies outside the source", e.Kind, e.Name, e.Reported)
	}
	return fmt.Sprintf("%s %q: token %q not found at %d or within %d bytes before it",
		e.Kind, e.Name, e.Token, e.Reported, e.Window)
}

func stageErr(stage Stage, path string, err error) error {
	return &StageError{Stage: stage, Path: path, Err: err}
}
