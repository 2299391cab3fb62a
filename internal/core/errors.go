package core

import (
	"errors"
	"fmt"
)

// Stage identifies the pipeline stage where a failure originated, so the
// top-level report can always say which part of a sync broke.
type Stage string

const (
	StageDiscover  Stage = "discover"
	StageParse     Stage = "parse"
	StageMerge     Stage = "merge"
	StageFetch     Stage = "fetch"
	StageDetect    Stage = "detect"
	StageExtract   Stage = "extract"
	StageValidate  Stage = "validate"
	StageInstall   Stage = "install"
	StageReconcile Stage = "reconcile"
	StageAgents    Stage = "agents"
)

// Class discriminates failures within a stage.
type Class string

const (
	ClassParse         Class = "parse"
	ClassValidation    Class = "validation"
	ClassIO            Class = "io"
	ClassNotFound      Class = "not_found"
	ClassAliasConflict Class = "alias_conflict"
	ClassConflict      Class = "conflict"
	ClassGit           Class = "git"
)

// Error is the tagged failure value returned by every pipeline stage.
// Path points at the file or directory involved; Origin, when set, traces the
// failure back to the manifest line that declared the offending dependency.
type Error struct {
	Stage  Stage
	Class  Class
	Path   string
	Origin *PackageOrigin
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Stage, e.Err)
	if e.Origin != nil {
		return fmt.Sprintf("%s (dependency %q in %s)", msg, e.Origin.Alias, e.Origin.ManifestPath)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", msg, e.Path)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// E builds a stage-tagged error wrapping err.
func E(stage Stage, class Class, err error) *Error {
	return &Error{Stage: stage, Class: class, Err: err}
}

// Ef builds a stage-tagged error from a format string.
func Ef(stage Stage, class Class, format string, args ...interface{}) *Error {
	return &Error{Stage: stage, Class: class, Err: fmt.Errorf(format, args...)}
}

// WithPath attaches a filesystem path to the error.
func (e *Error) WithPath(path string) *Error {
	e.Path = path
	return e
}

// WithOrigin attaches dependency provenance to the error.
func (e *Error) WithOrigin(origin PackageOrigin) *Error {
	o := origin
	e.Origin = &o
	return e
}

// StageOf returns the pipeline stage of err, or "" if err carries no stage tag.
func StageOf(err error) Stage {
	var e *Error
	if errors.As(err, &e) {
		return e.Stage
	}
	return ""
}

// IsClass reports whether err (or anything it wraps) carries the given class.
func IsClass(err error, class Class) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == class
	}
	return false
}
