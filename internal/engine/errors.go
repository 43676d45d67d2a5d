package engine

import (
	"errors"
	"fmt"
)

// Kind classifies a transaction failure. A Kind is itself an error so that
// callers can write errors.Is(err, engine.Cancelled).
type Kind int

const (
	Unknown Kind = iota
	SourceNotFound
	SourceIsDirectory
	EmptyDestination
	InvalidDestination
	DirectoryCreationFailed
	BackupCreationFailed
	SymlinkResolutionFailed
	SymlinkCreationFailed
	LinkCreationFailed
	SourceTruncated
	DestinationTruncated
	IOFailure
	Cancelled
	RollbackFailed
	VerifyFailed
)

var kindNames = [...]string{
	Unknown:                 "Unknown",
	SourceNotFound:          "SourceNotFound",
	SourceIsDirectory:       "SourceIsDirectory",
	EmptyDestination:        "EmptyDestination",
	InvalidDestination:      "InvalidDestination",
	DirectoryCreationFailed: "DirectoryCreationFailed",
	BackupCreationFailed:    "BackupCreationFailed",
	SymlinkResolutionFailed: "SymlinkResolutionFailed",
	SymlinkCreationFailed:   "SymlinkCreationFailed",
	LinkCreationFailed:      "LinkCreationFailed",
	SourceTruncated:         "SourceTruncated",
	DestinationTruncated:    "DestinationTruncated",
	IOFailure:               "IOFailure",
	Cancelled:               "Cancelled",
	RollbackFailed:          "RollbackFailed",
	VerifyFailed:            "VerifyFailed",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Unknown"
}

func (k Kind) Error() string { return k.String() }

// Validation reports whether k is raised before any filesystem mutation.
func (k Kind) Validation() bool {
	switch k {
	case SourceNotFound, SourceIsDirectory, EmptyDestination, InvalidDestination:
		return true
	}
	return false
}

// Error is the single failure type surfaced by the engine.
type Error struct {
	Kind Kind
	Op   string // what was being attempted, e.g. "read source"
	Path string
	Err  error // underlying cause, may be nil
}

func newError(kind Kind, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg += ": " + e.Op
	}
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches a bare Kind target.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// KindOf returns the Kind of the first *Error in err's chain, or Unknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// truncatedError builds the size-mismatch message for SourceTruncated and
// DestinationTruncated.
func truncatedError(kind Kind, path string, current, expected int64) *Error {
	return newError(kind, "copy", path,
		fmt.Errorf("current size %d, expected size %d", current, expected))
}
