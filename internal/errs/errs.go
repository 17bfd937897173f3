// Package errs defines the typed error taxonomy for featsync.
//
// Every component wraps low-level failures into one of these kinds at its
// public boundary, so callers can classify failures with errors.As without
// depending on the failing component's internals.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// ConfigError indicates missing or invalid configuration (credentials, paths).
type ConfigError struct {
	// Field is the configuration field that failed.
	Field string
	// Message describes the failure.
	Message string
	// Err is the underlying error (if any).
	Err error
}

// Error returns a formatted configuration error message.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config: %s: %s: %v", e.Field, e.Message, e.Err)
	}
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *ConfigError) Unwrap() error { return e.Err }

// StagingError indicates a staging-area failure, tagged with the attempted
// operation (create, clean, fetch).
type StagingError struct {
	Op  string
	Err error
}

func (e *StagingError) Error() string {
	return fmt.Sprintf("staging %s: %v", e.Op, e.Err)
}

func (e *StagingError) Unwrap() error { return e.Err }

// FSError indicates a filesystem failure, tagged with operation and path.
type FSError struct {
	Op   string
	Path string
	Err  error
}

func (e *FSError) Error() string {
	return fmt.Sprintf("fs %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FSError) Unwrap() error { return e.Err }

// ParseError indicates malformed feature file text, tagged with the source path.
type ParseError struct {
	Path    string
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %s", e.Path, e.Message)
}

// ValidationError carries one or more structural or business-rule failures.
type ValidationError struct {
	Path     string
	Messages []string
}

func (e *ValidationError) Error() string {
	if len(e.Messages) == 1 {
		return fmt.Sprintf("validation %s: %s", e.Path, e.Messages[0])
	}
	return fmt.Sprintf("validation %s: %d errors: %s",
		e.Path, len(e.Messages), strings.Join(e.Messages, "; "))
}

// ProcessError indicates an external process exited non-zero with no usable
// output.
type ProcessError struct {
	Command  string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ProcessError) Error() string {
	msg := fmt.Sprintf("process %q exited %d", e.Command, e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + strings.TrimSpace(e.Stderr)
	}
	return msg
}

func (e *ProcessError) Unwrap() error { return e.Err }

// ConflictError indicates a feature file could not be classified during
// conflict resolution.
type ConflictError struct {
	Feature string
	Err     error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict resolution %s: %v", e.Feature, e.Err)
}

func (e *ConflictError) Unwrap() error { return e.Err }

// InteractionError indicates the interactive session was aborted or failed.
type InteractionError struct {
	Err error
}

func (e *InteractionError) Error() string {
	return fmt.Sprintf("user interaction: %v", e.Err)
}

func (e *InteractionError) Unwrap() error { return e.Err }

// PhaseError wraps a failure in one orchestrator phase, carrying the phase
// name and any partial results accumulated before the failure.
type PhaseError struct {
	Phase   string
	Partial any
	Err     error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("phase %s: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }

// PhaseOf returns the phase name if err is (or wraps) a PhaseError.
func PhaseOf(err error) (string, bool) {
	var pe *PhaseError
	if errors.As(err, &pe) {
		return pe.Phase, true
	}
	return "", false
}
