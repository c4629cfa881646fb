package toolchain

import (
	"fmt"
	"strings"
)

// ExecutionError represents a failed toolchain step: the process could not
// be started, or it exited with a non-zero status.
type ExecutionError struct {
	// Tool is the executable that was run
	Tool string
	// Args are the arguments it was given
	Args []string
	// ExitCode is the process exit code, -1 if it never ran to completion
	ExitCode int
	// Stdout is the captured standard output
	Stdout string
	// Stderr is the captured standard error (compiler diagnostics live here)
	Stderr string
	// Underlying error if any
	Err error
}

func (e *ExecutionError) Error() string {
	cmdline := strings.TrimSpace(e.Tool + " " + strings.Join(e.Args, " "))
	if e.Err != nil {
		return fmt.Sprintf("toolchain step failed: %s (exit code %d): %v\nstderr: %s",
			cmdline, e.ExitCode, e.Err, e.Stderr)
	}
	return fmt.Sprintf("toolchain step failed: %s (exit code %d)\nstderr: %s",
		cmdline, e.ExitCode, e.Stderr)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// PrerequisiteError represents a missing toolchain executable.
type PrerequisiteError struct {
	// Prerequisite is the name of the missing prerequisite
	Prerequisite string
	// Details provides additional context
	Details string
	// Underlying error
	Err error
}

func (e *PrerequisiteError) Error() string {
	msg := fmt.Sprintf("missing prerequisite: %s", e.Prerequisite)
	if e.Details != "" {
		msg += "\n" + e.Details
	}
	if e.Err != nil {
		msg += fmt.Sprintf("\nError: %v", e.Err)
	}
	return msg
}

func (e *PrerequisiteError) Unwrap() error {
	return e.Err
}

// TemplateError represents a failure rendering a link layout or a source
// frame.
type TemplateError struct {
	// Template is the name of the template that failed to render
	Template string
	// Underlying error
	Err error
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("failed to render template %q: %v", e.Template, e.Err)
}

func (e *TemplateError) Unwrap() error {
	return e.Err
}
