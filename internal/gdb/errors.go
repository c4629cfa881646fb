package gdb

import (
	"errors"
	"fmt"
	"strings"

	"github.com/muurk/coastermelt/internal/gdb/scripts"
)

// GDBExecutionError represents a failure during GDB script execution.
// This occurs when the GDB command itself fails (non-zero exit code, failed to start).
type GDBExecutionError struct {
	// Script is the name of the script that failed
	Script string
	// ExitCode is the GDB process exit code
	ExitCode int
	// Stderr is the GDB stderr output
	Stderr string
	// Stdout is the GDB stdout output (for context)
	Stdout string
	// Steps are the markers echoed before GDB stopped; the last is failed
	Steps []scripts.Step
	// Underlying error if any
	Err error
}

func (e *GDBExecutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gdb execution failed for script %q (exit code %d): %v\nstderr: %s",
			e.Script, e.ExitCode, e.Err, e.Stderr)
	}
	return fmt.Sprintf("gdb execution failed for script %q (exit code %d)\nstderr: %s",
		e.Script, e.ExitCode, e.Stderr)
}

func (e *GDBExecutionError) Unwrap() error {
	return e.Err
}

// GDBConnectionError represents a failure to connect to OpenOCD.
// This typically means OpenOCD is not running, the port is wrong, or the device is not connected.
type GDBConnectionError struct {
	// Host is the OpenOCD host that failed to connect
	Host string
	// Port is the OpenOCD port that failed to connect
	Port int
	// Underlying error
	Err error
}

func (e *GDBConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to OpenOCD at %s:%d: %v\n"+
		"Hint: Ensure OpenOCD is running and the device is connected via JTAG.\n"+
		"Start OpenOCD with: openocd -f <your-config.cfg>",
		e.Host, e.Port, e.Err)
}

func (e *GDBConnectionError) Unwrap() error {
	return e.Err
}

// PrerequisiteError represents a missing prerequisite (GDB binary, OpenOCD).
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

// TemplateError represents a template rendering error.
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

// TimeoutError represents a timeout during a GDB session. The timeout is
// owned by this transport; callers may impose a shorter one through ctx.
type TimeoutError struct {
	// Script is the name of the script that timed out
	Script string
	// Timeout is the duration that was exceeded
	Timeout string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("gdb operation timed out for script %q after %s\n"+
		"Hint: Increase gdb.timeout in the configuration or check the JTAG connection",
		e.Script, e.Timeout)
}

// OperationError reports a GDB session that ran but did not take effect,
// such as a poke whose read-back differs or a call that faulted.
type OperationError struct {
	// Script is the name of the script
	Script string
	// Address is the target address involved
	Address uint32
	// Output is the GDB transcript
	Output string
	// Steps are the markers the script echoed; the one that did not take
	// effect is failed
	Steps []scripts.Step
	// Underlying error
	Err error
}

func (e *OperationError) Error() string {
	if step, ok := failedStep(e.Steps); ok {
		return fmt.Sprintf("%s at 0x%08x: step %d/%d (%s) failed: %v",
			e.Script, e.Address, step.Number, step.Total, step.Name, e.Err)
	}
	return fmt.Sprintf("%s at 0x%08x: %v", e.Script, e.Address, e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// StepsOf returns the script name and step markers of the GDB session that
// produced err, or no steps if err did not come from a session that ran.
func StepsOf(err error) (string, []scripts.Step) {
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return opErr.Script, opErr.Steps
	}
	var execErr *GDBExecutionError
	if errors.As(err, &execErr) {
		return execErr.Script, execErr.Steps
	}
	return "", nil
}

// Transcript returns the GDB output attached to err, if any.
func Transcript(err error) string {
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return opErr.Output
	}
	var execErr *GDBExecutionError
	if errors.As(err, &execErr) {
		return strings.TrimSpace(execErr.Stdout + "\n" + execErr.Stderr)
	}
	return ""
}

func failedStep(steps []scripts.Step) (scripts.Step, bool) {
	for _, step := range steps {
		if step.Status == scripts.StepFailed {
			return step, true
		}
	}
	return scripts.Step{}, false
}
