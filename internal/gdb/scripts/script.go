package scripts

import (
	"fmt"
	"time"
)

// Script represents one GDB session against the target.
// Every remote-memory primitive (poke, read, call) implements this interface.
type Script interface {
	// Name returns a short identifier used in logs, temp file names and
	// error messages.
	// Example: "poke_word", "read_memory", "call_function"
	Name() string

	// Template returns the GDB script template content.
	// The template uses Go text/template syntax and reads the map returned
	// by Params().
	Template() string

	// Params returns the parameters to be substituted into the template.
	// Addresses and words are pre-formatted as "0x%08x" strings.
	Params() map[string]interface{}

	// Parse extracts structured results from GDB stdout.
	// A script that ran but did not achieve its effect returns a Result
	// with Success false and Error set; unparseable output is a
	// *ParseError.
	Parse(output string) (*Result, error)
}

// Result represents the outcome of executing a GDB script.
type Result struct {
	// Success indicates whether the operation took effect.
	Success bool

	// Duration is how long the GDB session took.
	Duration time.Duration

	// Word is the 32-bit value produced by the script: the verified word
	// for a poke, r0 for a call.
	Word uint32

	// Bytes holds memory read by the script.
	Bytes []byte

	// Steps contains progress markers echoed by the script.
	Steps []Step

	// Error contains the reason the operation failed.
	// nil if Success is true.
	Error error

	// RawOutput contains the complete stdout from GDB.
	RawOutput string

	// RawStderr contains the complete stderr from GDB.
	RawStderr string
}

// Step statuses.
const (
	StepSucceeded = "success"
	StepFailed    = "failed"
)

// Step represents a single progress marker in a GDB script:
//
//	echo [1/2] Writing word...\n
//
// is Step{Number: 1, Total: 2, Name: "Writing word"}.
type Step struct {
	Number  int
	Total   int
	Name    string
	Status  string // StepSucceeded or StepFailed
	Message string
}

// NewResult creates a new Result with default values.
func NewResult() *Result {
	return &Result{Steps: make([]Step, 0)}
}

// MarkStopped marks the last step reached as failed with msg, unless a step
// is already marked failed. A session aborted by GDB stops at the last
// marker it echoed.
func MarkStopped(steps []Step, msg string) []Step {
	if len(steps) == 0 {
		return steps
	}
	for _, step := range steps {
		if step.Status == StepFailed {
			return steps
		}
	}
	steps = append([]Step(nil), steps...)
	last := &steps[len(steps)-1]
	last.Status = StepFailed
	last.Message = msg
	return steps
}

// Fail marks the result failed with err.
func (r *Result) Fail(err error) *Result {
	r.Success = false
	r.Error = err
	return r
}

// FailedSteps returns the count of failed steps.
func (r *Result) FailedSteps() int {
	count := 0
	for _, step := range r.Steps {
		if step.Status == StepFailed {
			count++
		}
	}
	return count
}

// ParseError represents GDB output that does not have the expected shape.
type ParseError struct {
	// Script is the name of the script whose output failed to parse
	Script string
	// Field is the value that could not be extracted
	Field string
	// Output is the GDB output
	Output string
	// Underlying error
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse GDB output for script %q, field %q: %v\nOutput: %s",
		e.Script, e.Field, e.Err, e.Output)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// hex formats a target address or word for a template.
func hex(v uint32) string {
	return fmt.Sprintf("0x%08x", v)
}
