package ui

import (
	"fmt"
	"io"
	"os"
	"time"
)

// RunnerConfig holds configuration for a multi-step command
type RunnerConfig struct {
	Title     string    // Command title (e.g., "Self Test")
	Command   string    // Full command (e.g., "coastermelt selftest")
	Params    []Detail  // Parameters to display in header
	StepNames []string  // Names for each step; also sets the step count
	Tips      []string  // Troubleshooting tips added on failure
	Output    io.Writer // Output writer (default: os.Stdout)
}

// Runner orchestrates the header, step progress and result of a command
// made of named steps.
type Runner struct {
	config   RunnerConfig
	header   *Header
	progress *Progress
	output   io.Writer
	width    int
}

// NewRunner creates a new runner
func NewRunner(config RunnerConfig) *Runner {
	if config.Output == nil {
		config.Output = os.Stdout
	}

	width := GetTerminalWidth()

	header := NewHeader(config.Title, config.Command, config.Params...).SetWidth(width)

	progress := NewProgress("", len(config.StepNames)).SetWidth(width)
	progress.SetStepNames(config.StepNames)

	return &Runner{
		config:   config,
		header:   header,
		progress: progress,
		output:   config.Output,
		width:    width,
	}
}

// Operation is the work a Runner drives. It reports each step through
// onStep and returns the details shown on success.
type Operation func(onStep StepCallback) ([]Detail, error)

// Run prints the header, executes operation while printing its steps, then
// prints the result. It returns the operation's error.
func (r *Runner) Run(operation Operation) error {
	start := time.Now()

	_, _ = fmt.Fprintln(r.output, r.header.Render())
	_, _ = fmt.Fprintln(r.output)

	details, err := operation(r.progress.Reporter(r.output))
	duration := time.Since(start)

	if err != nil {
		r.printFailure(err)
	} else {
		r.printSuccess(details, duration)
	}
	return err
}

func (r *Runner) printSuccess(details []Detail, duration time.Duration) {
	_, _ = fmt.Fprintln(r.output)

	result := NewSuccessResult(r.config.Title + " complete").SetWidth(r.width)
	for _, d := range details {
		result.AddDetail(d.Key, d.Value)
	}
	result.AddDetail("Duration", duration.Round(time.Millisecond).String())
	_, _ = fmt.Fprintln(r.output, result.Render())
}

func (r *Runner) printFailure(err error) {
	_, _ = fmt.Fprintln(r.output)

	var tips []string
	for _, step := range r.progress.FailedSteps() {
		tip := step.Name
		if step.Message != "" {
			tip += ": " + step.Message
		}
		tips = append(tips, tip)
	}
	tips = append(tips, r.config.Tips...)

	result := NewFailureResult(r.config.Title+" failed", err, tips...).SetWidth(r.width)
	_, _ = fmt.Fprintln(r.output, result.Render())
}
