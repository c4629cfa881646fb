package toolchain

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os/exec"
	"text/template"
	"time"

	"go.uber.org/zap"
)

// waitDelay bounds how long Run waits for output pipes after the process
// has been killed by ctx.
const waitDelay = 2 * time.Second

// Runner runs an external tool and returns its standard output.
// A non-nil error means the step failed and its output must not be used.
type Runner interface {
	Run(ctx context.Context, tool string, args ...string) (string, error)
}

// Invoker runs toolchain steps via os/exec.
type Invoker struct {
	logger *zap.Logger
}

var _ Runner = (*Invoker)(nil)

// NewInvoker creates an invoker that logs to logger.
func NewInvoker(logger *zap.Logger) *Invoker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Invoker{logger: logger}
}

// Run executes tool with args and waits for it. The subprocess blocks the
// caller; any deadline comes from ctx.
//
// A tool that cannot be found yields *PrerequisiteError. A tool that fails
// to start or exits non-zero yields *ExecutionError carrying its output.
func (i *Invoker) Run(ctx context.Context, tool string, args ...string) (string, error) {
	startTime := time.Now()

	i.logger.Debug("running toolchain step",
		zap.String("tool", tool),
		zap.Strings("args", args),
	)

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd := exec.CommandContext(ctx, tool, args...)
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf
	cmd.WaitDelay = waitDelay
	err := cmd.Run()

	stdout := stdoutBuf.String()
	stderr := stderrBuf.String()

	i.logger.Debug("toolchain step complete",
		zap.String("tool", tool),
		zap.Duration("duration", time.Since(startTime)),
		zap.Int("stdout_size", len(stdout)),
		zap.String("stderr", stderr),
	)

	if err == nil {
		return stdout, nil
	}

	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return "", &PrerequisiteError{
			Prerequisite: tool,
			Details:      "toolchain executable not found; install the GNU Arm Embedded toolchain or set its path in the configuration",
			Err:          err,
		}
	}

	exitCode := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		exitCode = exitErr.ExitCode()
	}

	execErr := &ExecutionError{
		Tool:     tool,
		Args:     args,
		ExitCode: exitCode,
		Stdout:   stdout,
		Stderr:   stderr,
	}
	if exitErr == nil {
		execErr.Err = err
	} else if ctxErr := ctx.Err(); ctxErr != nil {
		execErr.Err = ctxErr
	}
	return "", execErr
}

// Render executes a text/template with data. Failures are *TemplateError.
func Render(name, text string, data any) (string, error) {
	tmpl, err := template.New(name).Parse(text)
	if err != nil {
		return "", &TemplateError{Template: name, Err: err}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", &TemplateError{Template: name, Err: err}
	}
	return buf.String(), nil
}
