package gdb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"text/template"
	"time"

	"github.com/muurk/coastermelt/internal/gdb/scripts"
	"go.uber.org/zap"
)

// Config holds the configuration for GDB execution.
type Config struct {
	// GDBPath is the path to the arm-none-eabi-gdb binary.
	// Default: "arm-none-eabi-gdb" (searches PATH)
	GDBPath string `yaml:"path"`

	// OpenOCDHost is the hostname/IP where OpenOCD is running.
	// Default: "localhost"
	OpenOCDHost string `yaml:"openocd_host"`

	// OpenOCDPort is the port where OpenOCD is listening.
	// Default: 3333
	OpenOCDPort int `yaml:"openocd_port"`

	// Timeout bounds one GDB session (one poke, read or call).
	// Default: 30 seconds
	Timeout time.Duration `yaml:"timeout"`

	// WorkDir is the working directory for temporary script files.
	// Default: os.TempDir()
	WorkDir string `yaml:"work_dir,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		GDBPath:     "arm-none-eabi-gdb",
		OpenOCDHost: "localhost",
		OpenOCDPort: 3333,
		Timeout:     30 * time.Second,
		WorkDir:     os.TempDir(),
	}
}

// Normalize returns c with empty fields replaced by defaults.
func (c Config) Normalize() Config {
	d := DefaultConfig()
	if c.GDBPath == "" {
		c.GDBPath = d.GDBPath
	}
	if c.OpenOCDHost == "" {
		c.OpenOCDHost = d.OpenOCDHost
	}
	if c.OpenOCDPort == 0 {
		c.OpenOCDPort = d.OpenOCDPort
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.WorkDir == "" {
		c.WorkDir = d.WorkDir
	}
	return c
}

// Executor executes GDB scripts via os/exec.
type Executor struct {
	config Config
	logger *zap.Logger
}

// NewExecutor creates a new GDB executor with the given configuration.
func NewExecutor(config Config, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		config: config.Normalize(),
		logger: logger,
	}
}

// Config returns the normalized configuration.
func (e *Executor) Config() Config {
	return e.config
}

// Execute runs a GDB script and returns the parsed result.
//
// Steps:
//  1. Render script template with parameters
//  2. Write rendered script to temporary file
//  3. Execute GDB in batch mode with the script file
//  4. Classify failures (connection, timeout, exit status)
//  5. Parse output using script.Parse()
//  6. Clean up temporary file
func (e *Executor) Execute(ctx context.Context, script scripts.Script) (*scripts.Result, error) {
	startTime := time.Now()

	e.logger.Debug("executing GDB script",
		zap.String("script", script.Name()),
		zap.String("gdb_path", e.config.GDBPath),
		zap.String("openocd", fmt.Sprintf("%s:%d", e.config.OpenOCDHost, e.config.OpenOCDPort)),
		zap.Duration("timeout", e.config.Timeout),
	)

	rendered, err := e.renderTemplate(script)
	if err != nil {
		return nil, &TemplateError{
			Template: script.Name(),
			Err:      err,
		}
	}

	scriptFile, err := e.writeScriptFile(script.Name(), rendered)
	if err != nil {
		return nil, fmt.Errorf("failed to write script file: %w", err)
	}
	defer os.Remove(scriptFile)

	stdout, stderr, exitCode, err := e.executeGDB(ctx, script.Name(), scriptFile)
	duration := time.Since(startTime)

	e.logger.Debug("GDB execution complete",
		zap.String("script", script.Name()),
		zap.Duration("duration", duration),
		zap.Int("exit_code", exitCode),
		zap.String("stdout", stdout),
		zap.String("stderr", stderr),
	)

	var timeoutErr *TimeoutError
	if errors.As(err, &timeoutErr) {
		return nil, err
	}

	if connErr := DetectConnectionError(stdout+"\n"+stderr, e.config.OpenOCDHost, e.config.OpenOCDPort); connErr != nil {
		return nil, connErr
	}

	if err != nil || exitCode != 0 {
		return nil, &GDBExecutionError{
			Script:   script.Name(),
			ExitCode: exitCode,
			Stderr:   stderr,
			Stdout:   stdout,
			Steps:    scripts.MarkStopped(scripts.ParseSteps(stdout), firstLine(stderr)),
			Err:      err,
		}
	}

	result, err := script.Parse(stdout)
	if err != nil {
		return nil, err
	}

	result.Duration = duration
	result.RawOutput = stdout
	result.RawStderr = stderr
	return result, nil
}

// renderTemplate renders the script template with parameters.
func (e *Executor) renderTemplate(script scripts.Script) (string, error) {
	tmpl, err := template.New(script.Name()).Parse(script.Template())
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, script.Params()); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}

// writeScriptFile writes the rendered script to a temporary file.
func (e *Executor) writeScriptFile(name, content string) (string, error) {
	file, err := os.CreateTemp(e.config.WorkDir, fmt.Sprintf("coastermelt-gdb-%s-*.gdb", name))
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer file.Close()

	if _, err := file.WriteString(content); err != nil {
		os.Remove(file.Name())
		return "", fmt.Errorf("failed to write script content: %w", err)
	}

	return file.Name(), nil
}

// executeGDB runs "gdb -batch -nx -x scriptFile" and captures its output.
func (e *Executor) executeGDB(ctx context.Context, name, scriptFile string) (stdout, stderr string, exitCode int, err error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	cmd := exec.CommandContext(timeoutCtx, e.config.GDBPath,
		"-batch",
		"-nx",
		"-x", scriptFile,
	)
	cmd.WaitDelay = 2 * time.Second

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf
	err = cmd.Run()

	stdout = stdoutBuf.String()
	stderr = stderrBuf.String()

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	// Only the transport's own deadline is reported as a timeout; a caller
	// cancellation surfaces as ctx.Err().
	if timeoutCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		err = &TimeoutError{
			Script:  name,
			Timeout: e.config.Timeout.String(),
		}
	} else if ctxErr := ctx.Err(); ctxErr != nil {
		err = ctxErr
	}

	return stdout, stderr, exitCode, err
}

// ValidateConfig checks the GDB binary and warns when OpenOCD is not reachable.
func (e *Executor) ValidateConfig(ctx context.Context) error {
	if err := ValidateGDBPath(ctx, e.config.GDBPath); err != nil {
		return err
	}

	if err := ValidateOpenOCDConnection(ctx, e.config.OpenOCDHost, e.config.OpenOCDPort); err != nil {
		e.logger.Warn("OpenOCD connection check failed (this is not fatal)",
			zap.String("host", e.config.OpenOCDHost),
			zap.Int("port", e.config.OpenOCDPort),
			zap.Error(err),
		)
	}

	return nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
