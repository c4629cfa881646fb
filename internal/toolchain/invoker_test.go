package toolchain

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

// writeMockTool creates an executable shell script acting as a toolchain binary.
func writeMockTool(t *testing.T, name, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("mock toolchain scripts require a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("failed to create mock %s: %v", name, err)
	}
	return path
}

func TestInvoker_Run_Success(t *testing.T) {
	tool := writeMockTool(t, "mock-objdump", `#!/bin/sh
echo "args: $@"
exit 0
`)

	out, err := NewInvoker(zap.NewNop()).Run(context.Background(), tool, "-D", "file.bin")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.Contains(out, "args: -D file.bin") {
		t.Errorf("unexpected stdout: %q", out)
	}
}

func TestInvoker_Run_NonZeroExit(t *testing.T) {
	tool := writeMockTool(t, "mock-gcc", `#!/bin/sh
echo "expr.cpp:3: error: expected ';'" >&2
exit 1
`)

	_, err := NewInvoker(zap.NewNop()).Run(context.Background(), tool, "-o", "x.o")
	if err == nil {
		t.Fatal("expected error for non-zero exit code, got nil")
	}

	var execErr *ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected ExecutionError, got %T: %v", err, err)
	}
	if execErr.ExitCode != 1 {
		t.Errorf("expected exit code 1, got %d", execErr.ExitCode)
	}
	if !strings.Contains(execErr.Stderr, "expected ';'") {
		t.Errorf("expected stderr to carry compiler diagnostics, got: %s", execErr.Stderr)
	}
}

func TestInvoker_Run_NotFound(t *testing.T) {
	_, err := NewInvoker(nil).Run(context.Background(), "/nonexistent/arm-none-eabi-gcc")
	var preErr *PrerequisiteError
	if !errors.As(err, &preErr) {
		t.Fatalf("expected PrerequisiteError, got %T: %v", err, err)
	}

	_, err = NewInvoker(nil).Run(context.Background(), "coastermelt-definitely-not-on-path")
	if !errors.As(err, &preErr) {
		t.Fatalf("expected PrerequisiteError for PATH lookup, got %T: %v", err, err)
	}
}

func TestInvoker_Run_ContextDeadline(t *testing.T) {
	tool := writeMockTool(t, "mock-slow", `#!/bin/sh
exec sleep 10
`)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := NewInvoker(nil).Run(ctx, tool)
	if err == nil {
		t.Fatal("expected error when context expires")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context.DeadlineExceeded in chain, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("subprocess was not stopped by context")
	}
}

func TestRender(t *testing.T) {
	out, err := Render("greeting", "Hello {{.Name}}!", map[string]string{"Name": "target"})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if out != "Hello target!" {
		t.Errorf("Render() = %q", out)
	}

	_, err = Render("broken", "{{.Name", nil)
	var tmplErr *TemplateError
	if !errors.As(err, &tmplErr) {
		t.Errorf("expected TemplateError, got %T: %v", err, err)
	}
}
