package disasm

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/muurk/coastermelt/internal/target"
	"github.com/muurk/coastermelt/internal/target/sim"
	"github.com/muurk/coastermelt/internal/toolchain"
	"go.uber.org/zap"
)

// newMockObjdump writes a shell script that records its arguments and a copy
// of the binary it was given, then prints objdumpOutput.
func newMockObjdump(t *testing.T) (config toolchain.Config, argsLog, binCopy string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("mock toolchain scripts require a POSIX shell")
	}

	dir := t.TempDir()
	argsLog = filepath.Join(dir, "args.log")
	binCopy = filepath.Join(dir, "input.bin")
	listing := filepath.Join(dir, "listing.txt")
	if err := os.WriteFile(listing, []byte(objdumpOutput), 0o644); err != nil {
		t.Fatalf("failed to write listing fixture: %v", err)
	}

	script := `#!/bin/sh
echo "$@" > "` + argsLog + `"
for last in "$@"; do :; done
cp "$last" "` + binCopy + `"
cat "` + listing + `"
`
	tool := filepath.Join(dir, "mock-objdump")
	if err := os.WriteFile(tool, []byte(script), 0o755); err != nil {
		t.Fatalf("failed to create mock objdump: %v", err)
	}

	config = toolchain.DefaultConfig()
	config.ObjDump = tool
	config.WorkDir = filepath.Join(dir, "work")
	if err := os.Mkdir(config.WorkDir, 0o755); err != nil {
		t.Fatalf("failed to create work dir: %v", err)
	}
	return config, argsLog, binCopy
}

func TestObjdump_Disassemble(t *testing.T) {
	config, argsLog, binCopy := newMockObjdump(t)
	o := NewObjdump(config, nil, zap.NewNop())

	data := []byte{0xc0, 0x46, 0x70, 0x47}
	listing, err := o.Disassemble(context.Background(), data, 0x1fffda0, target.Thumb)
	if err != nil {
		t.Fatalf("Disassemble() error = %v", err)
	}
	if len(listing) != 6 {
		t.Errorf("expected 6 entries, got %d", len(listing))
	}

	args, err := os.ReadFile(argsLog)
	if err != nil {
		t.Fatalf("mock objdump did not run: %v", err)
	}
	for _, want := range []string{"-D -w", "-b binary", "-m arm7tdmi", "--prefix-addresses", "--adjust-vma 0x01fffda0", "-M force-thumb"} {
		if !strings.Contains(string(args), want) {
			t.Errorf("objdump args %q missing %q", args, want)
		}
	}

	got, err := os.ReadFile(binCopy)
	if err != nil {
		t.Fatalf("binary was not passed to objdump: %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("objdump saw % x, want % x", got, data)
	}

	// The workspace binary is removed afterwards.
	entries, _ := os.ReadDir(config.WorkDir)
	if len(entries) != 0 {
		t.Errorf("expected work dir to be empty, found %d entries", len(entries))
	}
}

func TestObjdump_ArgsARMMode(t *testing.T) {
	o := NewObjdump(toolchain.DefaultConfig(), nil, nil)
	args := strings.Join(o.Args("x.bin", 0, target.ARM), " ")
	if !strings.Contains(args, "-M no-force-thumb") {
		t.Errorf("expected no-force-thumb for ARM mode, got %q", args)
	}
	if !strings.Contains(args, "--adjust-vma 0x00000000") {
		t.Errorf("expected zero vma, got %q", args)
	}
}

func TestObjdump_RetainTemps(t *testing.T) {
	config, _, _ := newMockObjdump(t)
	config.RetainTemps = true
	o := NewObjdump(config, nil, zap.NewNop())

	if _, err := o.Disassemble(context.Background(), []byte{0, 0, 0, 0}, 0, target.Thumb); err != nil {
		t.Fatalf("Disassemble() error = %v", err)
	}
	entries, _ := os.ReadDir(config.WorkDir)
	if len(entries) != 1 || !strings.HasSuffix(entries[0].Name(), ".bin") {
		t.Errorf("expected the retained .bin artifact, found %v", entries)
	}
}

func TestObjdump_ToolFailure(t *testing.T) {
	config := toolchain.DefaultConfig()
	config.ObjDump = "/nonexistent/objdump"
	config.WorkDir = t.TempDir()
	o := NewObjdump(config, nil, zap.NewNop())

	_, err := o.Disassemble(context.Background(), []byte{0, 0}, 0, target.Thumb)
	var preErr *toolchain.PrerequisiteError
	if !errors.As(err, &preErr) {
		t.Fatalf("expected PrerequisiteError, got %T: %v", err, err)
	}
	entries, _ := os.ReadDir(config.WorkDir)
	if len(entries) != 0 {
		t.Errorf("expected cleanup after failure, found %d entries", len(entries))
	}
}

func TestLive(t *testing.T) {
	config, _, binCopy := newMockObjdump(t)
	dev := sim.New(nil)
	dev.Load(0x1fffda0, 0x46c046c0, 0x47704770)

	_, err := Live(context.Background(), NewObjdump(config, nil, nil), dev, 0x1fffda0, 8, target.Thumb)
	if err != nil {
		t.Fatalf("Live() error = %v", err)
	}

	got, _ := os.ReadFile(binCopy)
	want := []byte{0xc0, 0x46, 0xc0, 0x46, 0x70, 0x47, 0x70, 0x47}
	if string(got) != string(want) {
		t.Errorf("objdump saw % x, want % x", got, want)
	}
}
