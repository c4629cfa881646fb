package inject

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/muurk/coastermelt/internal/disasm"
	"github.com/muurk/coastermelt/internal/image"
	"github.com/muurk/coastermelt/internal/target"
	"github.com/muurk/coastermelt/internal/target/sim"
	"github.com/muurk/coastermelt/internal/toolchain"
	"github.com/muurk/coastermelt/internal/ui"
)

const scratch = DefaultScratchAddress

// mockToolchain is a pair of shell scripts standing in for the compiler
// driver and objcopy. The compiler records its arguments, keeps a copy of
// the source and link layout, and emits fixture.bin as the linked object.
type mockToolchain struct {
	dir     string
	workDir string
	config  toolchain.Config
}

func newMockToolchain(t *testing.T, words ...uint32) *mockToolchain {
	t.Helper()
	m := &mockToolchain{dir: t.TempDir(), workDir: t.TempDir()}

	cc := fmt.Sprintf(`#!/bin/sh
echo "$@" >> %[1]s/cc.args
out=""; src=""; ld=""
while [ $# -gt 0 ]; do
  case "$1" in
    -o) out="$2"; shift 2 ;;
    -T) ld="$2"; shift 2 ;;
    *.s|*.cpp) src="$1"; shift ;;
    *) shift ;;
  esac
done
cp "$src" %[1]s/last-source
cp "$ld" %[1]s/last-layout
cp %[1]s/fixture.bin "$out"
`, m.dir)
	objcopy := "#!/bin/sh\ncp \"$1\" \"$4\"\n"

	writeScript(t, filepath.Join(m.dir, "cc"), cc)
	writeScript(t, filepath.Join(m.dir, "objcopy"), objcopy)
	m.setImage(t, image.Encode(words))

	m.config = toolchain.Config{
		CC:      filepath.Join(m.dir, "cc"),
		ObjCopy: filepath.Join(m.dir, "objcopy"),
		ObjDump: filepath.Join(m.dir, "objdump"),
		WorkDir: m.workDir,
	}
	return m
}

func writeScript(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatalf("failed to write mock tool: %v", err)
	}
}

func (m *mockToolchain) setImage(t *testing.T, data []byte) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(m.dir, "fixture.bin"), data, 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
}

func (m *mockToolchain) failCompiler(t *testing.T, stderr string) {
	t.Helper()
	writeScript(t, filepath.Join(m.dir, "cc"), fmt.Sprintf("#!/bin/sh\necho '%s' >&2\nexit 1\n", stderr))
}

func (m *mockToolchain) read(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(m.dir, name))
	if err != nil {
		t.Fatalf("failed to read %s: %v", name, err)
	}
	return string(data)
}

func (m *mockToolchain) injector() *Injector {
	return New(m.config, nil, nil)
}

func (m *mockToolchain) assertWorkDirEmpty(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(m.workDir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 0 {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("temporary artifacts left behind: %v", names)
	}
}

func TestEvaluate_Constant(t *testing.T) {
	m := newMockToolchain(t, 0x47702005) // movs r0, #5; bx lr
	dev := sim.New(nil)

	for _, arg := range []uint32{0, 1, 99, 0xffffffff} {
		got, err := m.injector().Evaluate(context.Background(), dev, "5", arg, "", scratch)
		if err != nil {
			t.Fatalf("Evaluate() error = %v", err)
		}
		if got != 5 {
			t.Errorf("Evaluate(\"5\", %d) = %d, want 5", arg, got)
		}
	}

	src := m.read(t, "last-source")
	for _, want := range []string{
		"#include <stdint.h>",
		`section(".first")`,
		"externally_visible",
		"start(unsigned arg)",
		"return ( 5 );",
	} {
		if !strings.Contains(src, want) {
			t.Errorf("source missing %q:\n%s", want, src)
		}
	}
	m.assertWorkDirEmpty(t)
}

func TestEvaluate_Arg(t *testing.T) {
	m := newMockToolchain(t, 0x46c04770) // bx lr; nop
	dev := sim.New(nil)

	got, err := m.injector().Evaluate(context.Background(), dev, "arg", 10, "", scratch)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if got != 10 {
		t.Errorf("Evaluate(\"arg\", 10) = %d, want 10", got)
	}
}

func TestEvaluate_MultiplyWithInclude(t *testing.T) {
	const include = "int multiply(int a, int b) { return a * b; }"
	m := newMockToolchain(t, 0x43582305, 0x46c04770) // movs r3, #5; muls r0, r3; bx lr; nop
	dev := sim.New(nil)
	inj := m.injector()

	tests := []struct{ arg, want uint32 }{
		{1, 5}, {2, 10}, {3, 15}, {500, 2500}, {0, 0},
	}
	for _, tt := range tests {
		got, err := inj.Evaluate(context.Background(), dev, "multiply(arg, 5)", tt.arg, include, scratch)
		if err != nil {
			t.Fatalf("Evaluate() error = %v", err)
		}
		if got != tt.want {
			t.Errorf("multiply(%d, 5) = %d, want %d", tt.arg, got, tt.want)
		}
	}

	src := m.read(t, "last-source")
	inc := strings.Index(src, include)
	start := strings.Index(src, "start(unsigned arg)")
	if inc < 0 || start < 0 || inc > start {
		t.Errorf("include must precede the entry function:\n%s", src)
	}
}

func TestEvaluate_ExecutesOnTarget(t *testing.T) {
	m := newMockToolchain(t, 0x68182300, 0x46c04770) // movs r3, #0; ldr r0, [r3]; bx lr; nop
	dev := sim.New(nil)
	dev.Load(0, 0xe59ff018)

	got, err := m.injector().Evaluate(context.Background(), dev, "*(uint32_t*)0", 0, "", scratch)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if got != 0xe59ff018 {
		t.Errorf("Evaluate() = 0x%08x, want 0xe59ff018", got)
	}
}

func TestEvaluate_UsesThumbBranchAddress(t *testing.T) {
	m := newMockToolchain(t, 0x47702005)
	dev := sim.New(nil)

	if _, err := m.injector().Evaluate(context.Background(), dev, "5", 7, "", scratch); err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}

	want := []sim.Call{{Address: scratch | 1, Arg: 7}}
	if diff := cmp.Diff(want, dev.Calls()); diff != "" {
		t.Errorf("Calls() mismatch (-want +got):\n%s", diff)
	}
}

func TestCall_BareAddressIsDistinct(t *testing.T) {
	dev := sim.New(nil)
	dev.Load(scratch, 0x47702005)

	_, err := Call(context.Background(), dev, scratch, 0, target.ARM)
	if !errors.Is(err, sim.ErrModeNotSimulated) {
		t.Fatalf("expected ErrModeNotSimulated, got %v", err)
	}

	got, err := Call(context.Background(), dev, scratch, 0, target.Thumb)
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if got != 5 {
		t.Errorf("Call() = %d, want 5", got)
	}

	want := []sim.Call{{Address: scratch}, {Address: scratch | 1}}
	if diff := cmp.Diff(want, dev.Calls()); diff != "" {
		t.Errorf("Calls() mismatch (-want +got):\n%s", diff)
	}
}

func TestAssemble_NopSled(t *testing.T) {
	m := newMockToolchain(t, 0x46c046c0, 0x46c046c0)
	dev := sim.New(nil)
	const address = 0x1000

	if err := m.injector().Assemble(context.Background(), dev, address, "nop\nnop\nnop\nnop"); err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}

	want := []sim.Call{{Address: address, Arg: 0x46c046c0}, {Address: address + 4, Arg: 0x46c046c0}}
	if diff := cmp.Diff(want, dev.Pokes()); diff != "" {
		t.Errorf("Pokes() mismatch (-want +got):\n%s", diff)
	}

	src := m.read(t, "last-source")
	for _, want := range []string{".syntax unified", ".thumb", ".global _start", "_start:", "nop\nnop", ".pool"} {
		if !strings.Contains(src, want) {
			t.Errorf("source missing %q:\n%s", want, src)
		}
	}
	if strings.Index(src, "nop") > strings.Index(src, ".pool") {
		t.Error("literal pool must follow the body")
	}

	args := m.read(t, "cc.args")
	if !strings.Contains(args, "-nostdlib -nostdinc") {
		t.Errorf("assembler args = %q, want bare-metal flags", args)
	}
	if strings.Contains(args, "-Os") {
		t.Errorf("assembler args = %q, should not optimise", args)
	}

	layout := m.read(t, "last-layout")
	if !strings.Contains(layout, "ORIGIN = 0x00001000") || strings.Contains(layout, ".first") {
		t.Errorf("unexpected assembly layout:\n%s", layout)
	}
	m.assertWorkDirEmpty(t)
}

func TestCompile_PokesAscending(t *testing.T) {
	words := []uint32{0x11111111, 0x22222222, 0x33333333, 0x44444444}
	m := newMockToolchain(t, words...)
	dev := sim.New(nil)

	if err := m.injector().Compile(context.Background(), dev, 0x2000, "0", CompileOptions{}); err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	var want []sim.Call
	for i, w := range words {
		want = append(want, sim.Call{Address: 0x2000 + uint32(4*i), Arg: w})
	}
	if diff := cmp.Diff(want, dev.Pokes()); diff != "" {
		t.Errorf("Pokes() mismatch (-want +got):\n%s", diff)
	}
	if len(dev.Calls()) != 0 {
		t.Error("Compile must not call the code")
	}
}

func TestCompile_LoadObserver(t *testing.T) {
	m := newMockToolchain(t, 0x11111111, 0x22222222, 0x33333333)
	dev := sim.New(nil)

	var got []string
	in := m.injector().WithLoadObserver(func(address uint32, written, total int) {
		got = append(got, fmt.Sprintf("0x%x %d/%d", address, written, total))
	})
	if err := in.Compile(context.Background(), dev, 0x2000, "0", CompileOptions{}); err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	want := []string{"0x2000 1/3", "0x2000 2/3", "0x2000 3/3"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("observed loads mismatch (-want +got):\n%s", diff)
	}
}

func TestCompile_ModeFlags(t *testing.T) {
	tests := []struct {
		mode target.Mode
		flag string
	}{
		{target.Thumb, "-mthumb"},
		{target.ARM, "-mno-thumb"},
	}

	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			m := newMockToolchain(t, 0)
			m.config.CFlags = []string{"-mcpu=arm7tdmi"}

			err := m.injector().Compile(context.Background(), sim.New(nil), scratch, "0", CompileOptions{Mode: tt.mode})
			if err != nil {
				t.Fatalf("Compile() error = %v", err)
			}

			args := strings.Fields(m.read(t, "cc.args"))
			for _, want := range []string{"-nostdlib", "-Os", "-fwhole-program", tt.flag, "-mcpu=arm7tdmi"} {
				if !contains(args, want) {
					t.Errorf("compiler args %v missing %q", args, want)
				}
			}
			if args[len(args)-1] != "-mcpu=arm7tdmi" {
				t.Errorf("extra flags must come last, got %v", args)
			}

			layout := m.read(t, "last-layout")
			if !strings.Contains(layout, "*(.first) *(.text) *(.rodata)") {
				t.Errorf("compiler layout must place .first first:\n%s", layout)
			}
		})
	}
}

func TestCompile_ToolFailureWritesNothing(t *testing.T) {
	m := newMockToolchain(t, 0x47702005)
	m.failCompiler(t, "error: expected primary-expression")
	dev := sim.New(nil)

	err := m.injector().Compile(context.Background(), dev, scratch, "5 +", CompileOptions{})

	var execErr *toolchain.ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected *toolchain.ExecutionError, got %T: %v", err, err)
	}
	if execErr.ExitCode != 1 || !strings.Contains(execErr.Stderr, "expected primary-expression") {
		t.Errorf("unexpected execution error: %+v", execErr)
	}
	if len(dev.Pokes()) != 0 {
		t.Errorf("expected no pokes, got %v", dev.Pokes())
	}
	m.assertWorkDirEmpty(t)
}

func TestAssemble_MissingToolchain(t *testing.T) {
	m := newMockToolchain(t, 0)
	m.config.CC = filepath.Join(m.dir, "does-not-exist")
	dev := sim.New(nil)

	err := m.injector().Assemble(context.Background(), dev, 0, "nop")

	var preErr *toolchain.PrerequisiteError
	if !errors.As(err, &preErr) {
		t.Fatalf("expected *toolchain.PrerequisiteError, got %T: %v", err, err)
	}
	if len(dev.Pokes()) != 0 {
		t.Error("expected no pokes")
	}
	m.assertWorkDirEmpty(t)
}

func TestCompile_UnalignedImageWritesNothing(t *testing.T) {
	m := newMockToolchain(t)
	m.setImage(t, []byte{0x05, 0x20, 0x70, 0x47, 0xc0, 0x46})
	dev := sim.New(nil)

	err := m.injector().Compile(context.Background(), dev, scratch, "5", CompileOptions{})

	var decErr *image.DecodeError
	if !errors.As(err, &decErr) {
		t.Fatalf("expected *image.DecodeError, got %T: %v", err, err)
	}
	if decErr.Length != 6 {
		t.Errorf("DecodeError.Length = %d, want 6", decErr.Length)
	}
	if len(dev.Pokes()) != 0 {
		t.Error("expected no pokes")
	}
	m.assertWorkDirEmpty(t)
}

func TestBuild_RetainTemps(t *testing.T) {
	m := newMockToolchain(t, 0x47702005)
	m.config.RetainTemps = true

	if _, _, err := m.injector().Build(context.Background(), scratch, ExpressionSource("5", "", target.Thumb)); err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	entries, err := os.ReadDir(m.workDir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	suffixes := map[string]bool{}
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), toolchain.DefaultPrefix+"-") {
			t.Errorf("unexpected artifact name %q", e.Name())
		}
		suffixes[filepath.Ext(e.Name())] = true
	}
	for _, want := range []string{".cpp", ".o", ".bin", ".ld"} {
		if !suffixes[want] {
			t.Errorf("retained artifacts missing %s file: %v", want, entries)
		}
	}
}

type fixedListing disasm.Listing

func (f fixedListing) Disassemble(ctx context.Context, data []byte, address uint32, mode target.Mode) (disasm.Listing, error) {
	return disasm.Listing(f), nil
}

func TestCompile_DebugRendersDiagnostics(t *testing.T) {
	t.Setenv(ui.NoColorEnv, "1")
	m := newMockToolchain(t, 0x46c04770)
	var buf bytes.Buffer

	inj := m.injector().
		WithDisassembler(fixedListing{{Address: scratch, Text: "4770 \tbx\tlr"}}).
		WithDiagnostics(&buf)

	err := inj.Compile(context.Background(), sim.New(nil), scratch, "arg", CompileOptions{Debug: true})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{"return ( arg );", "01fffda0", "bx"} {
		if !strings.Contains(out, want) {
			t.Errorf("diagnostics missing %q:\n%s", want, out)
		}
	}
}

type failingListing struct{ err error }

func (f failingListing) Disassemble(ctx context.Context, data []byte, address uint32, mode target.Mode) (disasm.Listing, error) {
	return nil, f.err
}

func TestCompile_DebugReportsDisassemblyFailure(t *testing.T) {
	t.Setenv(ui.NoColorEnv, "1")
	m := newMockToolchain(t, 0x46c04770)
	var buf bytes.Buffer
	dev := sim.New(nil)

	inj := m.injector().
		WithDisassembler(failingListing{errors.New("objdump missing")}).
		WithDiagnostics(&buf)

	if err := inj.Compile(context.Background(), dev, scratch, "arg", CompileOptions{Debug: true}); err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "disassembly unavailable: objdump missing") {
		t.Errorf("diagnostics do not report the failure:\n%s", out)
	}
	if strings.Contains(out, "(empty image)") {
		t.Errorf("failure reported as an empty image:\n%s", out)
	}
	if got := dev.Word(scratch); got != 0x46c04770 {
		t.Errorf("image not loaded after diagnostics failure: 0x%08x", got)
	}
}

func TestCompile_NoDiagnosticsWithoutDebug(t *testing.T) {
	m := newMockToolchain(t, 0x46c04770)
	var buf bytes.Buffer

	inj := m.injector().WithDiagnostics(&buf)
	if err := inj.Compile(context.Background(), sim.New(nil), scratch, "arg", CompileOptions{}); err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("unexpected diagnostics output:\n%s", buf.String())
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
