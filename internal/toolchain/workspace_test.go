package toolchain

import (
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestNewWorkspace_Naming(t *testing.T) {
	dir := t.TempDir()
	config := DefaultConfig()
	config.WorkDir = dir

	ws := NewWorkspace(config, zap.NewNop(), ".s", ".o", ".bin", ".ld")
	paths := ws.Paths()
	if len(paths) != 4 {
		t.Fatalf("expected 4 paths, got %d", len(paths))
	}

	pattern := regexp.MustCompile(`^temp-coastermelt-(\d{6})\.(s|o|bin|ld)$`)
	var discriminator string
	for i, p := range paths {
		if filepath.Dir(p) != dir {
			t.Errorf("path %q not inside work dir %q", p, dir)
		}
		m := pattern.FindStringSubmatch(filepath.Base(p))
		if m == nil {
			t.Fatalf("path %q does not match naming scheme", p)
		}
		if i == 0 {
			discriminator = m[1]
		} else if m[1] != discriminator {
			t.Errorf("path %q uses discriminator %s, want %s", p, m[1], discriminator)
		}
	}

	if !strings.HasSuffix(ws.Path(2), ".bin") {
		t.Errorf("Path(2) = %q, want .bin suffix", ws.Path(2))
	}
}

func TestNewWorkspace_DefaultsToWorkingDirectory(t *testing.T) {
	ws := NewWorkspace(Config{}, nil, ".bin")
	if strings.ContainsRune(ws.Path(0), filepath.Separator) {
		t.Errorf("expected bare file name, got %q", ws.Path(0))
	}
}

func TestWorkspace_Release(t *testing.T) {
	dir := t.TempDir()
	config := DefaultConfig()
	config.WorkDir = dir

	ws := NewWorkspace(config, zap.NewNop(), ".a", ".b", ".c")
	// Only two of three exist; the missing one must not be an error.
	for _, p := range ws.Paths()[:2] {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("failed to create %s: %v", p, err)
		}
	}

	if err := ws.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	for _, p := range ws.Paths() {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("expected %s to be removed", p)
		}
	}

	// Releasing twice is harmless.
	if err := ws.Release(); err != nil {
		t.Errorf("second Release() error = %v", err)
	}
}

func TestWorkspace_ReleaseRetained(t *testing.T) {
	dir := t.TempDir()
	config := DefaultConfig()
	config.WorkDir = dir
	config.RetainTemps = true

	ws := NewWorkspace(config, zap.NewNop(), ".bin")
	if err := os.WriteFile(ws.Path(0), []byte("x"), 0o644); err != nil {
		t.Fatalf("failed to create file: %v", err)
	}

	if err := ws.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if _, err := os.Stat(ws.Path(0)); err != nil {
		t.Errorf("expected retained artifact to exist: %v", err)
	}
}

func TestWorkspace_ReleaseSurfacesOtherErrors(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("directory removal semantics differ on windows")
	}

	dir := t.TempDir()
	config := DefaultConfig()
	config.WorkDir = dir

	ws := NewWorkspace(config, zap.NewNop(), ".d")
	// A non-empty directory cannot be removed with os.Remove.
	if err := os.MkdirAll(filepath.Join(ws.Path(0), "child"), 0o755); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}

	if err := ws.Release(); err == nil {
		t.Error("expected Release() to report the removal failure")
	}
}
