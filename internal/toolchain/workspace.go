package toolchain

import (
	"errors"
	"fmt"
	"io/fs"
	"math/rand"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// DefaultPrefix is the leading part of temporary artifact names.
const DefaultPrefix = "temp-coastermelt"

// Workspace is a set of temporary file paths owned by a single operation.
//
// All paths share one random six-digit discriminator, which makes collisions
// between concurrent operations unlikely but not impossible. Release removes
// every path unless the configuration asks for artifacts to be retained.
type Workspace struct {
	paths  []string
	retain bool
	logger *zap.Logger
}

// NewWorkspace allocates one path per suffix, named
// "<prefix>-<6 digits><suffix>" inside config.WorkDir. No files are created.
func NewWorkspace(config Config, logger *zap.Logger, suffixes ...string) *Workspace {
	config = config.Normalize()
	if logger == nil {
		logger = zap.NewNop()
	}

	base := fmt.Sprintf("%s-%06d", config.Prefix, 100000+rand.Intn(900000))
	paths := make([]string, len(suffixes))
	for i, suffix := range suffixes {
		name := base + suffix
		if config.WorkDir != "" {
			name = filepath.Join(config.WorkDir, name)
		}
		paths[i] = name
	}

	return &Workspace{
		paths:  paths,
		retain: config.RetainTemps,
		logger: logger,
	}
}

// Path returns the i-th allocated path, in suffix order.
func (w *Workspace) Path(i int) string {
	return w.paths[i]
}

// Paths returns all allocated paths in suffix order.
func (w *Workspace) Paths() []string {
	return append([]string(nil), w.paths...)
}

// Release deletes every allocated path. Paths that do not exist are
// skipped silently; other failures are logged as warnings and returned.
// When artifacts are retained Release only logs where they are.
func (w *Workspace) Release() error {
	if w.retain {
		w.logger.Info("retaining temporary artifacts", zap.Strings("paths", w.paths))
		return nil
	}

	var errs []error
	for _, p := range w.paths {
		err := os.Remove(p)
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			continue
		}
		w.logger.Warn("failed to remove temporary artifact",
			zap.String("path", p),
			zap.Error(err),
		)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
