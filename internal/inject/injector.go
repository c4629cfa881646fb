package inject

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/muurk/coastermelt/internal/disasm"
	"github.com/muurk/coastermelt/internal/image"
	"github.com/muurk/coastermelt/internal/logging"
	"github.com/muurk/coastermelt/internal/target"
	"github.com/muurk/coastermelt/internal/toolchain"
	"go.uber.org/zap"
)

// Injector builds code for fixed load addresses and loads it into a target.
// It is safe for concurrent use; see Evaluate for the scratch address.
type Injector struct {
	config      toolchain.Config
	runner      toolchain.Runner
	disasm      disasm.Backend
	diagnostics io.Writer
	observer    image.Observer
	logger      *zap.Logger

	locks addressLocks
}

// New creates an injector. If runner is nil a toolchain.Invoker is used.
// Debug listings come from the toolchain's objdump.
func New(config toolchain.Config, runner toolchain.Runner, logger *zap.Logger) *Injector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if runner == nil {
		runner = toolchain.NewInvoker(logger)
	}
	config = config.Normalize()
	return &Injector{
		config: config,
		runner: runner,
		disasm: disasm.NewObjdump(config, runner, logger),
		logger: logger,
	}
}

// WithDisassembler replaces the backend used for debug listings.
func (in *Injector) WithDisassembler(b disasm.Backend) *Injector {
	in.disasm = b
	return in
}

// WithDiagnostics sets where debug compiles render their source and listing.
// A nil writer disables rendering; the listing is then only logged.
func (in *Injector) WithDiagnostics(w io.Writer) *Injector {
	in.diagnostics = w
	return in
}

// WithLoadObserver sets a callback told after every word poked while loading
// an image.
func (in *Injector) WithLoadObserver(obs image.Observer) *Injector {
	in.observer = obs
	return in
}

// Config returns the normalized toolchain configuration.
func (in *Injector) Config() toolchain.Config {
	return in.config
}

// Build runs the toolchain on src linked for address and returns the flat
// image and the rendered translation unit. Temporary artifacts are released
// before Build returns, whatever the outcome.
func (in *Injector) Build(ctx context.Context, address uint32, src Source) ([]byte, string, error) {
	ws := toolchain.NewWorkspace(in.config, in.logger, src.Suffix(), ".o", ".bin", ".ld")
	defer ws.Release()

	srcPath, objPath, binPath, ldPath := ws.Path(0), ws.Path(1), ws.Path(2), ws.Path(3)

	text, err := src.writeFile(srcPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to write %s source: %w", src.Kind, err)
	}
	if err := src.Layout(address).WriteFile(ldPath); err != nil {
		return nil, text, err
	}

	if _, err := in.runner.Run(ctx, in.config.CC, src.CompilerArgs(in.config, srcPath, objPath, ldPath)...); err != nil {
		return nil, text, err
	}
	if _, err := in.runner.Run(ctx, in.config.ObjCopy, objPath, "-O", "binary", binPath); err != nil {
		return nil, text, err
	}

	data, err := os.ReadFile(binPath)
	if err != nil {
		return nil, text, fmt.Errorf("failed to read flat image: %w", err)
	}

	in.logger.Debug("built image",
		zap.Stringer("kind", src.Kind),
		zap.String("address", fmt.Sprintf("0x%08x", address)),
		zap.Int("bytes", len(data)),
	)
	logging.LogRawBytes(in.logger, "flat image", data)
	return data, text, nil
}

// load decodes data and pokes it at address.
func (in *Injector) load(ctx context.Context, t target.Target, address uint32, data []byte) error {
	words, err := image.Decode(data)
	if err != nil {
		return err
	}
	logging.LogWords(in.logger, "loading image", address, words)
	return image.WriteObserved(ctx, t, address, words, in.observer)
}

// addressLocks serialises work per load address.
type addressLocks struct {
	mu    sync.Mutex
	locks map[uint32]*sync.Mutex
}

func (l *addressLocks) lock(address uint32) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[uint32]*sync.Mutex)
	}
	m, ok := l.locks[address]
	if !ok {
		m = &sync.Mutex{}
		l.locks[address] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
