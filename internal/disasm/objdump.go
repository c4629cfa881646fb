package disasm

import (
	"context"
	"fmt"
	"os"

	"github.com/muurk/coastermelt/internal/target"
	"github.com/muurk/coastermelt/internal/toolchain"
	"go.uber.org/zap"
)

// Objdump disassembles with the toolchain's objdump in raw-binary mode.
type Objdump struct {
	config toolchain.Config
	runner toolchain.Runner
	logger *zap.Logger
}

var _ Backend = (*Objdump)(nil)

// NewObjdump creates an objdump backend. If runner is nil a
// toolchain.Invoker is used.
func NewObjdump(config toolchain.Config, runner toolchain.Runner, logger *zap.Logger) *Objdump {
	if logger == nil {
		logger = zap.NewNop()
	}
	if runner == nil {
		runner = toolchain.NewInvoker(logger)
	}
	return &Objdump{
		config: config.Normalize(),
		runner: runner,
		logger: logger,
	}
}

// Args returns the objdump argument list for a binary at path. The mode is
// always forced: short fragments are too ambiguous to auto-detect.
func (o *Objdump) Args(path string, address uint32, mode target.Mode) []string {
	force := "force-thumb"
	if mode == target.ARM {
		force = "no-force-thumb"
	}
	return []string{
		"-D", "-w",
		"-b", "binary",
		"-m", o.config.CPU,
		"--prefix-addresses",
		"--adjust-vma", fmt.Sprintf("0x%08x", address),
		"-M", force,
		path,
	}
}

// Disassemble implements Backend.
func (o *Objdump) Disassemble(ctx context.Context, data []byte, address uint32, mode target.Mode) (Listing, error) {
	ws := toolchain.NewWorkspace(o.config, o.logger, ".bin")
	defer ws.Release()

	bin := ws.Path(0)
	if err := os.WriteFile(bin, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write binary for disassembly: %w", err)
	}

	output, err := o.runner.Run(ctx, o.config.ObjDump, o.Args(bin, address, mode)...)
	if err != nil {
		return nil, err
	}

	listing := ParseObjdump(output)
	o.logger.Debug("disassembled buffer",
		zap.String("address", fmt.Sprintf("0x%08x", address)),
		zap.Int("bytes", len(data)),
		zap.Stringer("mode", mode),
		zap.Int("instructions", len(listing)),
	)
	return listing, nil
}
