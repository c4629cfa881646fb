package inject

import (
	"context"
	"fmt"
	"io"

	"github.com/muurk/coastermelt/internal/target"
	"github.com/muurk/coastermelt/internal/ui"
	"go.uber.org/zap"
)

// CompileOptions are the optional parts of a compile request.
type CompileOptions struct {
	// Include is C++ text placed before the entry function, e.g. helper
	// definitions or firmware symbol declarations.
	Include string
	// Mode selects -mthumb or -mno-thumb. The zero value is Thumb.
	Mode target.Mode
	// Debug renders the generated source and a disassembly of the image to
	// the injector's diagnostics writer.
	Debug bool
}

// Compile builds "uint32_t start(unsigned arg) { return (expression); }" for
// address and pokes the image into t. The entry function lands in the
// .first section, so it is always the first byte of the image.
//
// Compile errors, such as a syntax error in the expression or an
// unresolved symbol in Include, return before the first poke.
//
// Builds and loads through one Injector are serialised per load address.
func (in *Injector) Compile(ctx context.Context, t target.Target, address uint32, expression string, opts CompileOptions) error {
	unlock := in.locks.lock(address)
	defer unlock()

	return in.compile(ctx, t, address, expression, opts)
}

// compile is Compile for callers already holding the address lock.
func (in *Injector) compile(ctx context.Context, t target.Target, address uint32, expression string, opts CompileOptions) error {
	src := ExpressionSource(expression, opts.Include, opts.Mode)

	data, text, err := in.Build(ctx, address, src)
	if err != nil {
		return fmt.Errorf("compile at 0x%08x: %w", address, err)
	}

	if opts.Debug {
		in.showDiagnostics(ctx, address, opts.Mode, text, data)
	}

	if err := in.load(ctx, t, address, data); err != nil {
		return fmt.Errorf("compile at 0x%08x: %w", address, err)
	}

	in.logger.Info("compiled",
		zap.String("address", fmt.Sprintf("0x%08x", address)),
		zap.String("expression", expression),
		zap.Stringer("mode", opts.Mode),
		zap.Int("bytes", len(data)),
	)
	return nil
}

// showDiagnostics renders source and listing. Failures are logged and never
// affect the compile.
func (in *Injector) showDiagnostics(ctx context.Context, address uint32, mode target.Mode, text string, data []byte) {
	listing, disasmErr := in.disasm.Disassemble(ctx, data, address, mode)
	if disasmErr != nil {
		in.logger.Warn("failed to disassemble compiled image", zap.Error(disasmErr))
	}

	if in.diagnostics == nil {
		in.logger.Debug("compiled image listing",
			zap.String("source", text),
			zap.String("listing", listing.String()),
		)
		return
	}

	if _, err := io.WriteString(in.diagnostics, ui.RenderCompileDiagnostics(address, text, listing, disasmErr)+"\n"); err != nil {
		in.logger.Warn("failed to write compile diagnostics", zap.Error(err))
	}
}
