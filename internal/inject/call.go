package inject

import (
	"context"
	"fmt"

	"github.com/muurk/coastermelt/internal/target"
	"go.uber.org/zap"
)

// DefaultScratchAddress is the region reserved for one-shot evaluation.
const DefaultScratchAddress uint32 = 0x1fffda0

// Call invokes the code at address with arg in r0 and returns r0. Thumb code
// is entered at address|1.
func Call(ctx context.Context, t target.Target, address, arg uint32, mode target.Mode) (uint32, error) {
	branch := mode.BranchAddress(address)
	result, err := t.Blx(ctx, branch, arg)
	if err != nil {
		return 0, fmt.Errorf("call 0x%08x: %w", branch, err)
	}
	return result, nil
}

// Call is Call with the injector's logger.
func (in *Injector) Call(ctx context.Context, t target.Target, address, arg uint32, mode target.Mode) (uint32, error) {
	result, err := Call(ctx, t, address, arg, mode)
	if err != nil {
		return 0, err
	}
	in.logger.Debug("called",
		zap.String("address", fmt.Sprintf("0x%08x", mode.BranchAddress(address))),
		zap.Uint32("arg", arg),
		zap.Uint32("result", result),
	)
	return result, nil
}

// Evaluate compiles expression as Thumb code at scratch, calls it with arg
// and returns the result.
//
// The scratch region is shared mutable target memory. The compile and the
// call run under the injector's lock for scratch, so Evaluate, Compile and
// Assemble through the same Injector never interleave at that address.
// Callers outside this process, or using other Injectors, must not overlap
// an evaluation at the same address. Use distinct scratch addresses for
// concurrent evaluation.
func (in *Injector) Evaluate(ctx context.Context, t target.Target, expression string, arg uint32, include string, scratch uint32) (uint32, error) {
	unlock := in.locks.lock(scratch)
	defer unlock()

	opts := CompileOptions{
		Include: include,
		Mode:    target.Thumb,
		Debug:   in.diagnostics != nil,
	}
	if err := in.compile(ctx, t, scratch, expression, opts); err != nil {
		return 0, err
	}
	return in.Call(ctx, t, scratch, arg, target.Thumb)
}
