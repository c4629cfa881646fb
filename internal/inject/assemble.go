package inject

import (
	"context"
	"fmt"

	"github.com/muurk/coastermelt/internal/target"
	"go.uber.org/zap"
)

// Assemble builds a Thumb assembly body for address and pokes the image into
// t. The body is framed with unified syntax, a global _start and a trailing
// literal pool flush, so ldr rN, =imm works at any point in the body.
//
// Any toolchain failure returns before the first poke. Like Compile, it
// holds the injector's lock for address until the image is loaded.
func (in *Injector) Assemble(ctx context.Context, t target.Target, address uint32, body string) error {
	unlock := in.locks.lock(address)
	defer unlock()

	data, _, err := in.Build(ctx, address, AssemblySource(body))
	if err != nil {
		return fmt.Errorf("assemble at 0x%08x: %w", address, err)
	}
	if err := in.load(ctx, t, address, data); err != nil {
		return fmt.Errorf("assemble at 0x%08x: %w", address, err)
	}

	in.logger.Info("assembled",
		zap.String("address", fmt.Sprintf("0x%08x", address)),
		zap.Int("bytes", len(data)),
	)
	return nil
}
