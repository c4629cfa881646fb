// Package disasm turns machine code into address-annotated listings.
//
// Two backends are provided:
//
//   - Objdump runs the toolchain's objdump on a raw binary with the CPU
//     variant, load address and instruction-set mode pinned explicitly
//   - Native decodes full-width ARM code in-process with golang.org/x/arch
//
// Both produce the same Listing type, so either can be substituted without
// touching the rest of the pipeline. Chain combines them, falling through
// when a backend does not support the requested mode.
package disasm

import (
	"context"
	"errors"
	"fmt"

	"github.com/muurk/coastermelt/internal/target"
)

// ErrModeUnsupported is returned by a backend that cannot decode the
// requested instruction-set mode.
var ErrModeUnsupported = errors.New("disasm: instruction set mode not supported by backend")

// Backend disassembles a byte buffer that is resident at address.
type Backend interface {
	Disassemble(ctx context.Context, data []byte, address uint32, mode target.Mode) (Listing, error)
}

// Live reads size bytes at address from r and disassembles them with b.
func Live(ctx context.Context, b Backend, r target.Reader, address uint32, size int, mode target.Mode) (Listing, error) {
	data, err := r.ReadBlock(ctx, address, size)
	if err != nil {
		return nil, fmt.Errorf("failed to read %d bytes at 0x%08x: %w", size, address, err)
	}
	return b.Disassemble(ctx, data, address, mode)
}

// Chain tries each backend in order, moving to the next only when a
// backend reports ErrModeUnsupported.
type Chain []Backend

// Disassemble implements Backend.
func (c Chain) Disassemble(ctx context.Context, data []byte, address uint32, mode target.Mode) (Listing, error) {
	for _, b := range c {
		listing, err := b.Disassemble(ctx, data, address, mode)
		if errors.Is(err, ErrModeUnsupported) {
			continue
		}
		return listing, err
	}
	return nil, fmt.Errorf("%s: %w", mode, ErrModeUnsupported)
}
