package target

import (
	"context"
	"fmt"
	"strings"
)

// Target is the write-and-call capability of a remote device.
type Target interface {
	// Poke writes word at address. Failures are device I/O errors.
	Poke(ctx context.Context, address, word uint32) error

	// Blx performs a branch-link-exchange to address with arg in r0 and
	// returns r0 after the callee returns. The low bit of address selects
	// the instruction set at the branch target.
	Blx(ctx context.Context, address, arg uint32) (uint32, error)
}

// Reader is the bulk memory read capability of a remote device.
type Reader interface {
	ReadBlock(ctx context.Context, address uint32, size int) ([]byte, error)
}

// Device is a target that can also be read.
type Device interface {
	Target
	Reader
}

// Mode selects the instruction encoding used for generated code and for
// the branch that invokes it.
type Mode int

const (
	// Thumb is the compact 16-bit encoding.
	Thumb Mode = iota
	// ARM is the full-width 32-bit encoding.
	ARM
)

// BranchAddress returns the address to hand to Blx for code at address.
// Thumb code is entered with the low bit set; ARM code at the bare
// word-aligned address.
func (m Mode) BranchAddress(address uint32) uint32 {
	if m == Thumb {
		return address | 1
	}
	return address &^ 1
}

func (m Mode) String() string {
	switch m {
	case Thumb:
		return "thumb"
	case ARM:
		return "arm"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode accepts "thumb" or "arm" (case-insensitive).
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "thumb", "t":
		return Thumb, nil
	case "arm", "a":
		return ARM, nil
	}
	return Thumb, fmt.Errorf("unknown instruction set mode %q (expected thumb or arm)", s)
}
