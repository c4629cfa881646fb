package disasm

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/muurk/coastermelt/internal/target"
	"golang.org/x/arch/arm/armasm"
)

// Native decodes full-width ARM code in-process. It does not need a
// toolchain but cannot decode Thumb.
type Native struct{}

var _ Backend = Native{}

// Disassemble implements Backend. Undecodable words are listed as .word
// directives and a trailing partial word as .byte directives.
func (Native) Disassemble(ctx context.Context, data []byte, address uint32, mode target.Mode) (Listing, error) {
	if mode != target.ARM {
		return nil, fmt.Errorf("native decoder handles arm only, not %s: %w", mode, ErrModeUnsupported)
	}

	var listing Listing
	for off := 0; off < len(data); {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		pc := address + uint32(off)
		if len(data)-off < 4 {
			for ; off < len(data); off++ {
				listing = append(listing, Entry{
					Address: address + uint32(off),
					Text:    fmt.Sprintf("%02x      \t.byte\t0x%02x", data[off], data[off]),
				})
			}
			break
		}

		word := binary.LittleEndian.Uint32(data[off:])
		inst, err := armasm.Decode(data[off:off+4], armasm.ModeARM)
		text := ""
		if err != nil {
			text = fmt.Sprintf(".word\t0x%08x", word)
		} else {
			text = gnuSyntax(inst, pc)
		}
		listing = append(listing, Entry{
			Address: pc,
			Text:    fmt.Sprintf("%08x \t%s", word, text),
		})
		off += 4
	}
	return listing, nil
}

// gnuSyntax renders inst in GNU syntax with PC-relative branch targets
// resolved to absolute addresses, as objdump does with --adjust-vma. In ARM
// state the PC reads as the instruction address plus 8.
func gnuSyntax(inst armasm.Inst, pc uint32) string {
	text := armasm.GNUSyntax(inst)
	for _, arg := range inst.Args {
		rel, ok := arg.(armasm.PCRel)
		if !ok {
			continue
		}
		dest := pc + 8 + uint32(int32(rel))
		text = strings.Replace(text, fmt.Sprintf(".%+#x", int32(rel)+4), fmt.Sprintf("0x%x", dest), 1)
	}
	return text
}
