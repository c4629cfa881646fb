package disasm

import (
	"context"
	"encoding/binary"
	"errors"
	"strings"
	"testing"

	"github.com/muurk/coastermelt/internal/target"
)

func TestNative_ARM(t *testing.T) {
	// ldr pc, [pc, #24]; bx lr; trailing two bytes
	data := []byte{0x18, 0xf0, 0x9f, 0xe5, 0x1e, 0xff, 0x2f, 0xe1, 0xaa, 0xbb}

	listing, err := Native{}.Disassemble(context.Background(), data, 0, target.ARM)
	if err != nil {
		t.Fatalf("Disassemble() error = %v", err)
	}
	if len(listing) != 4 {
		t.Fatalf("expected 4 entries, got %d: %v", len(listing), listing)
	}

	wantAddrs := []uint32{0, 4, 8, 9}
	for i, e := range listing {
		if e.Address != wantAddrs[i] {
			t.Errorf("entry %d address = 0x%x, want 0x%x", i, e.Address, wantAddrs[i])
		}
	}
	if !strings.HasPrefix(listing[0].Text, "e59ff018") || !strings.Contains(listing[0].Text, "ldr") {
		t.Errorf("unexpected first entry %q", listing[0].Text)
	}
	if !strings.Contains(listing[1].Text, "bx") {
		t.Errorf("unexpected second entry %q", listing[1].Text)
	}
	if !strings.Contains(listing[2].Text, ".byte\t0xaa") {
		t.Errorf("unexpected trailing entry %q", listing[2].Text)
	}
}

func TestNative_BranchTargetsAreAbsolute(t *testing.T) {
	tests := []struct {
		name    string
		word    uint32
		address uint32
		want    string
	}{
		{"branch to self", 0xeafffffe, 0x1000, "b 0x1000"},
		{"forward call", 0xeb000000, 0x1000, "bl 0x1008"},
		{"backward branch", 0xeafffffc, 0x00200010, "b 0x200008"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := make([]byte, 4)
			binary.LittleEndian.PutUint32(data, tt.word)

			listing, err := Native{}.Disassemble(context.Background(), data, tt.address, target.ARM)
			if err != nil {
				t.Fatalf("Disassemble() error = %v", err)
			}
			if len(listing) != 1 || !strings.HasSuffix(listing[0].Text, tt.want) {
				t.Errorf("Disassemble() = %v, want text ending in %q", listing, tt.want)
			}
		})
	}
}

func TestNative_ThumbUnsupported(t *testing.T) {
	_, err := Native{}.Disassemble(context.Background(), []byte{0x70, 0x47}, 0, target.Thumb)
	if !errors.Is(err, ErrModeUnsupported) {
		t.Errorf("expected ErrModeUnsupported, got %v", err)
	}
}

type fixedBackend struct {
	listing Listing
	calls   int
}

func (f *fixedBackend) Disassemble(ctx context.Context, data []byte, address uint32, mode target.Mode) (Listing, error) {
	f.calls++
	return f.listing, nil
}

func TestChain(t *testing.T) {
	fallback := &fixedBackend{listing: Listing{{0, "nop"}}}
	chain := Chain{Native{}, fallback}

	got, err := chain.Disassemble(context.Background(), []byte{0xc0, 0x46}, 0, target.Thumb)
	if err != nil {
		t.Fatalf("Disassemble() error = %v", err)
	}
	if fallback.calls != 1 || len(got) != 1 {
		t.Errorf("expected thumb request to fall through to second backend")
	}

	got, err = chain.Disassemble(context.Background(), []byte{0x1e, 0xff, 0x2f, 0xe1}, 0, target.ARM)
	if err != nil {
		t.Fatalf("Disassemble() error = %v", err)
	}
	if fallback.calls != 1 {
		t.Errorf("expected ARM request to be served by the native backend")
	}
	if len(got) != 1 || !strings.Contains(got[0].Text, "bx") {
		t.Errorf("unexpected listing %v", got)
	}

	if _, err := (Chain{Native{}}).Disassemble(context.Background(), nil, 0, target.Thumb); !errors.Is(err, ErrModeUnsupported) {
		t.Errorf("expected ErrModeUnsupported from exhausted chain, got %v", err)
	}
}
