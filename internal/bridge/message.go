package bridge

import (
	"fmt"
)

// Op names one target primitive carried over the bridge.
type Op string

const (
	OpPoke Op = "poke"
	OpBlx  Op = "blx"
	OpRead Op = "read"
)

// maxReadSize bounds a single read request.
const maxReadSize = 64 * 1024

// Request is one primitive sent by a Client. Only the fields the op needs
// are set: Word for poke, Arg for blx, Size for read.
type Request struct {
	ID      uint64 `json:"id"`
	Op      Op     `json:"op"`
	Address uint32 `json:"address"`
	Word    uint32 `json:"word,omitempty"`
	Arg     uint32 `json:"arg,omitempty"`
	Size    int    `json:"size,omitempty"`
}

// Response answers the Request with the same ID. Word holds the blx
// result, Data the bytes of a read. A non-empty Error means the device
// rejected the operation.
type Response struct {
	ID    uint64 `json:"id"`
	Word  uint32 `json:"word,omitempty"`
	Data  []byte `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// Validate checks the fields a server needs before touching the device.
func (r *Request) Validate() error {
	switch r.Op {
	case OpPoke, OpBlx:
		return nil
	case OpRead:
		if r.Size < 0 || r.Size > maxReadSize {
			return fmt.Errorf("read size %d out of range (0..%d)", r.Size, maxReadSize)
		}
		return nil
	case "":
		return fmt.Errorf("missing op")
	default:
		return fmt.Errorf("unknown op %q", r.Op)
	}
}

// String formats the request for logs and errors.
func (r *Request) String() string {
	switch r.Op {
	case OpPoke:
		return fmt.Sprintf("#%d poke 0x%08x = 0x%08x", r.ID, r.Address, r.Word)
	case OpBlx:
		return fmt.Sprintf("#%d blx 0x%08x(0x%08x)", r.ID, r.Address, r.Arg)
	case OpRead:
		return fmt.Sprintf("#%d read 0x%08x [%d]", r.ID, r.Address, r.Size)
	default:
		return fmt.Sprintf("#%d %s 0x%08x", r.ID, r.Op, r.Address)
	}
}
