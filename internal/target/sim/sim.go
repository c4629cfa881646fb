// Package sim provides a software-simulated target for exercising the
// code-injection pipeline without hardware.
//
// The simulated device has sparse word-addressed memory and records every
// call made through Blx. Code entered at an odd branch address is executed
// by a small Thumb interpreter (see thumb.go); full-width ARM code is not
// simulated, so calling Thumb code at its bare address fails the same way
// the real hardware would misbehave.
package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/muurk/coastermelt/internal/target"
	"go.uber.org/zap"
)

const (
	// DefaultStackTop is the initial stack pointer for simulated calls.
	DefaultStackTop = 0x20010000

	// DefaultMaxSteps bounds the instructions executed by a single Blx.
	DefaultMaxSteps = 100000

	// returnSentinel is the address the interpreter treats as "returned to
	// caller". lr holds returnSentinel|1 on entry.
	returnSentinel = 0xfffffff0
)

var (
	// ErrModeNotSimulated is returned when a call would execute full-width
	// ARM code.
	ErrModeNotSimulated = errors.New("sim: ARM-mode execution is not simulated")

	// ErrStepLimit is returned when a call does not return within MaxSteps.
	ErrStepLimit = errors.New("sim: step limit exceeded")
)

// Call records one Blx invocation.
type Call struct {
	Address uint32
	Arg     uint32
}

// Device is a simulated target. It is safe for concurrent use; calls are
// serialized by an internal lock.
type Device struct {
	// StackTop is the initial sp for each call.
	StackTop uint32
	// MaxSteps bounds each call. Zero means DefaultMaxSteps.
	MaxSteps int

	mu     sync.Mutex
	mem    map[uint32]uint32
	pokes  []Call
	calls  []Call
	logger *zap.Logger
}

var _ target.Device = (*Device)(nil)

// New creates an empty simulated device.
func New(logger *zap.Logger) *Device {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Device{
		StackTop: DefaultStackTop,
		MaxSteps: DefaultMaxSteps,
		mem:      make(map[uint32]uint32),
		logger:   logger,
	}
}

// Load stores words starting at address without recording pokes.
// Used to seed memory such as a reset vector.
func (d *Device) Load(address uint32, words ...uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, w := range words {
		d.mem[(address+uint32(4*i))&^3] = w
	}
}

// Poke implements target.Target.
func (d *Device) Poke(ctx context.Context, address, word uint32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if address&3 != 0 {
		return fmt.Errorf("sim: unaligned poke at 0x%08x", address)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.mem[address] = word
	d.pokes = append(d.pokes, Call{Address: address, Arg: word})
	return nil
}

// ReadBlock implements target.Reader.
func (d *Device) ReadBlock(ctx context.Context, address uint32, size int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if size < 0 {
		return nil, fmt.Errorf("sim: negative read size %d", size)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]byte, size)
	for i := range out {
		out[i] = d.read8(address + uint32(i))
	}
	return out, nil
}

// Blx implements target.Target.
func (d *Device) Blx(ctx context.Context, address, arg uint32) (uint32, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, Call{Address: address, Arg: arg})

	if address&1 == 0 {
		d.logger.Debug("refusing ARM-mode call", zap.String("address", fmt.Sprintf("0x%08x", address)))
		return 0, fmt.Errorf("blx 0x%08x: %w", address, ErrModeNotSimulated)
	}

	cpu := &thumbCPU{dev: d}
	cpu.r[0] = arg
	cpu.r[13] = d.StackTop
	cpu.r[14] = returnSentinel | 1
	cpu.r[15] = address &^ 1

	maxSteps := d.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}

	for step := 0; step < maxSteps; step++ {
		if cpu.r[15] == returnSentinel {
			d.logger.Debug("simulated call returned",
				zap.String("address", fmt.Sprintf("0x%08x", address)),
				zap.Uint32("arg", arg),
				zap.Uint32("result", cpu.r[0]),
				zap.Int("steps", step),
			)
			return cpu.r[0], nil
		}
		if err := cpu.step(); err != nil {
			return 0, fmt.Errorf("blx 0x%08x: %w", address, err)
		}
	}
	return 0, fmt.Errorf("blx 0x%08x: %w", address, ErrStepLimit)
}

// Calls returns a copy of all recorded Blx invocations.
func (d *Device) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Call(nil), d.calls...)
}

// Pokes returns a copy of all recorded pokes, in issue order. Arg holds the
// written word.
func (d *Device) Pokes() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Call(nil), d.pokes...)
}

// Word returns the word stored at the aligned address containing address.
func (d *Device) Word(address uint32) uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mem[address&^3]
}

// memory helpers; callers hold d.mu

func (d *Device) read8(a uint32) uint8 {
	return uint8(d.mem[a&^3] >> (8 * (a & 3)))
}

func (d *Device) read16(a uint32) uint16 {
	return uint16(d.read8(a)) | uint16(d.read8(a+1))<<8
}

func (d *Device) read32(a uint32) uint32 {
	if a&3 == 0 {
		return d.mem[a]
	}
	return uint32(d.read16(a)) | uint32(d.read16(a+2))<<16
}

func (d *Device) write8(a uint32, v uint8) {
	shift := 8 * (a & 3)
	w := d.mem[a&^3]
	w = w&^(0xff<<shift) | uint32(v)<<shift
	d.mem[a&^3] = w
}

func (d *Device) write16(a uint32, v uint16) {
	d.write8(a, uint8(v))
	d.write8(a+1, uint8(v>>8))
}

func (d *Device) write32(a uint32, v uint32) {
	if a&3 == 0 {
		d.mem[a] = v
		return
	}
	d.write16(a, uint16(v))
	d.write16(a+2, uint16(v>>16))
}
