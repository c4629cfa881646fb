// Package target defines the capabilities the code-injection pipeline needs
// from a physically attached device.
//
// A device exposes exactly two remote primitives to the pipeline:
//
//   - Poke writes one 32-bit word to target memory.
//   - Blx branches to an address with a single argument in r0 and returns
//     the value left in r0.
//
// Disassembly of live memory additionally needs a bulk read (ReadBlock).
//
// Implementations in this repository:
//
//   - internal/gdb: JTAG access through arm-none-eabi-gdb and OpenOCD
//   - internal/bridge: a websocket client for a device served elsewhere
//   - internal/target/sim: a software-simulated device for tests
//
// The package never creates or destroys a device; callers own its lifetime.
package target
