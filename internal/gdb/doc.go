// Package gdb drives a JTAG-attached ARM device through arm-none-eabi-gdb
// and OpenOCD.
//
// Every operation is a short GDB batch session. A Script renders an embedded
// text/template into a temporary command file, the Executor runs
//
//	arm-none-eabi-gdb -batch -nx -x <file>
//
// and the Script parses the combined output back into a Result:
//
//	┌─────────────────┐
//	│ Target          │  Poke, Blx, ReadBlock
//	└────────┬────────┘
//	         │
//	         v
//	┌─────────────────┐
//	│ Script          │  poke_word, call_function, read_memory
//	└────────┬────────┘
//	         │
//	         v
//	┌─────────────────┐
//	│ Executor        │  Renders template, runs GDB, removes the file
//	└────────┬────────┘
//	         │
//	         v
//	┌─────────────────┐
//	│ OpenOCD         │  target extended-remote host:port
//	└─────────────────┘
//
// # Errors
//
// Execute classifies failures in a fixed order:
//
//   - *TimeoutError when Config.Timeout elapses
//   - *GDBConnectionError when the output shows OpenOCD was never reached
//   - *GDBExecutionError for any other non-zero exit or start failure
//   - *scripts.ParseError when the output cannot be interpreted
//
// Target turns an unsuccessful Result (for example a poke that reads back a
// different word) into an *OperationError.
//
// # Prerequisites
//
// ValidatePrerequisites reports the GDB binary as required and the OpenOCD
// connection as optional, so setup checks pass on machines that only use the
// simulated target.
package gdb
