// Package ui renders terminal output for the coastermelt CLI.
//
// Components follow a "run once and exit" pattern: they return styled
// strings and never read input. The progress bar is drawn with ViewAs, so no
// bubbletea program runs.
//
//   - Header: command banner showing the operation and its parameters
//   - Result: success, failure and warning boxes with ordered details
//   - OutputBox: raw toolchain or GDB output for verbose mode
//   - CompileDiagnostics: generated source and disassembly of a debug compile
//   - Progress: bubbles progress bar and numbered step list
//   - Runner: header, steps and result of a multi-step command
//
// Source and listings are highlighted with chroma when stdout is a terminal.
// Set COASTERMELT_NO_COLOR (or NO_COLOR) to disable highlighting.
//
// Logging is controlled separately via COASTERMELT_LOG_LEVEL; when unset zap
// is silent so the rendered output stays clean.
package ui
