// Package config manages the coastermelt configuration file.
//
// The file is YAML and records the defaults every command starts from: the
// cross toolchain executables, the default target kind, the scratch address
// used by eval, the OpenOCD endpoint and GDB path of the JTAG target, and
// both ends of the websocket bridge. Command line flags override it.
//
// # Configuration File Location
//
//   - Linux: $XDG_CONFIG_HOME/coastermelt/config.yaml or $HOME/.config/coastermelt/config.yaml
//   - macOS: $HOME/.config/coastermelt/config.yaml
//   - Windows: %LOCALAPPDATA%\coastermelt\config.yaml
//
// A missing file is not an error: Load returns Default(). Save writes
// atomically (temporary file plus rename) with 0600 permissions.
//
// # Example
//
//	version: 1
//	target: gdb
//	scratch_address: "0x01fffda0"
//	toolchain:
//	  cc: arm-none-eabi-gcc
//	  objcopy: arm-none-eabi-objcopy
//	  objdump: arm-none-eabi-objdump
//	  cpu: arm7tdmi
//	gdb:
//	  path: arm-none-eabi-gdb
//	  openocd_host: pi.local
//	  openocd_port: 3333
//	  timeout: 30s
package config
