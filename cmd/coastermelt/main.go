// Coastermelt injects and runs code on an ARM target that only offers
// "poke a word" and "branch to an address" primitives.
//
// Assembly or a one-line C++ expression is built for a fixed load address
// with the GNU Arm Embedded toolchain, written to the target word by word
// and called. Three targets are available:
//
//   - sim: a built-in Thumb simulator (no hardware needed)
//   - gdb: a JTAG-attached device via arm-none-eabi-gdb and OpenOCD
//   - bridge: a device served by "coastermelt serve" on another machine
//
// Prerequisites:
//
//   - arm-none-eabi-gcc, arm-none-eabi-objcopy and arm-none-eabi-objdump in PATH
//   - for the gdb target, arm-none-eabi-gdb and a running OpenOCD
//
// See 'coastermelt --help' for available commands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/muurk/coastermelt/internal/logging"
	"github.com/muurk/coastermelt/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	logging.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "coastermelt",
	Short: "Remote code injection and execution harness",
	Long: `Build code for a fixed address, poke it into target memory and call it.

Source is either raw assembly (Thumb, unified syntax) or a single C++
expression over the implicit argument "arg". The image is linked for one
absolute load address, written in ascending word order and entered with
the correct instruction-set convention (address|1 for Thumb).

Settings come from the config file (see 'coastermelt config show') and
can be overridden with flags.

Use 'coastermelt verify-setup' to check prerequisites.`,
	Version: version.Get().Version,
	Example: `  # Evaluate an expression on the simulated target
  coastermelt eval '6 * 7'

  # Read the reset vector of a JTAG-attached device
  coastermelt --target gdb eval '*(uint32_t*)0'

  # Load a nop sled and list it
  printf 'nop\nnop\nbx lr\n' | coastermelt assemble 0x1fffda0 -
  coastermelt disasm 0x1fffda0 6

  # Run the full demonstration sequence
  coastermelt selftest`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Silent unless --log-level or COASTERMELT_LOG_LEVEL is set
		return logging.Initialize(opts.logLevel)
	},
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "coastermelt %s\n", version.Full())
	},
}
