package main

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/coastermelt/internal/disasm"
	"github.com/muurk/coastermelt/internal/gdb"
	"github.com/muurk/coastermelt/internal/gdb/scripts"
	"github.com/muurk/coastermelt/internal/image"
	"github.com/muurk/coastermelt/internal/logging"
	"github.com/muurk/coastermelt/internal/target"
	"github.com/muurk/coastermelt/internal/ui"
)

// multiplyLib is the helper the multiply check compiles against.
const multiplyLib = `
int multiply(int a, int b) {
    return a * b;
}
`

// callRoutine loads code that is never executed: it branches to firmware.
const callRoutine = `
    nop
    bl      0x1fffd00
    ldr     r0, =0x1234abcd
    blx     r0
    bx      lr
`

// check is one step of the self test.
type check struct {
	name string
	run  func(ctx context.Context, s *session, pad uint32) (string, error)
}

var selftestChecks = []check{
	{"Nop sled", checkNopSled},
	{"Literal pool", checkLiteralPool},
	{"Compiled multiply", checkMultiply},
	{"Eval constant", evalCheck("5", 0, 5)},
	{"Eval argument", evalCheck("arg", 10, 10)},
	{"Eval target read", evalCheck("*(uint32_t*)0", 0, resetVector)},
}

// selftestCmd implements the 'selftest' command
var selftestCmd = &cobra.Command{
	Use:   "selftest",
	Short: "Run the demonstration sequence against the target",
	Long: `Exercise the whole pipeline at the scratch address:

  1. Assemble a 100 instruction nop sled and disassemble it back
  2. Assemble code using a literal pool load
  3. Compile multiply(arg, 5) and call it with 1, 2, 3, 500 and 0
  4. Evaluate "5", "arg" with 10, and "*(uint32_t*)0"

The last check reads the word at address 0 on the target, so it only
passes where that word is the ARM reset vector 0xe59ff018 (the simulated
target and the reference device).`,
	Example: `  coastermelt selftest
  coastermelt --target gdb selftest --verbose`,
	Args: cobra.NoArgs,
	RunE: runSelftest,
}

func init() {
	selftestCmd.Flags().StringVar(&scratchAddr, "scratch", "", "Scratch load address (default from config)")
	rootCmd.AddCommand(selftestCmd)
}

func runSelftest(cmd *cobra.Command, args []string) error {
	// Suppress usage on execution errors (we're past argument parsing)
	cmd.SilenceUsage = true

	s, err := openSession(cmd)
	if err != nil {
		return printFailure(cmd, "Cannot open target", err)
	}
	defer s.close()

	pad := uint32(s.cfg.ScratchAddress)
	if scratchAddr != "" {
		if pad, err = parseAddress(scratchAddr); err != nil {
			return err
		}
	}

	names := make([]string, len(selftestChecks))
	for i, c := range selftestChecks {
		names[i] = c.name
	}
	runner := ui.NewRunner(ui.RunnerConfig{
		Title:   "Self Test",
		Command: "coastermelt selftest",
		Params: []ui.Detail{
			{Key: "Target", Value: s.targetLabel()},
			{Key: "Scratch", Value: fmt.Sprintf("0x%08x", pad)},
			{Key: "Compiler", Value: s.cfg.Toolchain.CC},
		},
		StepNames: names,
		Tips: []string{
			"Check the toolchain and target: coastermelt verify-setup",
			"Run with --verbose for generated source and listings",
		},
		Output: cmd.OutOrStdout(),
	})

	return runner.Run(func(onStep ui.StepCallback) ([]ui.Detail, error) {
		failed := 0
		for i, c := range selftestChecks {
			onStep(i+1, "", ui.StepRunning, "")
			note, err := c.run(cmd.Context(), s, pad)
			if err != nil {
				failed++
				onStep(i+1, "", ui.StepFailed, failureNote(err))
				s.logger.Warn("self test check failed", logging.Address("scratch", pad), zap.String("check", c.name), zap.Error(err))
				continue
			}
			onStep(i+1, "", ui.StepComplete, note)
		}

		if failed > 0 {
			return nil, fmt.Errorf("%d of %d checks failed", failed, len(selftestChecks))
		}
		return []ui.Detail{
			{Key: "Checks", Value: fmt.Sprintf("%d passed", len(selftestChecks))},
		}, nil
	})
}

// failureNote names the GDB script step that failed, when err carries one,
// and is otherwise the first line of err.
func failureNote(err error) string {
	script, steps := gdb.StepsOf(err)
	for _, step := range steps {
		if step.Status == scripts.StepFailed {
			return fmt.Sprintf("%s step %d/%d %s: %s", script, step.Number, step.Total, step.Name, step.Message)
		}
	}
	return firstLine(err.Error())
}

func checkNopSled(ctx context.Context, s *session, pad uint32) (string, error) {
	const n = 100
	if err := s.injector.Assemble(ctx, s.device, pad, strings.Repeat("nop\n", n)); err != nil {
		return "", err
	}

	backend := disasm.NewObjdump(s.injector.Config(), nil, s.logger)
	listing, err := disasm.Live(ctx, backend, s.device, pad, 2*n, target.Thumb)
	if err != nil {
		return "", err
	}
	if len(listing) != n {
		return "", fmt.Errorf("listed %d instructions, want %d", len(listing), n)
	}
	for i, e := range listing {
		if want := pad + uint32(2*i); e.Address != want {
			return "", fmt.Errorf("entry %d at 0x%08x, want 0x%08x", i, e.Address, want)
		}
		if !strings.Contains(e.Text, "nop") {
			return "", fmt.Errorf("entry %d is %q, want nop", i, e.Text)
		}
	}
	return fmt.Sprintf("%d nops listed", n), nil
}

func checkLiteralPool(ctx context.Context, s *session, pad uint32) (string, error) {
	if err := s.injector.Assemble(ctx, s.device, pad, callRoutine); err != nil {
		return "", err
	}
	data, err := s.device.ReadBlock(ctx, pad, 32)
	if err != nil {
		return "", err
	}
	words, err := image.Decode(data)
	if err != nil {
		return "", err
	}
	if !slices.Contains(words, 0x1234abcd) {
		return "", fmt.Errorf("literal 0x1234abcd not found in loaded image")
	}
	return "loaded, literal resolved", nil
}

func checkMultiply(ctx context.Context, s *session, pad uint32) (string, error) {
	if err := s.injector.Compile(ctx, s.device, pad, "multiply(arg, 5)", compileOptions(multiplyLib, target.Thumb)); err != nil {
		return "", err
	}
	for _, n := range []uint32{1, 2, 3, 500, 0} {
		got, err := s.injector.Call(ctx, s.device, pad, n, target.Thumb)
		if err != nil {
			return "", err
		}
		if got != n*5 {
			return "", fmt.Errorf("multiply(%d, 5) = %d", n, got)
		}
	}
	return "1 2 3 500 0 -> 5 10 15 2500 0", nil
}

func evalCheck(expression string, arg, want uint32) func(context.Context, *session, uint32) (string, error) {
	return func(ctx context.Context, s *session, pad uint32) (string, error) {
		got, err := s.injector.Evaluate(ctx, s.device, expression, arg, "", pad)
		if err != nil {
			return "", err
		}
		if got != want {
			return "", fmt.Errorf("%s = 0x%08x, want 0x%08x", expression, got, want)
		}
		return fmt.Sprintf("%s = 0x%08x", expression, got), nil
	}
}
