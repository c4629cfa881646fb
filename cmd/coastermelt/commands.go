package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/muurk/coastermelt/internal/disasm"
	"github.com/muurk/coastermelt/internal/gdb"
	"github.com/muurk/coastermelt/internal/gdb/scripts"
	"github.com/muurk/coastermelt/internal/logging"
	"github.com/muurk/coastermelt/internal/target"
	"github.com/muurk/coastermelt/internal/toolchain"
	"github.com/muurk/coastermelt/internal/ui"
)

// Command flags
var (
	callAfter   bool
	callArg     string
	modeName    string
	includeFile string
	scratchAddr string
	backendName string
	binFile     string
)

func init() {
	rootCmd.AddCommand(assembleCmd)
	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(evalCmd)
	rootCmd.AddCommand(callCmd)
	rootCmd.AddCommand(disasmCmd)
}

// maxOutputLines caps raw tool output shown with --verbose.
const maxOutputLines = 40

// printFailure renders a failure box and returns err for cobra. A failed
// GDB session is preceded by its step list; --verbose adds the raw output.
func printFailure(cmd *cobra.Command, title string, err error, tips ...string) error {
	out := cmd.OutOrStdout()
	width := ui.GetTerminalWidth()

	if script, steps := gdb.StepsOf(err); len(steps) > 0 {
		fmt.Fprintln(out, gdbSteps(script, steps).SetWidth(width).Render())
		fmt.Fprintln(out)
	}
	fmt.Fprintln(out, ui.NewFailureResult(title, err, tips...).SetWidth(width).Render())

	if opts.verbose {
		if transcript := gdb.Transcript(err); transcript != "" {
			fmt.Fprintln(out, ui.NewOutputBox("GDB Output", transcript).SetWidth(width).SetMaxLines(maxOutputLines).Render())
		} else if output := toolOutput(err); output != "" {
			fmt.Fprintln(out, ui.NewOutputBox("Tool Output", output).SetWidth(width).SetMaxLines(maxOutputLines).Render())
		}
	}
	return err
}

// gdbSteps lists the steps of a GDB script run. Steps the script never
// echoed are shown as not reached.
func gdbSteps(script string, steps []scripts.Step) *ui.Progress {
	total := len(steps)
	for _, step := range steps {
		total = max(total, step.Total)
	}

	p := ui.NewProgress("GDB script "+script, total)
	p.ShowBar = false
	for i := range p.Steps {
		p.Steps[i].Status = ui.StepSkipped
		p.Steps[i].Message = "not reached"
	}
	for i, step := range steps {
		n := step.Number
		if n < 1 || n > total {
			n = i + 1
		}
		status := ui.StepComplete
		if step.Status == scripts.StepFailed {
			status = ui.StepFailed
		}
		p.Steps[n-1].Name = step.Name
		p.UpdateStep(n, status, step.Message)
	}
	return p
}

// toolchainTips suggests fixes for a failed build step.
func toolchainTips(err error) []string {
	var tips []string
	if isPrerequisite(err) {
		tips = append(tips,
			"Check the toolchain: coastermelt verify-setup",
			"Point at another install with --cc/--objcopy/--objdump",
		)
	}
	if output := toolOutput(err); output != "" {
		tips = append(tips, "Tool output: "+firstLine(output))
	}
	tips = append(tips, "Run with --keep-temps to inspect the generated files")
	return tips
}

func isPrerequisite(err error) bool {
	var pe *toolchain.PrerequisiteError
	return errors.As(err, &pe)
}

func toolOutput(err error) string {
	var ee *toolchain.ExecutionError
	if errors.As(err, &ee) {
		if ee.Stderr != "" {
			return ee.Stderr
		}
		return ee.Stdout
	}
	return ""
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// assembleCmd implements the 'assemble' command
var assembleCmd = &cobra.Command{
	Use:   "assemble ADDRESS FILE",
	Short: "Assemble Thumb code and load it at ADDRESS",
	Long: `Assemble a file of Thumb assembly (unified syntax) linked for ADDRESS and
poke the image into target memory in ascending word order.

The body is wrapped with a global _start entry and followed by a literal
pool flush, so "ldr rN, =constant" works anywhere in the body. Use "-" to
read the body from stdin.`,
	Example: `  # Load a nop sled
  printf 'nop\n%.0s' $(seq 100) | coastermelt assemble 0x1fffda0 -

  # Load and run a routine returning 42
  printf 'movs r0, #42\nbx lr\n' | coastermelt assemble 0x1fffda0 - --call`,
	Args: cobra.ExactArgs(2),
	RunE: runAssemble,
}

func init() {
	assembleCmd.Flags().BoolVar(&callAfter, "call", false, "Call the loaded code (Thumb) after loading")
	assembleCmd.Flags().StringVar(&callArg, "arg", "0", "Argument passed in r0 with --call")
}

func runAssemble(cmd *cobra.Command, args []string) error {
	// Suppress usage on execution errors (we're past argument parsing)
	cmd.SilenceUsage = true

	address, err := parseAddress(args[0])
	if err != nil {
		return err
	}
	arg, err := parseWord(callArg)
	if err != nil {
		return err
	}
	body, err := readSource(cmd, args[1])
	if err != nil {
		return err
	}

	s, err := openSession(cmd)
	if err != nil {
		return printFailure(cmd, "Cannot open target", err)
	}
	defer s.close()

	ctx := cmd.Context()
	if err := s.injector.Assemble(ctx, s.device, address, body); err != nil {
		return printFailure(cmd, "Assembly failed", err, toolchainTips(err)...)
	}

	result := ui.NewSuccessResult("Assembled and loaded").
		AddDetail("Target", s.targetLabel()).
		AddDetail("Address", fmt.Sprintf("0x%08x", address))

	if callAfter {
		ret, err := s.injector.Call(ctx, s.device, address, arg, target.Thumb)
		if err != nil {
			return printFailure(cmd, "Call failed", err)
		}
		result.AddWord("Argument", arg).AddWord("Result", ret)
	}

	fmt.Fprintln(cmd.OutOrStdout(), result.Render())
	return nil
}

// compileCmd implements the 'compile' command
var compileCmd = &cobra.Command{
	Use:   "compile ADDRESS EXPRESSION",
	Short: "Compile a C++ expression and load it at ADDRESS",
	Long: `Compile "uint32_t start(unsigned arg) { return (EXPRESSION); }" linked for
ADDRESS and poke it into target memory. The entry function is always the
first instruction of the image. <stdint.h> is included, and --include-file
adds helper definitions or firmware symbol declarations before the entry.

The code is Thumb unless --mode arm is given. With --verbose the generated
source and a disassembly of the image are shown before loading.`,
	Example: `  # Load a multiply helper and call it with 100
  echo 'int multiply(int a, int b) { return a * b; }' > lib.cpp
  coastermelt compile 0x1fffda0 'multiply(arg, 5)' --include-file lib.cpp --call --arg 100`,
	Args: cobra.ExactArgs(2),
	RunE: runCompile,
}

func init() {
	compileCmd.Flags().StringVar(&includeFile, "include-file", "", "C++ file placed before the entry function")
	compileCmd.Flags().StringVar(&modeName, "mode", "thumb", "Instruction set: thumb or arm")
	compileCmd.Flags().BoolVar(&callAfter, "call", false, "Call the loaded code after loading")
	compileCmd.Flags().StringVar(&callArg, "arg", "0", "Argument passed in r0 with --call")
}

func runCompile(cmd *cobra.Command, args []string) error {
	// Suppress usage on execution errors (we're past argument parsing)
	cmd.SilenceUsage = true

	address, err := parseAddress(args[0])
	if err != nil {
		return err
	}
	mode, err := parseMode(modeName)
	if err != nil {
		return err
	}
	arg, err := parseWord(callArg)
	if err != nil {
		return err
	}
	include, err := readInclude(cmd)
	if err != nil {
		return err
	}

	s, err := openSession(cmd)
	if err != nil {
		return printFailure(cmd, "Cannot open target", err)
	}
	defer s.close()

	ctx := cmd.Context()
	compileOpts := compileOptions(include, mode)
	if err := s.injector.Compile(ctx, s.device, address, args[1], compileOpts); err != nil {
		return printFailure(cmd, "Compile failed", err, toolchainTips(err)...)
	}

	result := ui.NewSuccessResult("Compiled and loaded").
		AddDetail("Target", s.targetLabel()).
		AddDetail("Address", fmt.Sprintf("0x%08x", address)).
		AddDetail("Mode", mode.String()).
		AddDetail("Expression", args[1])

	if callAfter {
		ret, err := s.injector.Call(ctx, s.device, address, arg, mode)
		if err != nil {
			return printFailure(cmd, "Call failed", err)
		}
		result.AddWord("Argument", arg).AddWord("Result", ret)
	}

	fmt.Fprintln(cmd.OutOrStdout(), result.Render())
	return nil
}

// evalCmd implements the 'eval' command
var evalCmd = &cobra.Command{
	Use:   "eval EXPRESSION",
	Short: "Compile and run a C++ expression at the scratch address",
	Long: `Compile EXPRESSION as Thumb code at the scratch address, call it with
--arg and print the returned word.

The scratch region is shared: do not run two evaluations against the same
target and scratch address at once. Use --scratch to pick another region.`,
	Example: `  coastermelt eval '5'
  coastermelt eval 'arg * 2' --arg 21
  coastermelt eval '*(uint32_t*)0'
  coastermelt eval 'multiply(arg, 5)' --include-file lib.cpp --arg 500`,
	Args: cobra.ExactArgs(1),
	RunE: runEval,
}

func init() {
	evalCmd.Flags().StringVar(&callArg, "arg", "0", "Argument passed in r0")
	evalCmd.Flags().StringVar(&includeFile, "include-file", "", "C++ file placed before the entry function")
	evalCmd.Flags().StringVar(&scratchAddr, "scratch", "", "Scratch load address (default from config)")
}

func runEval(cmd *cobra.Command, args []string) error {
	// Suppress usage on execution errors (we're past argument parsing)
	cmd.SilenceUsage = true

	arg, err := parseWord(callArg)
	if err != nil {
		return err
	}
	include, err := readInclude(cmd)
	if err != nil {
		return err
	}

	s, err := openSession(cmd)
	if err != nil {
		return printFailure(cmd, "Cannot open target", err)
	}
	defer s.close()

	scratch := uint32(s.cfg.ScratchAddress)
	if scratchAddr != "" {
		if scratch, err = parseAddress(scratchAddr); err != nil {
			return err
		}
	}

	ret, err := s.injector.Evaluate(cmd.Context(), s.device, args[0], arg, include, scratch)
	if err != nil {
		return printFailure(cmd, "Evaluation failed", err, toolchainTips(err)...)
	}

	fmt.Fprintln(cmd.OutOrStdout(), ui.NewSuccessResult("Expression evaluated").
		AddDetail("Target", s.targetLabel()).
		AddDetail("Scratch", fmt.Sprintf("0x%08x", scratch)).
		AddDetail("Expression", args[0]).
		AddWord("Argument", arg).
		AddWord("Result", ret).
		Render())
	return nil
}

// callCmd implements the 'call' command
var callCmd = &cobra.Command{
	Use:   "call ADDRESS",
	Short: "Call code already resident at ADDRESS",
	Long: `Branch to ADDRESS with --arg in r0 and print r0 on return.

Thumb code (the default) is entered at ADDRESS|1; --mode arm enters at the
bare word-aligned address.`,
	Example: `  coastermelt call 0x1fffda0 --arg 3
  coastermelt call 0x00200000 --mode arm`,
	Args: cobra.ExactArgs(1),
	RunE: runCall,
}

func init() {
	callCmd.Flags().StringVar(&callArg, "arg", "0", "Argument passed in r0")
	callCmd.Flags().StringVar(&modeName, "mode", "thumb", "Instruction set of the code: thumb or arm")
}

func runCall(cmd *cobra.Command, args []string) error {
	// Suppress usage on execution errors (we're past argument parsing)
	cmd.SilenceUsage = true

	address, err := parseAddress(args[0])
	if err != nil {
		return err
	}
	mode, err := parseMode(modeName)
	if err != nil {
		return err
	}
	arg, err := parseWord(callArg)
	if err != nil {
		return err
	}

	s, err := openSession(cmd)
	if err != nil {
		return printFailure(cmd, "Cannot open target", err)
	}
	defer s.close()

	ret, err := s.injector.Call(cmd.Context(), s.device, address, arg, mode)
	if err != nil {
		return printFailure(cmd, "Call failed", err,
			"Thumb code must be called with --mode thumb (entered at address|1)",
		)
	}

	fmt.Fprintln(cmd.OutOrStdout(), ui.NewSuccessResult("Call returned").
		AddDetail("Target", s.targetLabel()).
		AddDetail("Branch", fmt.Sprintf("0x%08x", mode.BranchAddress(address))).
		AddWord("Argument", arg).
		AddWord("Result", ret).
		Render())
	return nil
}

// disasmCmd implements the 'disasm' command
var disasmCmd = &cobra.Command{
	Use:   "disasm ADDRESS SIZE",
	Short: "Disassemble target memory or a raw binary",
	Long: `Read SIZE bytes at ADDRESS from the target and list them as instructions
at their real addresses. With --file, the bytes come from a raw binary
that is assumed to be resident at ADDRESS, and SIZE may be "all".

The instruction-set mode is never guessed: Thumb unless --mode arm is given.`,
	Example: `  coastermelt disasm 0x1fffda0 0x20
  coastermelt disasm 0 64 --mode arm --backend native
  coastermelt disasm 0x00200000 all --file patch.bin`,
	Args: cobra.ExactArgs(2),
	RunE: runDisasm,
}

func init() {
	disasmCmd.Flags().StringVar(&modeName, "mode", "thumb", "Instruction set to decode: thumb or arm")
	disasmCmd.Flags().StringVar(&backendName, "backend", "auto", "Disassembler: auto, objdump or native")
	disasmCmd.Flags().StringVar(&binFile, "file", "", "Disassemble a raw binary file instead of target memory")
}

func runDisasm(cmd *cobra.Command, args []string) error {
	// Suppress usage on execution errors (we're past argument parsing)
	cmd.SilenceUsage = true

	address, err := parseAddress(args[0])
	if err != nil {
		return err
	}
	mode, err := parseMode(modeName)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	backend, err := newDisassembler(backendName, cfg, logging.GetLogger())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	var listing disasm.Listing
	source := ""

	if binFile != "" {
		data, err := readBinary(binFile, args[1])
		if err != nil {
			return err
		}
		source = binFile
		listing, err = backend.Disassemble(ctx, data, address, mode)
		if err != nil {
			return printFailure(cmd, "Disassembly failed", err, toolchainTips(err)...)
		}
	} else {
		size, err := parseWord(args[1])
		if err != nil {
			return err
		}
		s, err := openSession(cmd)
		if err != nil {
			return printFailure(cmd, "Cannot open target", err)
		}
		defer s.close()

		source = s.targetLabel()
		listing, err = disasm.Live(ctx, backend, s.device, address, int(size), mode)
		if err != nil {
			return printFailure(cmd, "Disassembly failed", err, toolchainTips(err)...)
		}
	}

	text := listing.String()
	if text == "" {
		text = "(no instructions)"
	}
	fmt.Fprintln(cmd.OutOrStdout(), ui.NewOutputBox(
		fmt.Sprintf("%s at 0x%08x from %s (%d instructions)", mode, address, source, len(listing)),
		ui.HighlightAssembly(text),
	).Render())
	return nil
}
