package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/coastermelt/internal/bridge"
	"github.com/muurk/coastermelt/internal/config"
	"github.com/muurk/coastermelt/internal/disasm"
	"github.com/muurk/coastermelt/internal/gdb"
	"github.com/muurk/coastermelt/internal/image"
	"github.com/muurk/coastermelt/internal/inject"
	"github.com/muurk/coastermelt/internal/logging"
	"github.com/muurk/coastermelt/internal/target"
	"github.com/muurk/coastermelt/internal/target/sim"
	"github.com/muurk/coastermelt/internal/toolchain"
	"github.com/muurk/coastermelt/internal/ui"
)

// resetVector is the word the simulated target holds at address 0, the
// ARM "ldr pc, [pc, #24]" found at a real reset vector.
const resetVector = 0xe59ff018

// Global flags
type options struct {
	configPath  string
	target      string
	cc          string
	objcopy     string
	objdump     string
	cpu         string
	cflags      []string
	gdbPath     string
	openocdHost string
	openocdPort int
	timeout     time.Duration
	bridgeURL   string
	keepTemps   bool
	verbose     bool
	logLevel    string
}

var opts options

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&opts.configPath, "config", "", "Config file (default: OS config dir/coastermelt/config.yaml)")
	f.StringVarP(&opts.target, "target", "t", "", "Target: sim, gdb or bridge (default from config, else sim)")
	f.StringVar(&opts.cc, "cc", "", "Path to arm-none-eabi-gcc")
	f.StringVar(&opts.objcopy, "objcopy", "", "Path to arm-none-eabi-objcopy")
	f.StringVar(&opts.objdump, "objdump", "", "Path to arm-none-eabi-objdump")
	f.StringVar(&opts.cpu, "cpu", "", "objdump machine name for the target core (e.g. arm7tdmi)")
	f.StringSliceVar(&opts.cflags, "cflag", nil, "Extra compiler flag (repeatable)")
	f.StringVar(&opts.gdbPath, "gdb-path", "", "Path to arm-none-eabi-gdb binary")
	f.StringVar(&opts.openocdHost, "openocd-host", "", "OpenOCD hostname")
	f.IntVar(&opts.openocdPort, "openocd-port", 0, "OpenOCD port")
	f.DurationVar(&opts.timeout, "timeout", 0, "Per-operation GDB timeout (e.g. 30s, 2m)")
	f.StringVar(&opts.bridgeURL, "bridge-url", "", "Bridge endpoint, e.g. ws://pi.local:8765/target")
	f.BoolVar(&opts.keepTemps, "keep-temps", false, "Leave temporary toolchain files on disk")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "Show generated source, listings and raw tool output")
	f.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error (default: silent)")
}

// loadConfig reads the config file and applies the flags that were set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := opts.configPath
	if path == "" {
		p, err := config.GetConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg, err := config.LoadFrom(path)
	if err != nil {
		return nil, err
	}
	applyFlags(cmd, cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed

	if changed("target") {
		cfg.Target = opts.target
	}
	if changed("cc") {
		cfg.Toolchain.CC = opts.cc
	}
	if changed("objcopy") {
		cfg.Toolchain.ObjCopy = opts.objcopy
	}
	if changed("objdump") {
		cfg.Toolchain.ObjDump = opts.objdump
	}
	if changed("cpu") {
		cfg.Toolchain.CPU = opts.cpu
	}
	if changed("cflag") {
		cfg.Toolchain.CFlags = opts.cflags
	}
	if changed("keep-temps") {
		cfg.Toolchain.RetainTemps = opts.keepTemps
	}
	if changed("gdb-path") {
		cfg.GDB.GDBPath = opts.gdbPath
	}
	if changed("openocd-host") {
		cfg.GDB.OpenOCDHost = opts.openocdHost
	}
	if changed("openocd-port") {
		cfg.GDB.OpenOCDPort = opts.openocdPort
	}
	if changed("timeout") {
		cfg.GDB.Timeout = opts.timeout
	}
	if changed("bridge-url") {
		cfg.Bridge.URL = opts.bridgeURL
	}
}

// openTarget connects to the configured target. The returned close
// function must be called when done.
func openTarget(ctx context.Context, cfg *config.Config, logger *zap.Logger) (target.Device, func(), error) {
	switch cfg.Target {
	case config.TargetSim:
		dev := sim.New(logger)
		dev.Load(0, resetVector)
		return dev, func() {}, nil

	case config.TargetGDB:
		if err := gdb.NewExecutor(cfg.GDB, logger).ValidateConfig(ctx); err != nil {
			return nil, nil, err
		}
		return gdb.NewTarget(cfg.GDB, logger), func() {}, nil

	case config.TargetBridge:
		c, err := bridge.Dial(ctx, cfg.Bridge.URL, logger)
		if err != nil {
			return nil, nil, err
		}
		return c, func() { _ = c.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown target %q", cfg.Target)
	}
}

// newInjector builds an injector; verbose runs render compile diagnostics
// to out.
func newInjector(cfg *config.Config, out io.Writer, logger *zap.Logger) *inject.Injector {
	in := inject.New(cfg.Toolchain, toolchain.NewInvoker(logger), logger)
	if opts.verbose {
		in.WithDiagnostics(out)
	}
	return in
}

// newDisassembler returns the backend named by name. "auto" decodes ARM
// natively and everything else with objdump.
func newDisassembler(name string, cfg *config.Config, logger *zap.Logger) (disasm.Backend, error) {
	objdump := disasm.NewObjdump(cfg.Toolchain.Normalize(), toolchain.NewInvoker(logger), logger)
	switch name {
	case "auto", "":
		return disasm.Chain{disasm.Native{}, objdump}, nil
	case "objdump":
		return objdump, nil
	case "native":
		return disasm.Native{}, nil
	default:
		return nil, fmt.Errorf("unknown disassembler %q (want auto, objdump or native)", name)
	}
}

// session is what every target-facing command starts from.
type session struct {
	cfg      *config.Config
	logger   *zap.Logger
	device   target.Device
	injector *inject.Injector
	close    func()
}

func openSession(cmd *cobra.Command) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger := logging.GetLogger()

	device, closeFn, err := openTarget(cmd.Context(), cfg, logger)
	if err != nil {
		return nil, err
	}
	injector := newInjector(cfg, cmd.OutOrStdout(), logger)
	if cfg.Target == config.TargetGDB {
		injector.WithLoadObserver(loadProgress(cmd.OutOrStdout()))
	}
	return &session{
		cfg:      cfg,
		logger:   logger,
		device:   device,
		injector: injector,
		close:    closeFn,
	}, nil
}

// loadProgress draws a bar while an image is poked one word per GDB
// session.
func loadProgress(w io.Writer) image.Observer {
	var bar *ui.Progress
	return func(address uint32, written, total int) {
		if bar == nil || written == 1 {
			bar = ui.NewProgress(fmt.Sprintf("Loading %d words at 0x%08x", total, address), total)
			fmt.Fprintln(w, ui.ProgressLabelStyle.Render(bar.Label))
		}
		bar.SetCompleted(written)
		fmt.Fprint(w, "\r"+bar.RenderBar())
		if written == total {
			fmt.Fprintln(w)
		}
	}
}

func (s *session) targetLabel() string {
	switch s.cfg.Target {
	case config.TargetGDB:
		return fmt.Sprintf("gdb (OpenOCD %s:%d)", s.cfg.GDB.OpenOCDHost, s.cfg.GDB.OpenOCDPort)
	case config.TargetBridge:
		return "bridge (" + s.cfg.Bridge.URL + ")"
	default:
		return "sim"
	}
}

// parseWord parses a 32-bit value in any base strconv understands. Negative
// decimals wrap to their two's complement.
func parseWord(s string) (uint32, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "-") {
		v, err := strconv.ParseInt(s, 0, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid value %q: %w", s, err)
		}
		return uint32(int32(v)), nil
	}
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid value %q: %w", s, err)
	}
	return uint32(v), nil
}

func parseAddress(s string) (uint32, error) {
	a, err := config.ParseAddress(s)
	return uint32(a), err
}

// parseMode reads a --mode flag value.
func parseMode(name string) (target.Mode, error) {
	mode, err := target.ParseMode(name)
	if err != nil {
		return mode, fmt.Errorf("invalid --mode: %w", err)
	}
	return mode, nil
}

// readSource returns the contents of path, or stdin for "-".
func readSource(cmd *cobra.Command, path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}

// readInclude returns the --include-file contents, or "".
func readInclude(cmd *cobra.Command) (string, error) {
	if includeFile == "" {
		return "", nil
	}
	return readSource(cmd, includeFile)
}

func compileOptions(include string, mode target.Mode) inject.CompileOptions {
	return inject.CompileOptions{
		Include: include,
		Mode:    mode,
		Debug:   opts.verbose,
	}
}

// readBinary reads a raw image, truncated to size unless size is "all".
func readBinary(path, size string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if size == "all" {
		return data, nil
	}
	n, err := parseWord(size)
	if err != nil {
		return nil, err
	}
	if int(n) > len(data) {
		return nil, fmt.Errorf("%s holds %d bytes, %d requested", path, len(data), n)
	}
	return data[:n], nil
}
