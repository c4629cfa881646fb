package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/coastermelt/internal/bridge"
	"github.com/muurk/coastermelt/internal/config"
	"github.com/muurk/coastermelt/internal/gdb"
	"github.com/muurk/coastermelt/internal/logging"
	"github.com/muurk/coastermelt/internal/toolchain"
	"github.com/muurk/coastermelt/internal/ui"
)

var (
	listenAddr string
	forceWrite bool
)

func init() {
	rootCmd.AddCommand(verifySetupCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}

// verifySetupCmd implements the 'verify-setup' command
var verifySetupCmd = &cobra.Command{
	Use:   "verify-setup",
	Short: "Verify toolchain and target prerequisites",
	Long: `Verify that all prerequisites are met.

This command checks:
  1. arm-none-eabi-gcc, objcopy and objdump are installed and executable
  2. arm-none-eabi-gdb is installed (gdb target only)
  3. OpenOCD accepts connections (gdb target only, warning if not)
  4. The bridge endpoint accepts connections (bridge target only)

Run this command first to troubleshoot any setup issues.`,
	Example: `  # Verify default setup
  coastermelt verify-setup

  # Verify a JTAG setup on another host
  coastermelt verify-setup --target gdb --openocd-host 192.168.1.100`,
	Args: cobra.NoArgs,
	RunE: runVerifySetup,
}

func runVerifySetup(cmd *cobra.Command, args []string) error {
	// Suppress usage on execution errors (we're past argument parsing)
	cmd.SilenceUsage = true

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	fmt.Fprintln(out, ui.NewHeader("Setup Verification", "coastermelt verify-setup",
		ui.Detail{Key: "Target", Value: cfg.Target},
		ui.Detail{Key: "Compiler", Value: cfg.Toolchain.CC},
	).Render())

	result := toolchain.ValidatePrerequisites(ctx, cfg.Toolchain)

	switch cfg.Target {
	case config.TargetGDB:
		for _, check := range gdb.ValidatePrerequisites(ctx, cfg.GDB).Checks {
			result.Add(check)
		}
	case config.TargetBridge:
		check := toolchain.PrerequisiteCheck{Name: "Bridge " + cfg.Bridge.URL, Required: true}
		if c, err := bridge.Dial(ctx, cfg.Bridge.URL, logging.GetLogger()); err != nil {
			check.Error = err
			check.Message = err.Error() + "\nStart the bridge on the device host: coastermelt serve --target gdb"
		} else {
			_ = c.Close()
			check.Available = true
			check.Message = "Connected successfully"
		}
		result.Add(check)
	}

	fmt.Fprintln(out, ui.NewOutputBox("Prerequisites", toolchain.FormatPrerequisiteReport(result)).Render())

	if !result.AllAvailable {
		err := fmt.Errorf("required prerequisites are missing")
		return printFailure(cmd, "Setup verification failed", err,
			"Install the GNU Arm Embedded toolchain or set its paths with 'coastermelt config init'",
		)
	}
	for _, check := range result.Checks {
		if !check.Available {
			fmt.Fprintln(out, ui.NewWarningResult("Setup verified with warnings").
				AddDetail("Target", cfg.Target).
				AddDetail("Unavailable", check.Name).Render())
			return nil
		}
	}
	fmt.Fprintln(out, ui.NewSuccessResult("Setup verified").AddDetail("Target", cfg.Target).Render())
	return nil
}

// serveCmd implements the 'serve' command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a target to remote coastermelt clients",
	Long: `Expose a target over a websocket so coastermelt on another machine can use
it with --target bridge.

Typically run on the host wired to the JTAG adapter:

  coastermelt serve --target gdb --listen 0.0.0.0:8765

and used from the development machine with:

  coastermelt --target bridge --bridge-url ws://pi.local:8765/target eval '5'

Requests from one client are executed strictly in order. Stop with Ctrl+C.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	// Suppress usage on execution errors (we're past argument parsing)
	cmd.SilenceUsage = true

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Target == config.TargetBridge {
		return fmt.Errorf("serve needs a local target (sim or gdb), not bridge")
	}
	if listenAddr != "" {
		cfg.Bridge.Listen = listenAddr
	}

	logger := logging.GetLogger()
	ctx := cmd.Context()

	device, closeFn, err := openTarget(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeFn()

	fmt.Fprintln(cmd.OutOrStdout(), ui.NewHeader("Bridge Server", "coastermelt serve",
		ui.Detail{Key: "Listen", Value: cfg.Bridge.Listen},
		ui.Detail{Key: "Endpoint", Value: bridge.DefaultPath},
		ui.Detail{Key: "Target", Value: cfg.Target},
	).Render())

	srv := bridge.New(bridge.Config{Listen: cfg.Bridge.Listen}, device, logger)
	if err := srv.ListenAndServe(ctx); err != nil {
		logger.Error("bridge stopped", zap.Error(err))
		return err
	}
	return nil
}

// configCmd groups the config subcommands
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or create the configuration file",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long:  `Print the configuration after applying command line flags, as YAML.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		text, err := cfg.Marshal()
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), text)
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the effective configuration to the config file",
	Long: `Write the configuration, with any command line flags applied, to the
config file. An existing file is only replaced with --force.`,
	Example: `  coastermelt config init --target gdb --openocd-host pi.local --cc /opt/arm/bin/arm-none-eabi-gcc`,
	Args:    cobra.NoArgs,
	RunE:    runConfigInit,
}

func init() {
	configInitCmd.Flags().BoolVar(&forceWrite, "force", false, "Replace an existing config file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	// Suppress usage on execution errors (we're past argument parsing)
	cmd.SilenceUsage = true

	path := opts.configPath
	if path == "" {
		p, err := config.GetConfigPath()
		if err != nil {
			return err
		}
		path = p
	}
	if _, err := os.Stat(path); err == nil && !forceWrite {
		return fmt.Errorf("%s already exists (use --force to replace it)", path)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.SaveTo(path); err != nil {
		return printFailure(cmd, "Cannot write config", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), ui.NewSuccessResult("Configuration written").
		AddDetail("Path", path).
		AddDetail("Target", cfg.Target).
		Render())
	return nil
}
