package gdb

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"strings"
	"time"

	"github.com/muurk/coastermelt/internal/toolchain"
)

// ValidatePrerequisites checks the GDB binary and OpenOCD reachability.
// An unreachable OpenOCD is reported but does not fail validation.
func ValidatePrerequisites(ctx context.Context, config Config) *toolchain.PrerequisiteResult {
	config = config.Normalize()
	result := &toolchain.PrerequisiteResult{AllAvailable: true}

	gdbCheck := toolchain.CheckBinary(ctx, config.GDBPath)
	if !gdbCheck.Available && gdbCheck.Path == "" {
		gdbCheck.Message = fmt.Sprintf("%s not found in PATH\n"+
			"Install on macOS: brew install --cask gcc-arm-embedded\n"+
			"Install on Linux: sudo apt-get install gdb-multiarch && ln -s /usr/bin/gdb-multiarch /usr/local/bin/arm-none-eabi-gdb",
			config.GDBPath)
	}
	result.Add(gdbCheck)
	result.Add(checkOpenOCDConnection(ctx, config.OpenOCDHost, config.OpenOCDPort))

	return result
}

// checkOpenOCDConnection attempts to connect to OpenOCD to verify it's running.
func checkOpenOCDConnection(ctx context.Context, host string, port int) toolchain.PrerequisiteCheck {
	check := toolchain.PrerequisiteCheck{
		Name: "OpenOCD Connection",
	}

	address := net.JoinHostPort(host, fmt.Sprint(port))
	if err := ValidateOpenOCDConnection(ctx, host, port); err != nil {
		check.Error = err
		check.Message = fmt.Sprintf("Cannot connect to OpenOCD at %s\n"+
			"This is not fatal, but the gdb target will fail.\n"+
			"Ensure OpenOCD is running: openocd -f <your-config.cfg>", address)
		return check
	}

	check.Available = true
	check.Message = fmt.Sprintf("Connected successfully to %s", address)
	return check
}

// ValidateGDBPath checks if a specific GDB binary path is valid and executable.
func ValidateGDBPath(ctx context.Context, gdbPath string) error {
	if gdbPath == "" {
		return &PrerequisiteError{
			Prerequisite: "arm-none-eabi-gdb",
			Details:      "GDB path is empty",
		}
	}

	versionCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	output, err := exec.CommandContext(versionCtx, gdbPath, "--version").Output()
	if err != nil {
		return &PrerequisiteError{
			Prerequisite: "arm-none-eabi-gdb",
			Details:      fmt.Sprintf("Failed to execute %s --version", gdbPath),
			Err:          err,
		}
	}

	if !strings.Contains(string(output), "GNU gdb") {
		return &PrerequisiteError{
			Prerequisite: "arm-none-eabi-gdb",
			Details:      fmt.Sprintf("%s does not appear to be GNU GDB", gdbPath),
		}
	}

	return nil
}

// ValidateOpenOCDConnection checks if OpenOCD is accessible at the given host and port.
func ValidateOpenOCDConnection(ctx context.Context, host string, port int) error {
	dialer := net.Dialer{
		Timeout: 2 * time.Second,
	}

	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, fmt.Sprint(port)))
	if err != nil {
		return &GDBConnectionError{
			Host: host,
			Port: port,
			Err:  err,
		}
	}
	defer conn.Close()

	return nil
}
