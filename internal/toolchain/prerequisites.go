package toolchain

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// PrerequisiteCheck represents the result of checking a single prerequisite.
type PrerequisiteCheck struct {
	// Name is the human-readable name of the prerequisite
	Name string
	// Available indicates whether the prerequisite is available
	Available bool
	// Required is false for checks that only warn
	Required bool
	// Path is the resolved path (for binary checks)
	Path string
	// Version is the first line of the tool's --version output
	Version string
	// Message provides additional context (error message or success info)
	Message string
	// Error contains the underlying error if check failed
	Error error
}

// PrerequisiteResult contains the results of all prerequisite checks.
type PrerequisiteResult struct {
	// Checks contains individual check results
	Checks []PrerequisiteCheck
	// AllAvailable is true if every required prerequisite is available
	AllAvailable bool
}

// Add appends a check and updates AllAvailable.
func (r *PrerequisiteResult) Add(check PrerequisiteCheck) {
	r.Checks = append(r.Checks, check)
	if check.Required && !check.Available {
		r.AllAvailable = false
	}
}

// ValidatePrerequisites checks that the compiler, objcopy and objdump from
// config can be found and executed.
func ValidatePrerequisites(ctx context.Context, config Config) *PrerequisiteResult {
	config = config.Normalize()
	result := &PrerequisiteResult{AllAvailable: true}
	for _, tool := range []string{config.CC, config.ObjCopy, config.ObjDump} {
		result.Add(CheckBinary(ctx, tool))
	}
	return result
}

// CheckBinary verifies that tool resolves on PATH (or as a path) and
// answers --version.
func CheckBinary(ctx context.Context, tool string) PrerequisiteCheck {
	check := PrerequisiteCheck{
		Name:     tool,
		Required: true,
	}

	path, err := exec.LookPath(tool)
	if err != nil {
		check.Error = err
		check.Message = fmt.Sprintf("%s not found in PATH\n"+
			"Install on macOS: brew install --cask gcc-arm-embedded\n"+
			"Install on Linux: sudo apt-get install gcc-arm-none-eabi binutils-arm-none-eabi", tool)
		return check
	}
	check.Path = path

	versionCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	output, err := exec.CommandContext(versionCtx, path, "--version").Output()
	if err != nil {
		check.Error = err
		check.Message = fmt.Sprintf("%s found at %s but failed to execute: %v", tool, path, err)
		return check
	}

	lines := strings.Split(string(output), "\n")
	if len(lines) > 0 {
		check.Version = strings.TrimSpace(lines[0])
	}

	check.Available = true
	check.Message = fmt.Sprintf("Found at %s", path)
	return check
}

// FormatPrerequisiteReport formats a PrerequisiteResult into a human-readable string.
func FormatPrerequisiteReport(result *PrerequisiteResult) string {
	var sb strings.Builder

	sb.WriteString("Toolchain Prerequisites Check:\n")
	sb.WriteString("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

	for _, check := range result.Checks {
		marker := "✓"
		if !check.Available {
			marker = "✗"
			if !check.Required {
				marker = "!"
			}
		}
		sb.WriteString(fmt.Sprintf("%s %s\n", marker, check.Name))
		if check.Available && check.Version != "" {
			sb.WriteString(fmt.Sprintf("  Version: %s\n", check.Version))
		}
		if check.Available && check.Path != "" {
			sb.WriteString(fmt.Sprintf("  Path: %s\n", check.Path))
		}
		if check.Message != "" {
			sb.WriteString(fmt.Sprintf("  %s\n", check.Message))
		}
		sb.WriteString("\n")
	}

	if result.AllAvailable {
		sb.WriteString("All required prerequisites are available.\n")
	} else {
		sb.WriteString("Some prerequisites are missing. Please install them before proceeding.\n")
	}

	return sb.String()
}
