package scripts

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	// [1/2] Writing word...
	stepPattern = regexp.MustCompile(`^\[(\d+)/(\d+)\]\s+(.+?)(?:\.\.\.)?\s*$`)

	// name: 0x1234abcd
	taggedPattern = regexp.MustCompile(`^(\w+):\s+(0x[0-9a-fA-F]+|\d+)\s*$`)

	// $1 = 0x5, $12 = 2500
	valueHistoryPattern = regexp.MustCompile(`^\$\d+\s*=\s*(0x[0-9a-fA-F]+|-?\d+)\s*$`)

	// 0x1fffda0:	0x05	0x20
	// 0x1fffda0 <patch+4>:	0x05	0x20
	memoryLinePattern = regexp.MustCompile(`^(0x[0-9a-fA-F]+)(?:\s+<[^>]*>)?:\s*(.*)$`)

	errorPatterns = []string{
		"Cannot access memory at address",
		"Connection refused",
		"Connection timed out",
		"Remote communication error",
		"The program is not being run",
		"Error",
	}
)

// ParseSteps extracts step markers from GDB output. A step is marked failed
// when an error line follows it before the next marker.
func ParseSteps(output string) []Step {
	lines := strings.Split(output, "\n")
	steps := make([]Step, 0)

	for i, line := range lines {
		m := stepPattern.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		number, _ := strconv.Atoi(m[1])
		total, _ := strconv.Atoi(m[2])
		step := Step{Number: number, Total: total, Name: m[3], Status: StepSucceeded}
		for j := i + 1; j < len(lines); j++ {
			next := strings.TrimSpace(lines[j])
			if stepPattern.MatchString(next) {
				break
			}
			if msg := FindError(next); msg != "" {
				step.Status = StepFailed
				step.Message = msg
				break
			}
		}
		steps = append(steps, step)
	}
	return steps
}

// ParseTagged returns the value printed on a "name: value" line.
func ParseTagged(output, name string) (uint32, bool, error) {
	for _, line := range strings.Split(output, "\n") {
		m := taggedPattern.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil || m[1] != name {
			continue
		}
		v, err := strconv.ParseUint(m[2], 0, 32)
		return uint32(v), true, err
	}
	return 0, false, nil
}

// ParseValueHistory returns the last "$N = value" printed by GDB. Negative
// decimals are reinterpreted as their 32-bit two's complement.
func ParseValueHistory(output string) (uint32, bool, error) {
	var (
		last  string
		found bool
	)
	for _, line := range strings.Split(output, "\n") {
		if m := valueHistoryPattern.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			last, found = m[1], true
		}
	}
	if !found {
		return 0, false, nil
	}
	if strings.HasPrefix(last, "-") {
		v, err := strconv.ParseInt(last, 10, 32)
		return uint32(int32(v)), true, err
	}
	v, err := strconv.ParseUint(last, 0, 32)
	return uint32(v), true, err
}

// ParseMemory collects the bytes of "x/Nxb" output starting at address.
// Lines must be contiguous; a gap or a byte that is not 0xNN is an error.
func ParseMemory(output string, address uint32) ([]byte, error) {
	var data []byte
	next := address

	for _, line := range strings.Split(output, "\n") {
		m := memoryLinePattern.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		lineAddr, err := strconv.ParseUint(m[1], 0, 32)
		if err != nil {
			return nil, err
		}
		if uint32(lineAddr) != next {
			return nil, fmt.Errorf("memory line at %s, expected 0x%08x", m[1], next)
		}
		for _, tok := range strings.Fields(m[2]) {
			b, err := strconv.ParseUint(tok, 0, 8)
			if err != nil {
				return nil, fmt.Errorf("bad byte %q at 0x%08x: %w", tok, next, err)
			}
			data = append(data, byte(b))
			next++
		}
	}
	return data, nil
}

// FindError returns line if it looks like a GDB error message.
func FindError(line string) string {
	for _, p := range errorPatterns {
		if strings.Contains(line, p) {
			return strings.TrimSpace(line)
		}
	}
	return ""
}

// firstError returns the first error line in output.
func firstError(output string) string {
	for _, line := range strings.Split(output, "\n") {
		if msg := FindError(line); msg != "" {
			return msg
		}
	}
	return ""
}
