package scripts

import (
	_ "embed"
	"fmt"
	"strings"
)

//go:embed templates/read_memory.gdb.tmpl
var readMemoryTemplate string

// ReadMemoryScript reads a block of target memory.
type ReadMemoryScript struct {
	openocdHost string
	openocdPort int
	address     uint32
	size        int
}

// NewReadMemoryScript creates a read script
func NewReadMemoryScript(openocdHost string, openocdPort int, address uint32, size int) *ReadMemoryScript {
	return &ReadMemoryScript{
		openocdHost: openocdHost,
		openocdPort: openocdPort,
		address:     address,
		size:        size,
	}
}

// Name returns the script name
func (s *ReadMemoryScript) Name() string {
	return "read_memory"
}

// Template returns the embedded GDB script template
func (s *ReadMemoryScript) Template() string {
	return readMemoryTemplate
}

// Params returns the template parameters
func (s *ReadMemoryScript) Params() map[string]interface{} {
	return map[string]interface{}{
		"OpenOCDHost": s.openocdHost,
		"OpenOCDPort": s.openocdPort,
		"Address":     hex(s.address),
		"Size":        s.size,
	}
}

// Parse collects the examined bytes.
func (s *ReadMemoryScript) Parse(output string) (*Result, error) {
	result := NewResult()
	result.Steps = ParseSteps(output)

	if !strings.Contains(output, "[SUCCESS]") {
		if msg := firstError(output); msg != "" {
			return result.Fail(fmt.Errorf("read 0x%08x failed: %s", s.address, msg)), nil
		}
		return result.Fail(fmt.Errorf("read 0x%08x failed: success marker not found", s.address)), nil
	}

	data, err := ParseMemory(output, s.address)
	if err != nil {
		return nil, &ParseError{Script: s.Name(), Field: "memory", Output: output, Err: err}
	}
	if len(data) != s.size {
		return nil, &ParseError{
			Script: s.Name(),
			Field:  "memory",
			Output: output,
			Err:    fmt.Errorf("got %d bytes, want %d", len(data), s.size),
		}
	}

	result.Bytes = data
	result.Success = true
	return result, nil
}
