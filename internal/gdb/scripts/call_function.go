package scripts

import (
	_ "embed"
	"fmt"
	"strings"
)

//go:embed templates/call_function.gdb.tmpl
var callFunctionTemplate string

// CallFunctionScript calls code on the target as
// unsigned int f(unsigned int) and captures the return value.
type CallFunctionScript struct {
	openocdHost string
	openocdPort int
	address     uint32
	arg         uint32
}

// NewCallFunctionScript creates a call script. address is used as given,
// including its Thumb bit.
func NewCallFunctionScript(openocdHost string, openocdPort int, address, arg uint32) *CallFunctionScript {
	return &CallFunctionScript{
		openocdHost: openocdHost,
		openocdPort: openocdPort,
		address:     address,
		arg:         arg,
	}
}

// Name returns the script name
func (s *CallFunctionScript) Name() string {
	return "call_function"
}

// Template returns the embedded GDB script template
func (s *CallFunctionScript) Template() string {
	return callFunctionTemplate
}

// Params returns the template parameters
func (s *CallFunctionScript) Params() map[string]interface{} {
	return map[string]interface{}{
		"OpenOCDHost": s.openocdHost,
		"OpenOCDPort": s.openocdPort,
		"Address":     hex(s.address),
		"Arg":         hex(s.arg),
	}
}

// Parse extracts the value GDB printed for the call.
func (s *CallFunctionScript) Parse(output string) (*Result, error) {
	result := NewResult()
	result.Steps = ParseSteps(output)

	if !strings.Contains(output, "[SUCCESS]") {
		if msg := firstError(output); msg != "" {
			return result.Fail(fmt.Errorf("call 0x%08x failed: %s", s.address, msg)), nil
		}
		return result.Fail(fmt.Errorf("call 0x%08x failed: success marker not found", s.address)), nil
	}

	word, found, err := ParseValueHistory(output)
	if err != nil || !found {
		if err == nil {
			err = fmt.Errorf("no value printed")
		}
		return nil, &ParseError{Script: s.Name(), Field: "result", Output: output, Err: err}
	}

	result.Word = word
	result.Success = true
	return result, nil
}
