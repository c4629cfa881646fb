package scripts

import (
	_ "embed"
	"fmt"
	"strings"
)

//go:embed templates/poke_word.gdb.tmpl
var pokeWordTemplate string

// PokeWordScript writes one 32-bit word and reads it back.
type PokeWordScript struct {
	openocdHost string
	openocdPort int
	address     uint32
	word        uint32
}

// NewPokeWordScript creates a poke script
func NewPokeWordScript(openocdHost string, openocdPort int, address, word uint32) *PokeWordScript {
	return &PokeWordScript{
		openocdHost: openocdHost,
		openocdPort: openocdPort,
		address:     address,
		word:        word,
	}
}

// Name returns the script name
func (s *PokeWordScript) Name() string {
	return "poke_word"
}

// Template returns the embedded GDB script template
func (s *PokeWordScript) Template() string {
	return pokeWordTemplate
}

// Params returns the template parameters
func (s *PokeWordScript) Params() map[string]interface{} {
	return map[string]interface{}{
		"OpenOCDHost": s.openocdHost,
		"OpenOCDPort": s.openocdPort,
		"Address":     hex(s.address),
		"Word":        hex(s.word),
	}
}

// Parse checks the read-back value against the written word.
func (s *PokeWordScript) Parse(output string) (*Result, error) {
	result := NewResult()
	result.Steps = ParseSteps(output)

	if !strings.Contains(output, "[SUCCESS]") {
		if msg := firstError(output); msg != "" {
			return result.Fail(fmt.Errorf("poke 0x%08x failed: %s", s.address, msg)), nil
		}
		return result.Fail(fmt.Errorf("poke 0x%08x failed: success marker not found", s.address)), nil
	}

	got, found, err := ParseTagged(output, "poke_result")
	if err != nil || !found {
		if err == nil {
			err = fmt.Errorf("poke_result not printed")
		}
		return nil, &ParseError{Script: s.Name(), Field: "poke_result", Output: output, Err: err}
	}

	result.Word = got
	if got != s.word {
		return result.Fail(fmt.Errorf("poke 0x%08x: read back 0x%08x, wrote 0x%08x", s.address, got, s.word)), nil
	}
	result.Success = true
	return result, nil
}
