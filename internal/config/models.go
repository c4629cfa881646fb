package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/muurk/coastermelt/internal/gdb"
	"github.com/muurk/coastermelt/internal/inject"
	"github.com/muurk/coastermelt/internal/toolchain"
	"gopkg.in/yaml.v3"
)

// CurrentVersion is the only configuration file version this build reads.
const CurrentVersion = 1

// Target kinds accepted by the CLI --target flag.
const (
	TargetSim    = "sim"
	TargetGDB    = "gdb"
	TargetBridge = "bridge"
)

// Config represents the entire user configuration file.
type Config struct {
	Version        int              `yaml:"version"`
	Target         string           `yaml:"target"`          // Default target kind: sim, gdb or bridge
	ScratchAddress Address          `yaml:"scratch_address"` // Load address used by eval
	Toolchain      toolchain.Config `yaml:"toolchain"`
	GDB            gdb.Config       `yaml:"gdb"`
	Bridge         BridgeConfig     `yaml:"bridge"`
}

// BridgeConfig holds both ends of the websocket bridge.
type BridgeConfig struct {
	URL    string `yaml:"url"`    // Dialed by the bridge target, e.g. ws://pi.local:8765/target
	Listen string `yaml:"listen"` // Address "coastermelt serve" listens on
}

// Address is a target memory address written as a hex string in YAML.
type Address uint32

// String formats the address the way listings do.
func (a Address) String() string {
	return fmt.Sprintf("0x%08x", uint32(a))
}

// MarshalYAML implements yaml.Marshaler.
func (a Address) MarshalYAML() (interface{}, error) {
	return a.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler. Both hex strings and plain
// integers are accepted.
func (a *Address) UnmarshalYAML(value *yaml.Node) error {
	v, err := ParseAddress(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*a = v
	return nil
}

// ParseAddress parses a 32-bit address in any base strconv understands
// ("0x1fffda0", "33553824", "0o177776640").
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty address")
	}
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return Address(v), nil
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Version:        CurrentVersion,
		Target:         TargetSim,
		ScratchAddress: Address(inject.DefaultScratchAddress),
		Toolchain:      toolchain.DefaultConfig(),
		GDB:            gdb.DefaultConfig(),
		Bridge: BridgeConfig{
			URL:    "ws://localhost:8765/target",
			Listen: "localhost:8765",
		},
	}
}

// Validate checks the fields a loaded file may get wrong.
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return fmt.Errorf("unsupported config version: %d (expected %d)", c.Version, CurrentVersion)
	}
	switch c.Target {
	case TargetSim, TargetGDB, TargetBridge:
	default:
		return fmt.Errorf("unknown target %q (want %s, %s or %s)", c.Target, TargetSim, TargetGDB, TargetBridge)
	}
	return nil
}

// normalize fills fields left empty in a partial file.
func (c *Config) normalize() {
	d := Default()
	if c.Target == "" {
		c.Target = d.Target
	}
	if c.ScratchAddress == 0 {
		c.ScratchAddress = d.ScratchAddress
	}
	if c.Bridge.URL == "" {
		c.Bridge.URL = d.Bridge.URL
	}
	if c.Bridge.Listen == "" {
		c.Bridge.Listen = d.Bridge.Listen
	}
	c.Toolchain = c.Toolchain.Normalize()
	c.GDB = c.GDB.Normalize()
}
