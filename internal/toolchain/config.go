package toolchain

// Config holds the external toolchain configuration. It is constructed once
// and passed to every component that drives the toolchain.
type Config struct {
	// CC is the cross compiler driver used to assemble, compile and link.
	// Default: "arm-none-eabi-gcc" (searches PATH)
	CC string `yaml:"cc"`

	// ObjCopy extracts a flat binary from a linked object.
	// Default: "arm-none-eabi-objcopy"
	ObjCopy string `yaml:"objcopy"`

	// ObjDump disassembles raw binaries.
	// Default: "arm-none-eabi-objdump"
	ObjDump string `yaml:"objdump"`

	// CPU is the objdump machine name for the target core.
	// Default: "arm7tdmi"
	CPU string `yaml:"cpu"`

	// CFlags are extra architecture flags appended to every compiler
	// invocation, e.g. "-mcpu=arm7tdmi".
	CFlags []string `yaml:"cflags,omitempty"`

	// WorkDir is the directory temporary artifacts are created in.
	// Default: "" (the process working directory)
	WorkDir string `yaml:"work_dir,omitempty"`

	// Prefix is the fixed leading part of every temporary file name.
	// Default: "temp-coastermelt"
	Prefix string `yaml:"prefix,omitempty"`

	// RetainTemps leaves temporary artifacts on disk for inspection.
	RetainTemps bool `yaml:"retain_temps,omitempty"`
}

// DefaultConfig returns a Config for a GNU Arm Embedded toolchain on PATH.
func DefaultConfig() Config {
	return Config{
		CC:      "arm-none-eabi-gcc",
		ObjCopy: "arm-none-eabi-objcopy",
		ObjDump: "arm-none-eabi-objdump",
		CPU:     "arm7tdmi",
		Prefix:  DefaultPrefix,
	}
}

// Normalize returns c with empty fields replaced by defaults.
func (c Config) Normalize() Config {
	d := DefaultConfig()
	if c.CC == "" {
		c.CC = d.CC
	}
	if c.ObjCopy == "" {
		c.ObjCopy = d.ObjCopy
	}
	if c.ObjDump == "" {
		c.ObjDump = d.ObjDump
	}
	if c.CPU == "" {
		c.CPU = d.CPU
	}
	if c.Prefix == "" {
		c.Prefix = d.Prefix
	}
	return c
}
