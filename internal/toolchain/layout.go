package toolchain

import (
	_ "embed"
	"fmt"
	"os"
)

//go:embed templates/layout.ld.tmpl
var layoutTemplate string

const (
	// DefaultRegion names the single executable memory region.
	DefaultRegion = "PATCH"

	// DefaultLength caps the image size. The linker fails, rather than this
	// package, when an image exceeds it.
	DefaultLength = 2048 * 1024
)

// LinkLayout describes where linked code must land: one read-execute region
// at an absolute origin, receiving the listed input sections in order. The
// output section is padded to a word boundary so the flat image decodes to
// whole words. An image linked against it is valid only at Origin.
type LinkLayout struct {
	Region   string
	Origin   uint32
	Length   uint32
	Sections []string
}

// AssemblyLayout is the layout for hand-written assembly: code only.
func AssemblyLayout(origin uint32) LinkLayout {
	return LinkLayout{
		Region:   DefaultRegion,
		Origin:   origin,
		Length:   DefaultLength,
		Sections: []string{".text"},
	}
}

// CompilerLayout is the layout for compiled expressions. The ".first"
// section holds the entry function so it starts at Origin, followed by
// generic code and read-only data.
func CompilerLayout(origin uint32) LinkLayout {
	return LinkLayout{
		Region:   DefaultRegion,
		Origin:   origin,
		Length:   DefaultLength,
		Sections: []string{".first", ".text", ".rodata"},
	}
}

// Render returns the layout in GNU ld linker script syntax.
func (l LinkLayout) Render() (string, error) {
	if l.Region == "" {
		l.Region = DefaultRegion
	}
	if l.Length == 0 {
		l.Length = DefaultLength
	}
	if len(l.Sections) == 0 {
		return "", &TemplateError{Template: "layout", Err: fmt.Errorf("no sections to place")}
	}
	return Render("layout", layoutTemplate, l)
}

// WriteFile renders the layout to path.
func (l LinkLayout) WriteFile(path string) error {
	script, err := l.Render()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(script), 0o644); err != nil {
		return fmt.Errorf("failed to write link layout: %w", err)
	}
	return nil
}
