package inject

import (
	_ "embed"
	"os"

	"github.com/muurk/coastermelt/internal/target"
	"github.com/muurk/coastermelt/internal/toolchain"
)

//go:embed templates/assembly.s.tmpl
var assemblyTemplate string

//go:embed templates/expression.cpp.tmpl
var expressionTemplate string

// Kind distinguishes the two source forms the injector accepts.
type Kind int

const (
	// Assembly is a Thumb assembly body wrapped in a fixed frame.
	Assembly Kind = iota
	// Expression is a single C++ expression over the parameter "arg".
	Expression
)

func (k Kind) String() string {
	if k == Expression {
		return "expression"
	}
	return "assembly"
}

// Source is a unit of code to build for one load address.
type Source struct {
	Kind Kind
	// Body is the assembly text or the expression.
	Body string
	// Include is declarations placed before the entry function. Expression
	// sources only.
	Include string
	// Mode selects the instruction set for expression sources. Assembly is
	// always framed as Thumb.
	Mode target.Mode
}

// AssemblySource returns a Source for an assembly body.
func AssemblySource(body string) Source {
	return Source{Kind: Assembly, Body: body, Mode: target.Thumb}
}

// ExpressionSource returns a Source for an expression.
func ExpressionSource(expression, include string, mode target.Mode) Source {
	return Source{Kind: Expression, Body: expression, Include: include, Mode: mode}
}

// Suffix is the file suffix the compiler driver uses to pick a language.
func (s Source) Suffix() string {
	if s.Kind == Expression {
		return ".cpp"
	}
	return ".s"
}

// Text renders the complete translation unit.
func (s Source) Text() (string, error) {
	if s.Kind == Expression {
		return toolchain.Render("expression", expressionTemplate, struct {
			Expression string
			Include    string
		}{s.Body, s.Include})
	}
	return toolchain.Render("assembly", assemblyTemplate, struct {
		Body string
	}{s.Body})
}

// Layout returns the link layout placing this source at origin.
func (s Source) Layout(origin uint32) toolchain.LinkLayout {
	if s.Kind == Expression {
		return toolchain.CompilerLayout(origin)
	}
	return toolchain.AssemblyLayout(origin)
}

// CompilerArgs returns the compiler driver arguments that build src into
// obj against the linker script ld.
func (s Source) CompilerArgs(config toolchain.Config, src, obj, ld string) []string {
	var args []string
	if s.Kind == Expression {
		modeFlag := "-mthumb"
		if s.Mode == target.ARM {
			modeFlag = "-mno-thumb"
		}
		args = []string{"-nostdlib", "-o", obj, src, "-T", ld, "-Os", "-fwhole-program", modeFlag}
	} else {
		args = []string{"-nostdlib", "-nostdinc", "-o", obj, src, "-T", ld}
	}
	return append(args, config.CFlags...)
}

func (s Source) writeFile(path string) (string, error) {
	text, err := s.Text()
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", err
	}
	return text, nil
}
