package ui

import (
	"os"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// NoColorEnv disables syntax highlighting when set to any non-empty value.
// The conventional NO_COLOR is honoured as well.
const NoColorEnv = "COASTERMELT_NO_COLOR"

// ColorEnabled reports whether highlighting should be applied.
func ColorEnabled() bool {
	return os.Getenv(NoColorEnv) == "" && os.Getenv("NO_COLOR") == "" && IsTerminal()
}

// firstLexer returns the first registered lexer among names.
func firstLexer(names ...string) chroma.Lexer {
	for _, name := range names {
		if lexer := lexers.Get(name); lexer != nil {
			return chroma.Coalesce(lexer)
		}
	}
	return nil
}

func highlightStyle() *chroma.Style {
	for _, name := range []string{"dracula", "monokai"} {
		if style := styles.Get(name); style != nil {
			return style
		}
	}
	return styles.Fallback
}

func terminalFormatter() chroma.Formatter {
	for _, name := range []string{"terminal16m", "terminal256"} {
		if formatter := formatters.Get(name); formatter != nil {
			return formatter
		}
	}
	return formatters.Fallback
}

// highlight tokenises code with the first available lexer and formats it for
// the terminal. Plain code is returned when colour is off, no lexer is
// registered, or formatting fails.
func highlight(code string, lexerNames ...string) string {
	if !ColorEnabled() {
		return code
	}
	lexer := firstLexer(lexerNames...)
	if lexer == nil {
		return code
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}

	var buf strings.Builder
	if err := terminalFormatter().Format(&buf, highlightStyle(), iterator); err != nil {
		return code
	}
	return strings.TrimRight(buf.String(), "\n")
}

// HighlightSource colours C/C++ source text.
func HighlightSource(code string) string {
	return highlight(code, "cpp", "c")
}

// HighlightAssembly colours ARM assembly or a disassembly listing.
func HighlightAssembly(code string) string {
	return highlight(code, "armasm", "gas", "GAS")
}
