package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muurk/coastermelt/internal/disasm"
)

// CompileDiagnostics is the human-readable side output of a debug compile:
// the generated source and the disassembly of the resulting image.
type CompileDiagnostics struct {
	Address uint32
	Source  string
	Listing disasm.Listing
	// Err is why the image could not be disassembled, if it could not.
	Err   error
	Width int
}

// Render returns the two panes joined vertically.
func (d CompileDiagnostics) Render() string {
	width := clampWidth(d.Width)

	title := SectionTitleStyle.Render("Compiled for ") + AddressStyle.Render(fmt.Sprintf("0x%08x", d.Address))

	source := lipgloss.JoinVertical(lipgloss.Left,
		SectionTitleStyle.Render("Source"),
		"",
		HighlightSource(strings.TrimRight(d.Source, "\n")),
	)

	var listing string
	if d.Err != nil {
		listing = lipgloss.JoinVertical(lipgloss.Left,
			SectionTitleStyle.Render("Disassembly"),
			"",
			ErrorMessageStyle.Render("disassembly unavailable: "+d.Err.Error()),
		)
	} else {
		listingText := d.Listing.String()
		if listingText == "" {
			listingText = "(empty image)"
		}
		listing = lipgloss.JoinVertical(lipgloss.Left,
			SectionTitleStyle.Render(fmt.Sprintf("Disassembly (%d instructions)", len(d.Listing))),
			"",
			HighlightAssembly(listingText),
		)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		"  "+title,
		PaneStyle(width).Render(source),
		PaneStyle(width).Render(listing),
	)
}

// String implements fmt.Stringer
func (d CompileDiagnostics) String() string {
	return d.Render()
}

// RenderCompileDiagnostics renders source and listing at the current
// terminal width. A non-nil err replaces the listing pane's contents.
func RenderCompileDiagnostics(address uint32, source string, listing disasm.Listing, err error) string {
	return CompileDiagnostics{
		Address: address,
		Source:  source,
		Listing: listing,
		Err:     err,
		Width:   GetTerminalWidth(),
	}.Render()
}
