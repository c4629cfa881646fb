package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// OutputBox displays raw tool output (compiler diagnostics, GDB transcripts)
// in verbose mode.
type OutputBox struct {
	Title    string
	Lines    []string
	Width    int
	MaxLines int // 0 = unlimited
}

// NewOutputBox creates an output box for content.
func NewOutputBox(title, content string) *OutputBox {
	return &OutputBox{
		Title: title,
		Lines: strings.Split(strings.TrimRight(content, "\n"), "\n"),
		Width: GetTerminalWidth(),
	}
}

// SetWidth sets the terminal width for responsive rendering
func (o *OutputBox) SetWidth(width int) *OutputBox {
	o.Width = width
	return o
}

// SetMaxLines limits the number of lines displayed
func (o *OutputBox) SetMaxLines(max int) *OutputBox {
	o.MaxLines = max
	return o
}

// Render returns the styled box as a string
func (o *OutputBox) Render() string {
	width := clampWidth(o.Width)

	lines := o.Lines
	if o.MaxLines > 0 && len(lines) > o.MaxLines {
		lines = append(lines[:o.MaxLines:o.MaxLines], "... (output truncated)")
	}

	inner := lipgloss.JoinVertical(lipgloss.Left,
		SectionTitleStyle.Render(o.Title),
		"",
		strings.Join(lines, "\n"),
	)
	return PaneStyle(width).Render(inner)
}

// String implements fmt.Stringer
func (o *OutputBox) String() string {
	return o.Render()
}
