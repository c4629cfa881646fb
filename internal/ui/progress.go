package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

// StepStatus represents the current state of a step
type StepStatus int

const (
	StepPending  StepStatus = iota // Not yet started
	StepRunning                    // Currently executing
	StepComplete                   // Successfully completed
	StepFailed                     // Failed
	StepSkipped                    // Never reached
)

// Step represents a single step in a multi-step operation
type Step struct {
	Number  int        // Step number (1-based)
	Name    string     // Step description
	Status  StepStatus // Current status
	Message string     // Optional status message (e.g., "100 nops listed")
}

// Progress is a progress bar with a step list. It renders to strings and
// owns no event loop: callers print Render, RenderBar or RenderStep after
// each update.
type Progress struct {
	Label     string  // e.g., "Loading 25 words at 0x01fffda0"
	Steps     []Step  // List of steps
	Current   int     // Current step (1-based)
	Total     int     // Total steps
	Percent   float64 // Progress percentage (0.0 - 1.0)
	Width     int     // Terminal width
	ShowBar   bool    // Whether to show progress bar
	ShowSteps bool    // Whether to show step list
	bar       progress.Model
}

// NewProgress creates a new progress display
func NewProgress(label string, totalSteps int) *Progress {
	steps := make([]Step, totalSteps)
	for i := range steps {
		steps[i] = Step{
			Number: i + 1,
			Status: StepPending,
		}
	}

	p := &Progress{
		Label:     label,
		Steps:     steps,
		Total:     totalSteps,
		ShowBar:   true,
		ShowSteps: true,
	}
	return p.SetWidth(GetTerminalWidth())
}

// SetWidth sets the terminal width for responsive rendering
func (p *Progress) SetWidth(width int) *Progress {
	p.Width = width
	// Leave room for percentage and step count
	barWidth := width - 20
	if barWidth < 20 {
		barWidth = 20
	}
	if barWidth > 50 {
		barWidth = 50
	}
	p.bar = progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(barWidth),
		progress.WithoutPercentage(),
	)
	return p
}

// SetStepNames sets the names for all steps
func (p *Progress) SetStepNames(names []string) *Progress {
	for i, name := range names {
		if i < len(p.Steps) {
			p.Steps[i].Name = name
		}
	}
	return p
}

// UpdateStep updates a specific step's status and optional message
func (p *Progress) UpdateStep(stepNumber int, status StepStatus, message string) {
	if stepNumber < 1 || stepNumber > len(p.Steps) {
		return
	}
	idx := stepNumber - 1
	p.Steps[idx].Status = status
	p.Steps[idx].Message = message

	switch status {
	case StepRunning:
		p.Current = stepNumber
	case StepComplete, StepFailed, StepSkipped:
		completed := 0
		for _, s := range p.Steps {
			if s.Status == StepComplete || s.Status == StepSkipped {
				completed++
			}
		}
		p.Percent = float64(completed) / float64(p.Total)
	}
}

// SetCompleted records n of Total units done, for progress without a step
// list such as word-by-word image loads.
func (p *Progress) SetCompleted(n int) {
	if n > p.Total {
		n = p.Total
	}
	p.Current = n
	if p.Total > 0 {
		p.Percent = float64(n) / float64(p.Total)
	}
}

// FailedSteps returns the steps marked failed, in order.
func (p *Progress) FailedSteps() []Step {
	var failed []Step
	for _, s := range p.Steps {
		if s.Status == StepFailed {
			failed = append(failed, s)
		}
	}
	return failed
}

// Render returns the styled progress display as a string
func (p *Progress) Render() string {
	var b strings.Builder

	if p.Label != "" {
		b.WriteString(ProgressLabelStyle.Render(p.Label))
		b.WriteString("\n\n")
	}

	if p.ShowBar {
		b.WriteString(p.RenderBar())
		b.WriteString("\n\n")
	}

	if p.ShowSteps {
		lines := make([]string, 0, len(p.Steps))
		for _, step := range p.Steps {
			lines = append(lines, p.RenderStep(step))
		}
		b.WriteString(strings.Join(lines, "\n"))
	}

	return b.String()
}

// RenderBar renders the bar with its percentage and [current/total] count.
func (p *Progress) RenderBar() string {
	percentStr := fmt.Sprintf("%3.0f%%", p.Percent*100)
	stepStr := fmt.Sprintf("[%d/%d]", p.Current, p.Total)

	return lipgloss.NewStyle().
		PaddingLeft(2).
		Render(fmt.Sprintf("%s  %s  %s", p.bar.ViewAs(p.Percent), percentStr, stepStr))
}

// RenderStep renders a single step line
func (p *Progress) RenderStep(step Step) string {
	var (
		marker    string
		nameStyle lipgloss.Style
	)
	switch step.Status {
	case StepComplete:
		marker, nameStyle = StepMarkerComplete, StepCompleteStyle
	case StepRunning:
		marker, nameStyle = StepMarkerRunning, StepRunningStyle
	case StepFailed:
		marker, nameStyle = FailureMarker, ErrorTitleStyle
	case StepSkipped:
		marker, nameStyle = StepMarkerSkipped, StepPendingStyle
	default:
		marker, nameStyle = StepMarkerPending, StepPendingStyle
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("  [%d/%d] ", step.Number, p.Total))
	b.WriteString(nameStyle.Render(step.Name))

	// Markers line up in one column
	padding := 45 - lipgloss.Width(step.Name)
	if padding < 1 {
		padding = 1
	}
	b.WriteString(strings.Repeat(" ", padding))
	b.WriteString(nameStyle.Render(marker))

	if step.Message != "" {
		b.WriteString("  ")
		b.WriteString(StepNoteStyle.Render("(" + step.Message + ")"))
	}

	return b.String()
}

// String implements fmt.Stringer
func (p *Progress) String() string {
	return p.Render()
}

// StepCallback is the function signature for step progress updates.
// Commands call this to report progress.
type StepCallback func(stepNumber int, name string, status StepStatus, message string)

// Reporter returns a StepCallback that updates p and prints each step to w:
// running steps without a newline so the finished line overwrites them.
func (p *Progress) Reporter(w io.Writer) StepCallback {
	return func(stepNumber int, name string, status StepStatus, message string) {
		if stepNumber < 1 || stepNumber > len(p.Steps) {
			return
		}
		if name != "" {
			p.Steps[stepNumber-1].Name = name
		}
		p.UpdateStep(stepNumber, status, message)

		line := p.RenderStep(p.Steps[stepNumber-1])
		switch status {
		case StepComplete, StepFailed, StepSkipped:
			_, _ = fmt.Fprintln(w, "\r"+line)
		case StepRunning:
			_, _ = fmt.Fprint(w, line)
		}
	}
}
