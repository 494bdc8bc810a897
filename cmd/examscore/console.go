package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"examscore/internal/aggregate"
	"examscore/internal/pipeline"
	"examscore/internal/validation"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true)
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10")) // green
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))  // red
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))  // yellow
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))  // gray
	nameStyle    = lipgloss.NewStyle().Width(16)
)

// consoleRenderer prints a report for a terminal.
type consoleRenderer struct {
	out io.Writer
}

func newConsoleRenderer(out io.Writer) *consoleRenderer {
	return &consoleRenderer{out: out}
}

func (r *consoleRenderer) Render(report *pipeline.Report) {
	fmt.Fprintln(r.out, headerStyle.Render("Subjects"))
	for _, s := range report.Subjects {
		status := okStyle.Render("✓")
		if !s.Valid {
			status = errorStyle.Render("✗")
		}
		cached := ""
		if s.Cached {
			cached = mutedStyle.Render(" (cached)")
		}
		fmt.Fprintf(r.out, "%s %s total %g%s\n", status, nameStyle.Render(s.Subject), s.Total, cached)
		for _, e := range s.Errors() {
			r.printViolation(e)
		}
	}

	r.printPie("Distribution by subject", report.Detailed, true)
	r.printPie("Distribution by category", report.Outer, false)
}

func (r *consoleRenderer) printViolation(e validation.Error) {
	style := errorStyle
	switch e.Severity {
	case validation.SeverityWarning:
		style = warningStyle
	case validation.SeverityInfo:
		style = mutedStyle
	}
	fmt.Fprintf(r.out, "    %s %s: %s\n", style.Render(string(e.Code)), e.Field, e.Message)
}

func (r *consoleRenderer) printPie(title string, data aggregate.PieData, detailed bool) {
	fmt.Fprintln(r.out)
	fmt.Fprintf(r.out, "%s %s\n", headerStyle.Render(title), mutedStyle.Render(fmt.Sprintf("(total %g)", data.Total)))
	for _, e := range data.Entries {
		label := e.SubjectName
		if detailed {
			label = fmt.Sprintf("%s/%s", e.SubjectName, e.TestType)
		}
		fmt.Fprintf(r.out, "  %s %6.2f%%  %g\n", nameStyle.Render(label), e.Percentage, e.Value)
	}
	for _, e := range data.Errors {
		fmt.Fprintf(r.out, "  %s %s\n", errorStyle.Render(string(e.Code)), e.Message)
	}
}
