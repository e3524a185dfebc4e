// Package ui provides terminal styling for CLI output.
//
// Styling is applied only when stdout is a terminal; piped output stays
// plain.
package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func render(style lipgloss.Style, s string) string {
	if !isTerminal() {
		return s
	}
	return style.Render(s)
}

// RenderAccent highlights informational output.
func RenderAccent(s string) string { return render(accentStyle, s) }

// RenderPass marks success output.
func RenderPass(s string) string { return render(passStyle, s) }

// RenderWarn marks warnings.
func RenderWarn(s string) string { return render(warnStyle, s) }

// RenderFail marks failures.
func RenderFail(s string) string { return render(failStyle, s) }

// RenderMuted de-emphasizes secondary output.
func RenderMuted(s string) string { return render(mutedStyle, s) }
