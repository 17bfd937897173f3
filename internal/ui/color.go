// Package ui provides terminal output utilities for featsync.
package ui

import (
	"os"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// Color function types for styled output.
var (
	// Success is used for successful operations (green).
	Success = color.New(color.FgGreen).SprintFunc()
	// Error is used for errors and failures (red).
	Error = color.New(color.FgRed).SprintFunc()
	// Warning is used for warnings and cautions (yellow).
	Warning = color.New(color.FgYellow).SprintFunc()
	// Info is used for informational messages (cyan).
	Info = color.New(color.FgCyan).SprintFunc()
	// Bold is used for emphasis (bold white).
	Bold = color.New(color.Bold).SprintFunc()
	// Dim is used for secondary information (faint).
	Dim = color.New(color.Faint).SprintFunc()
	// Header is used for table headers (bold cyan).
	Header = color.New(color.FgCyan, color.Bold).SprintFunc()
	// Added is used for added diff lines (green).
	Added = color.New(color.FgGreen).SprintFunc()
	// Removed is used for removed diff lines (red).
	Removed = color.New(color.FgRed).SprintFunc()
)

// Status symbols.
const (
	SymbolSuccess = "✓"
	SymbolError   = "✗"
	SymbolWarning = "⚠"
	SymbolPending = "…"
)

// DisableColors disables all colored output.
func DisableColors() {
	color.NoColor = true
}

// IsColorEnabled reports whether colored output is active. fatih/color
// already honors NO_COLOR; this adds an explicit check used by progress
// display decisions.
func IsColorEnabled() bool {
	return !color.NoColor
}

// IsTerminal reports whether the given file is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
