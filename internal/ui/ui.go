// Package ui provides the small set of colored terminal helpers the CLI
// uses for its human-readable output (startup banner, version command).
// Color is suppressed automatically when stdout isn't a terminal.
package ui

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

var enabled = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

// InitColors sets up color output for the process, honoring an explicit
// --no-color flag and the NO_COLOR convention on top of terminal
// detection.
func InitColors(noColor bool) {
	if noColor || os.Getenv("NO_COLOR") != "" {
		enabled = false
		color.NoColor = true
	}
}

func paint(c *color.Color, format string, args ...any) string {
	s := fmt.Sprintf(format, args...)
	if !enabled {
		return s
	}
	return c.Sprint(s)
}

// Header prints a bold section title.
func Header(s string) {
	fmt.Println(paint(color.New(color.Bold), "%s", s))
}

// SubHeader prints a dim subsection title.
func SubHeader(s string) {
	fmt.Println(paint(color.New(color.Faint), "%s", s))
}

// Label formats a field label for alignment with a value on the same line.
func Label(s string) string {
	return paint(color.New(color.FgCyan), "%s", s)
}

// DimText formats low-emphasis text, such as a path or id.
func DimText(s string) string {
	return paint(color.New(color.Faint), "%s", s)
}

// CountText formats a numeric count.
func CountText(n int) string {
	return paint(color.New(color.FgGreen, color.Bold), "%d", n)
}

// Warning prints a warning line in yellow.
func Warning(s string) {
	fmt.Println(paint(color.New(color.FgYellow), "%s", s))
}

// Warningf formats and prints a warning line in yellow.
func Warningf(format string, args ...any) {
	fmt.Println(paint(color.New(color.FgYellow), format, args...))
}

// Info prints an informational line.
func Info(s string) {
	fmt.Println(s)
}
