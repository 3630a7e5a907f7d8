package output

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Color palette. Single accent color, 256-color codes.
const (
	colorCyan     = "86"  // Primary accent for names and headers
	colorGray     = "245" // Secondary text, labels
	colorDarkGray = "238" // Separators
	colorGreen    = "40"  // Added
	colorRed      = "196" // Removed, errors
	colorYellow   = "220" // Modified, warnings
)

// Styles holds the render styles for CLI output.
type Styles struct {
	Header   lipgloss.Style
	ID       lipgloss.Style
	Name     lipgloss.Style
	Label    lipgloss.Style
	Dim      lipgloss.Style
	Added    lipgloss.Style
	Removed  lipgloss.Style
	Modified lipgloss.Style
	Warning  lipgloss.Style
	Error    lipgloss.Style
}

// DefaultStyles returns the colored style set.
func DefaultStyles() Styles {
	return Styles{
		Header:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorCyan)),
		ID:       lipgloss.NewStyle().Foreground(lipgloss.Color(colorGray)),
		Name:     lipgloss.NewStyle().Foreground(lipgloss.Color(colorCyan)),
		Label:    lipgloss.NewStyle().Foreground(lipgloss.Color(colorGray)),
		Dim:      lipgloss.NewStyle().Foreground(lipgloss.Color(colorDarkGray)),
		Added:    lipgloss.NewStyle().Foreground(lipgloss.Color(colorGreen)),
		Removed:  lipgloss.NewStyle().Foreground(lipgloss.Color(colorRed)),
		Modified: lipgloss.NewStyle().Foreground(lipgloss.Color(colorYellow)),
		Warning:  lipgloss.NewStyle().Foreground(lipgloss.Color(colorYellow)),
		Error:    lipgloss.NewStyle().Foreground(lipgloss.Color(colorRed)),
	}
}

// NoColorStyles returns an unstyled set for plain output.
func NoColorStyles() Styles {
	return Styles{
		Header:   lipgloss.NewStyle(),
		ID:       lipgloss.NewStyle(),
		Name:     lipgloss.NewStyle(),
		Label:    lipgloss.NewStyle(),
		Dim:      lipgloss.NewStyle(),
		Added:    lipgloss.NewStyle(),
		Removed:  lipgloss.NewStyle(),
		Modified: lipgloss.NewStyle(),
		Warning:  lipgloss.NewStyle(),
		Error:    lipgloss.NewStyle(),
	}
}

// IsTTY checks if the writer is a terminal.
func IsTTY(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// DetectNoColor checks if the NO_COLOR environment variable is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}
