package ui

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Semantic colors, as ANSI codes so they follow the user's terminal theme.
const (
	ColorSuccess lipgloss.Color = "2" // Green
	ColorError   lipgloss.Color = "1" // Red
	ColorWarning lipgloss.Color = "3" // Yellow
	ColorInfo    lipgloss.Color = "6" // Cyan
)

// Text colors for content hierarchy
const (
	ColorPrimary   lipgloss.Color = "7" // White/default
	ColorSecondary lipgloss.Color = "4" // Blue
	ColorMuted     lipgloss.Color = "8" // Gray (bright black)
)

// GradientColors cycle through the spinner frames.
var GradientColors = []lipgloss.Color{
	lipgloss.Color("5"),  // Magenta
	lipgloss.Color("13"), // Bright magenta
	lipgloss.Color("6"),  // Cyan
	lipgloss.Color("2"),  // Green
}

func SuccessStyle() lipgloss.Style { return lipgloss.NewStyle().Foreground(ColorSuccess) }
func ErrorStyle() lipgloss.Style   { return lipgloss.NewStyle().Foreground(ColorError) }
func WarningStyle() lipgloss.Style { return lipgloss.NewStyle().Foreground(ColorWarning) }
func MutedStyle() lipgloss.Style   { return lipgloss.NewStyle().Foreground(ColorMuted) }

// TitleStyle is used for section headings.
func TitleStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(ColorSecondary).Bold(true)
}

// ColorMode picks the lipgloss color profile. mode is "auto", "always" or
// "never"; noColor (the --no-color flag or NO_COLOR) wins over mode.
func ColorMode(mode string, noColor bool, w io.Writer) {
	if noColor || os.Getenv("NO_COLOR") != "" {
		DisableColors()
		return
	}
	switch strings.ToLower(mode) {
	case "never":
		DisableColors()
	case "always":
		lipgloss.SetColorProfile(termenv.ANSI256)
	default:
		lipgloss.SetColorProfile(termenv.NewOutput(w).EnvColorProfile())
	}
}

// DisableColors switches to monochrome output.
func DisableColors() {
	lipgloss.SetColorProfile(termenv.Ascii)
}
