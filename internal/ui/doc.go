// Package ui holds the terminal presentation pieces used by the teabase
// CLI: the color palette and status symbols, a spinner for long-running
// work such as key generation and tool installs, and the interactive
// action picker behind 'teabase pane'.
//
// Colors are ANSI codes so they follow the user's terminal theme. Call
// ColorMode once at startup; DisableColors forces monochrome output.
//
//	s := ui.NewSpinner("Generating SSH key", os.Stderr)
//	s.Start()
//	// ... do work ...
//	s.Success() // or s.Fail() or s.Skip()
package ui
