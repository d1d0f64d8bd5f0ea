package output

import (
	"github.com/fatih/color"
)

// ColorScheme defines the colors used for different elements in the output
type ColorScheme struct {
	Title     *color.Color
	Rule      *color.Color
	Label     *color.Color
	Value     *color.Color
	Probing   *color.Color
	Refining  *color.Color
	Terminal  *color.Color
	Pass      *color.Color
	Miss      *color.Color
	Warn      *color.Color
	Highlight *color.Color
}

// DefaultColorScheme returns the default color scheme
func DefaultColorScheme() *ColorScheme {
	return &ColorScheme{
		Title:     color.New(color.Bold),
		Rule:      color.New(color.FgCyan),
		Label:     color.New(color.Faint),
		Value:     color.New(color.FgCyan),
		Probing:   color.New(color.FgBlue),
		Refining:  color.New(color.FgMagenta),
		Terminal:  color.New(color.FgWhite, color.Bold),
		Pass:      color.New(color.FgGreen, color.Bold),
		Miss:      color.New(color.FgRed, color.Bold),
		Warn:      color.New(color.FgYellow),
		Highlight: color.New(color.FgGreen, color.Bold),
	}
}

// NoColorScheme returns a color scheme with all colors disabled
func NoColorScheme() *ColorScheme {
	return DefaultColorScheme().set(false)
}

// ForcedColorScheme returns a color scheme that colors regardless of the terminal
func ForcedColorScheme() *ColorScheme {
	return DefaultColorScheme().set(true)
}

func (s *ColorScheme) set(enabled bool) *ColorScheme {
	for _, c := range s.all() {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return s
}

func (s *ColorScheme) all() []*color.Color {
	return []*color.Color{
		s.Title, s.Rule, s.Label, s.Value, s.Probing, s.Refining,
		s.Terminal, s.Pass, s.Miss, s.Warn, s.Highlight,
	}
}

// PassIcon returns a checkmark symbol with appropriate color
func PassIcon(noColor bool) string {
	if noColor {
		return "✓"
	}
	return color.New(color.FgGreen).Sprint("✓")
}

// MissIcon returns an X symbol with appropriate color
func MissIcon(noColor bool) string {
	if noColor {
		return "✗"
	}
	return color.New(color.FgRed).Sprint("✗")
}
