package output

import (
	"io"
	"os"
	"runtime"

	"github.com/mattn/go-isatty"
)

// isTerminal checks if the writer is a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// supportsColors checks if the terminal supports colors.
func supportsColors() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("FORCE_COLOR") != "" {
		return true
	}

	// Modern Windows terminals support ANSI colors
	if runtime.GOOS == "windows" {
		return true
	}

	term := os.Getenv("TERM")
	return term != "" && term != "dumb"
}

// titleSequence returns the escape sequence setting the terminal window title.
func titleSequence(title string) string {
	return "\033]0;" + title + "\007"
}
