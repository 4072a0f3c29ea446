package util

import (
	"os"

	"golang.org/x/term"
)

// IsTerminal checks if the given file descriptor is a terminal
func IsTerminal(fd uintptr) bool {
	return term.IsTerminal(int(fd))
}

// StdoutIsTerminal reports whether output goes to an interactive terminal.
// Progress bars and wide tables are only drawn when it does.
func StdoutIsTerminal() bool {
	return IsTerminal(os.Stdout.Fd())
}

// TerminalWidth returns the width of stdout, or 0 when it is not a terminal
func TerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 0
	}
	return width
}
