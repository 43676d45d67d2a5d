package ui

import (
	"os"

	"golang.org/x/term"
)

// IsTTY reports whether the given file refers to a terminal.
func IsTTY(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// TermWidth returns the terminal width in columns, or 80 if it cannot be determined.
func TermWidth(f *os.File) int {
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return w
}
