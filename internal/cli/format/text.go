// Package format renders command output for terminals.
package format

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// OutputOptions controls text formatting behavior.
type OutputOptions struct {
	UseColor bool // Enable ANSI color codes
}

// NewOutputOptions returns output options for a stream based on flags and
// environment. Priority: jsonOutput > noColorFlag > NO_COLOR env > TTY detection.
func NewOutputOptions(f *os.File, jsonOutput bool, noColorFlag bool) OutputOptions {
	if jsonOutput || noColorFlag {
		return OutputOptions{UseColor: false}
	}
	if os.Getenv("NO_COLOR") != "" {
		return OutputOptions{UseColor: false}
	}
	return OutputOptions{
		UseColor: f != nil && term.IsTerminal(int(f.Fd())),
	}
}

// Summary writes the extracted report text followed by a newline.
func Summary(w io.Writer, text string) error {
	_, err := fmt.Fprintln(w, text)
	return err
}

// Error outputs "Error: <message>".
func Error(w io.Writer, msg string, opts OutputOptions) error {
	if opts.UseColor {
		color.New(color.FgRed).Fprint(w, "Error:")
		_, err := fmt.Fprintf(w, " %s\n", msg)
		return err
	}
	_, err := fmt.Fprintf(w, "Error: %s\n", msg)
	return err
}

// Warning outputs a non-fatal diagnostic, yellow on a terminal.
func Warning(w io.Writer, msg string, opts OutputOptions) error {
	if opts.UseColor {
		_, err := color.New(color.FgYellow).Fprintln(w, msg)
		return err
	}
	_, err := fmt.Fprintln(w, msg)
	return err
}
