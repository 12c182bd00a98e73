package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

const (
	ansiReset  = "\033[0m"
	ansiBold   = "\033[1m"
	ansiDim    = "\033[2m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
)

// termStyle colours CLI output when it goes to a terminal. Messages go to
// out, or stdout when out is nil.
type termStyle struct {
	useColors bool
	out       io.Writer
}

// newTermStyle enables colour only for a terminal stdout without NO_COLOR.
func newTermStyle() *termStyle {
	return &termStyle{
		useColors: term.IsTerminal(int(os.Stdout.Fd())) && os.Getenv("NO_COLOR") == "",
		out:       os.Stdout,
	}
}

func (t *termStyle) writer() io.Writer {
	if t.out == nil {
		return os.Stdout
	}
	return t.out
}

func (t *termStyle) paint(code, text string) string {
	if !t.useColors {
		return text
	}
	return code + text + ansiReset
}

func (t *termStyle) Dim(text string) string   { return t.paint(ansiDim, text) }
func (t *termStyle) Bold(text string) string  { return t.paint(ansiBold, text) }
func (t *termStyle) Cyan(text string) string  { return t.paint(ansiCyan, text) }
func (t *termStyle) Green(text string) string { return t.paint(ansiGreen, text) }
func (t *termStyle) Red(text string) string   { return t.paint(ansiRed, text) }

// Header prints a title between two rules.
func (t *termStyle) Header(title string) {
	rule := t.paint(ansiCyan, strings.Repeat("━", 72))
	fmt.Fprintf(t.writer(), "\n%s\n%s\n%s\n\n", rule, t.paint(ansiBold+ansiCyan, "  "+title), rule)
}

// Success reports a completed action.
func (t *termStyle) Success(msg string) {
	fmt.Fprintln(t.writer(), t.paint(ansiGreen, "✓ "+msg))
}

// Warn reports something the user may need to act on.
func (t *termStyle) Warn(msg string) {
	fmt.Fprintln(t.writer(), t.paint(ansiYellow, "⚠ "+msg))
}

// Info prints dimmed explanatory lines.
func (t *termStyle) Info(lines ...string) {
	for _, line := range lines {
		fmt.Fprintln(t.writer(), t.Dim(line))
	}
}
