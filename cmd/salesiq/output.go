package main

import (
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorGreen, "✓ "+msg))
}

func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorRed, "✗ "+msg))
}

func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorYellow, "⚠ "+msg))
}

func printStatus(label string, format string, args ...any) {
	val := fmt.Sprintf(format, args...)
	l := colorize(colorBold, label+":")
	fmt.Fprintf(os.Stderr, "  %s %s\n", l, val)
}

// printNarrative writes a markdown narrative for a terminal. Headings are
// bolded; with hideBlocks the fenced chart and table JSON is left out.
func printNarrative(w io.Writer, narrative string, hideBlocks bool) {
	inBlock := false
	for _, line := range strings.Split(strings.TrimRight(narrative, "\n"), "\n") {
		switch {
		case strings.HasPrefix(line, "```"):
			inBlock = !inBlock
			if hideBlocks {
				continue
			}
			fmt.Fprintln(w, colorize(colorCyan, line))
		case inBlock:
			if !hideBlocks {
				fmt.Fprintln(w, line)
			}
		case strings.HasPrefix(line, "#"):
			fmt.Fprintln(w, colorize(colorBold, strings.TrimSpace(strings.TrimLeft(line, "#"))))
		default:
			fmt.Fprintln(w, line)
		}
	}
}
