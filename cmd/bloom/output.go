package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

const (
	ansiReset  = "\x1b[0m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const labelWidth = 18

func renderSectionHeader(title string, colorize bool) string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	if colorize {
		return ansiBlue + line + ansiReset
	}
	return line
}

// renderField prints "label: value", highlighting warnings.
func renderField(label, value string, warn, colorize bool) string {
	line := fmt.Sprintf("  %-*s %s", labelWidth, label+":", value)
	if colorize && warn {
		return ansiYellow + line + ansiReset
	}
	return line
}

func renderSwatch(hex string, colorize bool) string {
	if !colorize || len(hex) != 7 || hex[0] != '#' {
		return hex
	}
	var r, g, b uint8
	if _, err := fmt.Sscanf(hex[1:], "%02x%02x%02x", &r, &g, &b); err != nil {
		return hex
	}
	return fmt.Sprintf("\x1b[38;2;%d;%d;%dm●%s %s", r, g, b, ansiReset, hex)
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
