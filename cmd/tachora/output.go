package main

import (
	"fmt"
	"io"
	"os"

	"github.com/tachora/tachora/internal/config"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorDim    = "\033[2m"
	colorBold   = "\033[1m"
)

// stderr receives status and diagnostics; stdout stays clean for config
// listings that may be piped.
var stderr io.Writer = os.Stderr

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func notify(color, mark, format string, args ...any) {
	fmt.Fprintln(stderr, colorize(color, mark+" "+fmt.Sprintf(format, args...)))
}

func printSuccess(format string, args ...any) { notify(colorGreen, "✓", format, args...) }
func printError(format string, args ...any)   { notify(colorRed, "✗", format, args...) }
func printWarning(format string, args ...any) { notify(colorYellow, "⚠", format, args...) }

// printStatus aligns labels so `tachora status` reads as a table.
func printStatus(label string, format string, args ...any) {
	padded := fmt.Sprintf("%-18s", label+":")
	fmt.Fprintf(stderr, "  %s %s\n", colorize(colorBold, padded), fmt.Sprintf(format, args...))
}

// printKey writes one `config show` line. Secrets show only whether they
// are set, followed by the env var that supplies them.
func printKey(w io.Writer, k config.KeyInfo) {
	value := k.Value
	if k.Secret {
		color := colorGreen
		if k.Value == config.SecretUnset {
			color = colorYellow
		}
		value = colorize(color, k.Value)
	}
	line := fmt.Sprintf("  %s = %s", colorize(colorBold, k.Key), value)
	if k.EnvVar != "" {
		line += "  " + colorize(colorDim, "$"+k.EnvVar)
	}
	fmt.Fprintln(w, line)
}
