package printer

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
)

func init() {
	// Force color output even when not connected to TTY
	// Users can disable with NO_COLOR environment variable
	if os.Getenv("NO_COLOR") == "" {
		color.NoColor = false
	}
}

var (
	// Out and Err are where messages go. Tests swap them for buffers.
	Out io.Writer = os.Stdout
	Err io.Writer = os.Stderr

	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
	faint  = color.New(color.Faint)
)

// Success prints a success message in green with a checkmark prefix
func Success(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	if !strings.HasPrefix(msg, "✓") {
		msg = "✓ " + msg
	}
	green.Fprint(Out, msg)
}

// Info prints an informational message in the default color
func Info(format string, a ...any) {
	fmt.Fprintf(Out, format, a...)
}

// Warning prints a warning message in yellow to stderr
func Warning(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	if !strings.HasPrefix(msg, "⚠️") {
		msg = "⚠️  " + msg
	}
	yellow.Fprint(Err, msg)
}

// Step prints a step message with emphasis (used in multi-step operations)
func Step(format string, a ...any) {
	cyan.Fprintf(Out, "→ %s", fmt.Sprintf(format, a...))
}

// State colours a query or record state word for terminal output:
// pending in yellow, dismissed in green, expired faint.
func State(s string) string {
	switch s {
	case "pending":
		return yellow.Sprint(s)
	case "dismissed":
		return green.Sprint(s)
	case "expired":
		return faint.Sprint(s)
	}
	return s
}

// Error prints a formatted error with title, explanation and suggestions to
// Err and returns a simple error carrying the title for Cobra
func Error(title string, explanation string, suggestions []string) error {
	return ErrorWithContext(title, explanation, nil, suggestions)
}

// ErrorWithContext is Error with key/value context lines, printed in key
// order
func ErrorWithContext(title string, explanation string, context map[string]string, suggestions []string) error {
	red.Fprintf(Err, "%s\n\n", title)

	if explanation != "" {
		fmt.Fprintf(Err, "%s\n", explanation)
	}

	if len(context) > 0 {
		keys := make([]string, 0, len(context))
		for k := range context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		fmt.Fprintf(Err, "\n")
		for _, k := range keys {
			fmt.Fprintf(Err, "  %s: %s\n", k, context[k])
		}
	}

	if len(suggestions) > 0 {
		fmt.Fprintf(Err, "\n")
		if len(suggestions) == 1 {
			fmt.Fprintf(Err, "%s\n", suggestions[0])
		} else {
			fmt.Fprintf(Err, "Either:\n")
			for i, suggestion := range suggestions {
				fmt.Fprintf(Err, "  %d. %s\n", i+1, suggestion)
			}
		}
	}

	// Returned error is not printed again: the root command silences errors
	return fmt.Errorf("%s", title)
}
