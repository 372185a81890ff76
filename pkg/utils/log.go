// Package utils provides output and logging helpers.
package utils

import (
	"fmt"
	"io"
)

// Log will write the provided message to out if available.
func Log(out io.Writer, msg string) {
	if out != nil {
		_, _ = fmt.Fprintf(out, "==> %s\n", msg)
	}
}

// Logf will format and write the provided message to out if available.
func Logf(out io.Writer, format string, args ...any) {
	Log(out, fmt.Sprintf(format, args...))
}
