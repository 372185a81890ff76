package utils

import (
	"io"
	"os"
	"strings"

	"github.com/op/go-logging"
)

var logFormat = logging.MustStringFormatter(
	`%{time:15:04:05.000} %{level:.4s} %{module} | %{message}`,
)

// SetupLogging configures the global leveled logging backend to write to out
// and returns a logger for the specified module. The level may be overridden
// using the SCOUT_LOG_LEVEL environment variable.
func SetupLogging(module string, level logging.Level, out io.Writer) *logging.Logger {
	// set default output
	if out == nil {
		out = os.Stderr
	}

	// check environment
	if env := os.Getenv("SCOUT_LOG_LEVEL"); env != "" {
		if l, err := logging.LogLevel(strings.ToUpper(env)); err == nil {
			level = l
		}
	}

	// prepare backend
	backend := logging.NewBackendFormatter(logging.NewLogBackend(out, "", 0), logFormat)
	leveled := logging.AddModuleLevel(backend)
	leveled.SetLevel(level, "")

	// set backend
	logging.SetBackend(leveled)

	return logging.MustGetLogger(module)
}
