// Package logging configures loggo output for the command line.
package logging

import (
	"fmt"
	"io"

	"github.com/juju/loggo"
)

// Level picks the root log level from the global flags.
func Level(debug, quiet bool) loggo.Level {
	switch {
	case debug:
		return loggo.DEBUG
	case quiet:
		return loggo.ERROR
	default:
		return loggo.WARNING
	}
}

// Setup replaces the default loggo writer with a plain one on w.
func Setup(w io.Writer, level loggo.Level) error {
	writer := loggo.NewSimpleWriter(w, formatEntry)
	if _, err := loggo.ReplaceDefaultWriter(writer); err != nil {
		return err
	}
	return loggo.ConfigureLoggers(fmt.Sprintf("<root>=%s", level.String()))
}

func formatEntry(entry loggo.Entry) string {
	return fmt.Sprintf("%s: %s", entry.Level.String(), entry.Message)
}
