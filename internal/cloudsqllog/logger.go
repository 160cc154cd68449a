// Package cloudsqllog provides the small leveled logger the refresh
// engine uses to report scheduled refreshes and failures, adapted from
// the collector's own util.Logger.
package cloudsqllog

import (
	"fmt"
	"log"
)

// Logger writes prefixed, leveled lines to an underlying *log.Logger. A
// nil *Logger is valid and discards everything, so callers that don't
// care about refresh logging can pass one through without a nil check.
type Logger struct {
	Verbose     bool
	Destination *log.Logger
	prefix      string
}

// WithPrefix returns a copy of the logger that tags every line with
// prefix, e.g. the instance connection name.
func (l *Logger) WithPrefix(prefix string) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{Verbose: l.Verbose, Destination: l.Destination, prefix: prefix}
}

func (l *Logger) print(level, format string, args ...interface{}) {
	if l == nil || l.Destination == nil {
		return
	}
	if l.prefix != "" {
		format = fmt.Sprintf("[%s] %s", l.prefix, format)
	}
	l.Destination.Printf("%s %s", level, fmt.Sprintf(format, args...))
}

// PrintVerbose logs a line only when Verbose is enabled.
func (l *Logger) PrintVerbose(format string, args ...interface{}) {
	if l == nil || !l.Verbose {
		return
	}
	l.print("V", format, args...)
}

// PrintInfo logs an informational line.
func (l *Logger) PrintInfo(format string, args ...interface{}) {
	l.print("I", format, args...)
}

// PrintWarning logs a warning line.
func (l *Logger) PrintWarning(format string, args ...interface{}) {
	l.print("W", format, args...)
}

// PrintError logs an error line.
func (l *Logger) PrintError(format string, args ...interface{}) {
	l.print("E", format, args...)
}
