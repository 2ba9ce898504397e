// Package logging provides the lightweight, nil-safe logger used internally
// by the rsync engine to report trace-level diagnostics about signature
// construction and match search. It is adapted from mutagen's pkg/logging,
// trimmed to the needs of a library with no daemon or CLI surface: callers
// construct a root logger, pass it to rsync.NewIndex (or Index.SetLogger),
// and sub-loggers are derived per component.
package logging

import (
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"os"

	"github.com/fatih/color"
)

// Logger is the main logger type. It has the novel property that it still
// functions if nil, but it doesn't log anything, so call sites never need a
// nil check before logging. It wraps the standard library's log.Logger so
// that it respects whatever output and flags the caller configures.
type Logger struct {
	// output is the underlying standard library logger.
	output *log.Logger
	// level is the maximum level that will be emitted.
	level Level
	// prefix is any prefix specified for the logger.
	prefix string
}

// NewLogger creates a new root logger writing to w at the specified level. If
// w is nil, os.Stderr is used.
func NewLogger(w io.Writer, level Level) *Logger {
	if w == nil {
		w = os.Stderr
	}
	return &Logger{
		output: log.New(w, "", log.LstdFlags),
		level:  level,
	}
}

// Sublogger creates a new sublogger with the specified name. It shares the
// parent's output and level.
func (l *Logger) Sublogger(name string) *Logger {
	// If the logger is nil, then the sublogger will be as well.
	if l == nil {
		return nil
	}

	// Compute the new prefix.
	prefix := name
	if l.prefix != "" {
		prefix = l.prefix + "." + name
	}

	return &Logger{
		output: l.output,
		level:  l.level,
		prefix: prefix,
	}
}

// line formats a log line with the logger's prefix, if any.
func (l *Logger) line(s string) string {
	if l.prefix != "" {
		return fmt.Sprintf("[%s] %s", l.prefix, s)
	}
	return s
}

// Tracef logs low-level engine diagnostics (individual matches, match
// extensions, coalesced copies, per-chunk scan results) if the logger's
// level is at least LevelTrace. It is a no-op (including argument
// formatting) otherwise.
func (l *Logger) Tracef(format string, v ...interface{}) {
	if l == nil || l.level < LevelTrace {
		return
	}
	l.output.Output(2, l.line(fmt.Sprintf(format, v...)))
}

// Debugf logs information with semantics equivalent to fmt.Printf, but only
// if the logger's level is at least LevelDebug.
func (l *Logger) Debugf(format string, v ...interface{}) {
	if l == nil || l.level < LevelDebug {
		return
	}
	l.output.Output(2, l.line(fmt.Sprintf(format, v...)))
}

// Warnf logs a warning, colorized like mutagen's Logger.Warn, if the logger's
// level is at least LevelWarn.
func (l *Logger) Warnf(format string, v ...interface{}) {
	if l == nil || l.level < LevelWarn {
		return
	}
	l.output.Output(2, l.line(color.YellowString("warning: "+format, v...)))
}

// Errorf logs an error, colorized like mutagen's Logger.Error, if the
// logger's level is at least LevelError.
func (l *Logger) Errorf(format string, v ...interface{}) {
	if l == nil || l.level < LevelError {
		return
	}
	l.output.Output(2, l.line(color.RedString("error: "+format, v...)))
}

// Discard is a convenience root logger that drops all output, handy for
// call sites that want to pass a non-nil logger without incurring the nil
// checks callers might otherwise add defensively around a nil *Logger.
var Discard = NewLogger(ioutil.Discard, LevelDisabled)
