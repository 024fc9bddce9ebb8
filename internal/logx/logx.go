// Package logx is a small leveled wrapper around the standard log package.
// The frame driver writes its diagnostics (FPS reports, the exit message)
// through one shared sink, which cmd/sircvm creates, without pulling in a structured
// logging library for what is still, underneath, direct printf-style output
// in the teacher's own style (vm/run.go prints straight to stdout/stderr).
package logx

import (
	"fmt"
	"io"
	"log"
	"os"
)

// Level orders the verbosity of a Logger from quietest to loudest.
type Level int

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

func (l Level) String() string {
	switch l {
	case LevelError:
		return "ERROR"
	case LevelWarn:
		return "WARN"
	case LevelInfo:
		return "INFO"
	case LevelDebug:
		return "DEBUG"
	default:
		return "?"
	}
}

// Logger writes leveled lines through a single stdlib *log.Logger, dropping
// anything above its configured Level rather than buffering or routing it
// elsewhere.
type Logger struct {
	level Level
	out   *log.Logger
}

// New returns a Logger writing to w, flags matching the teacher's own plain
// timestamp-free diagnostics (just the message, no log.Ldate/log.Ltime).
func New(w io.Writer, level Level) *Logger {
	return &Logger{level: level, out: log.New(w, "", 0)}
}

// Default returns a Logger at LevelInfo writing to stderr, the baseline
// every cmd/ binary starts from before flags can lower or raise it.
func Default() *Logger {
	return New(os.Stderr, LevelInfo)
}

// SetLevel adjusts the verbosity threshold after construction, for a
// --verbose/--quiet CLI flag to apply once arguments are parsed.
func (l *Logger) SetLevel(level Level) {
	l.level = level
}

func (l *Logger) log(level Level, format string, args ...any) {
	if level > l.level {
		return
	}
	l.out.Printf("[%s] %s", level, fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...any) { l.log(LevelError, format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.log(LevelWarn, format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.log(LevelInfo, format, args...) }
func (l *Logger) Debugf(format string, args ...any) { l.log(LevelDebug, format, args...) }
