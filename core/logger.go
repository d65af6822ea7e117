package core

import (
	"io"
	"log"
)

// Logger is implemented by every logging backend of the app.
// Args may carry an error, a map[string]interface{} of extras and the acting user's profile.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

type stdLogger struct {
	std *log.Logger
}

var _ Logger = (*stdLogger)(nil)

// NewStdLogger returns a Logger printing to `w` only. Used by the CLIs and tests.
func NewStdLogger(w io.Writer, prefix string) Logger {
	return &stdLogger{std: log.New(w, prefix, log.LstdFlags)}
}

// NewNopLogger discards everything.
func NewNopLogger() Logger {
	return NewStdLogger(io.Discard, "")
}

func (l stdLogger) print(level, msg string, args []interface{}) {
	l.std.Printf("[%s] %s", level, msg)
	for _, arg := range args {
		l.std.Printf("%+v\n", arg)
	}
}

func (l stdLogger) Debug(msg string, args ...interface{}) { l.print("DEBUG", msg, args) }
func (l stdLogger) Info(msg string, args ...interface{})  { l.print("INFO", msg, args) }
func (l stdLogger) Warn(msg string, args ...interface{})  { l.print("WARN", msg, args) }
func (l stdLogger) Error(msg string, args ...interface{}) { l.print("ERROR", msg, args) }

func (l stdLogger) Fatal(msg string, args ...interface{}) {
	l.print("FATAL", msg, args)
	l.std.Fatal(msg)
}
