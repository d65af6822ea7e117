package logsvc

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/AlriyanKhan/Ai-attendance/core"
	"github.com/AlriyanKhan/Ai-attendance/core/user"
)

// Component names the process part a log line comes from.
// It prefixes the local output and is attached to every Rollbar item.
type Component string

const (
	ComponentAPI       Component = "API"
	ComponentDB        Component = "DB"
	ComponentAdmin     Component = "ADMIN"
	ComponentAttendctl Component = "ATTENDCTL"
)

// RollbarLogger writes every entry to a local logger and reports it to Rollbar.
// Reporting is off in debug mode or without a token.
type RollbarLogger struct {
	component Component
	std       *log.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(component Component, out io.Writer, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetEnabled(!conf.Debug && conf.RollbarToken != "")

	return &RollbarLogger{
		component: component,
		std:       log.New(out, string(component)+" : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
	}
}

// prepare turns the arguments into a Rollbar item: msg, then the error if any, then the custom data.
// A user.Profile sets the person and is not sent as data. Maps are merged into the custom data.
func (l RollbarLogger) prepare(msg string, args []interface{}) []interface{} {
	var usrSet bool
	extras := map[string]interface{}{"component": string(l.component)}
	item := make([]interface{}, 0, len(args)+2)
	item = append(item, msg)
	for _, arg := range args {
		switch v := arg.(type) {
		case user.Profile:
			if !usrSet {
				rollbar.SetPerson(v.ID, v.Name, v.Email)
				usrSet = true
			}
		case map[string]interface{}:
			for k, val := range v {
				extras[k] = val
			}
		default:
			item = append(item, arg)
		}
	}
	if !usrSet {
		rollbar.ClearPerson()
	}
	return append(item, extras)
}

// print reports the caller of the logging method as the source line.
func (l RollbarLogger) print(msg string, args []interface{}) {
	_ = l.std.Output(3, msg)
	for _, arg := range args {
		_ = l.std.Output(3, fmt.Sprintf("%+v", arg))
	}
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	rollbar.Debug(l.prepare(msg, args)...)
	l.print(msg, args)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	rollbar.Info(l.prepare(msg, args)...)
	l.print(msg, args)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	rollbar.Warning(l.prepare(msg, args)...)
	l.print(msg, args)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	rollbar.Error(l.prepare(msg, args)...)
	l.print(msg, args)
}

// Fatal reports, waits for the pending Rollbar items and exits.
func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	rollbar.Critical(l.prepare(msg, args)...)
	l.print(msg, args)
	rollbar.Wait()
	os.Exit(1)
}
