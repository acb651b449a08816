// Package color adds ANSI styling to CLI output.
// It honors NO_COLOR (https://no-color.org/) and TERM=dumb.
package color

import (
	"os"
	"sync"
	"sync/atomic"
)

var state struct {
	once    sync.Once
	enabled atomic.Bool
}

// Init decides once whether output is styled.
func Init(noColorFlag bool) {
	state.once.Do(func() {
		_, noColor := os.LookupEnv("NO_COLOR")
		state.enabled.Store(!noColor && !noColorFlag && os.Getenv("TERM") != "dumb")
	})
}

// Enabled reports whether styling is applied.
func Enabled() bool {
	Init(false)
	return state.enabled.Load()
}

// Disable turns styling off.
func Disable() {
	Init(false)
	state.enabled.Store(false)
}

// Enable turns styling on.
func Enable() {
	Init(false)
	state.enabled.Store(true)
}

const (
	reset  = "\033[0m"
	bold   = "\033[1m"
	dim    = "\033[2m"
	red    = "\033[31m"
	green  = "\033[32m"
	yellow = "\033[33m"
	cyan   = "\033[36m"
)

func wrap(code, s string) string {
	if !Enabled() {
		return s
	}
	return code + s + reset
}

func Success(s string) string { return wrap(green, s) }
func Error(s string) string   { return wrap(red, s) }
func Warning(s string) string { return wrap(yellow, s) }
func Info(s string) string    { return wrap(cyan, s) }
func Header(s string) string  { return wrap(bold, s) }
func Dim(s string) string     { return wrap(dim, s) }

// ID styles a file or acquire id.
func ID(s string) string { return wrap(cyan, s) }

// Severity styles a doctor severity label by its level.
func Severity(level string) string {
	switch level {
	case "critical", "error":
		return Error(level)
	case "warning":
		return Warning(level)
	default:
		return Info(level)
	}
}
