// Package monitoring carries the harness's diagnostic logging hooks.
// Benchmark results go to stdout through the report package; anything
// here is operator chatter and can be muted wholesale in tests.
package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to
// log.Printf but may be replaced with SetLogger; tests usually mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// verbose gates Debugf. Off by default so per-request chatter never
// skews a timed run unless explicitly requested.
var verbose bool

// SetLogger replaces the package logger. Passing nil installs a no-op.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// SetVerbose toggles Debugf output.
func SetVerbose(v bool) { verbose = v }

// Debugf logs only when verbose mode is on.
func Debugf(format string, v ...interface{}) {
	if verbose {
		Logf(format, v...)
	}
}
