// Package monitoring holds the diagnostic logger shared by every pipeline stage.
package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests mute it to keep output readable.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Stagef logs a message prefixed with the pipeline stage that emitted it,
// e.g. "[join] 2 unmatched sites in perception".
func Stagef(stage, format string, v ...interface{}) {
	Logf("["+stage+"] "+format, v...)
}

// Warnf logs a non-fatal condition for a stage. Warnings never stop a run;
// they surface data provenance quirks such as unmatched site names.
func Warnf(stage, format string, v ...interface{}) {
	Logf("["+stage+"] WARNING: "+format, v...)
}
