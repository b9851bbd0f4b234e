// Package monitoring holds the diagnostic logger and packet counters shared
// by the listener, forwarder and sender.
package monitoring

import "log"

// Logf is the diagnostic logger used by the internal packages. It defaults to
// log.Printf. Replace it with SetLogger.
var Logf func(format string, v ...any) = log.Printf

// SetLogger replaces Logf. A nil f mutes logging.
func SetLogger(f func(format string, v ...any)) {
	if f == nil {
		Logf = func(string, ...any) {}
		return
	}
	Logf = f
}
