// Package lifecycle tracks whether the process is draining. The health
// endpoint reads the flag so load balancers stop routing new traffic
// before in-flight weather requests finish.
package lifecycle

import "sync/atomic"

var draining atomic.Bool

// SetShuttingDown marks the process as draining (or clears the mark).
// main sets it immediately after the shutdown signal, before the HTTP
// server begins its graceful drain.
func SetShuttingDown(v bool) {
	draining.Store(v)
}

// IsShuttingDown reports whether the process is draining.
func IsShuttingDown() bool {
	return draining.Load()
}
