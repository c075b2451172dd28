// Package constants provides shared constants used across the codebase.
package constants

import "time"

// Event channel constants
const (
	// EventChannelBuffer is the buffer size for event channels
	EventChannelBuffer = 100
)

// Upload constants
const (
	// MaxFrameSize is the maximum accepted size of a single uploaded frame
	MaxFrameSize = 10 << 20
)

// Session constants
const (
	// SessionIdleTimeout is how long a web capture session may stay untouched
	// before the manager drops it
	SessionIdleTimeout = 10 * time.Minute

	// SessionSweepInterval is how often idle sessions are swept
	SessionSweepInterval = time.Minute
)
