// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Capture constants
const (
	// DefaultSampleCount is the number of diverse samples collected per capture cycle
	DefaultSampleCount = 5

	// DefaultDiversityFloor is the minimum cosine distance between consecutive
	// accepted samples. Frames closer than this to the previous sample are discarded.
	DefaultDiversityFloor = 0.05

	// DefaultMaxAttempts is the number of frames offered during one cycle before
	// the capture is declared stalled (0 disables the budget)
	DefaultMaxAttempts = 50
)

// Quality gate constants
const (
	// DefaultMinFaceSizeRatio is the minimum share of the frame (width or height)
	// the face bounding box must cover, inclusive
	DefaultMinFaceSizeRatio = 0.30
)

// Matching constants
const (
	// DefaultMatchThreshold is the maximum cosine distance accepted as a match.
	// Lower values = stricter matching
	DefaultMatchThreshold = 0.40

	// StrongMatchConfidence is the confidence above which a match is reported as strong
	StrongMatchConfidence = 70

	// PossibleMatchConfidence is the lowest confidence still reported as a possible match
	PossibleMatchConfidence = 50
)

// Polling constants
const (
	// DefaultTickInterval is the cadence at which the detection oracle is polled
	DefaultTickInterval = 200 * time.Millisecond

	// DefaultMaxOracleFailures is the number of consecutive oracle failures
	// after which the session gives up
	DefaultMaxOracleFailures = 5

	// DefaultOracleTimeout bounds a single detection call
	DefaultOracleTimeout = 10 * time.Second
)
