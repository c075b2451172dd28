// Package oracle wraps the face detection and embedding backend and the
// sources that feed it camera frames.
package oracle

import (
	"context"
	"errors"

	"github.com/kozaktomas/face-enroll/internal/facematch"
)

// ErrUnavailable marks a systemic detection failure such as a missing model
// or denied camera access. Retrying the same call will not help.
var ErrUnavailable = errors.New("detection oracle unavailable")

// Frame is one encoded camera image. Width and Height may be zero, in which
// case the detector reads them from the image header.
type Frame struct {
	Data   []byte
	Width  int
	Height int
	Seq    int
}

// Detector finds at most one face in a frame.
// A frame without a face returns a detection whose Face is nil, not an error.
type Detector interface {
	Detect(ctx context.Context, frame Frame) (*facematch.FrameDetection, error)
}

// DetectorFunc adapts a function to the Detector interface.
type DetectorFunc func(ctx context.Context, frame Frame) (*facematch.FrameDetection, error)

func (f DetectorFunc) Detect(ctx context.Context, frame Frame) (*facematch.FrameDetection, error) {
	return f(ctx, frame)
}
