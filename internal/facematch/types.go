package facematch

import "github.com/kozaktomas/face-enroll/internal/vecmath"

// BoundingBox is a face rectangle in frame pixel coordinates.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Face is a single face found by the detection oracle.
type Face struct {
	Embedding vecmath.Embedding `json:"embedding"`
	Box       BoundingBox       `json:"box"`
	Score     float64           `json:"score"`
}

// FrameDetection holds zero-or-one face for one polled frame, plus the frame
// dimensions used for relative sizing.
type FrameDetection struct {
	Face        *Face `json:"face,omitempty"`
	FrameWidth  int   `json:"frame_width"`
	FrameHeight int   `json:"frame_height"`
}

// HasFace reports whether a face was detected in the frame.
func (d *FrameDetection) HasFace() bool {
	return d != nil && d.Face != nil
}
