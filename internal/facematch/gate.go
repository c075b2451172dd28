package facematch

import "github.com/kozaktomas/face-enroll/internal/constants"

// GateResult is the per-frame quality verdict.
type GateResult struct {
	Detected    bool    `json:"detected"`
	LargeEnough bool    `json:"large_enough"`
	SizeRatio   float64 `json:"size_ratio"`
}

// Usable reports whether the frame may be offered to the capture aggregator.
func (g GateResult) Usable() bool {
	return g.Detected && g.LargeEnough
}

// Evaluate decides whether a detection is usable for capture.
// The threshold is inclusive: a face covering exactly minSizeRatio of the
// frame is large enough. The gate has no memory and must run on every poll.
func Evaluate(det *FrameDetection, minSizeRatio float64) GateResult {
	if !det.HasFace() {
		return GateResult{}
	}
	ratio := det.Face.Box.SizeRatio(det.FrameWidth, det.FrameHeight)
	return GateResult{
		Detected:    true,
		LargeEnough: ratio > 0 && ratio >= minSizeRatio,
		SizeRatio:   ratio,
	}
}

// DefaultMinSizeRatio is the inclusive share of the frame a face must fill.
const DefaultMinSizeRatio = constants.DefaultMinFaceSizeRatio
