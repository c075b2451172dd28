package facematch

import "fmt"

// GuidanceKind identifies which user-facing hint is active.
type GuidanceKind string

// GuidanceKind values, listed from highest to lowest priority.
const (
	GuidanceUnavailable GuidanceKind = "unavailable"
	GuidanceStalled     GuidanceKind = "stalled"
	GuidanceNoFace      GuidanceKind = "no_face"
	GuidanceTooFar      GuidanceKind = "too_far"
	GuidanceReady       GuidanceKind = "ready"
	GuidanceCapturing   GuidanceKind = "capturing"
	GuidanceNone        GuidanceKind = "none"
)

// Guidance is the single message shown to the user.
type Guidance struct {
	Kind    GuidanceKind `json:"kind"`
	Message string       `json:"message,omitempty"`
}

// CaptureStatus is the slice of capture state the guidance depends on.
type CaptureStatus struct {
	Capturing bool
	Accepted  int
	Target    int
	Stalled   bool
	Failed    bool
}

// SelectGuidance picks exactly one message in strict priority order.
// A nil gate means no frame has been polled yet.
func SelectGuidance(gate *GateResult, status CaptureStatus) Guidance {
	switch {
	case status.Failed:
		return Guidance{Kind: GuidanceUnavailable, Message: "Camera unavailable. Check permissions and try again."}
	case status.Stalled:
		return Guidance{Kind: GuidanceStalled, Message: "Capture stalled. Move your head slightly and retry."}
	case gate == nil:
		return Guidance{Kind: GuidanceNone}
	case !gate.Detected:
		return Guidance{Kind: GuidanceNoFace, Message: "No face detected. Center your face in the circle."}
	case !gate.LargeEnough:
		return Guidance{Kind: GuidanceTooFar, Message: "Face too small. Move closer to the camera."}
	case !status.Capturing:
		return Guidance{Kind: GuidanceReady, Message: "Ready to capture."}
	default:
		return Guidance{
			Kind:    GuidanceCapturing,
			Message: fmt.Sprintf("Capturing (%d/%d). Hold still and turn slightly.", status.Accepted, status.Target),
		}
	}
}
