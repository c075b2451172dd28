// Package capture collects a fixed number of sufficiently distinct face
// samples and reduces them to one aggregated embedding.
package capture

import (
	"errors"

	"github.com/kozaktomas/face-enroll/internal/constants"
	"github.com/kozaktomas/face-enroll/internal/facematch"
	"github.com/kozaktomas/face-enroll/internal/vecmath"
)

// State is the aggregator lifecycle state.
type State string

// State values. Complete is transient: the aggregator returns to Idle in the
// same step that produces the aggregated embedding.
const (
	StateIdle      State = "idle"
	StateCapturing State = "capturing"
	StateComplete  State = "complete"
	StateStalled   State = "stalled"
)

// RejectReason explains why an offered frame was not accepted.
type RejectReason string

// RejectReason values.
const (
	RejectNone           RejectReason = ""
	RejectNotCapturing   RejectReason = "not_capturing"
	RejectUnusable       RejectReason = "unusable"
	RejectTooSimilar     RejectReason = "too_similar"
	RejectLengthMismatch RejectReason = "length_mismatch"
)

// Config controls a capture cycle.
type Config struct {
	SampleCount    int     // samples required per cycle
	DiversityFloor float64 // minimum distance to the previous sample, exclusive
	MaxAttempts    int     // frames offered before stalling, 0 = unbounded
}

// DefaultConfig returns the reference capture policy.
func DefaultConfig() Config {
	return Config{
		SampleCount:    constants.DefaultSampleCount,
		DiversityFloor: constants.DefaultDiversityFloor,
		MaxAttempts:    constants.DefaultMaxAttempts,
	}
}

// Validate checks the config for values that would make a cycle impossible.
func (c Config) Validate() error {
	if c.SampleCount <= 0 {
		return errors.New("sample count must be positive")
	}
	if c.DiversityFloor < 0 || c.DiversityFloor >= 2 {
		return errors.New("diversity floor must be in [0, 2)")
	}
	if c.MaxAttempts < 0 {
		return errors.New("max attempts must not be negative")
	}
	return nil
}

// Step is the outcome of offering one frame.
type Step struct {
	State      State             `json:"state"`
	Accepted   bool              `json:"accepted"`
	Reason     RejectReason      `json:"reason,omitempty"`
	Samples    int               `json:"samples"`
	Progress   int               `json:"progress"`
	Completed  bool              `json:"completed"`
	Stalled    bool              `json:"stalled"`
	Aggregated vecmath.Embedding `json:"-"`
}

// Aggregator is the capture state machine. It is not safe for concurrent use;
// the owning session serializes access.
type Aggregator struct {
	cfg      Config
	state    State
	samples  []vecmath.Embedding
	attempts int
}

// NewAggregator creates an idle aggregator.
func NewAggregator(cfg Config) *Aggregator {
	return &Aggregator{cfg: cfg, state: StateIdle}
}

// Config returns the capture policy.
func (a *Aggregator) Config() Config {
	return a.cfg
}

// State returns the current state.
func (a *Aggregator) State() State {
	return a.state
}

// Samples returns the number of accepted samples in the current cycle.
func (a *Aggregator) Samples() int {
	return len(a.samples)
}

// Attempts returns the number of frames offered in the current cycle.
func (a *Aggregator) Attempts() int {
	return a.attempts
}

// Progress returns accepted/N as a percentage.
func (a *Aggregator) Progress() int {
	if a.cfg.SampleCount <= 0 {
		return 0
	}
	return len(a.samples) * 100 / a.cfg.SampleCount
}

// Start begins a new cycle, discarding anything collected before.
func (a *Aggregator) Start() {
	a.reset()
	a.state = StateCapturing
}

// Abort returns to Idle from any state. Partial samples are discarded.
func (a *Aggregator) Abort() {
	a.reset()
}

func (a *Aggregator) reset() {
	a.state = StateIdle
	a.samples = nil
	a.attempts = 0
}

// Offer hands one gated detection to the aggregator.
func (a *Aggregator) Offer(det *facematch.FrameDetection, gate facematch.GateResult) Step {
	if a.state != StateCapturing {
		return a.step(false, RejectNotCapturing)
	}
	a.attempts++

	if !gate.Usable() || !det.HasFace() {
		return a.afterReject(RejectUnusable)
	}

	emb := det.Face.Embedding
	if len(a.samples) > 0 {
		last := a.samples[len(a.samples)-1]
		dist, err := vecmath.Distance(emb, last)
		if err != nil {
			return a.afterReject(RejectLengthMismatch)
		}
		if dist <= a.cfg.DiversityFloor {
			return a.afterReject(RejectTooSimilar)
		}
	}

	a.samples = append(a.samples, emb.Clone())
	if len(a.samples) < a.cfg.SampleCount {
		return a.afterAccept()
	}

	a.state = StateComplete
	mean, err := vecmath.Mean(a.samples)
	if err != nil {
		// Unreachable: every accepted sample passed the length check above.
		a.reset()
		return a.step(false, RejectLengthMismatch)
	}
	step := Step{
		State:      StateComplete,
		Accepted:   true,
		Samples:    len(a.samples),
		Progress:   100,
		Completed:  true,
		Aggregated: mean,
	}
	a.reset()
	return step
}

func (a *Aggregator) afterAccept() Step {
	if a.budgetExhausted() {
		return a.stall()
	}
	return a.step(true, RejectNone)
}

func (a *Aggregator) afterReject(reason RejectReason) Step {
	if a.budgetExhausted() {
		return a.stall()
	}
	return a.step(false, reason)
}

func (a *Aggregator) budgetExhausted() bool {
	return a.cfg.MaxAttempts > 0 && a.attempts >= a.cfg.MaxAttempts
}

func (a *Aggregator) stall() Step {
	a.reset()
	a.state = StateStalled
	return Step{State: StateStalled, Stalled: true}
}

func (a *Aggregator) step(accepted bool, reason RejectReason) Step {
	return Step{
		State:    a.state,
		Accepted: accepted,
		Reason:   reason,
		Samples:  len(a.samples),
		Progress: a.Progress(),
	}
}
