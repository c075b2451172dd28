// Package matcher compares an aggregated embedding with the stored
// credential and decides enrollment, match or no match.
package matcher

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/kozaktomas/face-enroll/internal/constants"
	"github.com/kozaktomas/face-enroll/internal/credential"
	"github.com/kozaktomas/face-enroll/internal/vecmath"
)

// Kind is the outcome of a decision.
type Kind string

const (
	KindEnrollment Kind = "enrollment"
	KindMatch      Kind = "match"
	KindNoMatch    Kind = "no_match"
)

// Band is the display bucket for a confidence value.
type Band string

const (
	BandNone     Band = ""
	BandStrong   Band = "strong_match"
	BandPossible Band = "possible_match"
	BandNewFace  Band = "new_face"
)

// BandFor buckets a confidence percentage: above 70 strong, 50 to 70 possible, below 50 new face.
func BandFor(confidence int) Band {
	switch {
	case confidence > constants.StrongMatchConfidence:
		return BandStrong
	case confidence >= constants.PossibleMatchConfidence:
		return BandPossible
	default:
		return BandNewFace
	}
}

// Decision is the transient result of one verification attempt.
type Decision struct {
	Kind          Kind    `json:"kind"`
	Match         bool    `json:"match"`
	Confidence    int     `json:"confidence"`
	HasConfidence bool    `json:"has_confidence"`
	Distance      float64 `json:"distance"`
	Band          Band    `json:"band,omitempty"`
	Err           error   `json:"-"`
}

// Confidence converts a distance to 100 - round(distance*100), clamped to [0, 100].
func Confidence(distance float64) int {
	c := 100 - int(math.Round(distance*100))
	return max(0, min(100, c))
}

// Engine makes decisions against a fixed threshold and overwrite policy.
type Engine struct {
	threshold float64
	policy    Policy
}

// NewEngine creates an engine. A non-positive threshold falls back to the default.
func NewEngine(threshold float64, policy Policy) *Engine {
	if threshold <= 0 {
		threshold = constants.DefaultMatchThreshold
	}
	if policy == "" {
		policy = PolicyAlways
	}
	return &Engine{threshold: threshold, policy: policy}
}

// Threshold returns the match threshold.
func (e *Engine) Threshold() float64 {
	return e.threshold
}

// Policy returns the overwrite policy.
func (e *Engine) Policy() Policy {
	return e.policy
}

// Decide compares fresh with stored. A nil stored credential means enrollment.
func (e *Engine) Decide(fresh vecmath.Embedding, stored *credential.Credential) Decision {
	if stored == nil || len(stored.Embedding) == 0 {
		return Decision{Kind: KindEnrollment}
	}

	dist, err := vecmath.Distance(fresh, stored.Embedding)
	if err != nil {
		return Decision{Kind: KindNoMatch, Err: fmt.Errorf("compare with stored credential: %w", err)}
	}

	conf := Confidence(dist)
	d := Decision{
		Kind:          KindNoMatch,
		Confidence:    conf,
		HasConfidence: true,
		Distance:      dist,
		Band:          BandFor(conf),
	}
	if dist < e.threshold {
		d.Kind = KindMatch
		d.Match = true
	}
	return d
}

// ShouldPersist reports whether the fresh embedding replaces the stored one.
func (e *Engine) ShouldPersist(d Decision) bool {
	return e.policy.allows(d)
}

// Outcome is a decision together with what was written.
type Outcome struct {
	Decision  Decision `json:"decision"`
	Persisted bool     `json:"persisted"`
}

// Verify loads the stored credential, decides, and applies the overwrite
// policy and the registration flag.
func (e *Engine) Verify(ctx context.Context, store *credential.Store, fresh vecmath.Embedding, now time.Time) (Outcome, error) {
	stored, err := store.Load(ctx)
	if err != nil {
		return Outcome{}, err
	}

	out := Outcome{Decision: e.Decide(fresh, stored)}
	if e.ShouldPersist(out.Decision) {
		if err := store.Save(ctx, credential.New(fresh, now)); err != nil {
			return out, err
		}
		out.Persisted = true
	}
	if out.Decision.Match {
		if err := store.SetRegistered(ctx, true); err != nil {
			return out, err
		}
	}
	return out, nil
}
