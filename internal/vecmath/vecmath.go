// Package vecmath provides normalization and similarity scoring over
// fixed-length face embeddings.
package vecmath

import (
	"errors"
	"fmt"

	"github.com/viterin/vek"
)

// ErrLengthMismatch is returned when two embeddings of different length are compared.
var ErrLengthMismatch = errors.New("embedding length mismatch")

// ErrEmpty is returned when an operation needs at least one embedding.
var ErrEmpty = errors.New("no embeddings")

// Embedding is an ordered fixed-length face descriptor produced by the detection oracle.
type Embedding []float64

// Clone returns a copy that does not share memory with e.
func (e Embedding) Clone() Embedding {
	if e == nil {
		return nil
	}
	out := make(Embedding, len(e))
	copy(out, e)
	return out
}

// Normalize returns v scaled to unit Euclidean length.
// A zero-magnitude vector is returned unchanged.
func Normalize(v Embedding) Embedding {
	if len(v) == 0 {
		return v
	}
	norm := vek.Norm(v)
	if norm == 0 {
		return v
	}
	return vek.DivNumber(v, norm)
}

// Similarity returns the dot product of a and b.
// Both inputs are expected to be normalized already, in which case the
// result is the cosine similarity in [-1, 1].
func Similarity(a, b Embedding) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", ErrLengthMismatch, len(a), len(b))
	}
	if len(a) == 0 {
		return 0, nil
	}
	return vek.Dot(a, b), nil
}

// Distance computes the cosine distance between two embeddings.
// Returns a value between 0 (same direction) and 2 (opposite).
func Distance(a, b Embedding) (float64, error) {
	sim, err := Similarity(Normalize(a), Normalize(b))
	if err != nil {
		return 0, err
	}
	// Clamp to [-1, 1] to handle floating point errors
	if sim > 1 {
		sim = 1
	}
	if sim < -1 {
		sim = -1
	}
	return 1 - sim, nil
}

// Mean returns the element-wise arithmetic mean of samples.
// The result is a fresh slice; inputs are not modified.
func Mean(samples []Embedding) (Embedding, error) {
	if len(samples) == 0 {
		return nil, ErrEmpty
	}
	dim := len(samples[0])
	sum := vek.Zeros(dim)
	for i, s := range samples {
		if len(s) != dim {
			return nil, fmt.Errorf("sample %d: %w: %d != %d", i, ErrLengthMismatch, len(s), dim)
		}
		vek.Add_Inplace(sum, s)
	}
	vek.DivNumber_Inplace(sum, float64(len(samples)))
	return sum, nil
}
