package matcher

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/kozaktomas/face-enroll/internal/credential"
	"github.com/kozaktomas/face-enroll/internal/database/mock"
	"github.com/kozaktomas/face-enroll/internal/vecmath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stored(emb vecmath.Embedding) *credential.Credential {
	return credential.New(emb, time.Now())
}

func TestDecide_Enrollment(t *testing.T) {
	e := NewEngine(0.40, PolicyAlways)
	d := e.Decide(vecmath.Embedding{1, 0}, nil)

	assert.Equal(t, KindEnrollment, d.Kind)
	assert.False(t, d.Match)
	assert.False(t, d.HasConfidence)
	assert.Equal(t, BandNone, d.Band)
}

func TestDecide_MatchAndNoMatch(t *testing.T) {
	e := NewEngine(0.40, PolicyAlways)

	d := e.Decide(vecmath.Embedding{1, 0.05}, stored(vecmath.Embedding{1, 0}))
	assert.Equal(t, KindMatch, d.Kind)
	assert.True(t, d.Match)
	assert.True(t, d.HasConfidence)
	assert.Greater(t, d.Confidence, 90)
	assert.Equal(t, BandStrong, d.Band)

	d = e.Decide(vecmath.Embedding{0, 1}, stored(vecmath.Embedding{1, 0}))
	assert.Equal(t, KindNoMatch, d.Kind)
	assert.False(t, d.Match)
	assert.Equal(t, 0, d.Confidence)
	assert.Equal(t, BandNewFace, d.Band)
}

func TestDecision_ZeroConfidenceIsEncoded(t *testing.T) {
	e := NewEngine(0.40, PolicyAlways)
	d := e.Decide(vecmath.Embedding{-1, 0}, stored(vecmath.Embedding{1, 0}))
	require.True(t, d.HasConfidence)
	require.Equal(t, 0, d.Confidence)

	data, err := json.Marshal(d)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.Equal(t, float64(0), fields["confidence"])
	assert.Equal(t, true, fields["has_confidence"])
	assert.InDelta(t, 2.0, fields["distance"], 1e-9)
}

func TestDecide_ThresholdIsExclusive(t *testing.T) {
	fresh := vecmath.Embedding{0.6, 0.8}
	ref := vecmath.Embedding{1, 0}
	dist, err := vecmath.Distance(fresh, ref)
	require.NoError(t, err)
	assert.InDelta(t, 0.4, dist, 1e-9)

	// A distance equal to the threshold is not a match.
	d := NewEngine(dist, PolicyAlways).Decide(fresh, stored(ref))
	assert.False(t, d.Match)
	assert.Equal(t, KindNoMatch, d.Kind)

	d = NewEngine(dist+1e-9, PolicyAlways).Decide(fresh, stored(ref))
	assert.True(t, d.Match)
}

func TestDecide_LengthMismatchIsNoMatch(t *testing.T) {
	e := NewEngine(0.40, PolicyAlways)
	d := e.Decide(vecmath.Embedding{1, 0, 0}, stored(vecmath.Embedding{1, 0}))

	assert.Equal(t, KindNoMatch, d.Kind)
	assert.False(t, d.Match)
	assert.True(t, errors.Is(d.Err, vecmath.ErrLengthMismatch))
}

func TestConfidence(t *testing.T) {
	tests := []struct {
		distance float64
		expected int
	}{
		{0, 100},
		{0.004, 100},
		{0.25, 75},
		{0.399, 60},
		{0.5, 50},
		{1, 0},
		{1.5, 0},
		{2, 0},
		{-0.01, 100},
	}

	for _, tt := range tests {
		if got := Confidence(tt.distance); got != tt.expected {
			t.Errorf("Confidence(%v) = %d, want %d", tt.distance, got, tt.expected)
		}
	}
}

func TestBandFor(t *testing.T) {
	tests := []struct {
		confidence int
		expected   Band
	}{
		{100, BandStrong},
		{71, BandStrong},
		{70, BandPossible},
		{50, BandPossible},
		{49, BandNewFace},
		{0, BandNewFace},
	}

	for _, tt := range tests {
		if got := BandFor(tt.confidence); got != tt.expected {
			t.Errorf("BandFor(%d) = %s, want %s", tt.confidence, got, tt.expected)
		}
	}
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy(" On-Match ")
	require.NoError(t, err)
	assert.Equal(t, PolicyOnMatch, p)

	_, err = ParsePolicy("sometimes")
	assert.Error(t, err)
}

func TestShouldPersist(t *testing.T) {
	enroll := Decision{Kind: KindEnrollment}
	match := Decision{Kind: KindMatch, Match: true}
	noMatch := Decision{Kind: KindNoMatch}

	tests := []struct {
		policy  Policy
		enroll  bool
		match   bool
		noMatch bool
	}{
		{PolicyAlways, true, true, true},
		{PolicyOnMatch, true, true, false},
		{PolicyEnrollOnly, true, false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			e := NewEngine(0.4, tt.policy)
			assert.Equal(t, tt.enroll, e.ShouldPersist(enroll))
			assert.Equal(t, tt.match, e.ShouldPersist(match))
			assert.Equal(t, tt.noMatch, e.ShouldPersist(noMatch))
		})
	}
}

func TestNewEngine_Defaults(t *testing.T) {
	e := NewEngine(0, "")
	assert.Equal(t, 0.40, e.Threshold())
	assert.Equal(t, PolicyAlways, e.Policy())
}

func TestVerify_AlwaysOverwritesAndFlagsMatch(t *testing.T) {
	ctx := context.Background()
	store := credential.NewStore(mock.NewMockKV())
	e := NewEngine(0.40, PolicyAlways)

	out, err := e.Verify(ctx, store, vecmath.Embedding{1, 0}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, KindEnrollment, out.Decision.Kind)
	assert.True(t, out.Persisted)
	registered, _ := store.Registered(ctx)
	assert.False(t, registered)

	out, err = e.Verify(ctx, store, vecmath.Embedding{1, 0.1}, time.Now())
	require.NoError(t, err)
	assert.True(t, out.Decision.Match)
	registered, _ = store.Registered(ctx)
	assert.True(t, registered)

	out, err = e.Verify(ctx, store, vecmath.Embedding{0, 1}, time.Now())
	require.NoError(t, err)
	assert.False(t, out.Decision.Match)
	assert.True(t, out.Persisted)
	cred, _ := store.Load(ctx)
	assert.Equal(t, vecmath.Embedding{0, 1}, cred.Embedding)
}

func TestVerify_OnMatchKeepsCredentialOnMismatch(t *testing.T) {
	ctx := context.Background()
	store := credential.NewStore(mock.NewMockKV())
	e := NewEngine(0.40, PolicyOnMatch)

	_, err := e.Verify(ctx, store, vecmath.Embedding{1, 0}, time.Now())
	require.NoError(t, err)

	out, err := e.Verify(ctx, store, vecmath.Embedding{0, 1}, time.Now())
	require.NoError(t, err)
	assert.False(t, out.Persisted)
	cred, _ := store.Load(ctx)
	assert.Equal(t, vecmath.Embedding{1, 0}, cred.Embedding)
}

func TestVerify_LoadErrorIsReturned(t *testing.T) {
	kv := mock.NewMockKV()
	kv.GetError = errors.New("unreachable")
	e := NewEngine(0.40, PolicyAlways)

	_, err := e.Verify(context.Background(), credential.NewStore(kv), vecmath.Embedding{1}, time.Now())
	assert.Error(t, err)
}
