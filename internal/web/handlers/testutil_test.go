package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-enroll/internal/credential"
	"github.com/kozaktomas/face-enroll/internal/database"
	"github.com/kozaktomas/face-enroll/internal/facematch"
	"github.com/kozaktomas/face-enroll/internal/oracle"
	"github.com/kozaktomas/face-enroll/internal/session"
	"github.com/kozaktomas/face-enroll/internal/vecmath"
)

const testDim = 8

// poseEmbedding is the test identity turned slightly towards axis seq.
// Consecutive poses are 0.25 apart in cosine distance.
func poseEmbedding(seq int) vecmath.Embedding {
	e := make(vecmath.Embedding, testDim)
	for i := range e {
		e[i] = 1
	}
	e[seq%testDim] += 2
	return e
}

// poseDetector returns a well-framed face whose pose follows the frame sequence number.
func poseDetector() oracle.Detector {
	return oracle.DetectorFunc(func(_ context.Context, frame oracle.Frame) (*facematch.FrameDetection, error) {
		return &facematch.FrameDetection{
			Face: &facematch.Face{
				Embedding: poseEmbedding(frame.Seq),
				Box:       facematch.BoundingBox{X: 100, Y: 100, Width: 400, Height: 400},
				Score:     0.98,
			},
			FrameWidth:  1000,
			FrameHeight: 1000,
		}, nil
	})
}

// newTestManager creates a manager over an in-memory credential store.
func newTestManager(t *testing.T, det oracle.Detector) *session.Manager {
	t.Helper()
	store := credential.NewStore(database.NewMemoryKV())
	m := session.NewManager(det, store, session.DefaultConfig(), nil)
	t.Cleanup(m.CloseAll)
	return m
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}
