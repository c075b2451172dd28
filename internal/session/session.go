// Package session drives one capture cycle: it polls the detection oracle on
// a tick, gates and aggregates samples, and hands the result to the matcher.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/kozaktomas/face-enroll/internal/capture"
	"github.com/kozaktomas/face-enroll/internal/config"
	"github.com/kozaktomas/face-enroll/internal/constants"
	"github.com/kozaktomas/face-enroll/internal/credential"
	"github.com/kozaktomas/face-enroll/internal/facematch"
	"github.com/kozaktomas/face-enroll/internal/matcher"
	"github.com/kozaktomas/face-enroll/internal/metrics"
	"github.com/kozaktomas/face-enroll/internal/oracle"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// ErrTickInProgress is returned when a tick arrives while the previous poll is still running.
	ErrTickInProgress = errors.New("previous tick still in progress")
	// ErrNotCapturing is returned when a tick arrives outside a capture cycle.
	ErrNotCapturing = errors.New("session is not capturing")
	// ErrSessionClosed is returned by any operation on a closed session.
	ErrSessionClosed = errors.New("session closed")
	// ErrStalled is returned by Run when the attempt budget ran out.
	ErrStalled = errors.New("capture stalled")
	// ErrAborted is returned by Run when the cycle was aborted.
	ErrAborted = errors.New("capture aborted")
	// ErrSourceExhausted is returned by Run when the frame source ends before the cycle completes.
	ErrSourceExhausted = errors.New("frame source exhausted")
	// ErrCommitting is returned by Start while the finished cycle's result is being stored.
	ErrCommitting = errors.New("capture result is being stored")
)

// Status is the session lifecycle status.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusCapturing Status = "capturing"
	StatusCompleted Status = "completed"
	StatusStalled   Status = "stalled"
	StatusFailed    Status = "failed"
	StatusAborted   Status = "aborted"
)

// Terminal reports whether no further ticks will be processed without a restart.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusStalled || s == StatusFailed || s == StatusAborted
}

// Config holds everything a session needs to run a cycle.
type Config struct {
	Capture           capture.Config
	MinSizeRatio      float64
	Threshold         float64
	Policy            matcher.Policy
	TickInterval      time.Duration
	MaxOracleFailures int // consecutive failures before giving up, 0 = never
}

// DefaultConfig returns the reference policy.
func DefaultConfig() Config {
	return Config{
		Capture:           capture.DefaultConfig(),
		MinSizeRatio:      constants.DefaultMinFaceSizeRatio,
		Threshold:         constants.DefaultMatchThreshold,
		Policy:            matcher.PolicyAlways,
		TickInterval:      constants.DefaultTickInterval,
		MaxOracleFailures: constants.DefaultMaxOracleFailures,
	}
}

// ConfigFrom builds a session config from the application config.
func ConfigFrom(cfg *config.Config) (Config, error) {
	policy, err := matcher.ParsePolicy(cfg.Matching.OverwritePolicy)
	if err != nil {
		return Config{}, err
	}
	sc := Config{
		Capture: capture.Config{
			SampleCount:    cfg.Capture.SampleCount,
			DiversityFloor: cfg.Capture.DiversityFloor,
			MaxAttempts:    cfg.Capture.MaxAttempts,
		},
		MinSizeRatio:      cfg.Capture.MinFaceSizeRatio,
		Threshold:         cfg.Matching.Threshold,
		Policy:            policy,
		TickInterval:      cfg.Capture.TickInterval,
		MaxOracleFailures: cfg.Capture.MaxOracleFailures,
	}
	if err := sc.Capture.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid capture config: %w", err)
	}
	return sc, nil
}

// Snapshot is a point-in-time view of a session for presentation.
type Snapshot struct {
	ID        string                `json:"id"`
	Status    Status                `json:"status"`
	Guidance  facematch.Guidance    `json:"guidance"`
	Gate      *facematch.GateResult `json:"gate,omitempty"`
	Progress  int                   `json:"progress"`
	Samples   int                   `json:"samples"`
	Target    int                   `json:"target"`
	Attempts  int                   `json:"attempts"`
	Result    *matcher.Outcome      `json:"result,omitempty"`
	Error     string                `json:"error,omitempty"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// Option configures a Session.
type Option func(*Session)

// WithMetrics records session activity in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithClock replaces time.Now, for credential timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// Session owns one capture timeline. Ticks are serialized: a tick that
// arrives while another is polling the oracle is dropped.
type Session struct {
	EventBroadcaster

	id       string
	detector oracle.Detector
	store    *credential.Store
	engine   *matcher.Engine
	cfg      Config
	metrics  *metrics.Metrics
	now      func() time.Time
	logger   zerolog.Logger

	tickMu sync.Mutex

	mu         sync.RWMutex
	agg        *capture.Aggregator
	status     Status
	generation int
	gate       *facematch.GateResult
	guidance   facematch.Guidance
	failures   int
	committing bool
	result     *matcher.Outcome
	err        error
	closed     bool
	cancelRun  context.CancelFunc
	createdAt  time.Time
	updatedAt  time.Time
}

// New creates an idle session.
func New(id string, detector oracle.Detector, store *credential.Store, cfg Config, opts ...Option) (*Session, error) {
	if detector == nil {
		return nil, errors.New("detector is required")
	}
	if store == nil {
		return nil, errors.New("credential store is required")
	}
	if err := cfg.Capture.Validate(); err != nil {
		return nil, fmt.Errorf("invalid capture config: %w", err)
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = constants.DefaultTickInterval
	}

	s := &Session{
		id:       id,
		detector: detector,
		store:    store,
		engine:   matcher.NewEngine(cfg.Threshold, cfg.Policy),
		cfg:      cfg,
		now:      time.Now,
		agg:      capture.NewAggregator(cfg.Capture),
		status:   StatusIdle,
		guidance: facematch.Guidance{Kind: facematch.GuidanceNone},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.createdAt = s.now()
	s.updatedAt = s.createdAt
	s.logger = log.With().Str("session_id", id).Logger()
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Status returns the current status.
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// UpdatedAt returns the time of the last state change.
func (s *Session) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}

// Start begins a new capture cycle, discarding any previous cycle state.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if s.committing {
		return ErrCommitting
	}

	s.agg.Start()
	s.generation++
	s.status = StatusCapturing
	s.gate = nil
	s.failures = 0
	s.result = nil
	s.err = nil
	s.touch()
	s.guidance = s.selectGuidance()

	s.metrics.CycleStarted()
	s.logger.Info().Int("target", s.cfg.Capture.SampleCount).Msg("capture started")
	s.SendEvent(Event{Type: EventStarted, Data: s.snapshotLocked()})
	return nil
}

// Abort stops the current cycle. Partial samples are discarded and nothing
// is persisted. A tick still waiting on the oracle is ignored when it returns.
// A cycle whose last sample was accepted is already storing its result and
// is not aborted.
func (s *Session) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.abortLocked()
}

func (s *Session) abortLocked() {
	if s.committing {
		s.logger.Debug().Msg("abort ignored, result is being stored")
		return
	}
	if s.cancelRun != nil {
		s.cancelRun()
		s.cancelRun = nil
	}
	if s.status != StatusCapturing {
		return
	}
	s.agg.Abort()
	s.generation++
	s.status = StatusAborted
	s.gate = nil
	s.touch()
	s.guidance = s.selectGuidance()

	s.metrics.CycleFinished(string(StatusAborted))
	s.logger.Info().Msg("capture aborted")
	s.SendEvent(Event{Type: EventAborted, Message: "Capture aborted", Data: s.snapshotLocked()})
}

// Close aborts any running cycle and releases event listeners.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.abortLocked()
	s.closed = true
	s.CloseListeners()
}

// Snapshot returns the current presentation state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		ID:        s.id,
		Status:    s.status,
		Guidance:  s.guidance,
		Progress:  s.agg.Progress(),
		Samples:   s.agg.Samples(),
		Target:    s.cfg.Capture.SampleCount,
		Attempts:  s.agg.Attempts(),
		CreatedAt: s.createdAt,
		UpdatedAt: s.updatedAt,
	}
	if s.gate != nil {
		g := *s.gate
		snap.Gate = &g
	}
	if s.result != nil {
		r := *s.result
		snap.Result = &r
	}
	if s.err != nil {
		snap.Error = s.err.Error()
	}
	return snap
}

// Tick runs one poll: oracle call, quality gate, aggregation and, when the
// cycle completes, the match decision and credential update.
func (s *Session) Tick(ctx context.Context, frame oracle.Frame) (Snapshot, error) {
	if !s.tickMu.TryLock() {
		s.metrics.TickDropped()
		return s.Snapshot(), ErrTickInProgress
	}
	defer s.tickMu.Unlock()

	s.mu.RLock()
	closed, status, gen := s.closed, s.status, s.generation
	s.mu.RUnlock()
	if closed {
		return s.Snapshot(), ErrSessionClosed
	}
	if status != StatusCapturing {
		return s.Snapshot(), ErrNotCapturing
	}

	started := time.Now()
	det, detErr := s.detector.Detect(ctx, frame)
	s.metrics.OracleCall(time.Since(started), detErr)

	s.mu.Lock()
	defer s.mu.Unlock()

	// The cycle was aborted or restarted while the oracle was running.
	if s.closed || s.generation != gen || s.status != StatusCapturing {
		return s.snapshotLocked(), ErrNotCapturing
	}

	if detErr != nil {
		if ctx.Err() != nil {
			return s.snapshotLocked(), ctx.Err()
		}
		s.failures++
		if errors.Is(detErr, oracle.ErrUnavailable) ||
			(s.cfg.MaxOracleFailures > 0 && s.failures >= s.cfg.MaxOracleFailures) {
			s.failLocked(detErr)
			return s.snapshotLocked(), detErr
		}
		s.logger.Warn().Err(detErr).Int("failures", s.failures).Int("frame", frame.Seq).Msg("detection failed, treating as no face")
		det = nil
	} else {
		s.failures = 0
	}

	gate := facematch.Evaluate(det, s.cfg.MinSizeRatio)
	s.gate = &gate
	prevProgress := s.agg.Progress()
	step := s.agg.Offer(det, gate)
	s.touch()

	switch {
	case step.Accepted:
		s.metrics.Sample("accepted")
	case step.Stalled:
		s.metrics.Sample("stalled")
	default:
		s.metrics.Sample(string(step.Reason))
	}

	switch {
	case step.Completed:
		s.commitLocked(ctx, step)
	case step.Stalled:
		s.status = StatusStalled
		s.guidance = s.selectGuidance()
		s.metrics.CycleFinished(string(StatusStalled))
		s.logger.Warn().Int("attempts", s.cfg.Capture.MaxAttempts).Msg("capture stalled")
		s.SendEvent(Event{Type: EventStalled, Message: s.guidance.Message, Data: s.snapshotLocked()})
	default:
		s.updateGuidanceLocked()
		if progress := s.agg.Progress(); progress != prevProgress {
			s.logger.Debug().Int("progress", progress).Int("samples", s.agg.Samples()).Msg("sample accepted")
			s.SendEvent(Event{Type: EventProgress, Data: s.snapshotLocked()})
		}
	}

	if s.status == StatusFailed {
		return s.snapshotLocked(), s.err
	}
	return s.snapshotLocked(), nil
}

// commitLocked decides and stores the result of a completed cycle. s.mu is
// held on entry and on return but released around the store round trip.
func (s *Session) commitLocked(ctx context.Context, step capture.Step) {
	s.committing = true
	s.SendEvent(Event{Type: EventProgress, Data: Snapshot{ID: s.id, Status: s.status, Progress: 100, Samples: step.Samples, Target: s.cfg.Capture.SampleCount}})

	s.mu.Unlock()
	outcome, err := s.engine.Verify(ctx, s.store, step.Aggregated, s.now())
	s.mu.Lock()
	s.committing = false

	if err != nil {
		s.failLocked(fmt.Errorf("store result: %w", err))
		return
	}

	d := outcome.Decision
	if d.Err != nil {
		s.logger.Warn().Err(d.Err).Msg("stored credential is incompatible, treated as no match")
	}
	s.result = &outcome
	s.status = StatusCompleted
	s.guidance = s.selectGuidance()
	s.metrics.CycleFinished(string(StatusCompleted))
	s.metrics.Decision(string(d.Kind), d.Confidence, d.HasConfidence)
	s.logger.Info().
		Str("kind", string(d.Kind)).
		Bool("match", d.Match).
		Int("confidence", d.Confidence).
		Bool("persisted", outcome.Persisted).
		Msg("capture completed")
	s.SendEvent(Event{Type: EventResult, Data: s.snapshotLocked()})
}

// failLocked moves to Failed and reports the error once.
func (s *Session) failLocked(err error) {
	if s.status == StatusFailed {
		return
	}
	s.agg.Abort()
	s.status = StatusFailed
	s.err = err
	s.touch()
	s.guidance = s.selectGuidance()
	s.metrics.CycleFinished(string(StatusFailed))
	s.logger.Error().Err(err).Msg("capture failed")
	s.SendEvent(Event{Type: EventFatal, Message: err.Error(), Data: s.snapshotLocked()})
}

func (s *Session) updateGuidanceLocked() {
	g := s.selectGuidance()
	if g == s.guidance {
		return
	}
	s.guidance = g
	s.SendEvent(Event{Type: EventGuidance, Message: g.Message, Data: g})
}

func (s *Session) selectGuidance() facematch.Guidance {
	return facematch.SelectGuidance(s.gate, facematch.CaptureStatus{
		Capturing: s.status == StatusCapturing,
		Accepted:  s.agg.Samples(),
		Target:    s.cfg.Capture.SampleCount,
		Stalled:   s.status == StatusStalled,
		Failed:    s.status == StatusFailed,
	})
}

func (s *Session) touch() {
	s.updatedAt = s.now()
}

// Run starts a cycle if none is running and ticks it from source at the
// configured interval until the cycle ends or ctx is cancelled. Ticks that
// fire while a poll is still running are dropped by the ticker.
func (s *Session) Run(ctx context.Context, source oracle.FrameSource) (Snapshot, error) {
	if s.Status() != StatusCapturing {
		if err := s.Start(); err != nil {
			return s.Snapshot(), err
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.mu.Lock()
	s.cancelRun = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.cancelRun = nil
		s.mu.Unlock()
	}()

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-runCtx.Done():
			return s.runResult(ctx)
		case <-ticker.C:
		}

		frame, err := source.Next(runCtx)
		if errors.Is(err, io.EOF) {
			s.Abort()
			return s.Snapshot(), ErrSourceExhausted
		}
		if err != nil {
			if runCtx.Err() != nil {
				return s.runResult(ctx)
			}
			s.mu.Lock()
			s.failLocked(fmt.Errorf("%w: read frame: %w", oracle.ErrUnavailable, err))
			s.mu.Unlock()
			return s.Snapshot(), err
		}

		snap, err := s.Tick(runCtx, frame)
		switch {
		case errors.Is(err, ErrTickInProgress):
			continue
		case snap.Status == StatusCompleted:
			return snap, nil
		case snap.Status == StatusStalled:
			return snap, ErrStalled
		case snap.Status == StatusFailed:
			return snap, err
		case snap.Status == StatusAborted:
			return snap, ErrAborted
		}
	}
}

// runResult reports why the run context ended: the caller's context was
// cancelled, or the session was aborted from elsewhere.
func (s *Session) runResult(parent context.Context) (Snapshot, error) {
	if err := parent.Err(); err != nil {
		s.Abort()
		return s.Snapshot(), err
	}
	return s.Snapshot(), ErrAborted
}
