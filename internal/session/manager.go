package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/face-enroll/internal/constants"
	"github.com/kozaktomas/face-enroll/internal/credential"
	"github.com/kozaktomas/face-enroll/internal/metrics"
	"github.com/kozaktomas/face-enroll/internal/oracle"
	"github.com/rs/zerolog/log"
)

// Manager tracks concurrent capture sessions that share a detector and a
// credential store.
type Manager struct {
	detector oracle.Detector
	store    *credential.Store
	cfg      Config
	metrics  *metrics.Metrics

	sessions map[string]*Session
	mu       sync.RWMutex
}

// NewManager creates a session manager.
func NewManager(detector oracle.Detector, store *credential.Store, cfg Config, m *metrics.Metrics) *Manager {
	return &Manager{
		detector: detector,
		store:    store,
		cfg:      cfg,
		metrics:  m,
		sessions: make(map[string]*Session),
	}
}

// Store returns the shared credential store.
func (m *Manager) Store() *credential.Store {
	return m.store
}

// Create opens a session with a random ID and starts its first cycle.
func (m *Manager) Create() (*Session, error) {
	s, err := New(uuid.NewString(), m.detector, m.store, m.cfg, WithMetrics(m.metrics))
	if err != nil {
		return nil, err
	}
	if err := s.Start(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()
	m.metrics.SessionOpened()
	return s, nil
}

// Get returns the session with id, or nil.
func (m *Manager) Get(id string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[id]
}

// Remove closes and forgets a session. It reports whether the session existed.
func (m *Manager) Remove(id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return false
	}
	s.Close()
	m.metrics.SessionClosed()
	return true
}

// List returns all sessions, oldest first.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	list := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		list = append(list, s)
	}
	m.mu.RUnlock()
	sort.Slice(list, func(i, j int) bool {
		return list[i].createdAt.Before(list[j].createdAt)
	})
	return list
}

// Sweep removes sessions untouched for longer than idle and returns how many were removed.
func (m *Manager) Sweep(now time.Time, idle time.Duration) int {
	var stale []string
	m.mu.RLock()
	for id, s := range m.sessions {
		if now.Sub(s.UpdatedAt()) > idle {
			stale = append(stale, id)
		}
	}
	m.mu.RUnlock()

	removed := 0
	for _, id := range stale {
		if m.Remove(id) {
			removed++
		}
	}
	return removed
}

// RunSweeper sweeps idle sessions periodically until ctx is cancelled.
func (m *Manager) RunSweeper(ctx context.Context, interval, idle time.Duration) {
	if interval <= 0 {
		interval = constants.SessionSweepInterval
	}
	if idle <= 0 {
		idle = constants.SessionIdleTimeout
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := m.Sweep(now, idle); n > 0 {
				log.Info().Int("removed", n).Msg("swept idle sessions")
			}
		}
	}
}

// CloseAll closes every session.
func (m *Manager) CloseAll() {
	for _, s := range m.List() {
		m.Remove(s.ID())
	}
}
