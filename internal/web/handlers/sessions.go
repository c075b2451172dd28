package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-enroll/internal/constants"
	"github.com/kozaktomas/face-enroll/internal/oracle"
	"github.com/kozaktomas/face-enroll/internal/session"
	"github.com/rs/zerolog/log"
)

// SessionsHandler exposes capture sessions over HTTP. A browser client
// creates a session, posts camera frames at its own cadence and follows
// the events stream for guidance and the final decision.
type SessionsHandler struct {
	manager      *session.Manager
	maxFrameSize int64
}

// NewSessionsHandler creates a new sessions handler
func NewSessionsHandler(manager *session.Manager) *SessionsHandler {
	return &SessionsHandler{
		manager:      manager,
		maxFrameSize: constants.MaxFrameSize,
	}
}

// tickErrorResponse carries the snapshot alongside a rejected or failed tick.
type tickErrorResponse struct {
	Error   string           `json:"error"`
	Session session.Snapshot `json:"session"`
}

// lookup resolves the {id} URL parameter or writes an error response.
func (h *SessionsHandler) lookup(w http.ResponseWriter, r *http.Request) *session.Session {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "missing session ID")
		return nil
	}
	s := h.manager.Get(id)
	if s == nil {
		respondError(w, http.StatusNotFound, "session not found")
		return nil
	}
	return s
}

// Create opens a session and starts its first capture cycle
func (h *SessionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	s, err := h.manager.Create()
	if err != nil {
		log.Error().Err(err).Msg("failed to create session")
		respondError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	respondJSON(w, http.StatusCreated, s.Snapshot())
}

// List returns snapshots of all open sessions
func (h *SessionsHandler) List(w http.ResponseWriter, r *http.Request) {
	sessions := h.manager.List()
	out := make([]session.Snapshot, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Snapshot())
	}
	respondJSON(w, http.StatusOK, out)
}

// Get returns a session snapshot
func (h *SessionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	s := h.lookup(w, r)
	if s == nil {
		return
	}
	respondJSON(w, http.StatusOK, s.Snapshot())
}

// Frame runs one tick with the raw image in the request body. Optional
// width and height query parameters skip header decoding on the oracle side.
func (h *SessionsHandler) Frame(w http.ResponseWriter, r *http.Request) {
	s := h.lookup(w, r)
	if s == nil {
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxFrameSize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "frame too large")
			return
		}
		respondError(w, http.StatusBadRequest, "failed to read frame")
		return
	}
	if len(data) == 0 {
		respondError(w, http.StatusBadRequest, "empty frame")
		return
	}

	frame := oracle.Frame{Data: data}
	q := r.URL.Query()
	frame.Width, _ = strconv.Atoi(q.Get("width"))
	frame.Height, _ = strconv.Atoi(q.Get("height"))
	frame.Seq, _ = strconv.Atoi(q.Get("seq"))

	snap, err := s.Tick(r.Context(), frame)
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, snap)
	case errors.Is(err, session.ErrTickInProgress), errors.Is(err, session.ErrNotCapturing):
		respondJSON(w, http.StatusConflict, tickErrorResponse{Error: err.Error(), Session: snap})
	case errors.Is(err, session.ErrSessionClosed):
		respondError(w, http.StatusGone, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusServiceUnavailable, "request cancelled")
	default:
		log.Warn().Err(err).Str("session", sanitizeForLog(s.ID())).Msg("capture failed")
		respondJSON(w, http.StatusBadGateway, tickErrorResponse{Error: err.Error(), Session: snap})
	}
}

// Start begins a new capture cycle on an existing session
func (h *SessionsHandler) Start(w http.ResponseWriter, r *http.Request) {
	s := h.lookup(w, r)
	if s == nil {
		return
	}
	if err := s.Start(); err != nil {
		switch {
		case errors.Is(err, session.ErrSessionClosed):
			respondError(w, http.StatusGone, err.Error())
		case errors.Is(err, session.ErrCommitting):
			respondError(w, http.StatusConflict, err.Error())
		default:
			respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	respondJSON(w, http.StatusOK, s.Snapshot())
}

// Abort cancels the running cycle but keeps the session open
func (h *SessionsHandler) Abort(w http.ResponseWriter, r *http.Request) {
	s := h.lookup(w, r)
	if s == nil {
		return
	}
	s.Abort()
	respondJSON(w, http.StatusOK, s.Snapshot())
}

// Events streams session events via SSE
func (h *SessionsHandler) Events(w http.ResponseWriter, r *http.Request) {
	s := h.lookup(w, r)
	if s == nil {
		return
	}
	streamSessionEvents(w, r, s)
}

// Delete aborts the cycle and closes the session
func (h *SessionsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.manager.Remove(id) {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"aborted": true})
}
