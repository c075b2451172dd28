package handlers

import (
	"net/http"

	"github.com/kozaktomas/face-enroll/internal/credential"
	"github.com/rs/zerolog/log"
)

// CredentialHandler exposes the stored credential for the dashboard
type CredentialHandler struct {
	store *credential.Store
}

// NewCredentialHandler creates a new credential handler
func NewCredentialHandler(store *credential.Store) *CredentialHandler {
	return &CredentialHandler{store: store}
}

// CredentialResponse represents the dashboard view of the enrollment state
type CredentialResponse struct {
	AlreadyRegistered bool                   `json:"already_registered"`
	Credential        *credential.Credential `json:"credential,omitempty"`
}

// Get returns the registered flag and the stored credential. It responds
// 404 when nothing has been enrolled yet.
func (h *CredentialHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	registered, err := h.store.Registered(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to read registered flag")
		respondError(w, http.StatusInternalServerError, "failed to read credential")
		return
	}
	cred, err := h.store.Load(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to load credential")
		respondError(w, http.StatusInternalServerError, "failed to read credential")
		return
	}
	if cred == nil && !registered {
		respondError(w, http.StatusNotFound, "no credential enrolled")
		return
	}

	respondJSON(w, http.StatusOK, CredentialResponse{
		AlreadyRegistered: registered,
		Credential:        cred,
	})
}

// Delete removes the credential and the registered flag
func (h *CredentialHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Reset(r.Context()); err != nil {
		log.Error().Err(err).Msg("failed to reset credential")
		respondError(w, http.StatusInternalServerError, "failed to reset credential")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"reset": true})
}
