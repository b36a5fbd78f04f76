package api

import (
	"net/http"

	"github.com/sandboxlabs/sandboxd/internal/auth"
	"github.com/sandboxlabs/sandboxd/internal/registry"
)

type createSessionRequest struct {
	SessionID string `json:"session_id"`
	Image     string `json:"image,omitempty"`
	Persist   bool   `json:"persist,omitempty"`
}

type createSessionResponse struct {
	SessionID   string `json:"session_id"`
	ContainerID string `json:"container_id"`
}

// handleCreateSession implements resolve_or_create (spec.md §6): idempotent
// session creation. Calling it again for the same (user, sid) simply
// returns the existing container.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	user, err := auth.RequireUserID(r.Context())
	if err != nil {
		writeAPIError(w, err)
		return
	}

	var req createSessionRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeValidationError(w, "invalid json: "+err.Error(), nil)
		return
	}
	if err := validateCreateSessionRequest(req); err != nil {
		writeValidationError(w, err.Error(), nil)
		return
	}

	containerID, err := s.registry.ResolveOrCreate(r.Context(), user, req.SessionID, registry.CreateOpts{
		Image:   req.Image,
		Persist: req.Persist,
	})
	if err != nil {
		s.logger.Error("create session", "session_id", req.SessionID, "request_id", requestIDFromContext(r.Context()), "error", err)
		writeAPIError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, createSessionResponse{SessionID: req.SessionID, ContainerID: containerID})
}

// handleDestroySession implements destroy (spec.md §6): removes the
// container and, if persisted, its volume.
func (s *Server) handleDestroySession(w http.ResponseWriter, r *http.Request) {
	user, err := auth.RequireUserID(r.Context())
	if err != nil {
		writeAPIError(w, err)
		return
	}

	sid := r.PathValue("sid")
	if err := ValidateSessionID(sid); err != nil {
		writeValidationError(w, err.Error(), nil)
		return
	}

	if err := s.registry.Destroy(r.Context(), user, sid); err != nil {
		s.logger.Error("destroy session", "session_id", sid, "request_id", requestIDFromContext(r.Context()), "error", err)
		writeAPIError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
