package api

import (
	"net/http"
	"time"

	"github.com/sandboxlabs/sandboxd/internal/auth"
	"github.com/sandboxlabs/sandboxd/internal/executor"
)

type executeRequest struct {
	SessionID  string `json:"session_id"`
	Command    string `json:"command"`
	TimeoutMs  int    `json:"timeout,omitempty"`
	WorkingDir string `json:"working_dir,omitempty"`
}

type executeResponse struct {
	ExitCode   int    `json:"exit_code"`
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	TimedOut   bool   `json:"timed_out"`
	Truncated  bool   `json:"truncated"`
	DurationMs int64  `json:"duration_ms"`
}

// handleExecute implements execute (spec.md §4.4/§6). A destroyed or
// never-created session surfaces as SessionNotFound/404, never a silent
// re-creation — only POST /sessions mints a session that didn't exist.
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	user, err := auth.RequireUserID(r.Context())
	if err != nil {
		writeAPIError(w, err)
		return
	}

	var req executeRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeValidationError(w, "invalid json: "+err.Error(), nil)
		return
	}
	if err := validateExecuteRequest(req); err != nil {
		writeValidationError(w, err.Error(), nil)
		return
	}
	if err := checkCommandAllowed(req.Command, s.cfg.AllowedCommands); err != nil {
		writeAPIError(w, err)
		return
	}

	s.logger.Debug("execute", "session_id", req.SessionID, "request_id", requestIDFromContext(r.Context()))

	result, err := s.executor.Execute(r.Context(), user, req.SessionID, req.Command, executor.Opts{
		WorkingDir:   req.WorkingDir,
		Timeout:      time.Duration(req.TimeoutMs) * time.Millisecond,
		PreValidated: true,
	})
	if err != nil {
		s.logger.Error("execute", "session_id", req.SessionID, "request_id", requestIDFromContext(r.Context()), "error", err)
		writeAPIError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, executeResponse{
		ExitCode:   result.ExitCode,
		Stdout:     result.Stdout,
		Stderr:     result.Stderr,
		TimedOut:   result.TimedOut,
		Truncated:  result.Truncated,
		DurationMs: result.DurationMs,
	})
}
