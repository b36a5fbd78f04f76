package api

import "net/http"

// handleHealth reports process liveness unconditionally.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady reports readiness to serve traffic. It currently mirrors
// liveness; a future revision may gate this on the KV directory and
// container engine both answering a ping.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleMCP answers the tool-server shim's probe path. The shim itself is
// an external collaborator, out of scope for this service; this endpoint
// only needs to exist so a caller probing /mcp or /mcp/ gets a clean 501
// instead of a 404 that looks like a routing bug.
func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotImplemented, map[string]string{
		"status":  "not_implemented",
		"message": "the MCP tool-server shim is not part of this service",
	})
}
