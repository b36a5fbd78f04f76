package api

func (s *Server) routes() {
	s.mux.HandleFunc("POST /execute", s.handleExecute)

	s.mux.HandleFunc("POST /sessions", s.handleCreateSession)
	s.mux.HandleFunc("DELETE /sessions/{sid}", s.handleDestroySession)

	s.mux.HandleFunc("GET /sessions/{sid}/workspace", s.handleWorkspaceList)
	s.mux.HandleFunc("GET /sessions/{sid}/workspace/content", s.handleWorkspaceRead)
	s.mux.HandleFunc("PUT /sessions/{sid}/workspace/content", s.handleWorkspaceWrite)
	s.mux.HandleFunc("POST /sessions/{sid}/workspace/upload", s.handleWorkspaceUpload)
	s.mux.HandleFunc("DELETE /sessions/{sid}/workspace", s.handleWorkspaceDelete)

	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /ready", s.handleReady)

	// Both trailing-slash forms of /mcp route to the same handler (an
	// external collaborator resolution, not MCP protocol support itself).
	s.mux.HandleFunc("GET /mcp", s.handleMCP)
	s.mux.HandleFunc("GET /mcp/", s.handleMCP)
}
