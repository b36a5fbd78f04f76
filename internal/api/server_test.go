package api

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sandboxlabs/sandboxd/internal/auth"
	"github.com/sandboxlabs/sandboxd/internal/config"
)

func noopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testServer(t *testing.T) (*Server, *mockRegistry, *mockExecutor, *mockWorkspace) {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	reg := new(mockRegistry)
	exec := new(mockExecutor)
	ws := new(mockWorkspace)
	s := NewServer(cfg, reg, exec, ws, noopLogger())
	return s, reg, exec, ws
}

// authedRequest builds a request with "alice" already attached to the
// context, as auth.Middleware would have done.
func authedRequest(method, target string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, target, body)
	return req.WithContext(auth.WithUserID(req.Context(), "alice"))
}
