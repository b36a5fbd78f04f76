package api

import (
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/sandboxlabs/sandboxd/internal/apperrors"
	"github.com/sandboxlabs/sandboxd/internal/auth"
)

// maxUploadBytes bounds a single multipart upload request body.
const maxUploadBytes = 10 * 1024 * 1024

// resolveWorkspaceContainer validates sid and resolves its live container.
// Workspace operations never create a session implicitly: a destroyed
// session 404s here exactly as it does on /execute.
func (s *Server) resolveWorkspaceContainer(w http.ResponseWriter, r *http.Request) (containerID string, ok bool) {
	sid := r.PathValue("sid")
	if err := ValidateSessionID(sid); err != nil {
		writeValidationError(w, err.Error(), nil)
		return "", false
	}

	user, err := auth.RequireUserID(r.Context())
	if err != nil {
		writeAPIError(w, err)
		return "", false
	}

	containerID, err = s.registry.Resolve(r.Context(), user, sid)
	if err != nil {
		writeAPIError(w, err)
		return "", false
	}
	return containerID, true
}

func (s *Server) handleWorkspaceList(w http.ResponseWriter, r *http.Request) {
	containerID, ok := s.resolveWorkspaceContainer(w, r)
	if !ok {
		return
	}

	relPath := r.URL.Query().Get("path")
	entries, err := s.workspace.List(r.Context(), containerID, relPath)
	if err != nil {
		writeAPIError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) handleWorkspaceRead(w http.ResponseWriter, r *http.Request) {
	containerID, ok := s.resolveWorkspaceContainer(w, r)
	if !ok {
		return
	}

	relPath := r.URL.Query().Get("path")
	if relPath == "" {
		writeValidationError(w, "path query parameter is required", nil)
		return
	}

	content, err := s.workspace.Read(r.Context(), containerID, relPath)
	if err != nil {
		writeAPIError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, content)
}

type writeContentRequest struct {
	Content string `json:"content"`
}

func (s *Server) handleWorkspaceWrite(w http.ResponseWriter, r *http.Request) {
	containerID, ok := s.resolveWorkspaceContainer(w, r)
	if !ok {
		return
	}

	relPath := r.URL.Query().Get("path")
	if relPath == "" {
		writeValidationError(w, "path query parameter is required", nil)
		return
	}

	content, err := readWorkspaceBody(r)
	if err != nil {
		writeValidationError(w, "invalid body: "+err.Error(), nil)
		return
	}

	if err := s.workspace.Write(r.Context(), containerID, relPath, content); err != nil {
		writeAPIError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// readWorkspaceBody accepts either a raw body or a JSON {"content": "..."}
// envelope, per spec.md §6's "raw or {content}" write contract.
func readWorkspaceBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxUploadBytes {
		return nil, apperrors.Newf(apperrors.KindSizeLimitExceeded, "workspace_write", "body exceeds max upload size")
	}

	if ct := r.Header.Get("Content-Type"); strings.Contains(ct, "application/json") {
		var req writeContentRequest
		if len(body) > 0 {
			if err := json.Unmarshal(body, &req); err != nil {
				return nil, err
			}
		}
		return []byte(req.Content), nil
	}
	return body, nil
}

func (s *Server) handleWorkspaceUpload(w http.ResponseWriter, r *http.Request) {
	containerID, ok := s.resolveWorkspaceContainer(w, r)
	if !ok {
		return
	}

	basePath := r.URL.Query().Get("path")

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeValidationError(w, "invalid multipart form: "+err.Error(), nil)
		return
	}

	files := r.MultipartForm.File["file"]
	if len(files) == 0 {
		writeValidationError(w, "no file provided: use form field 'file'", nil)
		return
	}

	fh := files[0]
	name := filepath.Base(fh.Filename)
	if name == "" || name == "." || strings.Contains(name, "..") {
		writeValidationError(w, "invalid filename: "+fh.Filename, nil)
		return
	}
	destPath := name
	if basePath != "" {
		destPath = filepath.Join(basePath, name)
	}

	f, err := fh.Open()
	if err != nil {
		writeAPIError(w, err)
		return
	}
	content, err := io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
	_ = f.Close()
	if err != nil {
		writeValidationError(w, "failed to read upload: "+err.Error(), nil)
		return
	}
	if len(content) > maxUploadBytes {
		writeValidationError(w, "file too large", map[string]any{"max_bytes": maxUploadBytes})
		return
	}

	if err := s.workspace.Write(r.Context(), containerID, destPath, content); err != nil {
		writeAPIError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "path": destPath})
}

func (s *Server) handleWorkspaceDelete(w http.ResponseWriter, r *http.Request) {
	containerID, ok := s.resolveWorkspaceContainer(w, r)
	if !ok {
		return
	}

	relPath := r.URL.Query().Get("path")
	if err := s.workspace.Delete(r.Context(), containerID, relPath); err != nil {
		writeAPIError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
