// Package workspace is the Workspace Gateway: path canonicalization under
// /workspace plus list/read/write/upload/delete of files inside a live
// session container, fronted by the engine's exec and archive APIs.
package workspace

import (
	"archive/tar"
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/sandboxlabs/sandboxd/internal/apperrors"
	"github.com/sandboxlabs/sandboxd/internal/containerdriver"
)

const root = "/workspace"

// Entry is one item returned by List.
type Entry struct {
	Name string `json:"name"`
	Type string `json:"type"` // "file" or "dir"
}

// FileContent is what Read returns.
type FileContent struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"` // "utf8" or "base64"
}

// Gateway performs file operations scoped to /workspace inside a session
// container.
type Gateway struct {
	driver      containerdriver.Driver
	maxFileSize int64 // 0 disables the limit
}

func NewGateway(driver containerdriver.Driver, maxFileSize int64) *Gateway {
	return &Gateway{driver: driver, maxFileSize: maxFileSize}
}

// canonicalize joins rel onto /workspace and rejects any result that
// escapes it or contains a literal ".." component. It never touches the
// filesystem and must run before any engine call.
func canonicalize(rel string) (string, error) {
	if rel == "" {
		return root, nil
	}

	if path.IsAbs(rel) {
		return "", apperrors.Newf(apperrors.KindPathInvalid, "canonicalize", "path must be relative: %s", rel)
	}

	for _, seg := range strings.Split(rel, "/") {
		if seg == ".." {
			return "", apperrors.Newf(apperrors.KindPathInvalid, "canonicalize", "path escapes workspace: %s", rel)
		}
	}

	joined := path.Join(root, rel)
	if joined != root && !strings.HasPrefix(joined, root+"/") {
		return "", apperrors.Newf(apperrors.KindPathInvalid, "canonicalize", "path escapes workspace: %s", rel)
	}
	return joined, nil
}

// List execs `ls -1Ap` against the canonicalized directory and parses
// entries, treating a trailing "/" as the directory marker.
func (g *Gateway) List(ctx context.Context, containerID, relPath string) ([]Entry, error) {
	abs, err := canonicalize(relPath)
	if err != nil {
		return nil, err
	}

	res, err := g.driver.Exec(ctx, containerID, []string{"ls", "-1Ap", abs}, containerdriver.ExecOpts{
		WorkingDir:     root,
		MaxOutputBytes: 1024 * 1024,
	})
	if err != nil {
		return nil, apperrors.New(apperrors.KindInternal, "list", err)
	}
	if res.ExitCode != 0 {
		return nil, apperrors.Newf(apperrors.KindPathInvalid, "list", "ls failed: %s", res.Stderr)
	}

	var entries []Entry
	for _, line := range strings.Split(res.Stdout, "\n") {
		if line == "" {
			continue
		}
		if strings.HasSuffix(line, "/") {
			entries = append(entries, Entry{Name: strings.TrimSuffix(line, "/"), Type: "dir"})
		} else {
			entries = append(entries, Entry{Name: line, Type: "file"})
		}
	}
	return entries, nil
}

// Read copies the file out of the container via the archive API and
// returns its content, UTF-8 when valid, base64 otherwise.
func (g *Gateway) Read(ctx context.Context, containerID, relPath string) (FileContent, error) {
	abs, err := canonicalize(relPath)
	if err != nil {
		return FileContent{}, err
	}

	rc, err := g.driver.CopyFromContainer(ctx, containerID, abs)
	if err != nil {
		return FileContent{}, apperrors.New(apperrors.KindInternal, "read", err)
	}
	defer rc.Close()

	tr := tar.NewReader(rc)
	hdr, err := tr.Next()
	if err == io.EOF {
		return FileContent{}, apperrors.Newf(apperrors.KindPathInvalid, "read", "not found: %s", relPath)
	}
	if err != nil {
		return FileContent{}, apperrors.New(apperrors.KindInternal, "read", err)
	}
	if hdr.Typeflag == tar.TypeDir {
		return FileContent{}, apperrors.Newf(apperrors.KindPathInvalid, "read", "is a directory: %s", relPath)
	}

	if g.maxFileSize > 0 && hdr.Size > g.maxFileSize {
		return FileContent{}, apperrors.Newf(apperrors.KindSizeLimitExceeded, "read", "file %s exceeds max size", relPath)
	}

	var buf bytes.Buffer
	limit := hdr.Size
	if g.maxFileSize > 0 {
		limit = g.maxFileSize + 1
	}
	if _, err := io.CopyN(&buf, tr, limit); err != nil && err != io.EOF {
		return FileContent{}, apperrors.New(apperrors.KindInternal, "read", err)
	}

	if utf8.Valid(buf.Bytes()) {
		return FileContent{Content: buf.String(), Encoding: "utf8"}, nil
	}
	return FileContent{Content: base64.StdEncoding.EncodeToString(buf.Bytes()), Encoding: "base64"}, nil
}

// Write builds a single-file tar archive and streams it into the container
// via the archive-put API, creating parent directories as needed.
func (g *Gateway) Write(ctx context.Context, containerID, relPath string, content []byte) error {
	abs, err := canonicalize(relPath)
	if err != nil {
		return err
	}
	if g.maxFileSize > 0 && int64(len(content)) > g.maxFileSize {
		return apperrors.Newf(apperrors.KindSizeLimitExceeded, "write", "content exceeds max size for %s", relPath)
	}

	rel := strings.TrimPrefix(abs, root+"/")
	if abs == root {
		return apperrors.Newf(apperrors.KindPathInvalid, "write", "cannot write to workspace root")
	}

	archive, err := buildSingleFileArchive(rel, content)
	if err != nil {
		return apperrors.New(apperrors.KindInternal, "write", err)
	}

	if err := g.driver.CopyToContainer(ctx, containerID, root, archive); err != nil {
		return apperrors.New(apperrors.KindInternal, "write", err)
	}
	return nil
}

// Delete execs `rm -rf --one-file-system` against the canonicalized path.
func (g *Gateway) Delete(ctx context.Context, containerID, relPath string) error {
	abs, err := canonicalize(relPath)
	if err != nil {
		return err
	}
	if abs == root {
		return apperrors.Newf(apperrors.KindPathInvalid, "delete", "cannot delete workspace root")
	}

	res, err := g.driver.Exec(ctx, containerID, []string{"rm", "-rf", "--one-file-system", abs}, containerdriver.ExecOpts{
		WorkingDir: root,
	})
	if err != nil {
		return apperrors.New(apperrors.KindInternal, "delete", err)
	}
	if res.ExitCode != 0 {
		return apperrors.Newf(apperrors.KindInternal, "delete", "rm failed: %s", res.Stderr)
	}
	return nil
}

// buildSingleFileArchive builds an uncompressed tar stream containing relPath
// (relative to /workspace) with mode 0644 owned by 1000:1000, plus headers
// for any intermediate directories with mode 0755.
func buildSingleFileArchive(relPath string, content []byte) (io.Reader, error) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	dir := path.Dir(relPath)
	if dir != "." && dir != "/" {
		parts := strings.Split(dir, "/")
		cur := ""
		for _, p := range parts {
			if p == "" {
				continue
			}
			cur = path.Join(cur, p)
			if err := tw.WriteHeader(&tar.Header{
				Name:     cur + "/",
				Typeflag: tar.TypeDir,
				Mode:     0755,
				Uid:      1000,
				Gid:      1000,
			}); err != nil {
				return nil, err
			}
		}
	}

	if err := tw.WriteHeader(&tar.Header{
		Name: relPath,
		Mode: 0644,
		Uid:  1000,
		Gid:  1000,
		Size: int64(len(content)),
	}); err != nil {
		return nil, err
	}
	if _, err := tw.Write(content); err != nil {
		return nil, err
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}

	return &buf, nil
}
