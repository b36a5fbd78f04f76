package workspace

import (
	"archive/tar"
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sandboxlabs/sandboxd/internal/apperrors"
	"github.com/sandboxlabs/sandboxd/internal/containerdriver"
)

func TestCanonicalizeEmptyIsRoot(t *testing.T) {
	abs, err := canonicalize("")
	require.NoError(t, err)
	assert.Equal(t, "/workspace", abs)
}

func TestCanonicalizeJoinsUnderRoot(t *testing.T) {
	abs, err := canonicalize("a/b.txt")
	require.NoError(t, err)
	assert.Equal(t, "/workspace/a/b.txt", abs)
}

func TestCanonicalizeRejectsDotDot(t *testing.T) {
	_, err := canonicalize("../etc/passwd")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindPathInvalid, apperrors.KindOf(err))
}

func TestCanonicalizeRejectsEscapeAfterNormalization(t *testing.T) {
	_, err := canonicalize("a/../../etc")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindPathInvalid, apperrors.KindOf(err))
}

func TestCanonicalizeRejectsAbsolutePaths(t *testing.T) {
	for _, rel := range []string{"/etc/passwd", "../../etc/passwd", "a/../../etc/passwd", "/"} {
		_, err := canonicalize(rel)
		require.Error(t, err, "expected %q to be rejected", rel)
		assert.Equal(t, apperrors.KindPathInvalid, apperrors.KindOf(err))
	}
}

func TestListParsesDirsAndFiles(t *testing.T) {
	drv := new(mockDriver)
	gw := NewGateway(drv, 0)
	ctx := context.Background()

	drv.On("Exec", ctx, "c1", []string{"ls", "-1Ap", "/workspace"}, mock.Anything).
		Return(containerdriver.ExecResult{Stdout: "a.txt\nsub/\n", ExitCode: 0}, nil)

	entries, err := gw.List(ctx, "c1", "")
	require.NoError(t, err)
	assert.Equal(t, []Entry{{Name: "a.txt", Type: "file"}, {Name: "sub", Type: "dir"}}, entries)
}

func TestReadReturnsUTF8Content(t *testing.T) {
	drv := new(mockDriver)
	gw := NewGateway(drv, 0)
	ctx := context.Background()

	drv.On("CopyFromContainer", ctx, "c1", "/workspace/a/b.txt").
		Return(tarOf(t, "a/b.txt", []byte("data")), nil)

	fc, err := gw.Read(ctx, "c1", "a/b.txt")
	require.NoError(t, err)
	assert.Equal(t, "data", fc.Content)
	assert.Equal(t, "utf8", fc.Encoding)
}

func TestReadReturnsBase64ForBinary(t *testing.T) {
	drv := new(mockDriver)
	gw := NewGateway(drv, 0)
	ctx := context.Background()

	binary := []byte{0xff, 0xfe, 0x00, 0x01}
	drv.On("CopyFromContainer", ctx, "c1", "/workspace/bin.dat").
		Return(tarOf(t, "bin.dat", binary), nil)

	fc, err := gw.Read(ctx, "c1", "bin.dat")
	require.NoError(t, err)
	assert.Equal(t, "base64", fc.Encoding)
}

func TestReadRejectsOversizedFile(t *testing.T) {
	drv := new(mockDriver)
	gw := NewGateway(drv, 4)
	ctx := context.Background()

	drv.On("CopyFromContainer", ctx, "c1", "/workspace/big.txt").
		Return(tarOf(t, "big.txt", []byte("way too big")), nil)

	_, err := gw.Read(ctx, "c1", "big.txt")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindSizeLimitExceeded, apperrors.KindOf(err))
}

func TestWriteBuildsSingleFileArchive(t *testing.T) {
	drv := new(mockDriver)
	gw := NewGateway(drv, 0)
	ctx := context.Background()

	drv.On("CopyToContainer", ctx, "c1", "/workspace", mock.Anything).Return(nil)

	err := gw.Write(ctx, "c1", "a/b.txt", []byte("hello"))
	require.NoError(t, err)
	drv.AssertExpectations(t)
}

func TestWriteRejectsOversizedContent(t *testing.T) {
	drv := new(mockDriver)
	gw := NewGateway(drv, 2)
	ctx := context.Background()

	err := gw.Write(ctx, "c1", "a.txt", []byte("hello"))
	require.Error(t, err)
	assert.Equal(t, apperrors.KindSizeLimitExceeded, apperrors.KindOf(err))
	drv.AssertNotCalled(t, "CopyToContainer", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDeleteExecsRmWithOneFileSystem(t *testing.T) {
	drv := new(mockDriver)
	gw := NewGateway(drv, 0)
	ctx := context.Background()

	drv.On("Exec", ctx, "c1", []string{"rm", "-rf", "--one-file-system", "/workspace/a"}, mock.Anything).
		Return(containerdriver.ExecResult{ExitCode: 0}, nil)

	err := gw.Delete(ctx, "c1", "a")
	require.NoError(t, err)
}

func TestDeleteRejectsWorkspaceRoot(t *testing.T) {
	drv := new(mockDriver)
	gw := NewGateway(drv, 0)
	err := gw.Delete(context.Background(), "c1", "")
	require.Error(t, err)
}

// tarOf builds an in-memory single-entry tar stream for Read tests.
func tarOf(t *testing.T, name string, content []byte) io.ReadCloser {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Size: int64(len(content)), Mode: 0644}))
	_, err := tw.Write(content)
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	return io.NopCloser(&buf)
}
