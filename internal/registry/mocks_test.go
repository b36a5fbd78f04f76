package registry

import (
	"context"
	"io"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sandboxlabs/sandboxd/internal/containerdriver"
	"github.com/sandboxlabs/sandboxd/internal/kvdir"
)

type mockDirectory struct {
	mock.Mock
}

func (m *mockDirectory) GetSession(ctx context.Context, user, sid string) (kvdir.Record, bool, error) {
	args := m.Called(ctx, user, sid)
	return args.Get(0).(kvdir.Record), args.Bool(1), args.Error(2)
}

func (m *mockDirectory) PutSession(ctx context.Context, user, sid string, rec kvdir.Record, ttl time.Duration) error {
	args := m.Called(ctx, user, sid, rec, ttl)
	return args.Error(0)
}

func (m *mockDirectory) RefreshTTL(ctx context.Context, user, sid string, ttl time.Duration) error {
	args := m.Called(ctx, user, sid, ttl)
	return args.Error(0)
}

func (m *mockDirectory) DeleteSession(ctx context.Context, user, sid string) error {
	args := m.Called(ctx, user, sid)
	return args.Error(0)
}

func (m *mockDirectory) GetReverse(ctx context.Context, containerID string) (kvdir.ReverseRecord, bool, error) {
	args := m.Called(ctx, containerID)
	return args.Get(0).(kvdir.ReverseRecord), args.Bool(1), args.Error(2)
}

func (m *mockDirectory) Close() error {
	return m.Called().Error(0)
}

type mockDriver struct {
	mock.Mock
}

func (m *mockDriver) Create(ctx context.Context, opts containerdriver.CreateOpts) (string, error) {
	args := m.Called(ctx, opts)
	return args.String(0), args.Error(1)
}

func (m *mockDriver) Inspect(ctx context.Context, containerID string) (containerdriver.ContainerInfo, error) {
	args := m.Called(ctx, containerID)
	return args.Get(0).(containerdriver.ContainerInfo), args.Error(1)
}

func (m *mockDriver) Remove(ctx context.Context, containerID string, force bool) error {
	args := m.Called(ctx, containerID, force)
	return args.Error(0)
}

func (m *mockDriver) List(ctx context.Context) ([]containerdriver.ContainerInfo, error) {
	args := m.Called(ctx)
	return args.Get(0).([]containerdriver.ContainerInfo), args.Error(1)
}

func (m *mockDriver) VolumeName(userID, sessionID string) string {
	args := m.Called(userID, sessionID)
	return args.String(0)
}

func (m *mockDriver) VolumeCreate(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

func (m *mockDriver) VolumeRemove(ctx context.Context, name string, force bool) error {
	args := m.Called(ctx, name, force)
	return args.Error(0)
}

func (m *mockDriver) Exec(ctx context.Context, containerID string, argv []string, opts containerdriver.ExecOpts) (containerdriver.ExecResult, error) {
	args := m.Called(ctx, containerID, argv, opts)
	return args.Get(0).(containerdriver.ExecResult), args.Error(1)
}

func (m *mockDriver) CopyFromContainer(ctx context.Context, containerID, srcPath string) (io.ReadCloser, error) {
	args := m.Called(ctx, containerID, srcPath)
	r, _ := args.Get(0).(io.ReadCloser)
	return r, args.Error(1)
}

func (m *mockDriver) CopyToContainer(ctx context.Context, containerID, dstPath string, content io.Reader) error {
	args := m.Called(ctx, containerID, dstPath, content)
	return args.Error(0)
}

func (m *mockDriver) Close() error {
	return m.Called().Error(0)
}
