package api

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sandboxlabs/sandboxd/internal/executor"
	"github.com/sandboxlabs/sandboxd/internal/registry"
	"github.com/sandboxlabs/sandboxd/internal/workspace"
)

type mockRegistry struct {
	mock.Mock
}

func (m *mockRegistry) ResolveOrCreate(ctx context.Context, user, sid string, opts registry.CreateOpts) (string, error) {
	args := m.Called(ctx, user, sid, opts)
	return args.String(0), args.Error(1)
}

func (m *mockRegistry) Resolve(ctx context.Context, user, sid string) (string, error) {
	args := m.Called(ctx, user, sid)
	return args.String(0), args.Error(1)
}

func (m *mockRegistry) Destroy(ctx context.Context, user, sid string) error {
	args := m.Called(ctx, user, sid)
	return args.Error(0)
}

type mockExecutor struct {
	mock.Mock
}

func (m *mockExecutor) Execute(ctx context.Context, user, sid, commandLine string, opts executor.Opts) (executor.Result, error) {
	args := m.Called(ctx, user, sid, commandLine, opts)
	return args.Get(0).(executor.Result), args.Error(1)
}

type mockWorkspace struct {
	mock.Mock
}

func (m *mockWorkspace) List(ctx context.Context, containerID, relPath string) ([]workspace.Entry, error) {
	args := m.Called(ctx, containerID, relPath)
	if v := args.Get(0); v != nil {
		return v.([]workspace.Entry), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockWorkspace) Read(ctx context.Context, containerID, relPath string) (workspace.FileContent, error) {
	args := m.Called(ctx, containerID, relPath)
	return args.Get(0).(workspace.FileContent), args.Error(1)
}

func (m *mockWorkspace) Write(ctx context.Context, containerID, relPath string, content []byte) error {
	args := m.Called(ctx, containerID, relPath, content)
	return args.Error(0)
}

func (m *mockWorkspace) Delete(ctx context.Context, containerID, relPath string) error {
	args := m.Called(ctx, containerID, relPath)
	return args.Error(0)
}
