package reaper

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sandboxlabs/sandboxd/internal/containerdriver"
	"github.com/sandboxlabs/sandboxd/internal/kvdir"
)

type mockDriver struct {
	mock.Mock
}

func (m *mockDriver) List(ctx context.Context) ([]containerdriver.ContainerInfo, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.([]containerdriver.ContainerInfo), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDriver) Remove(ctx context.Context, containerID string, force bool) error {
	args := m.Called(ctx, containerID, force)
	return args.Error(0)
}

type mockDirectory struct {
	mock.Mock
}

func (m *mockDirectory) GetSession(ctx context.Context, user, sid string) (kvdir.Record, bool, error) {
	args := m.Called(ctx, user, sid)
	rec, _ := args.Get(0).(kvdir.Record)
	return rec, args.Bool(1), args.Error(2)
}

func (m *mockDirectory) DeleteSession(ctx context.Context, user, sid string) error {
	args := m.Called(ctx, user, sid)
	return args.Error(0)
}

// fakeLocker runs fn inline but records every (user, sid) it was asked to
// lock, so tests can assert the reaper actually serializes removals through
// it rather than calling the driver directly.
type fakeLocker struct {
	calls []string
}

func (f *fakeLocker) WithSessionLock(user, sid string, fn func()) {
	f.calls = append(f.calls, user+"/"+sid)
	fn()
}
