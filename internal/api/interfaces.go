package api

import (
	"context"

	"github.com/sandboxlabs/sandboxd/internal/executor"
	"github.com/sandboxlabs/sandboxd/internal/registry"
	"github.com/sandboxlabs/sandboxd/internal/workspace"
)

// SessionRegistry is the subset of internal/registry.Registry the HTTP
// layer depends on.
type SessionRegistry interface {
	ResolveOrCreate(ctx context.Context, user, sid string, opts registry.CreateOpts) (string, error)
	Resolve(ctx context.Context, user, sid string) (string, error)
	Destroy(ctx context.Context, user, sid string) error
}

// Executor is the subset of internal/executor.Executor the HTTP layer
// depends on.
type Executor interface {
	Execute(ctx context.Context, user, sid, commandLine string, opts executor.Opts) (executor.Result, error)
}

// Workspace is the subset of internal/workspace.Gateway the HTTP layer
// depends on.
type Workspace interface {
	List(ctx context.Context, containerID, relPath string) ([]workspace.Entry, error)
	Read(ctx context.Context, containerID, relPath string) (workspace.FileContent, error)
	Write(ctx context.Context, containerID, relPath string, content []byte) error
	Delete(ctx context.Context, containerID, relPath string) error
}
