package containerdriver

import (
	"context"
	"errors"
	"fmt"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/client"
)

// Kind is the engine-error taxonomy the driver maps every Docker client
// error onto, so callers never need to inspect Docker-specific error types.
type Kind int

const (
	KindOther Kind = iota
	KindNotFound
	KindConflict
	KindTimeout
	KindEngineUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindConflict:
		return "Conflict"
	case KindTimeout:
		return "Timeout"
	case KindEngineUnavailable:
		return "EngineUnavailable"
	default:
		return "Other"
	}
}

// EngineError wraps an underlying Docker client error with its Kind.
type EngineError struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("containerdriver: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }

// mapErr classifies a raw Docker client error into an EngineError.
func mapErr(op string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case client.IsErrNotFound(err):
		return &EngineError{Kind: KindNotFound, Op: op, Err: err}
	case errdefs.IsConflict(err):
		return &EngineError{Kind: KindConflict, Op: op, Err: err}
	case client.IsErrConnectionFailed(err):
		return &EngineError{Kind: KindEngineUnavailable, Op: op, Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &EngineError{Kind: KindTimeout, Op: op, Err: err}
	}

	return &EngineError{Kind: KindOther, Op: op, Err: err}
}

// KindOf extracts the Kind from err, defaulting to KindOther.
func KindOf(err error) Kind {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindOther
}
