// Package reaper periodically enumerates containers carrying the service's
// managed label and removes ones past their age limit or no longer backed
// by a matching KV session record, reconciling engine reality with KV
// state.
package reaper

import (
	"context"
	"log/slog"
	"time"

	"github.com/sandboxlabs/sandboxd/internal/containerdriver"
	"github.com/sandboxlabs/sandboxd/internal/kvdir"
)

// Driver is the subset of containerdriver.Driver the reaper needs.
type Driver interface {
	List(ctx context.Context) ([]containerdriver.ContainerInfo, error)
	Remove(ctx context.Context, containerID string, force bool) error
}

// Directory is the subset of kvdir.Directory the reaper needs.
type Directory interface {
	GetSession(ctx context.Context, user, sid string) (kvdir.Record, bool, error)
	DeleteSession(ctx context.Context, user, sid string) error
}

// Locker serializes a removal decision against the registry's own
// create/resolve path for the same (user, sid), so the reaper can never
// remove a container the registry is mid-way through creating. Satisfied by
// *registry.Registry's WithSessionLock.
type Locker interface {
	WithSessionLock(user, sid string, fn func())
}

type Reaper struct {
	dir      Directory
	driver   Driver
	locker   Locker
	interval time.Duration
	maxAge   time.Duration
	logger   *slog.Logger
}

func New(dir Directory, driver Driver, locker Locker, interval, maxAge time.Duration, logger *slog.Logger) *Reaper {
	return &Reaper{
		dir:      dir,
		driver:   driver,
		locker:   locker,
		interval: interval,
		maxAge:   maxAge,
		logger:   logger,
	}
}

// Run starts the reaper loop. It blocks until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	r.logger.Info("reaper started", "interval", r.interval, "max_age", r.maxAge)

	r.sweep(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reaper stopped")
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

// sweep enumerates every managed container once and applies both the
// age-based reap and the KV-reconciliation rule to each. Persistent
// volumes are never touched here; only destroy() removes them.
func (r *Reaper) sweep(ctx context.Context) {
	containers, err := r.driver.List(ctx)
	if err != nil {
		r.logger.Error("reaper: list containers", "error", err)
		return
	}

	now := time.Now().Unix()
	var reaped int

	for _, c := range containers {
		if c.SessionID == "" {
			continue
		}

		if r.sweepOne(ctx, c, now) {
			reaped++
		}
	}

	if reaped > 0 {
		r.logger.Info("reaper: swept containers", "reaped", reaped, "total", len(containers))
	}
}

// sweepOne applies the age-based and orphan-reconciliation rules to a single
// container, holding the registry's per-session lock across the
// check-then-remove so a concurrent ResolveOrCreate can never have its
// freshly created container pulled out from under it.
func (r *Reaper) sweepOne(ctx context.Context, c containerdriver.ContainerInfo, now int64) bool {
	var reaped bool

	r.locker.WithSessionLock(c.UserID, c.SessionID, func() {
		age := time.Duration(now-c.CreatedAt) * time.Second
		if r.maxAge > 0 && age > r.maxAge {
			r.logger.Info("reaper: removing aged-out container",
				"container_id", shortID(c.ContainerID), "session_id", c.SessionID, "age", age)
			if err := r.driver.Remove(ctx, c.ContainerID, true); err != nil {
				r.logger.Error("reaper: remove container", "session_id", c.SessionID, "error", err)
				return
			}
			if err := r.dir.DeleteSession(ctx, c.UserID, c.SessionID); err != nil {
				r.logger.Error("reaper: delete session", "session_id", c.SessionID, "error", err)
			}
			reaped = true
			return
		}

		rec, ok, err := r.dir.GetSession(ctx, c.UserID, c.SessionID)
		if err != nil {
			r.logger.Error("reaper: get session", "session_id", c.SessionID, "error", err)
			return
		}
		if !ok || rec.ContainerID != c.ContainerID {
			r.logger.Warn("reaper: orphan container with no matching session record, removing",
				"container_id", shortID(c.ContainerID), "session_id", c.SessionID)
			if err := r.driver.Remove(ctx, c.ContainerID, true); err != nil {
				r.logger.Error("reaper: remove orphan container", "session_id", c.SessionID, "error", err)
				return
			}
			reaped = true
		}
	})

	return reaped
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
