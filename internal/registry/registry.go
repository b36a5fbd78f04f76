// Package registry implements the Session Registry: the per-session lock
// table and the resolve_or_create/touch/destroy contract that guarantees at
// most one container exists per (user_id, session_id) at any instant.
package registry

import (
	"context"
	"sync"
	"time"

	"github.com/sandboxlabs/sandboxd/internal/apperrors"
	"github.com/sandboxlabs/sandboxd/internal/config"
	"github.com/sandboxlabs/sandboxd/internal/containerdriver"
	"github.com/sandboxlabs/sandboxd/internal/kvdir"
)

// skipInspectWindow is how recently a KV write must have happened for
// ResolveOrCreate to skip the extra inspect call.
const skipInspectWindow = 2 * time.Second

type lockEntry struct {
	mu  sync.Mutex
	ref int
}

// Registry owns session->container lifecycle. It is safe for concurrent use.
type Registry struct {
	cfg    *config.Config
	kv     kvdir.Directory
	driver containerdriver.Driver

	locksMu sync.Mutex
	locks   map[string]*lockEntry

	// lastWrite tracks when a given (user,sid) key was last put_session'd or
	// touched, to support the 2-second inspect-skip optimization.
	lastWriteMu sync.Mutex
	lastWrite   map[string]time.Time
}

// New builds a Registry over the given KV directory and container driver.
func New(cfg *config.Config, kv kvdir.Directory, driver containerdriver.Driver) *Registry {
	return &Registry{
		cfg:       cfg,
		kv:        kv,
		driver:    driver,
		locks:     make(map[string]*lockEntry),
		lastWrite: make(map[string]time.Time),
	}
}

func sessionKey(user, sid string) string {
	return user + "\x00" + sid
}

// acquire locks the (user, sid) key, creating its lock table entry if
// absent, and returns a release function.
func (r *Registry) acquire(user, sid string) func() {
	key := sessionKey(user, sid)

	r.locksMu.Lock()
	entry, ok := r.locks[key]
	if !ok {
		entry = &lockEntry{}
		r.locks[key] = entry
	}
	entry.ref++
	r.locksMu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		r.locksMu.Lock()
		entry.ref--
		if entry.ref == 0 {
			delete(r.locks, key)
		}
		r.locksMu.Unlock()
	}
}

// WithSessionLock runs fn while holding the (user, sid) lock, the same lock
// ResolveOrCreate/Resolve/Touch/Destroy acquire around their KV+engine calls.
// The reaper uses this to serialize container removal against a concurrent
// session creation: without it, a sweep could observe a container between
// its Create and its PutSession and remove it as an orphan.
func (r *Registry) WithSessionLock(user, sid string, fn func()) {
	release := r.acquire(user, sid)
	defer release()
	fn()
}

func (r *Registry) recordWrite(user, sid string) {
	r.lastWriteMu.Lock()
	r.lastWrite[sessionKey(user, sid)] = time.Now()
	r.lastWriteMu.Unlock()
}

func (r *Registry) recentlyWritten(user, sid string) bool {
	r.lastWriteMu.Lock()
	defer r.lastWriteMu.Unlock()
	t, ok := r.lastWrite[sessionKey(user, sid)]
	return ok && time.Since(t) < skipInspectWindow
}

func (r *Registry) forgetWrite(user, sid string) {
	r.lastWriteMu.Lock()
	delete(r.lastWrite, sessionKey(user, sid))
	r.lastWriteMu.Unlock()
}

// CreateOpts configures a session being created for the first time; an
// existing live session ignores these.
type CreateOpts struct {
	Image   string
	Persist bool
}

// ResolveOrCreate returns a running container bound to (user, sid),
// creating a brand new session if none exists yet or the recorded one is
// missing/dead. This is the op behind explicit session creation (POST
// /sessions): it is the only path that may mint a session that never
// existed before.
func (r *Registry) ResolveOrCreate(ctx context.Context, user, sid string, opts CreateOpts) (string, error) {
	release := r.acquire(user, sid)
	defer release()

	rec, ok, err := r.kv.GetSession(ctx, user, sid)
	if err != nil {
		return "", apperrors.New(apperrors.KindInternal, "resolve_or_create", err)
	}

	if ok {
		if containerID, fresh := r.liveContainer(ctx, user, sid, rec); fresh {
			return containerID, nil
		}
		// Absent or not running: fall through to recreate under the same
		// image/persist settings the session was first created with.
		return r.createContainer(ctx, user, sid, rec.Image, rec.Persist, "resolve_or_create")
	}

	image := opts.Image
	if image == "" {
		image = r.cfg.DefaultImage
	}
	return r.createContainer(ctx, user, sid, image, opts.Persist, "resolve_or_create")
}

// Resolve returns the running container bound to (user, sid), recreating it
// under its original image/persist settings if the bound container died,
// but never minting a session that was never explicitly created. Returns
// SessionNotFound if (user, sid) has no KV record — in particular, after an
// explicit Destroy.
func (r *Registry) Resolve(ctx context.Context, user, sid string) (string, error) {
	release := r.acquire(user, sid)
	defer release()

	rec, ok, err := r.kv.GetSession(ctx, user, sid)
	if err != nil {
		return "", apperrors.New(apperrors.KindInternal, "resolve", err)
	}
	if !ok {
		return "", apperrors.Newf(apperrors.KindSessionNotFound, "resolve", "session %s/%s not found", user, sid)
	}

	if containerID, fresh := r.liveContainer(ctx, user, sid, rec); fresh {
		return containerID, nil
	}
	return r.createContainer(ctx, user, sid, rec.Image, rec.Persist, "resolve")
}

// liveContainer reports whether rec's container is still live, refreshing
// the session TTL if so; a failed refresh does not change the answer.
// Caller must hold the (user, sid) lock.
func (r *Registry) liveContainer(ctx context.Context, user, sid string, rec kvdir.Record) (string, bool) {
	ttl := time.Duration(r.cfg.SessionTTLSeconds) * time.Second

	if r.recentlyWritten(user, sid) {
		_ = r.kv.RefreshTTL(ctx, user, sid, ttl)
		return rec.ContainerID, true
	}

	info, err := r.driver.Inspect(ctx, rec.ContainerID)
	if err == nil && info.Running {
		_ = r.kv.RefreshTTL(ctx, user, sid, ttl)
		return rec.ContainerID, true
	}
	return "", false
}

// createContainer builds a fresh container for (user, sid) under image and
// persist, writing the KV binding and rolling the container back if that
// write fails. Caller must hold the (user, sid) lock.
func (r *Registry) createContainer(ctx context.Context, user, sid, image string, persist bool, op string) (string, error) {
	ttl := time.Duration(r.cfg.SessionTTLSeconds) * time.Second

	var volumeName string
	if persist {
		volumeName = r.driver.VolumeName(user, sid)
		if err := r.driver.VolumeCreate(ctx, volumeName); err != nil {
			return "", apperrors.New(apperrors.KindInternal, op+".volume_create", err)
		}
	}

	containerID, err := r.driver.Create(ctx, containerdriver.CreateOpts{
		UserID:     user,
		SessionID:  sid,
		Image:      image,
		Defaults:   r.cfg.Defaults,
		Persist:    persist,
		VolumeName: volumeName,
		CreatedAt:  time.Now().Unix(),
	})
	if err != nil {
		return "", apperrors.New(apperrors.KindInternal, op+".create", err)
	}

	rec := kvdir.Record{ContainerID: containerID, VolumeName: volumeName, Image: image, Persist: persist}
	if err := r.kv.PutSession(ctx, user, sid, rec, ttl); err != nil {
		// put_session failed after a successful start: remove the
		// container so the KV never omits a binding to a live one and the
		// engine never holds a container the caller never learned about.
		r.driver.Remove(ctx, containerID, true)
		return "", apperrors.New(apperrors.KindInternal, op+".put_session", err)
	}
	r.recordWrite(user, sid)

	return containerID, nil
}

// Touch refreshes the session's TTL without affecting the container.
func (r *Registry) Touch(ctx context.Context, user, sid string) error {
	release := r.acquire(user, sid)
	defer release()

	ttl := time.Duration(r.cfg.SessionTTLSeconds) * time.Second
	if err := r.kv.RefreshTTL(ctx, user, sid, ttl); err != nil {
		return apperrors.New(apperrors.KindInternal, "touch", err)
	}
	r.recordWrite(user, sid)
	return nil
}

// Destroy removes the session's container and, if persisted, its volume.
func (r *Registry) Destroy(ctx context.Context, user, sid string) error {
	release := r.acquire(user, sid)
	defer release()

	rec, ok, err := r.kv.GetSession(ctx, user, sid)
	if err != nil {
		return apperrors.New(apperrors.KindInternal, "destroy", err)
	}
	if !ok {
		return apperrors.Newf(apperrors.KindSessionNotFound, "destroy", "session %s/%s not found", user, sid)
	}

	if err := r.driver.Remove(ctx, rec.ContainerID, true); err != nil {
		if containerdriver.KindOf(err) != containerdriver.KindNotFound {
			return apperrors.New(apperrors.KindInternal, "destroy.remove", err)
		}
	}

	if err := r.kv.DeleteSession(ctx, user, sid); err != nil {
		return apperrors.New(apperrors.KindInternal, "destroy.delete_session", err)
	}
	r.forgetWrite(user, sid)

	if rec.VolumeName != "" {
		if err := r.driver.VolumeRemove(ctx, rec.VolumeName, true); err != nil {
			return apperrors.New(apperrors.KindInternal, "destroy.volume_remove", err)
		}
	}

	return nil
}
