// Package containerdriver is the typed interface over the container engine:
// create, start, exec, inspect, remove, list-by-label, volume create/remove.
// It hides Docker-specific error shapes behind the five-kind taxonomy in
// errors.go.
package containerdriver

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/volume"
	"github.com/docker/docker/client"
	"github.com/docker/go-units"

	"github.com/sandboxlabs/sandboxd/internal/config"
)

const labelPrefix = "sandbox."

// CreateOpts describes a new sandbox container (spec §4.2's "spec").
type CreateOpts struct {
	UserID      string
	SessionID   string
	Image       string
	Defaults    config.Defaults
	Persist     bool   // mount a named volume instead of tmpfs at /workspace
	VolumeName  string // required when Persist is true
	Labels      map[string]string
	CreatedAt   int64 // unix seconds, stamped as a label for the reaper
}

// ContainerInfo is a minimal listing/inspect result.
type ContainerInfo struct {
	ContainerID string
	SessionID   string
	UserID      string
	Running     bool
	CreatedAt   int64
}

// Driver is the container engine abstraction the Session Registry and
// Reaper depend on.
type Driver interface {
	Create(ctx context.Context, opts CreateOpts) (containerID string, err error)
	Inspect(ctx context.Context, containerID string) (ContainerInfo, error)
	Remove(ctx context.Context, containerID string, force bool) error
	List(ctx context.Context) ([]ContainerInfo, error)

	VolumeName(userID, sessionID string) string
	VolumeCreate(ctx context.Context, name string) error
	VolumeRemove(ctx context.Context, name string, force bool) error

	Exec(ctx context.Context, containerID string, argv []string, opts ExecOpts) (ExecResult, error)

	CopyFromContainer(ctx context.Context, containerID, srcPath string) (io.ReadCloser, error)
	CopyToContainer(ctx context.Context, containerID, dstPath string, content io.Reader) error

	Close() error
}

// DockerDriver implements Driver against a real Docker daemon.
type DockerDriver struct {
	docker *client.Client
}

// New dials the Docker daemon using the standard environment variables
// (DOCKER_HOST, DOCKER_TLS_VERIFY, ...).
func New() (*DockerDriver, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("containerdriver: new client: %w", err)
	}
	return &DockerDriver{docker: cli}, nil
}

// NewFromClient wraps an already-constructed client; used by tests with a
// fake transport.
func NewFromClient(cli *client.Client) *DockerDriver {
	return &DockerDriver{docker: cli}
}

func (d *DockerDriver) Close() error {
	return d.docker.Close()
}

// Ping verifies the Docker daemon is reachable.
func (d *DockerDriver) Ping(ctx context.Context) error {
	_, err := d.docker.Ping(ctx)
	return mapErr("ping", err)
}

// VolumeName deterministically names the persistent workspace volume for a
// (user, session) pair so the same session_id under two different user_ids
// never collides.
func (d *DockerDriver) VolumeName(userID, sessionID string) string {
	sum := sha256.Sum256([]byte(userID + "|" + sessionID))
	return "sandbox-ws-" + hex.EncodeToString(sum[:])
}

func (d *DockerDriver) Create(ctx context.Context, opts CreateOpts) (string, error) {
	labels := map[string]string{
		labelPrefix + "managed":    "true",
		labelPrefix + "user_id":    opts.UserID,
		labelPrefix + "session_id": opts.SessionID,
		labelPrefix + "created_at": fmt.Sprintf("%d", opts.CreatedAt),
	}
	for k, v := range opts.Labels {
		labels[k] = v
	}

	resources := container.Resources{
		NanoCPUs:  int64(opts.Defaults.CPULimit * 1e9),
		Memory:    int64(opts.Defaults.MemLimitMB) * 1024 * 1024,
		PidsLimit: int64Ptr(int64(opts.Defaults.PidsLimit)),
		Ulimits: []*units.Ulimit{
			{Name: "nofile", Soft: 1024, Hard: 2048},
		},
	}

	tmpfsSize := int64(opts.Defaults.TmpfsSizeMB) * units.MiB
	if tmpfsSize <= 0 {
		tmpfsSize = 64 * units.MiB
	}

	var workspaceMount mount.Mount
	if opts.Persist {
		workspaceMount = mount.Mount{
			Type:   mount.TypeVolume,
			Source: opts.VolumeName,
			Target: "/workspace",
		}
	} else {
		workspaceMount = mount.Mount{
			Type:   mount.TypeTmpfs,
			Target: "/workspace",
			TmpfsOptions: &mount.TmpfsOptions{
				SizeBytes: tmpfsSize,
				Options:   [][]string{{"noexec"}, {"nosuid"}},
			},
		}
	}

	hostCfg := &container.HostConfig{
		Resources:      resources,
		AutoRemove:     false,
		ReadonlyRootfs: opts.Defaults.ReadonlyRootfs,
		SecurityOpt:    []string{"no-new-privileges:true"},
		CapDrop:        []string{"ALL"},
		Mounts: []mount.Mount{
			workspaceMount,
			{
				Type:   mount.TypeTmpfs,
				Target: "/tmp",
				TmpfsOptions: &mount.TmpfsOptions{
					SizeBytes: tmpfsSize,
					Options:   [][]string{{"noexec"}, {"nosuid"}},
				},
			},
		},
	}

	if opts.Defaults.NetworkMode != "" {
		hostCfg.NetworkMode = container.NetworkMode(opts.Defaults.NetworkMode)
	} else {
		hostCfg.NetworkMode = "none"
	}

	containerCfg := &container.Config{
		Image:      opts.Image,
		Labels:     labels,
		Tty:        false,
		User:       "1000:1000",
		WorkingDir: "/workspace",
		Entrypoint: []string{"/bin/sh"},
		Cmd:        []string{"-c", "while :; do sleep 3600; done"},
	}

	name := "sandbox-" + opts.SessionID
	resp, err := d.docker.ContainerCreate(ctx, containerCfg, hostCfg, nil, nil, name)
	if err != nil {
		return "", mapErr("create", err)
	}

	if err := d.docker.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		d.docker.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true})
		return "", mapErr("start", err)
	}

	return resp.ID, nil
}

func (d *DockerDriver) Inspect(ctx context.Context, containerID string) (ContainerInfo, error) {
	info, err := d.docker.ContainerInspect(ctx, containerID)
	if err != nil {
		return ContainerInfo{}, mapErr("inspect", err)
	}

	var createdAt int64
	fmt.Sscanf(info.Config.Labels[labelPrefix+"created_at"], "%d", &createdAt)

	return ContainerInfo{
		ContainerID: info.ID,
		SessionID:   info.Config.Labels[labelPrefix+"session_id"],
		UserID:      info.Config.Labels[labelPrefix+"user_id"],
		Running:     info.State != nil && info.State.Running,
		CreatedAt:   createdAt,
	}, nil
}

func (d *DockerDriver) Remove(ctx context.Context, containerID string, force bool) error {
	err := d.docker.ContainerRemove(ctx, containerID, container.RemoveOptions{
		Force:         force,
		RemoveVolumes: true,
	})
	if err != nil && !client.IsErrNotFound(err) {
		return mapErr("remove", err)
	}
	return nil
}

func (d *DockerDriver) List(ctx context.Context) ([]ContainerInfo, error) {
	f := filters.NewArgs()
	f.Add("label", labelPrefix+"managed=true")

	containers, err := d.docker.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: f,
	})
	if err != nil {
		return nil, mapErr("list", err)
	}

	result := make([]ContainerInfo, 0, len(containers))
	for _, ctr := range containers {
		sessionID := ctr.Labels[labelPrefix+"session_id"]
		if sessionID == "" {
			continue
		}
		var createdAt int64
		fmt.Sscanf(ctr.Labels[labelPrefix+"created_at"], "%d", &createdAt)
		result = append(result, ContainerInfo{
			ContainerID: ctr.ID,
			SessionID:   sessionID,
			UserID:      ctr.Labels[labelPrefix+"user_id"],
			Running:     ctr.State == "running",
			CreatedAt:   createdAt,
		})
	}
	return result, nil
}

func (d *DockerDriver) VolumeCreate(ctx context.Context, name string) error {
	_, err := d.docker.VolumeCreate(ctx, volume.CreateOptions{
		Name:   name,
		Labels: map[string]string{labelPrefix + "managed": "true"},
	})
	if err != nil {
		return mapErr("volume_create", err)
	}
	return nil
}

func (d *DockerDriver) VolumeRemove(ctx context.Context, name string, force bool) error {
	err := d.docker.VolumeRemove(ctx, name, force)
	if err != nil && !client.IsErrNotFound(err) {
		return mapErr("volume_remove", err)
	}
	return nil
}

func int64Ptr(v int64) *int64 { return &v }
