package workspace

import (
	"context"
	"time"

	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/volume"
	"github.com/docker/docker/client"
)

// VolumeManager lists and removes the named persistent workspace volumes
// the Container Driver creates (spec §3's "Persistent volume" — created on
// demand, never removed by the reaper, removed only on explicit session
// delete). It is administrative tooling layered on top of the driver's
// VolumeCreate/VolumeRemove, useful for an operator auditing orphaned
// volumes across sessions.
type VolumeManager struct {
	docker *client.Client
}

// VolumeInfo describes a persistent workspace volume.
type VolumeInfo struct {
	Name      string            `json:"name"`
	CreatedAt time.Time         `json:"created_at"`
	Labels    map[string]string `json:"labels,omitempty"`
}

func NewVolumeManager(dockerClient *client.Client) *VolumeManager {
	return &VolumeManager{docker: dockerClient}
}

// List returns every volume the Container Driver has labeled as managed.
func (m *VolumeManager) List(ctx context.Context) ([]VolumeInfo, error) {
	f := filters.NewArgs()
	f.Add("label", "sandbox.managed=true")

	vols, err := m.docker.VolumeList(ctx, volume.ListOptions{Filters: f})
	if err != nil {
		return nil, err
	}

	result := make([]VolumeInfo, 0, len(vols.Volumes))
	for _, v := range vols.Volumes {
		info := VolumeInfo{Name: v.Name, Labels: v.Labels}
		if createdAt, err := time.Parse(time.RFC3339, v.CreatedAt); err == nil {
			info.CreatedAt = createdAt
		}
		result = append(result, info)
	}
	return result, nil
}

// Delete force-removes a named volume, ignoring NotFound.
func (m *VolumeManager) Delete(ctx context.Context, name string) error {
	err := m.docker.VolumeRemove(ctx, name, true)
	if err != nil && !client.IsErrNotFound(err) {
		return err
	}
	return nil
}
