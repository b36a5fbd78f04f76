package containerdriver

import (
	"context"
	"io"

	"github.com/docker/docker/api/types/container"
)

// CopyFromContainer streams a tar archive of srcPath out of containerID,
// for the Workspace Gateway's read/list operations.
func (d *DockerDriver) CopyFromContainer(ctx context.Context, containerID, srcPath string) (io.ReadCloser, error) {
	reader, _, err := d.docker.CopyFromContainer(ctx, containerID, srcPath)
	if err != nil {
		return nil, mapErr("copy_from", err)
	}
	return reader, nil
}

// CopyToContainer uploads an uncompressed tar archive into containerID
// rooted at dstPath, for the Workspace Gateway's write/upload operations.
func (d *DockerDriver) CopyToContainer(ctx context.Context, containerID, dstPath string, content io.Reader) error {
	err := d.docker.CopyToContainer(ctx, containerID, dstPath, content, container.CopyToContainerOptions{})
	if err != nil {
		return mapErr("copy_to", err)
	}
	return nil
}
