package containerdriver

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/pkg/stdcopy"
)

// ExecOpts controls a single Exec call.
type ExecOpts struct {
	WorkingDir string
	Env        []string
	Timeout    time.Duration
	MaxOutputBytes int // per stream; 0 means unbounded
}

// ExecResult is what a command execution produced.
type ExecResult struct {
	Stdout     string
	Stderr     string
	ExitCode   int
	TimedOut   bool
	Truncated  bool
}

// Exec runs argv inside containerID via the engine's native exec facility
// and waits up to opts.Timeout for it to finish, demultiplexing stdout and
// stderr. On timeout, the exec's process group is killed and ExitCode is
// set to 124.
func (d *DockerDriver) Exec(ctx context.Context, containerID string, argv []string, opts ExecOpts) (ExecResult, error) {
	execCfg := container.ExecOptions{
		Cmd:          argv,
		Env:          opts.Env,
		WorkingDir:   opts.WorkingDir,
		AttachStdout: true,
		AttachStderr: true,
	}

	execResp, err := d.docker.ContainerExecCreate(ctx, containerID, execCfg)
	if err != nil {
		return ExecResult{}, mapErr("exec_create", err)
	}

	attachResp, err := d.docker.ContainerExecAttach(ctx, execResp.ID, container.ExecAttachOptions{})
	if err != nil {
		return ExecResult{}, mapErr("exec_attach", err)
	}
	defer attachResp.Close()

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type copyResult struct {
		stdoutBuf, stderrBuf bytes.Buffer
		stdoutW, stderrW     *boundedWriter
		err                  error
	}
	done := make(chan copyResult, 1)
	go func() {
		var cr copyResult
		cr.stdoutW = limitWriter(&cr.stdoutBuf, opts.MaxOutputBytes)
		cr.stderrW = limitWriter(&cr.stderrBuf, opts.MaxOutputBytes)
		_, cr.err = stdcopy.StdCopy(cr.stdoutW, cr.stderrW, attachResp.Reader)
		done <- cr
	}()

	var res ExecResult
	select {
	case cr := <-done:
		if cr.err != nil {
			return ExecResult{}, mapErr("exec_read", cr.err)
		}
		res.Stdout = cr.stdoutBuf.String()
		res.Stderr = cr.stderrBuf.String()
		res.Truncated = cr.stdoutW.truncated() || cr.stderrW.truncated()
	case <-execCtx.Done():
		d.killExec(ctx, containerID, execResp.ID)
		res.TimedOut = true
		res.ExitCode = 124
		return res, nil
	}

	inspect, err := d.docker.ContainerExecInspect(ctx, execResp.ID)
	if err != nil {
		res.ExitCode = -1
		return res, nil
	}
	res.ExitCode = inspect.ExitCode

	return res, nil
}

// killExec sends a best-effort kill against the exec's own process group,
// identified via ContainerExecInspect's Pid field — never the container's
// PID 1. The container's entrypoint must survive a timeout so successive
// commands can keep reusing it.
func (d *DockerDriver) killExec(ctx context.Context, containerID, execID string) {
	inspect, err := d.docker.ContainerExecInspect(ctx, execID)
	if err != nil || inspect.Pid == 0 {
		return
	}
	killCfg := container.ExecOptions{
		Cmd: []string{"/bin/sh", "-c", fmt.Sprintf("kill -9 -%d 2>/dev/null || true", inspect.Pid)},
	}
	killResp, err := d.docker.ContainerExecCreate(ctx, containerID, killCfg)
	if err != nil {
		return
	}
	d.docker.ContainerExecStart(ctx, killResp.ID, container.ExecStartOptions{})
}

// boundedWriter caps writes at limit bytes, dropping the remainder.
type boundedWriter struct {
	buf    *bytes.Buffer
	limit  int
	wrote  int
}

func (w *boundedWriter) Write(p []byte) (int, error) {
	if w.limit <= 0 {
		return w.buf.Write(p)
	}
	remaining := w.limit - w.wrote
	if remaining <= 0 {
		w.wrote += len(p)
		return len(p), nil
	}
	if len(p) > remaining {
		w.buf.Write(p[:remaining])
		w.wrote += len(p)
		return len(p), nil
	}
	w.buf.Write(p)
	w.wrote += len(p)
	return len(p), nil
}

func limitWriter(buf *bytes.Buffer, limit int) *boundedWriter {
	return &boundedWriter{buf: buf, limit: limit}
}

func (w *boundedWriter) truncated() bool {
	return w.limit > 0 && w.wrote > w.limit
}
