// Package executor implements execute(user, sid, command_line, timeout,
// working_dir) -> ExecResult: argv lexing, the whitelist defense-in-depth
// check, working-dir validation, and the timeout/output-capture contract
// the Container Driver enforces underneath it.
package executor

import (
	"context"
	"strings"
	"time"

	"github.com/sandboxlabs/sandboxd/internal/apperrors"
	"github.com/sandboxlabs/sandboxd/internal/config"
	"github.com/sandboxlabs/sandboxd/internal/containerdriver"
	"github.com/sandboxlabs/sandboxd/internal/registry"
)

// Result is what a single execute() call returns.
type Result struct {
	ExitCode   int
	Stdout     string
	Stderr     string
	TimedOut   bool
	Truncated  bool
	DurationMs int64
}

// Executor ties the Session Registry and Container Driver together behind
// the execute() contract.
type Executor struct {
	cfg      *config.Config
	registry *registry.Registry
	driver   containerdriver.Driver
}

func New(cfg *config.Config, reg *registry.Registry, driver containerdriver.Driver) *Executor {
	return &Executor{cfg: cfg, registry: reg, driver: driver}
}

// Opts controls a single Execute call.
type Opts struct {
	WorkingDir string
	Timeout    time.Duration

	// PreValidated indicates the caller (the HTTP layer, per spec §1) already
	// checked argv[0] against the command whitelist. The executor skips its
	// own check in that case rather than duplicating it against what may be
	// a different view of the same config.
	PreValidated bool
}

// Execute resolves the session's container and runs commandLine inside it.
// It never creates a session that doesn't already exist: a destroyed or
// never-created session surfaces as SessionNotFound, not a fresh container.
func (e *Executor) Execute(ctx context.Context, user, sid, commandLine string, opts Opts) (Result, error) {
	containerID, err := e.registry.Resolve(ctx, user, sid)
	if err != nil {
		return Result{}, err
	}

	argv, err := Lex(commandLine)
	if err != nil {
		return Result{}, apperrors.New(apperrors.KindCommandNotAllowed, "execute.lex", err)
	}

	if !opts.PreValidated && !e.isCommandAllowed(argv[0]) {
		return Result{}, apperrors.Newf(apperrors.KindCommandNotAllowed, "execute", "command not allowed: %s", argv[0])
	}

	workingDir := opts.WorkingDir
	if workingDir == "" {
		workingDir = "/workspace"
	}
	if !strings.HasPrefix(workingDir, "/workspace") && !strings.HasPrefix(workingDir, "/tmp") {
		return Result{}, apperrors.Newf(apperrors.KindPathInvalid, "execute", "working_dir must be under /workspace or /tmp: %s", workingDir)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = time.Duration(e.cfg.Defaults.MaxExecTimeoutMs) * time.Millisecond
	}
	maxTimeout := time.Duration(e.cfg.Defaults.MaxExecTimeoutMs) * time.Millisecond
	if timeout > maxTimeout {
		timeout = maxTimeout
	}

	start := time.Now()
	execRes, err := e.driver.Exec(ctx, containerID, argv, containerdriver.ExecOpts{
		WorkingDir:     workingDir,
		Timeout:        timeout,
		MaxOutputBytes: 1024 * 1024,
	})
	duration := time.Since(start)
	if err != nil {
		return Result{}, apperrors.New(apperrors.KindInternal, "execute.exec", err)
	}

	// A failed TTL refresh does not fail an exec that already ran.
	_ = e.registry.Touch(ctx, user, sid)

	exitCode := execRes.ExitCode
	if execRes.TimedOut {
		exitCode = 124
	}

	return Result{
		ExitCode:   exitCode,
		Stdout:     execRes.Stdout,
		Stderr:     execRes.Stderr,
		TimedOut:   execRes.TimedOut,
		Truncated:  execRes.Truncated,
		DurationMs: duration.Milliseconds(),
	}, nil
}

func (e *Executor) isCommandAllowed(cmd string) bool {
	if len(e.cfg.AllowedCommands) == 0 {
		return true
	}
	for _, allowed := range e.cfg.AllowedCommands {
		if allowed == cmd {
			return true
		}
	}
	return false
}
