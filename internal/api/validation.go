package api

import (
	"fmt"
	"regexp"

	"github.com/sandboxlabs/sandboxd/internal/apperrors"
	"github.com/sandboxlabs/sandboxd/internal/executor"
)

// sessionIDPattern accepts short caller-chosen identifiers: letters,
// digits, dots, hyphens, underscores, up to 64 characters (spec §3). It
// must reject anything that could act as a path segment escape, since sid
// ends up in KV keys and log lines, not filesystem paths — the Workspace
// Gateway does its own independent path canonicalization regardless.
var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,64}$`)

// ValidateSessionID returns an error if id is not a well-formed session ID.
func ValidateSessionID(id string) error {
	if id == "" {
		return fmt.Errorf("session_id is required")
	}
	if !sessionIDPattern.MatchString(id) {
		return fmt.Errorf("session_id must match %s", sessionIDPattern.String())
	}
	return nil
}

func validateExecuteRequest(req executeRequest) error {
	if req.SessionID == "" {
		return fmt.Errorf("session_id is required")
	}
	if err := ValidateSessionID(req.SessionID); err != nil {
		return err
	}
	if req.Command == "" {
		return fmt.Errorf("command is required")
	}
	if req.TimeoutMs < 0 {
		return fmt.Errorf("timeout must be non-negative")
	}
	return nil
}

// checkCommandAllowed is the HTTP-layer half of the argv[0] whitelist check
// (spec §1): input validation belongs here, before the core ever sees the
// request, not inside the Executor. An empty allowlist means unrestricted.
func checkCommandAllowed(commandLine string, allowed []string) error {
	if len(allowed) == 0 {
		return nil
	}
	argv, err := executor.Lex(commandLine)
	if err != nil {
		return apperrors.New(apperrors.KindCommandNotAllowed, "execute.lex", err)
	}
	for _, a := range allowed {
		if a == argv[0] {
			return nil
		}
	}
	return apperrors.Newf(apperrors.KindCommandNotAllowed, "execute", "command not allowed: %s", argv[0])
}

func validateCreateSessionRequest(req createSessionRequest) error {
	if req.SessionID == "" {
		return fmt.Errorf("session_id is required")
	}
	return ValidateSessionID(req.SessionID)
}
