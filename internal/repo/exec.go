package repo

import (
	"context"
	"os/exec"
	"strings"
	"time"

	"relic/internal/relicerr"
)

// runGit executes a git command in dir with a timeout and returns trimmed
// stdout. Stderr from a non-zero exit is attached to the returned error.
func runGit(ctx context.Context, dir string, timeout time.Duration, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}

	output, err := cmd.Output()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", relicerr.New(relicerr.Timeout, "git command timed out", err).
				WithDetails(map[string]interface{}{"args": args, "timeout": timeout.String()})
		}
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", relicerr.New(relicerr.ToolFailure, "git command failed", err).
				WithDetails(map[string]interface{}{
					"args":   args,
					"stderr": strings.TrimSpace(string(exitErr.Stderr)),
				})
		}
		return "", relicerr.New(relicerr.ToolFailure, "failed to execute git", err).
			WithDetails(map[string]interface{}{"args": args})
	}

	return strings.TrimSpace(string(output)), nil
}
