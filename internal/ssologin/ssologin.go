// Package ssologin shells out to the interactive SSO login command.
//
// The command opens a browser and blocks until the user finishes (or gives
// up). Success is defined by a valid token appearing in the cache afterward,
// not by the exit code, so callers re-scan the cache when Login returns.
package ssologin

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/awsgate/awsgate/internal/log"
)

// Runner invokes the external login command for one profile.
type Runner struct {
	// Command is the login command, e.g. ["aws", "sso", "login"]. The
	// profile selector "--profile <name>" is appended.
	Command []string
}

// NewRunner returns a Runner for the given command.
func NewRunner(command []string) *Runner {
	if len(command) == 0 {
		command = []string{"aws", "sso", "login"}
	}
	return &Runner{Command: command}
}

// Login runs the login command for profileName and waits for it to finish.
// Output is captured for diagnostics. The returned error is informational:
// resolution continues on the fallback path regardless.
func (r *Runner) Login(ctx context.Context, profileName string) error {
	args := append(append([]string{}, r.Command[1:]...), "--profile", profileName)
	cmd := exec.CommandContext(ctx, r.Command[0], args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// The device-code prompt needs the user's terminal.
	cmd.Stdin = os.Stdin

	log.Info("starting SSO login", "profile", profileName, "command", r.Command[0])

	if err := cmd.Run(); err != nil {
		log.Warn("SSO login command failed",
			"profile", profileName,
			"error", err,
			"stdout", stdout.String(),
			"stderr", stderr.String(),
		)
		return fmt.Errorf("sso login for profile %q: %w", profileName, err)
	}

	log.Debug("SSO login command finished", "profile", profileName, "stdout", stdout.String())
	return nil
}
