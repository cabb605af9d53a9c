// Package pulse reads endpoints and sessions from PulseAudio or PipeWire
// through the pactl command.
package pulse

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const commandTimeout = 3 * time.Second

// Runner runs one pactl invocation and returns its stdout.
type Runner interface {
	Run(ctx context.Context, args ...string) ([]byte, error)
}

// ExecRunner runs a pactl-compatible binary.
type ExecRunner struct {
	command string
}

func NewExecRunner(command string) *ExecRunner {
	if command == "" {
		command = "pactl"
	}
	return &ExecRunner{command: command}
}

func (r *ExecRunner) Run(ctx context.Context, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("%s %s: %w: %s", r.command, strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
		}
		return nil, fmt.Errorf("failed to run %s: %w", r.command, err)
	}
	return stdout.Bytes(), nil
}
