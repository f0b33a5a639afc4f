// Package tmuxcli runs tmux commands against a private server socket. The
// tmux transport uses it to host a curses 5250 emulator in a detached pane.
package tmuxcli

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Runner executes tmux commands against one server socket.
type Runner struct {
	tmuxPath   string
	socketPath string
}

// New creates a Runner bound to the given tmux binary and socket path.
func New(tmuxPath, socketPath string) *Runner {
	return &Runner{tmuxPath: tmuxPath, socketPath: socketPath}
}

// Run executes a tmux command and returns its stdout.
func (r *Runner) Run(args ...string) (string, error) {
	return r.RunContext(context.Background(), args...)
}

// RunContext is Run bound to ctx.
func (r *Runner) RunContext(ctx context.Context, args ...string) (string, error) {
	full := append([]string{"-S", r.socketPath}, args...)
	cmd := exec.CommandContext(ctx, r.tmuxPath, full...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		op := ""
		if len(args) > 0 {
			op = args[0]
		}
		return "", &Error{Op: op, Args: full, Stderr: strings.TrimSpace(stderr.String()), Err: err}
	}
	return stdout.String(), nil
}

// SocketPath returns the socket path used by this runner.
func (r *Runner) SocketPath() string {
	return r.socketPath
}

// Error is a failed tmux invocation.
type Error struct {
	Op     string
	Args   []string
	Stderr string
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("tmux %s failed: %v", e.Op, e.Err)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Version runs "tmux -V" and returns the version, e.g. "3.4".
func Version(tmuxPath string) (string, error) {
	out, err := exec.Command(tmuxPath, "-V").Output()
	if err != nil {
		return "", fmt.Errorf("tmux -V: %w", err)
	}
	return strings.TrimPrefix(strings.TrimSpace(string(out)), "tmux "), nil
}

// WaitForSession polls until the server answers list-panes or ctx ends.
func (r *Runner) WaitForSession(ctx context.Context, poll time.Duration) error {
	for {
		_, err := r.RunContext(ctx, "list-panes", "-F", "#{pane_id}")
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("tmux session not ready: %w", err)
		case <-time.After(poll):
		}
	}
}
