package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stevehiehn/greenscreen/internal/session/tmuxcli"
)

// Screen size of a 24x80 display station.
const (
	screenWidth  = 80
	screenHeight = 24
)

// Tmux runs a curses 5250 emulator (tn5250) in a detached tmux pane and
// drives it with send-keys and capture-pane.
type Tmux struct {
	opts   Options
	logger *zap.Logger

	mu     sync.Mutex
	runner *tmuxcli.Runner
}

var _ Session = (*Tmux)(nil)

// NewTmux returns an unconnected tmux-hosted session.
func NewTmux(opts Options, logger *zap.Logger) *Tmux {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.TmuxPath == "" {
		opts.TmuxPath = "tmux"
	}
	if opts.Binary == "" {
		opts.Binary = "tn5250"
	}
	return &Tmux{opts: opts, logger: logger}
}

// EmulatorArgs returns the tn5250 command line for opts.
func EmulatorArgs(opts Options) []string {
	var args []string
	if opts.Model != "" {
		args = append(args, "env.TERM=IBM-"+opts.Model)
	}
	if cp := strings.TrimLeft(strings.TrimPrefix(strings.ToLower(opts.CodePage), "cp"), "0"); cp != "" {
		args = append(args, "map="+cp)
	}
	host := opts.Addr()
	if opts.TLS {
		host = "ssl:" + host
	}
	return append(args, host)
}

func (t *Tmux) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.runner != nil {
		return fmt.Errorf("tmux session already started")
	}

	socket := filepath.Join(os.TempDir(), fmt.Sprintf("greenscreen-%s.sock", uuid.NewString()[:8]))
	runner := tmuxcli.New(t.opts.TmuxPath, socket)

	args := []string{"new-session", "-d", "-x", fmt.Sprint(screenWidth), "-y", fmt.Sprint(screenHeight), "--", t.opts.Binary}
	args = append(args, EmulatorArgs(t.opts)...)
	if _, err := runner.RunContext(ctx, args...); err != nil {
		return fmt.Errorf("starting emulator: %w", err)
	}

	timeout := t.opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := runner.WaitForSession(waitCtx, 10*time.Millisecond); err != nil {
		_, _ = runner.Run("kill-server")
		return err
	}
	t.runner = runner
	t.logger.Info("tmux session started", zap.String("socket", socket), zap.String("model", t.opts.Model))
	return nil
}

func (t *Tmux) Disconnect() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.runner == nil {
		return nil
	}
	_, err := t.runner.Run("kill-server")
	_ = os.Remove(t.runner.SocketPath())
	t.runner = nil
	return err
}

// IsConnected reports whether the emulator pane is still alive.
func (t *Tmux) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.runner == nil {
		return false
	}
	out, err := t.runner.Run("list-panes", "-F", "#{pane_dead}")
	return err == nil && strings.TrimSpace(out) == "0"
}

func (t *Tmux) ScreenText() (string, error) {
	out, err := t.run("capture-pane", "-p")
	if err != nil {
		return "", err
	}
	return strings.TrimRight(out, "\n"), nil
}

func (t *Tmux) SendText(text string) error {
	_, err := t.run("send-keys", "-l", text)
	return err
}

func (t *Tmux) SendTab() error {
	return t.key(KeyTab)
}

func (t *Tmux) SendEnter() error {
	return t.key(KeyEnter)
}

func (t *Tmux) MoveToFirstInput() error {
	return t.key(KeyHome)
}

func (t *Tmux) key(k Key) error {
	_, err := t.run("send-keys", string(k))
	return err
}

func (t *Tmux) run(args ...string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.runner == nil {
		return "", ErrNotConnected
	}
	return t.runner.Run(args...)
}
