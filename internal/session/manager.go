package session

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"strconv"
	"time"

	"go.uber.org/zap"

	dagerrors "github.com/stevehiehn/greenscreen/internal/errors"
)

// Transport names.
const (
	TransportS3270 = "s3270"
	TransportTmux  = "tmux"
)

// Options describes how to reach the host.
type Options struct {
	Transport string        `yaml:"transport"`
	Host      string        `yaml:"host"`
	Port      int           `yaml:"port"`
	TLS       bool          `yaml:"ssl"`
	Model     string        `yaml:"model"`
	CodePage  string        `yaml:"codepage"`
	Timeout   time.Duration `yaml:"timeout"`
	// Binary overrides the emulator executable (s3270 or tn5250).
	Binary string `yaml:"binary,omitempty"`
	// TmuxPath overrides the tmux executable for the tmux transport.
	TmuxPath string `yaml:"tmux_path,omitempty"`
	// ConnectDelay is how long to wait after connecting before checking
	// the connection, giving the host time to paint the sign-on screen.
	ConnectDelay time.Duration `yaml:"connect_delay"`
}

// Addr returns host:port.
func (o Options) Addr() string {
	return net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
}

// Models returns the terminal models to try in order: the preferred model
// followed by the standard fallbacks, without duplicates.
func Models(preferred string) []string {
	candidates := []string{preferred, "3279-2", "3278-2", "3278-4"}
	seen := map[string]bool{}
	var models []string
	for _, m := range candidates {
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		models = append(models, m)
	}
	return models
}

// CheckBinary resolves an executable on PATH.
func CheckBinary(name string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", &dagerrors.RunError{
			Type:    dagerrors.ConnectionFailed,
			Message: fmt.Sprintf("%s not found in PATH", name),
			Hint:    fmt.Sprintf("Install %s with your package manager", name),
			Err:     err,
		}
	}
	return path, nil
}

// CheckHostReachable opens and closes a TCP connection to addr.
func CheckHostReachable(ctx context.Context, addr string, timeout time.Duration) error {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return &dagerrors.RunError{
			Type:      dagerrors.ConnectionFailed,
			Message:   fmt.Sprintf("host %s is not reachable", addr),
			Retryable: true,
			Hint:      "Check that the host is up, not blocked by a firewall and listening on the port",
			Err:       err,
		}
	}
	return conn.Close()
}

// Factory builds an unconnected session for one terminal model.
type Factory func(model string) Session

// ConnectWithFallback tries each model in turn and returns the first session
// that connects. Sessions that fail are disconnected before the next attempt.
func ConnectWithFallback(ctx context.Context, models []string, newSession Factory, delay time.Duration, logger *zap.Logger) (Session, string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var lastErr error
	for _, model := range models {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}
		logger.Info("trying connection", zap.String("model", model))
		s := newSession(model)
		err := s.Connect(ctx)
		if err == nil && delay > 0 {
			select {
			case <-ctx.Done():
				err = ctx.Err()
			case <-time.After(delay):
			}
		}
		if err == nil && !s.IsConnected() {
			err = fmt.Errorf("not connected after connect with model %s", model)
		}
		if err == nil {
			logger.Info("connected", zap.String("model", model))
			return s, model, nil
		}
		logger.Error("connection attempt failed", zap.String("model", model), zap.Error(err))
		lastErr = err
		_ = s.Disconnect()
	}
	return nil, "", &dagerrors.RunError{
		Type:      dagerrors.ConnectionFailed,
		Message:   fmt.Sprintf("could not connect with any terminal model %v", models),
		Retryable: true,
		Err:       lastErr,
	}
}

// Open validates the environment and connects with model fallback.
func Open(ctx context.Context, opts Options, logger *zap.Logger) (Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var newSession Factory
	switch opts.Transport {
	case "", TransportS3270:
		bin := opts.Binary
		if bin == "" {
			bin = "s3270"
		}
		path, err := CheckBinary(bin)
		if err != nil {
			return nil, err
		}
		newSession = func(model string) Session {
			o := opts
			o.Model = model
			o.Binary = path
			return NewEmulator(o, logger)
		}
	case TransportTmux:
		tmuxBin := opts.TmuxPath
		if tmuxBin == "" {
			tmuxBin = "tmux"
		}
		tmuxPath, err := CheckBinary(tmuxBin)
		if err != nil {
			return nil, err
		}
		bin := opts.Binary
		if bin == "" {
			bin = "tn5250"
		}
		path, err := CheckBinary(bin)
		if err != nil {
			return nil, err
		}
		newSession = func(model string) Session {
			o := opts
			o.Model = model
			o.Binary = path
			o.TmuxPath = tmuxPath
			return NewTmux(o, logger)
		}
	default:
		return nil, fmt.Errorf("unknown transport %q", opts.Transport)
	}

	if err := CheckHostReachable(ctx, opts.Addr(), 5*time.Second); err != nil {
		return nil, err
	}

	s, _, err := ConnectWithFallback(ctx, Models(opts.Model), newSession, opts.ConnectDelay, logger)
	return s, err
}

// With opens a session, runs fn against it and always disconnects, even when
// fn fails or panics.
func With(ctx context.Context, open func(context.Context) (Session, error), fn func(Terminal) error, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	s, err := open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		// The host may have dropped the link while the local client still
		// runs; Disconnect stops it either way.
		connected := s.IsConnected()
		if err := s.Disconnect(); err != nil {
			if connected {
				logger.Warn("disconnecting session", zap.Error(err))
			} else {
				logger.Debug("stopping closed session", zap.Error(err))
			}
			return
		}
		if !connected {
			logger.Info("connection already closed")
			return
		}
		logger.Info("disconnected")
	}()
	return fn(s)
}
