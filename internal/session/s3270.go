package session

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Emulator drives an s3270-compatible scripting emulator over its standard
// input and output. Each command is one line; the emulator answers with
// "data: " lines, a status line and a final "ok" or "error".
type Emulator struct {
	opts   Options
	logger *zap.Logger
	// Args are passed to the binary before the generated flags.
	Args []string
	// Env is appended to the process environment.
	Env []string

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	status string
}

var _ Session = (*Emulator)(nil)

// NewEmulator returns an unconnected emulator session.
func NewEmulator(opts Options, logger *zap.Logger) *Emulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Binary == "" {
		opts.Binary = "s3270"
	}
	return &Emulator{opts: opts, logger: logger}
}

// Connect starts the emulator process and connects it to the host.
func (e *Emulator) Connect(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cmd != nil {
		return fmt.Errorf("emulator already started")
	}

	args := append([]string{}, e.Args...)
	if e.opts.Model != "" {
		args = append(args, "-model", e.opts.Model)
	}
	if e.opts.CodePage != "" {
		args = append(args, "-codepage", e.opts.CodePage)
	}
	cmd := exec.Command(e.opts.Binary, args...)
	if len(e.Env) > 0 {
		cmd.Env = append(cmd.Environ(), e.Env...)
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", e.opts.Binary, err)
	}
	e.cmd, e.stdin, e.stdout = cmd, stdin, bufio.NewReader(stdout)

	host := e.opts.Addr()
	if e.opts.TLS {
		host = "L:" + host
	}

	done := make(chan error, 1)
	go func() {
		_, err := e.exec(fmt.Sprintf("Connect(%s)", host))
		if err == nil && e.opts.Timeout > 0 {
			_, err = e.exec(fmt.Sprintf("Wait(%d,InputField)", int(e.opts.Timeout.Seconds())))
		}
		done <- err
	}()
	select {
	case err = <-done:
	case <-ctx.Done():
		_ = e.cmd.Process.Kill()
		<-done
		err = ctx.Err()
	}
	if err != nil {
		e.stop()
		return fmt.Errorf("connecting to %s: %w", host, err)
	}
	e.logger.Info("emulator connected", zap.String("host", host), zap.String("model", e.opts.Model))
	return nil
}

// Disconnect closes the host connection and stops the emulator.
func (e *Emulator) Disconnect() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cmd == nil {
		return nil
	}
	_, err := e.exec("Disconnect()")
	if _, qerr := e.exec("Quit()"); qerr != nil && err == nil && qerr != io.EOF {
		err = qerr
	}
	e.stop()
	return err
}

// IsConnected reports the connection state from the last status line.
func (e *Emulator) IsConnected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cmd != nil && connected(e.status)
}

func (e *Emulator) ScreenText() (string, error) {
	data, err := e.run("Ascii()")
	if err != nil {
		return "", err
	}
	return strings.Join(data, "\n"), nil
}

func (e *Emulator) SendText(text string) error {
	_, err := e.run(fmt.Sprintf("String(%s)", strconv.Quote(text)))
	return err
}

func (e *Emulator) SendTab() error {
	_, err := e.run("Tab()")
	return err
}

func (e *Emulator) SendEnter() error {
	_, err := e.run("Enter()")
	return err
}

func (e *Emulator) MoveToFirstInput() error {
	_, err := e.run("Home()")
	return err
}

func (e *Emulator) run(command string) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cmd == nil {
		return nil, ErrNotConnected
	}
	return e.exec(command)
}

// exec sends one command and collects its reply. Callers hold e.mu or own
// the emulator exclusively.
func (e *Emulator) exec(command string) ([]string, error) {
	if _, err := io.WriteString(e.stdin, command+"\n"); err != nil {
		return nil, fmt.Errorf("%s: %w", command, err)
	}
	var data []string
	var prev string
	for {
		line, err := e.stdout.ReadString('\n')
		if err != nil {
			if err == io.EOF && line == "" {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("%s: reading reply: %w", command, err)
		}
		line = strings.TrimRight(line, "\r\n")
		switch {
		case strings.HasPrefix(line, "data: "):
			data = append(data, strings.TrimPrefix(line, "data: "))
			continue
		case line == "data:":
			data = append(data, "")
			continue
		case line == "ok":
			e.status = prev
			return data, nil
		case line == "error":
			e.status = prev
			msg := strings.Join(data, " ")
			if msg == "" {
				msg = "command failed"
			}
			return nil, fmt.Errorf("%s: %s", command, msg)
		}
		prev = line
	}
}

func (e *Emulator) stop() {
	if e.stdin != nil {
		_ = e.stdin.Close()
	}
	if e.cmd != nil && e.cmd.Process != nil {
		_ = e.cmd.Process.Kill()
		_ = e.cmd.Wait()
	}
	e.cmd, e.stdin, e.stdout, e.status = nil, nil, nil, ""
}

// connected parses the connection field of an s3270 status line, e.g.
// "U F U C(host) I 4 24 80 0 0 0x0 0.000". The fourth field is "C(...)"
// when connected and "N" otherwise.
func connected(status string) bool {
	fields := strings.Fields(status)
	return len(fields) >= 4 && strings.HasPrefix(fields[3], "C(")
}
