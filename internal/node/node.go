// Package node starts and stops a local chain node for a deployment run.
//
// Start is synchronous: it returns only after the node reported readiness, or
// fails. There is no polling loop and no global state.
package node

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"syscall"
	"time"
)

// DefaultTimeout bounds Start when Spec.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// stopGrace is how long Stop waits after SIGTERM before SIGKILL.
const stopGrace = 5 * time.Second

// ErrNotReady is returned when the node exits or times out before readiness.
var ErrNotReady = errors.New("node not ready")

// Spec describes the node process.
type Spec struct {
	Args []string
	Dir  string

	// Ready is matched against each output line (stdout and stderr). A nil
	// Ready means the node is ready as soon as it started.
	Ready *regexp.Regexp

	Timeout time.Duration
	Logger  *slog.Logger
}

// Handle is a running node.
type Handle struct {
	cmd  *exec.Cmd
	done chan struct{}
	err  error

	mu   sync.Mutex
	tail []string
}

// Start launches the node and blocks until it is ready.
//
// On timeout, context cancellation, or early exit the process group is killed
// and an error wrapping ErrNotReady (or the context error) is returned.
func Start(ctx context.Context, spec Spec) (*Handle, error) {
	if len(spec.Args) == 0 {
		return nil, errors.New("node command is empty")
	}
	logger := spec.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("creating node output pipe: %w", err)
	}

	cmd := exec.Command(spec.Args[0], spec.Args[1:]...)
	cmd.Dir = spec.Dir
	cmd.Stdout = pw
	cmd.Stderr = pw
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return nil, fmt.Errorf("failed to start node %s: %w", spec.Args[0], err)
	}
	// The child holds its own copy of the write end.
	pw.Close()

	h := &Handle{cmd: cmd, done: make(chan struct{})}
	ready := make(chan struct{})
	var readyOnce sync.Once
	if spec.Ready == nil {
		readyOnce.Do(func() { close(ready) })
	}

	scanned := make(chan struct{})
	go func() {
		defer close(scanned)
		h.scan(pr, spec.Ready, logger, func() { readyOnce.Do(func() { close(ready) }) })
	}()
	go func() {
		h.err = cmd.Wait()
		<-scanned
		pr.Close()
		close(h.done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ready:
		logger.Info("node ready", "pid", cmd.Process.Pid)
		return h, nil
	case <-h.done:
		return nil, fmt.Errorf("%w: %s exited (%v): %s", ErrNotReady, spec.Args[0], h.err, h.lastOutput())
	case <-timer.C:
		h.kill()
		return nil, fmt.Errorf("%w: no readiness signal from %s within %s", ErrNotReady, spec.Args[0], timeout)
	case <-ctx.Done():
		h.kill()
		return nil, fmt.Errorf("starting node: %w", ctx.Err())
	}
}

func (h *Handle) scan(r io.Reader, ready *regexp.Regexp, logger *slog.Logger, signal func()) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		logger.Debug("node", "line", line)
		h.mu.Lock()
		h.tail = append(h.tail, line)
		if len(h.tail) > 5 {
			h.tail = h.tail[1:]
		}
		h.mu.Unlock()
		if ready != nil && ready.MatchString(line) {
			signal()
		}
	}
}

func (h *Handle) lastOutput() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.tail) == 0 {
		return "no output"
	}
	return strings.Join(h.tail, " | ")
}

// Pid returns the node's process id.
func (h *Handle) Pid() int { return h.cmd.Process.Pid }

// Stop terminates the node's process group and waits for it to exit.
// Stopping an already exited node is not an error.
func (h *Handle) Stop() error {
	select {
	case <-h.done:
		return nil
	default:
	}
	_ = syscall.Kill(-h.cmd.Process.Pid, syscall.SIGTERM)
	select {
	case <-h.done:
		return nil
	case <-time.After(stopGrace):
	}
	h.kill()
	return nil
}

func (h *Handle) kill() {
	_ = syscall.Kill(-h.cmd.Process.Pid, syscall.SIGKILL)
	<-h.done
}
