package node

import (
	"context"
	"errors"
	"regexp"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStart_WaitsForReadyLine(t *testing.T) {
	h, err := Start(context.Background(), Spec{
		Args:    []string{"sh", "-c", "echo booting; sleep 0.1; echo 'listening on 8545'; sleep 30"},
		Ready:   regexp.MustCompile(`listening on \d+`),
		Timeout: 10 * time.Second,
	})
	require.NoError(t, err)
	pid := h.Pid()
	require.NoError(t, h.Stop())

	// The process group is gone after Stop.
	assert.Error(t, syscall.Kill(pid, 0))
}

func TestStart_ExitBeforeReadyFails(t *testing.T) {
	_, err := Start(context.Background(), Spec{
		Args:    []string{"sh", "-c", "echo 'port in use' >&2; exit 1"},
		Ready:   regexp.MustCompile(`listening`),
		Timeout: 10 * time.Second,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotReady))
	assert.Contains(t, err.Error(), "port in use")
}

func TestStart_TimeoutKillsNode(t *testing.T) {
	start := time.Now()
	_, err := Start(context.Background(), Spec{
		Args:    []string{"sh", "-c", "sleep 30"},
		Ready:   regexp.MustCompile(`never`),
		Timeout: 200 * time.Millisecond,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotReady))
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestStart_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := Start(ctx, Spec{
		Args:    []string{"sh", "-c", "sleep 30"},
		Ready:   regexp.MustCompile(`never`),
		Timeout: 10 * time.Second,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStart_NilReadyIsImmediate(t *testing.T) {
	h, err := Start(context.Background(), Spec{Args: []string{"sh", "-c", "sleep 30"}})
	require.NoError(t, err)
	require.NoError(t, h.Stop())
	require.NoError(t, h.Stop())
}

func TestStart_EmptyCommand(t *testing.T) {
	_, err := Start(context.Background(), Spec{})
	assert.Error(t, err)
}
