package core

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestSplitCommand(t *testing.T) {
	args, err := SplitCommand(`solc-wrap --optimize "--evm-version=paris" 'a b'`)
	if err != nil {
		t.Fatalf("SplitCommand failed: %v", err)
	}
	want := []string{"solc-wrap", "--optimize", "--evm-version=paris", "a b"}
	if strings.Join(args, "|") != strings.Join(want, "|") {
		t.Fatalf("got %q", args)
	}

	if _, err := SplitCommand("   "); err == nil {
		t.Fatal("expected error for empty command")
	}
}

func TestRunCommand_CapturesOutputAndStdin(t *testing.T) {
	res, err := RunCommand(context.Background(), Command{
		Args:  []string{"sh", "-c", "cat; echo err >&2; exit 3"},
		Stdin: []byte("hello"),
	})
	if err != nil {
		t.Fatalf("RunCommand failed: %v", err)
	}
	if string(res.Stdout) != "hello" {
		t.Errorf("stdout = %q", res.Stdout)
	}
	if strings.TrimSpace(string(res.Stderr)) != "err" {
		t.Errorf("stderr = %q", res.Stderr)
	}
	if res.ExitCode != 3 {
		t.Errorf("exit code = %d", res.ExitCode)
	}
}

func TestRunCommand_PassesExtraEnv(t *testing.T) {
	res, err := RunCommand(context.Background(), Command{
		Args: []string{"sh", "-c", `printf %s "$LEDGERFORGE_TEST"`},
		Env:  []string{"LEDGERFORGE_TEST=yes"},
	})
	if err != nil {
		t.Fatalf("RunCommand failed: %v", err)
	}
	if string(res.Stdout) != "yes" {
		t.Fatalf("stdout = %q", res.Stdout)
	}
}

func TestRunCommand_Cancellation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := RunCommand(ctx, Command{Args: []string{"sh", "-c", "sleep 10"}})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatal("cancellation did not kill the process")
	}
}
