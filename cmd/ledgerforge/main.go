package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"ledgerforge/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	res, err := cli.Run(ctx, os.Args[1:], cli.Env{})
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(res.ExitCode)
}
