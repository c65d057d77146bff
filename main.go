package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/avstrong/roomledger/internal/cli"
)

func main() {
	ctx, cancel := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGHUP,
	)

	var exitCode int

	if err := cli.NewRoot().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "roomledger: %v\n", err)

		exitCode = 1
	}

	cancel()
	os.Exit(exitCode)
}
