package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	root, cleanup := newRootCommand(ctx)
	err := root.Execute()
	cleanup()
	if err != nil {
		stop()
		os.Exit(1)
	}
}
