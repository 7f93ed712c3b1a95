package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"finsight/internal/cli"
)

var version = "dev"

func main() {
	cli.LoadEnvFile()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.NewApp(version).Execute(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
