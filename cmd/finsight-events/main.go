package main

import (
	"context"
	"errors"
	"os"
	"time"

	"finsight/internal/cli"
	"finsight/internal/events"
	"finsight/internal/log"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	logger := cli.SetupLogger("info", os.Stdout)
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(cfg.LogLevel, os.Stdout)

	if !cfg.EventsEnabled() {
		logger.Error("AMQP_URL is required to consume insight events")
		os.Exit(1)
	}

	logger.Info("Starting finsight-events", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)

	amqpClient, err := events.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err.Error())
		os.Exit(1)
	}
	defer amqpClient.Close()

	tally := events.NewTally(logger)
	ctx, done := cli.GracefulShutdown(logger, 10*time.Second, func(context.Context) {
		tally.LogSummary()
	})

	if err := amqpClient.Consume(ctx, tally.Handle); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err.Error())
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
}
