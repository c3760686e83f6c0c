package main

import (
	"context"
	"fmt"
	"os"

	"cfocopilot/internal/cli"
	"cfocopilot/internal/log"
	"cfocopilot/internal/terminal"
)

func main() {
	cli.LoadEnvFile()

	// Logs go to stderr so command output stays pipeable.
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "warn"
	}
	logger := log.New(log.Config{
		Level:     log.ParseLevel(level),
		Component: log.ComponentCLI,
		Format:    os.Getenv("LOG_FORMAT"),
		Output:    os.Stderr,
	})

	ctx, cancel := cli.GracefulShutdown(context.Background(), logger)
	defer cancel()

	if err := terminal.NewCLI(terminal.Options{Logger: logger}).Execute(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		cancel()
		os.Exit(1)
	}
}
