package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alkorolyov/dcmon/agent"
	"github.com/alkorolyov/dcmon/internal/config"
	"github.com/alkorolyov/dcmon/internal/telemetry"
)

func main() {
	configPath := flag.String("c", "", "path to YAML config file")
	once := flag.Bool("once", false, "run a single collection cycle and exit")
	flag.Parse()

	cfg, err := config.LoadAgent(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: loading config: %v\n", err)
		os.Exit(1)
	}

	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel, "nightwatch-agent")

	rt, err := agent.NewRuntime(cfg, logger)
	if err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rt.Run(ctx, *once); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(2)
	}
}
