package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alkorolyov/dcmon/internal/app"
	"github.com/alkorolyov/dcmon/internal/config"
)

func main() {
	configPath := flag.String("c", "", "path to YAML config file")
	migrationsDir := flag.String("migrations", "migrations", "path to schema migrations directory")
	flag.Parse()

	cfg, err := config.LoadServer(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: loading config: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app.Run(ctx, cfg, *migrationsDir); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(2)
	}
}
