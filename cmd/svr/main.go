package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/MrVeink/svr/internal/cli"
	"github.com/MrVeink/svr/internal/config"
	"github.com/MrVeink/svr/internal/logging"
)

func main() {
	// Variables already set in the environment win over .env.
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Debug("configuration loaded", "config", cfg.String())

	if err := cli.Execute(context.Background(), cfg); err != nil {
		os.Exit(1)
	}
}
