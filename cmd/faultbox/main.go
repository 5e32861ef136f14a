package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/wudi/faultbox/internal/app"
	"github.com/wudi/faultbox/internal/config"
	"github.com/wudi/faultbox/internal/logging"
	"go.uber.org/zap"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "", "Path to an optional YAML configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	validateOnly := flag.Bool("validate", false, "Validate configuration and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("faultbox %s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	// Environment variables override the file
	cfg, err := config.NewLoader().Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if *validateOnly {
		fmt.Println("Configuration is valid")
		os.Exit(0)
	}

	logger, closer, err := logging.New(app.LoggingConfig(cfg.Logging))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetGlobal(logger)

	if err := run(cfg, *configPath); err != nil {
		logging.Error("Server error", zap.Error(err))
		logging.Sync()
		if closer != nil {
			closer.Close()
		}
		os.Exit(1)
	}

	logging.Sync()
	if closer != nil {
		closer.Close()
	}
}

func run(cfg *config.Config, configPath string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logging.Info("Starting faultbox",
		zap.String("version", version),
		zap.String("config", configPath),
		zap.Int("port", cfg.Server.Port),
	)

	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to build app: %w", err)
	}
	return app.NewServer(a).Run(ctx)
}
