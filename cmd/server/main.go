package main

import (
	"context"
	"log"
	"os"

	"github.com/nazarriya/chatrelay/internal/logging"
	"github.com/nazarriya/chatrelay/internal/server"
	"github.com/nazarriya/chatrelay/internal/server/config"
)

func main() {
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	out, closer := logging.Output(cfg.LogFile)
	defer closer.Close()

	logger, err := logging.NewJSONLogger(out, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}

	app, err := server.NewApp(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "startup failed", "error", err)
		closer.Close()
		os.Exit(1)
	}

	app.Run(ctx)
}
