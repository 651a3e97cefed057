package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/siherrmann/halluguard"
	"github.com/siherrmann/halluguard/helper"
	"github.com/siherrmann/halluguard/server"
)

func main() {
	helper.LoadEnv()

	serverConfig, err := helper.NewServerConfiguration()
	if err != nil {
		log.Fatalf("Failed to read server configuration: %v", err)
	}
	logger := helper.NewLogger(os.Stdout, helper.ParseLogLevel(serverConfig.LogLevel))
	slog.SetDefault(logger)

	config, err := halluguard.NewConfigFromEnv()
	if err != nil {
		log.Fatalf("Failed to read configuration: %v", err)
	}
	config.Logger = logger

	g, err := halluguard.NewGuard(*config)
	if err != nil {
		log.Fatalf("Failed to create guard: %v", err)
	}
	defer g.Close()

	s, err := server.NewServer(serverConfig, g.Services(), logger)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := s.Start(ctx); err != nil {
		logger.Error("Server stopped with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
