package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"facewatch/internal/app"
	"facewatch/internal/config"
	"facewatch/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	l := logger.NewLogger(cfg)
	defer l.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.NewApp(cfg, l)
	if err != nil {
		l.Error("Failed to start: %v", err)
		l.Close()
		log.Fatalf("Failed to start: %v", err)
	}

	if err := application.Run(ctx); err != nil {
		l.Close()
		log.Fatalf("Server stopped with error: %v", err)
	}
}
