package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"classboard/internal/app"
	"classboard/internal/config"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("classboard failed: %v", err)
	}
}

func run() error {
	configFile := os.Getenv("CLASSBOARD_CONFIG_FILE")
	cfg := config.LoadConfigWithPrecedence(configFile)

	application, err := app.NewApplication(cfg)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- application.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Printf("Received signal %v, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := application.Stop(ctx); err != nil {
		return err
	}

	// Surface any listener error that raced with the shutdown signal.
	if err := <-errCh; err != nil {
		return err
	}

	log.Printf("Shutdown complete")
	return nil
}
