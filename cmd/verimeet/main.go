package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/devamsheth0806/VeriMeet/internal/app"
	"github.com/devamsheth0806/VeriMeet/internal/config"
)

func main() {
	config.LoadDotEnv("[verimeet]")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[verimeet] config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, cfg); err != nil {
		log.Fatalf("[verimeet] %v", err)
	}
}
