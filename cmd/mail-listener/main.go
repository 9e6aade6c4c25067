package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"labelrecon/internal/app"
	"labelrecon/internal/config"
)

func main() {
	cfg, err := config.Load()
	must(err)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg)
	must(err)
	defer a.Close()

	a.Log.Info("mail listener started", "provider", cfg.MailListenerProvider, "intervalSec", cfg.MailListenerIntervalSec)
	must(a.Listener().Run(ctx))
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
