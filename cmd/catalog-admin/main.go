package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"github.com/xenking/product-catalog/internal/cli"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := cli.Execute(ctx); err != nil {
		slog.Error("catalog-admin failed", slog.String("error", err.Error()))
		cancel()
		os.Exit(1)
	}
}
