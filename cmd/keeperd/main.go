// Command keeperd runs the keeper HTTP server: the reactive caches, the
// sync manager, and the assistant, backed by PostgreSQL when a DSN is
// configured and fully local otherwise.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/dailysync/keeper/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx); err != nil {
		log.Fatalf("keeperd: %v", err)
	}
}
