// Command migrate applies the embedded goose migrations against the
// configured database.
//
// Usage:
//
//	migrate [-down-to N] [-status]
//
// The DSN comes from the same configuration as the server (DATABASE_DSN or
// config.yaml). Exit codes: 0 = success, 1 = error.
package main

import (
	"context"
	"database/sql"
	"flag"
	"log"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver for database/sql
	"github.com/pressly/goose/v3"

	"github.com/dailysync/keeper/internal/config"
	"github.com/dailysync/keeper/migrations"
)

func main() {
	downTo := flag.Int64("down-to", -1, "migrate down to the given version instead of up")
	status := flag.Bool("status", false, "print migration status and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("migrate: %v", err)
	}
	if cfg.Database.DSN == "" {
		log.Fatal("migrate: database.dsn is not configured")
	}

	db, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		log.Fatalf("migrate: open database: %v", err)
	}
	defer db.Close()

	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations.FS)
	if err != nil {
		log.Fatalf("migrate: goose provider: %v", err)
	}

	ctx := context.Background()
	switch {
	case *status:
		statuses, err := provider.Status(ctx)
		if err != nil {
			log.Fatalf("migrate: status: %v", err)
		}
		for _, s := range statuses {
			log.Printf("%d\t%s\t%s", s.Source.Version, s.State, s.Source.Path)
		}
	case *downTo >= 0:
		if _, err := provider.DownTo(ctx, *downTo); err != nil {
			log.Fatalf("migrate: down-to %d: %v", *downTo, err)
		}
		log.Printf("migrated down to %d", *downTo)
	default:
		results, err := provider.Up(ctx)
		if err != nil {
			log.Fatalf("migrate: up: %v", err)
		}
		log.Printf("applied %d migrations", len(results))
	}
}
