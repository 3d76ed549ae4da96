// Package main applies the embedded schema migrations.
//
// Usage: migrate [up|down|status]
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for goose

	"stockflow/internal/config"
	"stockflow/migrations"
	"stockflow/pkg/logger"
)

func main() {
	log, err := logger.New(logger.Config{Level: "info", Development: true})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalw("failed to load config", "error", err)
	}
	dsn, err := cfg.ConnectionString(config.DefaultConnection)
	if err != nil {
		log.Fatalw("database not configured", "error", err)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		log.Fatalw("failed to open database", "error", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		log.Fatalw("failed to ping database", "error", err)
	}

	switch command {
	case "up":
		err = migrations.Up(ctx, db)
	case "down":
		err = migrations.Down(ctx, db)
	case "status":
		err = migrations.Status(ctx, db)
	default:
		log.Fatalw("unknown command", "command", command, "usage", "migrate [up|down|status]")
	}
	if err != nil {
		log.Fatalw("migration failed", "command", command, "error", err)
	}

	log.Infow("migrations done", "command", command)
}
