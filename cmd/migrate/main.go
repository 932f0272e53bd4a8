package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "github.com/lib/pq"

	"ParaLedger/internal/observability"
	"ParaLedger/internal/persistence"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: migrate <up|down>")
	fmt.Fprintln(os.Stderr, "  up    apply all pending migrations")
	fmt.Fprintln(os.Stderr, "  down  roll back the last applied migration")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "environment:")
	fmt.Fprintln(os.Stderr, "  PARA_POSTGRES_DSN    Postgres connection string")
	fmt.Fprintln(os.Stderr, "  PARA_MIGRATIONS_DIR  migrations directory (default: migrations)")
	os.Exit(2)
}

func main() {
	if len(os.Args) != 2 {
		usage()
	}
	cmd := os.Args[1]
	if cmd != "up" && cmd != "down" {
		usage()
	}

	log := observability.NewLogger("migrate")

	dsn := os.Getenv("PARA_POSTGRES_DSN")
	if dsn == "" {
		dsn = "postgres://localhost:5432/paraledger?sslmode=disable"
	}
	dir := os.Getenv("PARA_MIGRATIONS_DIR")
	if dir == "" {
		dir = "migrations"
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("open postgres")
	}
	defer db.Close()

	ctx := context.Background()
	migrator := persistence.NewMigrator(db, dir)

	switch cmd {
	case "up":
		if err := migrator.Up(ctx); err != nil {
			log.Fatal().Err(err).Msg("migrate up")
		}
		log.Info().Msg("all migrations applied")
	case "down":
		if err := migrator.Down(ctx); err != nil {
			log.Fatal().Err(err).Msg("migrate down")
		}
		log.Info().Msg("last migration rolled back")
	}
}
