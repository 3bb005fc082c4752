// Command migrate manages the PostgreSQL schema and seed data.
//
// Usage:
//
//	migrate [flags] up|down|seed|status
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"collegia.org/internal/migrate"
)

func main() {
	log.SetFlags(0)
	var (
		dsn        = flag.String("dsn", os.Getenv("COLLEGIA_PG_DSN"), "PostgreSQL DSN (defaults to COLLEGIA_PG_DSN)")
		migrations = flag.String("migrations", "ops/migrations/sql", "directory with .up.sql/.down.sql files")
		seeds      = flag.String("seeds", "ops/migrations/seeds", "directory with seed scripts")
		timeout    = flag.Duration("timeout", 30*time.Second, "overall deadline for the run")
	)
	flag.Parse()

	cmd := flag.Arg(0)
	if cmd == "" {
		log.Fatal("usage: migrate [flags] up|down|seed|status")
	}
	if *dsn == "" {
		log.Fatal("no DSN: set -dsn or COLLEGIA_PG_DSN")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	mgr := migrate.NewManager(db, *migrations, *seeds)

	var runErr error
	switch cmd {
	case "up":
		runErr = mgr.Up(ctx)
	case "down":
		runErr = mgr.Down(ctx)
	case "seed":
		runErr = mgr.Seed(ctx)
	case "status":
		applied, statusErr := mgr.Status(ctx)
		if statusErr != nil {
			runErr = statusErr
			break
		}
		if len(applied) == 0 {
			fmt.Println("no migrations applied")
			break
		}
		for _, name := range applied {
			fmt.Println(name)
		}
	default:
		log.Fatalf("unknown command %q", cmd)
	}
	if runErr != nil {
		log.Fatalf("%s: %v", cmd, runErr)
	}
}
