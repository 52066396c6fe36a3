// Command migrate applies the embedded goose migrations to the production database.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/straye-as/production-api/internal/config"
	"github.com/straye-as/production-api/migrations"
)

const usage = "usage: migrate up | up-to VERSION | down | down-to VERSION | redo | status | version | create NAME"

// sourceDir receives files written by "create"; every other command reads the embedded set
const sourceDir = "./migrations"

var dbCommands = map[string]bool{
	"up": true, "up-to": true, "down": true, "down-to": true,
	"redo": true, "status": true, "version": true,
}

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New(usage)
	}
	command, rest := args[0], args[1:]

	if command == "create" {
		if len(rest) != 1 {
			return errors.New("create takes exactly one migration name")
		}
		goose.SetSequential(true)
		return goose.Create(nil, sourceDir, rest[0], "sql")
	}
	if !dbCommands[command] {
		return fmt.Errorf("unknown command %q\n%s", command, usage)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	db, err := sql.Open("postgres", cfg.Database.ConnectionString())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := goose.RunContext(ctx, command, db, ".", rest...); err != nil {
		return fmt.Errorf("%s failed: %w", command, err)
	}
	return nil
}
