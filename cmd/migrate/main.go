package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"bookshelf/internal/config"
	"bookshelf/internal/platform/logger"
)

func main() {
	var (
		command = flag.String("command", "up", "Migration command: up, down, status, create")
		name    = flag.String("name", "", "Name for 'create' command")
	)
	flag.Parse()

	loadEnvFiles()
	log := logger.Setup(config.LookupEnv("LOG_LEVEL", "info"))

	if err := run(*command, *name, log); err != nil {
		log.Error("migration failed", "command", *command, "error", err)
		os.Exit(1)
	}
}

func run(command, name string, log *slog.Logger) error {
	fsys, dir := migrationSource()

	if command == "create" {
		if name == "" {
			return errMissingName
		}
		if fsys != nil {
			dir = "db/migrations"
		}
		goose.SetBaseFS(nil)
		if err := goose.Create(nil, dir, name, "sql"); err != nil {
			return err
		}
		log.Info("migration created", "name", name, "dir", dir)
		return nil
	}

	dsn := config.LookupEnv("DB_DSN", defaultDSN)
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return err
	}
	defer pool.Close()

	sqlDB := stdlib.OpenDBFromPool(pool)
	defer sqlDB.Close()

	goose.SetBaseFS(fsys)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	log = log.With("dsn", config.RedactDSN(dsn), "dir", dir)
	switch command {
	case "up":
		if err := goose.UpContext(ctx, sqlDB, dir); err != nil {
			return err
		}
		log.Info("migrations applied")
	case "down":
		if err := goose.DownContext(ctx, sqlDB, dir); err != nil {
			return err
		}
		log.Info("migration rolled back")
	case "status":
		return goose.StatusContext(ctx, sqlDB, dir)
	default:
		return errUnknownCommand(command)
	}
	return nil
}
