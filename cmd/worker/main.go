package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"

	"bookshelf/internal/config"
	"bookshelf/internal/platform/logger"
	"bookshelf/internal/task"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.Setup(cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("worker stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	if cfg.TaskBrokerURL == "" {
		return fmt.Errorf("TASK_BROKER_URL is required to run the worker")
	}
	opt, err := asynq.ParseRedisURI(cfg.TaskBrokerURL)
	if err != nil {
		return fmt.Errorf("parse task broker url: %w", err)
	}

	srv := task.NewAsynqServer(opt, task.ServerConfig{
		Concurrency: cfg.TaskWorkers,
		LogLevel:    asynqLevel(cfg.LogLevel),
	}, logger.AsynqAdapter{Logger: log.With("component", "asynq")})

	log.Info("starting worker", "broker", config.RedactDSN(cfg.TaskBrokerURL), "concurrency", cfg.TaskWorkers)
	// Run blocks until SIGTERM or SIGINT, then drains active tasks.
	return srv.Run(task.NewAsynqMux(task.NewRegistry(), log))
}

func asynqLevel(level string) asynq.LogLevel {
	switch level {
	case "debug":
		return asynq.DebugLevel
	case "warn":
		return asynq.WarnLevel
	case "error":
		return asynq.ErrorLevel
	default:
		return asynq.InfoLevel
	}
}
