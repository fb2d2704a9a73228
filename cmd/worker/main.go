package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/odyssey-erp/odyssey-wms/internal/app"
	jobmetrics "github.com/odyssey-erp/odyssey-wms/internal/jobs"
	"github.com/odyssey-erp/odyssey-wms/internal/password"
	"github.com/odyssey-erp/odyssey-wms/internal/platform/db"
	"github.com/odyssey-erp/odyssey-wms/internal/users"
	"github.com/odyssey-erp/odyssey-wms/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Default().Warn("load .env", slog.Any("error", err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg).With(slog.String("component", "worker"))

	pool, err := db.New(ctx, db.Options{DSN: cfg.PGDSN, MaxConns: cfg.PGMaxConns, AppName: "odyssey-wms-worker"})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	mailClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := mailClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	metrics := jobmetrics.NewMetrics(nil)
	expiryJob := jobs.NewExpiryNoticeJob(users.NewRepository(pool), mailClient, logger, metrics)
	retentionJob := jobs.NewHistoryRetentionJob(password.NewRepository(pool), cfg.HistoryRetentionKeep, cfg.PasswordHistoryCount, logger, metrics)

	expiryTask, err := jobs.NewExpiryNoticeTask(cfg.ExpiryNoticeDays)
	if err != nil {
		logger.Error("build expiry notice task", slog.Any("error", err))
		os.Exit(1)
	}

	handlers := []jobs.TaskHandler{
		{Type: jobs.TaskPasswordExpiryNotice, Handler: expiryJob.Handle},
	}
	cron := []jobs.CronRegistration{
		{Spec: cfg.WorkerCronExpiryNotice, Task: expiryTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
	}
	if cfg.HistoryRetentionEnabled {
		handlers = append(handlers, jobs.TaskHandler{Type: jobs.TaskPasswordHistoryRetention, Handler: retentionJob.Handle})
		cron = append(cron, jobs.CronRegistration{
			Spec:    cfg.WorkerCronRetention,
			Task:    jobs.NewHistoryRetentionTask(),
			Options: []asynq.Option{asynq.MaxRetry(1)},
		})
		logger.Info("history retention enabled", slog.Int("keep", retentionJob.Keep))
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   redisOpts,
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers:    handlers,
		Cron:        cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
