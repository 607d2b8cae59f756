package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/crisb2reis/Sistema-Escolar/internal/audit"
	"github.com/crisb2reis/Sistema-Escolar/internal/config"
	"github.com/crisb2reis/Sistema-Escolar/internal/logging"
	"github.com/crisb2reis/Sistema-Escolar/internal/queue"
	"github.com/crisb2reis/Sistema-Escolar/internal/store"
)

// Worker drains the audit queue into audit_logs.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	log := logging.New("attendance-worker", cfg.Env, cfg.LogLevel)

	if cfg.AuditQueueBackend != "redis" {
		log.Fatal(errors.New("the worker needs AUDIT_QUEUE_BACKEND=redis; the memory backend is drained by the api itself"))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("db connect failed")
	}
	defer db.Close()

	redisClient := store.NewRedis(store.RedisOptions{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	defer redisClient.Close()

	q := queue.NewRedisQueue(redisClient.Client, cfg.AuditQueueKey, log)
	recorder := audit.NewRecorder(audit.NewPGRepository(db.Client), log)

	log.WithField("queue", cfg.AuditQueueKey).Info("worker started, waiting for audit events")
	if err := recorder.Run(ctx, q); err != nil {
		log.WithError(err).Error("worker stopped with error")
		return
	}
	log.Info("worker stopped")
}
