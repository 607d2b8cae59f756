package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/crisb2reis/Sistema-Escolar/internal/attendance"
	"github.com/crisb2reis/Sistema-Escolar/internal/audit"
	"github.com/crisb2reis/Sistema-Escolar/internal/checkin"
	"github.com/crisb2reis/Sistema-Escolar/internal/config"
	"github.com/crisb2reis/Sistema-Escolar/internal/credential"
	"github.com/crisb2reis/Sistema-Escolar/internal/directory"
	"github.com/crisb2reis/Sistema-Escolar/internal/httpapi"
	"github.com/crisb2reis/Sistema-Escolar/internal/lock"
	"github.com/crisb2reis/Sistema-Escolar/internal/logging"
	"github.com/crisb2reis/Sistema-Escolar/internal/qr"
	"github.com/crisb2reis/Sistema-Escolar/internal/queue"
	"github.com/crisb2reis/Sistema-Escolar/internal/session"
	"github.com/crisb2reis/Sistema-Escolar/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	log := logging.New("attendance-api", cfg.Env, cfg.LogLevel)

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("http server failed")
	}
}

func run(cfg config.App, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.AutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		log.Info("schema applied")
	}

	redisClient := store.NewRedis(store.RedisOptions{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	defer redisClient.Close()
	if !redisClient.Healthy(ctx) {
		log.Warn("redis not reachable at startup, check-ins will fail until it is")
	}

	var q queue.Queue
	if cfg.AuditQueueBackend == "memory" {
		mem := queue.NewInMemory(256)
		q = mem
		// Without a shared queue the API persists its own audit trail.
		recorder := audit.NewRecorder(audit.NewPGRepository(db.Client), log.WithField("component", "audit"))
		go func() {
			if err := recorder.Run(ctx, mem); err != nil {
				log.WithError(err).Error("in-process audit recorder stopped")
			}
		}()
	} else {
		q = queue.NewRedisQueue(redisClient.Client, cfg.AuditQueueKey, log)
	}
	emitter := audit.NewEmitter(audit.NewQueueSink(q), log)

	dir := directory.NewPostgres(db.Client)
	sessions := session.NewRegistry(session.NewPGRepository(db.Client), dir)

	signer, err := credential.NewSigner(cfg.QRSigningKey)
	if err != nil {
		return err
	}
	creds := credential.NewPGRepository(db.Client)
	nonces := credential.NewRedisNonceStore(redisClient.Client)
	issuer := credential.NewIssuer(sessions, creds, nonces, signer,
		qr.New(cfg.QRDeepLinkPrefix, cfg.QRImageSize),
		credential.IssuerConfig{
			DefaultTTL: cfg.QRTokenTTL(),
			MaxTTL:     time.Duration(cfg.QRTokenMaxMinutes) * time.Minute,
		}, log)
	validator := credential.NewValidator(creds, nonces, signer)

	locker := lock.NewRedis(redisClient.Client)
	registrar := attendance.NewRegistrar(attendance.NewPGRepository(db.Client), locker, cfg.AttendanceLockTTL, log)
	svc := checkin.NewService(validator, sessions, dir, registrar, locker, emitter,
		checkin.Config{ClaimTTL: cfg.NonceClaimTTL}, log)

	router := httpapi.NewRouter(httpapi.Deps{
		Log:           log,
		CORSOrigins:   cfg.CORSOrigins,
		JWTSigningKey: cfg.JWTSigningKey,
		JWTIssuer:     cfg.JWTIssuer,
		Sessions:      sessions,
		Issuer:        issuer,
		CheckIn:       svc,
		Attendance:    registrar,
		Audit:         emitter,
		Health: []httpapi.HealthCheck{
			{Name: "db", Check: db.Healthy},
			{Name: "redis", Check: redisClient.Healthy},
		},
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.HTTPPort).Info("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down server")

	// Give outstanding requests 10 seconds to complete.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("server forced shutdown")
	}

	log.Info("server exited")
	return nil
}
