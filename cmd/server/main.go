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

	"pharmapos/internal/config"
	"pharmapos/internal/infra"
	"pharmapos/internal/router"
	"pharmapos/internal/worker"

	"github.com/bsm/redislock"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Structured logger: dev pretty, prod JSON
	zerolog.TimeFieldFormat = time.RFC3339
	if !cfg.IsProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	if err := infra.RunMigrations(db); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate schema")
	}

	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dispatcher := worker.NewDispatcher(rdb)
	svcs := router.NewServices(cfg, db, rdb, dispatcher)

	// Worker handlers are wired here (composition root) so the pool reaches
	// the services and the mailer without the services knowing about either.
	smtpCB := infra.NewCircuitBreaker("smtp", infra.DefaultCBConfig())
	mailer := infra.NewGuardedMailer(infra.NewMailer(cfg), smtpCB)
	if cfg.SMTPHost == "" {
		log.Warn().Msg("SMTP_HOST not set, receipts and alerts will be dropped")
	}

	pool := worker.NewPool(rdb)
	pool.Handle(worker.JobReceipt, worker.NewReceiptWorker(svcs.Sales, mailer, cfg.StoreName).Process)
	pool.Handle(worker.JobExpiryAlert, worker.NewAlertWorker(mailer).Process)
	pool.Start(ctx, cfg.WorkerPoolSize)

	worker.StartExpiryCron(ctx, worker.ExpiryCronConfig{
		Reports:    svcs.Reports,
		Queue:      dispatcher,
		Locker:     redislock.New(rdb),
		AlertEmail: cfg.AlertEmail,
		Days:       cfg.ExpiryAlertDays,
		Interval:   cfg.ExpiryCheckInterval,
	})

	r := router.New(cfg, db, rdb, svcs, smtpCB)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Str("tz", cfg.Location().String()).Msgf("pharmapos listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	_ = rdb.Close()
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("server exited")
}
