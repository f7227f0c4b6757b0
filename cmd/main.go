package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/KromaEnergia/crm-api/internal/auth"
	"github.com/KromaEnergia/crm-api/internal/config"
	"github.com/KromaEnergia/crm-api/internal/logger"
	"github.com/KromaEnergia/crm-api/internal/server"
	dbconn "github.com/KromaEnergia/crm-api/internal/utils/db"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}

	log, err := logger.New(logger.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: cfg.LogOutput,
		File:   cfg.LogFile,
	})
	if err != nil {
		logrus.WithError(err).Fatal("logger setup failed")
	}

	db, err := dbconn.ConnectDataBase(cfg.DatabaseDSN, cfg.DBLogLevel)
	if err != nil {
		log.WithError(err).Fatal("database connection failed")
	}
	if err := db.AutoMigrate(server.Models()...); err != nil {
		log.WithError(err).Fatal("migration failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sessions auth.SessionStore = auth.NewGormSessionStore(db)
	if cfg.RedisURL != "" {
		client, err := auth.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			log.WithError(err).Fatal("redis connection failed")
		}
		defer client.Close()
		sessions = auth.NewRedisSessionStore(client)
		log.Info("refresh sessions stored in redis")
	}

	srv := server.New(cfg, db, sessions, log)

	if cfg.BootstrapAdminEmail != "" && cfg.BootstrapAdminPassword != "" {
		created, err := srv.Users.EnsureAdmin(ctx, cfg.BootstrapAdminEmail, cfg.BootstrapAdminPassword)
		if err != nil {
			log.WithError(err).Fatal("bootstrap admin failed")
		}
		if created {
			log.WithField("email", cfg.BootstrapAdminEmail).Info("bootstrap admin created")
		}
	}

	httpServer := &http.Server{
		Addr:              cfg.Address,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("address", cfg.Address).Info("server listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server stopped")
		}
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("graceful shutdown failed")
		}
	}

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
