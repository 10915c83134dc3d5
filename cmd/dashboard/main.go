package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/invisible-tech/network-event-observer/internal/config"
	"github.com/invisible-tech/network-event-observer/internal/dashboard"
	"github.com/invisible-tech/network-event-observer/internal/store"
	"github.com/invisible-tech/network-event-observer/internal/version"
)

func main() {
	cfg := config.DefaultDashboardConfig()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	log.WithFields(logrus.Fields{
		"version":  version.Version,
		"database": cfg.DBPath,
	}).Info("Starting dashboard")

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.WithError(err).Fatal("Failed to open observation store")
	}
	defer st.Close()

	srv := dashboard.New(cfg, st, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	watcher, err := dashboard.NewDBWatcher(st.Path(), srv.Invalidate, log)
	if err != nil {
		log.WithError(err).Warn("Database watcher unavailable, relying on refresh interval")
	} else {
		go watcher.Start(ctx)
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Dashboard server failed")
		}
	}()

	<-ctx.Done()
	stop()

	log.Info("Shutting down dashboard")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}
