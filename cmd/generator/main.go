package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/invisible-tech/network-event-observer/internal/config"
	"github.com/invisible-tech/network-event-observer/internal/loop"
	"github.com/invisible-tech/network-event-observer/internal/store"
	"github.com/invisible-tech/network-event-observer/internal/version"
	"github.com/invisible-tech/network-event-observer/pkg/inference"
	"github.com/invisible-tech/network-event-observer/pkg/observe"
	"github.com/invisible-tech/network-event-observer/pkg/synth"
)

func main() {
	cfg := config.DefaultGeneratorConfig()

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
		"model":    cfg.Inference.Model,
		"base_url": cfg.Inference.BaseURL,
	}).Info("Starting network event generator")

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.WithError(err).Fatal("Failed to open observation store")
	}
	defer st.Close()

	client := inference.NewClient(inference.Config{
		BaseURL: cfg.Inference.BaseURL,
		APIKey:  cfg.Inference.APIKey,
		Timeout: cfg.Inference.Timeout,
	}, log)

	healthCtx, healthCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := client.HealthCheck(healthCtx); err != nil {
		log.WithError(err).Warn("Inference API health check failed, each tick will attempt a call")
	}
	healthCancel()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gen := loop.New(loop.Config{
		Model:    cfg.Inference.Model,
		Interval: cfg.Interval,
		MaxTicks: cfg.MaxTicks,
	}, synth.New(nil, nil), observe.Wrap(client, st, log), log)

	fmt.Fprintln(os.Stderr, "Press Ctrl+C to stop")
	summary := gen.Run(ctx)
	fmt.Printf("Total events generated: %d\n", summary.Succeeded)
}
