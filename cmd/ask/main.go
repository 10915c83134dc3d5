package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/invisible-tech/network-event-observer/internal/config"
	"github.com/invisible-tech/network-event-observer/internal/store"
	"github.com/invisible-tech/network-event-observer/pkg/inference"
	"github.com/invisible-tech/network-event-observer/pkg/observe"
	"github.com/invisible-tech/network-event-observer/pkg/prompt"
)

const defaultQuestion = "What is Happiness?"

func main() {
	cfg := config.DefaultAskConfig()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	question := strings.TrimSpace(strings.Join(os.Args[1:], " "))
	if question == "" {
		question = defaultQuestion
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.WithError(err).Fatal("Failed to open observation store")
	}
	defer st.Close()

	client := observe.Wrap(inference.NewClient(inference.Config{
		BaseURL: cfg.Inference.BaseURL,
		APIKey:  cfg.Inference.APIKey,
		Timeout: cfg.Inference.Timeout,
	}, log), st, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	resp, err := client.Create(observe.WithTags(ctx, "ask"), cfg.Inference.Model, prompt.Messages(question))
	if err != nil {
		log.WithError(err).Error("Inference call failed")
		st.Close()
		os.Exit(1)
	}
	fmt.Println(resp.Content())
}
