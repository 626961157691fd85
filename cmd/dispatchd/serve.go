package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	httpadapter "github.com/fieldsignals/disaster-feed-sync/internal/adapter/http"
	kafkaadapter "github.com/fieldsignals/disaster-feed-sync/internal/adapter/kafka"
	"github.com/fieldsignals/disaster-feed-sync/internal/pipeline"
	"github.com/fieldsignals/disaster-feed-sync/internal/source"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the sync loop and the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	logger := a.logger

	// Kafka publishing is feature-flagged; the pipeline accepts a nil
	// publisher.
	var publisher pipeline.Publisher
	var writer *kafkaadapter.Writer
	if a.cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(a.cfg, logger)
		publisher = writer
		logger.Info("kafka publishing enabled", "topic", a.cfg.KafkaSinkTopic)
	} else {
		logger.Info("kafka publishing disabled")
	}

	orchestrator := pipeline.New(a.connectors, a.store, publisher, logger, a.metrics)
	srv := httpadapter.NewServer(a.cfg.HTTPAddr, a.store, a.classify, orchestrator, logger)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	if a.cfg.SyncInterval > 0 {
		go orchestrator.Run(ctx, a.cfg.SyncInterval, source.LocationHint{})
	} else {
		logger.Info("periodic sync disabled, waiting for triggers")
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return nil
}
