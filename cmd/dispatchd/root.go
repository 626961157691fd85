// dispatchd ingests emergency signals from public feeds, triages them
// through the classification oracle, and serves the merged incident grid
// over HTTP.
package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/fieldsignals/disaster-feed-sync/internal/config"
	"github.com/fieldsignals/disaster-feed-sync/internal/domain"
	"github.com/fieldsignals/disaster-feed-sync/internal/observability"
	"github.com/fieldsignals/disaster-feed-sync/internal/source"
	"github.com/fieldsignals/disaster-feed-sync/internal/store"

	"github.com/fieldsignals/disaster-feed-sync/internal/adapter/triage"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "dispatchd",
		Short:         "Disaster feed ingestion and triage service",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.AddCommand(
		newServeCmd(),
		newSyncCmd(),
		newExportCmd(),
		newImportCmd(),
	)
	return root
}

// app holds the wired service components shared by the commands.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	metrics    *observability.Metrics
	store      *store.Store
	oracle     *triage.Client
	classify   domain.Classifier
	connectors []source.Connector
}

// buildApp loads configuration and wires the store, the triage oracle with
// its cache, and the six feed connectors in their fixed declaration order.
func buildApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	blobs, err := store.NewFileStore(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	st := store.New(blobs, logger, metrics)
	st.Load()

	oracle := triage.NewClient(cfg.OracleAPIKey, cfg.OracleBaseURL, cfg.OracleModel, cfg.OracleTimeout, logger, metrics)
	classify := triage.NewCachedClassifier(oracle, blobs, cfg.TriageCacheSize, logger, metrics)

	connectors := []source.Connector{
		source.NewEONETHotspots(classify, cfg.EONETBaseURL, cfg.FeedTimeout),
		source.NewEONETEvents(classify, cfg.EONETBaseURL, cfg.FeedTimeout),
		source.NewUSGSQuakes(classify, cfg.USGSFeedURL, cfg.FeedTimeout),
		source.NewReliefWebReports(classify, cfg.ReliefWebURL, cfg.FeedTimeout),
		source.NewMastodonTimeline(classify, cfg.MastodonBaseURL, cfg.MastodonTag, cfg.FeedTimeout),
		source.NewNewswire(oracle, classify),
	}

	return &app{
		cfg:        cfg,
		logger:     logger,
		metrics:    metrics,
		store:      st,
		oracle:     oracle,
		classify:   classify,
		connectors: connectors,
	}, nil
}
