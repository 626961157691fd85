// Package pipeline orchestrates the fan-out sync cycle: every connector is
// fetched concurrently, results are merged into the store in connector
// declaration order, and newly merged incidents are optionally published.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fieldsignals/disaster-feed-sync/internal/domain"
	"github.com/fieldsignals/disaster-feed-sync/internal/observability"
	"github.com/fieldsignals/disaster-feed-sync/internal/source"
	"github.com/fieldsignals/disaster-feed-sync/internal/store"
)

// Publisher forwards newly merged incidents downstream. A nil Publisher
// disables publishing.
type Publisher interface {
	PublishIncidents(ctx context.Context, incidents []domain.Incident) error
}

// Orchestrator runs sync cycles over a fixed set of connectors. Connector
// order is significant: merges and per-connector log lines always happen in
// the order connectors were registered, regardless of fetch completion order.
type Orchestrator struct {
	connectors []source.Connector
	store      *store.Store
	publisher  Publisher
	logger     *slog.Logger
	metrics    *observability.Metrics

	syncing atomic.Bool
}

// New creates an Orchestrator. publisher may be nil.
func New(connectors []source.Connector, st *store.Store, publisher Publisher, logger *slog.Logger, metrics *observability.Metrics) *Orchestrator {
	return &Orchestrator{
		connectors: connectors,
		store:      st,
		publisher:  publisher,
		logger:     logger,
		metrics:    metrics,
	}
}

// Syncing reports whether a cycle is currently in flight.
func (o *Orchestrator) Syncing() bool {
	return o.syncing.Load()
}

// Sync runs one complete cycle. A cycle already in flight makes the call a
// no-op; the guard is cleared on every exit path so a failed cycle never
// wedges the orchestrator.
func (o *Orchestrator) Sync(ctx context.Context, hint source.LocationHint) {
	if !o.syncing.CompareAndSwap(false, true) {
		o.logger.Debug("sync already in flight, skipping trigger")
		return
	}
	defer o.syncing.Store(false)

	start := time.Now()
	o.metrics.SyncCycles.Inc()
	o.metrics.SyncRunning.Set(1)
	defer o.metrics.SyncRunning.Set(0)
	defer func() {
		o.metrics.SyncDuration.Observe(time.Since(start).Seconds())
	}()

	o.store.AddLog("Starting Grid Sync...", domain.LogInfo)

	type outcome struct {
		incidents []domain.Incident
		err       error
	}
	outcomes := make([]outcome, len(o.connectors))

	var wg sync.WaitGroup
	for i, conn := range o.connectors {
		wg.Add(1)
		go func(i int, conn source.Connector) {
			defer wg.Done()
			incidents, err := conn.Fetch(ctx, hint)
			outcomes[i] = outcome{incidents: incidents, err: err}
		}(i, conn)
	}
	wg.Wait()

	var published []domain.Incident
	for i, conn := range o.connectors {
		res := outcomes[i]
		if res.err != nil {
			o.metrics.ConnectorFetches.WithLabelValues(conn.Name(), "error").Inc()
			o.logger.Warn("connector fetch failed", "connector", conn.Name(), "error", res.err)
			o.store.AddLog(fmt.Sprintf("%s error: %v", conn.Name(), res.err), domain.LogAlert)
			continue
		}

		o.metrics.ConnectorFetches.WithLabelValues(conn.Name(), "success").Inc()
		o.metrics.CandidatesFetched.WithLabelValues(conn.Name()).Add(float64(len(res.incidents)))
		if len(res.incidents) == 0 {
			continue
		}

		merged := o.store.Merge(res.incidents)
		published = append(published, merged...)
		o.store.AddLog(fmt.Sprintf("%s uplink established.", conn.Name()), domain.LogSuccess)
		o.logger.Info("connector merged",
			"connector", conn.Name(),
			"candidates", len(res.incidents),
			"merged", len(merged))
	}

	o.store.TouchLastSync()
	o.publish(ctx, published)

	o.logger.Info("sync cycle complete",
		"duration", time.Since(start),
		"merged", len(published))
}

func (o *Orchestrator) publish(ctx context.Context, incidents []domain.Incident) {
	if o.publisher == nil || len(incidents) == 0 {
		return
	}
	if err := o.publisher.PublishIncidents(ctx, incidents); err != nil {
		o.logger.Error("incident publish failed", "error", err, "count", len(incidents))
	}
}

// Run executes Sync on a fixed interval until the context is cancelled.
// The first cycle starts immediately.
func (o *Orchestrator) Run(ctx context.Context, interval time.Duration, hint source.LocationHint) {
	o.logger.Info("sync loop started", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	o.Sync(ctx, hint)
	for {
		select {
		case <-ctx.Done():
			o.logger.Info("sync loop stopping", "reason", ctx.Err())
			return
		case <-ticker.C:
			o.Sync(ctx, hint)
		}
	}
}
