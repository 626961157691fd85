package triage

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/fieldsignals/disaster-feed-sync/internal/domain"
	"github.com/fieldsignals/disaster-feed-sync/internal/observability"
)

// cacheBlobKey matches store.KeyTriageCache so the store's purge clears the
// persisted cache alongside everything else.
const cacheBlobKey = "triage_cache"

// BlobStore is the slice of the persistence interface the cache needs.
type BlobStore interface {
	Save(key string, data []byte) error
	Load(key string) ([]byte, error)
}

// cacheRecord is the persisted form of one entry. A slice of records keeps
// the insertion order that FIFO eviction depends on.
type cacheRecord struct {
	Text     string          `json:"text"`
	Analysis domain.Analysis `json:"analysis"`
}

// CachedClassifier decorates a Classifier with a content-addressed cache
// keyed on exact raw text. Eviction is FIFO, not LRU: once the cache is at
// capacity the insertion-order-oldest entry goes first, regardless of hits.
// Only relevant verdicts are cached so borderline text can be re-evaluated
// later. The cache persists through the blob store and hydrates lazily on
// first access.
type CachedClassifier struct {
	inner    domain.Classifier
	blobs    BlobStore
	logger   *slog.Logger
	metrics  *observability.Metrics
	capacity int

	mu      sync.Mutex
	loaded  bool
	entries map[string]domain.Analysis
	order   []string // insertion order, oldest first
}

// NewCachedClassifier wraps a classifier with a FIFO cache of the given capacity.
func NewCachedClassifier(inner domain.Classifier, blobs BlobStore, capacity int, logger *slog.Logger, metrics *observability.Metrics) *CachedClassifier {
	return &CachedClassifier{
		inner:    inner,
		blobs:    blobs,
		logger:   logger,
		metrics:  metrics,
		capacity: capacity,
		entries:  make(map[string]domain.Analysis),
	}
}

// Classify serves identical text from the cache without a second oracle
// call. Image-bearing requests bypass the cache since the key is text-only.
func (c *CachedClassifier) Classify(ctx context.Context, text string, image []byte) (domain.Result, error) {
	if len(image) > 0 {
		return c.inner.Classify(ctx, text, image)
	}

	if analysis, ok := c.lookup(text); ok {
		c.metrics.TriageCache.WithLabelValues("hit").Inc()
		return domain.Result{Analysis: analysis, Verdict: domain.VerdictCached}, nil
	}
	c.metrics.TriageCache.WithLabelValues("miss").Inc()

	res, err := c.inner.Classify(ctx, text, nil)
	if err != nil {
		return res, err
	}
	if res.Analysis.IsRelevant {
		c.store(text, res.Analysis)
	}
	return res, nil
}

func (c *CachedClassifier) lookup(text string) (domain.Analysis, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hydrateLocked()
	analysis, ok := c.entries[text]
	return analysis, ok
}

func (c *CachedClassifier) store(text string, analysis domain.Analysis) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hydrateLocked()

	if _, exists := c.entries[text]; !exists {
		if len(c.order) >= c.capacity {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.order = append(c.order, text)
	}
	c.entries[text] = analysis
	c.persistLocked()
}

// hydrateLocked loads the persisted cache on first access. Corrupt or absent
// blobs start an empty cache.
func (c *CachedClassifier) hydrateLocked() {
	if c.loaded {
		return
	}
	c.loaded = true

	data, err := c.blobs.Load(cacheBlobKey)
	if err != nil || len(data) == 0 {
		return
	}
	var records []cacheRecord
	if err := json.Unmarshal(data, &records); err != nil {
		c.logger.Warn("triage cache blob corrupt, starting empty", "error", err)
		return
	}
	for _, rec := range records {
		if _, dup := c.entries[rec.Text]; dup {
			continue
		}
		c.entries[rec.Text] = rec.Analysis
		c.order = append(c.order, rec.Text)
	}
}

func (c *CachedClassifier) persistLocked() {
	records := make([]cacheRecord, 0, len(c.order))
	for _, text := range c.order {
		records = append(records, cacheRecord{Text: text, Analysis: c.entries[text]})
	}
	data, err := json.Marshal(records)
	if err == nil {
		err = c.blobs.Save(cacheBlobKey, data)
	}
	if err != nil {
		c.logger.Warn("triage cache persist failed", "error", err)
	}
}
