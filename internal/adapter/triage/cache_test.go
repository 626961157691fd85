package triage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldsignals/disaster-feed-sync/internal/domain"
	"github.com/fieldsignals/disaster-feed-sync/internal/observability"
)

type stubClassifier struct {
	calls   int
	results map[string]domain.Result
}

func (s *stubClassifier) Classify(_ context.Context, text string, _ []byte) (domain.Result, error) {
	s.calls++
	if res, ok := s.results[text]; ok {
		return res, nil
	}
	return domain.Result{
		Analysis: domain.Analysis{IsRelevant: true, Urgency: domain.TriageYellow, RiskScore: 60},
		Verdict:  domain.VerdictClean,
	}, nil
}

type memBlobStore struct {
	blobs map[string][]byte
}

func newMemBlobStore() *memBlobStore {
	return &memBlobStore{blobs: make(map[string][]byte)}
}

func (m *memBlobStore) Save(key string, data []byte) error {
	m.blobs[key] = data
	return nil
}

func (m *memBlobStore) Load(key string) ([]byte, error) {
	return m.blobs[key], nil
}

func newTestCache(inner domain.Classifier, blobs BlobStore, capacity int) *CachedClassifier {
	return NewCachedClassifier(inner, blobs, capacity, discardLogger(), observability.NewMetricsForTesting())
}

func TestCachedClassifier_SecondCallServedFromCache(t *testing.T) {
	inner := &stubClassifier{}
	cache := newTestCache(inner, newMemBlobStore(), 200)
	ctx := context.Background()

	first, err := cache.Classify(ctx, "wildfire near ridge", nil)
	require.NoError(t, err)
	second, err := cache.Classify(ctx, "wildfire near ridge", nil)
	require.NoError(t, err)

	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, domain.VerdictCached, second.Verdict)
	assert.Equal(t, first.Analysis, second.Analysis)
}

func TestCachedClassifier_IrrelevantNotCached(t *testing.T) {
	inner := &stubClassifier{results: map[string]domain.Result{
		"spam": {
			Analysis: domain.Analysis{IsRelevant: false, Urgency: domain.TriageGreen, RiskScore: 50},
			Verdict:  domain.VerdictClean,
		},
	}}
	cache := newTestCache(inner, newMemBlobStore(), 200)
	ctx := context.Background()

	_, err := cache.Classify(ctx, "spam", nil)
	require.NoError(t, err)
	res, err := cache.Classify(ctx, "spam", nil)
	require.NoError(t, err)

	// Irrelevant text is re-evaluated every time.
	assert.Equal(t, 2, inner.calls)
	assert.NotEqual(t, domain.VerdictCached, res.Verdict)
}

func TestCachedClassifier_FIFOEviction(t *testing.T) {
	inner := &stubClassifier{}
	cache := newTestCache(inner, newMemBlobStore(), 2)
	ctx := context.Background()

	for _, text := range []string{"alpha", "bravo", "charlie"} {
		_, err := cache.Classify(ctx, text, nil)
		require.NoError(t, err)
	}
	require.Equal(t, 3, inner.calls)

	// bravo and charlie survive; alpha, the insertion-order oldest, was evicted.
	res, err := cache.Classify(ctx, "bravo", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.VerdictCached, res.Verdict)

	res, err = cache.Classify(ctx, "charlie", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.VerdictCached, res.Verdict)

	_, err = cache.Classify(ctx, "alpha", nil)
	require.NoError(t, err)
	assert.Equal(t, 4, inner.calls)
}

func TestCachedClassifier_PersistsAcrossInstances(t *testing.T) {
	blobs := newMemBlobStore()
	ctx := context.Background()

	first := newTestCache(&stubClassifier{}, blobs, 200)
	original, err := first.Classify(ctx, "levee breach reported", nil)
	require.NoError(t, err)

	// A fresh cache over the same blobs serves the entry without an oracle call.
	inner := &stubClassifier{}
	second := newTestCache(inner, blobs, 200)
	res, err := second.Classify(ctx, "levee breach reported", nil)
	require.NoError(t, err)

	assert.Zero(t, inner.calls)
	assert.Equal(t, domain.VerdictCached, res.Verdict)
	assert.Equal(t, original.Analysis, res.Analysis)
}

func TestCachedClassifier_CorruptBlobStartsEmpty(t *testing.T) {
	blobs := newMemBlobStore()
	blobs.blobs[cacheBlobKey] = []byte("not json")

	inner := &stubClassifier{}
	cache := newTestCache(inner, blobs, 200)

	_, err := cache.Classify(context.Background(), "mudslide", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls)
}

func TestCachedClassifier_ImageBypassesCache(t *testing.T) {
	inner := &stubClassifier{}
	cache := newTestCache(inner, newMemBlobStore(), 200)
	ctx := context.Background()
	image := []byte{0xff, 0xd8, 0xff}

	_, err := cache.Classify(ctx, "smoke plume photo", image)
	require.NoError(t, err)
	res, err := cache.Classify(ctx, "smoke plume photo", image)
	require.NoError(t, err)

	assert.Equal(t, 2, inner.calls)
	assert.NotEqual(t, domain.VerdictCached, res.Verdict)
}
