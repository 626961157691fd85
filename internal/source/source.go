// Package source holds the feed connectors that pull raw emergency signals
// from external systems and normalize them into incidents. Every connector
// runs each candidate through the classifier; irrelevant candidates are
// dropped before they reach the store.
package source

import (
	"context"
	"time"

	"github.com/fieldsignals/disaster-feed-sync/internal/domain"
)

// LocationHint biases location-aware connectors toward an area of interest.
// Connectors that cannot use it ignore it.
type LocationHint struct {
	Lat         float64
	Lng         float64
	City        string
	CountryCode string
}

// Connector is one upstream feed. Fetch returns only candidates the
// classifier judged relevant; a non-nil error means the whole feed was
// unreachable this cycle.
type Connector interface {
	Name() string
	Source() domain.IncidentSource
	Fetch(ctx context.Context, hint LocationHint) ([]domain.Incident, error)
}

// rawItem is one feed entry before classification.
type rawItem struct {
	Text      string
	Author    string
	Millis    int64
	ImageURL  string
	SourceURL string
	Coords    *domain.Coordinates
}

// normalizeItems classifies each raw entry and builds incidents from the
// relevant ones. Classifier errors are context cancellations and abort the
// batch; oracle degradation is already absorbed into fallback verdicts.
func normalizeItems(ctx context.Context, classify domain.Classifier, source domain.IncidentSource, items []rawItem) ([]domain.Incident, error) {
	incidents := make([]domain.Incident, 0, len(items))
	for _, item := range items {
		res, err := classify.Classify(ctx, item.Text, nil)
		if err != nil {
			return nil, err
		}
		if !res.Analysis.IsRelevant {
			continue
		}

		incidents = append(incidents, domain.Incident{
			ID:                domain.NewIncidentID(source, item.Millis),
			Author:            item.Author,
			Timestamp:         item.Millis,
			Text:              item.Text,
			ImageURL:          item.ImageURL,
			Status:            res.Analysis.Urgency,
			RiskScore:         res.Analysis.RiskScore,
			Reasoning:         res.Analysis.Reasoning,
			RecommendedAction: res.Analysis.RecommendedAction,
			Location:          res.Analysis.LocationDetected,
			Coordinates:       item.Coords,
			Source:            source,
			SourceURL:         item.SourceURL,
		})
	}
	return incidents, nil
}

// parseMillis converts an upstream timestamp to epoch millis, substituting
// the current time when the field is missing or malformed.
func parseMillis(value string) int64 {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UnixMilli()
	}
	return domain.NowMillis()
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
