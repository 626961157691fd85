package source

import (
	"context"
	"fmt"

	"github.com/fieldsignals/disaster-feed-sync/internal/domain"
)

// Newswire turns the oracle's news survey into incident candidates. It is
// the only connector that uses the location hint: the scan is biased toward
// the hint's city when one is set.
type Newswire struct {
	scanner  domain.HeadlineScanner
	classify domain.Classifier
}

// NewNewswire creates the news-scan connector.
func NewNewswire(scanner domain.HeadlineScanner, classify domain.Classifier) *Newswire {
	return &Newswire{scanner: scanner, classify: classify}
}

func (c *Newswire) Name() string { return "AI_Monitor" }

func (c *Newswire) Source() domain.IncidentSource { return domain.SourceWebScraper }

func (c *Newswire) Fetch(ctx context.Context, hint LocationHint) ([]domain.Incident, error) {
	headlines, err := c.scanner.ScanHeadlines(ctx, hint.City)
	if err != nil {
		return nil, fmt.Errorf("news monitor: %w", err)
	}

	items := make([]rawItem, 0, len(headlines))
	for _, headline := range headlines {
		items = append(items, rawItem{
			Text:      headline.Title,
			Author:    "AI Monitor",
			Millis:    domain.NowMillis(),
			SourceURL: headline.URL,
		})
	}
	return normalizeItems(ctx, c.classify, c.Source(), items)
}
