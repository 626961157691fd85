package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fieldsignals/disaster-feed-sync/internal/domain"
)

// maxQuakes caps how many features of the day feed are considered per cycle.
const maxQuakes = 10

// USGSQuakes reads the USGS significant-earthquake GeoJSON summary feed.
type USGSQuakes struct {
	classify   domain.Classifier
	httpClient *http.Client
	feedURL    string
}

// NewUSGSQuakes creates the seismic connector. feedURL is the complete
// summary feed address, magnitude window included.
func NewUSGSQuakes(classify domain.Classifier, feedURL string, timeout time.Duration) *USGSQuakes {
	return &USGSQuakes{
		classify:   classify,
		httpClient: &http.Client{Timeout: timeout},
		feedURL:    feedURL,
	}
}

func (c *USGSQuakes) Name() string { return "USGS" }

func (c *USGSQuakes) Source() domain.IncidentSource { return domain.SourceNASA }

func (c *USGSQuakes) Fetch(ctx context.Context, _ LocationHint) ([]domain.Incident, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("seismic sync: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("seismic sync: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("seismic sync: USGS feed error: status %d: %s", resp.StatusCode, body)
	}

	var feed struct {
		Features []struct {
			Properties struct {
				Mag   float64 `json:"mag"`
				Place string  `json:"place"`
				Time  int64   `json:"time"` // epoch millis
				URL   string  `json:"url"`
			} `json:"properties"`
			Geometry struct {
				Coordinates []float64 `json:"coordinates"` // [lon, lat, depth]
			} `json:"geometry"`
		} `json:"features"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("seismic sync: decode response: %w", err)
	}

	features := feed.Features
	if len(features) > maxQuakes {
		features = features[:maxQuakes]
	}

	items := make([]rawItem, 0, len(features))
	for _, f := range features {
		item := rawItem{
			Text:      fmt.Sprintf("Quake M%g - %s", f.Properties.Mag, f.Properties.Place),
			Author:    "USGS",
			Millis:    f.Properties.Time,
			SourceURL: f.Properties.URL,
		}
		if len(f.Geometry.Coordinates) >= 2 {
			item.Coords = &domain.Coordinates{Lat: f.Geometry.Coordinates[1], Lng: f.Geometry.Coordinates[0]}
		}
		items = append(items, item)
	}
	return normalizeItems(ctx, c.classify, c.Source(), items)
}
