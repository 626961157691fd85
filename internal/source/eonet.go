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

// EONET API response types.

type eonetEnvelope struct {
	Events []eonetEvent `json:"events"`
}

type eonetEvent struct {
	Title      string `json:"title"`
	Categories []struct {
		Title string `json:"title"`
	} `json:"categories"`
	Sources []struct {
		URL string `json:"url"`
	} `json:"sources"`
	Geometry []struct {
		Date        string    `json:"date"`
		Coordinates []float64 `json:"coordinates"` // [lon, lat]
	} `json:"geometry"`
}

func fetchEONET(ctx context.Context, client *http.Client, fullURL string) ([]eonetEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("eonet request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("eonet API error: status %d: %s", resp.StatusCode, body)
	}

	var envelope eonetEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return envelope.Events, nil
}

// eonetItem normalizes one event into a raw candidate using the given text.
func eonetItem(event eonetEvent, text string, author string) rawItem {
	item := rawItem{Text: text, Author: author, Millis: domain.NowMillis()}
	if len(event.Sources) > 0 {
		item.SourceURL = event.Sources[0].URL
	}
	if len(event.Geometry) > 0 {
		geom := event.Geometry[0]
		item.Millis = parseMillis(geom.Date)
		if len(geom.Coordinates) == 2 {
			item.Coords = &domain.Coordinates{Lat: geom.Coordinates[1], Lng: geom.Coordinates[0]}
		}
	}
	return item
}

// EONETHotspots reads the EONET open-wildfires category as a proxy for
// satellite thermal-hotspot detections.
type EONETHotspots struct {
	classify   domain.Classifier
	httpClient *http.Client
	baseURL    string
}

// NewEONETHotspots creates the wildfire hotspot connector.
func NewEONETHotspots(classify domain.Classifier, baseURL string, timeout time.Duration) *EONETHotspots {
	return &EONETHotspots{
		classify:   classify,
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
	}
}

func (c *EONETHotspots) Name() string { return "NASA_FIRMS" }

func (c *EONETHotspots) Source() domain.IncidentSource { return domain.SourceNASA }

func (c *EONETHotspots) Fetch(ctx context.Context, _ LocationHint) ([]domain.Incident, error) {
	events, err := fetchEONET(ctx, c.httpClient, c.baseURL+"/categories/wildfires?status=open&limit=15")
	if err != nil {
		return nil, fmt.Errorf("hotspot sync: %w", err)
	}

	items := make([]rawItem, 0, len(events))
	for _, event := range events {
		text := fmt.Sprintf("NASA FIRMS HOTSPOT: %s. Thermal anomaly detected via MODIS/VIIRS satellite constellation. Confirmed wildfire signature.", event.Title)
		items = append(items, eonetItem(event, text, "NASA FIRMS"))
	}
	return normalizeItems(ctx, c.classify, c.Source(), items)
}

// EONETEvents reads all open EONET natural events.
type EONETEvents struct {
	classify   domain.Classifier
	httpClient *http.Client
	baseURL    string
}

// NewEONETEvents creates the open-events connector.
func NewEONETEvents(classify domain.Classifier, baseURL string, timeout time.Duration) *EONETEvents {
	return &EONETEvents{
		classify:   classify,
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
	}
}

func (c *EONETEvents) Name() string { return "NASA_EONET" }

func (c *EONETEvents) Source() domain.IncidentSource { return domain.SourceNASA }

func (c *EONETEvents) Fetch(ctx context.Context, _ LocationHint) ([]domain.Incident, error) {
	events, err := fetchEONET(ctx, c.httpClient, c.baseURL+"/events?status=open&limit=30")
	if err != nil {
		return nil, fmt.Errorf("orbital uplink: %w", err)
	}

	items := make([]rawItem, 0, len(events))
	for _, event := range events {
		category := "Environmental Event"
		if len(event.Categories) > 0 && event.Categories[0].Title != "" {
			category = event.Categories[0].Title
		}
		text := fmt.Sprintf("NASA SAT-ALERT: %s. Type: %s. Telemetry confirmed via NASA EONET.", event.Title, category)
		items = append(items, eonetItem(event, text, "NASA EONET"))
	}
	return normalizeItems(ctx, c.classify, c.Source(), items)
}
