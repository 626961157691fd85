package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/fieldsignals/disaster-feed-sync/internal/domain"
)

// bodyExcerptLen bounds how much of a report body is carried into the signal
// text sent to the classifier.
const bodyExcerptLen = 150

// ReliefWebReports reads the latest humanitarian situation reports from the
// ReliefWeb API.
type ReliefWebReports struct {
	classify   domain.Classifier
	httpClient *http.Client
	baseURL    string
}

// NewReliefWebReports creates the humanitarian-reports connector. baseURL is
// the reports endpoint without query parameters.
func NewReliefWebReports(classify domain.Classifier, baseURL string, timeout time.Duration) *ReliefWebReports {
	return &ReliefWebReports{
		classify:   classify,
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
	}
}

func (c *ReliefWebReports) Name() string { return "ReliefWeb" }

func (c *ReliefWebReports) Source() domain.IncidentSource { return domain.SourceReliefWeb }

func (c *ReliefWebReports) Fetch(ctx context.Context, _ LocationHint) ([]domain.Incident, error) {
	params := url.Values{
		"appname":           {"dispatch"},
		"limit":             {"3"},
		"sort[]":            {"date:desc"},
		"fields[include][]": {"title", "body", "date"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("reliefweb sync: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reliefweb sync: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("reliefweb sync: API error: status %d: %s", resp.StatusCode, body)
	}

	var payload struct {
		Data []struct {
			Href   string `json:"href"`
			Fields struct {
				Title string `json:"title"`
				Body  string `json:"body"`
				Date  struct {
					Created string `json:"created"`
				} `json:"date"`
			} `json:"fields"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("reliefweb sync: decode response: %w", err)
	}

	items := make([]rawItem, 0, len(payload.Data))
	for _, report := range payload.Data {
		items = append(items, rawItem{
			Text:      fmt.Sprintf("%s - %s", report.Fields.Title, truncate(report.Fields.Body, bodyExcerptLen)),
			Author:    "ReliefWeb",
			Millis:    parseMillis(report.Fields.Date.Created),
			SourceURL: report.Href,
		})
	}
	return normalizeItems(ctx, c.classify, c.Source(), items)
}
