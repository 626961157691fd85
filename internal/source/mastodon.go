package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/fieldsignals/disaster-feed-sync/internal/domain"
)

// MastodonTimeline reads recent public posts from one hashtag timeline.
// Post bodies arrive as HTML and are flattened to plain text before
// classification.
type MastodonTimeline struct {
	classify   domain.Classifier
	httpClient *http.Client
	baseURL    string
	tag        string
}

// NewMastodonTimeline creates the social connector for the given instance
// and hashtag.
func NewMastodonTimeline(classify domain.Classifier, baseURL, tag string, timeout time.Duration) *MastodonTimeline {
	return &MastodonTimeline{
		classify:   classify,
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		tag:        tag,
	}
}

func (c *MastodonTimeline) Name() string { return "Mastodon" }

func (c *MastodonTimeline) Source() domain.IncidentSource { return domain.SourceMastodon }

func (c *MastodonTimeline) Fetch(ctx context.Context, _ LocationHint) ([]domain.Incident, error) {
	endpoint := fmt.Sprintf("%s/api/v1/timelines/tag/%s?limit=5", c.baseURL, url.PathEscape(c.tag))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("mastodon sync: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mastodon sync: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("mastodon sync: API error: status %d: %s", resp.StatusCode, body)
	}

	var statuses []struct {
		Content   string `json:"content"`
		CreatedAt string `json:"created_at"`
		URL       string `json:"url"`
		Account   struct {
			Username string `json:"username"`
		} `json:"account"`
		MediaAttachments []struct {
			PreviewURL string `json:"preview_url"`
		} `json:"media_attachments"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&statuses); err != nil {
		return nil, fmt.Errorf("mastodon sync: decode response: %w", err)
	}

	items := make([]rawItem, 0, len(statuses))
	for _, status := range statuses {
		item := rawItem{
			Text:      stripHTML(status.Content),
			Author:    "@" + status.Account.Username,
			Millis:    parseMillis(status.CreatedAt),
			SourceURL: status.URL,
		}
		if len(status.MediaAttachments) > 0 {
			item.ImageURL = status.MediaAttachments[0].PreviewURL
		}
		items = append(items, item)
	}
	return normalizeItems(ctx, c.classify, c.Source(), items)
}

// stripHTML flattens a post body to its text content.
func stripHTML(fragment string) string {
	root, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return fragment
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(root)
	return strings.TrimSpace(b.String())
}
