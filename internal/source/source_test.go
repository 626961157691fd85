package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldsignals/disaster-feed-sync/internal/domain"
)

// relevantClassifier judges everything relevant unless its text contains a
// configured marker.
type relevantClassifier struct {
	irrelevantMarker string
	seen             []string
}

func (c *relevantClassifier) Classify(_ context.Context, text string, _ []byte) (domain.Result, error) {
	c.seen = append(c.seen, text)
	analysis := domain.Analysis{
		IsRelevant:        true,
		Urgency:           domain.TriageYellow,
		RiskScore:         60,
		Reasoning:         "test verdict",
		RecommendedAction: "monitor",
		LocationDetected:  "Testville",
	}
	if c.irrelevantMarker != "" && strings.Contains(text, c.irrelevantMarker) {
		analysis.IsRelevant = false
	}
	return domain.Result{Analysis: analysis, Verdict: domain.VerdictClean}, nil
}

func jsonServer(t *testing.T, body string, check func(r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEONETHotspots_Fetch(t *testing.T) {
	body := `{"events":[{
		"title":"Ridgeline Fire",
		"categories":[{"title":"Wildfires"}],
		"sources":[{"url":"https://inciweb.example/ridgeline"}],
		"geometry":[{"date":"2026-08-29T10:00:00Z","coordinates":[-120.5,38.2]}]
	}]}`
	srv := jsonServer(t, body, func(r *http.Request) {
		assert.Equal(t, "/categories/wildfires", r.URL.Path)
		assert.Equal(t, "open", r.URL.Query().Get("status"))
		assert.Equal(t, "15", r.URL.Query().Get("limit"))
	})

	classify := &relevantClassifier{}
	c := NewEONETHotspots(classify, srv.URL, 5*time.Second)
	assert.Equal(t, "NASA_FIRMS", c.Name())

	incidents, err := c.Fetch(context.Background(), LocationHint{})
	require.NoError(t, err)
	require.Len(t, incidents, 1)

	got := incidents[0]
	assert.Contains(t, got.Text, "NASA FIRMS HOTSPOT: Ridgeline Fire.")
	assert.Contains(t, got.Text, "MODIS/VIIRS")
	assert.Equal(t, "NASA FIRMS", got.Author)
	assert.Equal(t, domain.SourceNASA, got.Source)
	assert.Equal(t, "https://inciweb.example/ridgeline", got.SourceURL)
	assert.True(t, strings.HasPrefix(got.ID, "nasa-"))
	assert.Equal(t, time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC).UnixMilli(), got.Timestamp)
	require.NotNil(t, got.Coordinates)
	assert.Equal(t, 38.2, got.Coordinates.Lat)
	assert.Equal(t, -120.5, got.Coordinates.Lng)
	assert.Equal(t, "Testville", got.Location)
}

func TestEONETEvents_Fetch_CategoryFallback(t *testing.T) {
	body := `{"events":[
		{"title":"Iceberg A-23","categories":[{"title":"Sea and Lake Ice"}],"geometry":[{"date":"2026-08-28T00:00:00Z","coordinates":[-40.0,-75.0]}]},
		{"title":"Unlabeled Event","categories":[],"geometry":[]}
	]}`
	srv := jsonServer(t, body, func(r *http.Request) {
		assert.Equal(t, "/events", r.URL.Path)
		assert.Equal(t, "30", r.URL.Query().Get("limit"))
	})

	fake := clockwork.NewFakeClockAt(time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC))
	domain.SetClock(fake)
	t.Cleanup(func() { domain.SetClock(nil) })

	classify := &relevantClassifier{}
	c := NewEONETEvents(classify, srv.URL, 5*time.Second)
	incidents, err := c.Fetch(context.Background(), LocationHint{})
	require.NoError(t, err)
	require.Len(t, incidents, 2)

	assert.Contains(t, incidents[0].Text, "Type: Sea and Lake Ice.")
	assert.Contains(t, incidents[1].Text, "Type: Environmental Event.")
	// No geometry means the current clock time is used.
	assert.Equal(t, fake.Now().UnixMilli(), incidents[1].Timestamp)
	assert.Nil(t, incidents[1].Coordinates)
}

func TestEONET_FetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	c := NewEONETHotspots(&relevantClassifier{}, srv.URL, 5*time.Second)
	_, err := c.Fetch(context.Background(), LocationHint{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hotspot sync")
	assert.Contains(t, err.Error(), "503")
}

func TestUSGSQuakes_Fetch(t *testing.T) {
	body := `{"features":[{
		"properties":{"mag":6.1,"place":"42 km W of Petrolia, CA","time":1756400000000,"url":"https://usgs.example/eq1"},
		"geometry":{"coordinates":[-124.7,40.3,19.2]}
	}]}`
	srv := jsonServer(t, body, nil)

	classify := &relevantClassifier{}
	c := NewUSGSQuakes(classify, srv.URL, 5*time.Second)
	assert.Equal(t, "USGS", c.Name())

	incidents, err := c.Fetch(context.Background(), LocationHint{})
	require.NoError(t, err)
	require.Len(t, incidents, 1)

	got := incidents[0]
	assert.Equal(t, "Quake M6.1 - 42 km W of Petrolia, CA", got.Text)
	assert.Equal(t, "USGS", got.Author)
	assert.Equal(t, domain.SourceNASA, got.Source)
	assert.Equal(t, int64(1756400000000), got.Timestamp)
	require.NotNil(t, got.Coordinates)
	assert.Equal(t, 40.3, got.Coordinates.Lat)
	assert.Equal(t, -124.7, got.Coordinates.Lng)
}

func TestUSGSQuakes_CapsFeatures(t *testing.T) {
	var sb strings.Builder
	sb.WriteString(`{"features":[`)
	for i := 0; i < 15; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(`{"properties":{"mag":5.0,"place":"somewhere","time":1756400000000,"url":""},"geometry":{"coordinates":[0,0,0]}}`)
	}
	sb.WriteString(`]}`)
	srv := jsonServer(t, sb.String(), nil)

	classify := &relevantClassifier{}
	c := NewUSGSQuakes(classify, srv.URL, 5*time.Second)
	incidents, err := c.Fetch(context.Background(), LocationHint{})
	require.NoError(t, err)
	assert.Len(t, incidents, maxQuakes)
	assert.Len(t, classify.seen, maxQuakes)
}

func TestReliefWebReports_Fetch(t *testing.T) {
	longBody := strings.Repeat("x", 300)
	body := `{"data":[{
		"href":"https://reliefweb.example/report/1",
		"fields":{"title":"Flash floods displace thousands","body":"` + longBody + `","date":{"created":"2026-08-29T06:00:00+00:00"}}
	}]}`
	srv := jsonServer(t, body, func(r *http.Request) {
		assert.Equal(t, "dispatch", r.URL.Query().Get("appname"))
		assert.Equal(t, "3", r.URL.Query().Get("limit"))
		assert.Equal(t, "date:desc", r.URL.Query().Get("sort[]"))
		assert.ElementsMatch(t, []string{"title", "body", "date"}, r.URL.Query()["fields[include][]"])
	})

	classify := &relevantClassifier{}
	c := NewReliefWebReports(classify, srv.URL, 5*time.Second)
	incidents, err := c.Fetch(context.Background(), LocationHint{})
	require.NoError(t, err)
	require.Len(t, incidents, 1)

	got := incidents[0]
	assert.True(t, strings.HasPrefix(got.Text, "Flash floods displace thousands - "))
	assert.Len(t, got.Text, len("Flash floods displace thousands - ")+bodyExcerptLen)
	assert.Equal(t, domain.SourceReliefWeb, got.Source)
	assert.Equal(t, "https://reliefweb.example/report/1", got.SourceURL)
}

func TestMastodonTimeline_Fetch(t *testing.T) {
	body := `[{
		"content":"<p>Wildfire spreading near <a href=\"https://example.com\">the ridge</a>. Evacuations underway.</p>",
		"created_at":"2026-08-30T09:30:00Z",
		"url":"https://mastodon.example/@ada/1",
		"account":{"username":"ada"},
		"media_attachments":[{"preview_url":"https://mastodon.example/media/1.jpg"}]
	}]`
	srv := jsonServer(t, body, func(r *http.Request) {
		assert.Equal(t, "/api/v1/timelines/tag/emergency", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
	})

	classify := &relevantClassifier{}
	c := NewMastodonTimeline(classify, srv.URL, "emergency", 5*time.Second)
	incidents, err := c.Fetch(context.Background(), LocationHint{})
	require.NoError(t, err)
	require.Len(t, incidents, 1)

	got := incidents[0]
	assert.Equal(t, "Wildfire spreading near the ridge. Evacuations underway.", got.Text)
	assert.Equal(t, "@ada", got.Author)
	assert.Equal(t, domain.SourceMastodon, got.Source)
	assert.Equal(t, "https://mastodon.example/media/1.jpg", got.ImageURL)
	assert.Equal(t, "https://mastodon.example/@ada/1", got.SourceURL)
}

func TestNewswire_Fetch(t *testing.T) {
	scanner := &stubScanner{headlines: []domain.Headline{
		{Title: "Dam failure threatens valley towns", URL: "https://news.example/dam", Source: "Example Wire"},
	}}

	classify := &relevantClassifier{}
	c := NewNewswire(scanner, classify)
	assert.Equal(t, "AI_Monitor", c.Name())

	incidents, err := c.Fetch(context.Background(), LocationHint{City: "Valle Verde"})
	require.NoError(t, err)
	require.Len(t, incidents, 1)

	assert.Equal(t, "Valle Verde", scanner.gotCity)
	got := incidents[0]
	assert.Equal(t, "Dam failure threatens valley towns", got.Text)
	assert.Equal(t, "AI Monitor", got.Author)
	assert.Equal(t, domain.SourceWebScraper, got.Source)
	assert.Equal(t, "https://news.example/dam", got.SourceURL)
}

type stubScanner struct {
	headlines []domain.Headline
	gotCity   string
}

func (s *stubScanner) ScanHeadlines(_ context.Context, city string) ([]domain.Headline, error) {
	s.gotCity = city
	return s.headlines, nil
}

func TestNormalize_DropsIrrelevant(t *testing.T) {
	body := `{"events":[
		{"title":"Promo post about hiking gear","geometry":[{"date":"2026-08-29T10:00:00Z","coordinates":[0,0]}]},
		{"title":"Canyon Fire","geometry":[{"date":"2026-08-29T11:00:00Z","coordinates":[1,1]}]}
	]}`
	srv := jsonServer(t, body, nil)

	classify := &relevantClassifier{irrelevantMarker: "Promo"}
	c := NewEONETEvents(classify, srv.URL, 5*time.Second)
	incidents, err := c.Fetch(context.Background(), LocationHint{})
	require.NoError(t, err)

	// Both candidates were classified but only the relevant one survives.
	assert.Len(t, classify.seen, 2)
	require.Len(t, incidents, 1)
	assert.Contains(t, incidents[0].Text, "Canyon Fire")
}

func TestStripHTML(t *testing.T) {
	assert.Equal(t, "plain already", stripHTML("plain already"))
	assert.Equal(t, "Flood warning issued", stripHTML("<p>Flood <b>warning</b> issued</p>"))
}
