package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// TriageLevel is the urgency tier assigned by the triage oracle.
type TriageLevel string

const (
	TriageRed    TriageLevel = "RED"
	TriageYellow TriageLevel = "YELLOW"
	TriageGreen  TriageLevel = "GREEN"
)

// ParseTriageLevel maps oracle output onto a defined tier. Unrecognized
// values fall back to YELLOW so an invalid tier is never stored.
func ParseTriageLevel(value string) (TriageLevel, bool) {
	switch TriageLevel(strings.ToUpper(strings.TrimSpace(value))) {
	case TriageRed:
		return TriageRed, true
	case TriageYellow:
		return TriageYellow, true
	case TriageGreen:
		return TriageGreen, true
	default:
		return TriageYellow, false
	}
}

// IncidentSource tags the connector (or injection path) that produced a record.
type IncidentSource string

const (
	SourceManual     IncidentSource = "Manual"
	SourceVoice      IncidentSource = "Voice"
	SourceMastodon   IncidentSource = "Mastodon"
	SourceReliefWeb  IncidentSource = "ReliefWeb"
	SourceGDACS      IncidentSource = "GDACS"
	SourceWebScraper IncidentSource = "WebScraper"
	SourceBluesky    IncidentSource = "Bluesky"
	SourceGDELT      IncidentSource = "GDELT"
	SourceNASA       IncidentSource = "NASA"
)

// Coordinates is a WGS-84 geographic point.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Incident is the canonical normalized record for one detected emergency
// signal. Records are immutable once inserted into the store; resolution
// removes them outright.
type Incident struct {
	ID                string         `json:"id"`
	Author            string         `json:"author"`
	Timestamp         int64          `json:"timestamp"` // epoch millis of the original event, not ingestion
	Text              string         `json:"text"`
	ImageURL          string         `json:"imageUrl,omitempty"`
	Status            TriageLevel    `json:"status"`
	RiskScore         int            `json:"riskScore"`
	Reasoning         string         `json:"reasoning"`
	RecommendedAction string         `json:"recommendedAction"`
	Location          string         `json:"location,omitempty"`
	Coordinates       *Coordinates   `json:"coordinates,omitempty"`
	Source            IncidentSource `json:"source"`
	SourceURL         string         `json:"sourceUrl,omitempty"`
}

// NewIncidentID builds an incident ID from the source tag, the original event
// timestamp in millis, and a random disambiguator. IDs are deliberately not
// content hashes; collision risk across the random suffix is tolerated.
func NewIncidentID(source IncidentSource, eventMillis int64) string {
	return fmt.Sprintf("%s-%d-%s", strings.ToLower(string(source)), eventMillis, uuid.NewString()[:8])
}

// NormalizeRiskScore clamps a raw oracle score into [0,100]. A missing or
// zero score defaults to 50, matching the midpoint the fallback verdict uses.
func NormalizeRiskScore(score int) int {
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	if score == 0 {
		return 50
	}
	return score
}
