package domain

import "context"

// Analysis is the structured judgement returned by the triage oracle for one
// raw text. Field names mirror the oracle's response schema.
type Analysis struct {
	IsRelevant        bool        `json:"is_relevant"`
	Urgency           TriageLevel `json:"urgency"`
	RiskScore         int         `json:"risk_score"`
	Reasoning         string      `json:"reasoning"`
	RecommendedAction string      `json:"recommended_action"`
	LocationDetected  string      `json:"location_detected,omitempty"`
}

// Verdict describes how an Analysis was obtained.
type Verdict string

const (
	// VerdictClean means the oracle output parsed without intervention.
	VerdictClean Verdict = "clean"
	// VerdictRepaired means malformed oracle output was rewritten into a
	// usable Analysis; Warnings records what was touched.
	VerdictRepaired Verdict = "repaired"
	// VerdictFallback means the oracle was unreachable or unsalvageable and
	// the fixed fallback Analysis was substituted.
	VerdictFallback Verdict = "fallback"
	// VerdictCached means the Analysis was served from the classification
	// cache without an oracle call.
	VerdictCached Verdict = "cached"
)

// Result pairs an Analysis with its provenance.
type Result struct {
	Analysis Analysis
	Verdict  Verdict
	Warnings []string
}

// Classifier judges raw text (optionally with an evidentiary image).
// Implementations absorb oracle failures into a fallback Result; the error
// return is reserved for context cancellation.
type Classifier interface {
	Classify(ctx context.Context, text string, image []byte) (Result, error)
}

// Headline is one item surfaced by a news survey.
type Headline struct {
	Title  string `json:"title"`
	URL    string `json:"url"`
	Source string `json:"source"`
}

// HeadlineScanner surveys current disaster news, optionally biased toward a
// city. Unlike Classifier, a failed scan surfaces as an error.
type HeadlineScanner interface {
	ScanHeadlines(ctx context.Context, city string) ([]Headline, error)
}

// FallbackAnalysis is the fixed verdict substituted when the oracle fails
// outright. The item stays in the pipeline as a mid-urgency signal rather
// than being dropped.
func FallbackAnalysis() Analysis {
	return Analysis{
		IsRelevant:        true,
		Urgency:           TriageYellow,
		RiskScore:         50,
		Reasoning:         "Uplink degraded. Analysis estimated from partial signal.",
		RecommendedAction: "Field assessment required.",
	}
}

// FallbackResult wraps FallbackAnalysis with the reason the oracle path failed.
func FallbackResult(reason string) Result {
	return Result{
		Analysis: FallbackAnalysis(),
		Verdict:  VerdictFallback,
		Warnings: []string{reason},
	}
}
