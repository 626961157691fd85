package triage

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fieldsignals/disaster-feed-sync/internal/domain"
)

// ExtractAnalysis parses raw oracle output into an Analysis, repairing the
// two malformations the oracle is known for: JSON wrapped in prose or code
// fences, and string fields that arrive as nested objects. Only output with
// no recoverable JSON at all returns an error.
func ExtractAnalysis(raw string) (domain.Result, error) {
	cleaned := stripWrapping(raw)

	var fields map[string]any
	if err := json.Unmarshal([]byte(cleaned), &fields); err != nil {
		return domain.Result{}, fmt.Errorf("extract analysis: %w", err)
	}

	var warnings []string
	flattened := make(map[string]any, len(fields))
	for key, value := range fields {
		repaired, touched := flattenValue(value)
		if touched {
			warnings = append(warnings, fmt.Sprintf("field %q held a nested object", key))
		}
		flattened[key] = repaired
	}

	analysis, fieldWarnings := mapAnalysis(flattened)
	warnings = append(warnings, fieldWarnings...)

	verdict := domain.VerdictClean
	if len(warnings) > 0 {
		verdict = domain.VerdictRepaired
	}
	return domain.Result{Analysis: analysis, Verdict: verdict, Warnings: warnings}, nil
}

// stripWrapping removes code fences and any prose outside the outermost
// JSON object.
func stripWrapping(raw string) string {
	cleaned := strings.ReplaceAll(raw, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start >= 0 && end > start {
		cleaned = cleaned[start : end+1]
	}
	return cleaned
}

// flattenValue rewrites a nested object into a plain string, preferring the
// human-readable sub-fields text, location, name, description in that order
// and falling back to re-serialization. Reports whether a repair happened.
func flattenValue(value any) (any, bool) {
	nested, ok := value.(map[string]any)
	if !ok {
		return value, false
	}

	for _, key := range []string{"text", "location", "name", "description"} {
		if sub, ok := nested[key]; ok && sub != nil {
			return fmt.Sprintf("%v", sub), true
		}
	}

	serialized, err := json.Marshal(nested)
	if err != nil {
		return "", true
	}
	return string(serialized), true
}

// mapAnalysis converts loosely typed fields into a validated Analysis,
// clamping and defaulting rather than propagating bad values.
func mapAnalysis(fields map[string]any) (domain.Analysis, []string) {
	var warnings []string

	relevant := true
	if v, ok := fields["is_relevant"].(bool); ok {
		relevant = v
	} else {
		warnings = append(warnings, "is_relevant missing or not boolean, assuming relevant")
	}

	urgency, known := domain.ParseTriageLevel(asString(fields["urgency"]))
	if !known {
		warnings = append(warnings, fmt.Sprintf("unrecognized urgency %q, defaulting to YELLOW", asString(fields["urgency"])))
	}

	score := 0
	if v, ok := fields["risk_score"].(float64); ok {
		score = int(v)
	}

	return domain.Analysis{
		IsRelevant:        relevant,
		Urgency:           urgency,
		RiskScore:         domain.NormalizeRiskScore(score),
		Reasoning:         asString(fields["reasoning"]),
		RecommendedAction: asString(fields["recommended_action"]),
		LocationDetected:  asString(fields["location_detected"]),
	}, warnings
}

func asString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
