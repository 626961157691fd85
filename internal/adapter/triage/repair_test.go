package triage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldsignals/disaster-feed-sync/internal/domain"
)

func TestExtractAnalysis_Clean(t *testing.T) {
	raw := `{"is_relevant":true,"urgency":"RED","risk_score":90,` +
		`"reasoning":"Active wildfire","recommended_action":"Evacuate","location_detected":"Ridgecrest, CA"}`

	res, err := ExtractAnalysis(raw)
	require.NoError(t, err)

	assert.Equal(t, domain.VerdictClean, res.Verdict)
	assert.Empty(t, res.Warnings)
	assert.True(t, res.Analysis.IsRelevant)
	assert.Equal(t, domain.TriageRed, res.Analysis.Urgency)
	assert.Equal(t, 90, res.Analysis.RiskScore)
	assert.Equal(t, "Ridgecrest, CA", res.Analysis.LocationDetected)
}

func TestExtractAnalysis_CodeFences(t *testing.T) {
	raw := "```json\n{\"is_relevant\":true,\"urgency\":\"GREEN\",\"risk_score\":10," +
		"\"reasoning\":\"ok\",\"recommended_action\":\"none\",\"location_detected\":null}\n```"

	res, err := ExtractAnalysis(raw)
	require.NoError(t, err)
	assert.Equal(t, domain.VerdictClean, res.Verdict)
	assert.Equal(t, domain.TriageGreen, res.Analysis.Urgency)
	assert.Empty(t, res.Analysis.LocationDetected)
}

func TestExtractAnalysis_ProseWrapped(t *testing.T) {
	raw := `Here is the triage verdict you asked for: {"is_relevant":true,` +
		`"urgency":"YELLOW","risk_score":55,"reasoning":"flooding","recommended_action":"monitor",` +
		`"location_detected":"Chittagong"} Let me know if you need anything else.`

	res, err := ExtractAnalysis(raw)
	require.NoError(t, err)
	assert.Equal(t, domain.VerdictClean, res.Verdict)
	assert.Equal(t, 55, res.Analysis.RiskScore)
	assert.Equal(t, "Chittagong", res.Analysis.LocationDetected)
}

func TestExtractAnalysis_NestedObjectRepair(t *testing.T) {
	cases := []struct {
		name     string
		location string
		want     string
	}{
		{"prefers text", `{"text":"Naples","lat":40.8}`, "Naples"},
		{"then location", `{"location":"Naples","lat":40.8}`, "Naples"},
		{"then name", `{"name":"Naples","lat":40.8}`, "Naples"},
		{"then description", `{"description":"near Naples"}`, "near Naples"},
		{"else serialized", `{"lat":40.8}`, `{"lat":40.8}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw := `{"is_relevant":true,"urgency":"RED","risk_score":80,` +
				`"reasoning":"eruption","recommended_action":"evacuate","location_detected":` + tc.location + `}`

			res, err := ExtractAnalysis(raw)
			require.NoError(t, err)
			assert.Equal(t, domain.VerdictRepaired, res.Verdict)
			assert.NotEmpty(t, res.Warnings)
			assert.Equal(t, tc.want, res.Analysis.LocationDetected)
		})
	}
}

func TestExtractAnalysis_UnknownUrgencyDefaultsYellow(t *testing.T) {
	raw := `{"is_relevant":true,"urgency":"PURPLE","risk_score":70,` +
		`"reasoning":"x","recommended_action":"y","location_detected":null}`

	res, err := ExtractAnalysis(raw)
	require.NoError(t, err)
	assert.Equal(t, domain.VerdictRepaired, res.Verdict)
	assert.Equal(t, domain.TriageYellow, res.Analysis.Urgency)
}

func TestExtractAnalysis_RiskScoreClamping(t *testing.T) {
	cases := []struct {
		raw  string
		want int
	}{
		{`{"is_relevant":true,"urgency":"RED","risk_score":250}`, 100},
		{`{"is_relevant":true,"urgency":"RED","risk_score":-10}`, 50},
		{`{"is_relevant":true,"urgency":"RED","risk_score":0}`, 50},
		{`{"is_relevant":true,"urgency":"RED"}`, 50},
	}
	for _, tc := range cases {
		res, err := ExtractAnalysis(tc.raw)
		require.NoError(t, err)
		assert.Equal(t, tc.want, res.Analysis.RiskScore, "raw %s", tc.raw)
	}
}

func TestExtractAnalysis_MissingRelevanceAssumesRelevant(t *testing.T) {
	res, err := ExtractAnalysis(`{"urgency":"GREEN","risk_score":5}`)
	require.NoError(t, err)
	assert.True(t, res.Analysis.IsRelevant)
	assert.Equal(t, domain.VerdictRepaired, res.Verdict)
}

func TestExtractAnalysis_Unparseable(t *testing.T) {
	_, err := ExtractAnalysis("the grid is down, no json here")
	require.Error(t, err)
}
