package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reporting-service/internal/apperr"
)

func qualityBands() []Band {
	return []Band{
		{Min: 0, Label: "Poor"},
		{Min: 40, Label: "Fair"},
		{Min: 60, Label: "Good"},
		{Min: 80, Label: "Excellent"},
	}
}

func TestScoreCardWeightedSum(t *testing.T) {
	card := ScoreCard{
		Name: "quality",
		Inputs: []ScaledInput{
			{Metric: "metricA", Weight: 0.4},
			{Metric: "metricB", Weight: 0.6},
		},
		Bands: qualityBands(),
	}

	summary := card.Evaluate(map[string]float64{"metricA": 100, "metricB": 0})
	assert.Equal(t, 40.0, summary.Score)
	assert.Equal(t, "Fair", summary.Band)
}

func TestScoreCardBandsCoverEveryScore(t *testing.T) {
	card := ScoreCard{Name: "quality", Bands: qualityBands()}
	require.NoError(t, card.Validate())

	for s := 0; s <= 100; s++ {
		matches := 0
		bands := card.sortedBands()
		for i, band := range bands {
			upper := 101.0
			if i+1 < len(bands) {
				upper = bands[i+1].Min
			}
			if float64(s) >= band.Min && float64(s) < upper {
				matches++
			}
		}
		assert.Equal(t, 1, matches, "score %d must fall in exactly one band", s)
	}
}

func TestScoreCardBandBoundaries(t *testing.T) {
	card := ScoreCard{Name: "quality", Bands: qualityBands()}

	tests := []struct {
		score float64
		band  string
	}{
		{0, "Poor"},
		{39.9, "Poor"},
		{40, "Fair"},
		{59.9, "Fair"},
		{60, "Good"},
		{80, "Excellent"},
		{100, "Excellent"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.band, card.bandFor(tt.score), "score %v", tt.score)
	}
}

func TestScoreCardClampsToRange(t *testing.T) {
	card := ScoreCard{
		Name:   "quality",
		Inputs: []ScaledInput{{Metric: "m", Weight: 1}},
		Bands:  qualityBands(),
	}

	summary := card.Evaluate(map[string]float64{"m": 250})
	assert.Equal(t, 100.0, summary.Score)

	summary = card.Evaluate(map[string]float64{"m": -10})
	assert.Equal(t, 0.0, summary.Score)
	assert.Equal(t, "Poor", summary.Band)
}

func TestScoreCardAbsentInputsScoreZero(t *testing.T) {
	card := ScoreCard{
		Name: "quality",
		Inputs: []ScaledInput{
			{Metric: "a", Weight: 0.5},
			{Metric: "b", Weight: 0.5, Invert: true},
		},
		Bands: qualityBands(),
	}

	summary := card.Evaluate(map[string]float64{})
	assert.Equal(t, 0.0, summary.Score)
	assert.Equal(t, "Poor", summary.Band)
}

func TestScoreCardZeroTotalWeight(t *testing.T) {
	card := ScoreCard{
		Name:   "quality",
		Inputs: []ScaledInput{{Metric: "a", Weight: 0}},
		Bands:  qualityBands(),
	}

	summary := card.Evaluate(map[string]float64{"a": 100})
	assert.Equal(t, 0.0, summary.Score)
}

func TestScoreCardWeightsRenormalized(t *testing.T) {
	// weights sum to 2 but behave as 0.5/0.5
	card := ScoreCard{
		Name: "quality",
		Inputs: []ScaledInput{
			{Metric: "a", Weight: 1},
			{Metric: "b", Weight: 1},
		},
		Bands: qualityBands(),
	}

	summary := card.Evaluate(map[string]float64{"a": 100, "b": 0})
	assert.Equal(t, 50.0, summary.Score)
}

func TestScoreCardInvertAndMax(t *testing.T) {
	// 120 on a 0-480 scale is 25, inverted to 75
	card := ScoreCard{
		Name:   "effectiveness",
		Inputs: []ScaledInput{{Metric: "wait", Weight: 1, Max: 480, Invert: true}},
		Bands:  qualityBands(),
	}

	summary := card.Evaluate(map[string]float64{"wait": 120})
	assert.Equal(t, 75.0, summary.Score)
	assert.Equal(t, "Good", summary.Band)
}

func TestScoreCardRules(t *testing.T) {
	card := ScoreCard{
		Name:   "quality",
		Inputs: []ScaledInput{{Metric: "rate", Weight: 1}},
		Bands:  qualityBands(),
		Rules: []Rule{
			{Metric: "rate", When: RuleBelow, Threshold: 50, Issue: "rate too low", Recommendation: "investigate intake"},
			{Metric: "backlog", When: RuleAbove, Threshold: 10, Issue: "backlog growing"},
		},
	}

	summary := card.Evaluate(map[string]float64{"rate": 30, "backlog": 25})
	assert.Equal(t, []string{"rate too low", "backlog growing"}, summary.Issues)
	assert.Equal(t, []string{"investigate intake"}, summary.Recommendations)

	summary = card.Evaluate(map[string]float64{"rate": 90, "backlog": 2})
	assert.Empty(t, summary.Issues)
	assert.Empty(t, summary.Recommendations)
	assert.NotNil(t, summary.Issues)
	assert.NotNil(t, summary.Recommendations)
}

func TestScoreCardNoRecordsYieldsNoFindings(t *testing.T) {
	card := ScoreCard{
		Name:    "quality",
		Records: "totals.total",
		Inputs:  []ScaledInput{{Metric: "rate", Weight: 1}},
		Bands:   qualityBands(),
		Rules: []Rule{
			{Metric: "rate", When: RuleBelow, Threshold: 50, Issue: "rate too low", Recommendation: "investigate intake"},
		},
	}

	// every rate degrades to zero when nothing matched; the rule table must
	// not judge an absent population
	summary := card.Evaluate(map[string]float64{"totals.total": 0, "rate": 0})
	assert.Equal(t, 0.0, summary.Score)
	assert.Equal(t, "Poor", summary.Band)
	assert.NotNil(t, summary.Issues)
	assert.Empty(t, summary.Issues)
	assert.NotNil(t, summary.Recommendations)
	assert.Empty(t, summary.Recommendations)

	// with records present the same low rate fires the rule
	summary = card.Evaluate(map[string]float64{"totals.total": 4, "rate": 0})
	assert.Equal(t, []string{"rate too low"}, summary.Issues)
}

func TestScoreCardNoRecordsIgnoresInvertedInputs(t *testing.T) {
	// a zero turnaround would invert to a perfect contribution; with no
	// records it must score 0 instead
	card := ScoreCard{
		Name:    "effectiveness",
		Records: "bookings.total",
		Inputs:  []ScaledInput{{Metric: "turnaround", Weight: 1, Max: 480, Invert: true}},
		Bands:   qualityBands(),
	}

	summary := card.Evaluate(map[string]float64{"bookings.total": 0, "turnaround": 0})
	assert.Equal(t, 0.0, summary.Score)
	assert.Equal(t, "Poor", summary.Band)
}

func TestScoreCardValidate(t *testing.T) {
	tests := []struct {
		name string
		card ScoreCard
	}{
		{"no bands", ScoreCard{Name: "x"}},
		{"first band above zero", ScoreCard{Name: "x", Bands: []Band{{Min: 10, Label: "low"}}}},
		{"duplicate thresholds", ScoreCard{Name: "x", Bands: []Band{{Min: 0, Label: "a"}, {Min: 50, Label: "b"}, {Min: 50, Label: "c"}}}},
		{"threshold above 100", ScoreCard{Name: "x", Bands: []Band{{Min: 0, Label: "a"}, {Min: 120, Label: "b"}}}},
		{"negative weight", ScoreCard{Name: "x", Bands: []Band{{Min: 0, Label: "a"}}, Inputs: []ScaledInput{{Metric: "m", Weight: -1}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.card.Validate()
			require.Error(t, err)
			assert.Equal(t, apperr.KindConfiguration, apperr.KindOf(err))
		})
	}

	assert.NoError(t, ScoreCard{Name: "x", Bands: qualityBands()}.Validate())
}
