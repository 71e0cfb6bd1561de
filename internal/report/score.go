package report

import (
	"math"
	"sort"

	"reporting-service/internal/apperr"
	"reporting-service/internal/model"
)

// ScaledInput is one weighted contribution to a composite score. Max
// declares the metric's natural scale: the value is normalized onto [0,100]
// against it. A zero Max means the metric is already a 0-100 rate. Invert
// flips the normalized value for metrics where lower is better.
type ScaledInput struct {
	Metric string
	Weight float64
	Max    float64
	Invert bool
}

// Band is a minimum-threshold classification step. Bands sorted ascending
// with the first at 0 form a step function that is exhaustive and
// non-overlapping over [0,100] by construction.
type Band struct {
	Min   float64
	Label string
}

type RuleComparison string

const (
	RuleBelow RuleComparison = "below"
	RuleAbove RuleComparison = "above"
)

// Rule is one deterministic issue/recommendation trigger comparing a metric
// against a fixed threshold.
type Rule struct {
	Metric         string
	When           RuleComparison
	Threshold      float64
	Issue          string
	Recommendation string
}

// ScoreCard defines a composite score: weighted inputs, qualitative bands
// and the rule table for issues and recommendations. Records names the
// metric carrying the underlying record count; when it is zero the card
// reports the empty summary instead of judging an absent population.
type ScoreCard struct {
	Name    string
	Records string
	Inputs  []ScaledInput
	Bands   []Band
	Rules   []Rule
}

// Validate rejects score cards whose bands do not cover [0,100] as a step
// function. Called at catalog registration; failing here is a wiring bug.
func (c ScoreCard) Validate() error {
	if len(c.Bands) == 0 {
		return apperr.Configuration("score card %q has no bands", c.Name)
	}
	bands := c.sortedBands()
	if bands[0].Min != 0 {
		return apperr.Configuration("score card %q: lowest band must start at 0", c.Name)
	}
	for i := 1; i < len(bands); i++ {
		if bands[i].Min <= bands[i-1].Min {
			return apperr.Configuration("score card %q: band thresholds must be strictly increasing", c.Name)
		}
		if bands[i].Min > 100 {
			return apperr.Configuration("score card %q: band threshold %v exceeds 100", c.Name, bands[i].Min)
		}
	}
	for _, input := range c.Inputs {
		if input.Weight < 0 {
			return apperr.Configuration("score card %q: negative weight for %q", c.Name, input.Metric)
		}
	}
	return nil
}

// Evaluate is a pure function of the metric values: weighted normalized sum
// clamped to [0,100], classified into a band, with the rule table applied.
// Missing metrics contribute 0; zero total weight or a zero record count
// yields score 0 and the lowest band with no findings.
func (c ScoreCard) Evaluate(values map[string]float64) model.ScoreSummary {
	if c.Records != "" && values[c.Records] <= 0 {
		return c.emptySummary()
	}

	totalWeight := 0.0
	for _, input := range c.Inputs {
		totalWeight += input.Weight
	}

	score := 0.0
	if totalWeight > 0 {
		for _, input := range c.Inputs {
			value, present := values[input.Metric]
			if !present {
				// an absent metric contributes nothing, inverted or not
				continue
			}
			contribution := normalize(value, input.Max)
			if input.Invert {
				contribution = 100 - contribution
			}
			score += (input.Weight / totalWeight) * contribution
		}
	}
	score = clampScore(score)

	summary := model.ScoreSummary{
		Score:           round(score, 1),
		Band:            c.bandFor(score),
		Issues:          []string{},
		Recommendations: []string{},
	}

	for _, rule := range c.Rules {
		value := values[rule.Metric]
		fired := false
		switch rule.When {
		case RuleBelow:
			fired = value < rule.Threshold
		case RuleAbove:
			fired = value > rule.Threshold
		}
		if !fired {
			continue
		}
		if rule.Issue != "" {
			summary.Issues = append(summary.Issues, rule.Issue)
		}
		if rule.Recommendation != "" {
			summary.Recommendations = append(summary.Recommendations, rule.Recommendation)
		}
	}

	return summary
}

// emptySummary is the zero-record result: score 0 in the lowest band with no
// findings, since the rule table has no population to judge.
func (c ScoreCard) emptySummary() model.ScoreSummary {
	return model.ScoreSummary{
		Score:           0,
		Band:            c.bandFor(0),
		Issues:          []string{},
		Recommendations: []string{},
	}
}

func (c ScoreCard) bandFor(score float64) string {
	bands := c.sortedBands()
	if len(bands) == 0 {
		return ""
	}
	label := bands[0].Label
	for _, band := range bands {
		if score >= band.Min {
			label = band.Label
		}
	}
	return label
}

func (c ScoreCard) sortedBands() []Band {
	bands := append([]Band(nil), c.Bands...)
	sort.Slice(bands, func(i, j int) bool { return bands[i].Min < bands[j].Min })
	return bands
}

func normalize(value, max float64) float64 {
	if max <= 0 {
		max = 100
	}
	scaled := value / max * 100
	return clampScore(scaled)
}

func clampScore(score float64) float64 {
	if math.IsNaN(score) || score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
