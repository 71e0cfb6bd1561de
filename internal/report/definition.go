package report

import (
	"context"
	"fmt"

	"reporting-service/internal/apperr"
	"reporting-service/internal/model"
)

// NamedRequest is one aggregation a report runs, addressable by name in the
// assembler. Requests with no group keys are totals: their single result
// group exports aggregate values to the derivation stage as "name.alias".
type NamedRequest struct {
	Name    string
	Request Request
}

// Definition declares one report as an instantiation of the generic
// pipeline: which aggregations to run, which metrics to derive, an optional
// composite score, and the assembler that shapes the typed payload.
// Assemble must produce a zero-valued payload when every aggregation comes
// back empty.
type Definition struct {
	Slug         string
	Aggregations []NamedRequest
	Derivations  []Derivation
	Score        *ScoreCard
	Assemble     func(groups map[string][]GroupResult, metrics map[string]float64, score *model.ScoreSummary) any
}

// Validate checks the static wiring of a definition at registration time.
func (d Definition) Validate() error {
	if d.Slug == "" {
		return apperr.Configuration("report definition without slug")
	}
	if len(d.Aggregations) == 0 {
		return apperr.Configuration("report %q declares no aggregations", d.Slug)
	}
	seen := make(map[string]bool, len(d.Aggregations))
	for _, agg := range d.Aggregations {
		if agg.Name == "" {
			return apperr.Configuration("report %q has an unnamed aggregation", d.Slug)
		}
		if seen[agg.Name] {
			return apperr.Configuration("report %q has duplicate aggregation %q", d.Slug, agg.Name)
		}
		seen[agg.Name] = true
	}
	if d.Assemble == nil {
		return apperr.Configuration("report %q has no assembler", d.Slug)
	}
	if d.Score != nil {
		if err := d.Score.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Generate runs one report definition under a scope: every aggregation is
// composed and executed, totals feed the derivation stage, the optional
// score card is evaluated, and the assembler shapes the payload. A report
// over zero matching records succeeds with its zero-valued payload.
func Generate(ctx context.Context, runner Runner, scope model.ScopeFilter, def Definition) (any, error) {
	groups := make(map[string][]GroupResult, len(def.Aggregations))
	values := make(map[string]float64)

	// closed date ranges export their length so capacity-style derivations
	// (e.g. occupancy against bay-minutes) can use it; open ranges export 0
	// and the null-safe division rules apply
	if rng := scope.DateRange; rng != nil && !rng.From.IsZero() && !rng.To.IsZero() {
		span := rng.To.Sub(rng.From)
		values["range.minutes"] = span.Minutes()
		values["range.days"] = span.Hours() / 24
	} else {
		values["range.minutes"] = 0
		values["range.days"] = 0
	}

	for _, agg := range def.Aggregations {
		result, err := Execute(ctx, runner, scope, agg.Request)
		if err != nil {
			return nil, err
		}
		groups[agg.Name] = result

		if isTotals(agg.Request) {
			// absent groups still export zeros so derivations over an
			// empty range resolve
			for _, spec := range agg.Request.Aggregates {
				values[exportName(agg.Name, spec.Alias)] = 0
			}
			if len(result) > 0 {
				for alias, v := range result[0].Values {
					values[exportName(agg.Name, alias)] = v
				}
			}
		}
	}

	metrics, err := Derive(values, def.Derivations)
	if err != nil {
		return nil, err
	}

	var summary *model.ScoreSummary
	if def.Score != nil {
		s := def.Score.Evaluate(metrics)
		summary = &s
	}

	return def.Assemble(groups, metrics, summary), nil
}

func isTotals(req Request) bool {
	return len(req.GroupKeys) == 0 && req.TimeBucket == ""
}

func exportName(aggregation, alias string) string {
	return fmt.Sprintf("%s.%s", aggregation, alias)
}
