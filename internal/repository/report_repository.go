package repository

import (
	"context"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"reporting-service/internal/apperr"
	"reporting-service/internal/report"
)

// ReportRepository executes composed aggregation pipelines as single grouped
// queries. All queries are read-only and context-bound; a caller disconnect
// or deadline cancels the in-flight statement.
type ReportRepository struct {
	db *gorm.DB
}

func NewReportRepository(db *gorm.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

func (r *ReportRepository) Run(ctx context.Context, pipeline report.Pipeline) ([]report.GroupResult, error) {
	query := r.db.WithContext(ctx).Table(pipeline.Table)

	selects := make([]string, 0, len(pipeline.GroupKeys)+len(pipeline.Aggregates))
	groupExprs := make([]string, 0, len(pipeline.GroupKeys))
	for _, key := range pipeline.GroupKeys {
		selects = append(selects, key.Expr+" AS "+quoteAlias(key.Alias))
		groupExprs = append(groupExprs, key.Expr)
	}
	for _, agg := range pipeline.Aggregates {
		selects = append(selects, agg.Expr+" AS "+quoteAlias(agg.Alias))
	}
	query = query.Select(strings.Join(selects, ", "))

	for _, join := range pipeline.Joins {
		query = query.Joins(join)
	}
	for _, where := range pipeline.Wheres {
		query = query.Where(where.Expr, where.Args...)
	}
	if len(groupExprs) > 0 {
		query = query.Group(strings.Join(groupExprs, ", "))
	}

	var rows []map[string]interface{}
	if err := query.Find(&rows).Error; err != nil {
		return nil, apperr.Classify(err)
	}

	groups := make([]report.GroupResult, 0, len(rows))
	for _, row := range rows {
		groups = append(groups, splitRow(row, pipeline))
	}
	return groups, nil
}

// splitRow partitions a scanned row into group-key values, numeric
// aggregates and set aggregates per the pipeline shape.
func splitRow(row map[string]interface{}, pipeline report.Pipeline) report.GroupResult {
	group := report.GroupResult{
		Keys:   make(map[string]any, len(pipeline.GroupKeys)),
		Values: make(map[string]float64, len(pipeline.Aggregates)),
		Sets:   make(map[string][]any),
	}
	for _, key := range pipeline.GroupKeys {
		group.Keys[key.Alias] = normalizeKey(row[key.Alias])
	}
	for _, agg := range pipeline.Aggregates {
		raw := row[agg.Alias]
		if agg.Op == report.OpAddToSet {
			group.Sets[agg.Alias] = toSet(raw)
			continue
		}
		group.Values[agg.Alias] = toFloat(raw)
	}
	return group
}

func normalizeKey(v any) any {
	switch value := v.(type) {
	case []byte:
		return string(value)
	case time.Time:
		return value.UTC()
	default:
		return v
	}
}

func toFloat(v any) float64 {
	switch value := v.(type) {
	case nil:
		return 0
	case float64:
		return value
	case float32:
		return float64(value)
	case int64:
		return float64(value)
	case int32:
		return float64(value)
	case int:
		return float64(value)
	case string:
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0
		}
		return parsed
	case []byte:
		parsed, err := strconv.ParseFloat(string(value), 64)
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}

func toSet(v any) []any {
	switch value := v.(type) {
	case nil:
		return nil
	case []any:
		return value
	default:
		return []any{v}
	}
}

func quoteAlias(alias string) string {
	return `"` + strings.ReplaceAll(alias, `"`, "") + `"`
}
