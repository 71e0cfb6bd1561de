package report

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"reporting-service/internal/apperr"
	"reporting-service/internal/model"
)

type AggregateOp string

const (
	OpSum      AggregateOp = "sum"
	OpAvg      AggregateOp = "avg"
	OpMin      AggregateOp = "min"
	OpMax      AggregateOp = "max"
	OpCount    AggregateOp = "count"
	OpAddToSet AggregateOp = "addToSet"
)

// AggregateSpec requests one raw aggregate per group. Field may be empty
// only for count.
type AggregateSpec struct {
	Alias string
	Op    AggregateOp
	Field string
}

type ConditionOp string

const (
	CondEq      ConditionOp = "eq"
	CondNe      ConditionOp = "ne"
	CondIn      ConditionOp = "in"
	CondGte     ConditionOp = "gte"
	CondLte     ConditionOp = "lte"
	CondNotNull ConditionOp = "notNull"
)

// Condition is a static match predicate a report declares on top of the
// scope filter.
type Condition struct {
	Field string
	Op    ConditionOp
	Value any
}

type SortSpec struct {
	Key        string
	Descending bool
}

// Rollup re-groups first-stage results up to one of the group keys,
// preserving the finer groups as a breakdown array. WeightKey names a count
// aggregate used to weight rolled-up averages; when empty, averages roll up
// as the unweighted mean of the group means.
type Rollup struct {
	Key       string
	WeightKey string
}

// Request declares one aggregation over an entity: which related entities to
// join, how to group, and which raw aggregates to compute.
type Request struct {
	Entity     Entity
	Joins      []Entity
	Conditions []Condition
	GroupKeys  []string
	TimeBucket model.Bucket
	Aggregates []AggregateSpec
	Sort       *SortSpec
	Rollup     *Rollup
}

// Pipeline is the fully resolved, executable form of a Request under a
// scope filter. The runner renders it as a single grouped query.
type Pipeline struct {
	Table      string
	Joins      []string
	Wheres     []Where
	GroupKeys  []GroupKey
	Aggregates []SelectExpr
}

type Where struct {
	Expr string
	Args []any
}

type GroupKey struct {
	Alias string
	Expr  string
}

type SelectExpr struct {
	Alias string
	Expr  string
	Op    AggregateOp
}

// GroupResult is one group row. Keys hold the group-key values, Values the
// numeric aggregates, Sets the addToSet aggregates. Breakdown is populated
// by rollup.
type GroupResult struct {
	Keys      map[string]any
	Values    map[string]float64
	Sets      map[string][]any
	Breakdown []GroupResult
}

// Value returns a numeric aggregate, zero when absent.
func (g GroupResult) Value(alias string) float64 {
	return g.Values[alias]
}

// Count returns a numeric aggregate truncated to an integer count.
func (g GroupResult) Count(alias string) int64 {
	return int64(g.Values[alias])
}

// KeyString returns a group-key value rendered as a string.
func (g GroupResult) KeyString(alias string) string {
	v, ok := g.Keys[alias]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// KeyTime returns a group-key value as a timestamp, zero when absent or not
// a time.
func (g GroupResult) KeyTime(alias string) time.Time {
	if t, ok := g.Keys[alias].(time.Time); ok {
		return t
	}
	return time.Time{}
}

// Runner executes a composed pipeline against the data store. Zero matching
// rows yield an empty slice, never an error.
type Runner interface {
	Run(ctx context.Context, pipeline Pipeline) ([]GroupResult, error)
}

const bucketAlias = "bucket"

// Compose resolves a Request against the schema registry under the given
// scope. Unknown entities, field paths or undeclared joins are wiring bugs
// and fail fast as configuration errors.
func Compose(scope model.ScopeFilter, req Request) (Pipeline, error) {
	schema, err := Schema(req.Entity)
	if err != nil {
		return Pipeline{}, err
	}

	pipeline := Pipeline{Table: schema.tableRef()}

	joined := make([]Entity, 0, len(req.Joins)+len(schema.DealershipVia))
	joinedSet := make(map[Entity]bool)

	appendJoin := func(join Join) error {
		if joinedSet[join.Target] {
			return nil
		}
		target, err := Schema(join.Target)
		if err != nil {
			return err
		}
		if join.LocalColumn == "" || join.TargetColumn == "" {
			return apperr.Configuration("malformed join from %q to %q", schema.Table, join.Target)
		}
		// LEFT JOIN so dangling references contribute NULLs instead of
		// dropping the record
		pipeline.Joins = append(pipeline.Joins,
			fmt.Sprintf("LEFT JOIN %s ON %s = %s", target.tableRef(), join.TargetColumn, join.LocalColumn))
		joinedSet[join.Target] = true
		joined = append(joined, join.Target)
		return nil
	}

	for _, target := range req.Joins {
		fk, err := schema.ForeignKey(target)
		if err != nil {
			return Pipeline{}, err
		}
		if err := appendJoin(fk); err != nil {
			return Pipeline{}, err
		}
	}

	// scope: tenant always, dealership when the scope restricts it,
	// resolving the join chain when the dealership lives on a related entity
	pipeline.Wheres = append(pipeline.Wheres, Where{
		Expr: fmt.Sprintf("%s = ?", schema.TenantColumn),
		Args: []any{scope.TenantID},
	})

	if scope.RestrictsDealerships() {
		dealershipColumn := schema.DealershipColumn
		if dealershipColumn == "" {
			if len(schema.DealershipVia) == 0 {
				return Pipeline{}, apperr.Configuration("entity %q has no dealership scope path", schema.Table)
			}
			for _, hop := range schema.DealershipVia {
				if err := appendJoin(hop); err != nil {
					return Pipeline{}, err
				}
			}
			final, err := Schema(schema.DealershipVia[len(schema.DealershipVia)-1].Target)
			if err != nil {
				return Pipeline{}, err
			}
			if final.DealershipColumn == "" {
				return Pipeline{}, apperr.Configuration("dealership join chain for %q ends without a dealership column", schema.Table)
			}
			dealershipColumn = final.DealershipColumn
		}
		pipeline.Wheres = append(pipeline.Wheres, Where{
			Expr: fmt.Sprintf("%s IN ?", dealershipColumn),
			Args: []any{scope.DealershipIDs},
		})
	}

	if rng := scope.DateRange; rng != nil {
		if !rng.From.IsZero() {
			pipeline.Wheres = append(pipeline.Wheres, Where{
				Expr: fmt.Sprintf("%s >= ?", schema.TimestampColumn),
				Args: []any{rng.From},
			})
		}
		if !rng.To.IsZero() {
			pipeline.Wheres = append(pipeline.Wheres, Where{
				Expr: fmt.Sprintf("%s <= ?", schema.TimestampColumn),
				Args: []any{rng.To},
			})
		}
	}

	for _, cond := range req.Conditions {
		expr, err := schema.Field(cond.Field, joined)
		if err != nil {
			return Pipeline{}, err
		}
		where, err := renderCondition(expr, cond)
		if err != nil {
			return Pipeline{}, err
		}
		pipeline.Wheres = append(pipeline.Wheres, where)
	}

	for _, key := range req.GroupKeys {
		expr, err := schema.Field(key, joined)
		if err != nil {
			return Pipeline{}, err
		}
		pipeline.GroupKeys = append(pipeline.GroupKeys, GroupKey{Alias: key, Expr: expr})
	}
	if req.TimeBucket != "" {
		pipeline.GroupKeys = append(pipeline.GroupKeys, GroupKey{
			Alias: bucketAlias,
			Expr:  fmt.Sprintf("DATE_TRUNC('%s', %s)", bucketUnit(req.TimeBucket), schema.TimestampColumn),
		})
	}

	for _, agg := range req.Aggregates {
		sel, err := renderAggregate(schema, joined, agg)
		if err != nil {
			return Pipeline{}, err
		}
		pipeline.Aggregates = append(pipeline.Aggregates, sel)
	}

	if req.Sort != nil {
		if !sortKeyKnown(req, req.Sort.Key) {
			return Pipeline{}, apperr.Configuration("sort key %q is not a group key or aggregate alias", req.Sort.Key)
		}
	}
	if req.Rollup != nil {
		if !groupKeyKnown(req, req.Rollup.Key) {
			return Pipeline{}, apperr.Configuration("rollup key %q is not a group key", req.Rollup.Key)
		}
		if req.Rollup.WeightKey != "" && !aggregateAliasKnown(req, req.Rollup.WeightKey) {
			return Pipeline{}, apperr.Configuration("rollup weight key %q is not an aggregate alias", req.Rollup.WeightKey)
		}
	}

	return pipeline, nil
}

// Execute composes the pipeline, runs it, and applies the in-memory rollup
// and sort stages. Group order is appearance order unless a sort is
// declared; sorting is stable so ties keep the source order.
func Execute(ctx context.Context, runner Runner, scope model.ScopeFilter, req Request) ([]GroupResult, error) {
	pipeline, err := Compose(scope, req)
	if err != nil {
		return nil, err
	}

	groups, err := runner.Run(ctx, pipeline)
	if err != nil {
		return nil, apperr.Classify(err)
	}

	if req.Rollup != nil {
		groups = rollUp(groups, req)
	}

	if req.Sort != nil {
		key, desc := req.Sort.Key, req.Sort.Descending
		sort.SliceStable(groups, func(i, j int) bool {
			if desc {
				return lessGroup(groups[j], groups[i], key)
			}
			return lessGroup(groups[i], groups[j], key)
		})
	}

	return groups, nil
}

func renderCondition(expr string, cond Condition) (Where, error) {
	switch cond.Op {
	case CondEq:
		return Where{Expr: fmt.Sprintf("%s = ?", expr), Args: []any{cond.Value}}, nil
	case CondNe:
		return Where{Expr: fmt.Sprintf("%s <> ?", expr), Args: []any{cond.Value}}, nil
	case CondIn:
		return Where{Expr: fmt.Sprintf("%s IN ?", expr), Args: []any{cond.Value}}, nil
	case CondGte:
		return Where{Expr: fmt.Sprintf("%s >= ?", expr), Args: []any{cond.Value}}, nil
	case CondLte:
		return Where{Expr: fmt.Sprintf("%s <= ?", expr), Args: []any{cond.Value}}, nil
	case CondNotNull:
		return Where{Expr: fmt.Sprintf("%s IS NOT NULL", expr)}, nil
	default:
		return Where{}, apperr.Configuration("unknown condition op %q", cond.Op)
	}
}

func renderAggregate(schema EntitySchema, joined []Entity, agg AggregateSpec) (SelectExpr, error) {
	if agg.Alias == "" {
		return SelectExpr{}, apperr.Configuration("aggregate on %q has no alias", schema.Table)
	}
	if agg.Op == OpCount && agg.Field == "" {
		return SelectExpr{Alias: agg.Alias, Expr: "COUNT(*)", Op: OpCount}, nil
	}
	expr, err := schema.Field(agg.Field, joined)
	if err != nil {
		return SelectExpr{}, err
	}
	switch agg.Op {
	case OpSum:
		return SelectExpr{Alias: agg.Alias, Expr: fmt.Sprintf("COALESCE(SUM(%s), 0)", expr), Op: OpSum}, nil
	case OpAvg:
		return SelectExpr{Alias: agg.Alias, Expr: fmt.Sprintf("COALESCE(AVG(%s), 0)", expr), Op: OpAvg}, nil
	case OpMin:
		return SelectExpr{Alias: agg.Alias, Expr: fmt.Sprintf("MIN(%s)", expr), Op: OpMin}, nil
	case OpMax:
		return SelectExpr{Alias: agg.Alias, Expr: fmt.Sprintf("MAX(%s)", expr), Op: OpMax}, nil
	case OpCount:
		return SelectExpr{Alias: agg.Alias, Expr: fmt.Sprintf("COUNT(%s)", expr), Op: OpCount}, nil
	case OpAddToSet:
		return SelectExpr{Alias: agg.Alias, Expr: fmt.Sprintf("ARRAY_AGG(DISTINCT %s)", expr), Op: OpAddToSet}, nil
	default:
		return SelectExpr{}, apperr.Configuration("unknown aggregate op %q", agg.Op)
	}
}

func bucketUnit(bucket model.Bucket) string {
	switch bucket {
	case model.BucketWeek:
		return "week"
	case model.BucketMonth:
		return "month"
	default:
		return "day"
	}
}

func groupKeyKnown(req Request, key string) bool {
	for _, gk := range req.GroupKeys {
		if gk == key {
			return true
		}
	}
	return req.TimeBucket != "" && key == bucketAlias
}

func sortKeyKnown(req Request, key string) bool {
	return groupKeyKnown(req, key) || aggregateAliasKnown(req, key)
}

func aggregateAliasKnown(req Request, key string) bool {
	for _, agg := range req.Aggregates {
		if agg.Alias == key {
			return true
		}
	}
	return false
}

// rollUp folds first-stage groups into coarser groups keyed by the rollup
// key, keeping the finer groups as a breakdown in appearance order.
func rollUp(groups []GroupResult, req Request) []GroupResult {
	order := make([]string, 0)
	merged := make(map[string]*GroupResult)
	weights := make(map[string]float64)

	for _, fine := range groups {
		key := fine.KeyString(req.Rollup.Key)
		coarse, ok := merged[key]
		if !ok {
			coarse = &GroupResult{
				Keys:   map[string]any{req.Rollup.Key: fine.Keys[req.Rollup.Key]},
				Values: make(map[string]float64),
				Sets:   make(map[string][]any),
			}
			merged[key] = coarse
			order = append(order, key)
		}
		weight := 1.0
		if req.Rollup.WeightKey != "" {
			weight = fine.Values[req.Rollup.WeightKey]
		}
		weights[key] += weight
		coarse.Breakdown = append(coarse.Breakdown, fine)
		mergeAggregates(coarse, fine, req.Aggregates, weight)
	}

	result := make([]GroupResult, 0, len(order))
	for _, key := range order {
		group := merged[key]
		finishAverages(group, req.Aggregates, weights[key])
		result = append(result, *group)
	}
	return result
}

func mergeAggregates(coarse *GroupResult, fine GroupResult, specs []AggregateSpec, weight float64) {
	for _, spec := range specs {
		switch spec.Op {
		case OpSum, OpCount:
			coarse.Values[spec.Alias] += fine.Values[spec.Alias]
		case OpMin:
			v, seen := fine.Values[spec.Alias]
			if !seen {
				continue
			}
			if cur, ok := coarse.Values[spec.Alias]; !ok || v < cur {
				coarse.Values[spec.Alias] = v
			}
		case OpMax:
			v, seen := fine.Values[spec.Alias]
			if !seen {
				continue
			}
			if cur, ok := coarse.Values[spec.Alias]; !ok || v > cur {
				coarse.Values[spec.Alias] = v
			}
		case OpAvg:
			// accumulate the weighted numerator; finishAverages divides by
			// the accumulated weight
			coarse.Values[spec.Alias] += fine.Values[spec.Alias] * weight
		case OpAddToSet:
			coarse.Sets[spec.Alias] = appendDistinct(coarse.Sets[spec.Alias], fine.Sets[spec.Alias])
		}
	}
}

func finishAverages(group *GroupResult, specs []AggregateSpec, totalWeight float64) {
	for _, spec := range specs {
		if spec.Op != OpAvg {
			continue
		}
		if totalWeight <= 0 {
			group.Values[spec.Alias] = 0
			continue
		}
		group.Values[spec.Alias] /= totalWeight
	}
}

func appendDistinct(dst []any, src []any) []any {
	for _, candidate := range src {
		seen := false
		for _, existing := range dst {
			if existing == candidate {
				seen = true
				break
			}
		}
		if !seen {
			dst = append(dst, candidate)
		}
	}
	return dst
}

func lessGroup(a, b GroupResult, key string) bool {
	av, aok := a.Values[key]
	bv, bok := b.Values[key]
	if aok || bok {
		return av < bv
	}
	at, bt := a.KeyTime(key), b.KeyTime(key)
	if !at.IsZero() || !bt.IsZero() {
		return at.Before(bt)
	}
	return strings.Compare(a.KeyString(key), b.KeyString(key)) < 0
}
