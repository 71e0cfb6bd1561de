package report

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reporting-service/internal/apperr"
	"reporting-service/internal/model"
)

type fakeRunner struct {
	pipelines []Pipeline
	results   [][]GroupResult
	err       error
}

func (f *fakeRunner) Run(_ context.Context, pipeline Pipeline) ([]GroupResult, error) {
	f.pipelines = append(f.pipelines, pipeline)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.results) == 0 {
		return nil, nil
	}
	next := f.results[0]
	f.results = f.results[1:]
	return next, nil
}

func testScope() model.ScopeFilter {
	return model.ScopeFilter{TenantID: uuid.New()}
}

func TestComposeTenantScopeAlwaysApplied(t *testing.T) {
	pipeline, err := Compose(testScope(), Request{
		Entity:     EntityVehicles,
		Aggregates: []AggregateSpec{{Alias: "total", Op: OpCount}},
	})
	require.NoError(t, err)
	require.NotEmpty(t, pipeline.Wheres)
	assert.Equal(t, "v.tenant_id = ?", pipeline.Wheres[0].Expr)
}

func TestComposeDealershipScopeOnRelatedEntity(t *testing.T) {
	scope := testScope()
	scope.DealershipIDs = []uuid.UUID{uuid.New()}

	// quotes carry no dealership column; scoping joins through vehicles
	pipeline, err := Compose(scope, Request{
		Entity:     EntityQuotes,
		Aggregates: []AggregateSpec{{Alias: "total", Op: OpCount}},
	})
	require.NoError(t, err)

	require.Len(t, pipeline.Joins, 1)
	assert.Equal(t, "LEFT JOIN vehicles v ON v.id = wq.vehicle_id", pipeline.Joins[0])

	var scoped bool
	for _, where := range pipeline.Wheres {
		if where.Expr == "v.dealership_id IN ?" {
			scoped = true
		}
	}
	assert.True(t, scoped, "dealership scope must land on the joined entity")
}

func TestComposeDateRangeInclusiveBounds(t *testing.T) {
	scope := testScope()
	scope.DateRange = &model.DateRange{
		From: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2026, 1, 31, 23, 59, 59, 0, time.UTC),
	}

	pipeline, err := Compose(scope, Request{
		Entity:     EntityVehicles,
		Aggregates: []AggregateSpec{{Alias: "total", Op: OpCount}},
	})
	require.NoError(t, err)

	exprs := make([]string, 0, len(pipeline.Wheres))
	for _, where := range pipeline.Wheres {
		exprs = append(exprs, where.Expr)
	}
	assert.Contains(t, exprs, "v.created_at >= ?")
	assert.Contains(t, exprs, "v.created_at <= ?")
}

func TestComposeOpenSidedRange(t *testing.T) {
	scope := testScope()
	scope.DateRange = &model.DateRange{From: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}

	pipeline, err := Compose(scope, Request{
		Entity:     EntityVehicles,
		Aggregates: []AggregateSpec{{Alias: "total", Op: OpCount}},
	})
	require.NoError(t, err)

	for _, where := range pipeline.Wheres {
		assert.NotEqual(t, "v.created_at <= ?", where.Expr)
	}
}

func TestComposeConfigurationErrors(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{"unknown entity", Request{Entity: Entity("ghosts"), Aggregates: []AggregateSpec{{Alias: "n", Op: OpCount}}}},
		{"unknown group key", Request{Entity: EntityVehicles, GroupKeys: []string{"color"}, Aggregates: []AggregateSpec{{Alias: "n", Op: OpCount}}}},
		{"unknown aggregate field", Request{Entity: EntityVehicles, Aggregates: []AggregateSpec{{Alias: "n", Op: OpSum, Field: "mileage"}}}},
		{"undeclared join", Request{Entity: EntityVehicles, Joins: []Entity{EntityUsers}, Aggregates: []AggregateSpec{{Alias: "n", Op: OpCount}}}},
		{"missing aggregate alias", Request{Entity: EntityVehicles, Aggregates: []AggregateSpec{{Op: OpCount}}}},
		{"unknown sort key", Request{Entity: EntityVehicles, Aggregates: []AggregateSpec{{Alias: "n", Op: OpCount}}, Sort: &SortSpec{Key: "volume"}}},
		{"rollup key not grouped", Request{Entity: EntityVehicles, GroupKeys: []string{"status"}, Aggregates: []AggregateSpec{{Alias: "n", Op: OpCount}}, Rollup: &Rollup{Key: "make"}}},
		{"rollup weight not an aggregate", Request{Entity: EntityVehicles, GroupKeys: []string{"status"}, Aggregates: []AggregateSpec{{Alias: "n", Op: OpCount}}, Rollup: &Rollup{Key: "status", WeightKey: "volume"}}},
		{"unknown condition field", Request{Entity: EntityVehicles, Conditions: []Condition{{Field: "color", Op: CondEq, Value: "red"}}, Aggregates: []AggregateSpec{{Alias: "n", Op: OpCount}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compose(testScope(), tt.req)
			require.Error(t, err)
			assert.Equal(t, apperr.KindConfiguration, apperr.KindOf(err))
		})
	}
}

func TestComposeAggregateRendering(t *testing.T) {
	pipeline, err := Compose(testScope(), Request{
		Entity:    EntityVehicles,
		GroupKeys: []string{"status"},
		Aggregates: []AggregateSpec{
			{Alias: "total", Op: OpCount},
			{Alias: "revenue", Op: OpSum, Field: "price"},
			{Alias: "makes", Op: OpAddToSet, Field: "make"},
		},
	})
	require.NoError(t, err)

	require.Len(t, pipeline.Aggregates, 3)
	assert.Equal(t, "COUNT(*)", pipeline.Aggregates[0].Expr)
	assert.Equal(t, "COALESCE(SUM(v.price), 0)", pipeline.Aggregates[1].Expr)
	assert.Equal(t, "ARRAY_AGG(DISTINCT v.make)", pipeline.Aggregates[2].Expr)
}

func TestComposeTimeBucket(t *testing.T) {
	pipeline, err := Compose(testScope(), Request{
		Entity:     EntityVehicles,
		TimeBucket: model.BucketWeek,
		Aggregates: []AggregateSpec{{Alias: "total", Op: OpCount}},
	})
	require.NoError(t, err)

	require.Len(t, pipeline.GroupKeys, 1)
	assert.Equal(t, "bucket", pipeline.GroupKeys[0].Alias)
	assert.Equal(t, "DATE_TRUNC('week', v.created_at)", pipeline.GroupKeys[0].Expr)
}

func TestExecuteEmptyResultIsNotAnError(t *testing.T) {
	runner := &fakeRunner{}
	groups, err := Execute(context.Background(), runner, testScope(), Request{
		Entity:     EntityVehicles,
		Aggregates: []AggregateSpec{{Alias: "total", Op: OpCount}},
	})
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestExecuteRunnerErrorClassifiedAsDatabase(t *testing.T) {
	runner := &fakeRunner{err: assert.AnError}
	_, err := Execute(context.Background(), runner, testScope(), Request{
		Entity:     EntityVehicles,
		Aggregates: []AggregateSpec{{Alias: "total", Op: OpCount}},
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindDatabase, apperr.KindOf(err))
}

func TestExecuteRollupPreservesAppearanceOrderAndBreakdown(t *testing.T) {
	fine := []GroupResult{
		{Keys: map[string]any{"status": "AVAILABLE", "make": "Toyota"}, Values: map[string]float64{"count": 4}},
		{Keys: map[string]any{"status": "SOLD", "make": "Toyota"}, Values: map[string]float64{"count": 2}},
		{Keys: map[string]any{"status": "AVAILABLE", "make": "Ford"}, Values: map[string]float64{"count": 3}},
	}
	runner := &fakeRunner{results: [][]GroupResult{fine}}

	groups, err := Execute(context.Background(), runner, testScope(), Request{
		Entity:     EntityVehicles,
		GroupKeys:  []string{"status", "make"},
		Aggregates: []AggregateSpec{{Alias: "count", Op: OpCount}},
		Rollup:     &Rollup{Key: "status"},
	})
	require.NoError(t, err)

	require.Len(t, groups, 2)
	assert.Equal(t, "AVAILABLE", groups[0].KeyString("status"))
	assert.Equal(t, float64(7), groups[0].Value("count"))
	require.Len(t, groups[0].Breakdown, 2)
	assert.Equal(t, "Toyota", groups[0].Breakdown[0].KeyString("make"))
	assert.Equal(t, "Ford", groups[0].Breakdown[1].KeyString("make"))

	assert.Equal(t, "SOLD", groups[1].KeyString("status"))
	assert.Equal(t, float64(2), groups[1].Value("count"))
}

func TestExecuteRollupMinMaxAvg(t *testing.T) {
	fine := []GroupResult{
		{Keys: map[string]any{"status": "A", "make": "x"}, Values: map[string]float64{"lo": 2, "hi": 5, "mean": 10}},
		{Keys: map[string]any{"status": "A", "make": "y"}, Values: map[string]float64{"lo": 1, "hi": 9, "mean": 20}},
	}
	runner := &fakeRunner{results: [][]GroupResult{fine}}

	groups, err := Execute(context.Background(), runner, testScope(), Request{
		Entity:    EntityVehicles,
		GroupKeys: []string{"status", "make"},
		Aggregates: []AggregateSpec{
			{Alias: "lo", Op: OpMin, Field: "price"},
			{Alias: "hi", Op: OpMax, Field: "price"},
			{Alias: "mean", Op: OpAvg, Field: "price"},
		},
		Rollup: &Rollup{Key: "status"},
	})
	require.NoError(t, err)

	require.Len(t, groups, 1)
	assert.Equal(t, float64(1), groups[0].Value("lo"))
	assert.Equal(t, float64(9), groups[0].Value("hi"))
	assert.Equal(t, float64(15), groups[0].Value("mean"))
}

func TestExecuteRollupWeightedAverage(t *testing.T) {
	fine := []GroupResult{
		{Keys: map[string]any{"status": "A", "make": "x"}, Values: map[string]float64{"count": 4, "avg_price": 10}},
		{Keys: map[string]any{"status": "A", "make": "y"}, Values: map[string]float64{"count": 1, "avg_price": 20}},
	}
	runner := &fakeRunner{results: [][]GroupResult{fine}}

	groups, err := Execute(context.Background(), runner, testScope(), Request{
		Entity:    EntityVehicles,
		GroupKeys: []string{"status", "make"},
		Aggregates: []AggregateSpec{
			{Alias: "count", Op: OpCount},
			{Alias: "avg_price", Op: OpAvg, Field: "price"},
		},
		Rollup: &Rollup{Key: "status", WeightKey: "count"},
	})
	require.NoError(t, err)

	require.Len(t, groups, 1)
	assert.Equal(t, float64(5), groups[0].Value("count"))
	// (4*10 + 1*20) / 5, not the midpoint of the two group means
	assert.Equal(t, float64(12), groups[0].Value("avg_price"))
}

func TestExecuteSortStableWithTies(t *testing.T) {
	rows := []GroupResult{
		{Keys: map[string]any{"status": "first"}, Values: map[string]float64{"count": 5}},
		{Keys: map[string]any{"status": "second"}, Values: map[string]float64{"count": 5}},
		{Keys: map[string]any{"status": "third"}, Values: map[string]float64{"count": 9}},
	}
	runner := &fakeRunner{results: [][]GroupResult{rows}}

	groups, err := Execute(context.Background(), runner, testScope(), Request{
		Entity:     EntityVehicles,
		GroupKeys:  []string{"status"},
		Aggregates: []AggregateSpec{{Alias: "count", Op: OpCount}},
		Sort:       &SortSpec{Key: "count", Descending: true},
	})
	require.NoError(t, err)

	require.Len(t, groups, 3)
	assert.Equal(t, "third", groups[0].KeyString("status"))
	// ties keep source order
	assert.Equal(t, "first", groups[1].KeyString("status"))
	assert.Equal(t, "second", groups[2].KeyString("status"))
}
