package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reporting-service/internal/apperr"
	"reporting-service/internal/model"
	"reporting-service/internal/report"
)

type stubScopes struct {
	ids   []uuid.UUID
	err   error
	calls int
}

func (s *stubScopes) PermittedDealerships(_ context.Context, _, _ uuid.UUID) ([]uuid.UUID, error) {
	s.calls++
	return s.ids, s.err
}

type stubRunner struct {
	pipelines []report.Pipeline
}

func (s *stubRunner) Run(_ context.Context, pipeline report.Pipeline) ([]report.GroupResult, error) {
	s.pipelines = append(s.pipelines, pipeline)
	return nil, nil
}

func newTestService(t *testing.T, scopes *stubScopes, runner report.Runner) *ReportService {
	t.Helper()
	svc, err := NewReportService(scopes, runner)
	require.NoError(t, err)
	return svc
}

func tenantAdmin() model.Principal {
	return model.Principal{
		UserID:   uuid.New(),
		TenantID: uuid.New(),
		Role:     model.RoleTenantAdmin,
	}
}

func TestCatalogRegistersCleanly(t *testing.T) {
	svc := newTestService(t, &stubScopes{}, &stubRunner{})

	slugs := svc.Slugs()
	assert.Len(t, slugs, 10)
	assert.Equal(t, "vehicle-inventory", slugs[0])
	assert.Contains(t, slugs, "quote-conversion")
	assert.Contains(t, slugs, "cost-config-coverage")
}

func TestGenerateUnknownSlug(t *testing.T) {
	svc := newTestService(t, &stubScopes{}, &stubRunner{})

	_, _, err := svc.Generate(context.Background(), tenantAdmin(), "no-such-report", model.ReportQuery{})
	require.Error(t, err)
	assert.Equal(t, apperr.KindConfiguration, apperr.KindOf(err))
}

func TestGenerateZeroDataSucceedsWithZeroPayload(t *testing.T) {
	svc := newTestService(t, &stubScopes{}, &stubRunner{})
	principal := tenantAdmin()

	payload, scope, err := svc.Generate(context.Background(), principal, "quote-conversion", model.ReportQuery{})
	require.NoError(t, err)
	assert.Equal(t, principal.TenantID, scope.TenantID)

	out, ok := payload.(model.QuoteConversionReport)
	require.True(t, ok)
	assert.Zero(t, out.TotalQuotes)
	assert.Zero(t, out.ConversionRate)
	assert.NotNil(t, out.ByStatus)
	assert.Empty(t, out.ByStatus)
}

func TestGenerateZeroDataScoreHasNoFindings(t *testing.T) {
	svc := newTestService(t, &stubScopes{}, &stubRunner{})

	payload, _, err := svc.Generate(context.Background(), tenantAdmin(), "workflow-effectiveness", model.ReportQuery{})
	require.NoError(t, err)

	out, ok := payload.(model.WorkflowEffectivenessReport)
	require.True(t, ok)
	assert.Zero(t, out.TotalExecutions)
	assert.Equal(t, 0.0, out.Health.Score)
	assert.Equal(t, "Critical", out.Health.Band)
	assert.Empty(t, out.Health.Issues)
	assert.Empty(t, out.Health.Recommendations)

	// the inverted turnaround input must not score a report with no bookings
	payload, _, err = svc.Generate(context.Background(), tenantAdmin(), "bay-utilization", model.ReportQuery{})
	require.NoError(t, err)

	bays, ok := payload.(model.BayUtilizationReport)
	require.True(t, ok)
	assert.Equal(t, 0.0, bays.Effectiveness.Score)
	assert.Equal(t, "Poor", bays.Effectiveness.Band)
	assert.Empty(t, bays.Effectiveness.Issues)
	assert.Empty(t, bays.Effectiveness.Recommendations)
}

func TestGenerateTenantWideSkipsScopeLookup(t *testing.T) {
	scopes := &stubScopes{}
	svc := newTestService(t, scopes, &stubRunner{})

	_, scope, err := svc.Generate(context.Background(), tenantAdmin(), "vehicle-inventory", model.ReportQuery{})
	require.NoError(t, err)
	assert.Zero(t, scopes.calls)
	assert.Empty(t, scope.DealershipIDs)
}

func TestGenerateRestrictedRoleResolvesPermittedSet(t *testing.T) {
	permitted := []uuid.UUID{uuid.New(), uuid.New()}
	scopes := &stubScopes{ids: permitted}
	svc := newTestService(t, scopes, &stubRunner{})

	principal := model.Principal{
		UserID:   uuid.New(),
		TenantID: uuid.New(),
		Role:     model.RoleDealershipManager,
	}

	_, scope, err := svc.Generate(context.Background(), principal, "vehicle-inventory", model.ReportQuery{})
	require.NoError(t, err)
	assert.Equal(t, 1, scopes.calls)
	assert.ElementsMatch(t, permitted, scope.DealershipIDs)
}

func TestGenerateRestrictedRoleCannotWiden(t *testing.T) {
	permitted := []uuid.UUID{uuid.New()}
	scopes := &stubScopes{ids: permitted}
	svc := newTestService(t, scopes, &stubRunner{})

	principal := model.Principal{
		UserID:   uuid.New(),
		TenantID: uuid.New(),
		Role:     model.RoleServiceAdvisor,
	}
	outside := uuid.New()

	_, scope, err := svc.Generate(context.Background(), principal, "vehicle-inventory", model.ReportQuery{
		DealershipID: outside.String(),
	})
	require.NoError(t, err)
	// the requested dealership is outside the permitted set; the permitted
	// set stands and no error is raised
	assert.Equal(t, permitted, scope.DealershipIDs)
}

func TestGenerateScopeResolverErrorPropagates(t *testing.T) {
	scopes := &stubScopes{err: assert.AnError}
	svc := newTestService(t, scopes, &stubRunner{})

	principal := model.Principal{
		UserID:   uuid.New(),
		TenantID: uuid.New(),
		Role:     model.RoleDealershipManager,
	}

	_, _, err := svc.Generate(context.Background(), principal, "vehicle-inventory", model.ReportQuery{})
	require.Error(t, err)
}

func TestGenerateAppliesRequestedBucket(t *testing.T) {
	runner := &stubRunner{}
	svc := newTestService(t, &stubScopes{}, runner)

	_, _, err := svc.Generate(context.Background(), tenantAdmin(), "vehicle-sales-trend", model.ReportQuery{
		Bucket: "month",
	})
	require.NoError(t, err)

	var seen []string
	for _, pipeline := range runner.pipelines {
		for _, key := range pipeline.GroupKeys {
			if key.Alias == "bucket" {
				seen = append(seen, key.Expr)
			}
		}
	}
	require.NotEmpty(t, seen, "trend report must run a bucketed series")
	for _, expr := range seen {
		assert.Contains(t, expr, "DATE_TRUNC('month'")
	}
}

func TestGenerateInvalidDateRange(t *testing.T) {
	svc := newTestService(t, &stubScopes{}, &stubRunner{})

	_, _, err := svc.Generate(context.Background(), tenantAdmin(), "vehicle-inventory", model.ReportQuery{
		StartDate: "2026-02-01",
		EndDate:   "2026-01-01",
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}
