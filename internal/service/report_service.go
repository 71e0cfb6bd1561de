package service

import (
	"context"

	"github.com/google/uuid"

	"reporting-service/internal/apperr"
	"reporting-service/internal/model"
	"reporting-service/internal/report"
)

// ScopeResolver supplies the permitted dealership set for
// dealership-restricted callers whose token does not carry it.
type ScopeResolver interface {
	PermittedDealerships(ctx context.Context, tenantID, userID uuid.UUID) ([]uuid.UUID, error)
}

// ReportService owns the report catalog and runs one report per request:
// build the scope, execute the definition's pipeline, hand the payload back
// for enveloping. It holds no per-request state.
type ReportService struct {
	scopes ScopeResolver
	runner report.Runner
	defs   map[string]report.Definition
	order  []string
}

func NewReportService(scopes ScopeResolver, runner report.Runner) (*ReportService, error) {
	s := &ReportService{
		scopes: scopes,
		runner: runner,
		defs:   make(map[string]report.Definition),
	}
	for _, def := range catalog() {
		if err := def.Validate(); err != nil {
			return nil, err
		}
		if _, exists := s.defs[def.Slug]; exists {
			return nil, apperr.Configuration("duplicate report slug %q", def.Slug)
		}
		s.defs[def.Slug] = def
		s.order = append(s.order, def.Slug)
	}
	return s, nil
}

// Slugs lists the registered reports in catalog order.
func (s *ReportService) Slugs() []string {
	return append([]string(nil), s.order...)
}

// Generate runs the named report for the caller. The returned scope is the
// effective, post-narrowing filter for the response metadata.
func (s *ReportService) Generate(ctx context.Context, principal model.Principal, slug string, query model.ReportQuery) (any, model.ScopeFilter, error) {
	def, ok := s.defs[slug]
	if !ok {
		return nil, model.ScopeFilter{}, apperr.Configuration("unknown report %q", slug)
	}

	if !principal.IsTenantWide() && len(principal.DealershipIDs) == 0 {
		ids, err := s.scopes.PermittedDealerships(ctx, principal.TenantID, principal.UserID)
		if err != nil {
			return nil, model.ScopeFilter{}, err
		}
		principal.DealershipIDs = ids
	}

	scope, err := report.BuildScope(principal, query)
	if err != nil {
		return nil, model.ScopeFilter{}, err
	}

	payload, err := report.Generate(ctx, s.runner, scope, withBucket(def, query.TimeBucket()))
	if err != nil {
		return nil, scope, err
	}
	return payload, scope, nil
}

// withBucket applies the caller's time bucket to every aggregation that is
// time-bucketed, leaving plain groupings alone.
func withBucket(def report.Definition, bucket model.Bucket) report.Definition {
	aggs := make([]report.NamedRequest, len(def.Aggregations))
	copy(aggs, def.Aggregations)
	for i := range aggs {
		if aggs[i].Request.TimeBucket != "" {
			aggs[i].Request.TimeBucket = bucket
		}
	}
	def.Aggregations = aggs
	return def
}
