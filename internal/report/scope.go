package report

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"reporting-service/internal/apperr"
	"reporting-service/internal/model"
)

const dateOnly = "2006-01-02"

// BuildScope turns the caller's identity and raw query parameters into the
// normalized tenant-safe filter. The tenant always comes from the principal.
// A requested dealership can only narrow the caller's permitted scope, never
// widen it: a dealership-restricted caller asking for an id outside their
// permitted set keeps the permitted set, without an error.
func BuildScope(principal model.Principal, query model.ReportQuery) (model.ScopeFilter, error) {
	scope := model.ScopeFilter{TenantID: principal.TenantID}

	var requested *uuid.UUID
	if raw := strings.TrimSpace(query.DealershipID); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return model.ScopeFilter{}, apperr.Validation("invalid dealershipId %q", raw)
		}
		requested = &id
	}

	if principal.IsTenantWide() {
		if requested != nil {
			scope.DealershipIDs = []uuid.UUID{*requested}
		}
	} else {
		if len(principal.DealershipIDs) == 0 {
			return model.ScopeFilter{}, apperr.Validation("caller has no permitted dealerships")
		}
		if requested != nil && principal.PermitsDealership(*requested) {
			scope.DealershipIDs = []uuid.UUID{*requested}
		} else {
			scope.DealershipIDs = append([]uuid.UUID(nil), principal.DealershipIDs...)
		}
	}

	dateRange, err := parseDateRange(query.StartDate, query.EndDate)
	if err != nil {
		return model.ScopeFilter{}, err
	}
	scope.DateRange = dateRange

	return scope, nil
}

func parseDateRange(startRaw, endRaw string) (*model.DateRange, error) {
	startRaw = strings.TrimSpace(startRaw)
	endRaw = strings.TrimSpace(endRaw)
	if startRaw == "" && endRaw == "" {
		return nil, nil
	}

	var rng model.DateRange
	if startRaw != "" {
		start, _, err := parseDate(startRaw)
		if err != nil {
			return nil, apperr.Validation("invalid startDate %q", startRaw)
		}
		rng.From = start
	}
	if endRaw != "" {
		end, bareDate, err := parseDate(endRaw)
		if err != nil {
			return nil, apperr.Validation("invalid endDate %q", endRaw)
		}
		// a bare end date means the whole day, inclusive
		if bareDate {
			end = end.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}
		rng.To = end
	}

	if !rng.From.IsZero() && !rng.To.IsZero() && rng.From.After(rng.To) {
		return nil, apperr.Validation("startDate is after endDate")
	}

	return &rng, nil
}

func parseDate(raw string) (parsed time.Time, bareDate bool, err error) {
	if t, err := time.Parse(dateOnly, raw); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, false, nil
}
