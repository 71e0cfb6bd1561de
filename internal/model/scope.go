package model

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleTenantAdmin       Role = "TENANT_ADMIN"
	RoleTenantAnalyst     Role = "TENANT_ANALYST"
	RoleDealershipManager Role = "DEALERSHIP_MANAGER"
	RoleServiceAdvisor    Role = "SERVICE_ADVISOR"
)

// Principal is the authenticated caller as carried by the access token.
// DealershipIDs is the permitted set for dealership-restricted roles and
// empty for tenant-wide roles.
type Principal struct {
	UserID        uuid.UUID
	TenantID      uuid.UUID
	Role          Role
	DealershipIDs []uuid.UUID
}

func (p Principal) IsTenantWide() bool {
	return p.Role == RoleTenantAdmin || p.Role == RoleTenantAnalyst
}

func (p Principal) PermitsDealership(id uuid.UUID) bool {
	if p.IsTenantWide() {
		return true
	}
	for _, permitted := range p.DealershipIDs {
		if permitted == id {
			return true
		}
	}
	return false
}

// DateRange is a closed interval. A zero From or To leaves that side of the
// range open; both bounds are inclusive when present.
type DateRange struct {
	From time.Time `json:"from,omitempty"`
	To   time.Time `json:"to,omitempty"`
}

func (r DateRange) IsZero() bool {
	return r.From.IsZero() && r.To.IsZero()
}

// Contains reports whether ts falls inside the range, honouring open sides.
func (r DateRange) Contains(ts time.Time) bool {
	if !r.From.IsZero() && ts.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && ts.After(r.To) {
		return false
	}
	return true
}

// ScopeFilter is the normalized tenant-safe filter every report query runs
// under. TenantID is always present and derived from the session, never from
// caller input. DealershipIDs is nil for tenant-wide scope and non-empty for
// dealership-restricted scope.
type ScopeFilter struct {
	TenantID      uuid.UUID   `json:"tenant_id"`
	DealershipIDs []uuid.UUID `json:"dealership_ids,omitempty"`
	DateRange     *DateRange  `json:"date_range,omitempty"`
}

func (s ScopeFilter) RestrictsDealerships() bool {
	return len(s.DealershipIDs) > 0
}
