package report

import (
	"fmt"

	"reporting-service/internal/apperr"
)

// Entity names the operational record collections reports aggregate over.
type Entity string

const (
	EntityVehicles      Entity = "vehicles"
	EntityQuotes        Entity = "workshop_quotes"
	EntityWorkshopRpts  Entity = "workshop_reports"
	EntityServiceBays   Entity = "service_bays"
	EntityBayBookings   Entity = "bay_bookings"
	EntityWorkflowExecs Entity = "workflow_executions"
	EntityEmailEvents   Entity = "email_events"
	EntityUsers         Entity = "users"
	EntityCostConfigs   Entity = "cost_configurations"
	// EntityQuoteRollups is the daily quote rollup view maintained by the
	// refresher; trend reports read it instead of re-grouping raw quotes.
	EntityQuoteRollups Entity = "quote_rollups"
)

// Join declares a foreign-key relationship between two entities, used both
// for report-level joins and for applying dealership scope that lives on a
// related entity.
type Join struct {
	Target       Entity
	LocalColumn  string
	TargetColumn string
}

// EntitySchema describes one entity: its table, its scoping columns and the
// field paths reports may reference. Field expressions are full SQL
// expressions so heterogeneous source shapes (a flag as a bool here, a pair
// of counters there) normalize to one representation before any derivation
// sees them.
type EntitySchema struct {
	Table           string
	Alias           string
	TenantColumn    string
	TimestampColumn string

	// DealershipColumn is set when the entity carries its dealership
	// directly; otherwise DealershipVia names the join chain to the entity
	// that does.
	DealershipColumn string
	DealershipVia    []Join

	Fields      map[string]string
	ForeignKeys map[Entity]Join
}

var registry = map[Entity]EntitySchema{
	EntityVehicles: {
		Table:            "vehicles",
		Alias:            "v",
		TenantColumn:     "v.tenant_id",
		TimestampColumn:  "v.created_at",
		DealershipColumn: "v.dealership_id",
		Fields: map[string]string{
			"status":        "v.status",
			"make":          "v.make",
			"price":         "v.price",
			"cost":          "v.cost",
			"sold_at":       "v.sold_at",
			"days_in_stock": "EXTRACT(EPOCH FROM (COALESCE(v.sold_at, NOW()) - v.created_at)) / 86400",
			"available":     "CASE WHEN v.status = 'AVAILABLE' THEN 1 ELSE 0 END",
			"sold":          "CASE WHEN v.status = 'SOLD' THEN 1 ELSE 0 END",
		},
	},
	EntityQuotes: {
		Table:           "workshop_quotes",
		Alias:           "wq",
		TenantColumn:    "wq.tenant_id",
		TimestampColumn: "wq.created_at",
		// quotes reach their dealership through the vehicle they were
		// raised against
		DealershipVia: []Join{
			{Target: EntityVehicles, LocalColumn: "wq.vehicle_id", TargetColumn: "v.id"},
		},
		Fields: map[string]string{
			"status":       "wq.status",
			"total_amount": "wq.total_amount",
			"approved":     "CASE WHEN wq.status IN ('APPROVED', 'CONVERTED') THEN 1 ELSE 0 END",
			"converted":    "CASE WHEN wq.status = 'CONVERTED' THEN 1 ELSE 0 END",
		},
		ForeignKeys: map[Entity]Join{
			EntityVehicles: {Target: EntityVehicles, LocalColumn: "wq.vehicle_id", TargetColumn: "v.id"},
		},
	},
	EntityWorkshopRpts: {
		Table:            "workshop_reports",
		Alias:            "wr",
		TenantColumn:     "wr.tenant_id",
		TimestampColumn:  "wr.created_at",
		DealershipColumn: "wr.dealership_id",
		Fields: map[string]string{
			// checklist state is a done/total counter pair on this entity;
			// normalized here to a completion flag
			"checklist_complete": "CASE WHEN wr.checklist_total > 0 AND wr.checklist_done >= wr.checklist_total THEN 1 ELSE 0 END",
			"has_photos":         "CASE WHEN wr.photo_count > 0 THEN 1 ELSE 0 END",
			"on_time":            "CASE WHEN wr.completed_at IS NOT NULL AND wr.completed_at <= wr.due_at THEN 1 ELSE 0 END",
		},
		ForeignKeys: map[Entity]Join{
			EntityQuotes: {Target: EntityQuotes, LocalColumn: "wr.quote_id", TargetColumn: "wq.id"},
		},
	},
	EntityServiceBays: {
		Table:            "service_bays",
		Alias:            "sb",
		TenantColumn:     "sb.tenant_id",
		TimestampColumn:  "sb.created_at",
		DealershipColumn: "sb.dealership_id",
		Fields: map[string]string{
			"active": "CASE WHEN sb.is_active THEN 1 ELSE 0 END",
		},
	},
	EntityBayBookings: {
		Table:           "bay_bookings",
		Alias:           "bb",
		TenantColumn:    "bb.tenant_id",
		TimestampColumn: "bb.started_at",
		DealershipVia: []Join{
			{Target: EntityServiceBays, LocalColumn: "bb.bay_id", TargetColumn: "sb.id"},
		},
		Fields: map[string]string{
			"bay_id":             "bb.bay_id",
			"occupied_minutes":   "EXTRACT(EPOCH FROM (COALESCE(bb.finished_at, NOW()) - bb.started_at)) / 60",
			"turnaround_minutes": "EXTRACT(EPOCH FROM (bb.finished_at - bb.started_at)) / 60",
			"completed":          "CASE WHEN bb.finished_at IS NOT NULL THEN 1 ELSE 0 END",
		},
		ForeignKeys: map[Entity]Join{
			EntityServiceBays: {Target: EntityServiceBays, LocalColumn: "bb.bay_id", TargetColumn: "sb.id"},
		},
	},
	EntityWorkflowExecs: {
		Table:            "workflow_executions",
		Alias:            "we",
		TenantColumn:     "we.tenant_id",
		TimestampColumn:  "we.started_at",
		DealershipColumn: "we.dealership_id",
		Fields: map[string]string{
			"status":           "we.status",
			"succeeded":        "CASE WHEN we.status = 'SUCCEEDED' THEN 1 ELSE 0 END",
			"failed":           "CASE WHEN we.status = 'FAILED' THEN 1 ELSE 0 END",
			"duration_seconds": "EXTRACT(EPOCH FROM (COALESCE(we.finished_at, we.started_at) - we.started_at))",
		},
	},
	EntityEmailEvents: {
		Table:            "email_events",
		Alias:            "ee",
		TenantColumn:     "ee.tenant_id",
		TimestampColumn:  "ee.sent_at",
		DealershipColumn: "ee.dealership_id",
		Fields: map[string]string{
			"automation": "ee.automation_slug",
			"delivered":  "CASE WHEN ee.delivered THEN 1 ELSE 0 END",
			"opened":     "CASE WHEN ee.opened_at IS NOT NULL THEN 1 ELSE 0 END",
			"clicked":    "CASE WHEN ee.clicked_at IS NOT NULL THEN 1 ELSE 0 END",
		},
	},
	EntityUsers: {
		Table:            "users",
		Alias:            "u",
		TenantColumn:     "u.tenant_id",
		TimestampColumn:  "u.created_at",
		DealershipColumn: "u.dealership_id",
		Fields: map[string]string{
			"role":   "u.role",
			"active": "CASE WHEN u.last_active_at >= NOW() - INTERVAL '30 days' THEN 1 ELSE 0 END",
		},
	},
	EntityQuoteRollups: {
		Table:            "mv_quote_daily",
		Alias:            "qr",
		TenantColumn:     "qr.tenant_id",
		TimestampColumn:  "qr.bucket",
		DealershipColumn: "qr.dealership_id",
		Fields: map[string]string{
			"quote_count": "qr.quote_count",
			"total_value": "qr.total_value",
		},
	},
	EntityCostConfigs: {
		Table:            "cost_configurations",
		Alias:            "cc",
		TenantColumn:     "cc.tenant_id",
		TimestampColumn:  "cc.updated_at",
		DealershipColumn: "cc.dealership_id",
		Fields: map[string]string{
			// the config blob is opaque; only presence and key count are
			// observable
			"configured": "CASE WHEN cc.config IS NOT NULL AND cc.config <> '{}'::jsonb THEN 1 ELSE 0 END",
			"key_count":  "(SELECT COUNT(*) FROM jsonb_object_keys(COALESCE(cc.config, '{}'::jsonb)))",
		},
	},
}

// Schema looks up an entity's schema. An unknown entity is a wiring bug.
func Schema(entity Entity) (EntitySchema, error) {
	s, ok := registry[entity]
	if !ok {
		return EntitySchema{}, apperr.Configuration("unknown entity %q", entity)
	}
	return s, nil
}

// Field resolves a field path to its SQL expression, searching the entity
// itself and then any joined entities.
func (s EntitySchema) Field(path string, joined []Entity) (string, error) {
	if expr, ok := s.Fields[path]; ok {
		return expr, nil
	}
	for _, entity := range joined {
		target, ok := registry[entity]
		if !ok {
			continue
		}
		if expr, ok := target.Fields[path]; ok {
			return expr, nil
		}
	}
	return "", apperr.Configuration("unknown field path %q on entity %q", path, s.Table)
}

// ForeignKey returns the declared relationship to target.
func (s EntitySchema) ForeignKey(target Entity) (Join, error) {
	fk, ok := s.ForeignKeys[target]
	if !ok {
		return Join{}, apperr.Configuration("no declared join from %q to %q", s.Table, target)
	}
	return fk, nil
}

func (s EntitySchema) tableRef() string {
	return fmt.Sprintf("%s %s", s.Table, s.Alias)
}
