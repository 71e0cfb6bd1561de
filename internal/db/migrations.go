package db

import (
	"fmt"

	"gorm.io/gorm"
)

// The reporting service owns no operational tables; it only adds the
// indexes its grouped queries lean on and the daily quote rollup view the
// trend reports read. Everything is guarded so a partially provisioned
// environment starts cleanly.
var migrationStatements = []string{
	`DO $$
	BEGIN
		IF EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = 'vehicles') THEN
			CREATE INDEX IF NOT EXISTS idx_vehicles_tenant_created ON vehicles (tenant_id, created_at);
			CREATE INDEX IF NOT EXISTS idx_vehicles_dealership ON vehicles (dealership_id);
		END IF;
	END
	$$;`,
	`DO $$
	BEGIN
		IF EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = 'workshop_quotes') THEN
			CREATE INDEX IF NOT EXISTS idx_workshop_quotes_tenant_created ON workshop_quotes (tenant_id, created_at);
			CREATE INDEX IF NOT EXISTS idx_workshop_quotes_vehicle ON workshop_quotes (vehicle_id);
		END IF;
	END
	$$;`,
	`DO $$
	BEGIN
		IF EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = 'workshop_reports') THEN
			CREATE INDEX IF NOT EXISTS idx_workshop_reports_tenant_created ON workshop_reports (tenant_id, created_at);
		END IF;
	END
	$$;`,
	`DO $$
	BEGIN
		IF EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = 'bay_bookings') THEN
			CREATE INDEX IF NOT EXISTS idx_bay_bookings_tenant_started ON bay_bookings (tenant_id, started_at);
			CREATE INDEX IF NOT EXISTS idx_bay_bookings_bay ON bay_bookings (bay_id);
		END IF;
	END
	$$;`,
	`DO $$
	BEGIN
		IF EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = 'workflow_executions') THEN
			CREATE INDEX IF NOT EXISTS idx_workflow_executions_tenant_started ON workflow_executions (tenant_id, started_at);
		END IF;
	END
	$$;`,
	`DO $$
	BEGIN
		IF EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = 'email_events') THEN
			CREATE INDEX IF NOT EXISTS idx_email_events_tenant_sent ON email_events (tenant_id, sent_at);
		END IF;
	END
	$$;`,
	`DO $$
	BEGIN
		IF EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = 'workshop_quotes') AND
		   EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = 'vehicles') AND
		   NOT EXISTS (SELECT 1 FROM pg_matviews WHERE matviewname = 'mv_quote_daily') THEN
			CREATE MATERIALIZED VIEW mv_quote_daily AS
			SELECT
				DATE_TRUNC('day', wq.created_at) AS bucket,
				wq.tenant_id,
				v.dealership_id,
				COUNT(*) AS quote_count,
				COALESCE(SUM(wq.total_amount), 0) AS total_value
			FROM workshop_quotes wq
			LEFT JOIN vehicles v ON v.id = wq.vehicle_id
			GROUP BY 1, wq.tenant_id, v.dealership_id;
		END IF;
	END
	$$;`,
	`DO $$
	BEGIN
		IF EXISTS (SELECT 1 FROM pg_matviews WHERE matviewname = 'mv_quote_daily') THEN
			CREATE INDEX IF NOT EXISTS idx_mv_quote_daily_bucket ON mv_quote_daily (bucket);
			CREATE INDEX IF NOT EXISTS idx_mv_quote_daily_tenant ON mv_quote_daily (tenant_id, dealership_id);
		END IF;
	END
	$$;`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
