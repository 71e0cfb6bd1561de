package model

import "time"

// Typed report payloads. Every field has a meaningful zero value so the
// "no records in range" case serializes as a normal success response.

type StatusGroup struct {
	Status string      `json:"status"`
	Count  int64       `json:"count"`
	Share  float64     `json:"share"`
	Extra  []GroupCell `json:"breakdown,omitempty"`
}

type GroupCell struct {
	Key   string  `json:"key"`
	Count int64   `json:"count"`
	Value float64 `json:"value"`
}

type SeriesPoint struct {
	Bucket time.Time `json:"bucket"`
	Count  int64     `json:"count"`
	Value  float64   `json:"value"`
}

type VehicleInventoryReport struct {
	TotalVehicles    int64         `json:"total_vehicles"`
	AvailableCount   int64         `json:"available_count"`
	AvailabilityRate float64       `json:"availability_rate"`
	AvgPrice         float64       `json:"avg_price"`
	AvgDaysInStock   float64       `json:"avg_days_in_stock"`
	ByStatus         []StatusGroup `json:"by_status"`
}

type VehicleSalesTrendReport struct {
	UnitsSeries   []SeriesPoint `json:"units_series"`
	RevenueSeries []SeriesPoint `json:"revenue_series"`
	TotalUnits    int64         `json:"total_units"`
	TotalRevenue  float64       `json:"total_revenue"`
	GrossProfit   float64       `json:"gross_profit"`
	ProfitMargin  float64       `json:"profit_margin"`
}

type QuoteConversionReport struct {
	TotalQuotes    int64         `json:"total_quotes"`
	ApprovedCount  int64         `json:"approved_count"`
	ConvertedCount int64         `json:"converted_count"`
	ApprovalRate   float64       `json:"approval_rate"`
	ConversionRate float64       `json:"conversion_rate"`
	AvgQuoteValue  float64       `json:"avg_quote_value"`
	ByStatus       []StatusGroup `json:"by_status"`
}

type QuoteValueTrendReport struct {
	Series     []SeriesPoint `json:"series"`
	TotalValue float64       `json:"total_value"`
	AvgValue   float64       `json:"avg_value"`
}

type ScoreSummary struct {
	Score           float64  `json:"score"`
	Band            string   `json:"band"`
	Issues          []string `json:"issues"`
	Recommendations []string `json:"recommendations"`
}

type WorkshopQualityReport struct {
	TotalReports        int64        `json:"total_reports"`
	ChecklistCompletion float64      `json:"checklist_completion_rate"`
	PhotoCoverage       float64      `json:"photo_coverage_rate"`
	OnTimeRate          float64      `json:"on_time_rate"`
	Quality             ScoreSummary `json:"quality"`
}

type BayUtilizationReport struct {
	TotalBays        int64        `json:"total_bays"`
	TotalBookings    int64        `json:"total_bookings"`
	OccupancyRate    float64      `json:"occupancy_rate"`
	AvgTurnaroundMin float64      `json:"avg_turnaround_minutes"`
	Effectiveness    ScoreSummary `json:"effectiveness"`
}

type WorkflowEffectivenessReport struct {
	TotalExecutions int64        `json:"total_executions"`
	SuccessCount    int64        `json:"success_count"`
	SuccessRate     float64      `json:"success_rate"`
	FailureRate     float64      `json:"failure_rate"`
	AvgDurationSec  float64      `json:"avg_duration_seconds"`
	Health          ScoreSummary `json:"health"`
}

type EmailAutomationReport struct {
	TotalSent    int64        `json:"total_sent"`
	DeliveryRate float64      `json:"delivery_rate"`
	OpenRate     float64      `json:"open_rate"`
	ClickRate    float64      `json:"click_rate"`
	Engagement   ScoreSummary `json:"engagement"`
}

type UserEngagementReport struct {
	TotalUsers   int64         `json:"total_users"`
	ActiveUsers  int64         `json:"active_users"`
	ActivityRate float64       `json:"activity_rate"`
	ByRole       []StatusGroup `json:"by_role"`
	Engagement   ScoreSummary  `json:"engagement"`
}

type CostConfigCoverageReport struct {
	TotalConfigs      int64   `json:"total_configs"`
	ConfiguredCount   int64   `json:"configured_count"`
	CoverageRate      float64 `json:"coverage_rate"`
	AvgConfiguredKeys float64 `json:"avg_configured_keys"`
}
