package service

import (
	"reporting-service/internal/model"
	"reporting-service/internal/report"
)

// catalog declares every report as an instantiation of the generic
// scope → aggregate → derive → score pipeline. Aggregations named "totals"
// (no group keys) export their values to the derivation stage as
// "totals.<alias>". Weight splits and band thresholds are per-report
// product decisions, configured here rather than unified.
func catalog() []report.Definition {
	return []report.Definition{
		vehicleInventory(),
		vehicleSalesTrend(),
		quoteConversion(),
		quoteValueTrend(),
		workshopQuality(),
		bayUtilization(),
		workflowEffectiveness(),
		emailAutomation(),
		userEngagement(),
		costConfigCoverage(),
	}
}

func vehicleInventory() report.Definition {
	return report.Definition{
		Slug: "vehicle-inventory",
		Aggregations: []report.NamedRequest{
			{Name: "totals", Request: report.Request{
				Entity: report.EntityVehicles,
				Aggregates: []report.AggregateSpec{
					{Alias: "total", Op: report.OpCount},
					{Alias: "available", Op: report.OpSum, Field: "available"},
					{Alias: "avg_price", Op: report.OpAvg, Field: "price"},
					{Alias: "avg_days", Op: report.OpAvg, Field: "days_in_stock"},
				},
			}},
			{Name: "by_status", Request: report.Request{
				Entity:    report.EntityVehicles,
				GroupKeys: []string{"status", "make"},
				Aggregates: []report.AggregateSpec{
					{Alias: "count", Op: report.OpCount},
					{Alias: "avg_price", Op: report.OpAvg, Field: "price"},
				},
				Rollup: &report.Rollup{Key: "status", WeightKey: "count"},
				Sort:   &report.SortSpec{Key: "count", Descending: true},
			}},
		},
		Derivations: []report.Derivation{
			{Name: "availability_rate", Op: report.DerivePercent, Inputs: []string{"totals.available", "totals.total"}, Digits: 1},
			{Name: "avg_price", Op: report.DeriveValue, Inputs: []string{"totals.avg_price"}, Digits: 2},
			{Name: "avg_days_in_stock", Op: report.DeriveValue, Inputs: []string{"totals.avg_days"}, Digits: 1},
		},
		Assemble: func(groups map[string][]report.GroupResult, metrics map[string]float64, _ *model.ScoreSummary) any {
			out := model.VehicleInventoryReport{
				TotalVehicles:    int64(metrics["totals.total"]),
				AvailableCount:   int64(metrics["totals.available"]),
				AvailabilityRate: metrics["availability_rate"],
				AvgPrice:         metrics["avg_price"],
				AvgDaysInStock:   metrics["avg_days_in_stock"],
				ByStatus:         []model.StatusGroup{},
			}
			for _, group := range groups["by_status"] {
				sg := model.StatusGroup{
					Status: group.KeyString("status"),
					Count:  group.Count("count"),
					Share:  share(group.Value("count"), metrics["totals.total"]),
				}
				for _, fine := range group.Breakdown {
					sg.Extra = append(sg.Extra, model.GroupCell{
						Key:   fine.KeyString("make"),
						Count: fine.Count("count"),
						Value: fine.Value("avg_price"),
					})
				}
				out.ByStatus = append(out.ByStatus, sg)
			}
			return out
		},
	}
}

func vehicleSalesTrend() report.Definition {
	soldOnly := []report.Condition{{Field: "status", Op: report.CondEq, Value: "SOLD"}}
	return report.Definition{
		Slug: "vehicle-sales-trend",
		Aggregations: []report.NamedRequest{
			{Name: "totals", Request: report.Request{
				Entity:     report.EntityVehicles,
				Conditions: soldOnly,
				Aggregates: []report.AggregateSpec{
					{Alias: "units", Op: report.OpCount},
					{Alias: "revenue", Op: report.OpSum, Field: "price"},
					{Alias: "cost", Op: report.OpSum, Field: "cost"},
				},
			}},
			{Name: "series", Request: report.Request{
				Entity:     report.EntityVehicles,
				Conditions: soldOnly,
				TimeBucket: model.BucketDay,
				Aggregates: []report.AggregateSpec{
					{Alias: "units", Op: report.OpCount},
					{Alias: "revenue", Op: report.OpSum, Field: "price"},
				},
				Sort: &report.SortSpec{Key: "bucket"},
			}},
		},
		Derivations: []report.Derivation{
			{Name: "gross_profit", Op: report.DeriveDiff, Inputs: []string{"totals.revenue", "totals.cost"}, Digits: 2},
			// chained: margin consumes the unrounded gross profit
			{Name: "profit_margin", Op: report.DerivePercent, Inputs: []string{"gross_profit", "totals.revenue"}, Digits: 1},
		},
		Assemble: func(groups map[string][]report.GroupResult, metrics map[string]float64, _ *model.ScoreSummary) any {
			out := model.VehicleSalesTrendReport{
				UnitsSeries:   []model.SeriesPoint{},
				RevenueSeries: []model.SeriesPoint{},
				TotalUnits:    int64(metrics["totals.units"]),
				TotalRevenue:  metrics["totals.revenue"],
				GrossProfit:   metrics["gross_profit"],
				ProfitMargin:  metrics["profit_margin"],
			}
			for _, group := range groups["series"] {
				bucket := group.KeyTime("bucket")
				out.UnitsSeries = append(out.UnitsSeries, model.SeriesPoint{
					Bucket: bucket, Count: group.Count("units"),
				})
				out.RevenueSeries = append(out.RevenueSeries, model.SeriesPoint{
					Bucket: bucket, Count: group.Count("units"), Value: group.Value("revenue"),
				})
			}
			return out
		},
	}
}

func quoteConversion() report.Definition {
	return report.Definition{
		Slug: "quote-conversion",
		Aggregations: []report.NamedRequest{
			{Name: "totals", Request: report.Request{
				Entity: report.EntityQuotes,
				Aggregates: []report.AggregateSpec{
					{Alias: "total", Op: report.OpCount},
					{Alias: "approved", Op: report.OpSum, Field: "approved"},
					{Alias: "converted", Op: report.OpSum, Field: "converted"},
					{Alias: "avg_value", Op: report.OpAvg, Field: "total_amount"},
				},
			}},
			{Name: "by_status", Request: report.Request{
				Entity:    report.EntityQuotes,
				GroupKeys: []string{"status"},
				Aggregates: []report.AggregateSpec{
					{Alias: "count", Op: report.OpCount},
					{Alias: "value", Op: report.OpSum, Field: "total_amount"},
				},
				Sort: &report.SortSpec{Key: "count", Descending: true},
			}},
		},
		Derivations: []report.Derivation{
			{Name: "approval_rate", Op: report.DerivePercent, Inputs: []string{"totals.approved", "totals.total"}, Digits: 1},
			{Name: "conversion_rate", Op: report.DerivePercent, Inputs: []string{"totals.converted", "totals.total"}, Digits: 1},
			{Name: "avg_quote_value", Op: report.DeriveValue, Inputs: []string{"totals.avg_value"}, Digits: 2},
		},
		Assemble: func(groups map[string][]report.GroupResult, metrics map[string]float64, _ *model.ScoreSummary) any {
			out := model.QuoteConversionReport{
				TotalQuotes:    int64(metrics["totals.total"]),
				ApprovedCount:  int64(metrics["totals.approved"]),
				ConvertedCount: int64(metrics["totals.converted"]),
				ApprovalRate:   metrics["approval_rate"],
				ConversionRate: metrics["conversion_rate"],
				AvgQuoteValue:  metrics["avg_quote_value"],
				ByStatus:       []model.StatusGroup{},
			}
			for _, group := range groups["by_status"] {
				out.ByStatus = append(out.ByStatus, model.StatusGroup{
					Status: group.KeyString("status"),
					Count:  group.Count("count"),
					Share:  share(group.Value("count"), metrics["totals.total"]),
				})
			}
			return out
		},
	}
}

func quoteValueTrend() report.Definition {
	return report.Definition{
		Slug: "quote-value-trend",
		Aggregations: []report.NamedRequest{
			{Name: "totals", Request: report.Request{
				Entity: report.EntityQuotes,
				Aggregates: []report.AggregateSpec{
					{Alias: "total_value", Op: report.OpSum, Field: "total_amount"},
					{Alias: "avg_value", Op: report.OpAvg, Field: "total_amount"},
				},
			}},
			// the series reads the daily rollup view; the refresher keeps
			// it current
			{Name: "series", Request: report.Request{
				Entity:     report.EntityQuoteRollups,
				TimeBucket: model.BucketDay,
				Aggregates: []report.AggregateSpec{
					{Alias: "count", Op: report.OpSum, Field: "quote_count"},
					{Alias: "value", Op: report.OpSum, Field: "total_value"},
				},
				Sort: &report.SortSpec{Key: "bucket"},
			}},
		},
		Derivations: []report.Derivation{
			{Name: "total_value", Op: report.DeriveValue, Inputs: []string{"totals.total_value"}, Digits: 2},
			{Name: "avg_value", Op: report.DeriveValue, Inputs: []string{"totals.avg_value"}, Digits: 2},
		},
		Assemble: func(groups map[string][]report.GroupResult, metrics map[string]float64, _ *model.ScoreSummary) any {
			out := model.QuoteValueTrendReport{
				Series:     []model.SeriesPoint{},
				TotalValue: metrics["total_value"],
				AvgValue:   metrics["avg_value"],
			}
			for _, group := range groups["series"] {
				out.Series = append(out.Series, model.SeriesPoint{
					Bucket: group.KeyTime("bucket"),
					Count:  group.Count("count"),
					Value:  group.Value("value"),
				})
			}
			return out
		},
	}
}

func workshopQuality() report.Definition {
	return report.Definition{
		Slug: "workshop-quality",
		Aggregations: []report.NamedRequest{
			{Name: "totals", Request: report.Request{
				Entity: report.EntityWorkshopRpts,
				Aggregates: []report.AggregateSpec{
					{Alias: "total", Op: report.OpCount},
					{Alias: "checklist_done", Op: report.OpSum, Field: "checklist_complete"},
					{Alias: "with_photos", Op: report.OpSum, Field: "has_photos"},
					{Alias: "on_time", Op: report.OpSum, Field: "on_time"},
				},
			}},
		},
		Derivations: []report.Derivation{
			{Name: "checklist_completion_rate", Op: report.DerivePercent, Inputs: []string{"totals.checklist_done", "totals.total"}, Digits: 1},
			{Name: "photo_coverage_rate", Op: report.DerivePercent, Inputs: []string{"totals.with_photos", "totals.total"}, Digits: 1},
			{Name: "on_time_rate", Op: report.DerivePercent, Inputs: []string{"totals.on_time", "totals.total"}, Digits: 1},
		},
		Score: &report.ScoreCard{
			Name:    "workshop-quality",
			Records: "totals.total",
			Inputs: []report.ScaledInput{
				{Metric: "checklist_completion_rate", Weight: 0.4},
				{Metric: "photo_coverage_rate", Weight: 0.4},
				{Metric: "on_time_rate", Weight: 0.2},
			},
			Bands: []report.Band{
				{Min: 0, Label: "Poor"},
				{Min: 40, Label: "Fair"},
				{Min: 60, Label: "Good"},
				{Min: 80, Label: "Excellent"},
			},
			Rules: []report.Rule{
				{Metric: "checklist_completion_rate", When: report.RuleBelow, Threshold: 50,
					Issue:          "checklist completion below 50%",
					Recommendation: "require completed checklists before closing workshop reports"},
				{Metric: "photo_coverage_rate", When: report.RuleBelow, Threshold: 40,
					Issue:          "photo coverage below 40%",
					Recommendation: "attach photos for every inspection finding"},
				{Metric: "on_time_rate", When: report.RuleBelow, Threshold: 60,
					Issue:          "on-time completion below 60%",
					Recommendation: "review workshop capacity against promised due dates"},
			},
		},
		Assemble: func(_ map[string][]report.GroupResult, metrics map[string]float64, score *model.ScoreSummary) any {
			return model.WorkshopQualityReport{
				TotalReports:        int64(metrics["totals.total"]),
				ChecklistCompletion: metrics["checklist_completion_rate"],
				PhotoCoverage:       metrics["photo_coverage_rate"],
				OnTimeRate:          metrics["on_time_rate"],
				Quality:             summaryOrZero(score),
			}
		},
	}
}

func bayUtilization() report.Definition {
	return report.Definition{
		Slug: "bay-utilization",
		Aggregations: []report.NamedRequest{
			{Name: "bays", Request: report.Request{
				Entity: report.EntityServiceBays,
				Aggregates: []report.AggregateSpec{
					{Alias: "total", Op: report.OpCount},
					{Alias: "active", Op: report.OpSum, Field: "active"},
				},
			}},
			{Name: "bookings", Request: report.Request{
				Entity: report.EntityBayBookings,
				Aggregates: []report.AggregateSpec{
					{Alias: "total", Op: report.OpCount},
					{Alias: "occupied", Op: report.OpSum, Field: "occupied_minutes"},
					{Alias: "avg_turnaround", Op: report.OpAvg, Field: "turnaround_minutes"},
				},
			}},
		},
		Derivations: []report.Derivation{
			{Name: "capacity_minutes", Op: report.DeriveProduct, Inputs: []string{"bays.active", "range.minutes"}},
			{Name: "occupancy_rate", Op: report.DerivePercent, Inputs: []string{"bookings.occupied", "capacity_minutes"}, Digits: 1},
			{Name: "avg_turnaround", Op: report.DeriveValue, Inputs: []string{"bookings.avg_turnaround"}, Digits: 1},
		},
		Score: &report.ScoreCard{
			Name:    "bay-effectiveness",
			Records: "bookings.total",
			Inputs: []report.ScaledInput{
				{Metric: "occupancy_rate", Weight: 0.6},
				// turnaround is minutes where lower is better; eight hours
				// scores zero
				{Metric: "avg_turnaround", Weight: 0.4, Max: 480, Invert: true},
			},
			Bands: []report.Band{
				{Min: 0, Label: "Poor"},
				{Min: 40, Label: "Fair"},
				{Min: 70, Label: "Good"},
				{Min: 85, Label: "Excellent"},
			},
			Rules: []report.Rule{
				{Metric: "occupancy_rate", When: report.RuleBelow, Threshold: 25,
					Issue:          "bay occupancy below 25%",
					Recommendation: "consolidate scheduling into fewer bays"},
				{Metric: "occupancy_rate", When: report.RuleAbove, Threshold: 90,
					Issue:          "bays near capacity",
					Recommendation: "consider extending workshop hours"},
			},
		},
		Assemble: func(_ map[string][]report.GroupResult, metrics map[string]float64, score *model.ScoreSummary) any {
			return model.BayUtilizationReport{
				TotalBays:        int64(metrics["bays.total"]),
				TotalBookings:    int64(metrics["bookings.total"]),
				OccupancyRate:    metrics["occupancy_rate"],
				AvgTurnaroundMin: metrics["avg_turnaround"],
				Effectiveness:    summaryOrZero(score),
			}
		},
	}
}

func workflowEffectiveness() report.Definition {
	return report.Definition{
		Slug: "workflow-effectiveness",
		Aggregations: []report.NamedRequest{
			{Name: "totals", Request: report.Request{
				Entity: report.EntityWorkflowExecs,
				Aggregates: []report.AggregateSpec{
					{Alias: "total", Op: report.OpCount},
					{Alias: "succeeded", Op: report.OpSum, Field: "succeeded"},
					{Alias: "failed", Op: report.OpSum, Field: "failed"},
					{Alias: "avg_duration", Op: report.OpAvg, Field: "duration_seconds"},
				},
			}},
		},
		Derivations: []report.Derivation{
			{Name: "success_rate", Op: report.DerivePercent, Inputs: []string{"totals.succeeded", "totals.total"}, Digits: 1},
			{Name: "failure_rate", Op: report.DerivePercent, Inputs: []string{"totals.failed", "totals.total"}, Digits: 1},
			{Name: "avg_duration", Op: report.DeriveValue, Inputs: []string{"totals.avg_duration"}, Digits: 1},
		},
		Score: &report.ScoreCard{
			Name:    "workflow-health",
			Records: "totals.total",
			Inputs: []report.ScaledInput{
				{Metric: "success_rate", Weight: 0.6},
				{Metric: "avg_duration", Weight: 0.4, Max: 3600, Invert: true},
			},
			Bands: []report.Band{
				{Min: 0, Label: "Critical"},
				{Min: 40, Label: "Unstable"},
				{Min: 70, Label: "Stable"},
				{Min: 90, Label: "Excellent"},
			},
			Rules: []report.Rule{
				{Metric: "failure_rate", When: report.RuleAbove, Threshold: 20,
					Issue:          "failure rate above 20%",
					Recommendation: "inspect recent failed executions for a common cause"},
				{Metric: "success_rate", When: report.RuleBelow, Threshold: 50,
					Issue:          "fewer than half of executions succeed",
					Recommendation: "disable the worst-performing workflows until fixed"},
			},
		},
		Assemble: func(_ map[string][]report.GroupResult, metrics map[string]float64, score *model.ScoreSummary) any {
			return model.WorkflowEffectivenessReport{
				TotalExecutions: int64(metrics["totals.total"]),
				SuccessCount:    int64(metrics["totals.succeeded"]),
				SuccessRate:     metrics["success_rate"],
				FailureRate:     metrics["failure_rate"],
				AvgDurationSec:  metrics["avg_duration"],
				Health:          summaryOrZero(score),
			}
		},
	}
}

func emailAutomation() report.Definition {
	return report.Definition{
		Slug: "email-automation",
		Aggregations: []report.NamedRequest{
			{Name: "totals", Request: report.Request{
				Entity: report.EntityEmailEvents,
				Aggregates: []report.AggregateSpec{
					{Alias: "sent", Op: report.OpCount},
					{Alias: "delivered", Op: report.OpSum, Field: "delivered"},
					{Alias: "opened", Op: report.OpSum, Field: "opened"},
					{Alias: "clicked", Op: report.OpSum, Field: "clicked"},
				},
			}},
		},
		Derivations: []report.Derivation{
			{Name: "delivery_rate", Op: report.DerivePercent, Inputs: []string{"totals.delivered", "totals.sent"}, Digits: 1},
			{Name: "open_rate", Op: report.DerivePercent, Inputs: []string{"totals.opened", "totals.delivered"}, Digits: 1},
			{Name: "click_rate", Op: report.DerivePercent, Inputs: []string{"totals.clicked", "totals.opened"}, Digits: 1},
		},
		Score: &report.ScoreCard{
			Name:    "email-engagement",
			Records: "totals.sent",
			Inputs: []report.ScaledInput{
				{Metric: "delivery_rate", Weight: 0.2},
				{Metric: "open_rate", Weight: 0.5},
				{Metric: "click_rate", Weight: 0.3},
			},
			Bands: []report.Band{
				{Min: 0, Label: "Poor"},
				{Min: 30, Label: "Fair"},
				{Min: 55, Label: "Good"},
				{Min: 80, Label: "Excellent"},
			},
			Rules: []report.Rule{
				{Metric: "open_rate", When: report.RuleBelow, Threshold: 30,
					Issue:          "open rate below 30%",
					Recommendation: "revisit subject lines and send times"},
			},
		},
		Assemble: func(_ map[string][]report.GroupResult, metrics map[string]float64, score *model.ScoreSummary) any {
			return model.EmailAutomationReport{
				TotalSent:    int64(metrics["totals.sent"]),
				DeliveryRate: metrics["delivery_rate"],
				OpenRate:     metrics["open_rate"],
				ClickRate:    metrics["click_rate"],
				Engagement:   summaryOrZero(score),
			}
		},
	}
}

func userEngagement() report.Definition {
	return report.Definition{
		Slug: "user-engagement",
		Aggregations: []report.NamedRequest{
			{Name: "totals", Request: report.Request{
				Entity: report.EntityUsers,
				Aggregates: []report.AggregateSpec{
					{Alias: "total", Op: report.OpCount},
					{Alias: "active", Op: report.OpSum, Field: "active"},
				},
			}},
			{Name: "by_role", Request: report.Request{
				Entity:    report.EntityUsers,
				GroupKeys: []string{"role"},
				Aggregates: []report.AggregateSpec{
					{Alias: "count", Op: report.OpCount},
					{Alias: "active", Op: report.OpSum, Field: "active"},
				},
				Sort: &report.SortSpec{Key: "count", Descending: true},
			}},
		},
		Derivations: []report.Derivation{
			{Name: "activity_rate", Op: report.DerivePercent, Inputs: []string{"totals.active", "totals.total"}, Digits: 1},
		},
		Score: &report.ScoreCard{
			Name:    "user-engagement",
			Records: "totals.total",
			Inputs: []report.ScaledInput{
				{Metric: "activity_rate", Weight: 1},
			},
			Bands: []report.Band{
				{Min: 0, Label: "Inactive"},
				{Min: 30, Label: "Low"},
				{Min: 60, Label: "Moderate"},
				{Min: 85, Label: "High"},
			},
			Rules: []report.Rule{
				{Metric: "activity_rate", When: report.RuleBelow, Threshold: 30,
					Issue:          "activity rate below 30%",
					Recommendation: "re-onboard dormant users"},
			},
		},
		Assemble: func(groups map[string][]report.GroupResult, metrics map[string]float64, score *model.ScoreSummary) any {
			out := model.UserEngagementReport{
				TotalUsers:   int64(metrics["totals.total"]),
				ActiveUsers:  int64(metrics["totals.active"]),
				ActivityRate: metrics["activity_rate"],
				ByRole:       []model.StatusGroup{},
				Engagement:   summaryOrZero(score),
			}
			for _, group := range groups["by_role"] {
				out.ByRole = append(out.ByRole, model.StatusGroup{
					Status: group.KeyString("role"),
					Count:  group.Count("count"),
					Share:  share(group.Value("count"), metrics["totals.total"]),
				})
			}
			return out
		},
	}
}

func costConfigCoverage() report.Definition {
	return report.Definition{
		Slug: "cost-config-coverage",
		Aggregations: []report.NamedRequest{
			{Name: "totals", Request: report.Request{
				Entity: report.EntityCostConfigs,
				Aggregates: []report.AggregateSpec{
					{Alias: "total", Op: report.OpCount},
					{Alias: "configured", Op: report.OpSum, Field: "configured"},
					{Alias: "avg_keys", Op: report.OpAvg, Field: "key_count"},
				},
			}},
		},
		Derivations: []report.Derivation{
			{Name: "coverage_rate", Op: report.DerivePercent, Inputs: []string{"totals.configured", "totals.total"}, Digits: 1},
			{Name: "avg_keys", Op: report.DeriveValue, Inputs: []string{"totals.avg_keys"}, Digits: 1},
		},
		Assemble: func(_ map[string][]report.GroupResult, metrics map[string]float64, _ *model.ScoreSummary) any {
			return model.CostConfigCoverageReport{
				TotalConfigs:      int64(metrics["totals.total"]),
				ConfiguredCount:   int64(metrics["totals.configured"]),
				CoverageRate:      metrics["coverage_rate"],
				AvgConfiguredKeys: metrics["avg_keys"],
			}
		},
	}
}

func share(count, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return count / total
}

func summaryOrZero(score *model.ScoreSummary) model.ScoreSummary {
	if score == nil {
		return model.ScoreSummary{Issues: []string{}, Recommendations: []string{}}
	}
	return *score
}
