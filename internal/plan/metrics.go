package plan

import (
	"slices"

	"github.com/kalambet/salesiq/internal/intent"
)

const revenueExpr = "SUM(oi.quantity * oi.unit_price)"

var metricExprs = map[intent.Metric]string{
	intent.Revenue:      revenueExpr,
	intent.Profit:       "SUM(oi.quantity * (oi.unit_price - p.cost))",
	intent.Quantity:     "SUM(oi.quantity)",
	intent.Orders:       "COUNT(DISTINCT o.id)",
	intent.Satisfaction: "AVG(o.rating)",
}

// Metrics each variant can rank by; anything else falls back to revenue.
var supportedMetrics = map[intent.Kind][]intent.Metric{
	intent.KindCustomer:   {intent.Revenue, intent.Orders, intent.Quantity},
	intent.KindProduct:    {intent.Revenue, intent.Profit, intent.Quantity},
	intent.KindRegional:   {intent.Revenue, intent.Profit, intent.Quantity, intent.Orders, intent.Satisfaction},
	intent.KindComparison: {intent.Revenue, intent.Profit, intent.Quantity, intent.Orders, intent.Satisfaction},
}

// MetricColumn is the result column holding the ranked metric.
func MetricColumn(m intent.Metric) string {
	if m == intent.Satisfaction {
		return "avg_satisfaction"
	}
	return "total_" + string(m)
}

// EffectiveMetric returns the metric the plan for in actually ranks by.
func EffectiveMetric(in intent.Intent) intent.Metric {
	var m intent.Metric
	switch v := in.(type) {
	case intent.CustomerAnalysis:
		m = v.Metric
	case intent.ProductAnalysis:
		m = v.Metric
	case intent.RegionalAnalysis:
		m = v.Metric
	case intent.Comparison:
		m = v.Metric
	default:
		return intent.Revenue
	}
	if slices.Contains(supportedMetrics[in.Kind()], m) {
		return m
	}
	return intent.Revenue
}

// EffectiveGroupBy returns the grouping a revenue plan uses: the requested
// one, or month when none was asked for.
func EffectiveGroupBy(in intent.RevenueAnalysis) intent.GroupBy {
	if in.GroupBy == intent.GroupByNone {
		return intent.GroupByMonth
	}
	return in.GroupBy
}

// ComparisonDimension reports whether a comparison runs over regions or
// categories. Regions are used only when every entity is a region; any
// other mix compares categories.
func ComparisonDimension(entities []string) intent.GroupBy {
	if len(entities) == 0 {
		return intent.GroupByCategory
	}
	for _, e := range entities {
		if !intent.IsRegion(e) {
			return intent.GroupByCategory
		}
	}
	return intent.GroupByRegion
}
