package composer

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"

	"github.com/kalambet/salesiq/internal/intent"
)

// Default color palette for chart series.
var palette = []string{
	"#4F46E5", "#10B981", "#F59E0B", "#EF4444", "#8B5CF6",
	"#06B6D4", "#EC4899", "#84CC16", "#F97316", "#6366F1",
}

func colorAt(i int) string { return palette[i%len(palette)] }

// FormatCurrency renders v with a symbol prefix, thousands separators and
// two decimals, e.g. "$1,234.50" or "-$12.00".
func FormatCurrency(symbol string, v float64) string {
	v = finite(v)
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return sign + symbol + humanize.FormatFloat("#,###.##", v)
}

// FormatInt renders v rounded to an integer with thousands separators.
func FormatInt(v float64) string {
	return humanize.Comma(int64(math.Round(finite(v))))
}

// FormatPercent renders v as a one-decimal percentage.
func FormatPercent(v float64) string {
	return fmt.Sprintf("%.1f%%", finite(v))
}

// Share renders part as a percentage of total, or "n/a" when total is zero.
func Share(part, total float64) string {
	if total == 0 {
		return "n/a"
	}
	return FormatPercent(part / total * 100)
}

// Growth phrases the change from first to last. A zero baseline has no
// meaningful percentage and yields a fixed message instead. The percentage
// is taken against |first| so the wording follows the sign of the change
// for negative baselines too.
func Growth(first, last float64) string {
	if first == 0 {
		return "No data available for the first month"
	}
	delta := last - first
	switch {
	case delta > 0:
		return "increased by " + FormatPercent(delta/math.Abs(first)*100)
	case delta < 0:
		return "decreased by " + FormatPercent(-delta/math.Abs(first)*100)
	default:
		return "remained stable"
	}
}

// ratio divides a by b, returning 0 when b is zero.
func ratio(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(finite(v)*100) / 100
}

// formatMetric renders a value of metric m in its natural unit.
func (c *Composer) formatMetric(m intent.Metric, v float64) string {
	switch m {
	case intent.Revenue, intent.Profit:
		return FormatCurrency(c.Currency, v)
	case intent.Satisfaction:
		return fmt.Sprintf("%.2f / 5", finite(v))
	default:
		return FormatInt(v)
	}
}

var metricTitles = map[intent.Metric]string{
	intent.Revenue:      "Revenue",
	intent.Profit:       "Profit",
	intent.Quantity:     "Units Sold",
	intent.Orders:       "Orders",
	intent.Satisfaction: "Satisfaction",
}

var metricPhrases = map[intent.Metric]string{
	intent.Revenue:      "total revenue",
	intent.Profit:       "total profit",
	intent.Quantity:     "units sold",
	intent.Orders:       "orders",
	intent.Satisfaction: "average satisfaction",
}

var groupTitles = map[intent.GroupBy]string{
	intent.GroupByProduct:  "Product",
	intent.GroupByCategory: "Category",
	intent.GroupByRegion:   "Region",
	intent.GroupByCustomer: "Customer",
	intent.GroupByMonth:    "Month",
	intent.GroupByQuarter:  "Quarter",
	intent.GroupByYear:     "Year",
}

var groupPlurals = map[intent.GroupBy]string{
	intent.GroupByProduct:  "products",
	intent.GroupByCategory: "categories",
	intent.GroupByRegion:   "regions",
	intent.GroupByCustomer: "customers",
	intent.GroupByMonth:    "months",
	intent.GroupByQuarter:  "quarters",
	intent.GroupByYear:     "years",
}
