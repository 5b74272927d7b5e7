package composer

import "github.com/kalambet/salesiq/internal/intent"

const maxPieSlices = 5

// maxChartRowsBeforeBar is the row count above which only a bar chart
// stays readable.
const maxChartRowsBeforeBar = 15

// SelectChart picks a chart kind for rows grouped by g. Time groupings
// always get line; otherwise many rows force bar and a handful of
// categories or regions get pie.
func SelectChart(g intent.GroupBy, rowCount int) ChartType {
	switch {
	case g.IsTime():
		return ChartLine
	case rowCount > maxChartRowsBeforeBar:
		return ChartBar
	case rowCount <= maxPieSlices && (g == intent.GroupByCategory || g == intent.GroupByRegion):
		return ChartPie
	default:
		return ChartBar
	}
}
