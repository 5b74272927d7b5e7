package intent

// Kind names an intent variant.
type Kind string

const (
	KindRevenue    Kind = "revenue_analysis"
	KindCustomer   Kind = "customer_analysis"
	KindProduct    Kind = "product_analysis"
	KindRegional   Kind = "regional_analysis"
	KindComparison Kind = "comparison"
	KindGeneral    Kind = "general"
)

// Timeframe restricts the order dates an analysis covers.
type Timeframe string

const (
	AllTime     Timeframe = "all_time"
	LastYear    Timeframe = "last_year"
	ThisYear    Timeframe = "this_year"
	LastMonth   Timeframe = "last_month"
	ThisMonth   Timeframe = "this_month"
	LastQuarter Timeframe = "last_quarter"
	ThisQuarter Timeframe = "this_quarter"
	Last3Months Timeframe = "last_3_months"
	Last6Months Timeframe = "last_6_months"
)

// Label returns a human-readable phrase for the timeframe.
func (t Timeframe) Label() string {
	switch t {
	case LastYear:
		return "last year"
	case ThisYear:
		return "this year"
	case LastMonth:
		return "last month"
	case ThisMonth:
		return "this month"
	case LastQuarter:
		return "last quarter"
	case ThisQuarter:
		return "this quarter"
	case Last3Months:
		return "the last 3 months"
	case Last6Months:
		return "the last 6 months"
	default:
		return "all time"
	}
}

// Metric is the measure an analysis ranks or aggregates by.
type Metric string

const (
	Revenue      Metric = "revenue"
	Profit       Metric = "profit"
	Quantity     Metric = "quantity"
	Orders       Metric = "orders"
	Satisfaction Metric = "satisfaction"
)

// GroupBy is the dimension a revenue analysis is broken down by.
// GroupByNone means the plan picks a monthly time series.
type GroupBy string

const (
	GroupByNone     GroupBy = ""
	GroupByProduct  GroupBy = "product"
	GroupByCategory GroupBy = "category"
	GroupByRegion   GroupBy = "region"
	GroupByCustomer GroupBy = "customer"
	GroupByMonth    GroupBy = "month"
	GroupByQuarter  GroupBy = "quarter"
	GroupByYear     GroupBy = "year"
)

// IsTime reports whether g buckets rows by calendar period.
func (g GroupBy) IsTime() bool {
	return g == GroupByMonth || g == GroupByQuarter || g == GroupByYear
}

// Intent is the classified purpose of a question. The concrete types below
// are the only implementations.
type Intent interface {
	Kind() Kind
	isIntent()
}

type RevenueAnalysis struct {
	Timeframe Timeframe `json:"timeframe"`
	GroupBy   GroupBy   `json:"group_by,omitempty"`
}

type CustomerAnalysis struct {
	Limit  int    `json:"limit"`
	Metric Metric `json:"metric"`
}

type ProductAnalysis struct {
	Metric Metric `json:"metric"`
	Limit  int    `json:"limit"`
}

type RegionalAnalysis struct {
	Metric Metric `json:"metric"`
}

type Comparison struct {
	Entities []string `json:"entities"`
	Metric   Metric   `json:"metric"`
}

type General struct {
	Keywords []string `json:"keywords"`
}

func (RevenueAnalysis) Kind() Kind  { return KindRevenue }
func (CustomerAnalysis) Kind() Kind { return KindCustomer }
func (ProductAnalysis) Kind() Kind  { return KindProduct }
func (RegionalAnalysis) Kind() Kind { return KindRegional }
func (Comparison) Kind() Kind       { return KindComparison }
func (General) Kind() Kind          { return KindGeneral }

func (RevenueAnalysis) isIntent()  {}
func (CustomerAnalysis) isIntent() {}
func (ProductAnalysis) isIntent()  {}
func (RegionalAnalysis) isIntent() {}
func (Comparison) isIntent()       {}
func (General) isIntent()          {}
