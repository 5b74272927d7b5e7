// Package plan turns a classified intent into a single, fully resolved
// read query.
package plan

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kalambet/salesiq/internal/intent"
)

// Plan is a ready-to-run query for one request.
type Plan struct {
	Kind  intent.Kind `json:"kind"`
	Query string      `json:"query"`
}

func (p Plan) String() string { return p.Query }

// GenerationError reports an intent the generator cannot turn into a query.
type GenerationError struct {
	Kind   intent.Kind
	Reason string
}

func (e *GenerationError) Error() string {
	if e.Kind == "" {
		return "plan generation failed: " + e.Reason
	}
	return fmt.Sprintf("plan generation failed for %s: %s", e.Kind, e.Reason)
}

// Generator builds queries in one SQL dialect.
type Generator struct {
	dialect Dialect
}

// NewGenerator returns a Generator for d. A nil dialect means SQLite.
func NewGenerator(d Dialect) *Generator {
	if d == nil {
		d = SQLite{}
	}
	return &Generator{dialect: d}
}

// Dialect returns the generator's SQL dialect.
func (g *Generator) Dialect() Dialect { return g.dialect }

const (
	orderDate = "o.order_date"

	salesJoins = `FROM orders o
JOIN order_items oi ON oi.order_id = o.id
JOIN products p ON p.id = oi.product_id
JOIN customers c ON c.id = o.customer_id`

	avgOrderValueExpr = "SUM(oi.quantity * oi.unit_price) / NULLIF(COUNT(DISTINCT o.id), 0)"
)

// Generate returns the query for in.
func (g *Generator) Generate(in intent.Intent) (Plan, error) {
	var (
		query string
		err   error
	)
	switch v := in.(type) {
	case intent.RevenueAnalysis:
		query, err = g.revenue(v)
	case intent.CustomerAnalysis:
		query, err = g.customer(v)
	case intent.ProductAnalysis:
		query, err = g.product(v)
	case intent.RegionalAnalysis:
		query = g.regional(v)
	case intent.Comparison:
		query, err = g.comparison(v)
	case intent.General:
		query = g.general()
	case nil:
		return Plan{}, &GenerationError{Reason: "no intent"}
	default:
		return Plan{}, &GenerationError{Reason: fmt.Sprintf("unsupported intent %T", in)}
	}
	if err != nil {
		return Plan{}, err
	}
	if tok := unresolvedToken(query); tok != "" {
		return Plan{}, &GenerationError{Kind: in.Kind(), Reason: fmt.Sprintf("unresolved placeholder %q", tok)}
	}
	return Plan{Kind: in.Kind(), Query: query}, nil
}

type grouping struct {
	selectExpr string
	groupExpr  string
}

func (g *Generator) revenueGrouping(by intent.GroupBy) (grouping, bool) {
	switch by {
	case intent.GroupByProduct:
		return grouping{"p.name", "p.id, p.name"}, true
	case intent.GroupByCategory:
		return grouping{"p.category", "p.category"}, true
	case intent.GroupByRegion:
		return grouping{"c.region", "c.region"}, true
	case intent.GroupByCustomer:
		return grouping{"c.name", "c.id, c.name"}, true
	}
	expr, ok := g.dialect.Period(by, orderDate)
	return grouping{expr, expr}, ok
}

func (g *Generator) revenue(in intent.RevenueAnalysis) (string, error) {
	filter, ok := g.dialect.TimeframeFilter(in.Timeframe, orderDate)
	if !ok {
		return "", &GenerationError{Kind: in.Kind(), Reason: fmt.Sprintf("unknown timeframe %q", in.Timeframe)}
	}
	by := EffectiveGroupBy(in)
	grp, ok := g.revenueGrouping(by)
	if !ok {
		return "", &GenerationError{Kind: in.Kind(), Reason: fmt.Sprintf("unknown grouping %q", in.GroupBy)}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s AS %s, %s AS revenue, SUM(oi.quantity) AS units\n", grp.selectExpr, by, revenueExpr)
	sb.WriteString(salesJoins)
	writeWhere(&sb, filter)
	fmt.Fprintf(&sb, "\nGROUP BY %s\nORDER BY revenue DESC", grp.groupExpr)
	return sb.String(), nil
}

func (g *Generator) customer(in intent.CustomerAnalysis) (string, error) {
	if in.Limit < 1 {
		return "", &GenerationError{Kind: in.Kind(), Reason: fmt.Sprintf("invalid limit %d", in.Limit)}
	}
	m := EffectiveMetric(in)
	col := MetricColumn(m)

	var sb strings.Builder
	sb.WriteString("SELECT c.id AS customer_id, c.name AS customer_name, c.region AS region,\n")
	fmt.Fprintf(&sb, "  %s AS %s,\n", metricExprs[m], col)
	sb.WriteString("  COUNT(DISTINCT o.id) AS order_count,\n")
	fmt.Fprintf(&sb, "  %s AS avg_order_value,\n", avgOrderValueExpr)
	sb.WriteString("  MAX(o.order_date) AS last_purchase\n")
	sb.WriteString(salesJoins)
	sb.WriteString("\nGROUP BY c.id, c.name, c.region")
	fmt.Fprintf(&sb, "\nORDER BY %s DESC\nLIMIT %d", col, in.Limit)
	return sb.String(), nil
}

func (g *Generator) product(in intent.ProductAnalysis) (string, error) {
	if in.Limit < 1 {
		return "", &GenerationError{Kind: in.Kind(), Reason: fmt.Sprintf("invalid limit %d", in.Limit)}
	}
	m := EffectiveMetric(in)
	col := MetricColumn(m)

	var sb strings.Builder
	sb.WriteString("SELECT p.id AS product_id, p.name AS product_name, p.category AS category,\n")
	fmt.Fprintf(&sb, "  %s AS %s,\n", metricExprs[m], col)
	sb.WriteString("  SUM(oi.quantity) AS units_sold,\n")
	sb.WriteString("  COUNT(DISTINCT o.id) AS order_count,\n")
	sb.WriteString("  AVG(oi.unit_price) AS avg_price\n")
	sb.WriteString(salesJoins)
	sb.WriteString("\nGROUP BY p.id, p.name, p.category")
	fmt.Fprintf(&sb, "\nORDER BY %s DESC\nLIMIT %d", col, in.Limit)
	return sb.String(), nil
}

func (g *Generator) regional(in intent.RegionalAnalysis) string {
	m := EffectiveMetric(in)
	col := MetricColumn(m)

	var sb strings.Builder
	sb.WriteString("SELECT c.region AS region,\n")
	fmt.Fprintf(&sb, "  %s AS %s,\n", metricExprs[m], col)
	sb.WriteString("  COUNT(DISTINCT c.id) AS customer_count,\n")
	sb.WriteString("  COUNT(DISTINCT o.id) AS order_count,\n")
	sb.WriteString("  SUM(oi.quantity) AS total_units,\n")
	fmt.Fprintf(&sb, "  %s AS avg_order_value\n", avgOrderValueExpr)
	sb.WriteString(salesJoins)
	fmt.Fprintf(&sb, "\nGROUP BY c.region\nORDER BY %s DESC", col)
	return sb.String()
}

func (g *Generator) comparison(in intent.Comparison) (string, error) {
	if len(in.Entities) == 0 {
		return "", &GenerationError{Kind: in.Kind(), Reason: "no entities to compare"}
	}
	column := "p.category"
	if ComparisonDimension(in.Entities) == intent.GroupByRegion {
		column = "c.region"
	}
	month, _ := g.dialect.Period(intent.GroupByMonth, orderDate)
	m := EffectiveMetric(in)

	quoted := make([]string, len(in.Entities))
	for i, e := range in.Entities {
		quoted[i] = quoteLiteral(e)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s AS entity, %s AS month, %s AS %s\n", column, month, metricExprs[m], MetricColumn(m))
	sb.WriteString(salesJoins)
	writeWhere(&sb, fmt.Sprintf("%s IN (%s)", column, strings.Join(quoted, ", ")))
	fmt.Fprintf(&sb, "\nGROUP BY %s, %s\nORDER BY entity, month", column, month)
	return sb.String(), nil
}

func (g *Generator) general() string {
	month, _ := g.dialect.Period(intent.GroupByMonth, orderDate)

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s AS month,\n", month)
	fmt.Fprintf(&sb, "  %s AS revenue,\n", revenueExpr)
	sb.WriteString("  COUNT(DISTINCT o.id) AS order_count,\n")
	sb.WriteString("  COUNT(DISTINCT o.customer_id) AS customer_count,\n")
	sb.WriteString("  SUM(oi.quantity) AS units_sold,\n")
	fmt.Fprintf(&sb, "  %s AS avg_order_value\n", avgOrderValueExpr)
	sb.WriteString("FROM orders o\nJOIN order_items oi ON oi.order_id = o.id")
	fmt.Fprintf(&sb, "\nGROUP BY %s\nORDER BY month ASC", month)
	return sb.String()
}

func writeWhere(sb *strings.Builder, cond string) {
	if cond == "" {
		return
	}
	sb.WriteString("\nWHERE ")
	sb.WriteString(cond)
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

var (
	stringLiteral    = regexp.MustCompile(`'(?:[^']|'')*'`)
	placeholderToken = regexp.MustCompile(`\?|\$\d+|\{\{|\}\}|:[a-z_]+\b`)
)

// unresolvedToken returns the first bind placeholder or template marker
// outside string literals, or "".
func unresolvedToken(query string) string {
	return placeholderToken.FindString(stringLiteral.ReplaceAllString(query, "''"))
}
