// Package composer turns an intent and its result rows into a markdown
// narrative plus chart and table visualizations.
package composer

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/kalambet/salesiq/internal/intent"
	"github.com/kalambet/salesiq/internal/plan"
	"github.com/kalambet/salesiq/internal/resultset"
)

const defaultCurrency = "$"

// Composer builds ResponseBundles. It holds no per-request state and is
// safe for concurrent use.
type Composer struct {
	Currency string
}

// New creates a Composer that prefixes money with currency. An empty
// currency means "$".
func New(currency string) *Composer {
	if currency == "" {
		currency = defaultCurrency
	}
	return &Composer{Currency: currency}
}

// Compose renders rows, as returned for the plan of in, into a response.
// It never fails: empty results and zero baselines produce safe text.
func (c *Composer) Compose(in intent.Intent, rows resultset.Set) ResponseBundle {
	switch v := in.(type) {
	case intent.RevenueAnalysis:
		return c.revenue(v, rows)
	case intent.CustomerAnalysis:
		return c.customer(v, rows)
	case intent.ProductAnalysis:
		return c.product(v, rows)
	case intent.RegionalAnalysis:
		return c.regional(v, rows)
	case intent.Comparison:
		return c.comparison(v, rows)
	case intent.General:
		return c.general(v, rows)
	default:
		return c.general(intent.General{}, rows)
	}
}

func (c *Composer) money(v float64) string { return FormatCurrency(c.Currency, v) }

func (c *Composer) revenue(in intent.RevenueAnalysis, rows resultset.Set) ResponseBundle {
	by := plan.EffectiveGroupBy(in)
	col := string(by)
	groupTitle := groupTitles[by]
	heading := fmt.Sprintf("Revenue Analysis (%s)", in.Timeframe.Label())
	if len(rows) == 0 {
		return empty(heading)
	}
	if by.IsTime() {
		rows = chronological(rows, col)
	}

	total := rows.Sum("revenue")
	var n narrative
	n.heading(heading)
	n.para("Total revenue was **%s** from **%s** units across %d %s.",
		c.money(total), FormatInt(rows.Sum("units")), len(rows), groupPlurals[by])

	if by.IsTime() {
		best := maxRow(rows, "revenue")
		n.bullet("Best %s: **%s** with %s (%s of total)",
			strings.ToLower(groupTitle), label(best, col), c.money(best.Float("revenue")), Share(best.Float("revenue"), total))
		if len(rows) >= 2 {
			first, last := rows[0], rows[len(rows)-1]
			n.bullet("%s", growthSentence("Revenue", first.Float("revenue"), last.Float("revenue"), label(first, col), label(last, col)))
		}
	} else {
		top := rows[0]
		n.bullet("Top %s: **%s** with %s (%s of total)",
			strings.ToLower(groupTitle), label(top, col), c.money(top.Float("revenue")), Share(top.Float("revenue"), total))
		if len(rows) > 1 {
			bottom := rows[len(rows)-1]
			n.bullet("Lowest %s: **%s** with %s", strings.ToLower(groupTitle), label(bottom, col), c.money(bottom.Float("revenue")))
		}
	}

	labels := labelsOf(rows, col)
	chart := singleSeries(SelectChart(by, len(rows)), labels, "Revenue", valuesOf(rows, "revenue"))
	table := &TablePayload{Columns: []string{groupTitle, "Revenue", "Units", "Share"}}
	for i, r := range rows {
		table.Rows = append(table.Rows, map[string]string{
			groupTitle: labels[i],
			"Revenue":  c.money(r.Float("revenue")),
			"Units":    FormatInt(r.Float("units")),
			"Share":    Share(r.Float("revenue"), total),
		})
	}
	return n.bundle("Revenue by "+groupTitle, chart, table)
}

func (c *Composer) customer(in intent.CustomerAnalysis, rows resultset.Set) ResponseBundle {
	m := plan.EffectiveMetric(in)
	col := plan.MetricColumn(m)
	heading := fmt.Sprintf("Top %d Customers by %s", len(rows), metricTitles[m])
	if len(rows) == 0 {
		return empty(fmt.Sprintf("Top Customers by %s", metricTitles[m]))
	}

	total := rows.Sum(col)
	top := rows[0]
	var n narrative
	n.heading(heading)
	n.para("**%s** (%s) leads with %s of %s, %s of the listed total.",
		label(top, "customer_name"), label(top, "region"), metricPhrases[m], c.formatMetric(m, top.Float(col)), Share(top.Float(col), total))
	if top.Float("order_count") > 0 {
		n.bullet("Average order value: %s across %s orders",
			c.money(top.Float("avg_order_value")), FormatInt(top.Float("order_count")))
	}
	if !top.IsNull("last_purchase") {
		n.bullet("Last purchase: %s", top.String("last_purchase"))
	}
	n.bullet("Combined %s of the listed customers: %s over %s orders",
		metricPhrases[m], c.formatMetric(m, total), FormatInt(rows.Sum("order_count")))

	labels := labelsOf(rows, "customer_name")
	chart := singleSeries(SelectChart(intent.GroupByNone, len(rows)), labels, metricTitles[m], valuesOf(rows, col))
	table := &TablePayload{Columns: columns("Customer", "Region", metricTitles[m], "Orders", "Avg Order Value", "Last Purchase")}
	for i, r := range rows {
		table.Rows = append(table.Rows, map[string]string{
			"Customer":        labels[i],
			"Region":          label(r, "region"),
			metricTitles[m]:   c.formatMetric(m, r.Float(col)),
			"Orders":          FormatInt(r.Float("order_count")),
			"Avg Order Value": c.money(r.Float("avg_order_value")),
			"Last Purchase":   r.String("last_purchase"),
		})
	}
	return n.bundle("Customers by "+metricTitles[m], chart, table)
}

func (c *Composer) product(in intent.ProductAnalysis, rows resultset.Set) ResponseBundle {
	m := plan.EffectiveMetric(in)
	col := plan.MetricColumn(m)
	if len(rows) == 0 {
		return empty(fmt.Sprintf("Top Products by %s", metricTitles[m]))
	}

	total := rows.Sum(col)
	top := rows[0]
	var n narrative
	n.heading(fmt.Sprintf("Top %d Products by %s", len(rows), metricTitles[m]))
	n.para("**%s** (%s) leads with %s of %s, %s of the listed total.",
		label(top, "product_name"), label(top, "category"), metricPhrases[m], c.formatMetric(m, top.Float(col)), Share(top.Float(col), total))
	n.bullet("Units sold: %s in %s orders at an average price of %s",
		FormatInt(top.Float("units_sold")), FormatInt(top.Float("order_count")), c.money(top.Float("avg_price")))
	if len(rows) > 1 {
		runnerUp := rows[1]
		n.bullet("Runner-up: **%s** with %s", label(runnerUp, "product_name"), c.formatMetric(m, runnerUp.Float(col)))
	}
	n.bullet("Combined %s of the listed products: %s", metricPhrases[m], c.formatMetric(m, total))

	labels := labelsOf(rows, "product_name")
	chart := singleSeries(SelectChart(intent.GroupByNone, len(rows)), labels, metricTitles[m], valuesOf(rows, col))
	table := &TablePayload{Columns: columns("Product", "Category", metricTitles[m], "Units Sold", "Orders", "Avg Price")}
	for i, r := range rows {
		table.Rows = append(table.Rows, map[string]string{
			"Product":       labels[i],
			"Category":      label(r, "category"),
			metricTitles[m]: c.formatMetric(m, r.Float(col)),
			"Units Sold":    FormatInt(r.Float("units_sold")),
			"Orders":        FormatInt(r.Float("order_count")),
			"Avg Price":     c.money(r.Float("avg_price")),
		})
	}
	return n.bundle("Products by "+metricTitles[m], chart, table)
}

func (c *Composer) regional(in intent.RegionalAnalysis, rows resultset.Set) ResponseBundle {
	m := plan.EffectiveMetric(in)
	col := plan.MetricColumn(m)
	heading := "Regional Performance by " + metricTitles[m]
	if len(rows) == 0 {
		return empty(heading)
	}

	// Shares of an average are meaningless.
	additive := m != intent.Satisfaction
	total := rows.Sum(col)
	top := rows[0]

	var n narrative
	n.heading(heading)
	if additive {
		n.para("**%s** leads with %s of %s (%s of the total across %d regions).",
			label(top, "region"), metricPhrases[m], c.formatMetric(m, top.Float(col)), Share(top.Float(col), total), len(rows))
	} else {
		n.para("**%s** leads with %s of %s across %d regions.",
			label(top, "region"), metricPhrases[m], c.formatMetric(m, top.Float(col)), len(rows))
	}
	for _, r := range rows {
		perCustomer := "n/a"
		if customers := r.Float("customer_count"); customers > 0 && additive {
			perCustomer = c.formatMetric(m, ratio(r.Float(col), customers))
		}
		n.bullet("**%s**: %s, %s customers, %s orders, %s per customer",
			label(r, "region"), c.formatMetric(m, r.Float(col)), FormatInt(r.Float("customer_count")),
			FormatInt(r.Float("order_count")), perCustomer)
	}

	labels := labelsOf(rows, "region")
	chart := singleSeries(ChartPie, labels, metricTitles[m], valuesOf(rows, col))
	table := &TablePayload{Columns: columns("Region", metricTitles[m], "Share", "Customers", "Orders", "Units", "Avg Order Value")}
	for i, r := range rows {
		share := "n/a"
		if additive {
			share = Share(r.Float(col), total)
		}
		table.Rows = append(table.Rows, map[string]string{
			"Region":          labels[i],
			metricTitles[m]:   c.formatMetric(m, r.Float(col)),
			"Share":           share,
			"Customers":       FormatInt(r.Float("customer_count")),
			"Orders":          FormatInt(r.Float("order_count")),
			"Units":           FormatInt(r.Float("total_units")),
			"Avg Order Value": c.money(r.Float("avg_order_value")),
		})
	}
	return n.bundle("Regional "+metricTitles[m], chart, table)
}

type entitySeries struct {
	name   string
	months []string
	values []float64
}

func (s entitySeries) total(m intent.Metric) float64 {
	var sum float64
	for _, v := range s.values {
		sum += v
	}
	if m == intent.Satisfaction {
		return ratio(sum, float64(len(s.values)))
	}
	return sum
}

func (c *Composer) comparison(in intent.Comparison, rows resultset.Set) ResponseBundle {
	m := plan.EffectiveMetric(in)
	col := plan.MetricColumn(m)
	compared, excluded := splitComparisonEntities(in.Entities)
	heading := "Comparison: " + strings.Join(compared, " vs ")
	if len(rows) == 0 {
		return empty(heading)
	}

	var series []*entitySeries
	byName := map[string]*entitySeries{}
	monthSet := map[string]bool{}
	for _, r := range rows {
		name := label(r, "entity")
		s, ok := byName[name]
		if !ok {
			s = &entitySeries{name: name}
			byName[name] = s
			series = append(series, s)
		}
		month := label(r, "month")
		s.months = append(s.months, month)
		s.values = append(s.values, r.Float(col))
		monthSet[month] = true
	}
	months := make([]string, 0, len(monthSet))
	for mo := range monthSet {
		months = append(months, mo)
	}
	sort.Strings(months)

	leader := series[0]
	for _, s := range series[1:] {
		if s.total(m) > leader.total(m) {
			leader = s
		}
	}

	var n narrative
	n.heading(heading)
	n.para("**%s** leads the comparison with %s of %s from %s to %s.",
		leader.name, metricPhrases[m], c.formatMetric(m, leader.total(m)), months[0], months[len(months)-1])
	for _, s := range series {
		if len(s.values) < 2 {
			n.bullet("**%s**: %s in %s only", s.name, c.formatMetric(m, s.total(m)), s.months[0])
			continue
		}
		n.bullet("**%s**: %s; %s", s.name, c.formatMetric(m, s.total(m)),
			growthSentence(metricTitles[m], s.values[0], s.values[len(s.values)-1], s.months[0], s.months[len(s.months)-1]))
	}
	if len(excluded) > 0 {
		n.para("Not compared: %s. Categories and regions cannot be mixed, so only categories were compared.", strings.Join(excluded, ", "))
	}
	var missing []string
	for _, e := range compared {
		if _, ok := byName[e]; !ok {
			missing = append(missing, e)
		}
	}
	if len(missing) > 0 {
		n.para("No sales were recorded for: %s.", strings.Join(missing, ", "))
	}

	chart := &ChartPayload{ChartType: ChartLine, Labels: months}
	table := &TablePayload{Columns: []string{"Entity", metricTitles[m], "Months", "First Month", "Latest Month", "Change"}}
	for i, s := range series {
		aligned := make([]float64, len(months))
		for j, mo := range s.months {
			aligned[sort.SearchStrings(months, mo)] = round2(s.values[j])
		}
		chart.Series = append(chart.Series, Series{Label: s.name, Values: aligned, Style: SeriesStyle{Color: colorAt(i)}})

		change := "n/a"
		if len(s.values) >= 2 {
			change = Growth(s.values[0], s.values[len(s.values)-1])
		}
		table.Rows = append(table.Rows, map[string]string{
			"Entity":        s.name,
			metricTitles[m]: c.formatMetric(m, s.total(m)),
			"Months":        FormatInt(float64(len(s.values))),
			"First Month":   s.months[0],
			"Latest Month":  s.months[len(s.months)-1],
			"Change":        change,
		})
	}
	return n.bundle(metricTitles[m]+" Over Time", chart, table)
}

// splitComparisonEntities separates the entities on the dimension the plan
// compares from those it leaves out.
func splitComparisonEntities(entities []string) (compared, excluded []string) {
	byRegion := plan.ComparisonDimension(entities) == intent.GroupByRegion
	for _, e := range entities {
		if intent.IsRegion(e) == byRegion {
			compared = append(compared, e)
		} else {
			excluded = append(excluded, e)
		}
	}
	return compared, excluded
}

func (c *Composer) general(in intent.General, rows resultset.Set) ResponseBundle {
	const heading = "Sales Overview"
	if len(rows) == 0 {
		return empty(heading)
	}
	rows = chronological(rows, "month")

	revenue := rows.Sum("revenue")
	orders := rows.Sum("order_count")
	var n narrative
	n.heading(heading)
	n.para("Across %d months the business earned **%s** from **%s** orders and **%s** units.",
		len(rows), c.money(revenue), FormatInt(orders), FormatInt(rows.Sum("units_sold")))
	if orders > 0 {
		n.bullet("Average order value: %s", c.money(ratio(revenue, orders)))
	}
	best := maxRow(rows, "revenue")
	n.bullet("Best month: **%s** with %s", label(best, "month"), c.money(best.Float("revenue")))
	busiest := maxRow(rows, "customer_count")
	n.bullet("Most active customers: %s in %s", FormatInt(busiest.Float("customer_count")), label(busiest, "month"))
	if len(rows) >= 2 {
		prev, last := rows[len(rows)-2], rows[len(rows)-1]
		n.bullet("%s", growthSentence("Revenue", prev.Float("revenue"), last.Float("revenue"), label(prev, "month"), label(last, "month")))
	}
	if len(in.Keywords) > 0 {
		n.para("_Showing the overall picture; keywords noted: %s._", strings.Join(in.Keywords, ", "))
	}

	labels := labelsOf(rows, "month")
	chart := singleSeries(SelectChart(intent.GroupByMonth, len(rows)), labels, "Revenue", valuesOf(rows, "revenue"))
	table := &TablePayload{Columns: []string{"Month", "Revenue", "Orders", "Customers", "Units", "Avg Order Value"}}
	for i, r := range rows {
		table.Rows = append(table.Rows, map[string]string{
			"Month":           labels[i],
			"Revenue":         c.money(r.Float("revenue")),
			"Orders":          FormatInt(r.Float("order_count")),
			"Customers":       FormatInt(r.Float("customer_count")),
			"Units":           FormatInt(r.Float("units_sold")),
			"Avg Order Value": c.money(r.Float("avg_order_value")),
		})
	}
	return n.bundle("Monthly Revenue", chart, table)
}

func growthSentence(subject string, first, last float64, from, to string) string {
	if first == 0 {
		return fmt.Sprintf("%s growth from %s: %s", subject, from, Growth(first, last))
	}
	return fmt.Sprintf("%s %s from %s to %s", subject, Growth(first, last), from, to)
}

func empty(heading string) ResponseBundle {
	var n narrative
	n.heading(heading)
	n.para("No data was found for this question. Try a different timeframe or broader terms.")
	return ResponseBundle{Narrative: n.String(), Visualizations: []Visualization{}}
}

func label(r resultset.Row, col string) string {
	if r.IsNull(col) {
		return "Unknown"
	}
	return r.String(col)
}

func labelsOf(rows resultset.Set, col string) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = label(r, col)
	}
	return out
}

func valuesOf(rows resultset.Set, col string) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = round2(r.Float(col))
	}
	return out
}

// maxRow returns the first row with the largest value in col.
func maxRow(rows resultset.Set, col string) resultset.Row {
	best := rows[0]
	for _, r := range rows[1:] {
		if r.Float(col) > best.Float(col) {
			best = r
		}
	}
	return best
}

// chronological returns a copy of rows sorted by the period label in col.
// Month, quarter and year labels all sort correctly as strings.
func chronological(rows resultset.Set, col string) resultset.Set {
	out := make(resultset.Set, len(rows))
	copy(out, rows)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].String(col) < out[j].String(col)
	})
	return out
}

// columns drops repeated names, so a metric whose title matches a fixed
// column appears once.
func columns(names ...string) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		if !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	return out
}

func singleSeries(kind ChartType, labels []string, name string, values []float64) *ChartPayload {
	style := SeriesStyle{Color: colorAt(0)}
	if kind == ChartPie {
		style = SeriesStyle{Colors: make([]string, len(labels))}
		for i := range labels {
			style.Colors[i] = colorAt(i)
		}
	}
	return &ChartPayload{
		ChartType: kind,
		Labels:    labels,
		Series:    []Series{{Label: name, Values: values, Style: style}},
	}
}

// narrative accumulates markdown for one response.
type narrative struct {
	sb strings.Builder
}

func (n *narrative) heading(s string) {
	fmt.Fprintf(&n.sb, "## %s\n\n", s)
}

func (n *narrative) para(format string, args ...any) {
	n.endList()
	fmt.Fprintf(&n.sb, format, args...)
	n.sb.WriteString("\n\n")
}

func (n *narrative) bullet(format string, args ...any) {
	n.sb.WriteString("- ")
	fmt.Fprintf(&n.sb, format, args...)
	n.sb.WriteString("\n")
}

// endList terminates a bullet list with a blank line.
func (n *narrative) endList() {
	s := n.sb.String()
	if strings.HasSuffix(s, "\n") && !strings.HasSuffix(s, "\n\n") {
		n.sb.WriteString("\n")
	}
}

func (n *narrative) String() string {
	n.endList()
	return strings.TrimRight(n.sb.String(), "\n") + "\n"
}

// bundle appends the chart and table as fenced blocks and returns them as
// structured visualizations too.
func (n *narrative) bundle(title string, chart *ChartPayload, table *TablePayload) ResponseBundle {
	vis := []Visualization{
		{Type: TypeChart, Title: title, Payload: chart},
		{Type: TypeTable, Title: title, Payload: table},
	}
	n.endList()
	for _, v := range vis {
		n.block(v)
	}
	return ResponseBundle{Narrative: n.String(), Visualizations: vis}
}

func (n *narrative) block(v Visualization) {
	var body any
	switch p := v.Payload.(type) {
	case *ChartPayload:
		body = struct {
			Title string `json:"title"`
			*ChartPayload
		}{v.Title, p}
	case *TablePayload:
		body = struct {
			Title string `json:"title"`
			*TablePayload
		}{v.Title, p}
	}
	data, err := json.Marshal(body)
	if err != nil {
		return
	}
	fmt.Fprintf(&n.sb, "```%s\n%s\n```\n\n", v.Type, data)
}
