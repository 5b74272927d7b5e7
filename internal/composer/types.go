package composer

// VisualizationType says whether a visualization is a chart or a table.
type VisualizationType string

const (
	TypeChart VisualizationType = "chart"
	TypeTable VisualizationType = "table"
)

// ChartType is the kind of chart a ChartPayload renders as.
type ChartType string

const (
	ChartBar  ChartType = "bar"
	ChartLine ChartType = "line"
	ChartPie  ChartType = "pie"
	ChartMap  ChartType = "map"
)

// Payload is either a *ChartPayload or a *TablePayload.
type Payload interface {
	isPayload()
}

// Visualization is one chart or table attached to a response.
type Visualization struct {
	Type    VisualizationType `json:"type"`
	Title   string            `json:"title"`
	Payload Payload           `json:"payload"`
}

// SeriesStyle carries presentation hints for a series. Pie charts get one
// color per label in Colors.
type SeriesStyle struct {
	Color  string   `json:"color,omitempty"`
	Colors []string `json:"colors,omitempty"`
}

type Series struct {
	Label  string      `json:"label"`
	Values []float64   `json:"values"`
	Style  SeriesStyle `json:"style"`
}

type ChartPayload struct {
	ChartType ChartType `json:"chart_type"`
	Labels    []string  `json:"labels"`
	Series    []Series  `json:"series"`
}

// TablePayload lists rows of pre-formatted cells keyed by column name.
type TablePayload struct {
	Columns []string            `json:"columns"`
	Rows    []map[string]string `json:"rows"`
}

func (*ChartPayload) isPayload() {}
func (*TablePayload) isPayload() {}

// ResponseBundle is the composed answer to one question. Narrative is
// markdown and embeds every visualization as a fenced block.
type ResponseBundle struct {
	Narrative      string          `json:"narrative"`
	Visualizations []Visualization `json:"visualizations"`
}

// Chart returns the first chart payload in the bundle, or nil.
func (b ResponseBundle) Chart() *ChartPayload {
	for _, v := range b.Visualizations {
		if c, ok := v.Payload.(*ChartPayload); ok {
			return c
		}
	}
	return nil
}

// Table returns the first table payload in the bundle, or nil.
func (b ResponseBundle) Table() *TablePayload {
	for _, v := range b.Visualizations {
		if t, ok := v.Payload.(*TablePayload); ok {
			return t
		}
	}
	return nil
}
