package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kalambet/salesiq/internal/composer"
	"github.com/kalambet/salesiq/internal/executor"
	"github.com/kalambet/salesiq/internal/intent"
	"github.com/kalambet/salesiq/internal/plan"
	"github.com/kalambet/salesiq/internal/resultset"
	"github.com/kalambet/salesiq/internal/storage"
)

// --- fixtures ---

func seededStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	if err := s.InsertProducts(ctx, []storage.Product{
		{ID: 1, Name: "Laptop", Category: "Electronics", Price: 1000, Cost: 700},
		{ID: 2, Name: "Desk", Category: "Furniture", Price: 300, Cost: 150},
		{ID: 3, Name: "T-Shirt", Category: "Clothing", Price: 20, Cost: 5},
		{ID: 4, Name: "Novel", Category: "Books", Price: 12, Cost: 4},
	}); err != nil {
		t.Fatalf("InsertProducts: %v", err)
	}
	if err := s.InsertCustomers(ctx, []storage.Customer{
		{ID: 1, Name: "Acme Corp", Region: "North", Country: "US", State: "NY", CreatedAt: "2022-06-01"},
		{ID: 2, Name: "Globex", Region: "South", Country: "US", State: "TX", CreatedAt: "2022-08-01"},
	}); err != nil {
		t.Fatalf("InsertCustomers: %v", err)
	}
	five, four := 5.0, 4.0
	if err := s.InsertOrders(ctx, []storage.Order{
		{ID: 1, CustomerID: 1, OrderDate: "2023-01-15", Rating: &five, Items: []storage.OrderItem{
			{ID: 1, ProductID: 1, Quantity: 2, UnitPrice: 1000},
			{ID: 2, ProductID: 3, Quantity: 3, UnitPrice: 20},
		}},
		{ID: 2, CustomerID: 2, OrderDate: "2023-02-10", Rating: &four, Items: []storage.OrderItem{
			{ID: 3, ProductID: 2, Quantity: 1, UnitPrice: 300},
			{ID: 4, ProductID: 4, Quantity: 5, UnitPrice: 12},
		}},
		{ID: 3, CustomerID: 1, OrderDate: "2023-03-05", Items: []storage.OrderItem{
			{ID: 5, ProductID: 1, Quantity: 1, UnitPrice: 1100},
			{ID: 6, ProductID: 2, Quantity: 2, UnitPrice: 280},
		}},
	}); err != nil {
		t.Fatalf("InsertOrders: %v", err)
	}
	return s
}

func newStoreAnalyzer(t *testing.T) (*Analyzer, *storage.Store) {
	t.Helper()
	s := seededStore(t)
	gen := plan.NewGenerator(plan.DialectFor(s.Driver()))
	exec := executor.NewSQLExecutor(s.DB(), 5*time.Second)
	return NewAnalyzer(gen, exec, composer.New("$"), s, 2), s
}

// --- mocks ---

type mockExecutor struct {
	rows    resultset.Set
	err     error
	delayFn func(query string) time.Duration
	calls   atomic.Int32
}

func (m *mockExecutor) Execute(ctx context.Context, query string) (resultset.Set, error) {
	m.calls.Add(1)
	if m.delayFn != nil {
		select {
		case <-time.After(m.delayFn(query)):
		case <-ctx.Done():
			return nil, &executor.ExecutionError{Message: "query timed out", Err: ctx.Err()}
		}
	}
	return m.rows, m.err
}

type mockRecorder struct {
	mu   sync.Mutex
	asks []storage.Ask
	err  error
}

func (m *mockRecorder) SaveAsk(ctx context.Context, a storage.Ask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.asks = append(m.asks, a)
	return m.err
}

// brokenDialect cannot express any timeframe, so revenue plans fail.
type brokenDialect struct{ plan.SQLite }

func (brokenDialect) TimeframeFilter(intent.Timeframe, string) (string, bool) { return "", false }

// --- tests ---

func TestAnswer_TopProductsByProfit(t *testing.T) {
	a, _ := newStoreAnalyzer(t)

	ans, err := a.Answer(context.Background(), Query{Text: "show me top 5 products by profit"})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}

	want := intent.ProductAnalysis{Metric: intent.Profit, Limit: 5}
	if ans.Intent != want {
		t.Errorf("intent = %#v, want %#v", ans.Intent, want)
	}
	if !strings.Contains(ans.Plan, "ORDER BY total_profit DESC") || !strings.Contains(ans.Plan, "LIMIT 5") {
		t.Errorf("plan:\n%s", ans.Plan)
	}
	if !strings.Contains(ans.Response.Narrative, "**Laptop** (Electronics) leads with total profit of $1,000.00") {
		t.Errorf("narrative:\n%s", ans.Response.Narrative)
	}
	table := ans.Response.Table()
	if table == nil || len(table.Rows) != 4 {
		t.Fatalf("table = %+v", table)
	}
	if got := table.Rows[1]["Product"]; got != "Desk" {
		t.Errorf("second product = %q, want Desk", got)
	}
}

func TestAnswer_RevenueSeries(t *testing.T) {
	a, _ := newStoreAnalyzer(t)

	ans, err := a.Answer(context.Background(), Query{Text: "what is our revenue"})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if ans.IntentKind != intent.KindRevenue {
		t.Fatalf("intent kind = %s", ans.IntentKind)
	}
	if !strings.Contains(ans.Response.Narrative, "Total revenue was **$4,080.00**") {
		t.Errorf("narrative:\n%s", ans.Response.Narrative)
	}
	chart := ans.Response.Chart()
	if chart.ChartType != composer.ChartLine {
		t.Errorf("chart type = %s, want line", chart.ChartType)
	}
	if got := strings.Join(chart.Labels, ","); got != "2023-01,2023-02,2023-03" {
		t.Errorf("labels = %s", got)
	}
}

func TestAnswer_ComparisonGrowth(t *testing.T) {
	a, _ := newStoreAnalyzer(t)

	ans, err := a.Answer(context.Background(), Query{Text: "compare electronics vs furniture"})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	for _, want := range []string{
		"Revenue decreased by 45.0% from 2023-01 to 2023-03",
		"Revenue increased by 86.7% from 2023-02 to 2023-03",
	} {
		if !strings.Contains(ans.Response.Narrative, want) {
			t.Errorf("narrative missing %q:\n%s", want, ans.Response.Narrative)
		}
	}
	if got := ans.Response.Chart().ChartType; got != composer.ChartLine {
		t.Errorf("chart type = %s, want line", got)
	}
}

func TestAnswer_RegionalIsPie(t *testing.T) {
	a, _ := newStoreAnalyzer(t)

	ans, err := a.Answer(context.Background(), Query{Text: "which region performs best"})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if ans.IntentKind != intent.KindRegional {
		t.Fatalf("intent kind = %s", ans.IntentKind)
	}
	chart := ans.Response.Chart()
	if chart.ChartType != composer.ChartPie || len(chart.Labels) != 2 || chart.Labels[0] != "North" {
		t.Errorf("chart = %+v", chart)
	}
}

func TestAnswer_GeneralOverview(t *testing.T) {
	a, _ := newStoreAnalyzer(t)

	ans, err := a.Answer(context.Background(), Query{Text: "give me an overview of the business"})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if ans.IntentKind != intent.KindGeneral {
		t.Fatalf("intent kind = %s", ans.IntentKind)
	}
	if !strings.Contains(ans.Response.Narrative, "Across 3 months the business earned **$4,080.00** from **3** orders") {
		t.Errorf("narrative:\n%s", ans.Response.Narrative)
	}
}

func TestAnswer_RecordsAsk(t *testing.T) {
	a, s := newStoreAnalyzer(t)
	ctx := context.Background()

	ans, err := a.Answer(ctx, Query{Text: "top customers"})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}

	got, err := s.GetAsk(ctx, ans.ID)
	if err != nil {
		t.Fatalf("GetAsk: %v", err)
	}
	if got.Question != "top customers" || got.Intent != "customer_analysis" || got.Outcome != "ok" {
		t.Errorf("recorded ask = %+v", got)
	}
	if got.Plan != ans.Plan {
		t.Errorf("recorded plan differs from answer plan")
	}
}

func TestAnswer_HistoryIsIgnored(t *testing.T) {
	exec := &mockExecutor{rows: resultset.Set{{"region": "West", "total_revenue": 10.0}}}
	a := NewAnalyzer(plan.NewGenerator(nil), exec, composer.New("$"), nil, 1)

	plain, err := a.Answer(context.Background(), Query{Text: "revenue by region"})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	withHistory, err := a.Answer(context.Background(), Query{
		Text:    "revenue by region",
		History: []string{"compare electronics vs clothing", "top customers"},
	})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if plain.Plan != withHistory.Plan || plain.Response.Narrative != withHistory.Response.Narrative {
		t.Error("history changed the answer")
	}
}

func TestAnswer_ExecutionFailure(t *testing.T) {
	exec := &mockExecutor{err: &executor.ExecutionError{Message: "no such table: orders", Err: errors.New("sqlite error")}}
	rec := &mockRecorder{}
	a := NewAnalyzer(plan.NewGenerator(nil), exec, composer.New("$"), rec, 1)

	ans, err := a.Answer(context.Background(), Query{Text: "top customers"})
	var f *Failure
	if !errors.As(err, &f) {
		t.Fatalf("error = %v, want *Failure", err)
	}
	if f.Kind != FailureExecution {
		t.Errorf("kind = %s, want %s", f.Kind, FailureExecution)
	}
	if f.Message != "An error occurred while analyzing the data: no such table: orders" {
		t.Errorf("message = %q", f.Message)
	}
	if ans.Response.Narrative != "" || len(ans.Response.Visualizations) != 0 {
		t.Error("failed answer must not carry a partial response")
	}
	if ans.Plan == "" {
		t.Error("plan should be kept on execution failure")
	}
	if len(rec.asks) != 1 || rec.asks[0].Outcome != "execution_error" || rec.asks[0].Error != "no such table: orders" {
		t.Errorf("recorded asks = %+v", rec.asks)
	}
}

func TestAnswer_PlanFailure(t *testing.T) {
	exec := &mockExecutor{}
	a := NewAnalyzer(plan.NewGenerator(brokenDialect{}), exec, composer.New("$"), nil, 1)

	_, err := a.Answer(context.Background(), Query{Text: "revenue last quarter"})
	var f *Failure
	if !errors.As(err, &f) {
		t.Fatalf("error = %v, want *Failure", err)
	}
	if f.Kind != FailurePlan || f.Message != "Sorry, I could not understand the question." {
		t.Errorf("failure = %+v", f)
	}
	var genErr *plan.GenerationError
	if !errors.As(err, &genErr) {
		t.Error("failure should wrap *plan.GenerationError")
	}
	if exec.calls.Load() != 0 {
		t.Error("executor must not run after a plan failure")
	}
}

func TestAnswer_RecorderErrorDoesNotFail(t *testing.T) {
	exec := &mockExecutor{rows: resultset.Set{}}
	a := NewAnalyzer(plan.NewGenerator(nil), exec, composer.New("$"), &mockRecorder{err: errors.New("disk full")}, 1)

	if _, err := a.Answer(context.Background(), Query{Text: "top customers"}); err != nil {
		t.Fatalf("Answer: %v", err)
	}
}

func TestExplain(t *testing.T) {
	a := NewAnalyzer(plan.NewGenerator(plan.Postgres{}), &mockExecutor{}, composer.New("$"), nil, 1)

	ex, err := a.Explain("compare north vs south satisfaction")
	if err != nil {
		t.Fatalf("Explain: %v", err)
	}
	if ex.IntentKind != intent.KindComparison || ex.Dialect != "postgres" {
		t.Errorf("explanation = %+v", ex)
	}
	if !strings.Contains(ex.Plan, "c.region IN ('North', 'South')") || !strings.Contains(ex.Plan, "AVG(o.rating)") {
		t.Errorf("plan:\n%s", ex.Plan)
	}

	_, err = NewAnalyzer(plan.NewGenerator(brokenDialect{}), &mockExecutor{}, composer.New("$"), nil, 1).Explain("revenue")
	var f *Failure
	if !errors.As(err, &f) || f.Kind != FailurePlan {
		t.Errorf("Explain with broken dialect error = %v", err)
	}
}

func TestAnswerBatch_PreservesOrder(t *testing.T) {
	exec := &mockExecutor{
		rows: resultset.Set{},
		delayFn: func(query string) time.Duration {
			if strings.Contains(query, "customer_name") {
				return 30 * time.Millisecond
			}
			return time.Millisecond
		},
	}
	a := NewAnalyzer(plan.NewGenerator(nil), exec, composer.New("$"), nil, 3)

	qs := []Query{
		{Text: "top customers"},
		{Text: "revenue by month"},
		{Text: "best products"},
		{Text: "compare electronics vs books"},
	}
	answers, err := a.AnswerBatch(context.Background(), qs)
	if err != nil {
		t.Fatalf("AnswerBatch: %v", err)
	}
	wantKinds := []intent.Kind{intent.KindCustomer, intent.KindRevenue, intent.KindProduct, intent.KindComparison}
	for i, ans := range answers {
		if ans.Question != qs[i].Text || ans.IntentKind != wantKinds[i] {
			t.Errorf("answers[%d] = %q/%s, want %q/%s", i, ans.Question, ans.IntentKind, qs[i].Text, wantKinds[i])
		}
	}
	if exec.calls.Load() != 4 {
		t.Errorf("executor calls = %d, want 4", exec.calls.Load())
	}
}

func TestAnswerBatch_CancelledContext(t *testing.T) {
	exec := &mockExecutor{rows: resultset.Set{}}
	a := NewAnalyzer(plan.NewGenerator(nil), exec, composer.New("$"), nil, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	answers, err := a.AnswerBatch(ctx, []Query{{Text: "top customers"}, {Text: "revenue"}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if len(answers) != 2 {
		t.Errorf("answers length = %d, want 2", len(answers))
	}
	if exec.calls.Load() != 0 {
		t.Errorf("executor calls = %d, want 0", exec.calls.Load())
	}
}
