package api

import (
	"context"
	"testing"
	"time"

	"github.com/kalambet/salesiq/internal/composer"
	"github.com/kalambet/salesiq/internal/executor"
	"github.com/kalambet/salesiq/internal/pipeline"
	"github.com/kalambet/salesiq/internal/plan"
	"github.com/kalambet/salesiq/internal/resultset"
	"github.com/kalambet/salesiq/internal/storage"
)

func seededStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	if err := s.InsertProducts(ctx, []storage.Product{
		{ID: 1, Name: "Laptop", Category: "Electronics", Price: 1000, Cost: 700},
		{ID: 2, Name: "Desk", Category: "Furniture", Price: 300, Cost: 150},
	}); err != nil {
		t.Fatalf("InsertProducts: %v", err)
	}
	if err := s.InsertCustomers(ctx, []storage.Customer{
		{ID: 1, Name: "Acme Corp", Region: "North", CreatedAt: "2022-06-01"},
		{ID: 2, Name: "Globex", Region: "South", CreatedAt: "2022-08-01"},
	}); err != nil {
		t.Fatalf("InsertCustomers: %v", err)
	}
	if err := s.InsertOrders(ctx, []storage.Order{
		{ID: 1, CustomerID: 1, OrderDate: "2023-01-15", Items: []storage.OrderItem{
			{ID: 1, ProductID: 1, Quantity: 2, UnitPrice: 1000},
		}},
		{ID: 2, CustomerID: 2, OrderDate: "2023-02-10", Items: []storage.OrderItem{
			{ID: 2, ProductID: 2, Quantity: 1, UnitPrice: 300},
		}},
	}); err != nil {
		t.Fatalf("InsertOrders: %v", err)
	}
	return s
}

func newTestAnalyzer(t *testing.T) (*pipeline.Analyzer, *storage.Store) {
	t.Helper()
	s := seededStore(t)
	gen := plan.NewGenerator(plan.DialectFor(s.Driver()))
	exec := executor.NewSQLExecutor(s.DB(), 5*time.Second)
	return pipeline.NewAnalyzer(gen, exec, composer.New("$"), s, 2), s
}

type failingExecutor struct{}

func (failingExecutor) Execute(context.Context, string) (resultset.Set, error) {
	return nil, &executor.ExecutionError{Message: "no such table: orders"}
}

func newFailingAnalyzer() *pipeline.Analyzer {
	return pipeline.NewAnalyzer(plan.NewGenerator(nil), failingExecutor{}, composer.New("$"), nil, 1)
}
