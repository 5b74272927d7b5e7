package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// InsertProducts writes products in one transaction.
func (s *Store) InsertProducts(ctx context.Context, products []Product) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, p := range products {
			if _, err := tx.ExecContext(ctx, s.rebind(`
				INSERT INTO products (id, name, category, price, cost) VALUES (?, ?, ?, ?, ?)`),
				p.ID, p.Name, p.Category, p.Price, p.Cost,
			); err != nil {
				return fmt.Errorf("inserting product %d: %w", p.ID, err)
			}
		}
		return nil
	})
}

// InsertCustomers writes customers in one transaction.
func (s *Store) InsertCustomers(ctx context.Context, customers []Customer) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, c := range customers {
			if _, err := tx.ExecContext(ctx, s.rebind(`
				INSERT INTO customers (id, name, email, region, country, state, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`),
				c.ID, c.Name, c.Email, c.Region, c.Country, c.State, c.CreatedAt,
			); err != nil {
				return fmt.Errorf("inserting customer %d: %w", c.ID, err)
			}
		}
		return nil
	})
}

// InsertOrders writes orders together with their line items.
func (s *Store) InsertOrders(ctx context.Context, orders []Order) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, o := range orders {
			status := o.Status
			if status == "" {
				status = "completed"
			}
			if _, err := tx.ExecContext(ctx, s.rebind(`
				INSERT INTO orders (id, customer_id, order_date, status, rating) VALUES (?, ?, ?, ?, ?)`),
				o.ID, o.CustomerID, o.OrderDate, status, o.Rating,
			); err != nil {
				return fmt.Errorf("inserting order %d: %w", o.ID, err)
			}
			for _, it := range o.Items {
				if _, err := tx.ExecContext(ctx, s.rebind(`
					INSERT INTO order_items (id, order_id, product_id, quantity, unit_price) VALUES (?, ?, ?, ?, ?)`),
					it.ID, o.ID, it.ProductID, it.Quantity, it.UnitPrice,
				); err != nil {
					return fmt.Errorf("inserting item %d of order %d: %w", it.ID, o.ID, err)
				}
			}
		}
		return nil
	})
}

// SalesCounts reports how many rows each sales table holds.
func (s *Store) SalesCounts(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64, 4)
	for _, table := range []string{"products", "customers", "orders", "order_items"} {
		var n int64
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			return nil, fmt.Errorf("counting %s: %w", table, err)
		}
		counts[table] = n
	}
	return counts, nil
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
