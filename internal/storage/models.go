package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

type Product struct {
	ID       int64
	Name     string
	Category string
	Price    float64
	Cost     float64
}

type Customer struct {
	ID        int64
	Name      string
	Email     string
	Region    string
	Country   string
	State     string
	CreatedAt string // YYYY-MM-DD
}

type Order struct {
	ID         int64
	CustomerID int64
	OrderDate  string // YYYY-MM-DD
	Status     string // "completed" when empty
	Rating     *float64
	Items      []OrderItem
}

type OrderItem struct {
	ID        int64
	ProductID int64
	Quantity  int
	UnitPrice float64
}

// Ask is one answered question in the audit log.
type Ask struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	Question   string    `json:"question"`
	Intent     string    `json:"intent"`
	Plan       string    `json:"plan,omitempty"`
	Outcome    string    `json:"outcome"` // "ok", "plan_error", "execution_error"
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms"`
}
