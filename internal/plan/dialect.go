package plan

import (
	"fmt"

	"github.com/kalambet/salesiq/internal/intent"
)

// Dialect supplies the date expressions that differ between SQL engines.
type Dialect interface {
	Name() string
	// Period returns an expression bucketing col by month, quarter or year.
	Period(g intent.GroupBy, col string) (string, bool)
	// TimeframeFilter returns a boolean expression restricting col to tf.
	// AllTime yields "".
	TimeframeFilter(tf intent.Timeframe, col string) (string, bool)
}

// DialectFor returns the dialect for a storage driver name. Unknown drivers
// get SQLite.
func DialectFor(driver string) Dialect {
	if driver == "postgres" {
		return Postgres{}
	}
	return SQLite{}
}

// SQLite works on ISO-8601 date strings via strftime/date.
type SQLite struct{}

func (SQLite) Name() string { return "sqlite" }

func (SQLite) Period(g intent.GroupBy, col string) (string, bool) {
	switch g {
	case intent.GroupByMonth:
		return fmt.Sprintf("strftime('%%Y-%%m', %s)", col), true
	case intent.GroupByQuarter:
		return sqliteQuarter(col), true
	case intent.GroupByYear:
		return fmt.Sprintf("strftime('%%Y', %s)", col), true
	}
	return "", false
}

// sqliteQuarter renders "YYYY-Qn" for a date argument list such as
// "o.order_date" or "'now', 'start of month', '-3 months'".
func sqliteQuarter(args string) string {
	return fmt.Sprintf("strftime('%%Y', %s) || '-Q' || ((CAST(strftime('%%m', %s) AS INTEGER) + 2) / 3)", args, args)
}

func (SQLite) TimeframeFilter(tf intent.Timeframe, col string) (string, bool) {
	switch tf {
	case intent.AllTime:
		return "", true
	case intent.LastYear:
		return fmt.Sprintf("strftime('%%Y', %s) = strftime('%%Y', 'now', '-1 year')", col), true
	case intent.ThisYear:
		return fmt.Sprintf("strftime('%%Y', %s) = strftime('%%Y', 'now')", col), true
	case intent.LastMonth:
		return fmt.Sprintf("strftime('%%Y-%%m', %s) = strftime('%%Y-%%m', 'now', 'start of month', '-1 month')", col), true
	case intent.ThisMonth:
		return fmt.Sprintf("strftime('%%Y-%%m', %s) = strftime('%%Y-%%m', 'now')", col), true
	case intent.LastQuarter:
		return sqliteQuarter(col) + " = " + sqliteQuarter("'now', 'start of month', '-3 months'"), true
	case intent.ThisQuarter:
		return sqliteQuarter(col) + " = " + sqliteQuarter("'now'"), true
	case intent.Last3Months:
		return fmt.Sprintf("%s >= date('now', '-3 months')", col), true
	case intent.Last6Months:
		return fmt.Sprintf("%s >= date('now', '-6 months')", col), true
	}
	return "", false
}

// Postgres works on DATE columns via date_trunc/to_char.
type Postgres struct{}

func (Postgres) Name() string { return "postgres" }

func (Postgres) Period(g intent.GroupBy, col string) (string, bool) {
	switch g {
	case intent.GroupByMonth:
		return fmt.Sprintf("to_char(%s, 'YYYY-MM')", col), true
	case intent.GroupByQuarter:
		return fmt.Sprintf(`to_char(%s, 'YYYY-"Q"Q')`, col), true
	case intent.GroupByYear:
		return fmt.Sprintf("to_char(%s, 'YYYY')", col), true
	}
	return "", false
}

func (Postgres) TimeframeFilter(tf intent.Timeframe, col string) (string, bool) {
	trunc := func(unit, offset string) string {
		now := "CURRENT_DATE"
		if offset != "" {
			now = fmt.Sprintf("CURRENT_DATE - INTERVAL '%s'", offset)
		}
		return fmt.Sprintf("date_trunc('%s', %s) = date_trunc('%s', %s)", unit, col, unit, now)
	}
	switch tf {
	case intent.AllTime:
		return "", true
	case intent.LastYear:
		return trunc("year", "1 year"), true
	case intent.ThisYear:
		return trunc("year", ""), true
	case intent.LastMonth:
		return trunc("month", "1 month"), true
	case intent.ThisMonth:
		return trunc("month", ""), true
	case intent.LastQuarter:
		return trunc("quarter", "3 months"), true
	case intent.ThisQuarter:
		return trunc("quarter", ""), true
	case intent.Last3Months:
		return fmt.Sprintf("%s >= CURRENT_DATE - INTERVAL '3 months'", col), true
	case intent.Last6Months:
		return fmt.Sprintf("%s >= CURRENT_DATE - INTERVAL '6 months'", col), true
	}
	return "", false
}
