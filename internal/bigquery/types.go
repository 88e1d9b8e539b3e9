package bigquery

import (
	"context"
	"math/big"

	"github.com/dvloznov/bookkeeper/internal/domain"
)

// TransactionExporter copies transactions to an analytics warehouse.
type TransactionExporter interface {
	// EnsureTable creates the destination table when it does not exist.
	EnsureTable(ctx context.Context) error

	// Export appends one row per transaction, tagged with a new export id.
	Export(ctx context.Context, txs []*domain.Transaction) error
}

// TotalsReporter reads aggregates back from the warehouse.
type TotalsReporter interface {
	// MonthlyTotals returns the income and expense per month of year, taken
	// from the most recent export.
	MonthlyTotals(ctx context.Context, year int) ([]MonthlyTotal, error)
}

// MonthlyTotal is one row of a MonthlyTotals report.
type MonthlyTotal struct {
	Month   int64    `bigquery:"month" json:"month"`
	Income  *big.Rat `bigquery:"income" json:"income"`
	Expense *big.Rat `bigquery:"expense" json:"expense"`
}
