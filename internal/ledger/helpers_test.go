package ledger

import (
	"testing"
	"time"

	"github.com/dvloznov/bookkeeper/internal/domain"
	"github.com/shopspring/decimal"
)

type txArgs struct {
	id       int64
	desc     string
	price    string
	category string
	added    time.Time
	paid     *time.Time
}

func makeTx(t *testing.T, s txArgs) *domain.Transaction {
	t.Helper()
	tx := domain.NewTransaction(s.id)
	must(t, tx.Set(domain.FieldDescription, s.desc))
	must(t, tx.Set(domain.FieldPrice, decimal.RequireFromString(s.price)))
	must(t, tx.Set(domain.FieldCategory, s.category))
	must(t, tx.Set(domain.FieldTransactor, domain.NewCategoryString("Winkel", "Delhaize")))
	must(t, tx.Set(domain.FieldDateAdded, s.added))
	must(t, tx.Set(domain.FieldPaymentMethod, domain.NewCategoryString("Bank", "Bankkaart")))
	if s.paid != nil {
		must(t, tx.Set(domain.FieldDatePaid, *s.paid))
	}
	return tx
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ids(c *Collection) []int64 {
	out := make([]int64, 0, c.Len())
	for _, t := range c.All() {
		out = append(out, t.ID())
	}
	return out
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
