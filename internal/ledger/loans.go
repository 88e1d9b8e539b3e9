package ledger

import (
	"errors"
	"fmt"
	"sort"

	"github.com/dvloznov/bookkeeper/internal/domain"
	"github.com/shopspring/decimal"
)

// ErrOutstandingBalance is returned by SettleLoans while the loans of a
// transactor do not add up to zero.
var ErrOutstandingBalance = errors.New("outstanding loan balance")

// LoanBalance is the summed price of the open loans with one transactor.
// A negative balance means money was lent out and not yet paid back.
type LoanBalance struct {
	Transactor domain.CategoryString `json:"transactor"`
	Balance    decimal.Decimal       `json:"balance"`
	Count      int                   `json:"count"`
}

// LoanBalances groups Loans() by payback transactor. Loans without a
// payback transactor are left out.
func (c *Collection) LoanBalances() []LoanBalance {
	index := make(map[string]int)
	var out []LoanBalance
	for _, t := range c.Loans().items {
		who, ok := t.CategoryString(domain.FieldPaybackTransactor)
		if !ok {
			continue
		}
		i, seen := index[who.String()]
		if !seen {
			i = len(out)
			index[who.String()] = i
			out = append(out, LoanBalance{Transactor: who, Balance: decimal.Zero})
		}
		out[i].Balance = out[i].Balance.Add(t.Price())
		out[i].Count++
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Transactor, out[j].Transactor
		if a.Value != b.Value {
			return a.Value < b.Value
		}
		return a.Category < b.Category
	})
	return out
}

// SettleLoans closes every loan with who by clearing its payback flag and
// payback transactor. It returns the number of settled loans, or
// ErrOutstandingBalance without touching anything when the balance is not
// zero.
func (c *Collection) SettleLoans(who domain.CategoryString) (int, error) {
	var open []*domain.Transaction
	balance := decimal.Zero
	for _, t := range c.Loans().items {
		cs, ok := t.CategoryString(domain.FieldPaybackTransactor)
		if !ok || !cs.Equal(who) {
			continue
		}
		open = append(open, t)
		balance = balance.Add(t.Price())
	}
	if !balance.IsZero() {
		return 0, fmt.Errorf("SettleLoans: balance with %s is %s: %w", who, balance.String(), ErrOutstandingBalance)
	}

	for _, t := range open {
		if err := t.Set(domain.FieldPaybackTransactor, nil); err != nil {
			return 0, fmt.Errorf("SettleLoans: transaction %d: %w", t.ID(), err)
		}
		if err := t.Set(domain.FieldPayback, false); err != nil {
			return 0, fmt.Errorf("SettleLoans: transaction %d: %w", t.ID(), err)
		}
	}
	return len(open), nil
}
