package ledger

import (
	"time"

	"github.com/dvloznov/bookkeeper/internal/domain"
	"github.com/shopspring/decimal"
)

// Totals keeps income (positive prices) and expenses (negative prices)
// apart.
type Totals struct {
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
}

func (t Totals) add(price decimal.Decimal) Totals {
	if price.IsNegative() {
		t.Expense = t.Expense.Add(price)
	} else {
		t.Income = t.Income.Add(price)
	}
	return t
}

// Net returns income plus expenses.
func (t Totals) Net() decimal.Decimal {
	return t.Income.Add(t.Expense)
}

// TotalPrice sums the price of every member.
func (c *Collection) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for _, t := range c.items {
		total = total.Add(t.Price())
	}
	return total
}

// GroupPriceByCategory buckets prices by category.
func (c *Collection) GroupPriceByCategory() map[string]Totals {
	return groupBy(c.items, func(t *domain.Transaction) (string, bool) {
		return t.Text(domain.FieldCategory)
	})
}

// GroupPriceByMonth buckets prices by the calendar month of date_added.
func (c *Collection) GroupPriceByMonth() map[time.Month]Totals {
	return groupBy(c.items, func(t *domain.Transaction) (time.Month, bool) {
		d, ok := t.Date(domain.FieldDateAdded)
		return d.Month(), ok
	})
}

// GroupPriceByTransactor buckets prices by the canonical transactor string.
func (c *Collection) GroupPriceByTransactor() map[string]Totals {
	return groupBy(c.items, categoryStringKey(domain.FieldTransactor))
}

// GroupPriceByPaymentMethod buckets prices by the canonical payment method.
func (c *Collection) GroupPriceByPaymentMethod() map[string]Totals {
	return groupBy(c.items, categoryStringKey(domain.FieldPaymentMethod))
}

func categoryStringKey(f domain.Field) func(*domain.Transaction) (string, bool) {
	return func(t *domain.Transaction) (string, bool) {
		cs, ok := t.CategoryString(f)
		return cs.String(), ok
	}
}

func groupBy[K comparable](items []*domain.Transaction, key func(*domain.Transaction) (K, bool)) map[K]Totals {
	out := make(map[K]Totals)
	for _, t := range items {
		k, ok := key(t)
		if !ok {
			continue
		}
		out[k] = out[k].add(t.Price())
	}
	return out
}

// JobSummary aggregates job entries.
type JobSummary struct {
	Count    int             `json:"count"`
	Hours    decimal.Decimal `json:"hours"`
	GrossPay decimal.Decimal `json:"gross_pay"`
	NetPay   decimal.Decimal `json:"net_pay"`
}

// JobSummary totals hours, gross pay and net price over Jobs().
func (c *Collection) JobSummary() JobSummary {
	s := JobSummary{Hours: decimal.Zero, GrossPay: decimal.Zero, NetPay: decimal.Zero}
	for _, t := range c.Jobs().items {
		s.Count++
		if h, ok := t.Decimal(domain.FieldJobHours); ok {
			s.Hours = s.Hours.Add(h)
		}
		if g, ok := t.GrossPay(); ok {
			s.GrossPay = s.GrossPay.Add(g)
		}
		s.NetPay = s.NetPay.Add(t.Price())
	}
	return s
}
