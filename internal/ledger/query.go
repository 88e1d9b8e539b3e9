package ledger

import (
	"time"

	"github.com/dvloznov/bookkeeper/internal/domain"
)

// Where returns the members for which keep reports true.
func (c *Collection) Where(keep func(*domain.Transaction) bool) *Collection {
	out := make([]*domain.Transaction, 0, len(c.items))
	for _, t := range c.items {
		if keep(t) {
			out = append(out, t)
		}
	}
	return derived(out)
}

// SelectByYear returns the members whose date field falls in year.
// Members without a value for field are left out.
func (c *Collection) SelectByYear(field domain.Field, year int) *Collection {
	return c.Where(func(t *domain.Transaction) bool {
		d, ok := t.Date(field)
		return ok && d.Year() == year
	})
}

// SelectByMonth returns the members whose date field falls in month, in
// any year. Combine with SelectByYear for a single calendar month.
func (c *Collection) SelectByMonth(field domain.Field, month time.Month) *Collection {
	return c.Where(func(t *domain.Transaction) bool {
		d, ok := t.Date(field)
		return ok && d.Month() == month
	})
}

// SelectUnexceptional drops entries flagged as not representative.
func (c *Collection) SelectUnexceptional() *Collection {
	return c.Where(func(t *domain.Transaction) bool {
		return !t.IsExceptional()
	})
}

// SelectNonHidden returns the entries visible at now.
func (c *Collection) SelectNonHidden(now time.Time) *Collection {
	return c.Where(func(t *domain.Transaction) bool {
		return t.VisibleAt(now)
	})
}

// Loans returns the entries still waiting to be paid back.
func (c *Collection) Loans() *Collection {
	return c.Where((*domain.Transaction).IsLoan)
}

// Jobs returns the job entries.
func (c *Collection) Jobs() *Collection {
	return c.Where((*domain.Transaction).IsJob)
}

// DistinctCategories returns the sorted set of categories in use.
func (c *Collection) DistinctCategories() []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range c.items {
		cat, ok := t.Text(domain.FieldCategory)
		if !ok || seen[cat] {
			continue
		}
		seen[cat] = true
		out = append(out, cat)
	}
	sortStrings(out)
	return out
}

// DistinctTransactors returns the sorted set of transactors, including
// the transactors of loans.
func (c *Collection) DistinctTransactors() []domain.CategoryString {
	return c.distinctCategoryStrings(domain.FieldTransactor, domain.FieldPaybackTransactor)
}

// DistinctPaymentMethods returns the sorted set of payment methods.
func (c *Collection) DistinctPaymentMethods() []domain.CategoryString {
	return c.distinctCategoryStrings(domain.FieldPaymentMethod)
}

func (c *Collection) distinctCategoryStrings(fields ...domain.Field) []domain.CategoryString {
	seen := make(map[string]bool)
	var out []domain.CategoryString
	for _, t := range c.items {
		for _, f := range fields {
			cs, ok := t.CategoryString(f)
			if !ok || seen[cs.String()] {
				continue
			}
			seen[cs.String()] = true
			out = append(out, cs)
		}
	}
	sortCategoryStrings(out)
	return out
}
