package ledger

import (
	"sort"
	"strings"
	"time"

	"github.com/dvloznov/bookkeeper/internal/domain"
	"github.com/shopspring/decimal"
)

// SortBy returns a copy of the collection ordered by field, ascending.
// Members without a value sort after those with one; members that compare
// equal keep their relative order.
func (c *Collection) SortBy(field domain.Field) *Collection {
	return derived(c.All()).SortInPlace(field)
}

// SortInPlace reorders the collection itself by field, like SortBy, and
// returns it for chaining.
func (c *Collection) SortInPlace(field domain.Field) *Collection {
	sort.SliceStable(c.items, func(i, j int) bool {
		return compareField(c.items[i], c.items[j], field) < 0
	})
	return c
}

func compareField(a, b *domain.Transaction, field domain.Field) int {
	va, vb := a.Get(field), b.Get(field)
	switch {
	case va == nil && vb == nil:
		return 0
	case va == nil:
		return 1
	case vb == nil:
		return -1
	}

	switch x := va.(type) {
	case time.Time:
		return x.Compare(vb.(time.Time))
	case decimal.Decimal:
		return x.Cmp(vb.(decimal.Decimal))
	case string:
		return strings.Compare(x, vb.(string))
	case domain.CategoryString:
		return x.Compare(vb.(domain.CategoryString))
	case bool:
		y := vb.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		default:
			return 1
		}
	}
	return 0
}

func sortStrings(s []string) {
	sort.Strings(s)
}

func sortCategoryStrings(s []domain.CategoryString) {
	sort.SliceStable(s, func(i, j int) bool {
		return s[i].Compare(s[j]) < 0
	})
}
