package domain

import "strings"

// CategorySeparator joins the two halves of a CategoryString.
const CategorySeparator = " > "

// CategoryString pairs a free-text category with a free-text value,
// e.g. "Personen > Mama" for a transactor.
type CategoryString struct {
	Category string
	Value    string
}

// NewCategoryString builds a CategoryString from its parts.
func NewCategoryString(category, value string) CategoryString {
	return CategoryString{Category: category, Value: value}
}

// ParseCategoryString splits "category > value". When s holds no separator
// the zero value and false are returned. Only the first separator splits.
func ParseCategoryString(s string) (CategoryString, bool) {
	category, value, ok := strings.Cut(s, CategorySeparator)
	if !ok {
		return CategoryString{}, false
	}
	return CategoryString{Category: category, Value: value}, true
}

// String returns the canonical form "category > value".
func (c CategoryString) String() string {
	return c.Category + CategorySeparator + c.Value
}

// IsZero reports whether neither half is set.
func (c CategoryString) IsZero() bool {
	return c.Category == "" && c.Value == ""
}

// Equal compares the canonical forms.
func (c CategoryString) Equal(o CategoryString) bool {
	return c.String() == o.String()
}

// Compare orders by canonical form.
func (c CategoryString) Compare(o CategoryString) int {
	return strings.Compare(c.String(), o.String())
}
