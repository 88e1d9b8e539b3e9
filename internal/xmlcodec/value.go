package xmlcodec

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/bookkeeper/internal/domain"
	"github.com/shopspring/decimal"
)

// ErrInvalidValue is returned by ParseValue for text that does not fit
// the field's type.
var ErrInvalidValue = errors.New("invalid value")

// ParseValue converts user input for field f. It is stricter than Decode:
// flags go through strconv.ParseBool and category strings must have both
// halves. An empty string clears the field.
func ParseValue(f domain.Field, s string, loc *time.Location) (any, error) {
	if s == "" {
		return nil, nil
	}
	if loc == nil {
		loc = time.Local
	}
	trimmed := strings.TrimSpace(s)

	switch f.Type() {
	case domain.TypeText:
		return s, nil
	case domain.TypeDecimal:
		v, err := decimal.NewFromString(trimmed)
		if err != nil {
			return nil, fmt.Errorf("%s %q: %w", f, s, ErrInvalidValue)
		}
		return v, nil
	case domain.TypeFlag:
		v, err := strconv.ParseBool(trimmed)
		if err != nil {
			return nil, fmt.Errorf("%s %q: %w", f, s, ErrInvalidValue)
		}
		return v, nil
	case domain.TypeDate:
		v, err := time.ParseInLocation(DateLayout, trimmed, loc)
		if err != nil {
			return nil, fmt.Errorf("%s %q: want dd/mm/yyyy: %w", f, s, ErrInvalidValue)
		}
		return v, nil
	case domain.TypeCategoryString:
		v, ok := domain.ParseCategoryString(trimmed)
		if !ok || v.Category == "" || v.Value == "" {
			return nil, fmt.Errorf("%s %q: want \"Category > Value\": %w", f, s, ErrInvalidValue)
		}
		return v, nil
	}
	return nil, fmt.Errorf("%s: %w", f, ErrInvalidValue)
}
