package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/bookkeeper/internal/api/middleware"
	"github.com/dvloznov/bookkeeper/internal/domain"
	"github.com/dvloznov/bookkeeper/internal/xmlcodec"
)

// isoDate is the date form the API reads and writes.
const isoDate = "2006-01-02"

var (
	errUnknownGrouping     = errors.New("unknown grouping")
	errMissingFields       = errors.New("missing required fields")
	errTransactionNotFound = errors.New("transaction not found")
)

// intParam parses an optional integer query parameter. It writes a 400 and
// reports false when the value is not a number.
func intParam(w http.ResponseWriter, raw, name string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid "+name)
		return 0, false
	}
	return n, true
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

type fieldValue struct {
	field domain.Field
	value any
}

// parseFields converts request values keyed by field name, in field order.
// Dates may use 2006-01-02 or dd/mm/yyyy.
func parseFields(in map[string]string, loc *time.Location) ([]fieldValue, error) {
	out := make([]fieldValue, 0, len(in))
	for name, raw := range in {
		f, ok := domain.FieldByName(name)
		if !ok {
			return nil, fmt.Errorf("unknown field %q", name)
		}
		if f.Type() == domain.TypeDate {
			if d, err := time.ParseInLocation(isoDate, strings.TrimSpace(raw), loc); err == nil {
				out = append(out, fieldValue{field: f, value: d})
				continue
			}
		}
		v, err := xmlcodec.ParseValue(f, raw, loc)
		if err != nil {
			return nil, err
		}
		out = append(out, fieldValue{field: f, value: v})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].field < out[j].field
	})
	return out, nil
}

func applyFields(t *domain.Transaction, values []fieldValue) error {
	for _, fv := range values {
		if err := t.Set(fv.field, fv.value); err != nil {
			return err
		}
	}
	return nil
}

func requireComplete(t *domain.Transaction) error {
	if missing := t.MissingFields(); len(missing) > 0 {
		return fmt.Errorf("%w: %v", errMissingFields, missing)
	}
	return nil
}
