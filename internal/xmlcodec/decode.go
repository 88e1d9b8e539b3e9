package xmlcodec

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/bookkeeper/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	// RootName is the name of the root element written by Encode.
	RootName        = "data"
	TransactionName = "transaction"
	IDName          = "ID"

	// DateLayout is the on-disk date format (dd/MM/yyyy).
	DateLayout = "02/01/2006"
)

// ErrFatal marks errors that abort a whole decode or encode.
var ErrFatal = errors.New("xml codec fatal error")

// Setting is a flat key/value child of the root element.
type Setting struct {
	Key   string
	Value string
}

// RecordError describes a transaction record that was skipped. ID is -1
// when the record had no usable id.
type RecordError struct {
	ID     int64
	Reason string
	Fields []string
}

func (e RecordError) Error() string {
	msg := fmt.Sprintf("transaction %d skipped: %s", e.ID, e.Reason)
	if len(e.Fields) > 0 {
		msg += " (" + strings.Join(e.Fields, ", ") + ")"
	}
	return msg
}

// Document is the result of decoding a file.
type Document struct {
	Transactions []*domain.Transaction
	Settings     []Setting
	Skipped      []RecordError
	Warnings     []string
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithLocation sets the time zone dates are parsed in.
func WithLocation(loc *time.Location) Option {
	return func(d *Decoder) {
		d.loc = loc
	}
}

// WithBestEffortDates replaces unparseable dates with the date returned by
// now and records a warning, instead of failing the decode.
func WithBestEffortDates(now func() time.Time) Option {
	return func(d *Decoder) {
		d.now = now
	}
}

// WithLogger sets the logger skipped records are reported to.
func WithLogger(log zerolog.Logger) Option {
	return func(d *Decoder) {
		d.log = log
	}
}

// Decoder turns documents into transactions.
type Decoder struct {
	loc *time.Location
	now func() time.Time
	log zerolog.Logger
}

// NewDecoder returns a Decoder parsing dates in the local time zone.
func NewDecoder(opts ...Option) *Decoder {
	d := &Decoder{
		loc: time.Local,
		log: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decode reads a whole document. Malformed records are skipped and listed
// in Document.Skipped; only malformed XML, decimals and dates fail the
// decode, with an error wrapping ErrFatal.
func (d *Decoder) Decode(r io.Reader) (*Document, error) {
	root, err := ParseTree(r)
	if err != nil {
		return nil, fmt.Errorf("Decode: %w: %w", ErrFatal, err)
	}

	doc := &Document{}
	for _, child := range root.Children {
		if child.Name != TransactionName {
			if child.Name != "" && child.Value != "" {
				doc.Settings = append(doc.Settings, Setting{Key: child.Name, Value: child.Value})
			}
			continue
		}

		t, skip, err := d.decodeTransaction(child, doc)
		if err != nil {
			return nil, fmt.Errorf("Decode: %w", err)
		}
		if skip != nil {
			d.log.Warn().
				Int64("transaction_id", skip.ID).
				Strs("fields", skip.Fields).
				Msg(skip.Error())
			doc.Skipped = append(doc.Skipped, *skip)
			continue
		}
		doc.Transactions = append(doc.Transactions, t)
	}

	d.log.Debug().
		Int("transactions", len(doc.Transactions)).
		Int("skipped", len(doc.Skipped)).
		Int("settings", len(doc.Settings)).
		Msg("Decoded document")
	return doc, nil
}

func (d *Decoder) decodeTransaction(e *Element, doc *Document) (*domain.Transaction, *RecordError, error) {
	idElem := e.Child(IDName)
	if idElem == nil {
		return nil, &RecordError{ID: -1, Reason: "missing ID"}, nil
	}
	id, err := strconv.ParseInt(strings.TrimSpace(idElem.Value), 10, 64)
	if err != nil || id < 0 {
		return nil, &RecordError{ID: -1, Reason: fmt.Sprintf("invalid ID %q", idElem.Value)}, nil
	}

	t := domain.NewTransaction(id)
	for _, c := range e.Children {
		if c == idElem {
			continue
		}
		f, ok := domain.FieldByName(c.Name)
		if !ok {
			return nil, &RecordError{ID: id, Reason: "unknown field", Fields: []string{c.Name}}, nil
		}

		v, err := d.coerce(id, f, c.Value, doc)
		if err != nil {
			return nil, nil, err
		}
		if v == nil {
			continue
		}
		if err := t.Set(f, v); err != nil {
			return nil, nil, fmt.Errorf("transaction %d: %w: %w", id, ErrFatal, err)
		}
	}

	if missing := t.MissingFields(); len(missing) > 0 {
		names := make([]string, len(missing))
		for i, f := range missing {
			names[i] = f.String()
		}
		return nil, &RecordError{ID: id, Reason: "missing required fields", Fields: names}, nil
	}
	return t, nil, nil
}

// coerce converts the text of one field. A category string without its
// separator yields nil and the field stays unset; a required field left
// unset that way skips the record through the missing fields check.
func (d *Decoder) coerce(id int64, f domain.Field, raw string, doc *Document) (any, error) {
	s := strings.TrimSpace(raw)
	switch f.Type() {
	case domain.TypeText:
		return raw, nil

	case domain.TypeDecimal:
		v, err := decimal.NewFromString(s)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %s %q: %w: %w", id, f, s, ErrFatal, err)
		}
		return v, nil

	case domain.TypeFlag:
		return s == "true", nil

	case domain.TypeDate:
		v, err := time.ParseInLocation(DateLayout, s, d.loc)
		if err == nil {
			return v, nil
		}
		if d.now == nil {
			return nil, fmt.Errorf("transaction %d: %s %q: %w: %w", id, f, s, ErrFatal, err)
		}
		now := d.now().In(d.loc)
		v = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, d.loc)
		msg := fmt.Sprintf("transaction %d: %s %q is not a date, using %s", id, f, s, v.Format(DateLayout))
		d.log.Warn().Int64("transaction_id", id).Str("field", f.String()).Msg(msg)
		doc.Warnings = append(doc.Warnings, msg)
		return v, nil

	case domain.TypeCategoryString:
		v, ok := domain.ParseCategoryString(s)
		if !ok {
			d.log.Debug().Int64("transaction_id", id).Str("field", f.String()).Msg("Category string without separator left unset")
			return nil, nil
		}
		return v, nil
	}
	return nil, fmt.Errorf("transaction %d: %s: %w", id, f, ErrFatal)
}
