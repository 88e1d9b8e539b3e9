package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrTypeMismatch is returned by Set when a value does not have the
	// field's declared type.
	ErrTypeMismatch = errors.New("value type does not match field")

	// ErrUnknownField is returned by Set for a Field outside the schema.
	ErrUnknownField = errors.New("unknown field")
)

// TypeError describes a rejected Set call.
type TypeError struct {
	Field Field
	Want  ValueType
	Got   any
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("field %q expects %s, got %T", e.Field, e.Want, e.Got)
}

func (e *TypeError) Unwrap() error {
	return ErrTypeMismatch
}

// Change is delivered to a Transaction's subscribers after a successful Set.
type Change struct {
	Transaction *Transaction
	Field       Field
}

// Transaction represents one bookkeeping entry. Price is signed: positive
// is income, negative is an expense. For job entries Price holds the net
// amount while JobHours x JobWage is the gross pay.
//
// A Transaction is not safe for concurrent use.
type Transaction struct {
	id      int64
	values  [fieldCount]any
	changes Notifier[Change]
}

// NewTransaction returns an empty transaction with the given id.
func NewTransaction(id int64) *Transaction {
	return &Transaction{id: id}
}

// ID returns the identifier assigned at construction.
func (t *Transaction) ID() int64 {
	return t.id
}

// Get returns the value of f, or nil when it is unset. Flags always
// report a bool.
func (t *Transaction) Get(f Field) any {
	if !f.Valid() {
		return nil
	}
	v := t.values[f]
	if v == nil && f.Type() == TypeFlag {
		return false
	}
	return v
}

// Set stores v in f and notifies subscribers. A nil v clears the field.
// Values whose runtime type differs from the declared type are rejected
// with a *TypeError; the field is left untouched and nobody is notified.
func (t *Transaction) Set(f Field, v any) error {
	if !f.Valid() {
		return fmt.Errorf("Set: field %d: %w", int(f), ErrUnknownField)
	}
	if v != nil && !hasType(v, f.Type()) {
		return &TypeError{Field: f, Want: f.Type(), Got: v}
	}
	t.values[f] = v
	t.changes.Notify(Change{Transaction: t, Field: f})
	return nil
}

func hasType(v any, typ ValueType) bool {
	var ok bool
	switch typ {
	case TypeText:
		_, ok = v.(string)
	case TypeDecimal:
		_, ok = v.(decimal.Decimal)
	case TypeFlag:
		_, ok = v.(bool)
	case TypeDate:
		_, ok = v.(time.Time)
	case TypeCategoryString:
		_, ok = v.(CategoryString)
	}
	return ok
}

// Subscribe registers fn for every successful Set on this transaction.
func (t *Transaction) Subscribe(fn func(Change)) (unsubscribe func()) {
	return t.changes.Subscribe(fn)
}

// ClearSubscribers detaches every subscriber.
func (t *Transaction) ClearSubscribers() {
	t.changes.Clear()
}

// DroppedNotifications counts deliveries skipped because handlers kept
// re-entering Set beyond MaxNotifyDepth.
func (t *Transaction) DroppedNotifications() int {
	return t.changes.Dropped()
}

// RequiredFields returns the fields a transaction must carry to be stored.
func (t *Transaction) RequiredFields() []Field {
	return RequiredFields()
}

// MissingFields returns the required fields that are still unset.
func (t *Transaction) MissingFields() []Field {
	var missing []Field
	for _, f := range RequiredFields() {
		if t.values[f] == nil {
			missing = append(missing, f)
		}
	}
	return missing
}

// PresentFields returns, in declaration order, the fields holding a value
// (flags only when true). Fields of a conditional group are left out while
// their governing flag is false.
func (t *Transaction) PresentFields() []Field {
	present := make([]Field, 0, fieldCount)
	for f := Field(0); f < fieldCount; f++ {
		v := t.values[f]
		if v == nil {
			continue
		}
		if b, ok := v.(bool); ok && !b {
			continue
		}
		if gov, ok := f.Governor(); ok && !t.Flag(gov) {
			continue
		}
		present = append(present, f)
	}
	return present
}

// Copy returns a transaction with the same values under a new id. The copy
// has no subscribers.
func (t *Transaction) Copy(id int64) *Transaction {
	return &Transaction{id: id, values: t.values}
}

// Flag returns the boolean value of f, false when unset.
func (t *Transaction) Flag(f Field) bool {
	b, _ := t.Get(f).(bool)
	return b
}

// Text returns the string value of f.
func (t *Transaction) Text(f Field) (string, bool) {
	s, ok := t.Get(f).(string)
	return s, ok
}

// Decimal returns the decimal value of f.
func (t *Transaction) Decimal(f Field) (decimal.Decimal, bool) {
	d, ok := t.Get(f).(decimal.Decimal)
	return d, ok
}

// Date returns the date value of f.
func (t *Transaction) Date(f Field) (time.Time, bool) {
	d, ok := t.Get(f).(time.Time)
	return d, ok
}

// CategoryString returns the category string value of f.
func (t *Transaction) CategoryString(f Field) (CategoryString, bool) {
	c, ok := t.Get(f).(CategoryString)
	return c, ok
}

func (t *Transaction) Description() string {
	s, _ := t.Text(FieldDescription)
	return s
}

// Price returns the signed amount; zero when unset.
func (t *Transaction) Price() decimal.Decimal {
	d, _ := t.Decimal(FieldPrice)
	return d
}

func (t *Transaction) Category() string {
	s, _ := t.Text(FieldCategory)
	return s
}

func (t *Transaction) Transactor() CategoryString {
	c, _ := t.CategoryString(FieldTransactor)
	return c
}

func (t *Transaction) PaymentMethod() CategoryString {
	c, _ := t.CategoryString(FieldPaymentMethod)
	return c
}

func (t *Transaction) IsExceptional() bool { return t.Flag(FieldExceptional) }
func (t *Transaction) IsLoan() bool        { return t.Flag(FieldPayback) }
func (t *Transaction) IsJob() bool         { return t.Flag(FieldJob) }
func (t *Transaction) IsHidden() bool      { return t.Flag(FieldHidden) }

// GrossPay returns JobHours x JobWage for job entries with both values set.
func (t *Transaction) GrossPay() (decimal.Decimal, bool) {
	if !t.IsJob() {
		return decimal.Zero, false
	}
	hours, ok := t.Decimal(FieldJobHours)
	if !ok {
		return decimal.Zero, false
	}
	wage, ok := t.Decimal(FieldJobWage)
	if !ok {
		return decimal.Zero, false
	}
	return hours.Mul(wage), true
}

// VisibleAt reports whether the transaction shows up in default views at
// now. Hidden entries without a hidden-until date, or whose date has been
// reached, are visible.
func (t *Transaction) VisibleAt(now time.Time) bool {
	if !t.IsHidden() {
		return true
	}
	until, ok := t.Date(FieldHiddenDate)
	if !ok {
		return true
	}
	return !until.After(now)
}

func (t *Transaction) String() string {
	return fmt.Sprintf("%s, %s by %s", t.Description(), t.Price().StringFixed(2), t.Transactor().Value)
}
