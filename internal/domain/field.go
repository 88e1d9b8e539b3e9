package domain

import "strings"

// Field identifies one attribute of a Transaction. The declaration order is
// the order in which fields are written to storage.
type Field int

const (
	FieldDescription Field = iota
	FieldPrice
	FieldCategory
	FieldTransactor
	FieldDateAdded
	FieldDatePaid
	FieldPaymentMethod
	FieldExceptional
	FieldPayback
	FieldPaybackTransactor
	FieldPaybackPrice
	FieldJob
	FieldJobHours
	FieldJobWage
	FieldJobDate
	FieldHidden
	FieldHiddenDate

	fieldCount
)

// ValueType is the declared type of a field's value.
type ValueType int

const (
	TypeText           ValueType = iota // string
	TypeDecimal                         // decimal.Decimal
	TypeFlag                            // bool
	TypeDate                            // time.Time
	TypeCategoryString                  // CategoryString
)

func (v ValueType) String() string {
	return [...]string{"text", "decimal", "flag", "date", "category string"}[v]
}

type fieldInfo struct {
	name     string
	typ      ValueType
	governor Field
	governed bool
}

var schema = [fieldCount]fieldInfo{
	FieldDescription:       {name: "description", typ: TypeText},
	FieldPrice:             {name: "price", typ: TypeDecimal},
	FieldCategory:          {name: "category", typ: TypeText},
	FieldTransactor:        {name: "transactor", typ: TypeCategoryString},
	FieldDateAdded:         {name: "date_added", typ: TypeDate},
	FieldDatePaid:          {name: "date_paid", typ: TypeDate},
	FieldPaymentMethod:     {name: "payment_method", typ: TypeCategoryString},
	FieldExceptional:       {name: "exceptional", typ: TypeFlag},
	FieldPayback:           {name: "payback", typ: TypeFlag},
	FieldPaybackTransactor: {name: "payback_transactor", typ: TypeCategoryString, governor: FieldPayback, governed: true},
	FieldPaybackPrice:      {name: "payback_price", typ: TypeDecimal, governor: FieldPayback, governed: true},
	FieldJob:               {name: "job", typ: TypeFlag},
	FieldJobHours:          {name: "job_hours", typ: TypeDecimal, governor: FieldJob, governed: true},
	FieldJobWage:           {name: "job_wage", typ: TypeDecimal, governor: FieldJob, governed: true},
	FieldJobDate:           {name: "job_date", typ: TypeDate, governor: FieldJob, governed: true},
	FieldHidden:            {name: "hidden", typ: TypeFlag},
	FieldHiddenDate:        {name: "hidden_date", typ: TypeDate, governor: FieldHidden, governed: true},
}

var fieldsByName = func() map[string]Field {
	m := make(map[string]Field, fieldCount)
	for f := Field(0); f < fieldCount; f++ {
		m[schema[f].name] = f
	}
	return m
}()

// Valid reports whether f is one of the declared fields.
func (f Field) Valid() bool {
	return f >= 0 && f < fieldCount
}

// String returns the lowercase storage name of the field, e.g. "date_added".
func (f Field) String() string {
	if !f.Valid() {
		return "unknown"
	}
	return schema[f].name
}

// Type returns the declared value type of the field.
func (f Field) Type() ValueType {
	return schema[f].typ
}

// Governor returns the flag that controls whether f is meaningful.
// Fields outside a conditional group report false.
func (f Field) Governor() (Field, bool) {
	if !f.Valid() || !schema[f].governed {
		return 0, false
	}
	return schema[f].governor, true
}

// FieldByName resolves a storage name to a Field. The lookup is
// case-insensitive; unknown names report false.
func FieldByName(name string) (Field, bool) {
	f, ok := fieldsByName[strings.ToLower(name)]
	return f, ok
}

// Fields returns every field in declaration order.
func Fields() []Field {
	fs := make([]Field, 0, fieldCount)
	for f := Field(0); f < fieldCount; f++ {
		fs = append(fs, f)
	}
	return fs
}

// RequiredFields returns the fields every stored transaction must carry.
func RequiredFields() []Field {
	return []Field{
		FieldDescription,
		FieldPrice,
		FieldCategory,
		FieldTransactor,
		FieldDateAdded,
		FieldPaymentMethod,
	}
}
