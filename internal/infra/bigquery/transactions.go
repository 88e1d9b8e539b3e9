package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/bookkeeper/internal/domain"
)

// TransactionRow is one exported transaction.
type TransactionRow struct {
	ExportID      string `bigquery:"export_id"`      // REQUIRED
	TransactionID int64  `bigquery:"transaction_id"` // REQUIRED

	Description string   `bigquery:"description"`
	Amount      *big.Rat `bigquery:"amount"` // REQUIRED NUMERIC
	Category    string   `bigquery:"category"`

	TransactorCategory string `bigquery:"transactor_category"`
	Transactor         string `bigquery:"transactor"`

	DateAdded civil.Date        `bigquery:"date_added"` // REQUIRED
	DatePaid  bigquery.NullDate `bigquery:"date_paid"`  // NULLABLE

	PaymentMethodCategory string `bigquery:"payment_method_category"`
	PaymentMethod         string `bigquery:"payment_method"`

	IsExceptional bool `bigquery:"is_exceptional"`

	IsLoan                    bool                `bigquery:"is_loan"`
	PaybackTransactor         bigquery.NullString `bigquery:"payback_transactor"`          // NULLABLE
	PaybackTransactorCategory bigquery.NullString `bigquery:"payback_transactor_category"` // NULLABLE
	PaybackAmount             *big.Rat            `bigquery:"payback_amount,nullable"`     // NULLABLE NUMERIC

	IsJob    bool              `bigquery:"is_job"`
	JobHours *big.Rat          `bigquery:"job_hours,nullable"` // NULLABLE NUMERIC
	JobWage  *big.Rat          `bigquery:"job_wage,nullable"`  // NULLABLE NUMERIC
	JobDate  bigquery.NullDate `bigquery:"job_date"`           // NULLABLE

	IsHidden   bool              `bigquery:"is_hidden"`
	HiddenDate bigquery.NullDate `bigquery:"hidden_date"` // NULLABLE

	ExportedTS time.Time `bigquery:"exported_ts"` // REQUIRED
}

// NewTransactionRow maps t onto a row. Values of conditional fields are
// only exported while their flag is on.
func NewTransactionRow(t *domain.Transaction, exportID string, exportedAt time.Time) *TransactionRow {
	row := &TransactionRow{
		ExportID:              exportID,
		TransactionID:         t.ID(),
		Description:           t.Description(),
		Amount:                t.Price().Rat(),
		Category:              t.Category(),
		TransactorCategory:    t.Transactor().Category,
		Transactor:            t.Transactor().Value,
		PaymentMethodCategory: t.PaymentMethod().Category,
		PaymentMethod:         t.PaymentMethod().Value,
		IsExceptional:         t.IsExceptional(),
		IsLoan:                t.IsLoan(),
		IsJob:                 t.IsJob(),
		IsHidden:              t.IsHidden(),
		ExportedTS:            exportedAt,
	}
	if d, ok := t.Date(domain.FieldDateAdded); ok {
		row.DateAdded = civil.DateOf(d)
	}
	row.DatePaid = nullDate(t, domain.FieldDatePaid)

	present := make(map[domain.Field]bool)
	for _, f := range t.PresentFields() {
		present[f] = true
	}

	if present[domain.FieldPaybackTransactor] {
		who := t.Transactor()
		if cs, ok := t.CategoryString(domain.FieldPaybackTransactor); ok {
			who = cs
		}
		row.PaybackTransactor = bigquery.NullString{StringVal: who.Value, Valid: true}
		row.PaybackTransactorCategory = bigquery.NullString{StringVal: who.Category, Valid: true}
	}
	if present[domain.FieldPaybackPrice] {
		row.PaybackAmount = rat(t, domain.FieldPaybackPrice)
	}
	if present[domain.FieldJobHours] {
		row.JobHours = rat(t, domain.FieldJobHours)
	}
	if present[domain.FieldJobWage] {
		row.JobWage = rat(t, domain.FieldJobWage)
	}
	if present[domain.FieldJobDate] {
		row.JobDate = nullDate(t, domain.FieldJobDate)
	}
	if present[domain.FieldHiddenDate] {
		row.HiddenDate = nullDate(t, domain.FieldHiddenDate)
	}
	return row
}

func rat(t *domain.Transaction, f domain.Field) *big.Rat {
	d, ok := t.Decimal(f)
	if !ok {
		return nil
	}
	return d.Rat()
}

func nullDate(t *domain.Transaction, f domain.Field) bigquery.NullDate {
	d, ok := t.Date(f)
	if !ok {
		return bigquery.NullDate{}
	}
	return bigquery.NullDate{Date: civil.DateOf(d), Valid: true}
}
