package xmlcodec

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/dvloznov/bookkeeper/internal/domain"
	"github.com/shopspring/decimal"
)

// Encoder turns transactions into documents.
type Encoder struct{}

// NewEncoder returns an Encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Encode writes settings followed by txs, in the given order, under a
// data root. Each transaction lists its ID and then its present fields.
func (e *Encoder) Encode(w io.Writer, txs []*domain.Transaction, settings []Setting) error {
	root := Tree(txs, settings)
	if _, err := root.WriteTo(w); err != nil {
		return fmt.Errorf("Encode: %w: %w", ErrFatal, err)
	}
	return nil
}

// Tree builds the element tree Encode writes.
func Tree(txs []*domain.Transaction, settings []Setting) *Element {
	root := &Element{Name: RootName}
	for _, s := range settings {
		root.Add(s.Key, s.Value)
	}
	for _, t := range txs {
		root.Children = append(root.Children, transactionElement(t))
	}
	return root
}

func transactionElement(t *domain.Transaction) *Element {
	e := &Element{Name: TransactionName}
	e.Add(IDName, strconv.FormatInt(t.ID(), 10))
	for _, f := range t.PresentFields() {
		e.Add(f.String(), FormatValue(t.Get(f)))
	}
	return e
}

// FormatValue renders a field value the way it is stored on disk.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case decimal.Decimal:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(DateLayout)
	case domain.CategoryString:
		return x.String()
	}
	return fmt.Sprint(v)
}

// EmptyDocument returns a document with an empty root, used to create new
// files.
func EmptyDocument() []byte {
	var buf bytes.Buffer
	// Writing to a bytes.Buffer cannot fail.
	_, _ = (&Element{Name: RootName}).WriteTo(&buf)
	return buf.Bytes()
}
