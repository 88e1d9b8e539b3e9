package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func newGift(id int64) *Transaction {
	t := NewTransaction(id)
	t.Set(FieldDescription, "Cadeautje voor Audric")
	t.Set(FieldPrice, decimal.NewFromInt(-30))
	t.Set(FieldCategory, "Cadeau")
	t.Set(FieldTransactor, NewCategoryString("Winkel", "Een winkel"))
	t.Set(FieldDateAdded, time.Date(2016, 1, 21, 0, 0, 0, 0, time.UTC))
	t.Set(FieldPaymentMethod, NewCategoryString("Bank", "Bankkaart"))
	return t
}

func TestSetAndGet(t *testing.T) {
	tx := NewTransaction(7)
	if tx.ID() != 7 {
		t.Fatalf("ID() = %d, want 7", tx.ID())
	}
	if got := tx.Get(FieldDescription); got != nil {
		t.Errorf("unset description = %v, want nil", got)
	}
	if got := tx.Get(FieldHidden); got != false {
		t.Errorf("unset flag = %v, want false", got)
	}

	if err := tx.Set(FieldDescription, "Zakgeld"); err != nil {
		t.Fatalf("Set description: %v", err)
	}
	if got := tx.Description(); got != "Zakgeld" {
		t.Errorf("Description() = %q", got)
	}

	if err := tx.Set(FieldDescription, nil); err != nil {
		t.Fatalf("clear description: %v", err)
	}
	if got := tx.Get(FieldDescription); got != nil {
		t.Errorf("cleared description = %v, want nil", got)
	}
}

func TestSetRejectsWrongType(t *testing.T) {
	tests := []struct {
		name  string
		field Field
		value any
	}{
		{"float for decimal", FieldPrice, -30.0},
		{"int for decimal", FieldPrice, 12},
		{"string for date", FieldDateAdded, "21/01/2016"},
		{"string for category string", FieldTransactor, "Winkel > Een winkel"},
		{"string for flag", FieldHidden, "true"},
		{"pointer for text", FieldDescription, new(string)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := newGift(1)
			before := tx.Get(tt.field)

			notified := 0
			tx.Subscribe(func(Change) { notified++ })

			err := tx.Set(tt.field, tt.value)
			if !errors.Is(err, ErrTypeMismatch) {
				t.Fatalf("Set() error = %v, want ErrTypeMismatch", err)
			}
			var typeErr *TypeError
			if !errors.As(err, &typeErr) || typeErr.Field != tt.field {
				t.Errorf("Set() error = %#v, want *TypeError for %s", err, tt.field)
			}
			if after := tx.Get(tt.field); after != before {
				t.Errorf("value changed from %v to %v", before, after)
			}
			if notified != 0 {
				t.Errorf("rejected Set notified %d times", notified)
			}
		})
	}
}

func TestSetUnknownField(t *testing.T) {
	tx := NewTransaction(1)
	if err := tx.Set(Field(99), "x"); !errors.Is(err, ErrUnknownField) {
		t.Errorf("Set(99) error = %v, want ErrUnknownField", err)
	}
}

func TestSetNotifiesSynchronously(t *testing.T) {
	tx := NewTransaction(3)

	var got []Field
	unsubscribe := tx.Subscribe(func(c Change) {
		if c.Transaction != tx {
			t.Errorf("change for wrong transaction")
		}
		got = append(got, c.Field)
	})

	tx.Set(FieldCategory, "Overig")
	tx.Set(FieldExceptional, true)
	if len(got) != 2 || got[0] != FieldCategory || got[1] != FieldExceptional {
		t.Fatalf("notifications = %v", got)
	}

	unsubscribe()
	unsubscribe()
	tx.Set(FieldCategory, "Cadeau")
	if len(got) != 2 {
		t.Errorf("notified after unsubscribe: %v", got)
	}
}

func TestReentrantNotificationIsBounded(t *testing.T) {
	tx := NewTransaction(1)
	calls := 0
	tx.Subscribe(func(c Change) {
		calls++
		// A handler that keeps writing would recurse forever without a bound.
		c.Transaction.Set(FieldDescription, "again")
	})

	if err := tx.Set(FieldDescription, "start"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if calls != MaxNotifyDepth {
		t.Errorf("handler calls = %d, want %d", calls, MaxNotifyDepth)
	}
	if tx.DroppedNotifications() != 1 {
		t.Errorf("DroppedNotifications() = %d, want 1", tx.DroppedNotifications())
	}
}

func TestPresentFieldsMinimal(t *testing.T) {
	tx := newGift(0)
	want := []Field{FieldDescription, FieldPrice, FieldCategory, FieldTransactor, FieldDateAdded, FieldPaymentMethod}
	assertFields(t, tx.PresentFields(), want)

	if missing := tx.MissingFields(); len(missing) != 0 {
		t.Errorf("MissingFields() = %v, want none", missing)
	}
}

func TestPresentFieldsConditionalGroups(t *testing.T) {
	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		setup  func(tx *Transaction)
		want   []Field
		absent []Field
	}{
		{
			name: "payback values without flag",
			setup: func(tx *Transaction) {
				tx.Set(FieldPaybackTransactor, NewCategoryString("Personen", "Mama"))
				tx.Set(FieldPaybackPrice, decimal.NewFromInt(5))
			},
			absent: []Field{FieldPayback, FieldPaybackTransactor, FieldPaybackPrice},
		},
		{
			name: "payback values with flag",
			setup: func(tx *Transaction) {
				tx.Set(FieldPayback, true)
				tx.Set(FieldPaybackTransactor, NewCategoryString("Personen", "Mama"))
			},
			want:   []Field{FieldPayback, FieldPaybackTransactor},
			absent: []Field{FieldPaybackPrice},
		},
		{
			name: "job values without flag",
			setup: func(tx *Transaction) {
				tx.Set(FieldJobHours, decimal.NewFromInt(4))
				tx.Set(FieldJobWage, decimal.NewFromInt(10))
				tx.Set(FieldJobDate, date)
			},
			absent: []Field{FieldJob, FieldJobHours, FieldJobWage, FieldJobDate},
		},
		{
			name: "job values with flag",
			setup: func(tx *Transaction) {
				tx.Set(FieldJob, true)
				tx.Set(FieldJobHours, decimal.NewFromInt(4))
				tx.Set(FieldJobWage, decimal.NewFromInt(10))
				tx.Set(FieldJobDate, date)
			},
			want: []Field{FieldJob, FieldJobHours, FieldJobWage, FieldJobDate},
		},
		{
			name: "hidden date without flag",
			setup: func(tx *Transaction) {
				tx.Set(FieldHiddenDate, date)
			},
			absent: []Field{FieldHidden, FieldHiddenDate},
		},
		{
			name: "flag turned off again",
			setup: func(tx *Transaction) {
				tx.Set(FieldHidden, true)
				tx.Set(FieldHiddenDate, date)
				tx.Set(FieldHidden, false)
			},
			absent: []Field{FieldHidden, FieldHiddenDate},
		},
		{
			name: "false flags are not present",
			setup: func(tx *Transaction) {
				tx.Set(FieldExceptional, false)
			},
			absent: []Field{FieldExceptional},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := newGift(1)
			tt.setup(tx)
			present := tx.PresentFields()
			for _, f := range tt.want {
				if !containsField(present, f) {
					t.Errorf("PresentFields() = %v, missing %s", present, f)
				}
			}
			for _, f := range tt.absent {
				if containsField(present, f) {
					t.Errorf("PresentFields() = %v, should not contain %s", present, f)
				}
			}
			for i := 1; i < len(present); i++ {
				if present[i-1] >= present[i] {
					t.Errorf("PresentFields() not in declaration order: %v", present)
				}
			}
		})
	}
}

func TestMissingFields(t *testing.T) {
	tx := NewTransaction(5)
	tx.Set(FieldDescription, "x")
	tx.Set(FieldPrice, decimal.NewFromInt(1))
	want := []Field{FieldCategory, FieldTransactor, FieldDateAdded, FieldPaymentMethod}
	assertFields(t, tx.MissingFields(), want)
}

func TestCopy(t *testing.T) {
	orig := newGift(1)
	orig.Set(FieldPayback, true)
	orig.Set(FieldPaybackTransactor, NewCategoryString("Personen", "Mama"))
	orig.Subscribe(func(Change) { t.Error("copy must not share subscribers") })

	cp := orig.Copy(9)
	if cp.ID() != 9 {
		t.Errorf("copy ID = %d, want 9", cp.ID())
	}
	for _, f := range Fields() {
		a, b := orig.Get(f), cp.Get(f)
		if d, ok := a.(decimal.Decimal); ok {
			if !d.Equal(b.(decimal.Decimal)) {
				t.Errorf("%s: %v != %v", f, a, b)
			}
			continue
		}
		if a != b {
			t.Errorf("%s: %v != %v", f, a, b)
		}
	}

	cp.Set(FieldDescription, "changed")
	if orig.Description() == "changed" {
		t.Error("modifying the copy changed the original")
	}
}

func TestGrossPay(t *testing.T) {
	tx := newGift(1)
	tx.Set(FieldPrice, decimal.RequireFromString("52.5"))
	tx.Set(FieldJobHours, decimal.RequireFromString("7.5"))
	tx.Set(FieldJobWage, decimal.RequireFromString("9.2"))

	if _, ok := tx.GrossPay(); ok {
		t.Error("GrossPay() reported a value while job flag is off")
	}

	tx.Set(FieldJob, true)
	gross, ok := tx.GrossPay()
	if !ok || !gross.Equal(decimal.RequireFromString("69")) {
		t.Errorf("GrossPay() = %s, %v; want 69", gross, ok)
	}
	if !tx.Price().Equal(decimal.RequireFromString("52.5")) {
		t.Errorf("Price() changed to %s", tx.Price())
	}
}

func TestVisibleAt(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		hidden bool
		until  *time.Time
		want   bool
	}{
		{"not hidden", false, nil, true},
		{"hidden without date", true, nil, true},
		{"hidden until future", true, ptr(now.AddDate(0, 1, 0)), false},
		{"hidden until past", true, ptr(now.AddDate(0, -1, 0)), true},
		{"hidden until now", true, ptr(now), true},
		{"date without flag", false, ptr(now.AddDate(1, 0, 0)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := newGift(1)
			tx.Set(FieldHidden, tt.hidden)
			if tt.until != nil {
				tx.Set(FieldHiddenDate, *tt.until)
			}
			if got := tx.VisibleAt(now); got != tt.want {
				t.Errorf("VisibleAt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func ptr[T any](v T) *T { return &v }

func containsField(fs []Field, f Field) bool {
	for _, x := range fs {
		if x == f {
			return true
		}
	}
	return false
}

func assertFields(t *testing.T, got, want []Field) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("fields = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("fields[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}
