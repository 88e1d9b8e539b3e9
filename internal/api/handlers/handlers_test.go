package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/bookkeeper/internal/domain"
	"github.com/dvloznov/bookkeeper/internal/jobs"
	"github.com/dvloznov/bookkeeper/internal/jobs/inmemory"
	"github.com/dvloznov/bookkeeper/internal/ledger"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type fakeBook struct {
	c *ledger.Collection
}

func (b *fakeBook) Do(fn func(*ledger.Collection) error) error {
	return fn(b.c)
}

type fakeSubmitter struct {
	err      error
	coalesce bool
	got      []jobs.JobType
}

func (s *fakeSubmitter) Submit(ctx context.Context, t jobs.JobType) (*jobs.BookJob, error) {
	s.got = append(s.got, t)
	if s.err != nil {
		return nil, s.err
	}
	if s.coalesce {
		return nil, nil
	}
	job := jobs.NewBookJob(t)
	job.JobID = "job-1"
	return job, nil
}

func tx(id int64, price string, category string, who domain.CategoryString, added time.Time) *domain.Transaction {
	t := domain.NewTransaction(id)
	t.Set(domain.FieldDescription, "entry")
	t.Set(domain.FieldPrice, decimal.RequireFromString(price))
	t.Set(domain.FieldCategory, category)
	t.Set(domain.FieldTransactor, who)
	t.Set(domain.FieldDateAdded, added)
	t.Set(domain.FieldPaymentMethod, domain.NewCategoryString("Bank", "Bankkaart"))
	return t
}

func newTestBook() *fakeBook {
	shop := domain.NewCategoryString("Winkel", "Een winkel")
	mama := domain.NewCategoryString("Personen", "Mama")

	gift := tx(0, "-30", "Cadeau", shop, time.Date(2016, 1, 21, 0, 0, 0, 0, time.UTC))
	pay := tx(1, "110", "Loon", mama, time.Date(2016, 1, 31, 0, 0, 0, 0, time.UTC))
	later := tx(2, "-10", "Eten", shop, time.Date(2016, 3, 2, 0, 0, 0, 0, time.UTC))

	loan := tx(3, "-20", "Lening", mama, time.Date(2017, 5, 1, 0, 0, 0, 0, time.UTC))
	loan.Set(domain.FieldPayback, true)
	loan.Set(domain.FieldPaybackTransactor, mama)

	hidden := tx(4, "-5", "Eten", shop, time.Date(2017, 5, 2, 0, 0, 0, 0, time.UTC))
	hidden.Set(domain.FieldHidden, true)
	hidden.Set(domain.FieldHiddenDate, time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC))

	return &fakeBook{c: ledger.New(gift, pay, later, loan, hidden)}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestListTransactions(t *testing.T) {
	h := NewTransactionsHandler(newTestBook(), zerolog.Nop())
	h.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }

	tests := []struct {
		name    string
		query   string
		status  int
		wantIDs []int64
	}{
		{"visible only", "", http.StatusOK, []int64{0, 1, 2, 3}},
		{"all", "?all=true", http.StatusOK, []int64{0, 1, 2, 3, 4}},
		{"by year", "?year=2016", http.StatusOK, []int64{0, 1, 2}},
		{"by year and month", "?year=2016&month=1", http.StatusOK, []int64{0, 1}},
		{"bad year", "?year=abc", http.StatusBadRequest, nil},
		{"month out of range", "?month=13", http.StatusBadRequest, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ListTransactions(rec, httptest.NewRequest(http.MethodGet, "/api/transactions"+tt.query, nil))

			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if tt.status != http.StatusOK {
				return
			}
			var got []TransactionJSON
			decode(t, rec, &got)
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("got %d transactions, want %d", len(got), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if got[i].ID != id {
					t.Errorf("transactions[%d].ID = %d, want %d", i, got[i].ID, id)
				}
			}
		})
	}
}

func TestCreateTransaction(t *testing.T) {
	complete := `{"fields": {"description": "Boodschappen", "price": "-12.5", "category": "Eten",
		"transactor": "Winkel > Een winkel", "date_added": "2024-02-03", "payment_method": "Bank > Bankkaart"}}`

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"complete", complete, http.StatusCreated},
		{"dd/mm/yyyy date", strings.Replace(complete, "2024-02-03", "03/02/2024", 1), http.StatusCreated},
		{"missing required field", `{"fields": {"description": "x", "price": "1"}}`, http.StatusBadRequest},
		{"unknown field", strings.Replace(complete, `"category"`, `"colour"`, 1), http.StatusBadRequest},
		{"bad price", strings.Replace(complete, "-12.5", "twaalf", 1), http.StatusBadRequest},
		{"category string without separator", strings.Replace(complete, "Winkel > Een winkel", "Winkel", 1), http.StatusBadRequest},
		{"not json", `fields=1`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			book := newTestBook()
			h := NewTransactionsHandler(book, zerolog.Nop())
			h.loc = time.UTC

			var events []ledger.Event
			book.c.Subscribe(func(e ledger.Event) { events = append(events, e) })

			rec := httptest.NewRecorder()
			h.CreateTransaction(rec, httptest.NewRequest(http.MethodPost, "/api/transactions", strings.NewReader(tt.body)))
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.status, rec.Body)
			}
			if tt.status != http.StatusCreated {
				if book.c.Len() != 5 || len(events) != 0 {
					t.Errorf("rejected request changed the book: len %d, events %d", book.c.Len(), len(events))
				}
				return
			}

			var got TransactionJSON
			decode(t, rec, &got)
			if got.ID != 5 {
				t.Errorf("ID = %d, want 5", got.ID)
			}
			if got.Fields["price"] != "-12.5" || got.Fields["date_added"] != "2024-02-03" {
				t.Errorf("Fields = %v", got.Fields)
			}
			if len(events) != 1 || events[0].Kind != ledger.EventAdded {
				t.Errorf("events = %+v, want one addition", events)
			}
		})
	}
}

func TestUpdateTransaction(t *testing.T) {
	tests := []struct {
		name      string
		id        string
		body      string
		status    int
		wantPrice string
	}{
		{"change price", "0", `{"fields": {"price": "-35"}}`, http.StatusOK, "-35"},
		{"set optional field", "0", `{"fields": {"exceptional": "true"}}`, http.StatusOK, "-30"},
		{"clear required field", "0", `{"fields": {"price": "-35", "category": ""}}`, http.StatusBadRequest, "-30"},
		{"unknown id", "42", `{"fields": {"price": "-35"}}`, http.StatusNotFound, "-30"},
		{"bad id", "x", `{"fields": {"price": "-35"}}`, http.StatusBadRequest, "-30"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			book := newTestBook()
			h := NewTransactionsHandler(book, zerolog.Nop())

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPatch, "/api/transactions/"+tt.id, strings.NewReader(tt.body))
			h.UpdateTransaction(rec, req, tt.id)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.status, rec.Body)
			}
			if price := book.c.Get(0).Price(); !price.Equal(decimal.RequireFromString(tt.wantPrice)) {
				t.Errorf("price = %s, want %s", price, tt.wantPrice)
			}
			if _, ok := book.c.Get(0).Text(domain.FieldCategory); !ok {
				t.Error("category was cleared")
			}
		})
	}
}

func TestDeleteTransaction(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		status  int
		wantLen int
	}{
		{"existing", "2", http.StatusNoContent, 4},
		{"unknown id", "42", http.StatusNotFound, 5},
		{"bad id", "x", http.StatusBadRequest, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			book := newTestBook()
			h := NewTransactionsHandler(book, zerolog.Nop())

			rec := httptest.NewRecorder()
			h.DeleteTransaction(rec, httptest.NewRequest(http.MethodDelete, "/api/transactions/"+tt.id, nil), tt.id)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if book.c.Len() != tt.wantLen {
				t.Errorf("Len() = %d, want %d", book.c.Len(), tt.wantLen)
			}
		})
	}
}

func TestGetTransaction(t *testing.T) {
	h := NewTransactionsHandler(newTestBook(), zerolog.Nop())

	rec := httptest.NewRecorder()
	h.GetTransaction(rec, httptest.NewRequest(http.MethodGet, "/api/transactions/0", nil), "0")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got TransactionJSON
	decode(t, rec, &got)

	want := map[string]string{
		"description":    "entry",
		"price":          "-30",
		"category":       "Cadeau",
		"transactor":     "Winkel > Een winkel",
		"date_added":     "2016-01-21",
		"payment_method": "Bank > Bankkaart",
	}
	if len(got.Fields) != len(want) {
		t.Errorf("fields = %v, want %v", got.Fields, want)
	}
	for k, v := range want {
		if got.Fields[k] != v {
			t.Errorf("fields[%s] = %q, want %q", k, got.Fields[k], v)
		}
	}

	tests := []struct {
		name   string
		id     string
		status int
	}{
		{"unknown", "99", http.StatusNotFound},
		{"not a number", "x", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.GetTransaction(rec, httptest.NewRequest(http.MethodGet, "/api/transactions/"+tt.id, nil), tt.id)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
		})
	}
}

func TestListCategories(t *testing.T) {
	h := NewTransactionsHandler(newTestBook(), zerolog.Nop())

	rec := httptest.NewRecorder()
	h.ListCategories(rec, httptest.NewRequest(http.MethodGet, "/api/categories", nil))

	var got map[string][]string
	decode(t, rec, &got)

	if len(got["categories"]) != 4 || got["categories"][0] != "Cadeau" {
		t.Errorf("categories = %v", got["categories"])
	}
	if len(got["transactors"]) != 2 || got["transactors"][0] != "Personen > Mama" {
		t.Errorf("transactors = %v", got["transactors"])
	}
	if len(got["payment_methods"]) != 1 {
		t.Errorf("payment_methods = %v", got["payment_methods"])
	}
}

func TestGetStats(t *testing.T) {
	h := NewStatsHandler(newTestBook(), zerolog.Nop())

	tests := []struct {
		name    string
		query   string
		status  int
		total   string
		key     string
		income  string
		expense string
	}{
		{"by category", "?year=2016", http.StatusOK, "70.00", "Cadeau", "0.00", "-30.00"},
		{"by month", "?year=2016&by=month", http.StatusOK, "70.00", "January", "110.00", "-30.00"},
		{"by transactor", "?by=transactor", http.StatusOK, "45.00", "Personen > Mama", "110.00", "-20.00"},
		{"by payment", "?year=2017&by=payment", http.StatusOK, "-25.00", "Bank > Bankkaart", "0.00", "-25.00"},
		{"unknown grouping", "?by=weekday", http.StatusBadRequest, "", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.GetStats(rec, httptest.NewRequest(http.MethodGet, "/api/stats"+tt.query, nil))
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if tt.status != http.StatusOK {
				return
			}

			var got struct {
				Total  string                `json:"total"`
				Groups map[string]totalsJSON `json:"groups"`
			}
			decode(t, rec, &got)
			if got.Total != tt.total {
				t.Errorf("total = %s, want %s", got.Total, tt.total)
			}
			g, ok := got.Groups[tt.key]
			if !ok {
				t.Fatalf("groups = %v, missing %q", got.Groups, tt.key)
			}
			if g.Income != tt.income || g.Expense != tt.expense {
				t.Errorf("groups[%s] = %+v, want income %s expense %s", tt.key, g, tt.income, tt.expense)
			}
		})
	}
}

func TestListLoans(t *testing.T) {
	h := NewStatsHandler(newTestBook(), zerolog.Nop())

	rec := httptest.NewRecorder()
	h.ListLoans(rec, httptest.NewRequest(http.MethodGet, "/api/loans", nil))

	var got struct {
		Loans []struct {
			Transactor string `json:"transactor"`
			Balance    string `json:"balance"`
			Count      int    `json:"count"`
		} `json:"loans"`
		Count int `json:"count"`
	}
	decode(t, rec, &got)
	if got.Count != 1 {
		t.Fatalf("count = %d, want 1", got.Count)
	}
	if l := got.Loans[0]; l.Transactor != "Personen > Mama" || l.Balance != "-20.00" || l.Count != 1 {
		t.Errorf("loan = %+v", l)
	}
}

func TestEnqueue(t *testing.T) {
	tests := []struct {
		name      string
		submitter *fakeSubmitter
		status    int
		want      string
	}{
		{"queued", &fakeSubmitter{}, http.StatusAccepted, "pending"},
		{"coalesced", &fakeSubmitter{coalesce: true}, http.StatusAccepted, "already queued"},
		{"failed", &fakeSubmitter{err: errors.New("queue closed")}, http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewJobsHandler(inmemory.NewStore(), tt.submitter, zerolog.Nop())

			rec := httptest.NewRecorder()
			h.Enqueue(jobs.JobTypeSave)(rec, httptest.NewRequest(http.MethodPost, "/api/save", nil))
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if len(tt.submitter.got) != 1 || tt.submitter.got[0] != jobs.JobTypeSave {
				t.Errorf("submitted = %v", tt.submitter.got)
			}
			if tt.want == "" {
				return
			}
			var body map[string]string
			decode(t, rec, &body)
			if body["status"] != tt.want {
				t.Errorf("status field = %q, want %q", body["status"], tt.want)
			}
		})
	}
}

func TestJobsEndpoints(t *testing.T) {
	ctx := context.Background()
	store := inmemory.NewStore()
	for i, typ := range []jobs.JobType{jobs.JobTypeSave, jobs.JobTypeBackup, jobs.JobTypeSave} {
		job := jobs.NewBookJob(typ)
		job.JobID = []string{"a", "b", "c"}[i]
		job.CreatedAt = time.Date(2024, 1, 1, i, 0, 0, 0, time.UTC)
		if err := store.SaveJob(ctx, job); err != nil {
			t.Fatalf("SaveJob: %v", err)
		}
	}
	h := NewJobsHandler(store, &fakeSubmitter{}, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.ListJobs(rec, httptest.NewRequest(http.MethodGet, "/api/jobs?type=save", nil))
	var list struct {
		Jobs  []jobs.BookJob `json:"jobs"`
		Count int            `json:"count"`
	}
	decode(t, rec, &list)
	if list.Count != 2 || list.Jobs[0].JobID != "a" || list.Jobs[1].JobID != "c" {
		t.Errorf("save jobs = %+v", list.Jobs)
	}

	rec = httptest.NewRecorder()
	h.GetJob(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/b", nil), "b")
	if rec.Code != http.StatusOK {
		t.Fatalf("GetJob status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.GetJob(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/zz", nil), "zz")
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing job status = %d, want 404", rec.Code)
	}
}
