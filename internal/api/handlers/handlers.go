package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/dvloznov/bookkeeper/internal/api/middleware"
	"github.com/dvloznov/bookkeeper/internal/domain"
	"github.com/dvloznov/bookkeeper/internal/jobs"
	"github.com/dvloznov/bookkeeper/internal/ledger"
	"github.com/dvloznov/bookkeeper/internal/xmlcodec"
	"github.com/rs/zerolog"
)

// BookAccess gives serialized access to the live transactions. Changes
// made inside Do reach the book's subscribers, auto save among them.
type BookAccess interface {
	Do(fn func(*ledger.Collection) error) error
}

// JobSubmitter queues background work on the book.
type JobSubmitter interface {
	Submit(ctx context.Context, t jobs.JobType) (*jobs.BookJob, error)
}

// TransactionJSON is the API representation of a transaction. Fields holds
// the present fields under their storage names; dates use 2006-01-02.
type TransactionJSON struct {
	ID     int64             `json:"id"`
	Fields map[string]string `json:"fields"`
}

// NewTransactionJSON converts t.
func NewTransactionJSON(t *domain.Transaction) TransactionJSON {
	out := TransactionJSON{ID: t.ID(), Fields: make(map[string]string)}
	for _, f := range t.PresentFields() {
		v := t.Get(f)
		if d, ok := v.(time.Time); ok {
			out.Fields[f.String()] = d.Format(isoDate)
			continue
		}
		out.Fields[f.String()] = xmlcodec.FormatValue(v)
	}
	return out
}

// TransactionInput is the body of POST /api/transactions and PATCH
// /api/transactions/{id}. Values use the forms TransactionJSON writes; an
// empty value clears the field.
type TransactionInput struct {
	Fields map[string]string `json:"fields"`
}

// TransactionsHandler handles transaction-related endpoints.
type TransactionsHandler struct {
	book BookAccess
	log  zerolog.Logger
	now  func() time.Time
	loc  *time.Location
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(book BookAccess, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{
		book: book,
		log:  log,
		now:  time.Now,
		loc:  time.Local,
	}
}

// ListTransactions handles GET /api/transactions?year=&month=&all=
// Hidden transactions are left out unless all=true.
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	year, ok := intParam(w, query.Get("year"), "year")
	if !ok {
		return
	}
	month, ok := intParam(w, query.Get("month"), "month")
	if !ok {
		return
	}
	if month < 0 || month > 12 {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid month")
		return
	}
	all := query.Get("all") == "true"

	result := []TransactionJSON{}
	h.book.Do(func(c *ledger.Collection) error {
		view := c
		if year > 0 {
			view = view.SelectByYear(domain.FieldDateAdded, year)
		}
		if month > 0 {
			view = view.SelectByMonth(domain.FieldDateAdded, time.Month(month))
		}
		if !all {
			view = view.SelectNonHidden(h.now())
		}
		for _, t := range view.SortBy(domain.FieldDateAdded).All() {
			result = append(result, NewTransactionJSON(t))
		}
		return nil
	})

	middleware.WriteJSON(w, http.StatusOK, result)
}

// GetTransaction handles GET /api/transactions/{id}
func (h *TransactionsHandler) GetTransaction(w http.ResponseWriter, r *http.Request, idStr string) {
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid transaction id")
		return
	}

	var found *TransactionJSON
	h.book.Do(func(c *ledger.Collection) error {
		if t := c.Get(id); t != nil {
			tj := NewTransactionJSON(t)
			found = &tj
		}
		return nil
	})
	if found == nil {
		middleware.WriteError(w, http.StatusNotFound, "Transaction not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, found)
}

// CreateTransaction handles POST /api/transactions. The transaction gets
// the next free id and must carry every required field.
func (h *TransactionsHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	values, ok := h.readInput(w, r)
	if !ok {
		return
	}

	var created TransactionJSON
	err := h.book.Do(func(c *ledger.Collection) error {
		t := domain.NewTransaction(c.NewID())
		if err := applyFields(t, values); err != nil {
			return err
		}
		if err := requireComplete(t); err != nil {
			return err
		}
		c.Add(t)
		created = NewTransactionJSON(t)
		return nil
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("Rejected new transaction")
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.log.Info().Int64("transaction_id", created.ID).Msg("Transaction created")
	middleware.WriteJSON(w, http.StatusCreated, created)
}

// UpdateTransaction handles PATCH /api/transactions/{id}. Only the fields
// in the body change, and a change that would leave a required field empty
// is refused as a whole.
func (h *TransactionsHandler) UpdateTransaction(w http.ResponseWriter, r *http.Request, idStr string) {
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid transaction id")
		return
	}
	values, ok := h.readInput(w, r)
	if !ok {
		return
	}

	var updated TransactionJSON
	err = h.book.Do(func(c *ledger.Collection) error {
		t := c.Get(id)
		if t == nil {
			return errTransactionNotFound
		}
		trial := t.Copy(id)
		if err := applyFields(trial, values); err != nil {
			return err
		}
		if err := requireComplete(trial); err != nil {
			return err
		}
		if err := applyFields(t, values); err != nil {
			return err
		}
		updated = NewTransactionJSON(t)
		return nil
	})
	switch {
	case errors.Is(err, errTransactionNotFound):
		middleware.WriteError(w, http.StatusNotFound, "Transaction not found")
		return
	case err != nil:
		h.log.Warn().Err(err).Int64("transaction_id", id).Msg("Rejected transaction change")
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	middleware.WriteJSON(w, http.StatusOK, updated)
}

// DeleteTransaction handles DELETE /api/transactions/{id}
func (h *TransactionsHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request, idStr string) {
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid transaction id")
		return
	}

	err = h.book.Do(func(c *ledger.Collection) error {
		t := c.Get(id)
		if t == nil {
			return errTransactionNotFound
		}
		c.Delete(t)
		return nil
	})
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, "Transaction not found")
		return
	}

	h.log.Info().Int64("transaction_id", id).Msg("Transaction deleted")
	w.WriteHeader(http.StatusNoContent)
}

func (h *TransactionsHandler) readInput(w http.ResponseWriter, r *http.Request) ([]fieldValue, bool) {
	var in TransactionInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return nil, false
	}
	values, err := parseFields(in.Fields, h.loc)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return values, true
}

// ListCategories handles GET /api/categories with the choice lists of
// categories, transactors and payment methods.
func (h *TransactionsHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	var categories []string
	var transactors, methods []string
	h.book.Do(func(c *ledger.Collection) error {
		categories = c.DistinctCategories()
		for _, cs := range c.DistinctTransactors() {
			transactors = append(transactors, cs.String())
		}
		for _, cs := range c.DistinctPaymentMethods() {
			methods = append(methods, cs.String())
		}
		return nil
	})

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"categories":      nonNil(categories),
		"transactors":     nonNil(transactors),
		"payment_methods": nonNil(methods),
	})
}

// StatsHandler handles statistics endpoints.
type StatsHandler struct {
	book BookAccess
	log  zerolog.Logger
}

// NewStatsHandler creates a new statistics handler.
func NewStatsHandler(book BookAccess, log zerolog.Logger) *StatsHandler {
	return &StatsHandler{book: book, log: log}
}

type totalsJSON struct {
	Income  string `json:"income"`
	Expense string `json:"expense"`
	Net     string `json:"net"`
}

func newTotalsJSON(t ledger.Totals) totalsJSON {
	return totalsJSON{
		Income:  t.Income.StringFixed(2),
		Expense: t.Expense.StringFixed(2),
		Net:     t.Net().StringFixed(2),
	}
}

// GetStats handles GET /api/stats?year=&by=category|month|transactor|payment
// Exceptional transactions are left out.
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	year, ok := intParam(w, query.Get("year"), "year")
	if !ok {
		return
	}
	by := query.Get("by")
	if by == "" {
		by = "category"
	}

	groups := make(map[string]totalsJSON)
	var total string
	err := h.book.Do(func(c *ledger.Collection) error {
		view := c.SelectUnexceptional()
		if year > 0 {
			view = view.SelectByYear(domain.FieldDateAdded, year)
		}
		total = view.TotalPrice().StringFixed(2)

		switch by {
		case "category":
			for k, v := range view.GroupPriceByCategory() {
				groups[k] = newTotalsJSON(v)
			}
		case "month":
			for k, v := range view.GroupPriceByMonth() {
				groups[k.String()] = newTotalsJSON(v)
			}
		case "transactor":
			for k, v := range view.GroupPriceByTransactor() {
				groups[k] = newTotalsJSON(v)
			}
		case "payment":
			for k, v := range view.GroupPriceByPaymentMethod() {
				groups[k] = newTotalsJSON(v)
			}
		default:
			return errUnknownGrouping
		}
		return nil
	})
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid grouping, use category, month, transactor or payment")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"by":     by,
		"year":   year,
		"total":  total,
		"groups": groups,
	})
}

// ListLoans handles GET /api/loans
func (h *StatsHandler) ListLoans(w http.ResponseWriter, r *http.Request) {
	var balances []ledger.LoanBalance
	h.book.Do(func(c *ledger.Collection) error {
		balances = c.LoanBalances()
		return nil
	})

	type loanJSON struct {
		Transactor string `json:"transactor"`
		Balance    string `json:"balance"`
		Count      int    `json:"count"`
	}
	out := make([]loanJSON, 0, len(balances))
	for _, b := range balances {
		out = append(out, loanJSON{
			Transactor: b.Transactor.String(),
			Balance:    b.Balance.StringFixed(2),
			Count:      b.Count,
		})
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"loans": out,
		"count": len(out),
	})
}

// GetWork handles GET /api/work with the job entry summary.
func (h *StatsHandler) GetWork(w http.ResponseWriter, r *http.Request) {
	var s ledger.JobSummary
	h.book.Do(func(c *ledger.Collection) error {
		s = c.JobSummary()
		return nil
	})

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"count":     s.Count,
		"hours":     s.Hours.String(),
		"gross_pay": s.GrossPay.StringFixed(2),
		"net_pay":   s.NetPay.StringFixed(2),
	})
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store     jobs.JobStore
	submitter JobSubmitter
	log       zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, submitter JobSubmitter, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store:     store,
		submitter: submitter,
		log:       log,
	}
}

// Enqueue handles POST /api/save, /api/backup and /api/export.
func (h *JobsHandler) Enqueue(t jobs.JobType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := h.submitter.Submit(r.Context(), t)
		if err != nil {
			h.log.Error().Err(err).Str("type", string(t)).Msg("Failed to enqueue job")
			middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue job")
			return
		}
		if job == nil {
			middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
				"type":   string(t),
				"status": "already queued",
			})
			return
		}

		h.log.Info().Str("job_id", job.JobID).Str("type", string(t)).Msg("Job enqueued")
		middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
			"job_id": job.JobID,
			"type":   string(t),
			"status": string(job.Status),
		})
	}
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	ctx := r.Context()

	job, err := h.store.GetJob(ctx, jobID)
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := r.URL.Query()
	filter := jobs.JobFilter{
		Type:   jobs.JobType(query.Get("type")),
		Status: jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(ctx, filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
