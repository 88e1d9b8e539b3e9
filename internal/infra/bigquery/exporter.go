package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/bigquery"
	bq "github.com/dvloznov/bookkeeper/internal/bigquery"
	"github.com/dvloznov/bookkeeper/internal/domain"
	"github.com/google/uuid"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// insertBatchSize bounds the rows sent per streaming insert.
const insertBatchSize = 500

// Exporter writes transactions to <project>.<dataset>.<table>.
type Exporter struct {
	client  *bigquery.Client
	project string
	dataset string
	table   string
	now     func() time.Time
}

// NewExporter creates a BigQuery client for project.
func NewExporter(ctx context.Context, project, dataset, table string, opts ...option.ClientOption) (*Exporter, error) {
	client, err := bigquery.NewClient(ctx, project, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewExporter: bigquery client: %w", err)
	}
	return NewExporterWithClient(client, project, dataset, table), nil
}

// NewExporterWithClient uses an existing client.
func NewExporterWithClient(client *bigquery.Client, project, dataset, table string) *Exporter {
	return &Exporter{
		client:  client,
		project: project,
		dataset: dataset,
		table:   table,
		now:     time.Now,
	}
}

// Close closes the BigQuery client connection.
func (e *Exporter) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}

func (e *Exporter) tableRef() *bigquery.Table {
	return e.client.DatasetInProject(e.project, e.dataset).Table(e.table)
}

// EnsureTable creates the table with a schema inferred from TransactionRow
// when it does not exist.
func (e *Exporter) EnsureTable(ctx context.Context) error {
	t := e.tableRef()
	if _, err := t.Metadata(ctx); err == nil {
		return nil
	} else if !isNotFound(err) {
		return fmt.Errorf("EnsureTable: metadata: %w", err)
	}

	schema, err := bigquery.InferSchema(TransactionRow{})
	if err != nil {
		return fmt.Errorf("EnsureTable: infer schema: %w", err)
	}
	meta := &bigquery.TableMetadata{
		Schema: schema,
		TimePartitioning: &bigquery.TimePartitioning{
			Type:  bigquery.DayPartitioningType,
			Field: "exported_ts",
		},
	}
	if err := t.Create(ctx, meta); err != nil {
		return fmt.Errorf("EnsureTable: create %s.%s: %w", e.dataset, e.table, err)
	}
	return nil
}

// Export inserts one row per transaction under a new export id.
func (e *Exporter) Export(ctx context.Context, txs []*domain.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	exportID := uuid.NewString()
	exportedAt := e.now()
	rows := make([]*TransactionRow, 0, len(txs))
	for _, t := range txs {
		rows = append(rows, NewTransactionRow(t, exportID, exportedAt))
	}

	inserter := e.tableRef().Inserter()
	for start := 0; start < len(rows); start += insertBatchSize {
		end := min(start+insertBatchSize, len(rows))
		if err := inserter.Put(ctx, rows[start:end]); err != nil {
			return fmt.Errorf("Export: inserting rows %d-%d: %w", start, end, err)
		}
	}
	return nil
}

// MonthlyTotals sums income and expenses per month of date_added, over the
// rows of the latest export.
func (e *Exporter) MonthlyTotals(ctx context.Context, year int) ([]bq.MonthlyTotal, error) {
	q := e.client.Query(fmt.Sprintf(`
		SELECT
			EXTRACT(MONTH FROM date_added) AS month,
			SUM(IF(amount > 0, amount, 0)) AS income,
			SUM(IF(amount < 0, amount, 0)) AS expense
		FROM `+"`%[1]s.%[2]s.%[3]s`"+`
		WHERE export_id = (
			SELECT export_id FROM `+"`%[1]s.%[2]s.%[3]s`"+`
			ORDER BY exported_ts DESC
			LIMIT 1
		)
		AND EXTRACT(YEAR FROM date_added) = @year
		GROUP BY month
		ORDER BY month
	`, e.project, e.dataset, e.table))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "year", Value: year},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("MonthlyTotals: query read: %w", err)
	}

	var out []bq.MonthlyTotal
	for {
		var r bq.MonthlyTotal
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("MonthlyTotals: iter next: %w", err)
		}
		out = append(out, r)
	}
	return out, nil
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}

var (
	_ bq.TransactionExporter = (*Exporter)(nil)
	_ bq.TotalsReporter      = (*Exporter)(nil)
)
