package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/onebook-ledger/internal/store"
	"google.golang.org/api/iterator"
)

// insertBatchSize caps rows per streaming insert request.
const insertBatchSize = 500

// InsertEntriesWithClient streams entries into ledger_entries.
func InsertEntriesWithClient(ctx context.Context, client *bigquery.Client, t Target, recs []*store.EntryRecord) error {
	if len(recs) == 0 {
		return nil
	}

	inserter := client.DatasetInProject(t.ProjectID, t.DatasetID).Table(entriesTable).Inserter()
	for start := 0; start < len(recs); start += insertBatchSize {
		end := min(start+insertBatchSize, len(recs))
		rows := make([]*EntryRow, 0, end-start)
		for _, rec := range recs[start:end] {
			rows = append(rows, entryToRow(rec))
		}
		if err := inserter.Put(ctx, rows); err != nil {
			return fmt.Errorf("InsertEntries: inserting rows %d-%d: %w", start, end, err)
		}
	}
	return nil
}

// QueryEntriesByDateRangeWithClient returns entries dated within
// [startDate, endDate] by calendar day. Only entries of successful parsing
// runs are included, so superseded and failed runs never show up twice.
func QueryEntriesByDateRangeWithClient(ctx context.Context, client *bigquery.Client, t Target, startDate, endDate time.Time) ([]*store.EntryRecord, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
			e.entry_id,
			e.file_id,
			e.parsing_run_id,
			e.line_no,
			e.account,
			e.entry_datetime,
			e.transaction_summary,
			e.counterparty,
			e.description,
			e.amount,
			e.direction,
			e.payment_method,
			e.status,
			e.note,
			e.category,
			e.created_ts
		FROM %s e
		INNER JOIN %s pr
		  ON e.parsing_run_id = pr.parsing_run_id
		WHERE DATE(e.entry_datetime) >= @start_date
		  AND DATE(e.entry_datetime) <= @end_date
		  AND pr.status = @status
		ORDER BY e.entry_datetime, e.line_no
	`, t.table(entriesTable), t.table(parsingRunsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "start_date", Value: civil.DateOf(startDate)},
		{Name: "end_date", Value: civil.DateOf(endDate)},
		{Name: "status", Value: store.RunStatusSuccess},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("QueryEntriesByDateRange: query read: %w", err)
	}

	var recs []*store.EntryRecord
	for {
		var r EntryRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("QueryEntriesByDateRange: iter next: %w", err)
		}
		rec, err := r.toRecord()
		if err != nil {
			return nil, fmt.Errorf("QueryEntriesByDateRange: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}
