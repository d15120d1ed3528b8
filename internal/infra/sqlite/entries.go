package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dvloznov/onebook-ledger/internal/domain"
	"github.com/dvloznov/onebook-ledger/internal/store"
	"github.com/shopspring/decimal"
)

// InsertEntries stores a batch of entries in one transaction.
func (r *Repository) InsertEntries(ctx context.Context, rows []*store.EntryRecord) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("InsertEntries: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO ledger_entries (
			entry_id, file_id, parsing_run_id, line_no, account, entry_datetime,
			transaction_summary, counterparty, description, amount, direction,
			payment_method, status, note, category, created_ts
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("InsertEntries: prepare: %w", err)
	}
	defer stmt.Close()

	for _, rec := range rows {
		var date any
		if rec.Date != nil {
			date = rec.Date.Format(datetimeLayout)
		}
		created := rec.CreatedAt
		if created.IsZero() {
			created = time.Now()
		}
		_, err := stmt.ExecContext(ctx,
			rec.EntryID, rec.FileID, rec.ParsingRunID, rec.LineNo, rec.Account, date,
			rec.TransactionSummary, rec.Counterparty, rec.Description, rec.Amount.String(), string(rec.Direction),
			rec.PaymentMethod, rec.Status, rec.Note, string(rec.Category), created.UTC().Format(timestampLayout))
		if err != nil {
			return fmt.Errorf("InsertEntries: entry %s: %w", rec.EntryID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("InsertEntries: commit: %w", err)
	}
	return nil
}

// QueryEntriesByDateRange returns entries of successful runs dated within
// [start, end] by calendar day, oldest first.
func (r *Repository) QueryEntriesByDateRange(ctx context.Context, start, end time.Time) ([]*store.EntryRecord, error) {
	from := start.Format("2006-01-02") + " 00:00:00"
	to := end.Format("2006-01-02") + " 23:59:59"

	rows, err := r.db.QueryContext(ctx, `
		SELECT e.entry_id, e.file_id, e.parsing_run_id, e.line_no, e.account, e.entry_datetime,
		       e.transaction_summary, e.counterparty, e.description, e.amount, e.direction,
		       e.payment_method, e.status, e.note, e.category, e.created_ts
		FROM ledger_entries e
		JOIN parsing_runs pr ON e.parsing_run_id = pr.parsing_run_id
		WHERE e.entry_datetime >= ? AND e.entry_datetime <= ?
		  AND pr.status = ?
		ORDER BY e.entry_datetime, e.line_no`,
		from, to, store.RunStatusSuccess)
	if err != nil {
		return nil, fmt.Errorf("QueryEntriesByDateRange: %w", err)
	}
	defer rows.Close()

	var out []*store.EntryRecord
	for rows.Next() {
		rec, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("QueryEntriesByDateRange: scanning: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanEntry(s scanner) (*store.EntryRecord, error) {
	var (
		rec     store.EntryRecord
		date    sql.NullString
		amount  string
		dir     string
		cat     string
		created string
	)
	err := s.Scan(&rec.EntryID, &rec.FileID, &rec.ParsingRunID, &rec.LineNo, &rec.Account, &date,
		&rec.TransactionSummary, &rec.Counterparty, &rec.Description, &amount, &dir,
		&rec.PaymentMethod, &rec.Status, &rec.Note, &cat, &created)
	if err != nil {
		return nil, err
	}

	if date.Valid {
		t, err := time.Parse(datetimeLayout, date.String)
		if err != nil {
			return nil, fmt.Errorf("entry_datetime %q: %w", date.String, err)
		}
		rec.Date = &t
	}
	if rec.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("amount %q: %w", amount, err)
	}
	rec.Direction = domain.Direction(dir)
	rec.Category = domain.TransactionType(cat)
	if rec.CreatedAt, err = time.Parse(timestampLayout, created); err != nil {
		return nil, fmt.Errorf("created_ts %q: %w", created, err)
	}
	return &rec, nil
}
