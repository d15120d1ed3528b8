package bigquery

import (
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/onebook-ledger/internal/domain"
	"github.com/dvloznov/onebook-ledger/internal/store"
	"github.com/shopspring/decimal"
)

type EntryRow struct {
	EntryID string `bigquery:"entry_id"` // REQUIRED

	FileID       string             `bigquery:"file_id"`        // NULLABLE
	ParsingRunID string             `bigquery:"parsing_run_id"` // NULLABLE
	LineNo       bigquery.NullInt64 `bigquery:"line_no"`        // NULLABLE

	Account       string                `bigquery:"account"`        // NULLABLE
	EntryDatetime bigquery.NullDateTime `bigquery:"entry_datetime"` // NULLABLE, zone-less wall clock

	TransactionSummary string `bigquery:"transaction_summary"` // NULLABLE
	Counterparty       string `bigquery:"counterparty"`        // NULLABLE
	Description        string `bigquery:"description"`         // NULLABLE

	Amount *big.Rat `bigquery:"amount"` // REQUIRED NUMERIC

	Direction     bigquery.NullString `bigquery:"direction"`      // NULLABLE
	PaymentMethod string              `bigquery:"payment_method"` // NULLABLE
	Status        string              `bigquery:"status"`         // NULLABLE
	Note          string              `bigquery:"note"`           // NULLABLE
	Category      bigquery.NullString `bigquery:"category"`       // NULLABLE

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED
}

func entryToRow(rec *store.EntryRecord) *EntryRow {
	row := &EntryRow{
		EntryID:            rec.EntryID,
		FileID:             rec.FileID,
		ParsingRunID:       rec.ParsingRunID,
		LineNo:             bigquery.NullInt64{Int64: int64(rec.LineNo), Valid: rec.LineNo > 0},
		Account:            rec.Account,
		TransactionSummary: rec.TransactionSummary,
		Counterparty:       rec.Counterparty,
		Description:        rec.Description,
		Amount:             rec.Amount.Rat(),
		Direction:          bigquery.NullString{StringVal: string(rec.Direction), Valid: rec.Direction != ""},
		PaymentMethod:      rec.PaymentMethod,
		Status:             rec.Status,
		Note:               rec.Note,
		Category:           bigquery.NullString{StringVal: string(rec.Category), Valid: rec.Category != ""},
		CreatedTS:          rec.CreatedAt,
	}
	if rec.Date != nil {
		row.EntryDatetime = bigquery.NullDateTime{DateTime: civil.DateTimeOf(*rec.Date), Valid: true}
	}
	if row.CreatedTS.IsZero() {
		row.CreatedTS = time.Now()
	}
	return row
}

func (r *EntryRow) toRecord() (*store.EntryRecord, error) {
	rec := &store.EntryRecord{
		EntryID:      r.EntryID,
		FileID:       r.FileID,
		ParsingRunID: r.ParsingRunID,
		LineNo:       int(r.LineNo.Int64),
		Entry: domain.Entry{
			Account:            r.Account,
			TransactionSummary: r.TransactionSummary,
			Counterparty:       r.Counterparty,
			Description:        r.Description,
			Direction:          domain.Direction(r.Direction.StringVal),
			PaymentMethod:      r.PaymentMethod,
			Status:             r.Status,
			Note:               r.Note,
			Category:           domain.TransactionType(r.Category.StringVal),
		},
		CreatedAt: r.CreatedTS,
	}

	if r.EntryDatetime.Valid {
		t := r.EntryDatetime.DateTime.In(time.UTC)
		rec.Date = &t
	}
	if r.Amount != nil {
		amount, err := decimal.NewFromString(r.Amount.FloatString(9))
		if err != nil {
			return nil, fmt.Errorf("entry %s: amount: %w", r.EntryID, err)
		}
		rec.Amount = amount
	}
	if rec.Category == "" {
		rec.Category = domain.TypeUnknown
	}
	return rec, nil
}
