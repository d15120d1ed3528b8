package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/dvloznov/onebook-ledger/internal/domain"
	"github.com/dvloznov/onebook-ledger/internal/logger"
	"github.com/shopspring/decimal"
)

// AutoSkip asks Parse to detect the number of preamble rows.
const AutoSkip = -1

// SourceConfig describes how one producer's export maps onto ledger entries.
// Values are shared read-only across goroutines.
type SourceConfig struct {
	// Name identifies the producer in logs and provenance records.
	Name string

	// Encoding of CSV exports; empty means detect from content.
	Encoding string

	// HeaderSkip is the number of rows before the header, or AutoSkip.
	HeaderSkip int

	Mapping   ColumnMapping
	Constants map[string]any

	// Derive, when set, post-processes each mapped row before the entry is
	// built. It must not retain the row.
	Derive func(Row) Row
}

// Parse loads path and turns every data row into a ledger entry using cfg.
// Rows whose transforms fail are skipped and logged; a file that cannot be
// loaded yields no entries and an error. Parse never panics.
func Parse(ctx context.Context, path string, cfg SourceConfig) (entries []domain.Entry, err error) {
	log := logger.FromContext(ctx).With().Str("source", cfg.Name).Str("path", path).Logger()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("stage", "parse").Msg("Parse: recovered from panic")
			entries, err = nil, fmt.Errorf("Parse: %s: unexpected failure: %v", path, r)
		}
	}()

	format, err := FormatFromPath(path)
	if err != nil {
		log.Error().Err(err).Str("stage", "format").Msg("Parse: unsupported file")
		return nil, err
	}

	encoding, skip, err := resolveLayout(ctx, path, format, cfg)
	if err != nil {
		log.Error().Err(err).Str("stage", "detect").Msg("Parse: layout detection failed")
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := Load(path, format, encoding, skip)
	if err != nil {
		log.Error().Err(err).Str("stage", "load").Msg("Parse: load failed")
		return nil, err
	}

	loaded := len(raw)
	raw, trailers := dropTrailers(raw)
	for _, line := range trailers {
		log.Warn().Str("line", line).Msg("Parse: dropping trailer row")
	}

	if missing := MissingColumns(raw, cfg.Mapping); len(missing) > 0 && len(raw) > 0 {
		log.Warn().Strs("columns", missing).Msg("Parse: mapped columns absent from file")
	}

	rows, failures := ApplyMapping(raw, cfg.Mapping, cfg.Constants)
	for _, f := range failures {
		log.Warn().Err(f.Err).Int("row", f.Index).Str("column", f.Column).Msg("Parse: skipping row")
	}

	entries = make([]domain.Entry, 0, len(rows))
	for _, row := range rows {
		if cfg.Derive != nil {
			row = cfg.Derive(row)
		}
		entries = append(entries, EntryFromRow(row))
	}

	log.Info().
		Str("encoding", encoding).
		Int("skip", skip).
		Int("rows", loaded).
		Int("entries", len(entries)).
		Int("trailers", len(trailers)).
		Int("skipped", len(failures)).
		Msg("Parse: file parsed")

	return entries, nil
}

// resolveLayout fills in the encoding and header skip that cfg leaves to
// detection.
func resolveLayout(ctx context.Context, path string, format Format, cfg SourceConfig) (string, int, error) {
	log := logger.FromContext(ctx)
	encoding, skip := cfg.Encoding, cfg.HeaderSkip

	if format != FormatCSV {
		if skip != AutoSkip {
			return encoding, skip, nil
		}
		records, err := readRecords(path, format)
		if err != nil {
			return "", 0, err
		}
		guess := DetectHeaderSkipRows(records, MaxHeaderScan)
		warnGuess(ctx, path, guess)
		return encoding, guess.Skip, nil
	}

	if encoding == "" {
		sample, err := readPrefix(path, 64*1024)
		if err != nil {
			return "", 0, err
		}
		if detected, ok := DetectEncoding(sample); ok {
			encoding = detected
		} else {
			encoding = DefaultEncoding
		}
		log.Debug().Str("path", path).Str("encoding", encoding).Msg("resolveLayout: detected encoding")
	}

	if skip == AutoSkip {
		text, err := readText(path, encoding)
		if err != nil {
			return "", 0, err
		}
		guess := DetectHeaderSkip(strings.NewReader(text), MaxHeaderScan)
		warnGuess(ctx, path, guess)
		skip = guess.Skip
	}

	return encoding, skip, nil
}

// Layout is the detected shape of a bill file.
type Layout struct {
	Format    Format `json:"format"`
	Encoding  string `json:"encoding,omitempty"`
	Skip      int    `json:"skip"`
	Confident bool   `json:"confident"`
}

// DetectLayout reports the format, the encoding (CSV only) and the header
// row guess for path without mapping any rows.
func DetectLayout(path string) (Layout, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return Layout{}, err
	}
	out := Layout{Format: format}

	if format != FormatCSV {
		records, err := readRecords(path, format)
		if err != nil {
			return Layout{}, err
		}
		guess := DetectHeaderSkipRows(records, MaxHeaderScan)
		out.Skip, out.Confident = guess.Skip, guess.Confident
		return out, nil
	}

	sample, err := readPrefix(path, 64*1024)
	if err != nil {
		return Layout{}, err
	}
	out.Encoding = DefaultEncoding
	if detected, ok := DetectEncoding(sample); ok {
		out.Encoding = detected
	}

	text, err := readText(path, out.Encoding)
	if err != nil {
		return Layout{}, err
	}
	guess := DetectHeaderSkip(strings.NewReader(text), MaxHeaderScan)
	out.Skip, out.Confident = guess.Skip, guess.Confident
	return out, nil
}

// trailerLine matches the separator, count and footnote lines that payment
// exports append after the data block.
var trailerLine = regexp.MustCompile(`^(?:.*[-=]{5,}.*|共\s*\d+\s*笔.*|(?:导出时间|用户|注)\s*[:：].*)$`)

// dropTrailers removes rows whose only filled cell matches trailerLine and
// returns the removed text. Any other row is kept, however sparse.
func dropTrailers(rows []RawRow) ([]RawRow, []string) {
	out := rows[:0]
	var dropped []string
	for _, r := range rows {
		if line, ok := soleValue(r); ok && trailerLine.MatchString(line) {
			dropped = append(dropped, line)
			continue
		}
		out = append(out, r)
	}
	return out, dropped
}

func soleValue(r RawRow) (string, bool) {
	var only string
	filled := 0
	for _, v := range r {
		if v != "" {
			only = v
			filled++
		}
	}
	return only, filled == 1
}

func warnGuess(ctx context.Context, path string, guess HeaderGuess) {
	if guess.Confident {
		return
	}
	log := logger.FromContext(ctx)
	log.Warn().Str("path", path).Int("skip", guess.Skip).Msg("header row guess is uncertain")
}

func readPrefix(path string, n int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &LoadError{Kind: NotFound, Path: path, Err: err}
		}
		return nil, &LoadError{Kind: Malformed, Path: path, Err: err}
	}
	defer f.Close()

	buf := make([]byte, n)
	read, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, &LoadError{Kind: Malformed, Path: path, Err: err}
	}
	return buf[:read], nil
}

// EntryFromRow builds a ledger entry from canonical field values. Text
// values are parsed where the field is typed. A missing direction is derived
// from the amount and a missing category comes from Classify on the summary.
func EntryFromRow(row Row) domain.Entry {
	e := domain.Entry{
		Account:            stringField(row, domain.FieldAccount),
		TransactionSummary: stringField(row, domain.FieldTransactionSummary),
		Counterparty:       stringField(row, domain.FieldCounterparty),
		Description:        stringField(row, domain.FieldDescription),
		PaymentMethod:      stringField(row, domain.FieldPaymentMethod),
		Status:             stringField(row, domain.FieldStatus),
		Note:               stringField(row, domain.FieldNote),
		Amount:             amountField(row),
	}

	if v, ok := row[domain.FieldDate]; ok {
		if t, ok := ParseDateTime(v, ""); ok {
			e.Date = &t
		}
	}

	switch v := row[domain.FieldDirection].(type) {
	case domain.Direction:
		e.Direction = v
	case string:
		e.Direction = domain.ParseDirection(v)
	default:
		e.Direction = DirectionFromAmount(e.Amount)
	}

	switch v := row[domain.FieldCategory].(type) {
	case domain.TransactionType:
		e.Category = v
	case string:
		if t, ok := domain.ParseTransactionType(v); ok {
			e.Category = t
		} else {
			e.Category = Classify(e.TransactionSummary)
		}
	default:
		e.Category = Classify(e.TransactionSummary)
	}

	return e
}

func stringField(row Row, field string) string {
	switch v := row[field].(type) {
	case nil:
		return ""
	case string:
		return v
	case time.Time:
		return v.Format(DefaultDateLayout)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func amountField(row Row) decimal.Decimal {
	switch v := row[domain.FieldAmount].(type) {
	case decimal.Decimal:
		return v
	case string:
		return ParseAmount(v)
	case float64:
		return decimal.NewFromFloat(v)
	case int:
		return decimal.NewFromInt(int64(v))
	case int64:
		return decimal.NewFromInt(v)
	default:
		return decimal.Zero
	}
}
