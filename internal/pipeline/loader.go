package pipeline

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/htmlindex"
)

// Format is the container format of a bill file.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatXLS  Format = "xls"
)

// RawRow maps a header column name to the cell text of one data row.
type RawRow map[string]string

// LoadErrorKind classifies a file-level load failure.
type LoadErrorKind int

const (
	NotFound LoadErrorKind = iota + 1
	Malformed
	EncodingFailure
	UnsupportedFormat
)

func (k LoadErrorKind) String() string {
	switch k {
	case NotFound:
		return "not found"
	case Malformed:
		return "malformed"
	case EncodingFailure:
		return "encoding failure"
	case UnsupportedFormat:
		return "unsupported format"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is matching against a *LoadError.
var (
	ErrNotFound          = errors.New("file not found")
	ErrMalformed         = errors.New("malformed file")
	ErrEncoding          = errors.New("undecodable content")
	ErrUnsupportedFormat = errors.New("unsupported file format")
)

// LoadError is returned for any failure that aborts loading a whole file.
type LoadError struct {
	Kind LoadErrorKind
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("load %s: %s: %v", e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("load %s: %s", e.Path, e.Kind)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Is matches the kind sentinels, so errors.Is(err, ErrNotFound) works.
func (e *LoadError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Kind == NotFound
	case ErrMalformed:
		return e.Kind == Malformed
	case ErrEncoding:
		return e.Kind == EncodingFailure
	case ErrUnsupportedFormat:
		return e.Kind == UnsupportedFormat
	}
	return false
}

// FormatFromPath selects a Format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	case ".xls":
		return FormatXLS, nil
	}
	return "", &LoadError{Kind: UnsupportedFormat, Path: path, Err: fmt.Errorf("extension %q", filepath.Ext(path))}
}

// Load reads a tabular file, skips the first skip rows, takes the next row as
// the header and returns one RawRow per remaining non-blank row. For CSV the
// skipped rows are physical lines of the decoded text, blank lines included,
// so skip agrees with DetectHeaderSkip. encoding is only used for CSV.
// Nothing is returned on failure.
func Load(path string, format Format, encoding string, skip int) ([]RawRow, error) {
	if format != FormatCSV {
		records, err := readRecords(path, format)
		if err != nil {
			return nil, err
		}
		return buildRows(path, records, skip)
	}

	text, err := readText(path, encoding)
	if err != nil {
		return nil, err
	}
	body, ok := skipLines(text, skip)
	if !ok {
		return nil, &LoadError{Kind: Malformed, Path: path, Err: fmt.Errorf("no header row after skipping %d lines", skip)}
	}
	records, err := parseCSV(path, body)
	if err != nil {
		return nil, err
	}
	return buildRows(path, records, 0)
}

// skipLines drops the first n newline-terminated lines of text. It reports
// false when text has no content left after them.
func skipLines(text string, n int) (string, bool) {
	for i := 0; i < n; i++ {
		nl := strings.IndexByte(text, '\n')
		if nl < 0 {
			return "", false
		}
		text = text[nl+1:]
	}
	return text, strings.TrimSpace(text) != ""
}

// readRecords returns every row of a spreadsheet, preamble included. CSV is
// read line-wise by Load.
func readRecords(path string, format Format) ([][]string, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &LoadError{Kind: NotFound, Path: path, Err: err}
		}
		return nil, &LoadError{Kind: Malformed, Path: path, Err: err}
	}

	switch format {
	case FormatXLSX:
		return readXLSX(path)
	case FormatXLS:
		return readXLS(path)
	}
	return nil, &LoadError{Kind: UnsupportedFormat, Path: path, Err: fmt.Errorf("format %q", format)}
}

// readText decodes the whole file to UTF-8 text.
func readText(path, encoding string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", &LoadError{Kind: NotFound, Path: path, Err: err}
		}
		return "", &LoadError{Kind: Malformed, Path: path, Err: err}
	}

	text, err := decode(raw, encoding)
	if err != nil {
		return "", &LoadError{Kind: EncodingFailure, Path: path, Err: err}
	}
	return text, nil
}

func decode(raw []byte, encoding string) (string, error) {
	name := NormalizeEncoding(encoding)
	if name == "" {
		name = DefaultEncoding
	}

	if strings.EqualFold(name, "utf-8") {
		raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))
		if !utf8.Valid(raw) {
			return "", fmt.Errorf("content is not valid utf-8")
		}
		return string(raw), nil
	}

	enc, err := htmlindex.Get(name)
	if err != nil {
		return "", fmt.Errorf("encoding %q: %w", encoding, err)
	}
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("decode as %s: %w", name, err)
	}
	if bytes.ContainsRune(out, utf8.RuneError) {
		return "", fmt.Errorf("content is not valid %s", name)
	}
	return string(bytes.TrimPrefix(out, []byte("\xef\xbb\xbf"))), nil
}

func parseCSV(path, text string) ([][]string, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, &LoadError{Kind: Malformed, Path: path, Err: err}
	}
	return records, nil
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, &LoadError{Kind: Malformed, Path: path, Err: err}
	}
	defer f.Close()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, &LoadError{Kind: Malformed, Path: path, Err: fmt.Errorf("sheet %q: %w", sheet, err)}
	}
	return rows, nil
}

func readXLS(path string) (records [][]string, err error) {
	// The BIFF reader panics on some truncated workbooks.
	defer func() {
		if r := recover(); r != nil {
			records = nil
			err = &LoadError{Kind: Malformed, Path: path, Err: fmt.Errorf("xls reader: %v", r)}
		}
	}()

	wb, err := xls.Open(path, "utf-8")
	if err != nil {
		return nil, &LoadError{Kind: Malformed, Path: path, Err: err}
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, &LoadError{Kind: Malformed, Path: path, Err: fmt.Errorf("workbook has no sheets")}
	}

	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			records = append(records, nil)
			continue
		}
		cells := make([]string, 0, row.LastCol())
		for c := 0; c < row.LastCol(); c++ {
			cells = append(cells, row.Col(c))
		}
		records = append(records, cells)
	}
	return records, nil
}

// buildRows turns records into RawRows using the row after the skipped
// preamble as header. Header names and values are whitespace-trimmed and
// fully blank rows are dropped.
func buildRows(path string, records [][]string, skip int) ([]RawRow, error) {
	if skip < 0 {
		skip = 0
	}
	if skip >= len(records) {
		return nil, &LoadError{Kind: Malformed, Path: path, Err: fmt.Errorf("no header row after skipping %d rows", skip)}
	}

	header := make([]string, len(records[skip]))
	for i, h := range records[skip] {
		header[i] = strings.TrimSpace(h)
	}
	if nonEmptyCount(header) == 0 {
		return nil, &LoadError{Kind: Malformed, Path: path, Err: fmt.Errorf("empty header row at index %d", skip)}
	}

	rows := make([]RawRow, 0, len(records)-skip-1)
	for _, rec := range records[skip+1:] {
		if nonEmptyCount(rec) == 0 {
			continue
		}
		row := make(RawRow, len(header))
		for i, name := range header {
			if name == "" || i >= len(rec) {
				continue
			}
			if _, dup := row[name]; dup {
				continue
			}
			row[name] = strings.TrimSpace(rec[i])
		}
		rows = append(rows, row)
	}
	return rows, nil
}
