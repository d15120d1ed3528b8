package pipeline

import (
	"fmt"
	"sort"
)

// Transform converts one raw cell into a canonical field value. It is a
// closed set: Identity, Func and Lookup are its only implementations.
type Transform interface {
	isTransform()
}

// Identity copies the raw cell unchanged. A nil Transform behaves the same.
type Identity struct{}

// Func derives a value from the raw cell. Returning (nil, nil) leaves the
// target field unset; returning an error fails the whole row.
type Func func(raw string) (any, error)

// Lookup replaces known raw values; unknown values pass through unchanged.
type Lookup map[string]string

func (Identity) isTransform() {}
func (Func) isTransform()     {}
func (Lookup) isTransform()   {}

// ColumnRule maps one source column onto one canonical field.
type ColumnRule struct {
	Source    string
	Target    string
	Transform Transform
}

// ColumnMapping is applied in order; a later rule for the same target wins.
type ColumnMapping []ColumnRule

// SourceColumns returns the distinct source columns in rule order.
func (m ColumnMapping) SourceColumns() []string {
	seen := make(map[string]bool, len(m))
	var cols []string
	for _, rule := range m {
		if !seen[rule.Source] {
			seen[rule.Source] = true
			cols = append(cols, rule.Source)
		}
	}
	return cols
}

// Row is a partially built entry keyed by canonical field name.
type Row map[string]any

// RowError records a row dropped because one of its transforms failed.
type RowError struct {
	Index  int
	Column string
	Err    error
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d column %q: %v", e.Index, e.Column, e.Err)
}

func (e RowError) Unwrap() error { return e.Err }

// ApplyMapping transforms every raw row through mapping and then merges
// constants, which overwrite mapped values. Rules whose source column is
// missing from a row are skipped. A row whose transform fails is left out of
// the result and reported instead; the remaining rows are unaffected.
func ApplyMapping(rows []RawRow, mapping ColumnMapping, constants map[string]any) ([]Row, []RowError) {
	out := make([]Row, 0, len(rows))
	var failures []RowError

	for i, raw := range rows {
		row, err := mapRow(raw, mapping)
		if err != nil {
			err.Index = i
			failures = append(failures, *err)
			continue
		}
		for field, v := range constants {
			row[field] = v
		}
		out = append(out, row)
	}
	return out, failures
}

func mapRow(raw RawRow, mapping ColumnMapping) (Row, *RowError) {
	row := make(Row, len(mapping))
	for _, rule := range mapping {
		cell, ok := raw[rule.Source]
		if !ok {
			continue
		}
		v, err := applyTransform(rule.Transform, cell)
		if err != nil {
			return nil, &RowError{Column: rule.Source, Err: err}
		}
		if v == nil {
			continue
		}
		row[rule.Target] = v
	}
	return row, nil
}

func applyTransform(t Transform, cell string) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			v, err = nil, fmt.Errorf("transform panicked: %v", r)
		}
	}()

	switch tr := t.(type) {
	case nil, Identity:
		return cell, nil
	case Func:
		if tr == nil {
			return cell, nil
		}
		return tr(cell)
	case Lookup:
		if mapped, ok := tr[cell]; ok {
			return mapped, nil
		}
		return cell, nil
	default:
		return nil, fmt.Errorf("unsupported transform %T", t)
	}
}

// MissingColumns returns the mapping's source columns that appear in none of
// the rows, sorted. A column is not reported when another rule fills the same
// target from a column that is present, so alternative spellings of one
// column across export versions stay quiet.
func MissingColumns(rows []RawRow, mapping ColumnMapping) []string {
	present := make(map[string]bool)
	for _, r := range rows {
		for col := range r {
			present[col] = true
		}
	}

	filled := make(map[string]bool)
	for _, rule := range mapping {
		if present[rule.Source] {
			filled[rule.Target] = true
		}
	}

	seen := make(map[string]bool)
	var missing []string
	for _, rule := range mapping {
		if present[rule.Source] || filled[rule.Target] || seen[rule.Source] {
			continue
		}
		seen[rule.Source] = true
		missing = append(missing, rule.Source)
	}
	sort.Strings(missing)
	return missing
}
