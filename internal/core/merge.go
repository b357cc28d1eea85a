package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNoData means no per-year table loaded, so there is nothing to merge.
	ErrNoData = errors.New("no data loaded, please check your files")
	// ErrUnknownYear is returned when a selector names a year that is not configured.
	ErrUnknownYear = errors.New("unknown year")
)

// MissingColumnError reports a required column absent from a table.
type MissingColumnError struct {
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("The expected column '%s' is not in the dataset.", e.Column)
}

// NonNumericError reports a text cell inside a required numeric column.
type NonNumericError struct {
	Column string
	Year   string
	Row    int // 1-based data row within the year's table
	Value  string
}

func (e *NonNumericError) Error() string {
	return fmt.Sprintf("column '%s' has non-numeric value %q (year %s, row %d)", e.Column, e.Value, e.Year, e.Row)
}

// Merge concatenates tables in order. Columns are the union of all inputs in
// order of first appearance; cells missing from a table stay empty.
func Merge(tables []*Table) (*Table, error) {
	if len(tables) == 0 {
		return nil, ErrNoData
	}

	out := &Table{}
	seen := make(map[string]bool)
	size := 0
	for _, t := range tables {
		size += t.Len()
		for _, col := range t.Columns {
			if !seen[col] {
				seen[col] = true
				out.Columns = append(out.Columns, col)
			}
		}
	}

	out.Records = make([]Record, 0, size)
	for _, t := range tables {
		out.Records = append(out.Records, t.Records...)
	}
	return out, nil
}

// RequireColumns checks that every named column exists in t.
func RequireColumns(t *Table, columns ...string) error {
	for _, col := range columns {
		if !t.HasColumn(col) {
			return &MissingColumnError{Column: col}
		}
	}
	return nil
}

// ValidateColumns checks the unified table invariant: both required columns
// are present and hold only numbers or empty cells, and every row has a year.
func ValidateColumns(t *Table) error {
	if err := RequireColumns(t, RequiredColumns...); err != nil {
		return err
	}

	rowInYear := make(map[string]int)
	for i := range t.Records {
		rec := &t.Records[i]
		if rec.Year == "" {
			return fmt.Errorf("row %d has no year tag", i+1)
		}
		rowInYear[rec.Year]++
		for _, col := range RequiredColumns {
			if v := rec.Cells[col]; v.Kind == KindText {
				return &NonNumericError{Column: col, Year: rec.Year, Row: rowInYear[rec.Year], Value: v.Text}
			}
		}
	}
	return nil
}
