// Package core holds the APBN table model and the pure pipeline steps that run
// over it: merge, column validation, filtering and per-year aggregation.
package core

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// Column names the dashboard depends on. Headers are compared after trimming.
const (
	RevenueColumn     = "Realisasi Keuangan (Rp)"
	ExpenditureColumn = "Anggaran (Rp)"
	YearColumn        = "Year"

	// AllYears is the selector label that disables the year filter.
	AllYears = "Semua"
)

// RequiredColumns lists the numeric columns every unified table must carry,
// in the order they are checked.
var RequiredColumns = []string{RevenueColumn, ExpenditureColumn}

type Kind uint8

const (
	KindEmpty Kind = iota
	KindNumber
	KindText
)

// Value is a single spreadsheet cell. The zero Value is empty.
type Value struct {
	Kind Kind
	Num  float64
	Text string
}

func Number(f float64) Value { return Value{Kind: KindNumber, Num: f} }

func Text(s string) Value { return Value{Kind: KindText, Text: s} }

// ParseValue classifies a raw cell as read from a source.
func ParseValue(raw string) Value {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Value{}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return Text(s)
	}
	return Number(f)
}

// Float returns the numeric value and whether the cell holds a number.
func (v Value) Float() (float64, bool) {
	return v.Num, v.Kind == KindNumber
}

func (v Value) String() string {
	switch v.Kind {
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case KindText:
		return v.Text
	default:
		return ""
	}
}

// Record is one source row tagged with the year label it was loaded for.
type Record struct {
	Year  string
	Cells map[string]Value
}

// Get returns the cell for col; YearColumn resolves to the year tag.
func (r *Record) Get(col string) Value {
	if col == YearColumn {
		if r.Year == "" {
			return Value{}
		}
		return Text(r.Year)
	}
	return r.Cells[col]
}

// Table is an ordered set of columns and records. Tables handed out by the
// loader are never mutated afterwards.
type Table struct {
	Columns []string
	Records []Record
}

// NewTable builds a table from a raw matrix whose first row is the header.
// Headers are trimmed and blank headers get positional names. A repeated name
// gets a ".1", ".2" suffix so no column is lost. Fully blank rows are skipped.
func NewTable(rows [][]string) *Table {
	t := &Table{}
	if len(rows) == 0 {
		return t
	}

	header := rows[0]
	width := len(header)
	for _, row := range rows[1:] {
		if len(row) > width {
			width = len(row)
		}
	}

	names := make([]string, width)
	seen := make(map[string]bool, width)
	for i := 0; i < width; i++ {
		name := ""
		if i < len(header) {
			name = strings.TrimSpace(header[i])
		}
		if name == "" {
			name = "Unnamed: " + strconv.Itoa(i)
		}
		if seen[name] {
			base := name
			for k := 1; seen[name]; k++ {
				name = base + "." + strconv.Itoa(k)
			}
		}
		seen[name] = true
		names[i] = name
		t.Columns = append(t.Columns, name)
	}

	for _, row := range rows[1:] {
		cells := make(map[string]Value, len(t.Columns))
		blank := true
		for i, raw := range row {
			v := ParseValue(raw)
			if v.Kind != KindEmpty {
				blank = false
				cells[names[i]] = v
			}
		}
		if blank {
			continue
		}
		t.Records = append(t.Records, Record{Cells: cells})
	}
	return t
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Records)
}

func (t *Table) HasColumn(name string) bool {
	if t == nil {
		return false
	}
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// TagYear stamps every record with year and appends the Year column.
func (t *Table) TagYear(year string) {
	for i := range t.Records {
		t.Records[i].Year = year
	}
	if !t.HasColumn(YearColumn) {
		t.Columns = append(t.Columns, YearColumn)
	}
}

// NumericColumns returns the columns holding at least one number and no text,
// in table order. The Year column is never numeric.
func (t *Table) NumericColumns() []string {
	var out []string
	for _, col := range t.Columns {
		if col == YearColumn {
			continue
		}
		numbers := 0
		text := false
		for i := range t.Records {
			switch t.Records[i].Cells[col].Kind {
			case KindNumber:
				numbers++
			case KindText:
				text = true
			}
			if text {
				break
			}
		}
		if numbers > 0 && !text {
			out = append(out, col)
		}
	}
	return out
}

// Years returns the distinct year tags in ascending label order.
func (t *Table) Years() []string {
	seen := make(map[string]bool)
	var out []string
	for i := range t.Records {
		y := t.Records[i].Year
		if y != "" && !seen[y] {
			seen[y] = true
			out = append(out, y)
		}
	}
	sort.Strings(out)
	return out
}
