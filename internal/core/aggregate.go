package core

import "sort"

// TrendRow is the per-year sum of every numeric column.
type TrendRow struct {
	Year string
	Rows int
	Sums map[string]float64
}

// Trend is the year-grouped aggregate of a table, ordered by year label.
type Trend struct {
	Columns []string
	Rows    []TrendRow
}

// Aggregate groups t by year and sums its numeric columns. The required
// columns are always part of the aggregate, even when every cell is empty.
func Aggregate(t *Table) Trend {
	cols := t.NumericColumns()
	for _, req := range RequiredColumns {
		if t.HasColumn(req) && !contains(cols, req) {
			cols = append(cols, req)
		}
	}

	byYear := make(map[string]*TrendRow)
	for i := range t.Records {
		rec := &t.Records[i]
		row, ok := byYear[rec.Year]
		if !ok {
			row = &TrendRow{Year: rec.Year, Sums: make(map[string]float64, len(cols))}
			for _, c := range cols {
				row.Sums[c] = 0
			}
			byYear[rec.Year] = row
		}
		row.Rows++
		for _, c := range cols {
			if f, ok := rec.Cells[c].Float(); ok {
				row.Sums[c] += f
			}
		}
	}

	out := Trend{Columns: cols, Rows: make([]TrendRow, 0, len(byYear))}
	for _, row := range byYear {
		out.Rows = append(out.Rows, *row)
	}
	sort.Slice(out.Rows, func(i, j int) bool { return out.Rows[i].Year < out.Rows[j].Year })
	return out
}

// Years returns the year labels of the aggregate in order.
func (tr Trend) Years() []string {
	out := make([]string, len(tr.Rows))
	for i, r := range tr.Rows {
		out[i] = r.Year
	}
	return out
}

// Series returns the per-year sums of col, aligned with Years.
func (tr Trend) Series(col string) []float64 {
	out := make([]float64, len(tr.Rows))
	for i, r := range tr.Rows {
		out[i] = r.Sums[col]
	}
	return out
}

// Total sums col across all years.
func (tr Trend) Total(col string) float64 {
	var total float64
	for _, r := range tr.Rows {
		total += r.Sums[col]
	}
	return total
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
