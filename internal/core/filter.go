package core

// View is a non-owning selection of records from a Table. Filters return new
// views and never touch the underlying table.
type View struct {
	Columns []string
	Records []*Record
}

// Filter carries the dashboard inputs that narrow the unified table.
type Filter struct {
	Year       string
	MinRevenue float64
}

// All returns a view over every record of t.
func (t *Table) All() View {
	v := View{Columns: t.Columns, Records: make([]*Record, len(t.Records))}
	for i := range t.Records {
		v.Records[i] = &t.Records[i]
	}
	return v
}

// ByYear keeps the records tagged with year. AllYears and "" are the identity.
func (v View) ByYear(year string) View {
	if year == "" || year == AllYears {
		return v
	}
	out := View{Columns: v.Columns}
	for _, r := range v.Records {
		if r.Year == year {
			out.Records = append(out.Records, r)
		}
	}
	return out
}

// MinRevenue keeps records whose revenue is a number >= min. Records with an
// empty revenue cell never pass.
func (v View) MinRevenue(min float64) View {
	out := View{Columns: v.Columns}
	for _, r := range v.Records {
		if f, ok := r.Cells[RevenueColumn].Float(); ok && f >= min {
			out.Records = append(out.Records, r)
		}
	}
	return out
}

// Apply runs the year filter followed by the revenue threshold.
func Apply(t *Table, f Filter) View {
	return t.All().ByYear(f.Year).MinRevenue(f.MinRevenue)
}

func (v View) Len() int { return len(v.Records) }

// Sum adds the numeric cells of col; empty and text cells count as zero.
func (v View) Sum(col string) float64 {
	var total float64
	for _, r := range v.Records {
		if f, ok := r.Cells[col].Float(); ok {
			total += f
		}
	}
	return total
}

// Max returns the largest numeric value of col and whether one exists.
func (v View) Max(col string) (float64, bool) {
	var (
		max   float64
		found bool
	)
	for _, r := range v.Records {
		f, ok := r.Cells[col].Float()
		if !ok {
			continue
		}
		if !found || f > max {
			max = f
			found = true
		}
	}
	return max, found
}

// SliderMax is the upper bound of the revenue slider: the integer part of the
// largest revenue in t, never below zero.
func SliderMax(t *Table) int64 {
	max, ok := t.All().Max(RevenueColumn)
	if !ok || max < 0 {
		return 0
	}
	return int64(max)
}
