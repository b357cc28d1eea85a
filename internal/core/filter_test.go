package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fiveYears mirrors the reference dataset: five years of ten rows each, with
// revenue summing to 100 per year.
func fiveYears(t *testing.T) *Table {
	t.Helper()
	var tables []*Table
	for _, y := range []string{"2012", "2013", "2014", "2015", "2016"} {
		revenues := make([]float64, 10)
		for i := range revenues {
			revenues[i] = 10
		}
		tables = append(tables, yearTable(y, revenues...))
	}
	merged, err := Merge(tables)
	require.NoError(t, err)
	require.NoError(t, ValidateColumns(merged))
	return merged
}

func TestReferenceDataset(t *testing.T) {
	tbl := fiveYears(t)
	require.Equal(t, 50, tbl.Len())

	view := Apply(tbl, Filter{Year: "2014"})
	assert.Equal(t, 10, view.Len())
	assert.Equal(t, "Rp 100", FormatRupiah(view.Sum(RevenueColumn)))

	max := SliderMax(tbl)
	assert.Equal(t, int64(10), max)
	view = Apply(tbl, Filter{Year: AllYears, MinRevenue: float64(max) + 1})
	assert.Equal(t, 0, view.Len())
}

func TestYearFilterRoundTrip(t *testing.T) {
	tbl := fiveYears(t)
	all := tbl.All()

	narrowed := Apply(tbl, Filter{Year: "2013"})
	assert.Equal(t, 10, narrowed.Len())

	back := Apply(tbl, Filter{Year: AllYears})
	require.Equal(t, all.Len(), back.Len())
	for i := range all.Records {
		assert.Same(t, all.Records[i], back.Records[i])
	}
}

func TestYearFilterUnknownYearIsEmpty(t *testing.T) {
	tbl := fiveYears(t)
	assert.Equal(t, 0, tbl.All().ByYear("1999").Len())
}

func TestMinRevenueMonotonic(t *testing.T) {
	tbl := NewTable([][]string{
		{RevenueColumn, ExpenditureColumn},
		{"0", "1"},
		{"5", "1"},
		{"5", "1"},
		{"12.5", "1"},
		{"", "1"},
		{"100", "1"},
	})
	tbl.TagYear("2012")

	prev := tbl.Len() + 1
	for _, min := range []float64{0, 1, 5, 5.1, 12.5, 50, 100, 101} {
		n := Apply(tbl, Filter{MinRevenue: min}).Len()
		assert.LessOrEqual(t, n, prev, "threshold %v", min)
		prev = n
	}
}

func TestMinRevenueInclusiveAndSkipsEmpty(t *testing.T) {
	tbl := NewTable([][]string{
		{RevenueColumn, ExpenditureColumn},
		{"5", "1"},
		{"", "1"},
		{"4.99", "1"},
	})
	tbl.TagYear("2012")

	assert.Equal(t, 2, Apply(tbl, Filter{MinRevenue: 0}).Len(), "empty revenue never passes")
	assert.Equal(t, 1, Apply(tbl, Filter{MinRevenue: 5}).Len())
}

func TestFiltersDoNotMutateTable(t *testing.T) {
	tbl := fiveYears(t)
	before := tbl.Len()
	_ = Apply(tbl, Filter{Year: "2012", MinRevenue: 11})
	assert.Equal(t, before, tbl.Len())
}

func TestSliderMax(t *testing.T) {
	tbl := NewTable([][]string{{RevenueColumn}, {"10.9"}, {"3"}})
	tbl.TagYear("2012")
	assert.Equal(t, int64(10), SliderMax(tbl))

	neg := NewTable([][]string{{RevenueColumn}, {"-4"}})
	neg.TagYear("2012")
	assert.Equal(t, int64(0), SliderMax(neg))

	empty := NewTable([][]string{{RevenueColumn}, {""}})
	assert.Equal(t, int64(0), SliderMax(empty))
}
