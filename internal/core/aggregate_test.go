package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregateOrdersYearsLexically(t *testing.T) {
	merged, err := Merge([]*Table{
		yearTable("2016", 1),
		yearTable("2012", 2, 3),
		yearTable("2014", 4),
	})
	require.NoError(t, err)

	trend := Aggregate(merged)
	assert.Equal(t, []string{"2012", "2014", "2016"}, trend.Years())
	assert.Equal(t, []float64{5, 4, 1}, trend.Series(RevenueColumn))
	assert.Equal(t, []float64{10, 8, 2}, trend.Series(ExpenditureColumn))
	assert.Equal(t, 2, trend.Rows[0].Rows)
}

func TestAggregateIsAdditive(t *testing.T) {
	merged, err := Merge([]*Table{
		yearTable("2012", 1.5, 2.25),
		yearTable("2013", 7),
		yearTable("2014", 0.125, 1000),
	})
	require.NoError(t, err)

	trend := Aggregate(merged)
	for _, col := range RequiredColumns {
		all := merged.All().Sum(col)
		assert.InDelta(t, all, trend.Total(col), 1e-9, col)

		var perYear float64
		for _, y := range merged.Years() {
			perYear += merged.All().ByYear(y).Sum(col)
		}
		assert.InDelta(t, all, perYear, 1e-9, col)
	}
}

func TestAggregateSkipsTextColumns(t *testing.T) {
	merged, err := Merge([]*Table{yearTable("2012", 1)})
	require.NoError(t, err)

	trend := Aggregate(merged)
	assert.NotContains(t, trend.Columns, "Satker")
	assert.NotContains(t, trend.Columns, YearColumn)
	assert.Contains(t, trend.Columns, RevenueColumn)
}

func TestAggregateKeepsEmptyRequiredColumns(t *testing.T) {
	tbl := NewTable([][]string{{"Satker", RevenueColumn, ExpenditureColumn}, {"a", "", ""}})
	tbl.TagYear("2012")

	trend := Aggregate(tbl)
	require.Len(t, trend.Rows, 1)
	assert.Equal(t, 0.0, trend.Rows[0].Sums[RevenueColumn])
	assert.Contains(t, trend.Columns, ExpenditureColumn)
}
