package view

import (
	"encoding/json"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apbn/internal/core"
	"apbn/internal/loader"
	"apbn/internal/services"
)

var years = []string{"2012", "2013", "2014", "2015", "2016"}

// dataset builds five years of ten rows each; row i of a year has revenue
// i+1 and budget 2*(i+1), so each year sums to 55 revenue and 110 budget.
func dataset(t *testing.T) *services.Dataset {
	t.Helper()
	var results []loader.Result
	var tables []*core.Table
	for _, y := range years {
		rows := [][]string{{"Satker", core.RevenueColumn, core.ExpenditureColumn}}
		for i := 1; i <= 10; i++ {
			rows = append(rows, []string{"unit-" + strconv.Itoa(i), strconv.Itoa(i), strconv.Itoa(2 * i)})
		}
		tbl := core.NewTable(rows)
		tbl.TagYear(y)
		tables = append(tables, tbl)
		results = append(results, loader.Result{Source: loader.Source{Year: y, Location: y + ".xlsx"}, Table: tbl})
	}
	merged, err := core.Merge(tables)
	require.NoError(t, err)
	require.NoError(t, core.ValidateColumns(merged))
	return &services.Dataset{RunID: "run-1", Years: years, Results: results, Table: merged}
}

func TestBuildAllYears(t *testing.T) {
	d := Build(dataset(t), Inputs{})

	require.True(t, d.OK())
	assert.Equal(t, core.AllYears, d.Inputs.Year)
	assert.Equal(t, append([]string{core.AllYears}, years...), d.YearOptions)
	assert.Equal(t, "Rp 275", d.Metrics[0].Value)
	assert.Equal(t, "Rp 550", d.Metrics[1].Value)
	assert.Equal(t, MetricRevenue, d.Metrics[0].Label)

	assert.Equal(t, years, d.Line.Labels)
	assert.Equal(t, []float64{55, 55, 55, 55, 55}, d.Line.Values)
	assert.Equal(t, []float64{110, 110, 110, 110, 110}, d.Bar.Values)
	assert.Equal(t, AxisYear, d.Bar.XLabel)
	assert.Equal(t, core.ExpenditureColumn, d.Bar.YLabel)

	assert.Nil(t, d.Pie)
	assert.Equal(t, PieHint, d.PieHint)
	assert.Equal(t, 50, d.YearTable.Total)
	assert.Equal(t, 50, d.FilteredCount)
	assert.Equal(t, "Data setelah filter: 50 baris", d.FilteredTable.Title)
	assert.Nil(t, d.RawTable)
	assert.Equal(t, Slider{Min: 0, Max: 10, Value: 0}, d.Slider)
	assert.Equal(t, []string{"Satker", core.RevenueColumn, core.ExpenditureColumn, core.YearColumn}, d.Columns)
}

func TestBuildSingleYearWithThreshold(t *testing.T) {
	d := Build(dataset(t), Inputs{Year: "2014", MinRevenue: 8, ShowRaw: true})

	assert.Equal(t, 10, d.YearTable.Total)
	assert.Equal(t, 3, d.FilteredCount)
	assert.Equal(t, "Rp 27", d.Metrics[0].Value)
	assert.Equal(t, "Rp 54", d.Metrics[1].Value)

	// Trend charts always cover the whole unified table.
	assert.Len(t, d.Line.Values, 5)

	require.NotNil(t, d.Pie)
	assert.Equal(t, "Komposisi Realisasi Keuangan dan Anggaran Tahun 2014", d.Pie.Heading)
	assert.Equal(t, []string{"33.3%", "66.7%"}, d.Pie.Shares)
	assert.Empty(t, d.PieHint)

	require.NotNil(t, d.RawTable)
	assert.Equal(t, 50, d.RawTable.Total)
	assert.Equal(t, []string{"unit-8", "8", "16", "2014"}, d.FilteredTable.Rows[0])
}

func TestBuildUnknownYearFallsBack(t *testing.T) {
	d := Build(dataset(t), Inputs{Year: "1999"})
	assert.True(t, d.YearFallback)
	assert.Equal(t, "1999", d.RequestedYear)
	assert.Equal(t, core.AllYears, d.Inputs.Year)
	assert.Equal(t, 50, d.FilteredCount)
}

func TestBuildClampsThreshold(t *testing.T) {
	ds := dataset(t)

	d := Build(ds, Inputs{MinRevenue: 1_000_000})
	assert.Equal(t, int64(10), d.Inputs.MinRevenue)
	assert.Equal(t, 5, d.FilteredCount)

	d = Build(ds, Inputs{MinRevenue: -5})
	assert.Equal(t, int64(0), d.Inputs.MinRevenue)
	assert.Equal(t, 50, d.FilteredCount)
}

func TestBuildThresholdIsMonotonic(t *testing.T) {
	ds := dataset(t)
	prev := Build(ds, Inputs{}).FilteredCount
	for min := int64(1); min <= 10; min++ {
		n := Build(ds, Inputs{MinRevenue: min}).FilteredCount
		assert.LessOrEqual(t, n, prev, "min %d", min)
		prev = n
	}
}

func TestBuildReportsLoadErrors(t *testing.T) {
	ds := dataset(t)
	ds.Results = append(ds.Results, loader.Result{
		Source: loader.Source{Year: "2017", Location: "realisasi-apbn-2017.xlsx"},
		Err:    errors.New("no such file"),
	})

	d := Build(ds, Inputs{})
	require.Len(t, d.LoadErrors, 1)
	assert.Equal(t, "Error loading realisasi-apbn-2017.xlsx: no such file", d.LoadErrors[0].Message)
	assert.True(t, d.OK())
}

func TestBuildFatal(t *testing.T) {
	tests := []struct {
		name string
		ds   *services.Dataset
		want string
	}{
		{"no snapshot", nil, NoDataMessage},
		{"no data", &services.Dataset{Err: core.ErrNoData}, NoDataMessage},
		{
			"missing column",
			&services.Dataset{Err: errors.Join(errors.New("validate"), &core.MissingColumnError{Column: core.RevenueColumn})},
			"The expected column 'Realisasi Keuangan (Rp)' is not in the dataset.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Build(tt.ds, Inputs{Year: "2014"})
			assert.False(t, d.OK())
			assert.Equal(t, tt.want, d.Fatal)
			assert.Empty(t, d.Metrics)
			assert.Nil(t, d.Pie)
			assert.Empty(t, d.Line.Values)
		})
	}
}

func TestTableTruncation(t *testing.T) {
	rows := [][]string{{core.RevenueColumn, core.ExpenditureColumn}}
	for i := 0; i < MaxTableRows+20; i++ {
		rows = append(rows, []string{"1", "1"})
	}
	tbl := core.NewTable(rows)
	tbl.TagYear("2012")
	ds := &services.Dataset{Years: []string{"2012"}, Table: tbl}

	d := Build(ds, Inputs{})
	assert.True(t, d.YearTable.Truncated)
	assert.Len(t, d.YearTable.Rows, MaxTableRows)
	assert.Equal(t, MaxTableRows+20, d.YearTable.Total)
}

func TestChartJSON(t *testing.T) {
	d := Build(dataset(t), Inputs{Year: "2013"})

	var payload struct {
		Line struct {
			Title  string    `json:"title"`
			Labels []string  `json:"labels"`
			Values []float64 `json:"values"`
		} `json:"line"`
		Pie *struct {
			Shares []string `json:"shares"`
		} `json:"pie"`
	}
	require.NoError(t, json.Unmarshal([]byte(d.ChartJSON()), &payload))
	assert.Equal(t, LineTitle, payload.Line.Title)
	assert.Equal(t, years, payload.Line.Labels)
	require.NotNil(t, payload.Pie)
	assert.Len(t, payload.Pie.Shares, 2)
}

func TestInputsKey(t *testing.T) {
	a := Inputs{Year: "2012", MinRevenue: 5}
	b := Inputs{Year: "2012", MinRevenue: 5, Debug: true}
	assert.NotEqual(t, a.Key(), b.Key())
	assert.Equal(t, a.Key(), Inputs{Year: "2012", MinRevenue: 5}.Key())
}
