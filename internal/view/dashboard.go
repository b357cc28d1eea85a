// Package view turns a dataset snapshot and the user's inputs into a fully
// computed dashboard model. Build is pure: same snapshot and inputs, same model.
package view

import (
	"encoding/json"
	"errors"
	"html/template"
	"strconv"
	"strings"
	"time"

	"apbn/internal/core"
	"apbn/internal/services"
)

// Labels shown on the dashboard.
const (
	Title            = "Dashboard Realisasi APBN"
	MetricRevenue    = "Total Realisasi Keuangan"
	MetricBudget     = "Total Anggaran"
	LineTitle        = "Tren Realisasi Keuangan"
	LineHeading      = "Tren Realisasi Keuangan per Tahun"
	BarTitle         = "Perbandingan Anggaran"
	BarHeading       = "Perbandingan Anggaran Berdasarkan Tahun"
	AxisYear         = "Tahun"
	PieHint          = "Pilih tahun tertentu untuk melihat komposisi."
	YearTableTitle   = "Tabel Data"
	RawTableTitle    = "Data Asli"
	NoDataMessage    = "No data loaded. Please check your files."
	pieRevenueLabel  = "Realisasi Keuangan"
	pieBudgetLabel   = "Anggaran"
	pieHeadingPrefix = "Komposisi Realisasi Keuangan dan Anggaran Tahun "
)

// MaxTableRows caps rows rendered per HTML table; exports are not capped.
const MaxTableRows = 500

// Inputs are the interactive controls. The zero value is the initial state.
type Inputs struct {
	Year       string
	MinRevenue int64
	Debug      bool
	ShowRaw    bool
}

// Key is a stable cache key for the inputs.
func (in Inputs) Key() string {
	var b strings.Builder
	b.WriteString(in.Year)
	b.WriteByte('|')
	b.WriteString(strconv.FormatInt(in.MinRevenue, 10))
	b.WriteByte('|')
	b.WriteString(strconv.FormatBool(in.Debug))
	b.WriteByte('|')
	b.WriteString(strconv.FormatBool(in.ShowRaw))
	return b.String()
}

// Filter converts normalized inputs into the core filter.
func (in Inputs) Filter() core.Filter {
	return core.Filter{Year: in.Year, MinRevenue: float64(in.MinRevenue)}
}

type Metric struct {
	Label string
	Value string
	Raw   float64
}

type Chart struct {
	Heading string    `json:"-"`
	Title   string    `json:"title"`
	XLabel  string    `json:"x_label"`
	YLabel  string    `json:"y_label"`
	Labels  []string  `json:"labels"`
	Values  []float64 `json:"values"`
}

type Pie struct {
	Heading string    `json:"-"`
	Labels  []string  `json:"labels"`
	Values  []float64 `json:"values"`
	Shares  []string  `json:"shares"`
}

type Table struct {
	Title     string
	Columns   []string
	Rows      [][]string
	Total     int
	Truncated bool
}

type Slider struct {
	Min   int64
	Max   int64
	Value int64
}

// LoadError is a per-source failure shown above the dashboard.
type LoadError struct {
	Year    string
	Message string
}

type Dashboard struct {
	Title       string
	RunID       string
	LoadedAt    time.Time
	Inputs      Inputs
	YearOptions []string

	// YearFallback is set when the requested year was unknown and Semua was used.
	YearFallback  bool
	RequestedYear string

	LoadErrors []LoadError
	Fatal      string

	Metrics       []Metric
	Line          Chart
	Bar           Chart
	Pie           *Pie
	PieHint       string
	YearTable     Table
	FilteredTable Table
	FilteredCount int
	RawTable      *Table
	Columns       []string
	Slider        Slider
}

// OK reports whether the dashboard has data to show.
func (d *Dashboard) OK() bool { return d.Fatal == "" }

// FilteredSummary is the caption of the threshold-filtered table.
func (d *Dashboard) FilteredSummary() string {
	return "Data setelah filter: " + strconv.Itoa(d.FilteredCount) + " baris"
}

type chartPayload struct {
	Line Chart `json:"line"`
	Bar  Chart `json:"bar"`
	Pie  *Pie  `json:"pie,omitempty"`
}

// ChartJSON is the chart data embedded in the page for the browser to draw.
func (d *Dashboard) ChartJSON() template.JS {
	b, err := json.Marshal(chartPayload{Line: d.Line, Bar: d.Bar, Pie: d.Pie})
	if err != nil {
		return template.JS("{}")
	}
	return template.JS(b)
}

// Normalize resolves the inputs against ds: an unknown year becomes Semua and
// the threshold is clamped to the slider range.
func Normalize(ds *services.Dataset, in Inputs) (Inputs, bool) {
	fallback := false
	if in.Year == "" {
		in.Year = core.AllYears
	}
	if in.Year != core.AllYears && (ds == nil || !ds.HasYear(in.Year)) {
		in.Year = core.AllYears
		fallback = true
	}
	max := int64(0)
	if ds.OK() {
		max = core.SliderMax(ds.Table)
	}
	if in.MinRevenue < 0 {
		in.MinRevenue = 0
	}
	if in.MinRevenue > max {
		in.MinRevenue = max
	}
	return in, fallback
}

// Build computes the dashboard for ds under in.
func Build(ds *services.Dataset, in Inputs) Dashboard {
	requested := in.Year
	in, fallback := Normalize(ds, in)

	d := Dashboard{
		Title:         Title,
		Inputs:        in,
		YearFallback:  fallback,
		RequestedYear: requested,
		YearOptions:   []string{core.AllYears},
		PieHint:       PieHint,
	}
	if ds == nil {
		d.Fatal = NoDataMessage
		return d
	}

	d.RunID = ds.RunID
	d.LoadedAt = ds.Finished
	d.YearOptions = append(d.YearOptions, ds.Years...)
	for _, f := range ds.Failures() {
		d.LoadErrors = append(d.LoadErrors, LoadError{Year: f.Year, Message: f.Message()})
	}
	if !ds.OK() {
		d.Fatal = FatalMessage(ds.Err)
		return d
	}

	t := ds.Table
	d.Columns = append([]string(nil), t.Columns...)
	d.Slider = Slider{Min: 0, Max: core.SliderMax(t), Value: in.MinRevenue}

	byYear := t.All().ByYear(in.Year)
	filtered := byYear.MinRevenue(float64(in.MinRevenue))

	revenue := filtered.Sum(core.RevenueColumn)
	budget := filtered.Sum(core.ExpenditureColumn)
	d.Metrics = []Metric{
		{Label: MetricRevenue, Value: core.FormatRupiah(revenue), Raw: revenue},
		{Label: MetricBudget, Value: core.FormatRupiah(budget), Raw: budget},
	}

	trend := core.Aggregate(t)
	d.Line = Chart{
		Heading: LineHeading,
		Title:   LineTitle,
		XLabel:  AxisYear,
		YLabel:  core.RevenueColumn,
		Labels:  trend.Years(),
		Values:  trend.Series(core.RevenueColumn),
	}
	d.Bar = Chart{
		Heading: BarHeading,
		Title:   BarTitle,
		XLabel:  AxisYear,
		YLabel:  core.ExpenditureColumn,
		Labels:  trend.Years(),
		Values:  trend.Series(core.ExpenditureColumn),
	}

	if in.Year != core.AllYears {
		total := revenue + budget
		d.Pie = &Pie{
			Heading: pieHeadingPrefix + in.Year,
			Labels:  []string{pieRevenueLabel, pieBudgetLabel},
			Values:  []float64{revenue, budget},
			Shares:  []string{core.Share(revenue, total), core.Share(budget, total)},
		}
		d.PieHint = ""
	}

	d.YearTable = tableOf(YearTableTitle, byYear)
	d.FilteredTable = tableOf("", filtered)
	d.FilteredCount = filtered.Len()
	d.FilteredTable.Title = d.FilteredSummary()
	if in.ShowRaw {
		raw := tableOf(RawTableTitle, t.All())
		d.RawTable = &raw
	}
	return d
}

// FatalMessage is the user-facing text for an error that stopped a load.
func FatalMessage(err error) string {
	var missing *core.MissingColumnError
	var nonNumeric *core.NonNumericError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, core.ErrNoData):
		return NoDataMessage
	case errors.As(err, &missing):
		return missing.Error()
	case errors.As(err, &nonNumeric):
		return nonNumeric.Error()
	default:
		return err.Error()
	}
}

func tableOf(title string, v core.View) Table {
	t := Table{Title: title, Columns: v.Columns, Total: v.Len()}
	n := v.Len()
	if n > MaxTableRows {
		n = MaxTableRows
		t.Truncated = true
	}
	t.Rows = make([][]string, n)
	for i := 0; i < n; i++ {
		rec := v.Records[i]
		row := make([]string, len(v.Columns))
		for j, col := range v.Columns {
			row[j] = rec.Get(col).String()
		}
		t.Rows[i] = row
	}
	return t
}
