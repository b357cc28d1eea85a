package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"apbn/internal/core"
	"apbn/internal/log"
	"apbn/internal/services"
	"apbn/internal/sheets/xlsx"
	"apbn/internal/storage"
	"apbn/internal/view"
)

// pageData is what the index and dashboard templates render.
type pageData struct {
	view.Dashboard
	Query          string
	ExportURL      string
	HistoryEnabled bool
}

func (s *Server) page(ctx context.Context, in view.Inputs) *pageData {
	d := s.dashboard(ctx, in)
	q := EncodeInputs(d.Inputs)
	p := &pageData{
		Dashboard:      d,
		Query:          q,
		ExportURL:      "/export.xlsx",
		HistoryEnabled: s.history != nil,
	}
	if q != "" {
		p.ExportURL += "?" + q
	}
	return p
}

// handleIndex renders the full dashboard page
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := s.page(r.Context(), ParseInputs(r.URL.Query()))
	s.render(w, r, "index.html", data)
}

// handleDashboardPartial re-renders the dashboard body for htmx swaps.
func (s *Server) handleDashboardPartial(w http.ResponseWriter, r *http.Request) {
	data := s.page(r.Context(), ParseInputs(r.URL.Query()))
	if isHTMX(r) {
		push := "/"
		if data.Query != "" {
			push += "?" + data.Query
		}
		w.Header().Set("HX-Push-Url", push)
	}
	s.render(w, r, "dashboard", data)
}

type historyData struct {
	Enabled bool
	Runs    []storage.Run
	Error   string
}

// handleLoadHistory lists recent load runs from the load log.
func (s *Server) handleLoadHistory(w http.ResponseWriter, r *http.Request) {
	data := historyData{Enabled: s.history != nil}
	if s.history != nil {
		runs, err := s.history.RecentRuns(r.Context(), s.historyLimit)
		if err != nil {
			log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to read load history",
				log.FieldComponent, log.ComponentStorage, log.FieldError, err)
			data.Error = "Riwayat pemuatan tidak tersedia"
		}
		data.Runs = runs
	}
	s.render(w, r, "load_history", data)
}

type runFileJSON struct {
	Year       string `json:"year"`
	Source     string `json:"source"`
	Rows       int    `json:"rows"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

type runResponse struct {
	ID          string        `json:"id"`
	Trigger     string        `json:"trigger"`
	StartedAt   time.Time     `json:"started_at"`
	FinishedAt  time.Time     `json:"finished_at"`
	FilesOK     int           `json:"files_ok"`
	FilesFailed int           `json:"files_failed"`
	TotalRows   int           `json:"total_rows"`
	FatalError  string        `json:"fatal_error,omitempty"`
	Files       []runFileJSON `json:"files"`
}

// handleRun returns one recorded load run with its per-file outcomes.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		NotFoundError("Riwayat pemuatan tidak aktif").Write(w)
		return
	}

	ctx := r.Context()
	id := sanitizeInput(chi.URLParam(r, "id"))
	run, err := s.history.GetRun(ctx, id)
	if errors.Is(err, storage.ErrRunNotFound) {
		NotFoundError("Riwayat pemuatan tidak ditemukan").Write(w)
		return
	}
	if err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Failed to read load run",
			log.FieldComponent, log.ComponentStorage, log.FieldRunID, id, log.FieldError, err)
		InternalServerError("Riwayat pemuatan tidak tersedia").Write(w)
		return
	}
	files, err := s.history.RunFiles(ctx, id)
	if err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Failed to read load run files",
			log.FieldComponent, log.ComponentStorage, log.FieldRunID, id, log.FieldError, err)
		InternalServerError("Riwayat pemuatan tidak tersedia").Write(w)
		return
	}

	resp := runResponse{
		ID:          run.ID,
		Trigger:     run.Trigger,
		StartedAt:   run.StartedAt,
		FinishedAt:  run.FinishedAt,
		FilesOK:     run.FilesOK,
		FilesFailed: run.FilesFailed,
		TotalRows:   run.TotalRows,
		FatalError:  run.FatalError,
		Files:       make([]runFileJSON, len(files)),
	}
	for i, f := range files {
		resp.Files[i] = runFileJSON{
			Year:       f.Year,
			Source:     f.Source,
			Rows:       f.Rows,
			Error:      f.Error,
			DurationMS: f.Duration.Milliseconds(),
		}
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// render executes a template into a buffer so a failure can still produce a
// clean error response.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data interface{}) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
			log.FieldComponent, log.ComponentTemplate,
			log.FieldOperation, log.OpRender,
			"template", name,
			log.FieldError, err)
		InternalServerError("Gagal menampilkan halaman").Write(w)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

type trendYear struct {
	Year    string  `json:"year"`
	Rows    int     `json:"rows"`
	Revenue float64 `json:"revenue"`
	Budget  float64 `json:"budget"`
}

type trendResponse struct {
	RunID   string             `json:"run_id"`
	Columns []string           `json:"columns"`
	Years   []trendYear        `json:"years"`
	Totals  map[string]float64 `json:"totals"`
}

// handleTrend returns the per-year aggregate of the unified table.
func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	ds := s.dataset.Current()
	if !ds.OK() {
		writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{"error": fatalText(ds)})
		return
	}

	trend := core.Aggregate(ds.Table)
	resp := trendResponse{
		RunID:   ds.RunID,
		Columns: trend.Columns,
		Years:   make([]trendYear, len(trend.Rows)),
		Totals:  make(map[string]float64, len(trend.Columns)),
	}
	for i, row := range trend.Rows {
		resp.Years[i] = trendYear{
			Year:    row.Year,
			Rows:    row.Rows,
			Revenue: row.Sums[core.RevenueColumn],
			Budget:  row.Sums[core.ExpenditureColumn],
		}
	}
	for _, c := range trend.Columns {
		resp.Totals[c] = trend.Total(c)
	}
	writeJSON(w, r, http.StatusOK, resp)
}

type metricJSON struct {
	Label string  `json:"label"`
	Value string  `json:"value"`
	Raw   float64 `json:"raw"`
}

type viewResponse struct {
	RunID        string       `json:"run_id"`
	Year         string       `json:"year"`
	MinRevenue   int64        `json:"min_revenue"`
	YearFallback bool         `json:"year_fallback,omitempty"`
	Rows         int          `json:"rows"`
	SliderMax    int64        `json:"slider_max"`
	Metrics      []metricJSON `json:"metrics"`
	LoadErrors   []string     `json:"load_errors,omitempty"`
}

// handleView returns the metrics of the filtered view for the given inputs.
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	d := s.dashboard(r.Context(), ParseInputs(r.URL.Query()))

	resp := viewResponse{
		RunID:        d.RunID,
		Year:         d.Inputs.Year,
		MinRevenue:   d.Inputs.MinRevenue,
		YearFallback: d.YearFallback,
		Rows:         d.FilteredCount,
		SliderMax:    d.Slider.Max,
		Metrics:      make([]metricJSON, len(d.Metrics)),
	}
	for i, m := range d.Metrics {
		resp.Metrics[i] = metricJSON{Label: m.Label, Value: m.Value, Raw: m.Raw}
	}
	for _, e := range d.LoadErrors {
		resp.LoadErrors = append(resp.LoadErrors, e.Message)
	}

	if !d.OK() {
		writeJSON(w, r, http.StatusServiceUnavailable, map[string]interface{}{
			"error":       d.Fatal,
			"load_errors": resp.LoadErrors,
		})
		return
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// handleExport streams the filtered view as an xlsx workbook.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	ds := s.dataset.Current()
	if !ds.OK() {
		ServiceUnavailableError(fatalText(ds)).Write(w)
		return
	}

	in, _ := view.Normalize(ds, ParseInputs(r.URL.Query()))
	v := core.Apply(ds.Table, in.Filter())

	var buf bytes.Buffer
	if err := xlsx.Write(&buf, xlsx.DefaultSheet, v); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Export failed",
			log.FieldComponent, log.ComponentExport,
			log.FieldOperation, log.OpExport,
			log.FieldError, err)
		InternalServerError("Gagal membuat file ekspor").Write(w)
		return
	}

	log.FromContext(r.Context()).InfoContext(r.Context(), "Filtered view exported",
		log.FieldComponent, log.ComponentExport,
		log.FieldYear, in.Year,
		log.FieldMinRevenue, in.MinRevenue,
		log.FieldRows, v.Len())

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, exportName(in)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = buf.WriteTo(w)
}

func exportName(in view.Inputs) string {
	year := strings.ToLower(in.Year)
	if year == "" {
		year = strings.ToLower(core.AllYears)
	}
	return fmt.Sprintf("apbn-%s-min%d.xlsx", year, in.MinRevenue)
}

// handleReload re-runs the load pipeline. Concurrent reloads share one run.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	ds, shared := s.dataset.Reload(ctx)
	purged := s.PurgeCache()

	log.FromContext(ctx).InfoContext(ctx, "Dataset reload requested",
		log.FieldOperation, log.OpReload,
		log.FieldRunID, ds.RunID,
		"shared", shared,
		"cache_purged", purged,
		log.FieldDuration, time.Since(start).Milliseconds())

	if !isHTMX(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	b := NewHTMXResponse().TriggerDatasetReloaded(ds.RunID, ds.OK())
	if ds.OK() {
		msg := fmt.Sprintf("Data dimuat ulang: %d baris dari %d file", ds.TotalRows(), ds.FilesOK())
		if n := len(ds.Failures()); n > 0 {
			b.TriggerNotification(NotificationWarning, fmt.Sprintf("%s, %d file gagal", msg, n), 5000)
		} else {
			b.TriggerSuccessNotification(msg)
		}
		b.BodyHTML(`<span class="reload-status">` + template.HTMLEscapeString(msg) + `</span>`)
	} else {
		msg := view.FatalMessage(ds.Err)
		b.TriggerErrorNotification(msg).
			BodyHTML(`<span class="reload-status reload-status--error">` + template.HTMLEscapeString(msg) + `</span>`)
	}
	b.Write(w)
}

func fatalText(ds *services.Dataset) string {
	if ds == nil || ds.Err == nil {
		return view.NoDataMessage
	}
	return view.FatalMessage(ds.Err)
}
