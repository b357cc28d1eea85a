// Package loader reads one spreadsheet per configured year and turns each
// into a year-tagged table. A failing source never stops the others.
package loader

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"apbn/internal/core"
	"apbn/internal/log"
	"apbn/internal/sheets"
)

// Source pairs a year label with the location of its spreadsheet.
type Source struct {
	Year     string
	Location string
}

// Result is the outcome of reading one Source: a table or an error.
type Result struct {
	Source
	Table    *core.Table
	Err      error
	Duration time.Duration
}

func (r Result) OK() bool { return r.Err == nil && r.Table != nil }

// Rows is the number of records the source contributes to the merge.
func (r Result) Rows() int {
	if !r.OK() {
		return 0
	}
	return r.Table.Len()
}

// Message is the user-facing error line for a failed source.
func (r Result) Message() string {
	if r.Err == nil {
		return ""
	}
	return fmt.Sprintf("Error loading %s: %v", r.Location, r.Err)
}

type Options struct {
	// StrictColumns rejects a source that lacks a required column instead of
	// leaving the check to the merged table.
	StrictColumns bool
	// Concurrency bounds parallel reads; values below 1 mean sequential.
	Concurrency int
}

type Loader struct {
	reader sheets.RowReader
	opts   Options
	logger *log.Logger
	events *log.StructuredLogger
}

func New(reader sheets.RowReader, opts Options, logger *log.Logger) *Loader {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	logger = logger.WithComponent(log.ComponentLoader)
	return &Loader{
		reader: reader,
		opts:   opts,
		logger: logger,
		events: log.NewStructuredLogger(logger),
	}
}

// Load reads every source and returns one Result per source, in the order
// given, regardless of the order reads complete in.
func (l *Loader) Load(ctx context.Context, sources []Source) []Result {
	results := make([]Result, len(sources))

	var g errgroup.Group
	g.SetLimit(l.opts.Concurrency)
	for i, src := range sources {
		g.Go(func() error {
			start := time.Now()
			tbl, err := l.readOne(ctx, src)
			results[i] = Result{Source: src, Table: tbl, Err: err, Duration: time.Since(start)}
			if err != nil {
				l.events.LogSourceFailed(ctx, src.Year, src.Location, err)
			} else {
				l.events.LogSourceLoaded(ctx, src.Year, src.Location, tbl.Len())
			}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (l *Loader) readOne(ctx context.Context, src Source) (*core.Table, error) {
	rows, err := l.reader.ReadRows(ctx, src.Location)
	if err != nil {
		return nil, err
	}
	tbl := core.NewTable(rows)
	if l.opts.StrictColumns {
		if err := core.RequireColumns(tbl, core.RequiredColumns...); err != nil {
			return nil, err
		}
	}
	tbl.TagYear(src.Year)
	return tbl, nil
}

// Tables returns the tables of the successful results, in order.
func Tables(results []Result) []*core.Table {
	var out []*core.Table
	for _, r := range results {
		if r.OK() {
			out = append(out, r.Table)
		}
	}
	return out
}

// Failures returns the failed results, in order.
func Failures(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.OK() {
			out = append(out, r)
		}
	}
	return out
}

// ParseSources parses "2012=a.xlsx,2013=b.xlsx" into ordered sources. Entries
// may also be separated by newlines or semicolons.
func ParseSources(list string) ([]Source, error) {
	fields := strings.FieldsFunc(list, func(r rune) bool {
		return r == ',' || r == ';' || r == '\n'
	})

	var out []Source
	seen := make(map[string]bool)
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		year, loc, ok := strings.Cut(f, "=")
		year, loc = strings.TrimSpace(year), strings.TrimSpace(loc)
		if !ok || year == "" || loc == "" {
			return nil, fmt.Errorf("invalid source %q: want <year>=<location>", f)
		}
		if year == core.AllYears {
			return nil, fmt.Errorf("invalid source %q: %q is reserved", f, core.AllYears)
		}
		if seen[year] {
			return nil, fmt.Errorf("duplicate year %q", year)
		}
		seen[year] = true
		out = append(out, Source{Year: year, Location: loc})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no sources configured")
	}
	return out, nil
}

// Years returns the year labels of sources in configured order.
func Years(sources []Source) []string {
	out := make([]string, len(sources))
	for i, s := range sources {
		out[i] = s.Year
	}
	return out
}
