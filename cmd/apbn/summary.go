package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"apbn/internal/core"
	"apbn/internal/services"
	"apbn/internal/view"
)

type summaryOptions struct {
	year       string
	minRevenue int64
}

func newSummaryCmd(root *rootOptions) *cobra.Command {
	opts := &summaryOptions{}

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print the dashboard metrics and the per-year trend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSummary(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), root, opts)
		},
	}

	cmd.Flags().StringVar(&opts.year, "year", core.AllYears, "year to filter by")
	cmd.Flags().Int64Var(&opts.minRevenue, "min-revenue", 0, "minimum realized revenue per row")
	return cmd
}

func runSummary(ctx context.Context, out, logOut io.Writer, root *rootOptions, opts *summaryOptions) error {
	a, err := newApp(ctx, root, logOut)
	if err != nil {
		return err
	}
	defer a.Close()
	ds, err := a.loadOnce(ctx)
	if err != nil {
		return err
	}

	if opts.year != "" && opts.year != core.AllYears && !ds.HasYear(opts.year) {
		return fmt.Errorf("%w: %s", core.ErrUnknownYear, opts.year)
	}

	d := view.Build(ds, view.Inputs{Year: opts.year, MinRevenue: opts.minRevenue})
	printSummary(out, ds, &d)

	if !ds.OK() {
		return fmt.Errorf("load failed: %w", ds.Err)
	}
	return nil
}

func printSummary(out io.Writer, ds *services.Dataset, d *view.Dashboard) {
	fmt.Fprintln(out, d.Title)
	fmt.Fprintf(out, "Run %s: %d file dimuat, %d gagal\n", ds.RunID, ds.FilesOK(), len(ds.Failures()))
	for _, e := range d.LoadErrors {
		fmt.Fprintln(out, e.Message)
	}
	if !d.OK() {
		fmt.Fprintln(out, d.Fatal)
		return
	}

	fmt.Fprintf(out, "Filter: Tahun=%s, Minimal Realisasi Keuangan=%s\n\n", d.Inputs.Year, humanize.Comma(d.Inputs.MinRevenue))

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, m := range d.Metrics {
		fmt.Fprintf(tw, "%s\t%s\n", m.Label, m.Value)
	}
	_ = tw.Flush()
	fmt.Fprintln(out, d.FilteredSummary())
	fmt.Fprintln(out)

	trend := core.Aggregate(ds.Table)
	tw = tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "Tahun\tBaris\t%s\t%s\t\n", core.RevenueColumn, core.ExpenditureColumn)
	for _, row := range trend.Rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", row.Year, humanize.Comma(int64(row.Rows)),
			core.FormatRupiah(row.Sums[core.RevenueColumn]),
			core.FormatRupiah(row.Sums[core.ExpenditureColumn]))
	}
	fmt.Fprintf(tw, "Total\t%s\t%s\t%s\t\n", humanize.Comma(int64(ds.TotalRows())),
		core.FormatRupiah(trend.Total(core.RevenueColumn)),
		core.FormatRupiah(trend.Total(core.ExpenditureColumn)))
	_ = tw.Flush()
}
