package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"apbn/internal/core"
	"apbn/internal/log"
	"apbn/internal/sheets/xlsx"
	"apbn/internal/view"
)

type exportOptions struct {
	out        string
	year       string
	minRevenue int64
}

func newExportCmd(root *rootOptions) *cobra.Command {
	opts := &exportOptions{}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the merged table, optionally filtered, to an xlsx workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), root, opts)
		},
	}

	cmd.Flags().StringVar(&opts.out, "out", "apbn-merged.xlsx", "output workbook path")
	cmd.Flags().StringVar(&opts.year, "year", core.AllYears, "year to filter by")
	cmd.Flags().Int64Var(&opts.minRevenue, "min-revenue", 0, "minimum realized revenue per row")
	return cmd
}

func runExport(ctx context.Context, out, logOut io.Writer, root *rootOptions, opts *exportOptions) error {
	a, err := newApp(ctx, root, logOut)
	if err != nil {
		return err
	}
	defer a.Close()
	ds, err := a.loadOnce(ctx)
	if err != nil {
		return err
	}
	if !ds.OK() {
		return fmt.Errorf("load failed: %w", ds.Err)
	}
	if opts.year != "" && opts.year != core.AllYears && !ds.HasYear(opts.year) {
		return fmt.Errorf("%w: %s", core.ErrUnknownYear, opts.year)
	}

	in, _ := view.Normalize(ds, view.Inputs{Year: opts.year, MinRevenue: opts.minRevenue})
	v := core.Apply(ds.Table, in.Filter())
	if err := xlsx.WriteFile(opts.out, xlsx.DefaultSheet, v); err != nil {
		return fmt.Errorf("write %s: %w", opts.out, err)
	}

	a.logger.Info("Workbook exported",
		log.FieldComponent, log.ComponentExport,
		log.FieldOperation, log.OpExport,
		log.FieldRows, v.Len(),
		"path", opts.out)
	fmt.Fprintf(out, "%d baris ditulis ke %s\n", v.Len(), opts.out)
	return nil
}
