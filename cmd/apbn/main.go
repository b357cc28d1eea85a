package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"apbn/internal/cli"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type rootOptions struct {
	demo     bool
	demoRows int
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "apbn",
		Short:         "Dashboard realisasi APBN",
		Long:          "Loads the yearly APBN realization workbooks, merges them and serves the interactive dashboard.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cli.LoadEnvFile()
		},
	}

	rootCmd.PersistentFlags().BoolVar(&opts.demo, "demo", false, "use generated demo workbooks instead of the configured sources")
	rootCmd.PersistentFlags().IntVar(&opts.demoRows, "demo-rows", 40, "rows per year in demo mode")

	rootCmd.AddCommand(
		newServeCmd(opts),
		newSummaryCmd(opts),
		newExportCmd(opts),
	)
	return rootCmd
}
