package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"oracletom/internal/oracle"
	"oracletom/internal/report"
	"oracletom/internal/taxonomy"
)

func newTaxonomyCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "taxonomy",
		Short: "Show the class hierarchy and model input layout",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			tax, err := taxonomy.Load(cfg.Model.TaxonomyPath)
			if err != nil {
				return err
			}

			if jsonOutput {
				return writeJSON(cmd, struct {
					Root              string   `json:"root"`
					Nodes             []string `json:"nodes"`
					Leaves            []string `json:"leaves"`
					TimeSeriesColumns []string `json:"time_series_columns"`
					StaticFeatures    []string `json:"static_features"`
				}{
					Root:              tax.Root(),
					Nodes:             tax.Nodes(),
					Leaves:            tax.Leaves(),
					TimeSeriesColumns: oracle.TimeSeriesColumns,
					StaticFeatures:    tax.StaticFeatures,
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, report.RenderTaxonomy(tax))
			fmt.Fprintf(out, "\n%d nodes, %d leaves, depth %d\n", len(tax.Nodes()), len(tax.Leaves()), tax.Depth())
			fmt.Fprintf(out, "Time-series columns: %s\n", strings.Join(oracle.TimeSeriesColumns, ", "))

			rows := make([][]string, 0, len(tax.StaticFeatures))
			for i, name := range tax.StaticFeatures {
				rows = append(rows, []string{strconv.Itoa(i), name})
			}
			fmt.Fprintln(out, report.RenderTable([]string{"#", "Static feature"}, rows, []report.Alignment{report.AlignRight}))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Write JSON instead of a tree")
	return cmd
}
