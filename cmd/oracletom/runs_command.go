package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"oracletom/internal/config"
	"oracletom/internal/features"
	"oracletom/internal/report"
	"oracletom/internal/services"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var dbPath string

	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect runs recorded in the results database",
	}
	runsCmd.PersistentFlags().StringVar(&dbPath, "results-db", "", "Results database (default output.results_db)")

	runsCmd.AddCommand(newRunsListCommand(ctx, &dbPath))
	runsCmd.AddCommand(newRunsShowCommand(ctx, &dbPath))
	return runsCmd
}

func newRunsListCommand(ctx *commandContext, dbPath *string) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openResultsStore(cmd, ctx, *dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.Runs(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				if runs == nil {
					runs = []report.StoredRun{}
				}
				return writeJSON(cmd, runs)
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				accuracy := "n/a"
				if run.Labelled > 0 {
					accuracy = fmt.Sprintf("%.1f%%", 100*float64(run.Correct)/float64(run.Labelled))
				}
				rows = append(rows, []string{
					run.ID,
					run.StartedAt.Local().Format(time.DateTime),
					strconv.FormatFloat(run.MJDNow, 'f', -1, 64),
					run.Model,
					strconv.Itoa(run.Objects),
					strconv.Itoa(run.Labelled),
					accuracy,
				})
			}
			headers := []string{"Run", "Started", "MJD", "Model", "Objects", "Labelled", "Accuracy"}
			aligns := []report.Alignment{report.AlignLeft, report.AlignLeft, report.AlignRight, report.AlignLeft, report.AlignRight, report.AlignRight, report.AlignRight}
			fmt.Fprintln(out, report.RenderTable(headers, rows, aligns))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Write JSON instead of a table")
	return cmd
}

func newRunsShowCommand(ctx *commandContext, dbPath *string) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the predictions recorded for a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := strings.TrimSpace(args[0])
			store, err := openResultsStore(cmd, ctx, *dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			predictions, err := store.Predictions(cmd.Context(), runID)
			if err != nil {
				return err
			}
			if len(predictions) == 0 {
				return services.Wrap(services.ErrNotFound, "runs", "show", fmt.Sprintf("no predictions recorded for run %q", runID), nil)
			}
			if jsonOutput {
				return writeJSON(cmd, predictions)
			}

			rows := make([][]string, 0, len(predictions))
			labelled, correct := 0, 0
			for _, p := range predictions {
				gentype := ""
				match := "n/a"
				if p.Gentype.Valid {
					gentype = strconv.FormatInt(p.Gentype.Int64, 10)
					if p.TrueClass != features.UnknownClass {
						labelled++
						match = "no"
						if p.PredictedClass == p.TrueClass {
							correct++
							match = "yes"
						}
					}
				}
				rows = append(rows, []string{
					strconv.FormatInt(p.SNID, 10),
					p.TrueClass,
					gentype,
					p.PredictedClass,
					fmt.Sprintf("%.3f", p.Probability),
					match,
				})
			}
			out := cmd.OutOrStdout()
			headers := []string{"SNID", "True class", "Gentype", "Predicted", "P", "Match"}
			aligns := []report.Alignment{report.AlignRight, report.AlignLeft, report.AlignRight, report.AlignLeft, report.AlignRight, report.AlignLeft}
			fmt.Fprintln(out, report.RenderTable(headers, rows, aligns))
			fmt.Fprintf(out, "%d objects; %d labelled, %d correct\n", len(predictions), labelled, correct)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Write JSON instead of a table")
	return cmd
}

func openResultsStore(cmd *cobra.Command, ctx *commandContext, override string) (*report.Store, error) {
	path := strings.TrimSpace(override)
	if path != "" {
		expanded, err := config.ExpandPath(path)
		if err != nil {
			return nil, fmt.Errorf("resolve results db: %w", err)
		}
		path = expanded
	} else {
		cfg, err := ctx.ensureConfig()
		if err != nil {
			return nil, err
		}
		path = cfg.Output.ResultsDB
	}
	if path == "" {
		return nil, services.Wrap(services.ErrConfiguration, "runs", "open", "no results database configured; set output.results_db or pass --results-db", nil)
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "runs", "open", "results database "+path+" does not exist", nil)
		}
		return nil, fmt.Errorf("stat results db: %w", err)
	}
	return report.OpenStore(cmd.Context(), path)
}
