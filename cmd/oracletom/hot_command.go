package main

import (
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"oracletom/internal/features"
	"oracletom/internal/report"
	"oracletom/internal/tom"
)

func newHotCommand(ctx *commandContext) *cobra.Command {
	var (
		days       float64
		mjdNow     float64
		since      float64
		gentypes   []int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "hot",
		Short: "List hot transients without classifying them",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			query := tom.HotQuery{
				DetectedInLastDays: cfg.Query.DetectedInLastDays,
				MJDNow:             cfg.Query.MJDNow,
				DetectedSinceMJD:   cfg.Query.DetectedSinceMJD,
				CheatGentypes:      cfg.Query.CheatGentypes,
			}
			if cmd.Flags().Changed("detected-in-last-days") {
				query.DetectedInLastDays = days
			}
			if cmd.Flags().Changed("mjd-now") {
				query.MJDNow = mjdNow
			}
			if cmd.Flags().Changed("detected-since-mjd") {
				query.DetectedSinceMJD = since
			}
			if cmd.Flags().Changed("cheat-gentypes") {
				query.CheatGentypes = gentypes
			}
			if query.MJDNow <= 0 {
				query.MJDNow = features.CurrentMJD(nowFunc())
			}

			client, err := ctx.connectTOM(cmd.Context())
			if err != nil {
				return err
			}
			hot, err := client.HotTransients(cmd.Context(), query)
			if err != nil {
				return err
			}

			if jsonOutput {
				entries := make([]map[string]any, 0, len(hot))
				for _, h := range hot {
					entry := map[string]any{"objectid": h.ObjectID}
					for key, value := range h.Extra {
						entry[key] = value
					}
					entries = append(entries, entry)
				}
				return writeJSON(cmd, entries)
			}

			columns := extraColumns(hot)
			headers := append([]string{"objectid"}, columns...)
			aligns := []report.Alignment{report.AlignRight}
			rows := make([][]string, 0, len(hot))
			for _, h := range hot {
				row := []string{strconv.FormatInt(h.ObjectID, 10)}
				for _, column := range columns {
					row = append(row, h.Extra.String(column))
				}
				rows = append(rows, row)
			}
			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				_, err := out.Write([]byte("No hot transients\n"))
				return err
			}
			_, err = out.Write([]byte(report.RenderTable(headers, rows, aligns) + "\n"))
			return err
		},
	}

	cmd.Flags().Float64VarP(&days, "detected-in-last-days", "d", 0, "How many nights to look back")
	cmd.Flags().Float64VarP(&mjdNow, "mjd-now", "m", 0, "Reference MJD")
	cmd.Flags().Float64Var(&since, "detected-since-mjd", 0, "Only transients detected since this MJD")
	cmd.Flags().IntSliceVar(&gentypes, "cheat-gentypes", nil, "Restrict to simulated gentypes")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Write JSON instead of a table")
	return cmd
}

func extraColumns(hot []tom.HotTransient) []string {
	seen := make(map[string]struct{})
	for _, h := range hot {
		for key := range h.Extra {
			seen[key] = struct{}{}
		}
	}
	columns := make([]string, 0, len(seen))
	for key := range seen {
		columns = append(columns, key)
	}
	sort.Strings(columns)
	return columns
}
