package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"oracletom/internal/report"
	"oracletom/internal/tom"
)

func newSQLCommand(ctx *commandContext) *cobra.Command {
	var (
		queryFile  string
		ids        []int64
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "sql [query]",
		Short: "Run a read-only query against the TOM database",
		Long: "Run a read-only query through the TOM's SQL endpoint.\n\n" +
			"Object ids passed with --ids are bound as %(ids)s, so a query can use\n" +
			"\"WHERE diaobject_id = ANY(%(ids)s)\".",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := resolveQuery(args, queryFile, cmd.InOrStdin())
			if err != nil {
				return err
			}
			subdict := map[string]any{}
			if len(ids) > 0 {
				subdict["ids"] = ids
			}

			client, err := ctx.connectTOM(cmd.Context())
			if err != nil {
				return err
			}
			rows, err := client.RunSQL(cmd.Context(), query, subdict)
			if err != nil {
				return err
			}

			if jsonOutput {
				if rows == nil {
					rows = []tom.Row{}
				}
				return writeJSON(cmd, rows)
			}
			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintln(out, "No rows")
				return nil
			}
			headers := rowColumns(rows)
			table := make([][]string, 0, len(rows))
			for _, row := range rows {
				line := make([]string, len(headers))
				for i, column := range headers {
					line[i] = row.String(column)
				}
				table = append(table, line)
			}
			fmt.Fprintln(out, report.RenderTable(headers, table, nil))
			fmt.Fprintf(out, "%d row(s)\n", len(rows))
			return nil
		},
	}

	cmd.Flags().StringVarP(&queryFile, "file", "f", "", "Read the query from a file (- for stdin)")
	cmd.Flags().Int64SliceVar(&ids, "ids", nil, "Object ids bound as %(ids)s")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Write rows as JSON")
	return cmd
}

func resolveQuery(args []string, queryFile string, in io.Reader) (string, error) {
	queryFile = strings.TrimSpace(queryFile)
	switch {
	case len(args) == 1 && queryFile != "":
		return "", fmt.Errorf("pass the query as an argument or with --file, not both")
	case len(args) == 1:
		return args[0], nil
	case queryFile == "-":
		data, err := io.ReadAll(in)
		if err != nil {
			return "", fmt.Errorf("read query from stdin: %w", err)
		}
		return string(data), nil
	case queryFile != "":
		data, err := os.ReadFile(queryFile)
		if err != nil {
			return "", fmt.Errorf("read query file: %w", err)
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("a query is required")
	}
}

func rowColumns(rows []tom.Row) []string {
	seen := make(map[string]struct{})
	var columns []string
	for _, row := range rows {
		for key := range row {
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			columns = append(columns, key)
		}
	}
	sort.Strings(columns)
	return columns
}
