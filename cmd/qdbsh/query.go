package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	qdb "quasardb.net/database/qdbgo"
)

func (a *app) queryCommand() *cobra.Command {
	var arrowFile string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "query <query>",
		Short: "Run a query and print its result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := a.open()
			if err != nil {
				return err
			}
			defer h.Close()

			res, err := h.Query(strings.Join(args, " "))
			if err != nil {
				return err
			}
			a.log.Info("query done",
				zap.Int("rows", res.RowCount()),
				zap.Int64("scanned_points", res.ScannedPointCount))

			switch {
			case arrowFile != "":
				return writeArrow(arrowFile, res)
			case asJSON:
				return printJSON(res)
			}
			printTables(res)
			return nil
		},
	}
	cmd.Flags().StringVar(&arrowFile, "arrow", "", "write the result as an Arrow IPC file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

func writeArrow(path string, res *qdb.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := res.WriteArrow(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func printTables(res *qdb.Result) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()
	for _, t := range res.Tables {
		if t.Name != "" {
			fmt.Fprintf(w, "# %s\n", t.Name)
		}
		fmt.Fprintln(w, strings.Join(t.ColumnNames, "\t"))
		for _, row := range t.Rows {
			cells := make([]string, len(row))
			for i, v := range row {
				cells[i] = v.String()
			}
			fmt.Fprintln(w, strings.Join(cells, "\t"))
		}
	}
	fmt.Fprintf(w, "(%d rows, %d points scanned)\n", res.RowCount(), res.ScannedPointCount)
}

func printJSON(res *qdb.Result) error {
	type table struct {
		Name    string   `json:"name,omitempty"`
		Columns []string `json:"columns"`
		Rows    [][]any  `json:"rows"`
	}
	out := struct {
		Tables  []table `json:"tables"`
		Scanned int64   `json:"scanned_point_count"`
	}{Scanned: res.ScannedPointCount}
	for _, t := range res.Tables {
		jt := table{Name: t.Name, Columns: t.ColumnNames, Rows: make([][]any, len(t.Rows))}
		for i, row := range t.Rows {
			jt.Rows[i] = make([]any, len(row))
			for j, v := range row {
				jt.Rows[i][j] = v.Interface()
			}
		}
		out.Tables = append(out.Tables, jt)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
