package main

import (
	"fmt"
	"math/rand"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	qdb "quasardb.net/database/qdbgo"
)

func (a *app) tsCommand() *cobra.Command {
	ts := &cobra.Command{
		Use:   "ts",
		Short: "Manage time series",
	}

	var shardSize time.Duration
	var columnSpecs []string
	create := &cobra.Command{
		Use:   "create <alias>",
		Short: "Create a time series",
		Long: `Create a time series. Columns are given as name:type, or
name:symbol:symtable for symbol columns.

Example:
  qdbsh ts create stocks --column open:double --column volume:int64 --column ticker:symbol:tickers`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cols, err := parseColumns(columnSpecs)
			if err != nil {
				return err
			}
			h, err := a.open()
			if err != nil {
				return err
			}
			defer h.Close()
			if shardSize == 0 {
				shardSize = a.cfg.Batch.ShardSize
			}
			if err := h.CreateTimeSeries(args[0], shardSize, cols); err != nil {
				return err
			}
			a.log.Info("time series created", zap.String("alias", args[0]), zap.Int("columns", len(cols)))
			return nil
		},
	}
	create.Flags().DurationVar(&shardSize, "shard-size", 0, "shard size, defaults to batch.shard_size")
	create.Flags().StringArrayVar(&columnSpecs, "column", nil, "column as name:type[:symtable]")

	columns := &cobra.Command{
		Use:   "columns <alias>",
		Short: "List the columns of a time series",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := a.open()
			if err != nil {
				return err
			}
			defer h.Close()
			cols, err := h.ListColumns(args[0])
			if err != nil {
				return err
			}
			shard, err := h.ShardSize(args[0])
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			defer w.Flush()
			fmt.Fprintf(w, "# %s (shard size %v)\n", args[0], shard)
			fmt.Fprintln(w, "name\ttype\tsymtable")
			for _, c := range cols {
				fmt.Fprintf(w, "%s\t%v\t%s\n", c.Name, c.Type, c.Symtable)
			}
			return nil
		},
	}

	var rows int
	demo := &cobra.Command{
		Use:   "insert-demo <alias>",
		Short: "Write generated rows into every column of a time series",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := a.open()
			if err != nil {
				return err
			}
			defer h.Close()
			start := time.Now()
			if err := writeDemoRows(h, args[0], rows, a.pushMode(), rand.New(rand.NewSource(start.UnixNano()))); err != nil {
				return err
			}
			a.log.Info("demo rows written",
				zap.String("alias", args[0]),
				zap.Int("rows", rows),
				zap.Stringer("push_mode", a.pushMode()),
				zap.Duration("elapsed", time.Since(start)))
			return nil
		},
	}
	demo.Flags().IntVar(&rows, "rows", 1000, "number of rows to write")

	ts.AddCommand(create, columns, demo)
	return ts
}

func parseColumns(specs []string) ([]qdb.Column, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("at least one --column is required")
	}
	cols := make([]qdb.Column, 0, len(specs))
	for _, spec := range specs {
		parts := strings.Split(spec, ":")
		if len(parts) < 2 || len(parts) > 3 {
			return nil, fmt.Errorf("column %q: expected name:type[:symtable]", spec)
		}
		t, err := qdb.ParseColumnType(parts[1])
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", spec, err)
		}
		c := qdb.NewColumn(parts[0], t)
		if len(parts) == 3 {
			c.Symtable = parts[2]
		}
		cols = append(cols, c)
	}
	return cols, nil
}

// writeDemoRows fills every column of alias with n generated rows, one
// second apart from the start of the current shard, and pushes them.
func writeDemoRows(h *qdb.Handle, alias string, n int, mode qdb.PushMode, rng *rand.Rand) error {
	cols, err := h.ListColumns(alias)
	if err != nil {
		return err
	}
	shardSize, err := h.ShardSize(alias)
	if err != nil {
		return err
	}
	batchCols := make([]qdb.BatchColumn, len(cols))
	for i, c := range cols {
		batchCols[i] = qdb.BatchColumn{Table: alias, Column: c.Name, SizeHint: n}
	}
	b, err := h.NewBatchTable(batchCols)
	if err != nil {
		return err
	}
	defer b.Release()

	shard := qdb.NewTimespec(time.Now().Truncate(shardSize))
	offsets := make([]int64, n)
	for i := range offsets {
		offsets[i] = int64(i) * int64(time.Second)
	}
	for i, c := range cols {
		if err := fillDemoColumn(b, i, c.Type, shard, offsets, rng); err != nil {
			return fmt.Errorf("column %s: %w", c.Name, err)
		}
	}
	var ranges []qdb.TimeRange
	if mode == qdb.PushTruncate {
		ranges = []qdb.TimeRange{{Begin: shard, End: shard.Add(time.Duration(n) * time.Second)}}
	}
	return b.PushWith(mode, ranges...)
}

func fillDemoColumn(b *qdb.BatchTable, index int, t qdb.ColumnType, shard qdb.Timespec, offsets []int64, rng *rand.Rand) error {
	n := len(offsets)
	switch t {
	case qdb.ColumnDouble:
		values := make([]float64, n)
		for i := range values {
			values[i] = rng.NormFloat64()*10 + 100
		}
		return b.SetDoubleColumn(index, shard, offsets, values)
	case qdb.ColumnInt64:
		values := make([]int64, n)
		for i := range values {
			values[i] = rng.Int63n(1_000_000)
		}
		return b.SetInt64Column(index, shard, offsets, values)
	case qdb.ColumnTimestamp:
		secs := make([]int64, n)
		nsecs := make([]int64, n)
		for i := range secs {
			secs[i] = shard.Sec + offsets[i]/int64(time.Second)
		}
		return b.SetTimestampColumn(index, shard, offsets, secs, nsecs)
	case qdb.ColumnBlob:
		values := make([][]byte, n)
		for i := range values {
			values[i] = []byte(randomString(rng, 16))
		}
		return b.SetBlobColumn(index, shard, offsets, values)
	case qdb.ColumnString, qdb.ColumnSymbol:
		symbols := []string{"alpha", "beta", "gamma", "delta"}
		values := make([]string, n)
		for i := range values {
			values[i] = symbols[rng.Intn(len(symbols))]
		}
		return b.SetStringColumn(index, shard, offsets, values)
	}
	return fmt.Errorf("unsupported column type %v", t)
}

func randomString(rng *rand.Rand, n int) string {
	const letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, n)
	for i := range b {
		b[i] = letters[rng.Intn(len(letters))]
	}
	return string(b)
}
