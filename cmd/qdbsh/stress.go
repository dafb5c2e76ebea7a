package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	qdb "quasardb.net/database/qdbgo"
)

type stressStats struct {
	Pushes       atomic.Int64
	Points       atomic.Int64
	Queries      atomic.Int64
	Aggregations atomic.Int64
	Errors       atomic.Int64
}

type stressRun struct {
	h       *qdb.Handle
	log     *zap.Logger
	alias   string
	rows    int
	mode    qdb.PushMode
	stats   stressStats
	written atomic.Int64 // double points acknowledged by a normal push

	// Workers hold a read lock, verification holds the write lock.
	pauseMu sync.RWMutex
}

var stressColumns = []qdb.Column{
	qdb.NewColumn("value", qdb.ColumnDouble),
	qdb.NewColumn("count", qdb.ColumnInt64),
	qdb.NewColumn("label", qdb.ColumnString),
}

func (a *app) stressCommand() *cobra.Command {
	var (
		workers        int
		rows           int
		duration       time.Duration
		verifyInterval time.Duration
		reportInterval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "stress <alias>",
		Short: "Hammer a time series with concurrent batch pushes and queries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := a.open()
			if err != nil {
				return err
			}
			defer h.Close()

			err = h.CreateTimeSeries(args[0], a.cfg.Batch.ShardSize, stressColumns)
			if err != nil && !errors.Is(err, qdb.ErrAliasAlreadyExists) {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}

			r := &stressRun{h: h, log: a.log, alias: args[0], rows: rows, mode: a.pushMode()}
			return r.run(ctx, workers, verifyInterval, reportInterval)
		},
	}
	cmd.Flags().IntVarP(&workers, "workers", "w", 4, "number of concurrent workers")
	cmd.Flags().IntVar(&rows, "rows", 500, "rows per batch push")
	cmd.Flags().DurationVar(&duration, "duration", 0, "stop after this long, 0 runs until interrupted")
	cmd.Flags().DurationVar(&verifyInterval, "verify-interval", 30*time.Second, "pause workers and verify point counts this often")
	cmd.Flags().DurationVar(&reportInterval, "report-interval", 5*time.Second, "log statistics this often")
	return cmd
}

func (r *stressRun) run(ctx context.Context, workers int, verifyInterval, reportInterval time.Duration) error {
	if workers <= 0 || r.rows <= 0 {
		return fmt.Errorf("workers and rows must be positive, got %d and %d", workers, r.rows)
	}
	base, err := r.count()
	if err != nil {
		return fmt.Errorf("initial count: %w", err)
	}
	r.log.Info("stress run starting",
		zap.String("alias", r.alias),
		zap.Int("workers", workers),
		zap.Int("rows", r.rows),
		zap.Stringer("push_mode", r.mode),
		zap.Int64("existing_points", base))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		r.statsReporter(ctx, reportInterval)
	}()
	go func() {
		defer wg.Done()
		r.verifier(ctx, verifyInterval, base)
	}()
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			r.worker(ctx, id)
		}(i)
	}
	wg.Wait()

	r.report()
	if n := r.stats.Errors.Load(); n > 0 {
		return fmt.Errorf("stress run finished with %d errors", n)
	}
	return nil
}

func (r *stressRun) statsReporter(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.report()
		}
	}
}

func (r *stressRun) report() {
	r.log.Info("stats",
		zap.Int64("pushes", r.stats.Pushes.Load()),
		zap.Int64("points", r.stats.Points.Load()),
		zap.Int64("queries", r.stats.Queries.Load()),
		zap.Int64("aggregations", r.stats.Aggregations.Load()),
		zap.Int64("errors", r.stats.Errors.Load()))
}

// verifier periodically stops every worker and checks that the value
// column holds at least the points acknowledged so far. Only normal
// pushes are acknowledged synchronously, so other modes skip the check.
func (r *stressRun) verifier(ctx context.Context, interval time.Duration, base int64) {
	if r.mode != qdb.PushNormal {
		r.log.Info("verification disabled", zap.Stringer("push_mode", r.mode))
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.verify(base)
		}
	}
}

func (r *stressRun) verify(base int64) {
	r.pauseMu.Lock()
	defer r.pauseMu.Unlock()

	want := base + r.written.Load()
	got, err := r.count()
	if err != nil {
		r.log.Error("verification failed", zap.Error(err))
		r.stats.Errors.Add(1)
		return
	}
	if got < want {
		r.log.Error("points missing", zap.Int64("want", want), zap.Int64("got", got))
		r.stats.Errors.Add(1)
		return
	}
	r.log.Info("verification passed", zap.Int64("points", got))
}

func (r *stressRun) count() (int64, error) {
	res, err := r.h.AggregateDoubles(r.alias, "value", []qdb.Aggregation{{Type: qdb.AggCount, Range: qdb.Forever}})
	if err != nil {
		return 0, err
	}
	return int64(res[0].Count), nil
}

func (r *stressRun) worker(ctx context.Context, id int) {
	log := r.log.With(zap.Int("worker", id))
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(id)))

	// push, row push, query, aggregate
	weights := []int{50, 20, 15, 15}
	var weighted []int
	for op, w := range weights {
		for j := 0; j < w; j++ {
			weighted = append(weighted, op)
		}
	}

	for {
		select {
		case <-ctx.Done():
			log.Debug("worker stopped")
			return
		default:
		}

		r.pauseMu.RLock()
		var err error
		switch weighted[rng.Intn(len(weighted))] {
		case 0:
			err = r.pushColumns(rng)
		case 1:
			err = r.pushRows(rng)
		case 2:
			err = r.query()
		case 3:
			_, err = r.h.AggregateDoubles(r.alias, "value", []qdb.Aggregation{
				{Type: qdb.AggArithmeticMean, Range: qdb.Forever},
				{Type: qdb.AggMax, Range: qdb.Forever},
			})
			if err == nil {
				r.stats.Aggregations.Add(1)
			}
		}
		r.pauseMu.RUnlock()

		if err != nil {
			log.Warn("operation failed", zap.Error(err))
			r.stats.Errors.Add(1)
		}
		time.Sleep(time.Duration(1+rng.Intn(10)) * time.Millisecond)
	}
}

func (r *stressRun) newBatch() (*qdb.BatchTable, error) {
	cols := make([]qdb.BatchColumn, len(stressColumns))
	for i, c := range stressColumns {
		cols[i] = qdb.BatchColumn{Table: r.alias, Column: c.Name, SizeHint: r.rows}
	}
	return r.h.NewBatchTable(cols)
}

func (r *stressRun) pushColumns(rng *rand.Rand) error {
	b, err := r.newBatch()
	if err != nil {
		return err
	}
	defer b.Release()

	shard, offsets := r.slot(rng)
	offsets = offsets[:r.rows]
	doubles := make([]float64, r.rows)
	ints := make([]int64, r.rows)
	labels := make([]string, r.rows)
	for i := range offsets {
		doubles[i] = rng.Float64() * 100
		ints[i] = rng.Int63()
		labels[i] = fmt.Sprintf("l%d", rng.Intn(16))
	}
	if err := b.SetDoubleColumn(0, shard, offsets, doubles); err != nil {
		return err
	}
	if err := b.SetInt64Column(1, shard, offsets, ints); err != nil {
		return err
	}
	if err := b.SetStringColumn(2, shard, offsets, labels); err != nil {
		return err
	}
	return r.push(b, shard, r.rows)
}

func (r *stressRun) pushRows(rng *rand.Rand) error {
	b, err := r.newBatch()
	if err != nil {
		return err
	}
	defer b.Release()

	n := 1 + rng.Intn(32)
	shard, offsets := r.slot(rng)
	for i := 0; i < n; i++ {
		if err := b.StartRow(shard.Add(time.Duration(offsets[i]))); err != nil {
			return err
		}
		if err := b.RowSetDouble(0, rng.Float64()); err != nil {
			return err
		}
		if err := b.RowSetInt64(1, int64(i)); err != nil {
			return err
		}
		if err := b.RowSetString(2, "row"); err != nil {
			return err
		}
	}
	return r.push(b, shard, n)
}

func (r *stressRun) push(b *qdb.BatchTable, shard qdb.Timespec, n int) error {
	var ranges []qdb.TimeRange
	if r.mode == qdb.PushTruncate {
		ranges = []qdb.TimeRange{{Begin: shard, End: shard.Add(time.Duration(r.rows) * time.Microsecond)}}
	}
	if err := b.PushWith(r.mode, ranges...); err != nil {
		return err
	}
	r.stats.Pushes.Add(1)
	r.stats.Points.Add(int64(n * len(stressColumns)))
	if r.mode == qdb.PushNormal {
		r.written.Add(int64(n))
	}
	return nil
}

// slot picks a random second in the past day and spreads r.rows offsets
// one microsecond apart inside it, so concurrent pushes rarely collide.
func (r *stressRun) slot(rng *rand.Rand) (qdb.Timespec, []int64) {
	sec := time.Now().Add(-time.Duration(rng.Int63n(int64(24 * time.Hour)))).Truncate(time.Second)
	offsets := make([]int64, max(r.rows, 32))
	for i := range offsets {
		offsets[i] = int64(i) * int64(time.Microsecond)
	}
	return qdb.NewTimespec(sec), offsets
}

func (r *stressRun) query() error {
	res, err := r.h.Query(fmt.Sprintf("select count(value) from %s in range(now - 1h, now)", r.alias))
	if err != nil {
		return err
	}
	r.stats.Queries.Add(1)
	r.log.Debug("query", zap.Int("rows", res.RowCount()))
	return nil
}
