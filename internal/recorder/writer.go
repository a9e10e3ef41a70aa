package recorder

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rickgao/alpaca-stream/internal/dispatch"
	"github.com/rickgao/alpaca-stream/internal/trading"
)

// finalFlushTimeout bounds the flush Stop performs after draining.
const finalFlushTimeout = 10 * time.Second

// ErrNotStarted is returned by Stop on a writer that was never started.
var ErrNotStarted = errors.New("recorder not started")

// Config holds batch writer settings.
type Config struct {
	BatchSize     int           // Rows per insert batch
	FlushInterval time.Duration // Max time a row waits before flushing
	BufferSize    int           // Max pending rows; further rows are dropped
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:     500,
		FlushInterval: time.Second,
		BufferSize:    10000,
	}
}

// Stats contains writer statistics.
type Stats struct {
	Inserts   int64
	Conflicts int64
	Errors    int64
	Flushes   int64
	Dropped   int64
	Pending   int

	Buffer dispatch.BufferStats // Input buffer between the stream and the batcher
}

// BatchSender is the subset of *pgxpool.Pool used for writes.
type BatchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Writer buffers updates and writes them in batches.
type Writer struct {
	cfg    Config
	logger *slog.Logger
	db     BatchSender

	// Input from the stream's dispatch goroutine
	input *dispatch.Buffer[row]

	// Batching
	batch   []row
	batchMu sync.Mutex

	// Lifecycle
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	consumed chan struct{}

	statsMu sync.Mutex
	stats   Stats
}

// New creates a Writer.
func New(cfg Config, db BatchSender, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if cfg.BufferSize < 1 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultConfig().FlushInterval
	}

	initial := cfg.BufferSize
	if initial > 1024 {
		initial = 1024
	}

	return &Writer{
		cfg:    cfg,
		db:     db,
		logger: logger.With("component", "recorder"),
		input:  dispatch.NewBuffer[row](initial),
		batch:  make([]row, 0, cfg.BatchSize),
	}
}

// RecordTrade queues a trade update. It returns false when the writer is
// stopped or the buffer is full.
func (w *Writer) RecordTrade(u trading.TradeUpdate) bool {
	return w.push(transformTrade(u))
}

// RecordAccount queues an account update.
func (w *Writer) RecordAccount(u trading.AccountUpdate) bool {
	return w.push(transformAccount(u))
}

func (w *Writer) push(r row) bool {
	if w.input.Len() >= w.cfg.BufferSize || !w.input.Push(r) {
		w.statsMu.Lock()
		w.stats.Dropped++
		w.statsMu.Unlock()
		return false
	}
	return true
}

// Start begins consuming updates and writing to the database.
func (w *Writer) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.consumed = make(chan struct{})

	go w.consumeLoop()

	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("recorder started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop closes the input, waits for pending updates to be batched, and
// flushes what remains. If ctx expires before the input drains, the rows
// still buffered are dropped and counted. Updates recorded after Stop are
// dropped.
func (w *Writer) Stop(ctx context.Context) error {
	if w.cancel == nil {
		return ErrNotStarted
	}
	w.logger.Info("stopping recorder")

	w.input.Close()
	select {
	case <-w.consumed:
	case <-ctx.Done():
		n := w.input.Abort()
		w.statsMu.Lock()
		w.stats.Dropped += int64(n)
		w.statsMu.Unlock()
		w.logger.Warn("recorder drain timed out", "dropped", n)
	}

	w.cancel()
	<-w.consumed
	w.wg.Wait()

	// Final flush gets its own deadline; ctx may already be spent on the drain.
	flushCtx, flushCancel := context.WithTimeout(context.Background(), finalFlushTimeout)
	defer flushCancel()
	w.flush(flushCtx)

	w.logger.Info("recorder stopped")
	return nil
}

// Stats returns current statistics.
func (w *Writer) Stats() Stats {
	w.statsMu.Lock()
	stats := w.stats
	w.statsMu.Unlock()

	stats.Buffer = w.input.Stats()
	stats.Pending = stats.Buffer.Count
	w.batchMu.Lock()
	stats.Pending += len(w.batch)
	w.batchMu.Unlock()
	return stats
}

// consumeLoop moves rows from the input buffer into the batch until the
// buffer is closed and drained.
func (w *Writer) consumeLoop() {
	defer close(w.consumed)

	for {
		r, ok := w.input.Pop()
		if !ok {
			return
		}
		w.add(r)
	}
}

// flushLoop periodically flushes the batch.
func (w *Writer) flushLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.flush(w.ctx)
		}
	}
}

func (w *Writer) add(r row) {
	w.batchMu.Lock()
	w.batch = append(w.batch, r)
	shouldFlush := len(w.batch) >= w.cfg.BatchSize
	w.batchMu.Unlock()

	if shouldFlush {
		w.flush(w.ctx)
	}
}

// flush writes the current batch to the database.
func (w *Writer) flush(ctx context.Context) {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	batch := w.batch
	w.batch = make([]row, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()

	conflicts, err := w.batchInsert(ctx, batch)
	if err != nil {
		w.logger.Error("batch insert failed", "error", err, "count", len(batch))
		w.statsMu.Lock()
		w.stats.Errors++
		w.statsMu.Unlock()
		return
	}

	w.statsMu.Lock()
	w.stats.Inserts += int64(len(batch) - conflicts)
	w.stats.Conflicts += int64(conflicts)
	w.stats.Flushes++
	w.statsMu.Unlock()

	w.logger.Debug("flushed updates",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (w *Writer) batchInsert(ctx context.Context, rows []row) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		r.queue(batch)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}

// Attach records every update delivered by c until detach is called.
func (w *Writer) Attach(c *trading.Client) (detach func()) {
	unsubTrades := c.OnTradeUpdate(func(u trading.TradeUpdate) {
		if !w.RecordTrade(u) {
			w.logger.Warn("trade update dropped", "order_id", u.Order.OrderID, "event", u.Event)
		}
	})
	unsubAccounts := c.OnAccountUpdate(func(u trading.AccountUpdate) {
		if !w.RecordAccount(u) {
			w.logger.Warn("account update dropped", "account_id", u.AccountID)
		}
	})

	return func() {
		unsubTrades()
		unsubAccounts()
	}
}
