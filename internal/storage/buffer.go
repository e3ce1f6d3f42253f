package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"match-crawler/internal/metrics"
)

// DefaultBatchSize is the number of accepted matches between flushes.
const DefaultBatchSize = 50

// RowSink is a destination for flushed rows.
type RowSink interface {
	Name() string
	WriteRows(ctx context.Context, rows []PlayerMatchRow) error
}

// Buffer accumulates rows of accepted matches and flushes them to the primary
// sink, then to every mirror, whenever the accepted-match count reaches a
// multiple of the batch size.
type Buffer struct {
	mu        sync.Mutex
	primary   RowSink
	mirrors   []RowSink
	batchSize int
	pending   []PlayerMatchRow
	flushed   int
	lastFlush time.Time
	logger    *zap.Logger
}

// NewBuffer creates a buffer flushing to primary and then mirrors. A
// non-positive batchSize falls back to DefaultBatchSize.
func NewBuffer(primary RowSink, batchSize int, logger *zap.Logger, mirrors ...RowSink) *Buffer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Buffer{
		primary:   primary,
		mirrors:   mirrors,
		batchSize: batchSize,
		lastFlush: time.Now(),
		logger:    logger,
	}
}

// Add queues the rows of one accepted match. acceptedTotal is the global
// accepted-match count including this match; when it lands on a multiple of
// the batch size the buffer flushes and Add reports true.
func (b *Buffer) Add(ctx context.Context, rows []PlayerMatchRow, acceptedTotal int) (bool, error) {
	b.mu.Lock()
	b.pending = append(b.pending, rows...)
	b.mu.Unlock()

	if acceptedTotal <= 0 || acceptedTotal%b.batchSize != 0 {
		return false, nil
	}
	if err := b.Flush(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Flush writes every pending row. Rows stay pending if the primary sink
// fails; once the primary accepts them they are cleared even if a mirror
// fails, since the primary is what a restart resumes from.
func (b *Buffer) Flush(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.pending) == 0 {
		return nil
	}

	rows := b.pending
	if err := b.primary.WriteRows(ctx, rows); err != nil {
		return fmt.Errorf("flush to %s: %w", b.primary.Name(), err)
	}
	metrics.RowsFlushed(b.primary.Name(), len(rows))

	b.pending = nil
	b.flushed += len(rows)
	b.lastFlush = time.Now()

	var mirrorErr error
	for _, m := range b.mirrors {
		if err := m.WriteRows(ctx, rows); err != nil {
			b.logger.Error("Mirror write failed",
				zap.String("mirror", m.Name()),
				zap.Int("rows", len(rows)),
				zap.Error(err),
			)
			if mirrorErr == nil {
				mirrorErr = fmt.Errorf("flush to %s: %w", m.Name(), err)
			}
			continue
		}
		metrics.RowsFlushed(m.Name(), len(rows))
	}

	b.logger.Debug("Flushed rows", zap.Int("rows", len(rows)), zap.Int("total", b.flushed))
	return mirrorErr
}

// Pending returns the number of rows not yet flushed.
func (b *Buffer) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Flushed returns the number of rows written to the primary sink by this buffer.
func (b *Buffer) Flushed() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flushed
}

// LastFlush returns when rows were last written, or the buffer's creation time.
func (b *Buffer) LastFlush() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastFlush
}
